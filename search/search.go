// package search finds register presets which make a program produce a clock signal.
package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"

	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bunnyvm.org/bunny/bvm"
	"bunnyvm.org/bunny/clock"
	"bunnyvm.org/bunny/isa"
)

// ErrNotFound is returned when no seed in the searched range produces a clock.
var ErrNotFound = errors.New("no seed produces a clock signal")

type Config struct {
	// Register is the register which is seeded.
	Register isa.Register `json:"register"`
	// Start is the first seed tried.
	Start isa.Int `json:"start"`
	// MaxSeeds is the number of seeds tried before giving up.
	MaxSeeds int `json:"max_seeds"`
	// SampleSize is the number of alternations needed to accept a signal.
	SampleSize int `json:"sample_size"`
	// StepLimit is the most steps a single seed may run for.
	// A seed which runs out of steps is rejected.
	StepLimit uint64 `json:"step_limit"`
	// Workers is the number of seeds run at once.
	Workers int `json:"workers"`
	// Accelerate is passed to the machine.
	Accelerate bool `json:"accelerate"`
}

func DefaultConfig() Config {
	return Config{
		Register:   isa.A,
		MaxSeeds:   1 << 16,
		SampleSize: clock.DefaultSampleSize,
		StepLimit:  1 << 26,
		Workers:    runtime.GOMAXPROCS(0),
	}
}

func (c Config) Validate() error {
	switch {
	case !c.Register.Valid():
		return fmt.Errorf("invalid register %v", c.Register)
	case c.MaxSeeds < 1:
		return fmt.Errorf("max seeds must be positive, have %d", c.MaxSeeds)
	case c.SampleSize < 1:
		return fmt.Errorf("sample size must be positive, have %d", c.SampleSize)
	case c.Workers < 1:
		return fmt.Errorf("workers must be positive, have %d", c.Workers)
	case int64(c.Start)+int64(c.MaxSeeds)-1 > math.MaxInt32:
		return fmt.Errorf("seeds from %d to %d do not fit in 32 bits", c.Start, int64(c.Start)+int64(c.MaxSeeds)-1)
	}
	return nil
}

type Result struct {
	// Seed is the smallest seed which produces a clock.
	Seed isa.Int `json:"seed"`
	// Steps is the number of steps the machine took with Seed.
	Steps uint64 `json:"steps"`
	// Tried is the number of seeds which were run.
	// With more than one worker, seeds larger than Seed may have been run too.
	Tried int `json:"tried"`
}

// Outcome is the result of running a single seed
type Outcome struct {
	Clock  clock.State
	Status bvm.Status
	Steps  uint64
}

// Try runs prog once with cfg.Register set to seed.
// prog is not modified.
func Try(ctx context.Context, prog isa.Program, cfg Config, seed isa.Int) (Outcome, error) {
	v := clock.New(cfg.SampleSize)
	vm := bvm.New(prog, bvm.Config{Port: v, Accelerate: cfg.Accelerate})
	vm.Set(cfg.Register, seed)
	status, err := vm.Exec(ctx, cfg.StepLimit)
	if err != nil && !errors.Is(err, bvm.ErrStepLimit) {
		return Outcome{}, err
	}
	return Outcome{Clock: v.State(), Status: status, Steps: vm.Steps()}, nil
}

// FindClock returns the smallest seed, starting from cfg.Start, for which prog produces a clock signal.
// Every seed runs on its own copy of prog.
func FindClock(ctx context.Context, prog isa.Program, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var (
		next  atomic.Int64
		tried atomic.Int64
		best  atomic.Int64

		mu        sync.Mutex
		bestSteps uint64
	)
	best.Store(math.MaxInt64)
	eg, ctx2 := errgroup.WithContext(ctx)
	for w := 0; w < cfg.Workers; w++ {
		eg.Go(func() error {
			for {
				i := next.Add(1) - 1
				if i >= int64(cfg.MaxSeeds) || i > best.Load() {
					return nil
				}
				seed := cfg.Start + isa.Int(i)
				out, err := Try(ctx2, prog, cfg, seed)
				if err != nil {
					return err
				}
				tried.Add(1)
				logctx.Debug(ctx2, "tried seed", zap.Int32("seed", seed), zap.Stringer("clock", out.Clock), zap.Uint64("steps", out.Steps))
				if out.Clock != clock.Perfect {
					continue
				}
				mu.Lock()
				if i < best.Load() {
					best.Store(i)
					bestSteps = out.Steps
				}
				mu.Unlock()
			}
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}
	if best.Load() == math.MaxInt64 {
		logctx.Warnf(ctx, "no clock after %d seeds", tried.Load())
		return nil, ErrNotFound
	}
	res := &Result{
		Seed:  cfg.Start + isa.Int(best.Load()),
		Steps: bestSteps,
		Tried: int(tried.Load()),
	}
	logctx.Info(ctx, "found clock", zap.Int32("seed", res.Seed), zap.Int("tried", res.Tried))
	return res, nil
}
