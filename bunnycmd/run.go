package bunnycmd

import (
	"context"
	"errors"

	"go.brendoncarroll.net/star"
	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"

	"bunnyvm.org/bunny"
	"bunnyvm.org/bunny/asm"
	"bunnyvm.org/bunny/bvm"
	"bunnyvm.org/bunny/isa"
	"bunnyvm.org/bunny/runlog"
)

var run = star.Command{
	Metadata: star.Metadata{
		Short: "run a program until it stops, printing its output",
	},
	Flags: []star.IParam{DBParam, setParam, accelParam, maxStepsParam},
	Pos:   []star.IParam{progParam},
	F: func(c star.Context) error {
		ctx := logContext(c)
		prog := progParam.Load(c)
		var output []isa.Int
		vm := newMachine(c, prog, bvm.Config{
			Port: bvm.PortFunc(func(x isa.Int) bvm.Verdict {
				c.Printf("%d\n", x)
				output = append(output, x)
				return bvm.Continue
			}),
		})
		presets := vm.Registers()
		if err := execMachine(ctx, vm, maxStepsParam.Load(c)); err != nil {
			return err
		}
		printSummary(c, vm)
		runID, err := recordRun(ctx, runlog.NewSQL(DBParam.Load(c)), prog, runlog.NewRun(bunny.ID{}, presets, vm, output))
		if err != nil {
			return err
		}
		logctx.Info(ctx, "recorded run", zap.Uint64("id", runID))
		return nil
	},
}

var trace = star.Command{
	Metadata: star.Metadata{
		Short: "run a program and print the last instructions it executed",
	},
	Flags: []star.IParam{setParam, accelParam, maxStepsParam, historyParam},
	Pos:   []star.IParam{progParam},
	F: func(c star.Context) error {
		ctx := logContext(c)
		prog := progParam.Load(c)
		vm := newMachine(c, prog, bvm.Config{
			History: historyParam.Load(c),
		})
		if err := execMachine(ctx, vm, maxStepsParam.Load(c)); err != nil {
			return err
		}
		for _, ev := range vm.History() {
			note := ""
			if ev.Accelerated {
				note = "  (accelerated)"
			}
			c.Printf("%8d  %4d  %v%s\n", ev.Step, ev.PC, ev.I, note)
		}
		c.Printf("\n")
		// the program as it was left, which may differ from the input
		if err := asm.PrintListing(c.StdOut, vm.Program(), vm.PC()); err != nil {
			return err
		}
		printSummary(c, vm)
		return nil
	},
}

// execMachine runs vm until it stops or takes limit steps.
// Reaching the limit is not an error.
func execMachine(ctx context.Context, vm *bvm.Machine, limit uint64) error {
	status, err := vm.Exec(ctx, limit)
	if errors.Is(err, bvm.ErrStepLimit) {
		logctx.Warnf(ctx, "stopped after %d steps", vm.Steps())
		return nil
	}
	if err != nil {
		return err
	}
	logctx.Debug(ctx, "machine stopped", zap.Stringer("status", status), zap.Uint64("steps", vm.Steps()))
	return nil
}

func printSummary(c star.Context, vm *bvm.Machine) {
	c.Printf("STATUS: %v\n", vm.Status())
	c.Printf("REGS:   %v\n", vm.Registers())
	c.Printf("PC:     %d\n", vm.PC())
	c.Printf("STEPS:  %d\n", vm.Steps())
}

// recordRun stores prog in l and records run against it.
func recordRun(ctx context.Context, l runlog.Log, prog isa.Program, run runlog.Run) (uint64, error) {
	pid, err := l.PutProgram(ctx, prog)
	if err != nil {
		return 0, err
	}
	run.Program = pid
	return l.Record(ctx, run)
}
