// package bunnyhttp serves the machine and the run log over HTTP.
package bunnyhttp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"go.brendoncarroll.net/exp/slices2"
	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"

	"bunnyvm.org/bunny"
	"bunnyvm.org/bunny/asm"
	"bunnyvm.org/bunny/bvm"
	"bunnyvm.org/bunny/isa"
	"bunnyvm.org/bunny/runlog"
	"bunnyvm.org/bunny/search"
)

const (
	// MaxSteps is the most steps a run requested over HTTP may take.
	MaxSteps = 1 << 26
	// MaxOutput is the number of output values kept for a run.
	MaxOutput = 1 << 12
)

func Serve(ctx context.Context, l net.Listener, log runlog.Log, searcher *search.Searcher) error {
	return New(log, searcher).Serve(ctx, l)
}

type Server struct {
	log      runlog.Log
	searcher *search.Searcher
	app      *fiber.App
	bgCtx    context.Context
}

func New(log runlog.Log, searcher *search.Searcher) *Server {
	s := &Server{
		log:      log,
		searcher: searcher,
		bgCtx:    context.Background(),
	}
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		BodyLimit:             bunny.MaxProgramSize + 1<<12,
		ErrorHandler:          s.handleError,
	})
	v1 := app.Group("/v1")
	v1.Post("/run", s.run)
	v1.Post("/clock", s.clock)
	v1.Get("/runs", s.listRuns)
	v1.Get("/runs/:runID", s.getRun)
	v1.Get("/programs/:programID", s.getProgram)
	s.app = app
	return s
}

// Serve serves HTTP on l until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	s.bgCtx = ctx
	logctx.Infof(ctx, "serving on %v", l.Addr())
	go func() {
		<-ctx.Done()
		if err := s.app.Shutdown(); err != nil {
			logctx.Error(ctx, "shutting down", zap.Error(err))
		}
	}()
	return s.app.Listener(l)
}

// App returns the fiber app, for testing.
func (s *Server) App() *fiber.App {
	return s.app
}

type RunReq struct {
	Source     string             `json:"source"`
	Presets    map[string]isa.Int `json:"presets"`
	Accelerate bool               `json:"accelerate"`
	// MaxSteps is capped to MaxSteps. 0 means MaxSteps.
	MaxSteps uint64 `json:"max_steps"`
}

type RunResp struct {
	RunID     uint64        `json:"run_id"`
	Program   bunny.ID      `json:"program"`
	Status    bvm.Status    `json:"status"`
	Registers bvm.Registers `json:"registers"`
	PC        isa.Int       `json:"pc"`
	Steps     uint64        `json:"steps"`
	Output    []isa.Int     `json:"output"`
}

func (s *Server) run(c *fiber.Ctx) error {
	ctx := c.Context()
	var req RunReq
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	prog, err := parseSource(req.Source)
	if err != nil {
		return err
	}
	maxSteps := req.MaxSteps
	if maxSteps == 0 || maxSteps > MaxSteps {
		maxSteps = MaxSteps
	}
	var output []isa.Int
	vm := bvm.New(prog, bvm.Config{
		Port: bvm.PortFunc(func(x isa.Int) bvm.Verdict {
			if len(output) < MaxOutput {
				output = append(output, x)
			}
			return bvm.Continue
		}),
		Accelerate: req.Accelerate,
	})
	for k, v := range req.Presets {
		r, err := isa.ParseRegister(k)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		vm.Set(r, v)
	}
	presets := vm.Registers()
	if _, err := vm.Exec(ctx, maxSteps); err != nil && !errors.Is(err, bvm.ErrStepLimit) {
		return err
	}
	pid, err := s.log.PutProgram(ctx, prog)
	if err != nil {
		return err
	}
	run := runlog.NewRun(pid, presets, vm, output)
	runID, err := s.log.Record(ctx, run)
	if err != nil {
		return err
	}
	logctx.Info(s.bgCtx, "run", zap.Uint64("id", runID), zap.Stringer("status", run.Status), zap.Uint64("steps", run.Steps))
	return c.JSON(RunResp{
		RunID:     runID,
		Program:   pid,
		Status:    run.Status,
		Registers: run.Registers,
		PC:        run.PC,
		Steps:     run.Steps,
		Output:    run.Output,
	})
}

type ClockReq struct {
	Source     string  `json:"source"`
	Register   string  `json:"register"`
	SampleSize int     `json:"sample_size"`
	Start      isa.Int `json:"start"`
	MaxSeeds   int     `json:"max_seeds"`
	Accelerate bool    `json:"accelerate"`
}

type ClockResp struct {
	Program bunny.ID `json:"program"`
	Seed    isa.Int  `json:"seed"`
	Steps   uint64   `json:"steps"`
	Tried   int      `json:"tried"`
}

func (s *Server) clock(c *fiber.Ctx) error {
	ctx := c.Context()
	var req ClockReq
	if err := decodeBody(c, &req); err != nil {
		return err
	}
	prog, err := parseSource(req.Source)
	if err != nil {
		return err
	}
	cfg := search.DefaultConfig()
	cfg.Start = req.Start
	cfg.Accelerate = req.Accelerate
	if req.Register != "" {
		if cfg.Register, err = isa.ParseRegister(req.Register); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
	}
	if req.SampleSize != 0 {
		cfg.SampleSize = req.SampleSize
	}
	if req.MaxSeeds != 0 {
		cfg.MaxSeeds = min(req.MaxSeeds, cfg.MaxSeeds)
	}
	if err := cfg.Validate(); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	res, err := s.searcher.FindClock(ctx, prog, cfg)
	if err != nil {
		return err
	}
	return c.JSON(ClockResp{
		Program: bunny.Fingerprint(prog),
		Seed:    res.Seed,
		Steps:   res.Steps,
		Tried:   res.Tried,
	})
}

// RunInfo is the JSON form of runlog.Run
type RunInfo struct {
	ID        uint64        `json:"id"`
	Program   bunny.ID      `json:"program"`
	Presets   bvm.Registers `json:"presets"`
	Registers bvm.Registers `json:"registers"`
	PC        isa.Int       `json:"pc"`
	Status    bvm.Status    `json:"status"`
	Steps     uint64        `json:"steps"`
	Output    []isa.Int     `json:"output"`
	// TAI64 is the time of the run as a TAI64N label, in seconds and nanoseconds.
	TAI64 [2]uint64 `json:"tai64n"`
}

func newRunInfo(r runlog.Run) RunInfo {
	return RunInfo{
		ID:        r.ID,
		Program:   r.Program,
		Presets:   r.Presets,
		Registers: r.Registers,
		PC:        r.PC,
		Status:    r.Status,
		Steps:     r.Steps,
		Output:    r.Output,
		TAI64:     [2]uint64{uint64(r.At.Seconds), uint64(r.At.Nanoseconds)},
	}
}

func (s *Server) listRuns(c *fiber.Ctx) error {
	runs, err := s.log.List(c.Context(), c.QueryInt("limit", runlog.DefaultListLimit))
	if err != nil {
		return err
	}
	return c.JSON(slices2.Map(runs, newRunInfo))
}

func (s *Server) getRun(c *fiber.Ctx) error {
	runID, err := strconv.ParseUint(c.Params("runID"), 10, 64)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	run, err := s.log.Get(c.Context(), runID)
	if err != nil {
		return err
	}
	return c.JSON(newRunInfo(*run))
}

type ProgramResp struct {
	ID     bunny.ID `json:"id"`
	Source string   `json:"source"`
}

func (s *Server) getProgram(c *fiber.Ctx) error {
	id, err := bunny.ParseID(c.Params("programID"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	prog, err := s.log.GetProgram(c.Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(ProgramResp{ID: id, Source: asm.Format(prog)})
}

func (s *Server) handleError(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var ferr *fiber.Error
	var perr *asm.ParseError
	switch {
	case errors.As(err, &ferr):
		code = ferr.Code
	case errors.As(err, &perr):
		code = fiber.StatusBadRequest
	case errors.Is(err, runlog.ErrNotFound), errors.Is(err, search.ErrNotFound):
		code = fiber.StatusNotFound
	}
	if code == fiber.StatusInternalServerError {
		logctx.Error(s.bgCtx, "handling request", zap.String("path", c.Path()), zap.Error(err))
	}
	return c.Status(code).JSON(fiber.Map{"error": err.Error()})
}

func decodeBody(c *fiber.Ctx, dst any) error {
	if err := json.Unmarshal(c.Body(), dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("decoding request: %v", err))
	}
	return nil
}

func parseSource(src string) (isa.Program, error) {
	if len(src) > bunny.MaxProgramSize {
		return nil, fiber.NewError(fiber.StatusRequestEntityTooLarge, "program is too large")
	}
	return asm.ParseString(src)
}
