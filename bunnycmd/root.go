// package bunnycmd implements the bunny command line tool.
package bunnycmd

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"go.brendoncarroll.net/star"
	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"

	"bunnyvm.org/bunny/asm"
	"bunnyvm.org/bunny/bvm"
	"bunnyvm.org/bunny/internal/dbutil"
	"bunnyvm.org/bunny/isa"
	"bunnyvm.org/bunny/runlog"
)

func Root() star.Command {
	return root
}

var root = star.NewDir(star.Metadata{
	Short: "a register machine which rewrites its own program",
}, map[star.Symbol]star.Command{
	"run":   run,
	"trace": trace,
	"fmt":   fmtCmd,
	"clock": clockCmd,

	"history": history,
	"serve":   serve,
})

var DBParam = star.Param[*sqlx.DB]{
	Name:    "db",
	Default: star.Ptr(":memory:"),
	Parse: func(x string) (*sqlx.DB, error) {
		db, err := dbutil.Open(x)
		if err != nil {
			return nil, err
		}
		if err := runlog.Setup(context.Background(), db); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	},
}

var ListenerParam = star.Param[net.Listener]{
	Name:    "l",
	Default: star.Ptr("127.0.0.1:6767"),
	Parse: func(x string) (net.Listener, error) {
		return net.Listen("tcp", x)
	},
}

var progParam = star.Param[isa.Program]{
	Name:  "prog",
	Parse: asm.ParseFile,
}

// Preset is a register value given before the first step.
type Preset struct {
	Reg   isa.Register
	Value isa.Int
}

// ParsePreset parses presets of the form a=7
func ParsePreset(x string) (Preset, error) {
	k, v, ok := strings.Cut(x, "=")
	if !ok {
		return Preset{}, fmt.Errorf("preset must be of the form reg=value. have %q", x)
	}
	r, err := isa.ParseRegister(strings.TrimSpace(k))
	if err != nil {
		return Preset{}, err
	}
	n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 32)
	if err != nil {
		return Preset{}, err
	}
	return Preset{Reg: r, Value: isa.Int(n)}, nil
}

var setParam = star.Param[Preset]{
	Name:     "set",
	Repeated: true,
	Parse:    ParsePreset,
}

var accelParam = star.Param[bool]{
	Name:    "accel",
	Default: star.Ptr("false"),
	Parse:   strconv.ParseBool,
}

var maxStepsParam = star.Param[uint64]{
	Name:    "max-steps",
	Default: star.Ptr("0"),
	Parse:   parseUint64,
}

var historyParam = star.Param[int]{
	Name:    "history",
	Default: star.Ptr("32"),
	Parse:   strconv.Atoi,
}

var limitParam = star.Param[int]{
	Name:    "limit",
	Default: star.Ptr(strconv.Itoa(runlog.DefaultListLimit)),
	Parse:   strconv.Atoi,
}

func parseUint64(x string) (uint64, error) {
	return strconv.ParseUint(x, 10, 64)
}

// newMachine creates a machine for prog, with the presets from the command line.
func newMachine(c star.Context, prog isa.Program, cfg bvm.Config) *bvm.Machine {
	cfg.Accelerate = accelParam.Load(c)
	vm := bvm.New(prog, cfg)
	for _, p := range setParam.LoadAll(c) {
		vm.Set(p.Reg, p.Value)
	}
	return vm
}

// logContext returns the context for c, carrying a logger which writes to stderr.
func logContext(c star.Context) context.Context {
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	l, err := cfg.Build()
	if err != nil {
		return c.Context
	}
	return logctx.NewContext(c.Context, l)
}
