// package runlog records programs and the runs made with them.
package runlog

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.brendoncarroll.net/tai64"

	"bunnyvm.org/bunny"
	"bunnyvm.org/bunny/asm"
	"bunnyvm.org/bunny/bvm"
	"bunnyvm.org/bunny/isa"
)

// ErrNotFound is returned when a program or run does not exist.
var ErrNotFound = errors.New("runlog: not found")

// DefaultListLimit is used by List when limit <= 0
const DefaultListLimit = 100

// Run is the record of a single execution of a program.
type Run struct {
	ID      uint64
	Program bunny.ID
	// Presets are the registers before the first step.
	Presets bvm.Registers
	// Registers are the registers after the last step.
	Registers bvm.Registers
	PC        isa.Int
	Status    bvm.Status
	Steps     uint64
	Output    []isa.Int
	At        tai64.TAI64N
}

// NewRun returns a Run describing the current state of vm.
// The ID is assigned by Record.
func NewRun(prog bunny.ID, presets bvm.Registers, vm *bvm.Machine, output []isa.Int) Run {
	return Run{
		Program:   prog,
		Presets:   presets,
		Registers: vm.Registers(),
		PC:        vm.PC(),
		Status:    vm.Status(),
		Steps:     vm.Steps(),
		Output:    cloneOutput(output),
		At:        tai64.Now(),
	}
}

type Log interface {
	// PutProgram stores prog and returns its fingerprint.
	PutProgram(ctx context.Context, prog isa.Program) (bunny.ID, error)
	GetProgram(ctx context.Context, id bunny.ID) (isa.Program, error)

	// Record stores run under a new ID, and returns the ID.
	// The program must already have been stored with PutProgram.
	Record(ctx context.Context, run Run) (uint64, error)
	Get(ctx context.Context, id uint64) (*Run, error)
	// List returns up to limit runs, most recent first.
	List(ctx context.Context, limit int) ([]Run, error)
}

// formatProgram returns the source of prog, if it is not too large to store.
func formatProgram(prog isa.Program) (string, error) {
	src := asm.Format(prog)
	if len(src) > bunny.MaxProgramSize {
		return "", fmt.Errorf("program is too large (%d > %d)", len(src), bunny.MaxProgramSize)
	}
	return src, nil
}

// cloneOutput copies x, an empty output is always nil.
func cloneOutput(x []isa.Int) []isa.Int {
	if len(x) == 0 {
		return nil
	}
	return slices.Clone(x)
}

func listLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}
