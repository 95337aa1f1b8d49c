// package bvm contains the bunny virtual machine: four registers, a program counter
// and a program which can rewrite itself while it runs.
package bvm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"bunnyvm.org/bunny/internal/ringbuf"
	"bunnyvm.org/bunny/isa"
)

type (
	Int = isa.Int
	I   = isa.I
)

// Status is the run state of a Machine
type Status uint8

const (
	// Running means the program counter is inside the program and no port has stopped the machine.
	Running Status = iota
	// Exhausted means the program counter left the program.
	Exhausted
	// Perfect means the output port accepted the output.
	Perfect
	// Bad means the output port rejected the output.
	Bad
)

func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Exhausted:
		return "exhausted"
	case Perfect:
		return "perfect"
	case Bad:
		return "bad"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(x []byte) error {
	for _, s2 := range []Status{Running, Exhausted, Perfect, Bad} {
		if s2.String() == string(x) {
			*s = s2
			return nil
		}
	}
	return fmt.Errorf("unknown status %q", x)
}

// ErrStepLimit is returned by Exec when the step limit is reached before the machine stops.
var ErrStepLimit = errors.New("step limit reached")

// Registers holds the value of every register
type Registers [isa.NumRegs]Int

func (r Registers) String() string {
	sb := strings.Builder{}
	for i, v := range r {
		if i > 0 {
			sb.WriteString(" ")
		}
		fmt.Fprintf(&sb, "%v=%d", isa.Register(i), v)
	}
	return sb.String()
}

// Event is an entry in the trace history
type Event struct {
	// Step is the number of steps taken before the event
	Step uint64
	PC   Int
	I    I
	// Accelerated is true if the instructions starting at PC were executed as an idiom
	Accelerated bool
}

type Config struct {
	// Port receives the values from out instructions.
	// If nil, values are discarded.
	Port Port
	// Accelerate enables replacing known loops with their result.
	Accelerate bool
	// History is the number of trace events kept.
	History int
}

func DefaultConfig() Config {
	return Config{Port: Discard}
}

// Machine executes a single program.
// A Machine is not safe for concurrent use.
type Machine struct {
	regs   Registers
	pc     Int
	prog   isa.Program
	status Status
	steps  uint64

	port    Port
	accel   bool
	history ringbuf.RingBuf[Event]
}

// New creates a machine which will execute a copy of prog.
// prog is never modified by the Machine.
func New(prog isa.Program, cfg Config) *Machine {
	if cfg.Port == nil {
		cfg.Port = Discard
	}
	vm := &Machine{
		prog:    prog.Clone(),
		port:    cfg.Port,
		accel:   cfg.Accelerate,
		history: ringbuf.New[Event](cfg.History),
	}
	vm.updateStatus()
	return vm
}

// Set presets register r to x.
func (vm *Machine) Set(r isa.Register, x Int) {
	vm.regs[r] = x
}

func (vm *Machine) Get(r isa.Register) Int {
	return vm.regs[r]
}

func (vm *Machine) Registers() Registers {
	return vm.regs
}

func (vm *Machine) PC() Int {
	return vm.pc
}

func (vm *Machine) Steps() uint64 {
	return vm.steps
}

func (vm *Machine) Status() Status {
	return vm.status
}

// Program returns a copy of the program, as it is now.
func (vm *Machine) Program() isa.Program {
	return vm.prog.Clone()
}

// History returns the most recent trace events, oldest first.
func (vm *Machine) History() []Event {
	return vm.history.Slice(nil)
}

// Resolve returns the value of an operand
func (vm *Machine) Resolve(o isa.Operand) Int {
	if r, ok := o.Register(); ok {
		return vm.regs[r]
	}
	v, _ := o.Immediate()
	return v
}

// Run executes the Machine for a maximum of maxSteps.
// The number of steps taken is returned.
// If Run returns 0, then the machine has stopped.
func (vm *Machine) Run(maxSteps uint64) uint64 {
	return vm.run(maxSteps, math.MaxInt)
}

// run is Run, but it also returns after maxIters fetches, so that
// accelerated loops can be larger than the interval between cancellation checks.
func (vm *Machine) run(maxSteps uint64, maxIters int) (steps uint64) {
	for i := 0; i < maxIters && steps < maxSteps && vm.isAlive(); i++ {
		if vm.accel {
			if n := vm.accelerate(maxSteps - steps); n > 0 {
				steps += n
				continue
			}
		}
		vm.Step()
		steps++
	}
	return steps
}

const execChunk = 1 << 16

// Exec runs the machine until it stops, ctx is cancelled, or limit steps are taken.
// A limit of 0 means no limit.
func (vm *Machine) Exec(ctx context.Context, limit uint64) (Status, error) {
	var total uint64
	for vm.isAlive() {
		if err := ctx.Err(); err != nil {
			return vm.status, err
		}
		budget := uint64(math.MaxUint64)
		if limit > 0 {
			if total >= limit {
				return vm.status, ErrStepLimit
			}
			budget = limit - total
		}
		total += vm.run(budget, execChunk)
	}
	return vm.status, nil
}

// Step executes exactly one instruction.
// Step panics if the machine has stopped.
func (vm *Machine) Step() {
	if !vm.isAlive() {
		panic(fmt.Sprintf("bvm: step on stopped machine. status=%v pc=%d", vm.status, vm.pc))
	}
	ix := vm.prog[vm.pc]
	vm.history.PushBack(Event{Step: vm.steps, PC: vm.pc, I: ix})
	vm.exec(ix)
	vm.pc++
	vm.steps++
	vm.updateStatus()
}

func (vm *Machine) exec(ix I) {
	switch ix := ix.(type) {
	case isa.CpyI:
		if r, ok := ix.Dst.Register(); ok {
			vm.regs[r] = vm.Resolve(ix.Src)
		}
	case isa.IncI:
		if r, ok := ix.X.Register(); ok {
			vm.regs[r]++
		}
	case isa.DecI:
		if r, ok := ix.X.Register(); ok {
			vm.regs[r]--
		}
	case isa.JnzI:
		if vm.Resolve(ix.Test) != 0 {
			// the pc is incremented after every instruction
			vm.pc += vm.Resolve(ix.Offset) - 1
		}
	case isa.TglI:
		vm.toggle(int64(vm.pc) + int64(vm.Resolve(ix.Offset)))
	case isa.OutI:
		vm.output(vm.Resolve(ix.X))
	default:
		panic(ix)
	}
}

func (vm *Machine) toggle(target int64) {
	if target < 0 || target >= int64(len(vm.prog)) {
		return
	}
	vm.prog[target] = isa.Toggle(vm.prog[target])
}

func (vm *Machine) output(x Int) {
	switch v := vm.port.Output(x); v {
	case Continue:
	case Accept:
		vm.status = Perfect
	case Reject:
		vm.status = Bad
	default:
		panic(v)
	}
}

func (vm *Machine) inBounds() bool {
	return vm.pc >= 0 && int64(vm.pc) < int64(len(vm.prog))
}

func (vm *Machine) isAlive() bool {
	return vm.status == Running && vm.inBounds()
}

func (vm *Machine) updateStatus() {
	if vm.status == Running && !vm.inBounds() {
		vm.status = Exhausted
	}
}
