package isa

import (
	"fmt"
	"strings"
)

// I is an instruction.
// All implementations are comparable with ==.
type I interface {
	Op() Op
	// Operands returns the operands in source order.
	Operands() []Operand
	String() string

	isI()
}

type baseI struct{}

func (baseI) isI() {}

type CpyI struct {
	Src, Dst Operand
	baseI
}

func (CpyI) Op() Op                 { return Cpy }
func (x CpyI) Operands() []Operand { return []Operand{x.Src, x.Dst} }
func (x CpyI) String() string      { return format(x) }

type IncI struct {
	X Operand
	baseI
}

func (IncI) Op() Op                 { return Inc }
func (x IncI) Operands() []Operand { return []Operand{x.X} }
func (x IncI) String() string      { return format(x) }

type DecI struct {
	X Operand
	baseI
}

func (DecI) Op() Op                 { return Dec }
func (x DecI) Operands() []Operand { return []Operand{x.X} }
func (x DecI) String() string      { return format(x) }

type JnzI struct {
	Test, Offset Operand
	baseI
}

func (JnzI) Op() Op                 { return Jnz }
func (x JnzI) Operands() []Operand { return []Operand{x.Test, x.Offset} }
func (x JnzI) String() string      { return format(x) }

type TglI struct {
	Offset Operand
	baseI
}

func (TglI) Op() Op                 { return Tgl }
func (x TglI) Operands() []Operand { return []Operand{x.Offset} }
func (x TglI) String() string      { return format(x) }

type OutI struct {
	X Operand
	baseI
}

func (OutI) Op() Op                 { return Out }
func (x OutI) Operands() []Operand { return []Operand{x.X} }
func (x OutI) String() string      { return format(x) }

// New creates an instruction from an Op and its operands.
func New(op Op, args ...Operand) (I, error) {
	if op.Arity() == 0 {
		return nil, fmt.Errorf("unknown op %v", op)
	}
	if len(args) != op.Arity() {
		return nil, fmt.Errorf("%v takes %d operands, have %d", op, op.Arity(), len(args))
	}
	switch op {
	case Cpy:
		return CpyI{Src: args[0], Dst: args[1]}, nil
	case Inc:
		return IncI{X: args[0]}, nil
	case Dec:
		return DecI{X: args[0]}, nil
	case Jnz:
		return JnzI{Test: args[0], Offset: args[1]}, nil
	case Tgl:
		return TglI{Offset: args[0]}, nil
	case Out:
		return OutI{X: args[0]}, nil
	default:
		panic(op)
	}
}

// Toggle returns the instruction that ix becomes when it is the target of tgl.
//
//	cpy <-> jnz
//	inc <-> dec
//	tgl  -> inc
//	out  -> inc
//
// tgl and out can never be recovered by toggling again.
func Toggle(ix I) I {
	switch ix := ix.(type) {
	case CpyI:
		return JnzI{Test: ix.Src, Offset: ix.Dst}
	case JnzI:
		return CpyI{Src: ix.Test, Dst: ix.Offset}
	case IncI:
		return DecI{X: ix.X}
	case DecI:
		return IncI{X: ix.X}
	case TglI:
		return IncI{X: ix.Offset}
	case OutI:
		return IncI{X: ix.X}
	default:
		panic(ix)
	}
}

func format(ix I) string {
	sb := strings.Builder{}
	sb.WriteString(ix.Op().String())
	for _, arg := range ix.Operands() {
		sb.WriteString(" ")
		sb.WriteString(arg.String())
	}
	return sb.String()
}

// Program is a sequence of instructions.
// The length of a Program is fixed once decoded, but tgl replaces
// instructions in place while it runs.
type Program []I

// Clone returns a copy of p which shares no memory with p.
func (p Program) Clone() Program {
	if p == nil {
		return nil
	}
	return append(Program{}, p...)
}

// Uses returns the set of Ops which appear in the program.
func (p Program) Uses() (ret []Op) {
	var seen [len(infos)]bool
	for _, ix := range p {
		seen[ix.Op()] = true
	}
	for _, op := range All() {
		if seen[op] {
			ret = append(ret, op)
		}
	}
	return ret
}

func (p Program) String() string {
	sb := strings.Builder{}
	for _, ix := range p {
		sb.WriteString(format(ix))
		sb.WriteString("\n")
	}
	return sb.String()
}
