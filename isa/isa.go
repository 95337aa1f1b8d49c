// package isa defines the instruction set of the bunny register machine.
package isa

import (
	"fmt"
	"strconv"

	"golang.org/x/exp/constraints"
)

// Int is the machine integer. Arithmetic wraps.
type Int = int32

// NumRegs is the number of registers in the machine.
const NumRegs = 4

// Register names one of the NumRegs registers
type Register uint8

const (
	A Register = iota
	B
	C
	D
)

// ParseRegister parses a register name: a, b, c or d.
func ParseRegister(x string) (Register, error) {
	if len(x) != 1 || x[0] < 'a' || x[0] >= 'a'+NumRegs {
		return 0, fmt.Errorf("invalid register %q", x)
	}
	return Register(x[0] - 'a'), nil
}

func (r Register) Valid() bool {
	return r < NumRegs
}

func (r Register) String() string {
	if !r.Valid() {
		return "Register(" + strconv.Itoa(int(r)) + ")"
	}
	return string(rune('a' + r))
}

// Operand is either a register or an immediate value.
// The zero value is the immediate 0.
type Operand struct {
	isReg bool
	v     Int
}

// Reg returns an Operand referring to register r.
// Reg panics if r is not a valid register.
func Reg(r Register) Operand {
	if !r.Valid() {
		panic(fmt.Sprintf("register out of range: %d", r))
	}
	return Operand{isReg: true, v: Int(r)}
}

// Imm returns an immediate Operand
func Imm[T constraints.Integer](x T) Operand {
	return Operand{v: Int(x)}
}

// IsReg returns true if the operand refers to a register.
func (o Operand) IsReg() bool {
	return o.isReg
}

// Register returns the register referred to by o, and true,
// or false if o is an immediate.
func (o Operand) Register() (Register, bool) {
	if !o.isReg {
		return 0, false
	}
	return Register(o.v), true
}

// Immediate returns the value of an immediate operand, and true,
// or false if o is a register.
func (o Operand) Immediate() (Int, bool) {
	if o.isReg {
		return 0, false
	}
	return o.v, true
}

func (o Operand) String() string {
	if o.isReg {
		return Register(o.v).String()
	}
	return strconv.FormatInt(int64(o.v), 10)
}

// ParseOperand parses a register name or a decimal integer
func ParseOperand(x string) (Operand, error) {
	if r, err := ParseRegister(x); err == nil {
		return Reg(r), nil
	}
	n, err := strconv.ParseInt(x, 10, 32)
	if err != nil {
		return Operand{}, fmt.Errorf("invalid operand %q: not a register or 32 bit integer", x)
	}
	return Imm(n), nil
}
