package isa

import "strconv"

// Op identifies the kind of an Instruction
type Op uint8

const (
	Unknown Op = iota

	// Cpy (src, dst): dst = src, if dst is a register
	Cpy
	// Inc (x): x = x + 1, if x is a register
	Inc
	// Dec (x): x = x - 1, if x is a register
	Dec
	// Jnz (test, offset): if test != 0 then pc = pc + offset
	Jnz
	// Tgl (offset): toggle the instruction at pc + offset
	Tgl
	// Out (x): send x to the output port
	Out
)

// Info is information about an Op
type Info struct {
	Mnemonic string `json:"mnemonic"`
	Arity    int    `json:"arity"`
}

func (op Op) Info() Info {
	if int(op) >= len(infos) {
		return Info{}
	}
	return infos[op]
}

// Arity returns the number of operands taken by instructions with this Op
func (op Op) Arity() int {
	return op.Info().Arity
}

func (op Op) String() string {
	if m := op.Info().Mnemonic; m != "" {
		return m
	}
	return "Op(" + strconv.Itoa(int(op)) + ")"
}

var infos = [...]Info{
	Cpy: {"cpy", 2},
	Inc: {"inc", 1},
	Dec: {"dec", 1},
	Jnz: {"jnz", 2},
	Tgl: {"tgl", 1},
	Out: {"out", 1},
}

// All returns every valid Op
func All() (ret []Op) {
	for i := range infos {
		if infos[i].Mnemonic != "" {
			ret = append(ret, Op(i))
		}
	}
	return ret
}

// LookupMnemonic returns the Op with the mnemonic m, or Unknown
func LookupMnemonic(m string) Op {
	for _, op := range All() {
		if op.Info().Mnemonic == m {
			return op
		}
	}
	return Unknown
}
