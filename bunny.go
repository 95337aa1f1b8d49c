// package bunny is a register machine whose programs can rewrite themselves.
//
// The instruction set lives in package isa, the machine in package bvm
// and the text format in package asm.
package bunny

import (
	"lukechampine.com/blake3"

	"bunnyvm.org/bunny/asm"
	"bunnyvm.org/bunny/internal/cadata"
	"bunnyvm.org/bunny/isa"
)

// MaxProgramSize is the largest program, in bytes of source text, accepted by the tools.
const MaxProgramSize = 1 << 20

// ID identifies a program by the hash of its canonical text.
type ID = cadata.ID

// Hash calculates the hash of x.
func Hash(x []byte) (ret ID) {
	h := blake3.New(32, nil)
	h.Write(x)
	h.Sum(ret[:0])
	return ret
}

// Fingerprint returns the ID of prog.
// Programs which print the same have the same Fingerprint.
func Fingerprint(prog isa.Program) ID {
	return Hash([]byte(asm.Format(prog)))
}

// ParseID parses the text form of an ID
func ParseID(x string) (ID, error) {
	return cadata.ParseID(x)
}
