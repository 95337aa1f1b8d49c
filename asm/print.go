package asm

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"go.brendoncarroll.net/exp/slices2"

	"bunnyvm.org/bunny/isa"
)

// Print writes the canonical text of prog to w, one instruction per line.
func Print(w io.Writer, prog isa.Program) error {
	bw := bufio.NewWriter(w)
	for _, ix := range prog {
		if _, err := bw.WriteString(ix.String() + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Format returns the canonical text of prog.
// Parsing the output of Format returns an equal program.
func Format(prog isa.Program) string {
	if len(prog) == 0 {
		return ""
	}
	return strings.Join(slices2.Map(prog, isa.I.String), "\n") + "\n"
}

// PrintListing writes prog with instruction indexes, marking the instruction at pc.
func PrintListing(w io.Writer, prog isa.Program, pc isa.Int) error {
	width := len(fmt.Sprint(len(prog)))
	for i, ix := range prog {
		mark := " "
		if isa.Int(i) == pc {
			mark = ">"
		}
		if _, err := fmt.Fprintf(w, "%s %*d  %v\n", mark, width, i, ix); err != nil {
			return err
		}
	}
	return nil
}
