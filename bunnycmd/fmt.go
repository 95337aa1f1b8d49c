package bunnycmd

import (
	"go.brendoncarroll.net/star"

	"bunnyvm.org/bunny/asm"
)

var fmtCmd = star.Command{
	Metadata: star.Metadata{
		Short: "print a program in canonical form",
	},
	Pos: []star.IParam{progParam},
	F: func(c star.Context) error {
		return asm.Print(c.StdOut, progParam.Load(c))
	},
}
