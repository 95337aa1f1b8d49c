package bunnycmd

import (
	"go.brendoncarroll.net/star"

	"bunnyvm.org/bunny/runlog"
)

var history = star.Command{
	Metadata: star.Metadata{
		Short: "list the runs recorded in a database",
	},
	Flags: []star.IParam{DBParam, limitParam},
	F: func(c star.Context) error {
		l := runlog.NewSQL(DBParam.Load(c))
		runs, err := l.List(c.Context, limitParam.Load(c))
		if err != nil {
			return err
		}
		c.Printf("%-6s %-10s %-12s %-32s %s\n", "ID", "STATUS", "STEPS", "REGS", "PROGRAM")
		for _, r := range runs {
			c.Printf("%-6d %-10v %-12d %-32v %v\n", r.ID, r.Status, r.Steps, r.Registers, r.Program)
		}
		return nil
	},
}
