package bunnycmd

import (
	"go.brendoncarroll.net/star"

	"bunnyvm.org/bunny/bunnyhttp"
	"bunnyvm.org/bunny/runlog"
	"bunnyvm.org/bunny/search"
)

var serve = star.Command{
	Metadata: star.Metadata{
		Short: "serve the HTTP API",
	},
	Flags: []star.IParam{DBParam, ListenerParam},
	F: func(c star.Context) error {
		l := runlog.NewSQL(DBParam.Load(c))
		lis := ListenerParam.Load(c)
		return bunnyhttp.Serve(logContext(c), lis, l, search.NewSearcher(256))
	},
}
