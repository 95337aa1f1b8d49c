package testutil

import (
	"context"
	"net"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"go.brendoncarroll.net/stdctx/logctx"
	"go.uber.org/zap"

	"bunnyvm.org/bunny/internal/dbutil"
)

// Context returns a context carrying a development logger, which is cancelled at the end of the test.
func Context(t testing.TB) context.Context {
	ctx := context.Background()
	ctx, cf := context.WithCancel(ctx)
	t.Cleanup(cf)
	l, err := zap.NewDevelopment()
	require.NoError(t, err)
	ctx = logctx.NewContext(ctx, l)
	return ctx
}

// NewDB returns an empty in memory database, which is closed at the end of the test.
func NewDB(t testing.TB) *sqlx.DB {
	db, err := dbutil.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// Listen returns a TCP listener on a random local port, which is closed at the end of the test.
func Listen(t testing.TB) net.Listener {
	l, err := net.Listen("tcp", "127.0.0.1:")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}
