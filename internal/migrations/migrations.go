// package migrations applies a schema to a database, one statement at a time.
// The number of statements applied is kept in the user_version pragma.
package migrations

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// State is a sequence of statements which build a schema.
// States are immutable.
type State struct {
	stmts []string
}

func InitialState() *State {
	return &State{}
}

// ApplyStmt returns a new State with stmt applied after x.
func (x *State) ApplyStmt(stmt string) *State {
	stmts := append([]string{}, x.stmts...)
	return &State{stmts: append(stmts, stmt)}
}

// Version is the number of statements in the State
func (x *State) Version() int {
	return len(x.stmts)
}

// Migrate applies the statements from target which have not been applied to db.
func Migrate(ctx context.Context, db *sqlx.DB, target *State) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	var current int
	if err := tx.GetContext(ctx, &current, `PRAGMA user_version`); err != nil {
		return err
	}
	if current > target.Version() {
		return fmt.Errorf("database is at version %d, which is newer than %d", current, target.Version())
	}
	for i := current; i < target.Version(); i++ {
		if _, err := tx.ExecContext(ctx, target.stmts[i]); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	// pragmas do not take parameters
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`PRAGMA user_version = %d`, target.Version())); err != nil {
		return err
	}
	return tx.Commit()
}
