package runlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.brendoncarroll.net/tai64"

	"bunnyvm.org/bunny"
	"bunnyvm.org/bunny/asm"
	"bunnyvm.org/bunny/bvm"
	"bunnyvm.org/bunny/internal/cadata"
	"bunnyvm.org/bunny/internal/dbutil"
	"bunnyvm.org/bunny/internal/migrations"
	"bunnyvm.org/bunny/isa"
)

// Migration adds the run log tables to x.
func Migration(x *migrations.State) *migrations.State {
	return x.
		ApplyStmt(`CREATE TABLE programs (
		id BLOB NOT NULL,
		source TEXT NOT NULL,

		PRIMARY KEY(id)
	) WITHOUT ROWID, STRICT;`).
		ApplyStmt(`CREATE TABLE runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		program BLOB NOT NULL,
		presets TEXT NOT NULL,
		a INTEGER NOT NULL,
		b INTEGER NOT NULL,
		c INTEGER NOT NULL,
		d INTEGER NOT NULL,
		pc INTEGER NOT NULL,
		status TEXT NOT NULL,
		steps INTEGER NOT NULL,
		output TEXT NOT NULL,
		at_s INTEGER NOT NULL,
		at_ns INTEGER NOT NULL,

		FOREIGN KEY(program) REFERENCES programs(id)
	) STRICT;`).
		ApplyStmt(`CREATE INDEX runs_program ON runs(program);`)
}

var currentSchema = Migration(migrations.InitialState())

// Setup brings the schema of db up to date.
func Setup(ctx context.Context, db *sqlx.DB) error {
	return migrations.Migrate(ctx, db, currentSchema)
}

var _ Log = &SQL{}

// SQL is a Log stored in a sqlite database.
type SQL struct {
	db *sqlx.DB
}

// NewSQL returns a Log using db.
// Setup must have been called on db.
func NewSQL(db *sqlx.DB) *SQL {
	return &SQL{db: db}
}

func (s *SQL) PutProgram(ctx context.Context, prog isa.Program) (bunny.ID, error) {
	src, err := formatProgram(prog)
	if err != nil {
		return bunny.ID{}, err
	}
	id := bunny.Hash([]byte(src))
	if _, err := s.db.ExecContext(ctx, `INSERT INTO programs (id, source) VALUES (?, ?)
		ON CONFLICT DO NOTHING`, id, src); err != nil {
		return bunny.ID{}, err
	}
	return id, nil
}

func (s *SQL) GetProgram(ctx context.Context, id bunny.ID) (isa.Program, error) {
	var src string
	if err := s.db.GetContext(ctx, &src, `SELECT source FROM programs WHERE id = ?`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("program %v: %w", id, ErrNotFound)
		}
		return nil, err
	}
	if err := cadata.Check(bunny.Hash, id, []byte(src)); err != nil {
		return nil, fmt.Errorf("program %v: %w", id, err)
	}
	return asm.ParseString(src)
}

func (s *SQL) Record(ctx context.Context, run Run) (uint64, error) {
	presets, err := json.Marshal(run.Presets)
	if err != nil {
		return 0, err
	}
	output, err := json.Marshal(run.Output)
	if err != nil {
		return 0, err
	}
	if string(output) == "null" {
		output = []byte("[]")
	}
	return dbutil.DoTx1(ctx, s.db, func(tx *sqlx.Tx) (uint64, error) {
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM programs WHERE id = ?)`, run.Program); err != nil {
			return 0, err
		}
		if !exists {
			return 0, fmt.Errorf("program %v: %w", run.Program, ErrNotFound)
		}
		var id uint64
		err := tx.GetContext(ctx, &id, `INSERT INTO runs
			(program, presets, a, b, c, d, pc, status, steps, output, at_s, at_ns)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			RETURNING id`,
			run.Program, string(presets),
			run.Registers[isa.A], run.Registers[isa.B], run.Registers[isa.C], run.Registers[isa.D],
			run.PC, run.Status.String(), int64(run.Steps), string(output),
			int64(run.At.Seconds), int64(run.At.Nanoseconds),
		)
		return id, err
	})
}

type runRow struct {
	ID      int64    `db:"id"`
	Program bunny.ID `db:"program"`
	Presets string   `db:"presets"`
	A       int32    `db:"a"`
	B       int32    `db:"b"`
	C       int32    `db:"c"`
	D       int32    `db:"d"`
	PC      int32    `db:"pc"`
	Status  string   `db:"status"`
	Steps   int64    `db:"steps"`
	Output  string   `db:"output"`
	AtS     int64    `db:"at_s"`
	AtNS    int64    `db:"at_ns"`
}

func (r *runRow) toRun() (*Run, error) {
	run := Run{
		ID:        uint64(r.ID),
		Program:   r.Program,
		Registers: bvm.Registers{r.A, r.B, r.C, r.D},
		PC:        r.PC,
		Steps:     uint64(r.Steps),
		At: tai64.TAI64N{
			Seconds:     uint64(r.AtS),
			Nanoseconds: uint32(r.AtNS),
		},
	}
	if err := run.Status.UnmarshalText([]byte(r.Status)); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(r.Presets), &run.Presets); err != nil {
		return nil, fmt.Errorf("run %d presets: %w", r.ID, err)
	}
	if err := json.Unmarshal([]byte(r.Output), &run.Output); err != nil {
		return nil, fmt.Errorf("run %d output: %w", r.ID, err)
	}
	run.Output = cloneOutput(run.Output)
	return &run, nil
}

const runCols = `id, program, presets, a, b, c, d, pc, status, steps, output, at_s, at_ns`

func (s *SQL) Get(ctx context.Context, id uint64) (*Run, error) {
	var row runRow
	if err := s.db.GetContext(ctx, &row, `SELECT `+runCols+` FROM runs WHERE id = ?`, int64(id)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return row.toRun()
}

func (s *SQL) List(ctx context.Context, limit int) ([]Run, error) {
	var rows []runRow
	if err := s.db.SelectContext(ctx, &rows, `SELECT `+runCols+` FROM runs ORDER BY id DESC LIMIT ?`, listLimit(limit)); err != nil {
		return nil, err
	}
	ret := make([]Run, 0, len(rows))
	for i := range rows {
		run, err := rows[i].toRun()
		if err != nil {
			return nil, err
		}
		ret = append(ret, *run)
	}
	return ret, nil
}
