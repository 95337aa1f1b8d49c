package runlog

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"go.brendoncarroll.net/state"
	"go.brendoncarroll.net/state/kv"

	"bunnyvm.org/bunny"
	"bunnyvm.org/bunny/isa"
)

var _ Log = &Mem{}

// Mem is a Log held in memory.
type Mem struct {
	programs *kv.MemStore[bunny.ID, isa.Program]
	runs     *kv.MemStore[uint64, Run]

	mu   sync.Mutex
	next uint64
}

func NewMem() *Mem {
	return &Mem{
		programs: kv.NewMemStore[bunny.ID, isa.Program](func(a, b bunny.ID) int {
			return a.Compare(b)
		}),
		runs: kv.NewMemStore[uint64, Run](cmp.Compare[uint64]),
		next: 1,
	}
}

func (m *Mem) PutProgram(ctx context.Context, prog isa.Program) (bunny.ID, error) {
	src, err := formatProgram(prog)
	if err != nil {
		return bunny.ID{}, err
	}
	id := bunny.Hash([]byte(src))
	if err := m.programs.Put(ctx, id, prog.Clone()); err != nil {
		return bunny.ID{}, err
	}
	return id, nil
}

func (m *Mem) GetProgram(ctx context.Context, id bunny.ID) (isa.Program, error) {
	prog, err := kv.Get(ctx, m.programs, id)
	if err != nil {
		if state.IsErrNotFound[bunny.ID](err) {
			return nil, fmt.Errorf("program %v: %w", id, ErrNotFound)
		}
		return nil, err
	}
	return prog.Clone(), nil
}

func (m *Mem) Record(ctx context.Context, run Run) (uint64, error) {
	if exists, err := m.programs.Exists(ctx, run.Program); err != nil {
		return 0, err
	} else if !exists {
		return 0, fmt.Errorf("program %v: %w", run.Program, ErrNotFound)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	run.ID = m.next
	run.Output = cloneOutput(run.Output)
	if err := m.runs.Put(ctx, run.ID, run); err != nil {
		return 0, err
	}
	m.next++
	return run.ID, nil
}

func (m *Mem) Get(ctx context.Context, id uint64) (*Run, error) {
	run, err := kv.Get(ctx, m.runs, id)
	if err != nil {
		if state.IsErrNotFound[uint64](err) {
			return nil, fmt.Errorf("run %d: %w", id, ErrNotFound)
		}
		return nil, err
	}
	run.Output = cloneOutput(run.Output)
	return &run, nil
}

func (m *Mem) List(ctx context.Context, limit int) ([]Run, error) {
	var ids []uint64
	if err := kv.ForEach(ctx, m.runs, state.TotalSpan[uint64](), func(id uint64) error {
		ids = append(ids, id)
		return nil
	}); err != nil {
		return nil, err
	}
	slices.Reverse(ids)
	ids = ids[:min(len(ids), listLimit(limit))]
	ret := make([]Run, 0, len(ids))
	for _, id := range ids {
		run, err := m.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		ret = append(ret, *run)
	}
	return ret, nil
}
