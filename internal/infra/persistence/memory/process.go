package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/Spok95/batch-weighing/internal/apperr"
	"github.com/Spok95/batch-weighing/internal/domain/archive"
	"github.com/Spok95/batch-weighing/internal/domain/packaging"
	"github.com/Spok95/batch-weighing/internal/domain/process"
)

var (
	_ process.Store   = (*Processes)(nil)
	_ archive.Store   = (*Archive)(nil)
	_ packaging.Store = (*Packaging)(nil)
)

type Processes struct{ s *Store }

// WithTx holds the store lock for the whole callback, which serializes
// every mutation of every process.
func (p *Processes) WithTx(ctx context.Context, fn func(tx process.Tx) error) error {
	return p.s.run(ctx, func(st *state) error { return fn(processTx{st: st}) })
}

func (p *Processes) GetProcess(_ context.Context, id string) (*process.Process, error) {
	var out *process.Process
	p.s.read(func(st state) {
		if pr, ok := st.processes[id]; ok {
			cp := pr.Clone()
			out = &cp
		}
	})
	return out, nil
}

type processTx struct{ st *state }

func (t processTx) ProductExists(_ context.Context, no string) (bool, error) {
	_, ok := t.st.productByNo(no)
	return ok, nil
}

func (t processTx) InsertProcess(_ context.Context, p process.Process) error {
	if _, ok := t.st.processes[p.ID]; ok {
		return fmt.Errorf("%w: process %s", ErrUniqueViolation, p.ID)
	}
	t.st.processes[p.ID] = p.Clone()
	return nil
}

func (t processTx) LockProcess(_ context.Context, id string) (*process.Process, error) {
	pr, ok := t.st.processes[id]
	if !ok {
		return nil, nil
	}
	cp := pr.Clone()
	return &cp, nil
}

func (t processTx) SaveProcess(_ context.Context, p process.Process) error {
	if _, ok := t.st.processes[p.ID]; !ok {
		return fmt.Errorf("%w: process %s", ErrMissingRow, p.ID)
	}
	t.st.processes[p.ID] = p.Clone()
	return nil
}

func (t processTx) DeleteProcess(_ context.Context, id string) error {
	delete(t.st.processes, id)
	return nil
}

func (t processTx) InsertArchive(_ context.Context, rec archive.Record) error {
	for _, r := range t.st.archive {
		if r.ProcessID == rec.ProcessID {
			return fmt.Errorf("%w: process %s is already archived", apperr.ErrConflict, rec.ProcessID)
		}
	}
	if _, ok := t.st.archive[rec.ID]; ok {
		return fmt.Errorf("%w: archive %s", ErrUniqueViolation, rec.ID)
	}
	rec.Materials = append([]archive.Weighing(nil), rec.Materials...)
	t.st.archive[rec.ID] = rec
	return nil
}

type Archive struct{ s *Store }

func (a *Archive) ListArchive(_ context.Context, f archive.Filter, limit, offset int) ([]archive.Record, int, error) {
	var matched []archive.Record
	a.s.read(func(st state) {
		for _, r := range st.archive {
			if r.IsCompleted && f.Match(r) {
				matched = append(matched, r)
			}
		}
	})
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	return page(matched, limit, offset), len(matched), nil
}

func (a *Archive) GetArchive(_ context.Context, id string) (*archive.Record, error) {
	var out *archive.Record
	a.s.read(func(st state) {
		if r, ok := st.archive[id]; ok {
			out = &r
		}
	})
	return out, nil
}

type Packaging struct{ s *Store }

func (p *Packaging) ListPackaging(_ context.Context) ([]packaging.Kind, error) {
	var out []packaging.Kind
	p.s.read(func(st state) {
		out = append(out, st.packaging...)
	})
	return out, nil
}
