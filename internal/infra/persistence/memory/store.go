// Package memory is a transactional in-process store. Each transaction works
// on a copy of the state that replaces the live state only when the callback
// succeeds, so a failed operation leaves nothing behind.
package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/Spok95/batch-weighing/internal/domain/packaging"
)

var (
	ErrUniqueViolation = errors.New("memory: unique constraint violated")
	ErrStillReferenced = errors.New("memory: row is still referenced")
	ErrMissingRow      = errors.New("memory: row does not exist")
)

// CommitHook receives the state a transaction is about to commit. It runs
// under the store lock; an error aborts the commit and the live state stays
// as it was.
type CommitHook func(ctx context.Context, snap Snapshot) error

type Store struct {
	mu    sync.RWMutex
	state state
	hooks []CommitHook
}

type Option func(*Store)

func WithCommitHook(h CommitHook) Option {
	return func(s *Store) { s.hooks = append(s.hooks, h) }
}

// WithPackaging replaces the default packaging kinds.
func WithPackaging(kinds []packaging.Kind) Option {
	return func(s *Store) { s.state.packaging = append([]packaging.Kind(nil), kinds...) }
}

func New(opts ...Option) *Store {
	s := &Store{state: newState()}
	s.state.packaging = append([]packaging.Kind(nil), packaging.Defaults...)
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// run serializes every transaction under one lock.
func (s *Store) run(ctx context.Context, fn func(st *state) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.state.clone()
	if err := fn(&next); err != nil {
		return err
	}
	if len(s.hooks) > 0 {
		snap := next.snapshot()
		for _, h := range s.hooks {
			if err := h(ctx, snap); err != nil {
				return err
			}
		}
	}
	s.state = next
	return nil
}

func (s *Store) read(fn func(st state)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.state)
}

// Export returns a deep copy of the current state.
func (s *Store) Export() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.snapshot()
}

// Import replaces the current state. An empty packaging list keeps the
// packaging kinds already loaded.
func (s *Store) Import(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kinds := s.state.packaging
	s.state = stateFromSnapshot(snap)
	if len(s.state.packaging) == 0 {
		s.state.packaging = kinds
	}
}

func (s *Store) Catalog() *Catalog     { return &Catalog{s: s} }
func (s *Store) Processes() *Processes { return &Processes{s: s} }
func (s *Store) Archive() *Archive     { return &Archive{s: s} }
func (s *Store) Packaging() *Packaging { return &Packaging{s: s} }
