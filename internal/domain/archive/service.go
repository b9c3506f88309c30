package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Spok95/batch-weighing/internal/apperr"
)

var ErrIncomplete = errors.New("archive: record is not completed")

// Append writes rec exactly once. It assigns the id and creation time and
// refuses records that do not describe a finished process.
func Append(ctx context.Context, w Writer, rec Record, now time.Time) (*Record, error) {
	if !rec.IsCompleted || rec.EndTime.IsZero() || rec.ProcessID == "" {
		return nil, fmt.Errorf("%w: %w", apperr.ErrBadRequest, ErrIncomplete)
	}
	if rec.ID == "" {
		rec.ID = uuid.Must(uuid.NewV7()).String()
	}
	rec.CreatedAt = now.UTC()
	if err := w.InsertArchive(ctx, rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

type Service struct {
	store Store
}

func NewService(store Store) *Service { return &Service{store: store} }

// Query lists records newest first. A non-positive limit returns every
// record after offset.
func (s *Service) Query(ctx context.Context, f Filter, limit, offset int) ([]Record, int, error) {
	if offset < 0 {
		offset = 0
	}
	items, total, err := s.store.ListArchive(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal(err)
	}
	return items, total, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Record, error) {
	rec, err := s.store.GetArchive(ctx, id)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if rec == nil {
		return nil, fmt.Errorf("%w: archive record %s", apperr.ErrNotFound, id)
	}
	return rec, nil
}
