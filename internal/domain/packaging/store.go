package packaging

import (
	"context"

	"github.com/Spok95/batch-weighing/internal/apperr"
)

type Store interface {
	ListPackaging(ctx context.Context) ([]Kind, error)
}

type Service struct{ store Store }

func NewService(store Store) *Service { return &Service{store: store} }

func (s *Service) List(ctx context.Context) ([]Kind, error) {
	items, err := s.store.ListPackaging(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if items == nil {
		items = []Kind{}
	}
	return items, nil
}
