package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Spok95/batch-weighing/internal/apperr"
	"github.com/Spok95/batch-weighing/internal/validation"
)

const DefaultPageSize = 20

// Metrics receives catalog events. A nil Metrics is ignored.
type Metrics interface {
	OrphansPruned(n int)
}

type Service struct {
	store    Store
	rules    validation.Rules
	log      *slog.Logger
	metrics  Metrics
	now      func() time.Time
	newID    func() string
	pageSize int
}

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }
func WithMetrics(m Metrics) Option          { return func(s *Service) { s.metrics = m } }
func WithIDs(newID func() string) Option    { return func(s *Service) { s.newID = newID } }

func WithPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

func NewService(store Store, rules validation.Rules, log *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:    store,
		rules:    rules,
		log:      log,
		now:      time.Now,
		newID:    func() string { return uuid.Must(uuid.NewV7()).String() },
		pageSize: DefaultPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) validate(no string, materialNos []string) error {
	if err := s.rules.Check(validation.FieldProductNo, no); err != nil {
		return err
	}
	return s.rules.CheckAll(validation.FieldMaterialNo, materialNos)
}

// Register creates a product and links it to its materials, creating the
// materials that are not known yet.
func (s *Service) Register(ctx context.Context, no string, materialNos []string) (*Product, error) {
	if err := s.validate(no, materialNos); err != nil {
		return nil, err
	}

	var created *Product
	err := s.store.WithTx(ctx, func(tx Tx) error {
		existing, err := tx.ProductByNo(ctx, no)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: a product with number %s already exists", apperr.ErrConflict, no)
		}

		now := s.now().UTC()
		p := Product{ID: s.newID(), No: no, CreatedAt: now, UpdatedAt: now}
		if err := tx.InsertProduct(ctx, p); err != nil {
			return err
		}
		ids, err := s.upsertMaterials(ctx, tx, materialNos, now)
		if err != nil {
			return err
		}
		if err := tx.SetProductMaterials(ctx, p.ID, ids); err != nil {
			return err
		}
		created, err = tx.ProductByID(ctx, p.ID)
		return err
	})
	if err != nil {
		return nil, apperr.Passthrough(err)
	}
	s.log.Info("product registered", "product_no", no, "materials", len(materialNos))
	return created, nil
}

func (s *Service) upsertMaterials(ctx context.Context, tx Tx, nos []string, now time.Time) ([]string, error) {
	ids := make([]string, 0, len(nos))
	for _, no := range nos {
		m, err := tx.UpsertMaterial(ctx, Material{ID: s.newID(), No: no, CreatedAt: now, UpdatedAt: now})
		if err != nil {
			return nil, err
		}
		ids = append(ids, m.ID)
	}
	return ids, nil
}

// collectOrphans deletes every material in ids that no product references.
func collectOrphans(ctx context.Context, tx Tx, ids []string) (int, error) {
	pruned := 0
	for _, id := range ids {
		refs, err := tx.MaterialReferrers(ctx, id)
		if err != nil {
			return pruned, err
		}
		if len(refs) > 0 {
			continue
		}
		if err := tx.DeleteMaterial(ctx, id); err != nil {
			return pruned, err
		}
		pruned++
	}
	return pruned, nil
}

func (s *Service) List(ctx context.Context, f Filter, limit, offset int) ([]Product, int, error) {
	if limit <= 0 {
		limit = s.pageSize
	}
	if offset < 0 {
		offset = 0
	}
	items, total, err := s.store.ListProducts(ctx, f, limit, offset)
	if err != nil {
		return nil, 0, apperr.Internal(err)
	}
	return items, total, nil
}

func (s *Service) Get(ctx context.Context, no string) (*Product, error) {
	p, err := s.store.GetProductByNo(ctx, no)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: product with number %s doesn't exist", apperr.ErrNotFound, no)
	}
	return p, nil
}

// Update renames a product and replaces its material list. Materials that
// lose their last referrer are deleted in the same transaction.
func (s *Service) Update(ctx context.Context, id, no string, materialNos []string) (*Product, error) {
	if err := s.validate(no, materialNos); err != nil {
		return nil, err
	}

	var (
		updated *Product
		pruned  int
	)
	err := s.store.WithTx(ctx, func(tx Tx) error {
		pruned = 0
		current, err := tx.ProductByID(ctx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("%w: product %s", apperr.ErrNotFound, id)
		}
		if no != current.No {
			other, err := tx.ProductByNo(ctx, no)
			if err != nil {
				return err
			}
			if other != nil && other.ID != id {
				return fmt.Errorf("%w: a product with number %s already exists", apperr.ErrConflict, no)
			}
		}

		keep := make(map[string]bool, len(materialNos))
		for _, mno := range materialNos {
			keep[mno] = true
		}
		var removed []string
		for _, m := range current.Materials {
			if !keep[m.No] {
				removed = append(removed, m.ID)
			}
		}

		now := s.now().UTC()
		ids, err := s.upsertMaterials(ctx, tx, materialNos, now)
		if err != nil {
			return err
		}
		if err := tx.UpdateProduct(ctx, Product{ID: id, No: no, CreatedAt: current.CreatedAt, UpdatedAt: now}); err != nil {
			return err
		}
		if err := tx.SetProductMaterials(ctx, id, ids); err != nil {
			return err
		}
		if pruned, err = collectOrphans(ctx, tx, removed); err != nil {
			return err
		}
		updated, err = tx.ProductByID(ctx, id)
		return err
	})
	if err != nil {
		return nil, apperr.Passthrough(err)
	}
	s.pruned(pruned)
	s.log.Info("product updated", "product_id", id, "product_no", no, "orphans_pruned", pruned)
	return updated, nil
}

// Delete removes a product and every material left without referrers.
func (s *Service) Delete(ctx context.Context, id string) error {
	var pruned int
	err := s.store.WithTx(ctx, func(tx Tx) error {
		pruned = 0
		current, err := tx.ProductByID(ctx, id)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("%w: product %s", apperr.ErrNotFound, id)
		}
		if err := tx.SetProductMaterials(ctx, id, nil); err != nil {
			return err
		}
		if pruned, err = collectOrphans(ctx, tx, current.MaterialIDs()); err != nil {
			return err
		}
		return tx.DeleteProduct(ctx, id)
	})
	if err != nil {
		return apperr.Passthrough(err)
	}
	s.pruned(pruned)
	s.log.Info("product deleted", "product_id", id, "orphans_pruned", pruned)
	return nil
}

// DeleteMaterialLink drops a single product/material edge.
func (s *Service) DeleteMaterialLink(ctx context.Context, productID, materialID string) error {
	var pruned int
	err := s.store.WithTx(ctx, func(tx Tx) error {
		pruned = 0
		current, err := tx.ProductByID(ctx, productID)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("%w: product %s", apperr.ErrNotFound, productID)
		}
		rest := make([]string, 0, len(current.Materials))
		found := false
		for _, m := range current.Materials {
			if m.ID == materialID {
				found = true
				continue
			}
			rest = append(rest, m.ID)
		}
		if !found {
			return fmt.Errorf("%w: product %s does not reference material %s", apperr.ErrBadRequest, productID, materialID)
		}
		if err := tx.SetProductMaterials(ctx, productID, rest); err != nil {
			return err
		}
		current.UpdatedAt = s.now().UTC()
		current.Materials = nil
		if err := tx.UpdateProduct(ctx, *current); err != nil {
			return err
		}
		pruned, err = collectOrphans(ctx, tx, []string{materialID})
		return err
	})
	if err != nil {
		return apperr.Passthrough(err)
	}
	s.pruned(pruned)
	return nil
}

// Materials lists every stored material with its referrers.
func (s *Service) Materials(ctx context.Context) ([]Material, error) {
	items, err := s.store.ListMaterials(ctx)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return items, nil
}

func (s *Service) pruned(n int) {
	if n > 0 && s.metrics != nil {
		s.metrics.OrphansPruned(n)
	}
}
