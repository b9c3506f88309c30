package catalog_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/batch-weighing/internal/apperr"
	"github.com/Spok95/batch-weighing/internal/domain/catalog"
	"github.com/Spok95/batch-weighing/internal/infra/logger"
	"github.com/Spok95/batch-weighing/internal/infra/persistence/memory"
	"github.com/Spok95/batch-weighing/internal/validation"
)

type orphanCounter struct{ n int }

func (o *orphanCounter) OrphansPruned(n int) { o.n += n }

func newService(t *testing.T, store catalog.Store, opts ...catalog.Option) *catalog.Service {
	t.Helper()
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	tick := 0
	clock := func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	opts = append([]catalog.Option{catalog.WithClock(clock)}, opts...)
	return catalog.NewService(store, validation.DefaultRules(), logger.Discard(), opts...)
}

func materialNos(p *catalog.Product) []string {
	out := make([]string, 0, len(p.Materials))
	for _, m := range p.Materials {
		out = append(out, m.No)
	}
	return out
}

// assertConsistent checks the product/material mirror in both directions and
// that no material is left without a referrer.
func assertConsistent(t *testing.T, svc *catalog.Service) {
	t.Helper()
	ctx := context.Background()
	products, _, err := svc.List(ctx, catalog.Filter{}, 1000, 0)
	require.NoError(t, err)
	mats, err := svc.Materials(ctx)
	require.NoError(t, err)

	refs := map[string]map[string]bool{}
	for _, m := range mats {
		assert.NotEmpty(t, m.Products, "material %s is an orphan", m.No)
		refs[m.ID] = map[string]bool{}
		for _, pid := range m.Products {
			refs[m.ID][pid] = true
		}
	}
	forward := 0
	for _, p := range products {
		for _, m := range p.Materials {
			forward++
			assert.True(t, refs[m.ID][p.ID], "material %s does not list product %s", m.No, p.No)
		}
	}
	backward := 0
	for _, set := range refs {
		backward += len(set)
	}
	assert.Equal(t, forward, backward)
}

func TestRegisterThenGet(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, memory.New().Catalog())

	created, err := svc.Register(ctx, "10001234", []string{"20001111"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)

	got, err := svc.Get(ctx, "10001234")
	require.NoError(t, err)
	require.Len(t, got.Materials, 1)
	assert.Equal(t, "20001111", got.Materials[0].No)
	assertConsistent(t, svc)
}

func TestRegisterRejects(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, memory.New().Catalog())
	_, err := svc.Register(ctx, "100", []string{"200"})
	require.NoError(t, err)

	tests := []struct {
		name string
		no   string
		mats []string
		want error
	}{
		{"non numeric product", "10a", []string{"1"}, apperr.ErrInvalidFormat},
		{"empty product", "", []string{"1"}, apperr.ErrInvalidFormat},
		{"product too long", "1234567890123456789", []string{"1"}, apperr.ErrInvalidFormat},
		{"non numeric material", "101", []string{"x"}, apperr.ErrInvalidFormat},
		{"duplicate materials", "101", []string{"5", "5"}, apperr.ErrConflict},
		{"existing product", "100", []string{"300"}, apperr.ErrConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.no, tt.mats)
			require.ErrorIs(t, err, tt.want)
		})
	}

	mats, err := svc.Materials(ctx)
	require.NoError(t, err)
	require.Len(t, mats, 1, "rejected requests must not create materials")
	assert.Equal(t, "200", mats[0].No)
}

func TestRegisterSharesMaterials(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, memory.New().Catalog())

	a, err := svc.Register(ctx, "1", []string{"10", "11"})
	require.NoError(t, err)
	b, err := svc.Register(ctx, "2", []string{"11", "12"})
	require.NoError(t, err)
	assert.Equal(t, a.Materials[1].ID, b.Materials[0].ID, "material 11 is upserted, not duplicated")

	mats, err := svc.Materials(ctx)
	require.NoError(t, err)
	assert.Len(t, mats, 3)
	assertConsistent(t, svc)
}

func TestUpdateAppliesSymmetricDifference(t *testing.T) {
	ctx := context.Background()
	counter := &orphanCounter{}
	svc := newService(t, memory.New().Catalog(), catalog.WithMetrics(counter))

	p, err := svc.Register(ctx, "1", []string{"100", "200"}) // A, B
	require.NoError(t, err)
	other, err := svc.Register(ctx, "2", []string{"200"})
	require.NoError(t, err)
	bID := p.Materials[1].ID

	updated, err := svc.Update(ctx, p.ID, "1", []string{"200", "300"}) // B, C
	require.NoError(t, err)
	assert.Equal(t, []string{"200", "300"}, materialNos(updated))
	assert.Equal(t, bID, updated.Materials[0].ID, "B keeps its identity")

	mats, err := svc.Materials(ctx)
	require.NoError(t, err)
	byNo := map[string]catalog.Material{}
	for _, m := range mats {
		byNo[m.No] = m
	}
	assert.NotContains(t, byNo, "100", "A lost its only referrer")
	assert.ElementsMatch(t, []string{p.ID, other.ID}, byNo["200"].Products)
	assert.Equal(t, []string{p.ID}, byNo["300"].Products)
	assert.Equal(t, 1, counter.n)
	assertConsistent(t, svc)
}

func TestUpdateRename(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, memory.New().Catalog())
	p, err := svc.Register(ctx, "1", []string{"10"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, "2", []string{"10"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, p.ID, "2", []string{"10"})
	require.ErrorIs(t, err, apperr.ErrConflict)

	renamed, err := svc.Update(ctx, p.ID, "3", []string{"10"})
	require.NoError(t, err)
	assert.Equal(t, "3", renamed.No)
	assert.Equal(t, p.CreatedAt, renamed.CreatedAt)
	assert.True(t, renamed.UpdatedAt.After(p.UpdatedAt))

	_, err = svc.Get(ctx, "1")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	_, err = svc.Update(ctx, "missing", "4", []string{"10"})
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDeleteCollectsOrphans(t *testing.T) {
	ctx := context.Background()
	counter := &orphanCounter{}
	svc := newService(t, memory.New().Catalog(), catalog.WithMetrics(counter))

	p, err := svc.Register(ctx, "1", []string{"10", "11"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, "2", []string{"11"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, p.ID))
	_, err = svc.Get(ctx, "1")
	require.ErrorIs(t, err, apperr.ErrNotFound)

	mats, err := svc.Materials(ctx)
	require.NoError(t, err)
	require.Len(t, mats, 1)
	assert.Equal(t, "11", mats[0].No)
	assert.Equal(t, 1, counter.n)
	assertConsistent(t, svc)

	require.ErrorIs(t, svc.Delete(ctx, p.ID), apperr.ErrNotFound)
}

func TestDeleteMaterialLink(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, memory.New().Catalog())
	p, err := svc.Register(ctx, "1", []string{"10", "11"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteMaterialLink(ctx, p.ID, p.Materials[0].ID))
	got, err := svc.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, []string{"11"}, materialNos(got))

	err = svc.DeleteMaterialLink(ctx, p.ID, p.Materials[0].ID)
	require.ErrorIs(t, err, apperr.ErrBadRequest)
	err = svc.DeleteMaterialLink(ctx, "missing", p.Materials[1].ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	assertConsistent(t, svc)
}

func TestListPagesInInsertionOrder(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, memory.New().Catalog(), catalog.WithPageSize(2))
	for i := 1; i <= 5; i++ {
		_, err := svc.Register(ctx, fmt.Sprint(i), []string{"99"})
		require.NoError(t, err)
	}

	page, total, err := svc.List(ctx, catalog.Filter{}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	require.Len(t, page, 2)
	assert.Equal(t, "1", page[0].No)

	page, _, err = svc.List(ctx, catalog.Filter{}, 2, 4)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "5", page[0].No)

	page, total, err = svc.List(ctx, catalog.Filter{No: "3"}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, page, 1)
	assert.Equal(t, "3", page[0].No)
}

var errDisk = errors.New("disk full")

// failingStore breaks DeleteMaterial so multi-step mutations fail midway.
type failingStore struct{ catalog.Store }

func (s failingStore) WithTx(ctx context.Context, fn func(tx catalog.Tx) error) error {
	return s.Store.WithTx(ctx, func(tx catalog.Tx) error { return fn(failingTx{tx}) })
}

type failingTx struct{ catalog.Tx }

func (failingTx) DeleteMaterial(context.Context, string) error { return errDisk }

func TestUpdateIsAtomicOnStorageFailure(t *testing.T) {
	ctx := context.Background()
	mem := memory.New()
	good := newService(t, mem.Catalog())
	p, err := good.Register(ctx, "1", []string{"10", "11"})
	require.NoError(t, err)

	bad := newService(t, failingStore{mem.Catalog()})
	_, err = bad.Update(ctx, p.ID, "1", []string{"11", "12"})
	require.ErrorIs(t, err, apperr.ErrInternal)
	require.ErrorIs(t, err, errDisk)

	got, err := good.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, []string{"10", "11"}, materialNos(got))
	mats, err := good.Materials(ctx)
	require.NoError(t, err)
	assert.Len(t, mats, 2, "material 12 must not survive the rollback")
	assertConsistent(t, good)
}
