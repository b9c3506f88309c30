package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/batch-weighing/internal/apperr"
	"github.com/Spok95/batch-weighing/internal/domain/archive"
	"github.com/Spok95/batch-weighing/internal/domain/catalog"
	"github.com/Spok95/batch-weighing/internal/domain/process"
	"github.com/Spok95/batch-weighing/internal/infra/logger"
	"github.com/Spok95/batch-weighing/internal/infra/persistence/sqlite"
	"github.com/Spok95/batch-weighing/internal/validation"
)

func TestStateSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data", "weighd.db")

	s, err := sqlite.Open(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, path, s.Path())

	cat := catalog.NewService(s.Catalog(), validation.DefaultRules(), logger.Discard())
	_, err = cat.Register(ctx, "100", []string{"10", "11"})
	require.NoError(t, err)
	procs := process.NewService(s.Processes(), validation.DefaultRules(), logger.Discard())
	p, err := procs.Open(ctx, "1", "2", "100")
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = sqlite.Open(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	cat = catalog.NewService(s.Catalog(), validation.DefaultRules(), logger.Discard())
	got, err := cat.Get(ctx, "100")
	require.NoError(t, err)
	assert.Len(t, got.Materials, 2)

	mats, err := cat.Materials(ctx)
	require.NoError(t, err)
	for _, m := range mats {
		assert.Equal(t, []string{got.ID}, m.Products)
	}

	procs = process.NewService(s.Processes(), validation.DefaultRules(), logger.Discard())
	reopened, err := procs.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "2", reopened.BatchNo)

	kinds, err := s.Packaging().ListPackaging(ctx)
	require.NoError(t, err)
	assert.Len(t, kinds, 4)
}

func TestFreshDatabaseIsEmpty(t *testing.T) {
	ctx := context.Background()
	s, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "empty.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	items, total, err := s.Catalog().ListProducts(ctx, catalog.Filter{}, 0, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, items)
}

func TestFailedWriteIsNotApplied(t *testing.T) {
	ctx := context.Background()
	s, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "weighd.db"))
	require.NoError(t, err)

	rules := validation.DefaultRules()
	cat := catalog.NewService(s.Catalog(), rules, logger.Discard())
	_, err = cat.Register(ctx, "100", []string{"10"})
	require.NoError(t, err)

	procs := process.NewService(s.Processes(), rules, logger.Discard())
	p, err := procs.Open(ctx, "1", "2", "100")
	require.NoError(t, err)
	_, w, err := procs.BeginWeighing(ctx, p.ID, "10", "bag")
	require.NoError(t, err)
	_, _, err = procs.EndWeighing(ctx, process.EndWeighingInput{
		ProcessID: p.ID, WeighingID: w.ID, Quantity: 100, TolerancePct: 5, TargetQty: 100,
	})
	require.NoError(t, err)

	require.NoError(t, s.Close())

	for range 2 {
		_, err = procs.Close(ctx, p.ID, time.Time{})
		require.ErrorIs(t, err, apperr.ErrInternal)
	}

	still, err := procs.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, still.Materials, 1)

	_, total, err := archive.NewService(s.Archive()).Query(ctx, archive.Filter{}, 0, 0)
	require.NoError(t, err)
	assert.Zero(t, total)

	_, err = cat.Register(ctx, "101", []string{"11"})
	require.ErrorIs(t, err, apperr.ErrInternal)
	_, err = cat.Get(ctx, "101")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}
