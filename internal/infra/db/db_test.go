package db_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/Spok95/batch-weighing/internal/apperr"
	"github.com/Spok95/batch-weighing/internal/domain/archive"
	"github.com/Spok95/batch-weighing/internal/domain/catalog"
	"github.com/Spok95/batch-weighing/internal/domain/packaging"
	"github.com/Spok95/batch-weighing/internal/domain/process"
	"github.com/Spok95/batch-weighing/internal/infra/db"
	"github.com/Spok95/batch-weighing/internal/infra/logger"
	"github.com/Spok95/batch-weighing/internal/validation"
)

// connect migrates and opens the database named by WEIGHD_TEST_POSTGRES_DSN,
// emptying every table first. Tests are skipped when it is unset.
func connect(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("WEIGHD_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("WEIGHD_TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx, dsn, logger.Discard()))
	pool, err := db.Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	_, err = pool.Exec(ctx, `TRUNCATE product_materials, products, materials, processes, archived_processes`)
	require.NoError(t, err)
	return pool
}

func TestCatalogRepo(t *testing.T) {
	ctx := context.Background()
	pool := connect(t)
	svc := catalog.NewService(catalog.NewRepo(pool), validation.DefaultRules(), logger.Discard())

	p, err := svc.Register(ctx, "100", []string{"10", "11"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, "101", []string{"11"})
	require.NoError(t, err)
	_, err = svc.Register(ctx, "100", []string{"12"})
	require.ErrorIs(t, err, apperr.ErrConflict)

	updated, err := svc.Update(ctx, p.ID, "100", []string{"11", "12"})
	require.NoError(t, err)
	require.Len(t, updated.Materials, 2)
	assert.Equal(t, "11", updated.Materials[0].No)

	mats, err := svc.Materials(ctx)
	require.NoError(t, err)
	nos := make([]string, 0, len(mats))
	for _, m := range mats {
		nos = append(nos, m.No)
		assert.NotEmpty(t, m.Products)
	}
	assert.ElementsMatch(t, []string{"11", "12"}, nos)

	require.NoError(t, svc.Delete(ctx, p.ID))
	mats, err = svc.Materials(ctx)
	require.NoError(t, err)
	require.Len(t, mats, 1)
	assert.Equal(t, "11", mats[0].No)

	items, total, err := svc.List(ctx, catalog.Filter{}, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, "101", items[0].No)
}

func TestProcessRepoArchivesOnce(t *testing.T) {
	ctx := context.Background()
	pool := connect(t)
	_, err := catalog.NewService(catalog.NewRepo(pool), validation.DefaultRules(), logger.Discard()).
		Register(ctx, "100", []string{"10"})
	require.NoError(t, err)

	svc := process.NewService(process.NewRepo(pool), validation.DefaultRules(), logger.Discard())
	p, err := svc.Open(ctx, "1", "2", "100")
	require.NoError(t, err)
	_, w, err := svc.BeginWeighing(ctx, p.ID, "10", "Bag")
	require.NoError(t, err)
	_, _, err = svc.EndWeighing(ctx, process.EndWeighingInput{
		ProcessID: p.ID, WeighingID: w.ID, Quantity: 50, TolerancePct: 10, TargetQty: 50,
		EndTime: time.Now().Add(time.Second),
	})
	require.NoError(t, err)

	res, err := svc.Close(ctx, p.ID, time.Time{})
	require.NoError(t, err)
	require.Equal(t, process.OutcomeArchived, res.Outcome)
	_, err = svc.Close(ctx, p.ID, time.Time{})
	require.ErrorIs(t, err, apperr.ErrNotFound)

	arch := archive.NewService(archive.NewRepo(pool))
	recs, total, err := arch.Query(ctx, archive.Filter{No: "1"}, 0, 0)
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, recs[0].Materials, 1)
	assert.Equal(t, 50.0, recs[0].Materials[0].Quantity)
}

func TestProcessRowLockSerializesWeighings(t *testing.T) {
	const n = 16
	ctx := context.Background()
	pool := connect(t)
	_, err := catalog.NewService(catalog.NewRepo(pool), validation.DefaultRules(), logger.Discard()).
		Register(ctx, "100", []string{"10"})
	require.NoError(t, err)

	svc := process.NewService(process.NewRepo(pool), validation.DefaultRules(), logger.Discard())
	p, err := svc.Open(ctx, "1", "2", "100")
	require.NoError(t, err)

	ids := make([]string, n)
	var g errgroup.Group
	for i := range n {
		g.Go(func() error {
			_, w, err := svc.BeginWeighing(ctx, p.ID, "10", "Bag")
			if err != nil {
				return err
			}
			ids[i] = w.ID
			return nil
		})
	}
	require.NoError(t, g.Wait())

	for i, id := range ids {
		g.Go(func() error {
			if i%2 == 0 {
				_, err := svc.CancelWeighing(ctx, p.ID, id)
				return err
			}
			_, _, err := svc.EndWeighing(ctx, process.EndWeighingInput{
				ProcessID: p.ID, WeighingID: id, Quantity: 50, TolerancePct: 10, TargetQty: 50,
				EndTime: time.Now().Add(time.Second),
			})
			return err
		})
	}
	require.NoError(t, g.Wait())

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got.Materials, n/2)
	assert.True(t, got.Finished())
}

func TestPackagingSeeded(t *testing.T) {
	pool := connect(t)
	kinds, err := packaging.NewService(packaging.NewRepo(pool)).List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, packaging.Defaults, kinds)
}
