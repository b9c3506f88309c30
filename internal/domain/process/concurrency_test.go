package process_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/Spok95/batch-weighing/internal/domain/process"
	"github.com/Spok95/batch-weighing/internal/infra/logger"
	"github.com/Spok95/batch-weighing/internal/validation"
)

// TestConcurrentWeighingsOnOneProcess runs begin, end and cancel calls
// against the same process from many goroutines; none of them may be lost.
func TestConcurrentWeighingsOnOneProcess(t *testing.T) {
	const n = 64
	ctx := context.Background()
	f := newFixture(t)
	svc := process.NewService(f.mem.Processes(), validation.DefaultRules(), logger.Discard())
	p := f.open(t)

	ids := make([]string, n)
	var g errgroup.Group
	for i := range n {
		g.Go(func() error {
			_, w, err := svc.BeginWeighing(ctx, p.ID, "20001111", "Bag")
			if err != nil {
				return err
			}
			ids[i] = w.ID
			return nil
		})
	}
	require.NoError(t, g.Wait())

	got, err := svc.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got.Materials, n)

	for i, id := range ids {
		g.Go(func() error {
			if i%2 == 0 {
				_, err := svc.CancelWeighing(ctx, p.ID, id)
				return err
			}
			_, _, err := svc.EndWeighing(ctx, process.EndWeighingInput{
				ProcessID: p.ID, WeighingID: id, Quantity: 100, TolerancePct: 5, TargetQty: 100,
			})
			return err
		})
	}
	require.NoError(t, g.Wait())

	got, err = svc.Get(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got.Materials, n/2)
	assert.True(t, got.Finished())
	for _, m := range got.Materials {
		require.NotNil(t, m.Quantity)
		assert.Equal(t, 100.0, *m.Quantity)
	}

	res, err := svc.Close(ctx, p.ID, f.now.Add(1))
	require.NoError(t, err)
	require.Equal(t, process.OutcomeArchived, res.Outcome)
	assert.Len(t, res.Archive.Materials, n/2)
}
