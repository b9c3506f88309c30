package process_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/batch-weighing/internal/apperr"
	"github.com/Spok95/batch-weighing/internal/domain/archive"
	"github.com/Spok95/batch-weighing/internal/domain/catalog"
	"github.com/Spok95/batch-weighing/internal/domain/process"
	"github.com/Spok95/batch-weighing/internal/infra/logger"
	"github.com/Spok95/batch-weighing/internal/infra/persistence/memory"
	"github.com/Spok95/batch-weighing/internal/validation"
)

const productNo = "10001234"

type recorder struct {
	weighings map[string]int
	closed    map[process.Outcome]int
	archived  []archive.Record
	notifyErr error
}

func newRecorder() *recorder {
	return &recorder{weighings: map[string]int{}, closed: map[process.Outcome]int{}}
}

func (r *recorder) WeighingRecorded(result string) { r.weighings[result]++ }
func (r *recorder) ProcessClosed(o process.Outcome) { r.closed[o]++ }
func (r *recorder) ProcessArchived(_ context.Context, rec archive.Record) error {
	r.archived = append(r.archived, rec)
	return r.notifyErr
}

type fixture struct {
	mem     *memory.Store
	svc     *process.Service
	archive *archive.Service
	rec     *recorder
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		mem: memory.New(),
		rec: newRecorder(),
		now: time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC),
	}
	clock := func() time.Time { return f.now }

	cat := catalog.NewService(f.mem.Catalog(), validation.DefaultRules(), logger.Discard())
	_, err := cat.Register(context.Background(), productNo, []string{"20001111", "20002222"})
	require.NoError(t, err)

	f.svc = process.NewService(f.mem.Processes(), validation.DefaultRules(), logger.Discard(),
		process.WithClock(clock),
		process.WithMetrics(f.rec),
		process.WithNotifier(f.rec),
	)
	f.archive = archive.NewService(f.mem.Archive())
	return f
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func (f *fixture) open(t *testing.T) *process.Process {
	t.Helper()
	p, err := f.svc.Open(context.Background(), "1", "2", productNo)
	require.NoError(t, err)
	return p
}

func (f *fixture) begin(t *testing.T, processID, materialNo string) *process.MaterialWeighing {
	t.Helper()
	_, w, err := f.svc.BeginWeighing(context.Background(), processID, materialNo, "Bag")
	require.NoError(t, err)
	return w
}

func (f *fixture) end(t *testing.T, processID, weighingID string, qty float64) {
	t.Helper()
	f.advance(time.Minute)
	_, _, err := f.svc.EndWeighing(context.Background(), process.EndWeighingInput{
		ProcessID:    processID,
		WeighingID:   weighingID,
		Quantity:     qty,
		TolerancePct: 5,
		TargetQty:    100,
	})
	require.NoError(t, err)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	p := f.open(t)
	assert.Empty(t, p.Materials)
	assert.Equal(t, f.now, p.StartTime)

	_, err := f.svc.Open(ctx, "1", "2", "99999")
	require.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.svc.Open(ctx, "x1", "2", productNo)
	require.ErrorIs(t, err, apperr.ErrInvalidFormat)
	_, err = f.svc.Open(ctx, "1", "", productNo)
	require.ErrorIs(t, err, apperr.ErrInvalidFormat)
	_, err = f.svc.Open(ctx, "1001", "B1", productNo)
	require.ErrorIs(t, err, apperr.ErrInvalidFormat, "batch numbers are digit strings")
	_, err = f.svc.Open(ctx, "1", "2", " ")
	require.ErrorIs(t, err, apperr.ErrBadRequest)
}

func TestEndWeighingTolerance(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		qty  float64
		want error
	}{
		{95, nil},
		{105, nil},
		{94.99, apperr.ErrOutOfTolerance},
		{105.01, apperr.ErrOutOfTolerance},
	}
	for _, tt := range tests {
		f := newFixture(t)
		p := f.open(t)
		w := f.begin(t, p.ID, "20001111")
		before, err := f.svc.Get(ctx, p.ID)
		require.NoError(t, err)

		_, done, err := f.svc.EndWeighing(ctx, process.EndWeighingInput{
			ProcessID: p.ID, WeighingID: w.ID, Quantity: tt.qty, TolerancePct: 5, TargetQty: 100,
		})
		after, getErr := f.svc.Get(ctx, p.ID)
		require.NoError(t, getErr)

		if tt.want != nil {
			require.ErrorIs(t, err, tt.want, "qty %v", tt.qty)
			assert.Equal(t, before, after, "rejected measurement must not touch the process")
			assert.Equal(t, 1, f.rec.weighings["out_of_tolerance"])
			continue
		}
		require.NoError(t, err, "qty %v", tt.qty)
		require.NotNil(t, done.Quantity)
		assert.Equal(t, tt.qty, *done.Quantity)
		assert.True(t, after.Materials[0].IsCompleted)
		assert.Equal(t, 1, f.rec.weighings["accepted"])
	}
}

func TestEndWeighingRejects(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.open(t)
	w := f.begin(t, p.ID, "20001111")

	in := process.EndWeighingInput{ProcessID: p.ID, WeighingID: w.ID, Quantity: 100, TolerancePct: 5, TargetQty: 100}

	zero := in
	zero.TolerancePct = 0
	_, _, err := f.svc.EndWeighing(ctx, zero)
	require.ErrorIs(t, err, apperr.ErrBadRequest)

	missing := in
	missing.WeighingID = "nope"
	_, _, err = f.svc.EndWeighing(ctx, missing)
	require.ErrorIs(t, err, apperr.ErrNotFound)

	early := in
	early.EndTime = f.now.Add(-time.Hour)
	_, _, err = f.svc.EndWeighing(ctx, early)
	require.ErrorIs(t, err, apperr.ErrBadRequest)

	f.end(t, p.ID, w.ID, 100)
	_, _, err = f.svc.EndWeighing(ctx, in)
	require.ErrorIs(t, err, apperr.ErrConflict, "a completed weighing is immutable")

	noProcess := in
	noProcess.ProcessID = "missing"
	_, _, err = f.svc.EndWeighing(ctx, noProcess)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestRepeatedMaterialIsSeparateEntry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.open(t)
	a := f.begin(t, p.ID, "20001111")
	b := f.begin(t, p.ID, "20001111")
	assert.NotEqual(t, a.ID, b.ID)

	got, err := f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, got.Materials, 2)
}

func TestCancelWeighing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.open(t)
	a := f.begin(t, p.ID, "20001111")
	b := f.begin(t, p.ID, "20002222")
	f.end(t, p.ID, b.ID, 100)

	got, err := f.svc.CancelWeighing(ctx, p.ID, b.ID)
	require.NoError(t, err, "completed weighings can be cancelled too")
	require.Len(t, got.Materials, 1)
	assert.Equal(t, a.ID, got.Materials[0].ID)

	_, err = f.svc.CancelWeighing(ctx, p.ID, b.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCloseEmptyProcessIsDiscarded(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.open(t)

	res, err := f.svc.Close(ctx, p.ID, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, process.OutcomeDiscarded, res.Outcome)
	assert.Equal(t, "No material weighed", res.Message)
	assert.Nil(t, res.Archive)

	_, err = f.svc.Get(ctx, p.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	_, total, err := f.archive.Query(ctx, archive.Filter{}, 0, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, f.rec.archived)
}

func TestCloseUnfinishedProcessIsRefused(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.open(t)
	a := f.begin(t, p.ID, "20001111")
	f.begin(t, p.ID, "20002222")
	f.end(t, p.ID, a.ID, 100)

	_, err := f.svc.Close(ctx, p.ID, time.Time{})
	require.ErrorIs(t, err, apperr.ErrConflict)

	got, err := f.svc.Get(ctx, p.ID)
	require.NoError(t, err, "the process stays open")
	assert.Len(t, got.Materials, 2)
	_, total, err := f.archive.Query(ctx, archive.Filter{}, 0, 0)
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestCloseArchivesExactlyOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.open(t)
	a := f.begin(t, p.ID, "20001111")
	f.end(t, p.ID, a.ID, 98.5)
	f.advance(time.Minute)

	res, err := f.svc.Close(ctx, p.ID, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, process.OutcomeArchived, res.Outcome)
	assert.Equal(t, "Process successfully stopped.", res.Message)
	require.NotNil(t, res.Archive)

	rec := res.Archive
	assert.Equal(t, p.ID, rec.ProcessID)
	assert.Equal(t, productNo, rec.ProductNo)
	assert.True(t, rec.IsCompleted)
	assert.Equal(t, 2*time.Minute, rec.Duration)
	require.Len(t, rec.Materials, 1)
	assert.Equal(t, 98.5, rec.Materials[0].Quantity)
	assert.Equal(t, time.Minute, rec.Materials[0].Duration)

	stored, err := f.archive.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ProcessID, stored.ProcessID)

	_, err = f.svc.Get(ctx, p.ID)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.svc.Close(ctx, p.ID, time.Time{})
	require.ErrorIs(t, err, apperr.ErrNotFound, "a second close finds nothing")

	_, total, err := f.archive.Query(ctx, archive.Filter{}, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, 1, f.rec.closed[process.OutcomeArchived])
	assert.Len(t, f.rec.archived, 1)
}

func TestCloseIgnoresNotifierFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.rec.notifyErr = errors.New("telegram down")
	p := f.open(t)
	a := f.begin(t, p.ID, "20001111")
	f.end(t, p.ID, a.ID, 100)

	res, err := f.svc.Close(ctx, p.ID, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, process.OutcomeArchived, res.Outcome)
}
