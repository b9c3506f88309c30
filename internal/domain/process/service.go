package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Spok95/batch-weighing/internal/apperr"
	"github.com/Spok95/batch-weighing/internal/domain/archive"
	"github.com/Spok95/batch-weighing/internal/validation"
)

const (
	MsgArchived   = "Process successfully stopped."
	MsgDiscarded  = "No material weighed"
	resultOK      = "accepted"
	resultOutside = "out_of_tolerance"
)

// Metrics receives process engine events. A nil Metrics is ignored.
type Metrics interface {
	WeighingRecorded(result string)
	ProcessClosed(outcome Outcome)
}

// Notifier is told about every archived process after the archive commits.
type Notifier interface {
	ProcessArchived(ctx context.Context, rec archive.Record) error
}

type Service struct {
	store    Store
	rules    validation.Rules
	log      *slog.Logger
	metrics  Metrics
	notifier Notifier
	now      func() time.Time
	newID    func() string
}

type Option func(*Service)

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }
func WithMetrics(m Metrics) Option          { return func(s *Service) { s.metrics = m } }
func WithNotifier(n Notifier) Option        { return func(s *Service) { s.notifier = n } }
func WithIDs(newID func() string) Option    { return func(s *Service) { s.newID = newID } }

func NewService(store Store, rules validation.Rules, log *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store: store,
		rules: rules,
		log:   log,
		now:   time.Now,
		newID: func() string { return uuid.Must(uuid.NewV7()).String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Open starts a weighing process for a registered product.
func (s *Service) Open(ctx context.Context, no, batchNo, productNo string) (*Process, error) {
	if err := s.rules.Check(validation.FieldProcessNo, no); err != nil {
		return nil, err
	}
	if err := s.rules.Check(validation.FieldBatchNo, batchNo); err != nil {
		return nil, err
	}
	if strings.TrimSpace(productNo) == "" {
		return nil, fmt.Errorf("%w: product number is required", apperr.ErrBadRequest)
	}

	now := s.now().UTC()
	p := Process{
		ID:        s.newID(),
		No:        no,
		BatchNo:   batchNo,
		ProductNo: productNo,
		Materials: []MaterialWeighing{},
		StartTime: now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.store.WithTx(ctx, func(tx Tx) error {
		ok, err := tx.ProductExists(ctx, productNo)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: product with number %s doesn't exist", apperr.ErrNotFound, productNo)
		}
		return tx.InsertProcess(ctx, p)
	})
	if err != nil {
		return nil, apperr.Passthrough(err)
	}
	s.log.Info("process opened", "process_id", p.ID, "no", no, "batch_no", batchNo, "product_no", productNo)
	return &p, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Process, error) {
	p, err := s.store.GetProcess(ctx, id)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	if p == nil {
		return nil, fmt.Errorf("%w: process %s", apperr.ErrNotFound, id)
	}
	return p, nil
}

// mutate runs fn against the locked process and saves the result.
func (s *Service) mutate(ctx context.Context, id string, fn func(p *Process) error) (*Process, error) {
	var out *Process
	err := s.store.WithTx(ctx, func(tx Tx) error {
		p, err := tx.LockProcess(ctx, id)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("%w: process %s", apperr.ErrNotFound, id)
		}
		if err := fn(p); err != nil {
			return err
		}
		p.UpdatedAt = s.now().UTC()
		if err := tx.SaveProcess(ctx, *p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, apperr.Passthrough(err)
	}
	return out, nil
}

// BeginWeighing appends a new weighing attempt. Repeated weighings of the
// same material are separate entries.
func (s *Service) BeginWeighing(ctx context.Context, processID, materialNo, packaging string) (*Process, *MaterialWeighing, error) {
	if materialNo == "" || packaging == "" {
		return nil, nil, fmt.Errorf("%w: material number and packaging are required", apperr.ErrBadRequest)
	}
	w := MaterialWeighing{
		ID:        s.newID(),
		No:        materialNo,
		Packaging: packaging,
		StartTime: s.now().UTC(),
	}
	p, err := s.mutate(ctx, processID, func(p *Process) error {
		p.Materials = append(p.Materials, w)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	s.log.Debug("weighing started", "process_id", processID, "weighing_id", w.ID, "material_no", materialNo)
	return p, &w, nil
}

type EndWeighingInput struct {
	ProcessID    string
	WeighingID   string
	Quantity     float64
	EndTime      time.Time
	TolerancePct float64
	TargetQty    float64
}

// EndWeighing records the measured quantity if it lies inside the tolerance
// window. A rejected measurement leaves the process untouched.
func (s *Service) EndWeighing(ctx context.Context, in EndWeighingInput) (*Process, *MaterialWeighing, error) {
	if in.TolerancePct <= 0 || in.TargetQty <= 0 || in.Quantity <= 0 {
		return nil, nil, CheckTolerance(in.Quantity, in.TargetQty, in.TolerancePct)
	}
	end := in.EndTime
	if end.IsZero() {
		end = s.now()
	}
	end = end.UTC()

	var done MaterialWeighing
	p, err := s.mutate(ctx, in.ProcessID, func(p *Process) error {
		_, w := p.weighing(in.WeighingID)
		if w == nil {
			return fmt.Errorf("%w: material weighing %s", apperr.ErrNotFound, in.WeighingID)
		}
		if w.IsCompleted {
			return fmt.Errorf("%w: material weighing %s is already completed", apperr.ErrConflict, in.WeighingID)
		}
		if end.Before(w.StartTime) {
			return fmt.Errorf("%w: end time precedes start time", apperr.ErrBadRequest)
		}
		if err := CheckTolerance(in.Quantity, in.TargetQty, in.TolerancePct); err != nil {
			return err
		}
		qty := in.Quantity
		dur := end.Sub(w.StartTime)
		w.Quantity = &qty
		w.EndTime = &end
		w.Duration = &dur
		w.IsCompleted = true
		done = *w
		return nil
	})
	switch {
	case errors.Is(err, apperr.ErrOutOfTolerance):
		s.recordWeighing(resultOutside)
		s.log.Info("weighing rejected", "process_id", in.ProcessID, "weighing_id", in.WeighingID, "err", err)
		return nil, nil, err
	case err != nil:
		return nil, nil, err
	}
	s.recordWeighing(resultOK)
	return p, &done, nil
}

// CancelWeighing removes a weighing attempt whatever its state.
func (s *Service) CancelWeighing(ctx context.Context, processID, weighingID string) (*Process, error) {
	return s.mutate(ctx, processID, func(p *Process) error {
		i, _ := p.weighing(weighingID)
		if i < 0 {
			return fmt.Errorf("%w: material weighing %s", apperr.ErrNotFound, weighingID)
		}
		p.Materials = append(p.Materials[:i], p.Materials[i+1:]...)
		return nil
	})
}

// Close finishes a process. An empty process is discarded without history;
// a process with unfinished weighings is refused; otherwise the archive
// record is written and the live process deleted in one transaction.
func (s *Service) Close(ctx context.Context, processID string, endTime time.Time) (*CloseResult, error) {
	if endTime.IsZero() {
		endTime = s.now()
	}
	endTime = endTime.UTC()

	var res CloseResult
	err := s.store.WithTx(ctx, func(tx Tx) error {
		res = CloseResult{}
		p, err := tx.LockProcess(ctx, processID)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("%w: no process found with the provided id", apperr.ErrNotFound)
		}
		if len(p.Materials) == 0 {
			res = CloseResult{Outcome: OutcomeDiscarded, Message: MsgDiscarded}
			return tx.DeleteProcess(ctx, processID)
		}
		if !p.Finished() {
			return fmt.Errorf("%w: process not finished yet", apperr.ErrConflict)
		}
		if endTime.Before(p.StartTime) {
			return fmt.Errorf("%w: end time precedes start time", apperr.ErrBadRequest)
		}
		rec, err := archive.Append(ctx, tx, snapshot(*p, endTime), s.now())
		if err != nil {
			return err
		}
		res = CloseResult{Outcome: OutcomeArchived, Message: MsgArchived, Archive: rec}
		return tx.DeleteProcess(ctx, processID)
	})
	if err != nil {
		return nil, apperr.Passthrough(err)
	}

	if s.metrics != nil {
		s.metrics.ProcessClosed(res.Outcome)
	}
	s.log.Info("process closed", "process_id", processID, "outcome", res.Outcome)
	if res.Archive != nil && s.notifier != nil {
		if err := s.notifier.ProcessArchived(ctx, *res.Archive); err != nil {
			s.log.Warn("archive notification failed", "process_id", processID, "err", err)
		}
	}
	return &res, nil
}

func snapshot(p Process, end time.Time) archive.Record {
	mats := make([]archive.Weighing, 0, len(p.Materials))
	for _, m := range p.Materials {
		w := archive.Weighing{
			ID:        m.ID,
			No:        m.No,
			Packaging: m.Packaging,
			StartTime: m.StartTime,
		}
		if m.Quantity != nil {
			w.Quantity = *m.Quantity
		}
		if m.EndTime != nil {
			w.EndTime = *m.EndTime
		}
		if m.Duration != nil {
			w.Duration = *m.Duration
		}
		mats = append(mats, w)
	}
	return archive.Record{
		ProcessID:   p.ID,
		No:          p.No,
		BatchNo:     p.BatchNo,
		ProductNo:   p.ProductNo,
		Materials:   mats,
		StartTime:   p.StartTime,
		EndTime:     end,
		Duration:    end.Sub(p.StartTime),
		IsCompleted: true,
	}
}

func (s *Service) recordWeighing(result string) {
	if s.metrics != nil {
		s.metrics.WeighingRecorded(result)
	}
}
