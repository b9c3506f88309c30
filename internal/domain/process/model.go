package process

import (
	"time"

	"github.com/Spok95/batch-weighing/internal/domain/archive"
)

// MaterialWeighing is one weighing attempt inside a process. Once
// IsCompleted is set its quantity and timing never change.
type MaterialWeighing struct {
	ID          string         `json:"id"`
	No          string         `json:"no"`
	Packaging   string         `json:"packaging"`
	Quantity    *float64       `json:"quantity"`
	StartTime   time.Time      `json:"startTime"`
	EndTime     *time.Time     `json:"endTime"`
	Duration    *time.Duration `json:"duration"`
	IsCompleted bool           `json:"isCompleted"`
}

// Process is an open weighing session for one product batch.
type Process struct {
	ID          string             `json:"id"`
	No          string             `json:"no"`
	BatchNo     string             `json:"batchNo"`
	ProductNo   string             `json:"productNo"`
	Materials   []MaterialWeighing `json:"materials"`
	StartTime   time.Time          `json:"startTime"`
	EndTime     *time.Time         `json:"endTime"`
	Duration    *time.Duration     `json:"duration"`
	IsCompleted bool               `json:"isCompleted"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

func (p *Process) weighing(id string) (int, *MaterialWeighing) {
	for i := range p.Materials {
		if p.Materials[i].ID == id {
			return i, &p.Materials[i]
		}
	}
	return -1, nil
}

// Finished reports whether every weighing reached the completed state.
func (p *Process) Finished() bool {
	for _, m := range p.Materials {
		if !m.IsCompleted {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (p Process) Clone() Process {
	cp := p
	cp.Materials = make([]MaterialWeighing, len(p.Materials))
	for i, m := range p.Materials {
		cm := m
		if m.Quantity != nil {
			q := *m.Quantity
			cm.Quantity = &q
		}
		if m.EndTime != nil {
			t := *m.EndTime
			cm.EndTime = &t
		}
		if m.Duration != nil {
			d := *m.Duration
			cm.Duration = &d
		}
		cp.Materials[i] = cm
	}
	if p.EndTime != nil {
		t := *p.EndTime
		cp.EndTime = &t
	}
	if p.Duration != nil {
		d := *p.Duration
		cp.Duration = &d
	}
	return cp
}

type Outcome string

const (
	OutcomeArchived  Outcome = "archived"
	OutcomeDiscarded Outcome = "discarded"
)

// CloseResult is what Close returns: an archive record or a discard notice.
type CloseResult struct {
	Outcome Outcome
	Message string
	Archive *archive.Record
}
