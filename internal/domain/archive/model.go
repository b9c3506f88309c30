package archive

import "time"

type Weighing struct {
	ID        string        `json:"id"`
	No        string        `json:"no"`
	Packaging string        `json:"packaging"`
	Quantity  float64       `json:"quantity"`
	StartTime time.Time     `json:"startTime"`
	EndTime   time.Time     `json:"endTime"`
	Duration  time.Duration `json:"duration"`
}

// Record is the immutable copy of a completed process.
type Record struct {
	ID          string        `json:"id"`
	ProcessID   string        `json:"processId"`
	No          string        `json:"no"`
	BatchNo     string        `json:"batchNo"`
	ProductNo   string        `json:"productNo"`
	Materials   []Weighing    `json:"materials"`
	StartTime   time.Time     `json:"startTime"`
	EndTime     time.Time     `json:"endTime"`
	Duration    time.Duration `json:"duration"`
	IsCompleted bool          `json:"isCompleted"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// Filter selects archive records. StartDate and EndDate are compared on
// whole UTC days: from the start of StartDate to the end of EndDate.
type Filter struct {
	No        string
	StartDate *time.Time
	EndDate   *time.Time
}

// Bounds returns the inclusive creation-time window of the filter.
func (f Filter) Bounds() (from, to *time.Time) {
	if f.StartDate != nil {
		d := f.StartDate.UTC()
		start := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
		from = &start
	}
	if f.EndDate != nil {
		d := f.EndDate.UTC()
		end := time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 999999999, time.UTC)
		to = &end
	}
	return from, to
}

// Match reports whether r passes the filter.
func (f Filter) Match(r Record) bool {
	if f.No != "" && r.No != f.No {
		return false
	}
	from, to := f.Bounds()
	if from != nil && r.CreatedAt.Before(*from) {
		return false
	}
	if to != nil && r.CreatedAt.After(*to) {
		return false
	}
	return true
}
