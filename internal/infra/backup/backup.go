// Package backup writes periodic workbook snapshots to a blob store and
// keeps only the newest ones.
package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/Spok95/batch-weighing/internal/domain/archive"
	"github.com/Spok95/batch-weighing/internal/domain/catalog"
	"github.com/Spok95/batch-weighing/internal/infra/blob"
	"github.com/Spok95/batch-weighing/internal/infra/report"
)

const (
	prefix   = "backup_"
	fileName = "weighing.xlsx"

	DefaultKeep = 8
)

// Source collects everything a backup contains.
type Source interface {
	Collect(ctx context.Context) (report.Backup, error)
}

// Observer is told about every finished run.
type Observer interface {
	BackupFinished(ok bool, pruned int)
}

type Job struct {
	store     blob.Store
	src       Source
	keep      int
	log       *slog.Logger
	observers []Observer
	now       func() time.Time
}

type Option func(*Job)

func WithKeep(n int) Option {
	return func(j *Job) {
		if n > 0 {
			j.keep = n
		}
	}
}

func WithObserver(o Observer) Option {
	return func(j *Job) { j.observers = append(j.observers, o) }
}

func WithClock(now func() time.Time) Option { return func(j *Job) { j.now = now } }

func NewJob(store blob.Store, src Source, log *slog.Logger, opts ...Option) *Job {
	j := &Job{store: store, src: src, keep: DefaultKeep, log: log, now: time.Now}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Key is the object key of the backup taken on day t.
func Key(t time.Time) string {
	return fmt.Sprintf("%s%d-%d-%d/%s", prefix, t.Day(), int(t.Month()), t.Year(), fileName)
}

// Run takes one backup and prunes old ones. A second run on the same day
// replaces that day's backup.
func (j *Job) Run(ctx context.Context) (info blob.Info, err error) {
	pruned := 0
	defer func() {
		for _, o := range j.observers {
			o.BackupFinished(err == nil, pruned)
		}
	}()

	now := j.now()
	data, err := j.src.Collect(ctx)
	if err != nil {
		return blob.Info{}, fmt.Errorf("collect: %w", err)
	}
	data.TakenAt = now

	var buf bytes.Buffer
	if err := report.WriteBackup(&buf, data); err != nil {
		return blob.Info{}, fmt.Errorf("render: %w", err)
	}

	key := Key(now)
	info, err = j.store.Put(ctx, key, &buf, blob.PutOptions{
		Overwrite:   true,
		ContentType: report.ContentType,
		Metadata: map[string]string{
			"products": fmt.Sprint(len(data.Products)),
			"archive":  fmt.Sprint(len(data.Archive)),
		},
	})
	if err != nil {
		return blob.Info{}, err
	}
	j.log.Info("backup written", "key", key, "size", info.Size, "driver", j.store.Driver())

	if pruned, err = j.Prune(ctx); err != nil {
		return info, fmt.Errorf("prune: %w", err)
	}
	return info, nil
}

type generation struct {
	dir     string
	keys    []string
	touched time.Time
}

// Prune deletes every backup directory but the newest keep ones.
func (j *Job) Prune(ctx context.Context) (int, error) {
	infos, err := j.store.List(ctx, prefix)
	if err != nil {
		return 0, err
	}
	byDir := map[string]*generation{}
	for _, in := range infos {
		dir, _, ok := strings.Cut(in.Key, "/")
		if !ok {
			continue
		}
		g := byDir[dir]
		if g == nil {
			g = &generation{dir: dir}
			byDir[dir] = g
		}
		g.keys = append(g.keys, in.Key)
		if in.LastModified.After(g.touched) {
			g.touched = in.LastModified
		}
	}
	gens := make([]*generation, 0, len(byDir))
	for _, g := range byDir {
		gens = append(gens, g)
	}
	sort.Slice(gens, func(a, b int) bool {
		if !gens[a].touched.Equal(gens[b].touched) {
			return gens[a].touched.After(gens[b].touched)
		}
		return gens[a].dir > gens[b].dir
	})

	pruned := 0
	for i := j.keep; i < len(gens); i++ {
		for _, k := range gens[i].keys {
			if _, err := j.store.Delete(ctx, k); err != nil {
				return pruned, err
			}
		}
		pruned++
		j.log.Info("old backup removed", "dir", gens[i].dir)
	}
	return pruned, nil
}

// Scheduler runs the job at every firing time of the schedule until ctx ends.
type Scheduler struct {
	job      *Job
	schedule Schedule
	log      *slog.Logger
	now      func() time.Time
}

func NewScheduler(job *Job, s Schedule, log *slog.Logger) *Scheduler {
	return &Scheduler{job: job, schedule: s, log: log, now: time.Now}
}

func (s *Scheduler) Run(ctx context.Context) error {
	for {
		next := s.schedule.Next(s.now())
		s.log.Info("next backup scheduled", "at", next)
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-timer.C:
		}
		if _, err := s.job.Run(ctx); err != nil {
			s.log.Error("backup failed", "err", err)
		}
	}
}

// ServiceSource reads the backup contents through the domain services.
type ServiceSource struct {
	Catalog  *catalog.Service
	Archive  *archive.Service
	PageSize int
}

func (s ServiceSource) Collect(ctx context.Context) (report.Backup, error) {
	var out report.Backup
	size := s.PageSize
	if size <= 0 {
		size = 200
	}
	for offset := 0; ; offset += size {
		items, total, err := s.Catalog.List(ctx, catalog.Filter{}, size, offset)
		if err != nil {
			return out, err
		}
		out.Products = append(out.Products, items...)
		if len(items) == 0 || offset+len(items) >= total {
			break
		}
	}
	mats, err := s.Catalog.Materials(ctx)
	if err != nil {
		return out, err
	}
	out.Materials = mats
	recs, _, err := s.Archive.Query(ctx, archive.Filter{}, 0, 0)
	if err != nil {
		return out, err
	}
	out.Archive = recs
	return out, nil
}
