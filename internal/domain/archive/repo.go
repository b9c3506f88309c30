package archive

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ Store = (*Repo)(nil)

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Insert writes rec through q, which is usually the transaction that also
// deletes the live process. process_id is unique, so a second archive of the
// same process fails instead of duplicating history.
func Insert(ctx context.Context, q execer, rec Record) error {
	mats, err := json.Marshal(rec.Materials)
	if err != nil {
		return err
	}
	_, err = q.Exec(ctx, `
		INSERT INTO archived_processes
		(id, process_id, no, batch_no, product_no, materials, start_time, end_time, duration_ns, is_completed, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, rec.ID, rec.ProcessID, rec.No, rec.BatchNo, rec.ProductNo, mats,
		rec.StartTime, rec.EndTime, int64(rec.Duration), rec.IsCompleted, rec.CreatedAt)
	return err
}

const selectRecord = `
	SELECT id, process_id, no, batch_no, product_no, materials, start_time, end_time, duration_ns, is_completed, created_at
	FROM archived_processes
`

func scanRecord(row pgx.Row) (*Record, error) {
	var (
		rec  Record
		raw  []byte
		durN int64
	)
	if err := row.Scan(
		&rec.ID,
		&rec.ProcessID,
		&rec.No,
		&rec.BatchNo,
		&rec.ProductNo,
		&raw,
		&rec.StartTime,
		&rec.EndTime,
		&durN,
		&rec.IsCompleted,
		&rec.CreatedAt,
	); err != nil {
		return nil, err
	}
	rec.Duration = time.Duration(durN)
	if err := json.Unmarshal(raw, &rec.Materials); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *Repo) ListArchive(ctx context.Context, f Filter, limit, offset int) ([]Record, int, error) {
	from, to := f.Bounds()
	const where = `
		WHERE is_completed = TRUE
		  AND ($1 = '' OR no = $1)
		  AND ($2::timestamptz IS NULL OR created_at >= $2)
		  AND ($3::timestamptz IS NULL OR created_at <= $3)
	`
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM archived_processes `+where, f.No, from, to).Scan(&total); err != nil {
		return nil, 0, err
	}

	var lim *int
	if limit > 0 {
		lim = &limit
	}
	rows, err := r.pool.Query(ctx, selectRecord+where+`
		ORDER BY created_at DESC, id DESC
		LIMIT $4 OFFSET $5
	`, f.No, from, to, lim, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, *rec)
	}
	return out, total, rows.Err()
}

func (r *Repo) GetArchive(ctx context.Context, id string) (*Record, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx, selectRecord+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return rec, nil
}
