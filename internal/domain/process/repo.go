package process

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Spok95/batch-weighing/internal/domain/archive"
)

var _ Store = (*Repo)(nil)

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

func (r *Repo) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repo) GetProcess(ctx context.Context, id string) (*Process, error) {
	return scanProcess(r.pool.QueryRow(ctx, selectProcess+` WHERE id = $1`, id))
}

const selectProcess = `
	SELECT id, no, batch_no, product_no, materials, start_time, created_at, updated_at
	FROM processes
`

func scanProcess(row pgx.Row) (*Process, error) {
	var (
		p   Process
		raw []byte
	)
	if err := row.Scan(&p.ID, &p.No, &p.BatchNo, &p.ProductNo, &raw, &p.StartTime, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if err := json.Unmarshal(raw, &p.Materials); err != nil {
		return nil, err
	}
	if p.Materials == nil {
		p.Materials = []MaterialWeighing{}
	}
	return &p, nil
}

type pgTx struct{ tx pgx.Tx }

func (t *pgTx) InsertArchive(ctx context.Context, rec archive.Record) error {
	return archive.Insert(ctx, t.tx, rec)
}

func (t *pgTx) ProductExists(ctx context.Context, no string) (bool, error) {
	var ok bool
	err := t.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM products WHERE no = $1)`, no).Scan(&ok)
	return ok, err
}

func (t *pgTx) InsertProcess(ctx context.Context, p Process) error {
	mats, err := marshalMaterials(p.Materials)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO processes (id, no, batch_no, product_no, materials, start_time, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, p.ID, p.No, p.BatchNo, p.ProductNo, mats, p.StartTime, p.CreatedAt, p.UpdatedAt)
	return err
}

// LockProcess takes a row lock that is held until the transaction ends.
func (t *pgTx) LockProcess(ctx context.Context, id string) (*Process, error) {
	return scanProcess(t.tx.QueryRow(ctx, selectProcess+` WHERE id = $1 FOR UPDATE`, id))
}

func (t *pgTx) SaveProcess(ctx context.Context, p Process) error {
	mats, err := marshalMaterials(p.Materials)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `
		UPDATE processes SET materials = $2, updated_at = $3 WHERE id = $1
	`, p.ID, mats, p.UpdatedAt)
	return err
}

func (t *pgTx) DeleteProcess(ctx context.Context, id string) error {
	_, err := t.tx.Exec(ctx, `DELETE FROM processes WHERE id = $1`, id)
	return err
}

func marshalMaterials(m []MaterialWeighing) ([]byte, error) {
	if m == nil {
		m = []MaterialWeighing{}
	}
	return json.Marshal(m)
}
