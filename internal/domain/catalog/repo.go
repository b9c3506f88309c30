package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sethvargo/go-retry"
)

var _ Store = (*Repo)(nil)

// Repo is the Postgres catalog store. Transactions run SERIALIZABLE and are
// retried on serialization failures, deadlocks and unique violations, so
// two concurrent upserts of the same material number converge on one row.
type Repo struct {
	pool       *pgxpool.Pool
	maxRetries uint64
}

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool, maxRetries: 5} }

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (r *Repo) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	b := retry.WithMaxRetries(r.maxRetries, retry.NewExponential(10*time.Millisecond))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{IsoLevel: pgx.Serializable}, func(tx pgx.Tx) error {
			return fn(&pgTx{q: tx})
		})
		if retryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case "40001", "40P01", "23505":
		return true
	}
	return false
}

func (r *Repo) ListProducts(ctx context.Context, f Filter, limit, offset int) ([]Product, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM products WHERE ($1 = '' OR no = $1)
	`, f.No).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx, `
		SELECT id, no, created_at, updated_at
		FROM products
		WHERE ($1 = '' OR no = $1)
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3
	`, f.No, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.No, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	for i := range out {
		mats, err := productMaterials(ctx, r.pool, out[i].ID)
		if err != nil {
			return nil, 0, err
		}
		out[i].Materials = mats
	}
	return out, total, nil
}

func (r *Repo) GetProductByNo(ctx context.Context, no string) (*Product, error) {
	return getProduct(ctx, r.pool, `WHERE no = $1`, no)
}

func (r *Repo) ListMaterials(ctx context.Context) ([]Material, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT m.id, m.no, m.created_at, m.updated_at,
		       COALESCE(array_agg(pm.product_id ORDER BY pm.product_id) FILTER (WHERE pm.product_id IS NOT NULL), '{}')
		FROM materials m
		LEFT JOIN product_materials pm ON pm.material_id = m.id
		GROUP BY m.id
		ORDER BY m.no
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Material
	for rows.Next() {
		var m Material
		if err := rows.Scan(&m.ID, &m.No, &m.CreatedAt, &m.UpdatedAt, &m.Products); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func getProduct(ctx context.Context, q querier, where string, arg any) (*Product, error) {
	row := q.QueryRow(ctx, `SELECT id, no, created_at, updated_at FROM products `+where, arg)
	var p Product
	if err := row.Scan(&p.ID, &p.No, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	mats, err := productMaterials(ctx, q, p.ID)
	if err != nil {
		return nil, err
	}
	p.Materials = mats
	return &p, nil
}

func productMaterials(ctx context.Context, q querier, productID string) ([]Material, error) {
	rows, err := q.Query(ctx, `
		SELECT m.id, m.no, m.created_at, m.updated_at
		FROM product_materials pm
		JOIN materials m ON m.id = pm.material_id
		WHERE pm.product_id = $1
		ORDER BY pm.position
	`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Material{}
	for rows.Next() {
		var m Material
		if err := rows.Scan(&m.ID, &m.No, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type pgTx struct{ q querier }

func (t *pgTx) ProductByID(ctx context.Context, id string) (*Product, error) {
	return getProduct(ctx, t.q, `WHERE id = $1`, id)
}

func (t *pgTx) ProductByNo(ctx context.Context, no string) (*Product, error) {
	return getProduct(ctx, t.q, `WHERE no = $1`, no)
}

func (t *pgTx) InsertProduct(ctx context.Context, p Product) error {
	_, err := t.q.Exec(ctx, `
		INSERT INTO products (id, no, created_at, updated_at) VALUES ($1,$2,$3,$4)
	`, p.ID, p.No, p.CreatedAt, p.UpdatedAt)
	return err
}

func (t *pgTx) UpdateProduct(ctx context.Context, p Product) error {
	_, err := t.q.Exec(ctx, `UPDATE products SET no=$2, updated_at=$3 WHERE id=$1`, p.ID, p.No, p.UpdatedAt)
	return err
}

func (t *pgTx) DeleteProduct(ctx context.Context, id string) error {
	_, err := t.q.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	return err
}

func (t *pgTx) SetProductMaterials(ctx context.Context, productID string, materialIDs []string) error {
	if _, err := t.q.Exec(ctx, `DELETE FROM product_materials WHERE product_id=$1`, productID); err != nil {
		return err
	}
	for i, id := range materialIDs {
		if _, err := t.q.Exec(ctx, `
			INSERT INTO product_materials (product_id, material_id, position) VALUES ($1,$2,$3)
		`, productID, id, i); err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTx) UpsertMaterial(ctx context.Context, m Material) (*Material, error) {
	// DO UPDATE (not DO NOTHING) so RETURNING yields the existing row too.
	row := t.q.QueryRow(ctx, `
		INSERT INTO materials (id, no, created_at, updated_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (no) DO UPDATE SET no = EXCLUDED.no
		RETURNING id, no, created_at, updated_at
	`, m.ID, m.No, m.CreatedAt, m.UpdatedAt)
	var out Material
	if err := row.Scan(&out.ID, &out.No, &out.CreatedAt, &out.UpdatedAt); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *pgTx) MaterialByID(ctx context.Context, id string) (*Material, error) {
	row := t.q.QueryRow(ctx, `SELECT id, no, created_at, updated_at FROM materials WHERE id=$1`, id)
	var m Material
	if err := row.Scan(&m.ID, &m.No, &m.CreatedAt, &m.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	refs, err := t.MaterialReferrers(ctx, id)
	if err != nil {
		return nil, err
	}
	m.Products = refs
	return &m, nil
}

func (t *pgTx) MaterialReferrers(ctx context.Context, materialID string) ([]string, error) {
	rows, err := t.q.Query(ctx, `
		SELECT product_id FROM product_materials WHERE material_id=$1 ORDER BY product_id
	`, materialID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (t *pgTx) DeleteMaterial(ctx context.Context, id string) error {
	_, err := t.q.Exec(ctx, `DELETE FROM materials WHERE id=$1`, id)
	return err
}
