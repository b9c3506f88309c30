package packaging

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

var _ Store = (*Repo)(nil)

type Repo struct{ pool *pgxpool.Pool }

func NewRepo(pool *pgxpool.Pool) *Repo { return &Repo{pool: pool} }

func (r *Repo) ListPackaging(ctx context.Context) ([]Kind, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, type FROM packaging ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Kind
	for rows.Next() {
		var k Kind
		if err := rows.Scan(&k.ID, &k.Type); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}
