package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/Spok95/batch-weighing/internal/domain/catalog"
)

var _ catalog.Store = (*Catalog)(nil)

type Catalog struct{ s *Store }

func (c *Catalog) WithTx(ctx context.Context, fn func(tx catalog.Tx) error) error {
	return c.s.run(ctx, func(st *state) error { return fn(catalogTx{st: st}) })
}

func (c *Catalog) ListProducts(_ context.Context, f catalog.Filter, limit, offset int) ([]catalog.Product, int, error) {
	var out []catalog.Product
	total := 0
	c.s.read(func(st state) {
		rows := make([]ProductRow, 0, len(st.products))
		for _, p := range st.products {
			if f.No != "" && p.No != f.No {
				continue
			}
			rows = append(rows, p)
		}
		sort.Slice(rows, func(i, j int) bool {
			if !rows[i].CreatedAt.Equal(rows[j].CreatedAt) {
				return rows[i].CreatedAt.Before(rows[j].CreatedAt)
			}
			return rows[i].ID < rows[j].ID
		})
		total = len(rows)
		for _, r := range page(rows, limit, offset) {
			out = append(out, st.resolve(r))
		}
	})
	return out, total, nil
}

func (c *Catalog) GetProductByNo(_ context.Context, no string) (*catalog.Product, error) {
	var out *catalog.Product
	c.s.read(func(st state) {
		if row, ok := st.productByNo(no); ok {
			p := st.resolve(row)
			out = &p
		}
	})
	return out, nil
}

func (c *Catalog) ListMaterials(_ context.Context) ([]catalog.Material, error) {
	var out []catalog.Material
	c.s.read(func(st state) {
		for _, m := range st.materials {
			m.Products = st.referrersOf(m.ID)
			out = append(out, m)
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].No < out[j].No })
	return out, nil
}

// page applies offset and limit; a non-positive limit keeps the rest.
func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	if offset > 0 {
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

type catalogTx struct{ st *state }

func (t catalogTx) ProductByID(_ context.Context, id string) (*catalog.Product, error) {
	row, ok := t.st.products[id]
	if !ok {
		return nil, nil
	}
	p := t.st.resolve(row)
	return &p, nil
}

func (t catalogTx) ProductByNo(_ context.Context, no string) (*catalog.Product, error) {
	row, ok := t.st.productByNo(no)
	if !ok {
		return nil, nil
	}
	p := t.st.resolve(row)
	return &p, nil
}

func (t catalogTx) InsertProduct(_ context.Context, p catalog.Product) error {
	if _, ok := t.st.products[p.ID]; ok {
		return fmt.Errorf("%w: product id %s", ErrUniqueViolation, p.ID)
	}
	if _, ok := t.st.productByNo(p.No); ok {
		return fmt.Errorf("%w: product no %s", ErrUniqueViolation, p.No)
	}
	t.st.products[p.ID] = ProductRow{ID: p.ID, No: p.No, CreatedAt: p.CreatedAt, UpdatedAt: p.UpdatedAt}
	return nil
}

func (t catalogTx) UpdateProduct(_ context.Context, p catalog.Product) error {
	row, ok := t.st.products[p.ID]
	if !ok {
		return fmt.Errorf("%w: product %s", ErrMissingRow, p.ID)
	}
	if other, ok := t.st.productByNo(p.No); ok && other.ID != p.ID {
		return fmt.Errorf("%w: product no %s", ErrUniqueViolation, p.No)
	}
	row.No = p.No
	row.UpdatedAt = p.UpdatedAt
	t.st.products[p.ID] = row
	return nil
}

func (t catalogTx) DeleteProduct(_ context.Context, id string) error {
	row, ok := t.st.products[id]
	if !ok {
		return nil
	}
	for _, mid := range row.MaterialIDs {
		t.st.unlink(id, mid)
	}
	delete(t.st.products, id)
	return nil
}

func (t catalogTx) SetProductMaterials(_ context.Context, productID string, materialIDs []string) error {
	row, ok := t.st.products[productID]
	if !ok {
		return fmt.Errorf("%w: product %s", ErrMissingRow, productID)
	}
	for _, mid := range materialIDs {
		if _, ok := t.st.materials[mid]; !ok {
			return fmt.Errorf("%w: material %s", ErrMissingRow, mid)
		}
	}
	for _, mid := range row.MaterialIDs {
		t.st.unlink(productID, mid)
	}
	row.MaterialIDs = append([]string{}, materialIDs...)
	for _, mid := range row.MaterialIDs {
		t.st.link(productID, mid)
	}
	t.st.products[productID] = row
	return nil
}

func (t catalogTx) UpsertMaterial(_ context.Context, m catalog.Material) (*catalog.Material, error) {
	if existing, ok := t.st.materialByNo(m.No); ok {
		return &existing, nil
	}
	m.Products = nil
	t.st.materials[m.ID] = m
	return &m, nil
}

func (t catalogTx) MaterialByID(_ context.Context, id string) (*catalog.Material, error) {
	m, ok := t.st.materials[id]
	if !ok {
		return nil, nil
	}
	m.Products = t.st.referrersOf(id)
	return &m, nil
}

func (t catalogTx) MaterialReferrers(_ context.Context, materialID string) ([]string, error) {
	return t.st.referrersOf(materialID), nil
}

func (t catalogTx) DeleteMaterial(_ context.Context, id string) error {
	if len(t.st.referrers[id]) > 0 {
		return fmt.Errorf("%w: material %s", ErrStillReferenced, id)
	}
	delete(t.st.materials, id)
	return nil
}
