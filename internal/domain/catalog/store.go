package catalog

import "context"

// Store is the persistence contract of the catalog. Every mutating call of
// Service runs inside a single WithTx so the product/material edge and the
// orphan cleanup commit together.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	ListProducts(ctx context.Context, f Filter, limit, offset int) ([]Product, int, error)
	GetProductByNo(ctx context.Context, no string) (*Product, error)
	ListMaterials(ctx context.Context) ([]Material, error)
}

// Tx is a unit of work over products, materials and their edges.
// Lookups return nil, nil when the row does not exist.
type Tx interface {
	ProductByID(ctx context.Context, id string) (*Product, error)
	ProductByNo(ctx context.Context, no string) (*Product, error)
	InsertProduct(ctx context.Context, p Product) error
	UpdateProduct(ctx context.Context, p Product) error
	DeleteProduct(ctx context.Context, id string) error

	// SetProductMaterials replaces the ordered material list of a product.
	// The reverse index is updated in the same call.
	SetProductMaterials(ctx context.Context, productID string, materialIDs []string) error

	// UpsertMaterial inserts m unless a material with m.No exists, and
	// returns the stored row either way.
	UpsertMaterial(ctx context.Context, m Material) (*Material, error)
	MaterialByID(ctx context.Context, id string) (*Material, error)
	MaterialReferrers(ctx context.Context, materialID string) ([]string, error)
	DeleteMaterial(ctx context.Context, id string) error
}
