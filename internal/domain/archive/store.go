package archive

import "context"

// Writer appends archive records. It is implemented by the transaction of
// the process store so the archive write commits with the process delete.
type Writer interface {
	InsertArchive(ctx context.Context, rec Record) error
}

// Store is read-only by contract: records are never updated or deleted.
type Store interface {
	ListArchive(ctx context.Context, f Filter, limit, offset int) ([]Record, int, error)
	GetArchive(ctx context.Context, id string) (*Record, error)
}
