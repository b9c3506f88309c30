package process

import (
	"context"

	"github.com/Spok95/batch-weighing/internal/domain/archive"
)

// Store persists open processes. Mutations go through WithTx; LockProcess
// must serialize concurrent transactions on the same process id.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	GetProcess(ctx context.Context, id string) (*Process, error)
}

// Tx is a unit of work over the process collection and the archive.
// Lookups return nil, nil when the row does not exist.
type Tx interface {
	archive.Writer

	ProductExists(ctx context.Context, no string) (bool, error)
	InsertProcess(ctx context.Context, p Process) error
	LockProcess(ctx context.Context, id string) (*Process, error)
	SaveProcess(ctx context.Context, p Process) error
	DeleteProcess(ctx context.Context, id string) error
}
