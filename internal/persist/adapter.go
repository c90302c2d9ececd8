package persist

import (
	"context"

	"github.com/wnt/solforge/internal/models"
)

// Adapter is durable backing for the ledger snapshot. Load returns the
// current store fully normalized; Save persists the whole snapshot as one
// atomic unit. Implementations must guarantee that a reader either sees
// the previous snapshot or the new one, never a partial mix.
type Adapter interface {
	Load(ctx context.Context) (*models.Store, error)
	Save(ctx context.Context, store *models.Store) error
	Close() error
}
