// Package store persists harvested records keyed by category and id. The
// filesystem store is the production default; Postgres is available for
// large corpora and the in-memory store backs tests.
package store

import (
	"context"
	"errors"

	"github.com/universe-mcp/harvester/pkg/model"
)

// Common store errors.
var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid record")
)

// Store defines record persistence. Upsert is keyed by (category, id): a
// re-harvest of the same source entity overwrites, never duplicates.
type Store interface {
	// Upsert inserts or fully replaces a record.
	Upsert(ctx context.Context, rec *model.Record) error
	// Get retrieves a single record by category and id.
	Get(ctx context.Context, category model.Category, id string) (*model.Record, error)
	// List retrieves every record of a category, ordered by id.
	List(ctx context.Context, category model.Category) ([]*model.Record, error)
	// Count reports how many records a category holds.
	Count(ctx context.Context, category model.Category) (int, error)
	// Close releases any underlying resources.
	Close() error
}
