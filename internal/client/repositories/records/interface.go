// Package records persists syncable records on the client, storage-agnostic
// of the application's concrete types: rows hold the record base plus the
// canonical field map, and descriptors rebuild typed items on the way out.
package records

import (
	"context"

	"github.com/dmitrijs2005/opsync/internal/schema"
)

// Repository is the local record store consumed by the sync client.
type Repository interface {
	// EnsureTable makes the logical table known to the store. Registering is
	// idempotent.
	EnsureTable(ctx context.Context, tableName string) error

	// TableExists reports whether a logical table was registered.
	TableExists(ctx context.Context, tableName string) (bool, error)

	// Insert stores a new record. Fails if the id already exists.
	Insert(ctx context.Context, desc *schema.Descriptor, item schema.Item) error

	// Update replaces the stored state of an existing record.
	Update(ctx context.Context, desc *schema.Descriptor, item schema.Item) error

	// Delete removes a record. Deleting an absent record is not an error.
	Delete(ctx context.Context, tableName, id string) error

	// FindByID returns a record or common.ErrNotFound.
	FindByID(ctx context.Context, desc *schema.Descriptor, id string) (schema.Item, error)

	// All returns every record of a table.
	All(ctx context.Context, desc *schema.Descriptor) ([]schema.Item, error)

	// FindBy returns the records matching the predicate.
	FindBy(ctx context.Context, desc *schema.Descriptor, match func(schema.Item) bool) ([]schema.Item, error)
}
