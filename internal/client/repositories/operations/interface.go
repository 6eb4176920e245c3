// Package operations persists the client-side queue of pending sync
// operations.
package operations

import (
	"context"

	"github.com/dmitrijs2005/opsync/internal/operation"
)

// Repository is the ordered, queryable store of operations waiting to be
// pushed. Only the sync client writes to it.
type Repository interface {
	// Add appends operations to the queue.
	Add(ctx context.Context, ops ...operation.Operation) error

	// Delete removes the given operations, typically after a successful push.
	Delete(ctx context.Context, ops ...operation.Operation) error

	// GetPage returns pending operations in ascending created-at order,
	// bounded by limit but never splitting one item's operation group across
	// the boundary. A single group larger than the limit is returned whole.
	// limit <= 0 returns everything.
	GetPage(ctx context.Context, limit int) ([]operation.Operation, error)

	// HasPending reports whether any operation is queued.
	HasPending(ctx context.Context) (bool, error)

	// DeleteObsoleteForDeletedItem drops every queued non-Deleted operation
	// of an item that was just deleted locally; pushing them would be
	// pointless work for the server.
	DeleteObsoleteForDeletedItem(ctx context.Context, tableName, itemID string) error

	// DeleteObsoleteModifications drops queued Modified operations on the
	// same property that are superseded by the operation with keepID.
	DeleteObsoleteModifications(ctx context.Context, tableName, itemID, property, keepID string) error
}
