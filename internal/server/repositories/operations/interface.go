// Package operations persists the server's append-only operation log. Every
// received operation is written exactly once, including discarded ones, so
// the log doubles as the merge audit trail.
package operations

import (
	"context"
	"time"

	"github.com/dmitrijs2005/opsync/internal/operation"
)

type Repository interface {
	// ExistingIDs returns which of the given operation ids are already
	// logged. The merge engine uses this as its idempotency filter.
	ExistingIDs(ctx context.Context, ids []string) (map[string]struct{}, error)

	// Append writes operations to the log. Ids must be new.
	Append(ctx context.Context, ops []operation.ServerOperation) error

	// LastProcessedChange returns the created-at of the newest accepted
	// (Processed) operation touching one property of one item. The second
	// return value is false when no such operation exists. Discarded
	// operations never win conflicts and are not considered.
	LastProcessedChange(ctx context.Context, tableName, itemID, property string) (time.Time, bool, error)

	// ChangedByOthers reports whether any accepted operation on the item was
	// logged by a different installation at or after laterThan.
	ChangedByOthers(ctx context.Context, tableName, itemID, installationID string, laterThan time.Time) (bool, error)
}
