// Package records persists the server's materialized record state, one row
// per synced item across all logical tables.
package records

import (
	"context"
	"time"

	"github.com/dmitrijs2005/opsync/internal/server/models"
)

type Repository interface {
	// FindByID returns one record or common.ErrNotFound. Soft-deleted
	// records are returned too; the merge engine needs to see them.
	FindByID(ctx context.Context, tableName, id string) (*models.Record, error)

	// Insert stores a new record. Fails if the id already exists.
	Insert(ctx context.Context, rec *models.Record) error

	// Update replaces the stored state of an existing record.
	Update(ctx context.Context, rec *models.Record) error

	// List returns one page of a table's records changed on the server at or
	// after laterThan, soft-deleted ones included, ordered by server change
	// time. A zero laterThan returns everything. When userID is non-empty
	// only that user's records are listed.
	List(ctx context.Context, tableName, userID string, laterThan time.Time, pageNumber, pageSize int) ([]*models.Record, error)
}
