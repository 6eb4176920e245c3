package operations

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/opsync/internal/dbx"
	"github.com/dmitrijs2005/opsync/internal/operation"
	"github.com/dmitrijs2005/opsync/internal/timex"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) ExistingIDs(ctx context.Context, ids []string) (map[string]struct{}, error) {
	if len(ids) == 0 {
		return map[string]struct{}{}, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = id
	}
	query := `SELECT id FROM sync_operations WHERE id IN (` + strings.Join(placeholders, ", ") + `)`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		existing[id] = struct{}{}
	}
	return existing, rows.Err()
}

func (r *PostgresRepository) Append(ctx context.Context, ops []operation.ServerOperation) error {
	query := `
		INSERT INTO sync_operations
		    (id, table_name, item_id, kind, property, value, old_value,
		     created_at, user_id, installation_id, processing_type, server_updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	for _, op := range ops {
		_, err := r.db.ExecContext(ctx, query,
			op.ID, op.TableName, op.ItemID, string(op.Kind), op.Property,
			op.Value, op.OldValue, op.CreatedAt.Time,
			op.UserID, op.InstallationID, string(op.ProcessingType), op.ServerUpdatedAt.Time)
		if err != nil {
			return fmt.Errorf("error performing sql request: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) LastProcessedChange(ctx context.Context, tableName, itemID, property string) (time.Time, bool, error) {
	query := `
		SELECT created_at FROM sync_operations
		WHERE table_name = $1 AND item_id = $2 AND property = $3 AND processing_type = $4
		ORDER BY created_at DESC
		LIMIT 1`

	var createdAt time.Time
	err := r.db.QueryRowContext(ctx, query,
		tableName, itemID, property, string(operation.Processed)).Scan(&createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("error performing sql request: %w", err)
	}
	return createdAt, true, nil
}

func (r *PostgresRepository) ChangedByOthers(ctx context.Context, tableName, itemID, installationID string, laterThan time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
		    SELECT 1 FROM sync_operations
		    WHERE table_name = $1 AND item_id = $2
		      AND installation_id <> $3
		      AND processing_type = $4
		      AND server_updated_at >= $5
		)`

	var exists bool
	err := r.db.QueryRowContext(ctx, query,
		tableName, itemID, installationID, string(operation.Processed), laterThan).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("error performing sql request: %w", err)
	}
	return exists, nil
}

// scanServerOperation is shared by queries returning full log rows.
func scanServerOperation(rows *sql.Rows) (operation.ServerOperation, error) {
	var op operation.ServerOperation
	var kind, processingType string
	var createdAt, serverUpdatedAt time.Time

	err := rows.Scan(&op.ID, &op.TableName, &op.ItemID, &kind, &op.Property,
		&op.Value, &op.OldValue, &createdAt,
		&op.UserID, &op.InstallationID, &processingType, &serverUpdatedAt)
	if err != nil {
		return op, err
	}

	op.Kind = operation.Kind(kind)
	op.ProcessingType = operation.ProcessingType(processingType)
	op.CreatedAt = timex.FromTime(createdAt)
	op.ServerUpdatedAt = timex.FromTime(serverUpdatedAt)
	return op, nil
}

// ListForItem returns the full audit trail of one item in arrival order.
func (r *PostgresRepository) ListForItem(ctx context.Context, tableName, itemID string) ([]operation.ServerOperation, error) {
	query := `
		SELECT id, table_name, item_id, kind, property, value, old_value,
		       created_at, user_id, installation_id, processing_type, server_updated_at
		FROM sync_operations
		WHERE table_name = $1 AND item_id = $2
		ORDER BY server_updated_at, created_at, id`

	rows, err := r.db.QueryContext(ctx, query, tableName, itemID)
	if err != nil {
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	defer rows.Close()

	var ops []operation.ServerOperation
	for rows.Next() {
		op, err := scanServerOperation(rows)
		if err != nil {
			return nil, err
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}
