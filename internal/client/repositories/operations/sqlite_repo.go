package operations

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/dmitrijs2005/opsync/internal/operation"
	"github.com/dmitrijs2005/opsync/internal/timex"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Add(ctx context.Context, ops ...operation.Operation) error {
	query := `INSERT INTO operations (id, table_name, item_id, kind, property, value, old_value, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	for _, op := range ops {
		_, err := r.db.ExecContext(ctx, query,
			op.ID, op.TableName, op.ItemID, string(op.Kind),
			nullable(op.Property), op.Value, op.OldValue, op.CreatedAt.Format())
		if err != nil {
			return fmt.Errorf("failed to insert operation %s: %w", op.ID, err)
		}
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, ops ...operation.Operation) error {
	for _, op := range ops {
		if _, err := r.db.ExecContext(ctx, `DELETE FROM operations WHERE id = ?`, op.ID); err != nil {
			return fmt.Errorf("failed to delete operation %s: %w", op.ID, err)
		}
	}
	return nil
}

func (r *SQLiteRepository) GetPage(ctx context.Context, limit int) ([]operation.Operation, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, table_name, item_id, kind, property, value, old_value, created_at
		 FROM operations ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to select operations: %w", err)
	}
	defer rows.Close()

	// Collect whole groups in first-seen order so one item's operations are
	// never split across the page boundary.
	var order []operation.GroupKey
	groups := make(map[operation.GroupKey][]operation.Operation)

	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, err
		}
		key := op.GroupKey()
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], op)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var page []operation.Operation
	for _, key := range order {
		group := groups[key]
		if limit > 0 && len(page) > 0 && len(page)+len(group) > limit {
			break
		}
		page = append(page, group...)
	}

	sort.Slice(page, func(i, j int) bool {
		if !page[i].CreatedAt.Equal(page[j].CreatedAt.Time) {
			return page[i].CreatedAt.Before(page[j].CreatedAt.Time)
		}
		return page[i].ID < page[j].ID
	})

	return page, nil
}

func (r *SQLiteRepository) HasPending(ctx context.Context) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM operations`).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to count operations: %w", err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) DeleteObsoleteForDeletedItem(ctx context.Context, tableName, itemID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM operations WHERE table_name = ? AND item_id = ? AND kind != ?`,
		tableName, itemID, string(operation.Deleted))
	if err != nil {
		return fmt.Errorf("failed to delete obsolete operations for item %s: %w", itemID, err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteObsoleteModifications(ctx context.Context, tableName, itemID, property, keepID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM operations
		 WHERE table_name = ? AND item_id = ? AND property = ? AND kind = ? AND id != ?`,
		tableName, itemID, property, string(operation.Modified), keepID)
	if err != nil {
		return fmt.Errorf("failed to delete obsolete modifications for item %s: %w", itemID, err)
	}
	return nil
}

func scanOperation(rows *sql.Rows) (operation.Operation, error) {
	var op operation.Operation
	var kind, createdAt string
	var property, value, oldValue sql.NullString

	if err := rows.Scan(&op.ID, &op.TableName, &op.ItemID, &kind, &property, &value, &oldValue, &createdAt); err != nil {
		return op, err
	}

	op.Kind = operation.Kind(kind)
	if property.Valid {
		op.Property = property.String
	}
	if value.Valid {
		v := value.String
		op.Value = &v
	}
	if oldValue.Valid {
		v := oldValue.String
		op.OldValue = &v
	}

	ts, err := timex.Parse(createdAt)
	if err != nil {
		return op, fmt.Errorf("operation %s has invalid created_at: %w", op.ID, err)
	}
	op.CreatedAt = ts

	return op, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
