package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/opsync/internal/common"
	"github.com/dmitrijs2005/opsync/internal/schema"
	"github.com/dmitrijs2005/opsync/internal/timex"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) EnsureTable(ctx context.Context, tableName string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sync_tables (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, tableName)
	if err != nil {
		return fmt.Errorf("failed to register table %s: %w", tableName, err)
	}
	return nil
}

func (r *SQLiteRepository) TableExists(ctx context.Context, tableName string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT count(*) FROM sync_tables WHERE name = ?`, tableName).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", tableName, err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) Insert(ctx context.Context, desc *schema.Descriptor, item schema.Item) error {
	fields, err := encodeFields(desc, item)
	if err != nil {
		return err
	}

	base := item.Base()
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO records (table_name, id, created_at, updated_at, fields) VALUES (?, ?, ?, ?, ?)`,
		desc.TableName, base.ID, base.CreatedAt.Format(), base.UpdatedAt.Format(), fields)
	if err != nil {
		return fmt.Errorf("failed to insert record %s: %w", base.ID, err)
	}
	return nil
}

func (r *SQLiteRepository) Update(ctx context.Context, desc *schema.Descriptor, item schema.Item) error {
	fields, err := encodeFields(desc, item)
	if err != nil {
		return err
	}

	base := item.Base()
	result, err := r.db.ExecContext(ctx,
		`UPDATE records SET created_at = ?, updated_at = ?, fields = ? WHERE table_name = ? AND id = ?`,
		base.CreatedAt.Format(), base.UpdatedAt.Format(), fields, desc.TableName, base.ID)
	if err != nil {
		return fmt.Errorf("failed to update record %s: %w", base.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: record %s in table %s", common.ErrNotFound, base.ID, desc.TableName)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, tableName, id string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM records WHERE table_name = ? AND id = ?`, tableName, id)
	if err != nil {
		return fmt.Errorf("failed to delete record %s: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) FindByID(ctx context.Context, desc *schema.Descriptor, id string) (schema.Item, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, created_at, updated_at, fields FROM records WHERE table_name = ? AND id = ?`,
		desc.TableName, id)

	item, err := scanItem(desc, row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: record %s in table %s", common.ErrNotFound, id, desc.TableName)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select record %s: %w", id, err)
	}
	return item, nil
}

func (r *SQLiteRepository) All(ctx context.Context, desc *schema.Descriptor) ([]schema.Item, error) {
	return r.FindBy(ctx, desc, nil)
}

func (r *SQLiteRepository) FindBy(ctx context.Context, desc *schema.Descriptor, match func(schema.Item) bool) ([]schema.Item, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, created_at, updated_at, fields FROM records WHERE table_name = ? ORDER BY id`,
		desc.TableName)
	if err != nil {
		return nil, fmt.Errorf("failed to select records of %s: %w", desc.TableName, err)
	}
	defer rows.Close()

	var result []schema.Item
	for rows.Next() {
		item, err := scanItem(desc, rows.Scan)
		if err != nil {
			return nil, err
		}
		if match == nil || match(item) {
			result = append(result, item)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func encodeFields(desc *schema.Descriptor, item schema.Item) (string, error) {
	props, err := desc.Properties(item)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(props)
	if err != nil {
		return "", fmt.Errorf("failed to encode fields of %s: %w", item.Base().ID, err)
	}
	return string(data), nil
}

func scanItem(desc *schema.Descriptor, scan func(dest ...any) error) (schema.Item, error) {
	var id, createdAt, updatedAt, fields string
	if err := scan(&id, &createdAt, &updatedAt, &fields); err != nil {
		return nil, err
	}

	item := desc.New()
	base := item.Base()
	base.ID = id

	var err error
	if base.CreatedAt, err = timex.Parse(createdAt); err != nil {
		return nil, err
	}
	if base.UpdatedAt, err = timex.Parse(updatedAt); err != nil {
		return nil, err
	}

	var props map[string]string
	if err := json.Unmarshal([]byte(fields), &props); err != nil {
		return nil, fmt.Errorf("record %s has invalid fields payload: %w", id, err)
	}
	if err := desc.ApplyProperties(item, props); err != nil {
		return nil, err
	}
	return item, nil
}
