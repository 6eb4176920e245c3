package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/opsync/internal/common"
	"github.com/dmitrijs2005/opsync/internal/dbx"
	"github.com/dmitrijs2005/opsync/internal/server/models"
	"github.com/dmitrijs2005/opsync/internal/timex"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func encodeFields(rec *models.Record) ([]byte, error) {
	if rec.Fields == nil {
		return []byte(`{}`), nil
	}
	return json.Marshal(rec.Fields)
}

func (r *PostgresRepository) FindByID(ctx context.Context, tableName, id string) (*models.Record, error) {
	query := `
		SELECT created_at, updated_at, deleted_at, server_updated_at, user_id, fields
		FROM records
		WHERE table_name = $1 AND id = $2`

	rec := &models.Record{TableName: tableName, ID: id}
	var createdAt, updatedAt, serverUpdatedAt time.Time
	var deletedAt sql.NullTime
	var fields []byte

	err := r.db.QueryRowContext(ctx, query, tableName, id).
		Scan(&createdAt, &updatedAt, &deletedAt, &serverUpdatedAt, &rec.UserID, &fields)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: record %s in table %s", common.ErrNotFound, id, tableName)
	}
	if err != nil {
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}

	rec.CreatedAt = timex.FromTime(createdAt)
	rec.UpdatedAt = timex.FromTime(updatedAt)
	rec.ServerUpdatedAt = timex.FromTime(serverUpdatedAt)
	if deletedAt.Valid {
		ts := timex.FromTime(deletedAt.Time)
		rec.DeletedAt = &ts
	}
	if err := json.Unmarshal(fields, &rec.Fields); err != nil {
		return nil, fmt.Errorf("decoding fields of record %s: %w", id, err)
	}
	return rec, nil
}

func (r *PostgresRepository) Insert(ctx context.Context, rec *models.Record) error {
	query := `
		INSERT INTO records (table_name, id, created_at, updated_at, deleted_at, server_updated_at, user_id, fields)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	fields, err := encodeFields(rec)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, query,
		rec.TableName, rec.ID, rec.CreatedAt.Time, rec.UpdatedAt.Time,
		deletedAtArg(rec), rec.ServerUpdatedAt.Time, rec.UserID, fields)
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Update(ctx context.Context, rec *models.Record) error {
	query := `
		UPDATE records
		SET updated_at = $3, deleted_at = $4, server_updated_at = $5, fields = $6
		WHERE table_name = $1 AND id = $2`

	fields, err := encodeFields(rec)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx, query,
		rec.TableName, rec.ID, rec.UpdatedAt.Time,
		deletedAtArg(rec), rec.ServerUpdatedAt.Time, fields)
	if err != nil {
		return fmt.Errorf("error performing sql request: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: record %s in table %s", common.ErrNotFound, rec.ID, rec.TableName)
	}
	return nil
}

func (r *PostgresRepository) List(ctx context.Context, tableName, userID string, laterThan time.Time, pageNumber, pageSize int) ([]*models.Record, error) {
	query := `
		SELECT id, created_at, updated_at, deleted_at, server_updated_at, user_id, fields
		FROM records
		WHERE table_name = $1 AND server_updated_at >= $2 AND ($3 = '' OR user_id = $3)
		ORDER BY server_updated_at, id
		LIMIT $4 OFFSET $5`

	rows, err := r.db.QueryContext(ctx, query,
		tableName, laterThan, userID, pageSize, pageNumber*pageSize)
	if err != nil {
		return nil, fmt.Errorf("error performing sql request: %w", err)
	}
	defer rows.Close()

	var result []*models.Record
	for rows.Next() {
		rec := &models.Record{TableName: tableName}
		var createdAt, updatedAt, serverUpdatedAt time.Time
		var deletedAt sql.NullTime
		var fields []byte

		if err := rows.Scan(&rec.ID, &createdAt, &updatedAt, &deletedAt,
			&serverUpdatedAt, &rec.UserID, &fields); err != nil {
			return nil, err
		}

		rec.CreatedAt = timex.FromTime(createdAt)
		rec.UpdatedAt = timex.FromTime(updatedAt)
		rec.ServerUpdatedAt = timex.FromTime(serverUpdatedAt)
		if deletedAt.Valid {
			ts := timex.FromTime(deletedAt.Time)
			rec.DeletedAt = &ts
		}
		if err := json.Unmarshal(fields, &rec.Fields); err != nil {
			return nil, fmt.Errorf("decoding fields of record %s: %w", rec.ID, err)
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

func deletedAtArg(rec *models.Record) any {
	if rec.DeletedAt == nil {
		return nil
	}
	return rec.DeletedAt.Time
}
