package operations

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/opsync/internal/operation"
	"github.com/dmitrijs2005/opsync/internal/timex"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresRepository(db), mock, db
}

var base = time.Date(2024, 5, 17, 9, 0, 0, 0, time.UTC)

func TestExistingIDs_EmptyInput(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	ids, err := repo.ExistingIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExistingIDs_ReturnsLoggedIDs(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT id FROM sync_operations WHERE id IN \(\$1, \$2, \$3\)`).
		WithArgs("a", "b", "c").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a").AddRow("c"))

	ids, err := repo.ExistingIDs(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"a": {}, "c": {}}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppend_WritesEveryOperation(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	op := operation.ServerOperation{
		Operation: operation.Operation{
			ID:        "op1",
			TableName: "tasks",
			ItemID:    "i1",
			Kind:      operation.Deleted,
			CreatedAt: timex.FromTime(base),
		},
		UserID:          "u1",
		InstallationID:  "inst1",
		ProcessingType:  operation.Processed,
		ServerUpdatedAt: timex.FromTime(base.Add(time.Second)),
	}

	mock.ExpectExec(`INSERT INTO sync_operations`).
		WithArgs("op1", "tasks", "i1", "Deleted", "", nil, nil,
			base, "u1", "inst1", "Processed", base.Add(time.Second)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Append(context.Background(), []operation.ServerOperation{op}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLastProcessedChange_Found(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT created_at FROM sync_operations`).
		WithArgs("tasks", "i1", "Title", "Processed").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(base))

	ts, found, err := repo.LastProcessedChange(context.Background(), "tasks", "i1", "Title")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, base, ts)
}

func TestLastProcessedChange_NoRows(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT created_at FROM sync_operations`).
		WithArgs("tasks", "i1", "Title", "Processed").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}))

	_, found, err := repo.LastProcessedChange(context.Background(), "tasks", "i1", "Title")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestChangedByOthers(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("tasks", "i1", "inst1", "Processed", base).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	changed, err := repo.ChangedByOthers(context.Background(), "tasks", "i1", "inst1", base)
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestListForItem(t *testing.T) {
	repo, mock, _ := newRepoWithMock(t)

	rows := sqlmock.NewRows([]string{
		"id", "table_name", "item_id", "kind", "property", "value", "old_value",
		"created_at", "user_id", "installation_id", "processing_type", "server_updated_at",
	}).
		AddRow("op1", "tasks", "i1", "Added", "", nil, nil, base, "u1", "inst1", "Processed", base).
		AddRow("op2", "tasks", "i1", "Modified", "Title", "x", "y", base.Add(time.Second), "u1", "inst2", "DiscardedOutdated", base.Add(time.Second))

	mock.ExpectQuery(`FROM sync_operations`).
		WithArgs("tasks", "i1").
		WillReturnRows(rows)

	ops, err := repo.ListForItem(context.Background(), "tasks", "i1")
	require.NoError(t, err)
	require.Len(t, ops, 2)

	assert.Equal(t, operation.Added, ops[0].Kind)
	assert.Equal(t, operation.DiscardedOutdated, ops[1].ProcessingType)
	require.NotNil(t, ops[1].Value)
	assert.Equal(t, "x", *ops[1].Value)
	assert.Equal(t, timex.FromTime(base.Add(time.Second)), ops[1].CreatedAt)
}
