package records

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/opsync/internal/common"
	"github.com/dmitrijs2005/opsync/internal/schema"
	"github.com/dmitrijs2005/opsync/internal/timex"
)

type task struct {
	schema.Record
	Name string
	Done bool
}

func (t *task) TableName() string    { return "tasks" }
func (t *task) Base() *schema.Record { return &t.Record }

func taskDescriptor() *schema.Descriptor {
	return &schema.Descriptor{
		TableName: "tasks",
		New:       func() schema.Item { return &task{} },
		Fields: []schema.Field{
			schema.StringField("Name", func(t *task) string { return t.Name }, func(t *task, v string) { t.Name = v }),
			schema.BoolField("Done", func(t *task) bool { return t.Done }, func(t *task, v bool) { t.Done = v }),
		},
	}
}

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE sync_tables (
  name TEXT PRIMARY KEY
);
CREATE TABLE records (
  table_name TEXT NOT NULL,
  id         TEXT NOT NULL,
  created_at TEXT NOT NULL,
  updated_at TEXT NOT NULL,
  fields     TEXT NOT NULL,
  PRIMARY KEY (table_name, id)
);`)
	require.NoError(t, err)
	return db
}

func newTask(id, name string, done bool) *task {
	item := &task{Name: name, Done: done}
	item.ID = id
	item.CreatedAt = timex.FromTime(time.Date(2024, 5, 17, 8, 0, 0, 0, time.UTC))
	item.UpdatedAt = timex.FromTime(time.Date(2024, 5, 17, 9, 0, 0, 0, time.UTC))
	return item
}

func TestEnsureTable_IsIdempotent(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	exists, err := r.TableExists(ctx, "tasks")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, r.EnsureTable(ctx, "tasks"))
	require.NoError(t, r.EnsureTable(ctx, "tasks"))

	exists, err = r.TableExists(ctx, "tasks")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestInsertAndFindByID_RoundTrip(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()
	desc := taskDescriptor()

	item := newTask("1", "write tests", true)
	require.NoError(t, r.Insert(ctx, desc, item))

	got, err := r.FindByID(ctx, desc, "1")
	require.NoError(t, err)
	assert.Equal(t, item, got)
}

func TestFindByID_MissingRecord(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))

	_, err := r.FindByID(context.Background(), taskDescriptor(), "ghost")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestUpdate_ReplacesFields(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()
	desc := taskDescriptor()

	item := newTask("1", "before", false)
	require.NoError(t, r.Insert(ctx, desc, item))

	item.Name = "after"
	item.Done = true
	require.NoError(t, r.Update(ctx, desc, item))

	got, err := r.FindByID(ctx, desc, "1")
	require.NoError(t, err)
	assert.Equal(t, "after", got.(*task).Name)
	assert.True(t, got.(*task).Done)
}

func TestUpdate_MissingRecord(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	err := r.Update(context.Background(), taskDescriptor(), newTask("ghost", "x", false))
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestDelete_IsIdempotent(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()
	desc := taskDescriptor()

	require.NoError(t, r.Insert(ctx, desc, newTask("1", "x", false)))
	require.NoError(t, r.Delete(ctx, "tasks", "1"))
	require.NoError(t, r.Delete(ctx, "tasks", "1"))

	_, err := r.FindByID(ctx, desc, "1")
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestAllAndFindBy(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()
	desc := taskDescriptor()

	require.NoError(t, r.Insert(ctx, desc, newTask("1", "a", false)))
	require.NoError(t, r.Insert(ctx, desc, newTask("2", "b", true)))

	all, err := r.All(ctx, desc)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	done, err := r.FindBy(ctx, desc, func(item schema.Item) bool {
		return item.(*task).Done
	})
	require.NoError(t, err)
	require.Len(t, done, 1)
	assert.Equal(t, "2", done[0].Base().ID)
}
