package operations

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/opsync/internal/operation"
	"github.com/dmitrijs2005/opsync/internal/timex"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	_, err = db.Exec(`
CREATE TABLE operations (
  id         TEXT PRIMARY KEY,
  table_name TEXT NOT NULL,
  item_id    TEXT NOT NULL,
  kind       TEXT NOT NULL,
  property   TEXT,
  value      TEXT,
  old_value  TEXT,
  created_at TEXT NOT NULL
);`)
	require.NoError(t, err)
	return db
}

var base = time.Date(2024, 5, 17, 9, 0, 0, 0, time.UTC)

func modOp(id, itemID, property string, offset time.Duration) operation.Operation {
	v := "v-" + id
	op := operation.Operation{
		ID:        id,
		TableName: "tasks",
		ItemID:    itemID,
		Kind:      operation.Modified,
		Property:  property,
		Value:     &v,
		CreatedAt: timex.FromTime(base.Add(offset)),
	}
	return op
}

func TestAddAndGetPage_RoundTrip(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	op := modOp("op1", "1", "Name", 0)
	old := "before"
	op.OldValue = &old
	require.NoError(t, r.Add(ctx, op))

	got, err := r.GetPage(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, op, got[0])
}

func TestGetPage_OrdersByCreatedAt(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Add(ctx,
		modOp("b", "2", "Name", 2*time.Second),
		modOp("a", "1", "Name", time.Second),
		modOp("c", "3", "Name", 3*time.Second),
	))

	got, err := r.GetPage(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestGetPage_NeverSplitsAGroup(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	// item 1: three operations, item 2: two operations
	require.NoError(t, r.Add(ctx,
		modOp("1a", "1", "A", 0),
		modOp("1b", "1", "B", time.Second),
		modOp("1c", "1", "C", 2*time.Second),
		modOp("2a", "2", "A", 3*time.Second),
		modOp("2b", "2", "B", 4*time.Second),
	))

	got, err := r.GetPage(ctx, 4)
	require.NoError(t, err)

	// group of item 2 would exceed the budget, so only item 1 is returned
	require.Len(t, got, 3)
	for _, op := range got {
		assert.Equal(t, "1", op.ItemID)
	}
}

func TestGetPage_OversizedGroupReturnedWhole(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	var ops []operation.Operation
	for i := 0; i < 5; i++ {
		ops = append(ops, modOp(fmt.Sprintf("op%d", i), "1", fmt.Sprintf("P%d", i), time.Duration(i)*time.Second))
	}
	require.NoError(t, r.Add(ctx, ops...))

	got, err := r.GetPage(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, got, 5) // progress guarantee: the single group exceeds the budget
}

func TestGetPage_InterleavedGroupsStayWhole(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	// operations of items 1 and 2 interleave in time
	require.NoError(t, r.Add(ctx,
		modOp("1a", "1", "A", 0),
		modOp("2a", "2", "A", time.Second),
		modOp("1b", "1", "B", 2*time.Second),
		modOp("2b", "2", "B", 3*time.Second),
	))

	got, err := r.GetPage(ctx, 3)
	require.NoError(t, err)

	// only item 1's whole group fits; result stays in created-at order
	require.Len(t, got, 2)
	assert.Equal(t, "1a", got[0].ID)
	assert.Equal(t, "1b", got[1].ID)
}

func TestDelete_RemovesOnlyGivenOperations(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	keep := modOp("keep", "1", "A", 0)
	drop := modOp("drop", "2", "A", time.Second)
	require.NoError(t, r.Add(ctx, keep, drop))

	require.NoError(t, r.Delete(ctx, drop))

	got, err := r.GetPage(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "keep", got[0].ID)
}

func TestHasPending(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	pending, err := r.HasPending(ctx)
	require.NoError(t, err)
	assert.False(t, pending)

	require.NoError(t, r.Add(ctx, modOp("op1", "1", "A", 0)))

	pending, err = r.HasPending(ctx)
	require.NoError(t, err)
	assert.True(t, pending)
}

func TestDeleteObsoleteForDeletedItem_KeepsDeleteOperation(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	del := operation.Operation{
		ID: "del", TableName: "tasks", ItemID: "1",
		Kind: operation.Deleted, CreatedAt: timex.FromTime(base),
	}
	require.NoError(t, r.Add(ctx, modOp("m1", "1", "A", 0), modOp("m2", "1", "B", 0), del))

	require.NoError(t, r.DeleteObsoleteForDeletedItem(ctx, "tasks", "1"))

	got, err := r.GetPage(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, operation.Deleted, got[0].Kind)
}

func TestDeleteObsoleteModifications_KeepsNewest(t *testing.T) {
	r := NewSQLiteRepository(setupDB(t))
	ctx := context.Background()

	require.NoError(t, r.Add(ctx,
		modOp("older", "1", "Name", 0),
		modOp("newest", "1", "Name", time.Second),
		modOp("other-prop", "1", "Done", 0),
	))

	require.NoError(t, r.DeleteObsoleteModifications(ctx, "tasks", "1", "Name", "newest"))

	got, err := r.GetPage(ctx, 0)
	require.NoError(t, err)
	ids := []string{}
	for _, op := range got {
		ids = append(ids, op.ID)
	}
	assert.ElementsMatch(t, []string{"newest", "other-prop"}, ids)
}
