package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/opsync/internal/common"
	"github.com/dmitrijs2005/opsync/internal/operation"
	"github.com/dmitrijs2005/opsync/internal/schema"
)

func TestSave_NewItemStoresRecordAndQueuesOperations(t *testing.T) {
	c, repos := newTestClient(t, "")
	ctx := context.Background()

	item := &task{Title: "buy milk"}
	require.NoError(t, c.Save(ctx, item))
	require.NotEmpty(t, item.ID)

	stored, err := c.GetByID(ctx, "tasks", item.ID)
	require.NoError(t, err)
	assert.Equal(t, "buy milk", stored.(*task).Title)

	ops, err := repos.Operations.GetPage(ctx, 0)
	require.NoError(t, err)
	require.Len(t, ops, 2, "one Added entry plus one Modified per non-default field")

	assert.Equal(t, operation.Added, ops[0].Kind)
	assert.Equal(t, operation.Modified, ops[1].Kind)
	assert.Equal(t, "Title", ops[1].Property)
	require.NotNil(t, ops[1].Value)
	assert.Equal(t, "buy milk", *ops[1].Value)
	assert.True(t, ops[0].CreatedAt.Before(ops[1].CreatedAt.Time),
		"Added must sort strictly before the field entries")
}

func TestSave_UpdateQueuesDiffAndDropsSupersededOperations(t *testing.T) {
	c, repos := newTestClient(t, "")
	ctx := context.Background()

	item := &task{Title: "a"}
	require.NoError(t, c.Save(ctx, item))

	item.Title = "b"
	require.NoError(t, c.Save(ctx, item))

	item.Title = "c"
	require.NoError(t, c.Save(ctx, item))

	ops, err := repos.Operations.GetPage(ctx, 0)
	require.NoError(t, err)
	require.Len(t, ops, 2, "intermediate Title changes must be dropped")

	assert.Equal(t, operation.Added, ops[0].Kind)

	last := ops[1]
	assert.Equal(t, operation.Modified, last.Kind)
	assert.Equal(t, "Title", last.Property)
	require.NotNil(t, last.Value)
	assert.Equal(t, "c", *last.Value)
	require.NotNil(t, last.OldValue)
	assert.Equal(t, "b", *last.OldValue)
}

func TestSave_UnchangedItemQueuesNothing(t *testing.T) {
	c, repos := newTestClient(t, "")
	ctx := context.Background()

	item := &task{Title: "same"}
	require.NoError(t, c.Save(ctx, item))
	require.NoError(t, c.Save(ctx, item))

	ops, err := repos.Operations.GetPage(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, ops, 2)
}

func TestSave_UnknownTable(t *testing.T) {
	c, _ := newTestClient(t, "")

	err := c.Save(context.Background(), &note{Text: "hi"})
	assert.ErrorIs(t, err, common.ErrUnknownTable)
}

func TestDelete_RemovesRecordAndCollapsesQueue(t *testing.T) {
	c, repos := newTestClient(t, "")
	ctx := context.Background()

	item := &task{Title: "gone soon", Done: true}
	require.NoError(t, c.Save(ctx, item))
	require.NoError(t, c.Delete(ctx, item))

	_, err := c.GetByID(ctx, "tasks", item.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	ops, err := repos.Operations.GetPage(ctx, 0)
	require.NoError(t, err)
	require.Len(t, ops, 1, "queued adds and modifications of a deleted item are dropped")
	assert.Equal(t, operation.Deleted, ops[0].Kind)
	assert.Equal(t, item.ID, ops[0].ItemID)
}

func TestDelete_RequiresID(t *testing.T) {
	c, _ := newTestClient(t, "")

	err := c.Delete(context.Background(), &task{})
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}

func TestGetAllAndFindBy(t *testing.T) {
	c, _ := newTestClient(t, "")
	ctx := context.Background()

	require.NoError(t, c.Save(ctx, &task{Title: "one"}))
	require.NoError(t, c.Save(ctx, &task{Title: "two", Done: true}))
	require.NoError(t, c.Save(ctx, &task{Title: "three", Done: true}))

	all, err := c.GetAll(ctx, "tasks")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	done, err := c.FindBy(ctx, "tasks", func(item schema.Item) bool { return item.(*task).Done })
	require.NoError(t, err)
	assert.Len(t, done, 2)
}

func TestHasPendingOperations(t *testing.T) {
	c, _ := newTestClient(t, "")
	ctx := context.Background()

	pending, err := c.HasPendingOperations(ctx)
	require.NoError(t, err)
	assert.False(t, pending)

	require.NoError(t, c.Save(ctx, &task{Title: "x"}))

	pending, err = c.HasPendingOperations(ctx)
	require.NoError(t, err)
	assert.True(t, pending)
}
