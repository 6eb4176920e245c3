package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/opsync/internal/common"
	"github.com/dmitrijs2005/opsync/internal/schema"
	"github.com/dmitrijs2005/opsync/internal/timex"
)

// Save persists an item locally and queues the operations replicating the
// change. An item without an id is treated as new and gets one generated;
// otherwise the stored version is diffed against the given one and only the
// changed fields produce operations.
func (c *Client) Save(ctx context.Context, item schema.Item) error {
	desc, err := c.descriptor(item.TableName())
	if err != nil {
		return err
	}

	base := item.Base()
	now := timex.Now()
	base.UpdatedAt = now

	if base.ID == "" {
		base.ID = uuid.NewString()
		base.CreatedAt = now
		return c.saveNew(ctx, desc, item)
	}

	existing, err := c.records.FindByID(ctx, desc, base.ID)
	if errors.Is(err, common.ErrNotFound) {
		if base.CreatedAt.IsZero() {
			base.CreatedAt = now
		}
		return c.saveNew(ctx, desc, item)
	}
	if err != nil {
		return storeFailed("load record "+base.ID, err)
	}

	return c.saveExisting(ctx, desc, existing, item)
}

func (c *Client) saveNew(ctx context.Context, desc *schema.Descriptor, item schema.Item) error {
	ops, err := c.tracker.TrackAdd(desc, item)
	if err != nil {
		return err
	}

	if err := c.records.Insert(ctx, desc, item); err != nil {
		return storeFailed("insert record "+item.Base().ID, err)
	}
	if err := c.operations.Add(ctx, ops...); err != nil {
		return storeFailed("queue operations", err)
	}

	c.log.Debug(ctx, "record added", "table", desc.TableName, "id", item.Base().ID, "operations", len(ops))
	return nil
}

func (c *Client) saveExisting(ctx context.Context, desc *schema.Descriptor, oldItem, newItem schema.Item) error {
	ops, err := c.tracker.TrackModify(desc, oldItem, newItem)
	if err != nil {
		return err
	}

	if err := c.records.Update(ctx, desc, newItem); err != nil {
		return storeFailed("update record "+newItem.Base().ID, err)
	}
	if err := c.operations.Add(ctx, ops...); err != nil {
		return storeFailed("queue operations", err)
	}

	// Every change supersedes queued changes of the same property; pushing
	// the stale ones would only be discarded by the server.
	for _, op := range ops {
		if err := c.operations.DeleteObsoleteModifications(ctx, op.TableName, op.ItemID, op.Property, op.ID); err != nil {
			return storeFailed("drop superseded operations", err)
		}
	}

	c.log.Debug(ctx, "record updated", "table", desc.TableName, "id", newItem.Base().ID, "operations", len(ops))
	return nil
}

// Delete removes an item locally and queues the Deleted operation. Queued
// operations of the same item other than earlier deletes are dropped, the
// server would discard them anyway.
func (c *Client) Delete(ctx context.Context, item schema.Item) error {
	desc, err := c.descriptor(item.TableName())
	if err != nil {
		return err
	}

	base := item.Base()
	if base.ID == "" {
		return fmt.Errorf("%w: cannot delete an item without id", common.ErrInvalidArgument)
	}
	base.UpdatedAt = timex.Now()

	op, err := c.tracker.TrackDelete(desc, item)
	if err != nil {
		return err
	}

	if err := c.records.Delete(ctx, desc.TableName, base.ID); err != nil {
		return storeFailed("delete record "+base.ID, err)
	}
	if err := c.operations.DeleteObsoleteForDeletedItem(ctx, desc.TableName, base.ID); err != nil {
		return storeFailed("drop superseded operations", err)
	}
	if err := c.operations.Add(ctx, op); err != nil {
		return storeFailed("queue operations", err)
	}

	c.log.Debug(ctx, "record deleted", "table", desc.TableName, "id", base.ID)
	return nil
}

// GetByID returns one locally stored record or common.ErrNotFound.
func (c *Client) GetByID(ctx context.Context, tableName, id string) (schema.Item, error) {
	desc, err := c.descriptor(tableName)
	if err != nil {
		return nil, err
	}
	return c.records.FindByID(ctx, desc, id)
}

// GetAll returns every locally stored record of a table.
func (c *Client) GetAll(ctx context.Context, tableName string) ([]schema.Item, error) {
	desc, err := c.descriptor(tableName)
	if err != nil {
		return nil, err
	}
	return c.records.All(ctx, desc)
}

// FindBy returns the locally stored records matching the predicate.
func (c *Client) FindBy(ctx context.Context, tableName string, match func(schema.Item) bool) ([]schema.Item, error) {
	desc, err := c.descriptor(tableName)
	if err != nil {
		return nil, err
	}
	return c.records.FindBy(ctx, desc, match)
}

// HasPendingOperations reports whether any captured change still waits to be
// pushed.
func (c *Client) HasPendingOperations(ctx context.Context) (bool, error) {
	return c.operations.HasPending(ctx)
}

// applyRemote upserts a record received from the server. The change tracker
// is bypassed: replicated state must not be replicated again.
func (c *Client) applyRemote(ctx context.Context, desc *schema.Descriptor, item schema.Item) error {
	_, err := c.records.FindByID(ctx, desc, item.Base().ID)
	if errors.Is(err, common.ErrNotFound) {
		return c.records.Insert(ctx, desc, item)
	}
	if err != nil {
		return err
	}
	return c.records.Update(ctx, desc, item)
}
