package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/opsync/internal/operation"
	"github.com/dmitrijs2005/opsync/internal/schema"
	"github.com/dmitrijs2005/opsync/internal/timex"
)

const lastSyncKeyPrefix = "lastSync-"

// PushChanges uploads all pending operations in pages, deleting each page
// from the queue only after the server accepted it. It returns false without
// doing anything when another push or pull is already running or the context
// is already cancelled. Once the push started, true means exactly that: a
// cancellation or failure between pages still returns true alongside the
// error. The remaining operations stay queued; progress made before the
// failure is not rolled back.
func (c *Client) PushChanges(ctx context.Context) (bool, error) {
	if ctx.Err() != nil {
		return false, nil
	}
	if !c.syncing.CompareAndSwap(false, true) {
		return false, nil
	}
	defer c.syncing.Store(false)

	installationID, err := c.ensureInstallationID(ctx)
	if err != nil {
		return true, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return true, err
		}

		page, err := c.operations.GetPage(ctx, c.cfg.PushPageSize)
		if err != nil {
			return true, storeFailed("load pending operations", err)
		}
		if len(page) == 0 {
			return true, nil
		}

		if err := c.postOperations(ctx, page, installationID); err != nil {
			return true, err
		}
		if err := c.operations.Delete(ctx, page...); err != nil {
			return true, storeFailed("clear pushed operations", err)
		}

		c.log.Debug(ctx, "operation page pushed", "count", len(page))
	}
}

func (c *Client) postOperations(ctx context.Context, ops []operation.Operation, installationID string) error {
	body, err := json.Marshal(ops)
	if err != nil {
		return fmt.Errorf("encoding operations: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/operations", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(InstallationIDHeader, installationID)
	if err := c.authorize(ctx, req); err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("pushing operations: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &PushError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return nil
}

// PullTable downloads a table's remote changes since the last successful pull
// and applies them to the local store without capturing new operations. It
// returns the number of records applied. Like PushChanges it runs exclusively
// and returns immediately, without touching the stores, when a sync is
// already in flight or the context is already cancelled.
//
// The table's watermark only advances after the whole pull succeeded, so an
// interrupted pull re-reads the same window next time. Applying a record
// twice is harmless.
func (c *Client) PullTable(ctx context.Context, tableName string) (int, error) {
	if ctx.Err() != nil {
		return 0, nil
	}
	if !c.syncing.CompareAndSwap(false, true) {
		return 0, nil
	}
	defer c.syncing.Store(false)

	desc, err := c.descriptor(tableName)
	if err != nil {
		return 0, err
	}

	installationID, err := c.ensureInstallationID(ctx)
	if err != nil {
		return 0, err
	}

	watermarkKey := lastSyncKeyPrefix + tableName
	laterThan, err := c.settings.Get(ctx, watermarkKey)
	if err != nil {
		return 0, storeFailed("read watermark for "+tableName, err)
	}

	// Records changing between now and the end of the pull land in the next
	// window; pulling them twice is cheaper than missing them.
	pullStarted := timex.Now()
	applied := 0

	for pageNumber := 0; ; pageNumber++ {
		if err := ctx.Err(); err != nil {
			return applied, err
		}

		page, err := c.fetchRecordPage(ctx, desc, laterThan, pageNumber, installationID)
		if err != nil {
			return applied, err
		}

		for _, raw := range page {
			item, deletedAt, err := desc.DecodeWire(raw)
			if err != nil {
				return applied, err
			}

			if deletedAt != nil {
				if err := c.records.Delete(ctx, desc.TableName, item.Base().ID); err != nil {
					return applied, storeFailed("delete record "+item.Base().ID, err)
				}
			} else if err := c.applyRemote(ctx, desc, item); err != nil {
				return applied, storeFailed("apply record "+item.Base().ID, err)
			}
			applied++
		}

		if len(page) < c.cfg.PullPageSize {
			break
		}
	}

	if err := c.settings.Set(ctx, watermarkKey, pullStarted.Format()); err != nil {
		return applied, storeFailed("advance watermark for "+tableName, err)
	}

	c.log.Debug(ctx, "table pulled", "table", tableName, "records", applied)
	return applied, nil
}

func (c *Client) fetchRecordPage(ctx context.Context, desc *schema.Descriptor, laterThan string, pageNumber int, installationID string) ([]json.RawMessage, error) {
	q := url.Values{}
	q.Set("pageNumber", strconv.Itoa(pageNumber))
	q.Set("pageSize", strconv.Itoa(c.cfg.PullPageSize))
	if laterThan != "" {
		q.Set("laterThan", laterThan)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+desc.ListPath()+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(InstallationIDHeader, installationID)
	if err := c.authorize(ctx, req); err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pulling table %s: %w", desc.TableName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &PullError{StatusCode: resp.StatusCode}
	}

	var page []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decoding %s page: %w", desc.TableName, err)
	}
	return page, nil
}

func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	if c.authentication == nil {
		return nil
	}
	token, err := c.authentication.BearerToken(ctx)
	if err != nil {
		return fmt.Errorf("acquiring bearer token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// ensureInstallationID returns the replica identity, generating and
// persisting one on first use so it survives restarts.
func (c *Client) ensureInstallationID(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.installationID != "" {
		return c.installationID, nil
	}

	id, err := c.settings.Get(ctx, installationIDKey)
	if err != nil {
		return "", storeFailed("read installation id", err)
	}
	if id == "" {
		id = uuid.NewString()
		if err := c.settings.Set(ctx, installationIDKey, id); err != nil {
			return "", storeFailed("persist installation id", err)
		}
	}

	c.installationID = id
	return id, nil
}
