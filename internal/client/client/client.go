// Package client implements the client side of the sync protocol: a local
// data API that captures changes as operations, and the push/pull
// orchestration against the sync server.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/dmitrijs2005/opsync/internal/client/config"
	"github.com/dmitrijs2005/opsync/internal/client/repositories/operations"
	"github.com/dmitrijs2005/opsync/internal/client/repositories/records"
	"github.com/dmitrijs2005/opsync/internal/client/repositories/settings"
	"github.com/dmitrijs2005/opsync/internal/common"
	"github.com/dmitrijs2005/opsync/internal/logging"
	"github.com/dmitrijs2005/opsync/internal/schema"
	"github.com/dmitrijs2005/opsync/internal/tracker"
)

// InstallationIDHeader carries the stable replica identity on every request,
// letting the server suppress echoes of the client's own changes.
const InstallationIDHeader = "X-Installation-Id"

const installationIDKey = "installationId"

// Authentication provides the bearer token attached to sync requests when
// the server requires authenticated calls.
type Authentication interface {
	BearerToken(ctx context.Context) (string, error)
}

// Client is the sync orchestrator. Its data methods (Save, Delete, ...)
// mutate local storage and queue operations; PushChanges and PullTable move
// state between the local store and the server.
//
// Push and pull are mutually exclusive within one Client: a second call while
// one is in flight is rejected immediately instead of queueing.
type Client struct {
	cfg            *config.Config
	http           *http.Client
	baseURL        string
	tables         *schema.Registry
	tracker        *tracker.ChangeTracker
	operations     operations.Repository
	records        records.Repository
	settings       settings.Repository
	authentication Authentication
	log            logging.Logger

	syncing atomic.Bool

	mu             sync.Mutex
	installationID string
}

type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for sync requests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithAuthentication configures a bearer-token provider.
func WithAuthentication(a Authentication) Option {
	return func(c *Client) { c.authentication = a }
}

// WithLogger configures the logger; the default discards everything.
func WithLogger(l logging.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithInstallationID pins the replica identity instead of generating and
// persisting one on first use.
func WithInstallationID(id string) Option {
	return func(c *Client) { c.installationID = id }
}

func New(cfg *config.Config, ops operations.Repository, recs records.Repository, sets settings.Repository, opts ...Option) *Client {
	c := &Client{
		cfg:        cfg,
		http:       &http.Client{Timeout: cfg.HTTPTimeout},
		baseURL:    strings.TrimRight(cfg.ServerEndpointAddr, "/"),
		tables:     schema.NewRegistry(),
		tracker:    tracker.New(),
		operations: ops,
		records:    recs,
		settings:   sets,
		log:        logging.NewNopLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AddTable registers a table to be handled by the client. All tables that
// should be synced have to be registered this way.
func (c *Client) AddTable(ctx context.Context, desc *schema.Descriptor) error {
	if desc == nil || desc.New == nil {
		return fmt.Errorf("%w: descriptor without item factory", common.ErrInvalidArgument)
	}

	if err := c.tables.Register(desc); err != nil {
		return err
	}

	if err := c.records.EnsureTable(ctx, desc.TableName); err != nil {
		return storeFailed("register table "+desc.TableName, err)
	}

	exists, err := c.records.TableExists(ctx, desc.TableName)
	if err != nil {
		return storeFailed("check table "+desc.TableName, err)
	}
	if !exists {
		return fmt.Errorf("%w: table %s missing from the local store", common.ErrStoreOperationFailed, desc.TableName)
	}
	return nil
}

// descriptor resolves the registered descriptor of an item's table.
func (c *Client) descriptor(tableName string) (*schema.Descriptor, error) {
	return c.tables.Lookup(tableName)
}

func storeFailed(action string, err error) error {
	return fmt.Errorf("%w: %s: %w", common.ErrStoreOperationFailed, action, err)
}
