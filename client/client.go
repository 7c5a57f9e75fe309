package client

import (
	"context"
	"time"

	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

const (
	defaultConnectTimeout   = 10 * time.Second
	connectRetryInterval    = 100 * time.Millisecond
	defaultOperationTimeout = 30 * time.Second
)

// ClientBuilder assembles a Client bound to one of the given master
// endpoints.
type ClientBuilder struct {
	masterAddrs    []string
	connectTimeout time.Duration
	opTimeout      time.Duration
	dialer         Dialer
}

// NewClientBuilder returns a builder with default timeouts.
func NewClientBuilder() *ClientBuilder {
	return &ClientBuilder{
		connectTimeout: defaultConnectTimeout,
		opTimeout:      defaultOperationTimeout,
	}
}

// AddMasterServerAddr adds one master endpoint to try.
func (b *ClientBuilder) AddMasterServerAddr(addr string) *ClientBuilder {
	b.masterAddrs = append(b.masterAddrs, addr)
	return b
}

// ConnectTimeout bounds the whole Build retry loop.
func (b *ClientBuilder) ConnectTimeout(d time.Duration) *ClientBuilder {
	b.connectTimeout = d
	return b
}

// DefaultOperationTimeout bounds each client operation that has no explicit
// timeout of its own.
func (b *ClientBuilder) DefaultOperationTimeout(d time.Duration) *ClientBuilder {
	b.opTimeout = d
	return b
}

// Dialer sets the transport used to reach the masters.
func (b *ClientBuilder) Dialer(d Dialer) *ClientBuilder {
	b.dialer = d
	return b
}

// Build dials the master endpoints in order, retrying until one answers or
// the connect timeout expires.
func (b *ClientBuilder) Build() (*Client, error) {
	if len(b.masterAddrs) == 0 {
		return nil, InvalidArgumentf("no master addresses given")
	}
	if b.dialer == nil {
		return nil, InvalidArgumentf("no dialer configured")
	}
	deadline := time.Now().Add(b.connectTimeout)
	var lastErr error
	for {
		for _, addr := range b.masterAddrs {
			ctx, cancel := context.WithDeadline(context.Background(), deadline)
			svc, err := b.dialer.Dial(ctx, addr)
			cancel()
			if err != nil {
				lastErr = err
				continue
			}
			log.Info("connected to master", zap.String("addr", addr))
			return &Client{
				masterAddr: addr,
				svc:        svc,
				opTimeout:  b.opTimeout,
			}, nil
		}
		if !time.Now().Add(connectRetryInterval).Before(deadline) {
			return nil, errors.Annotate(
				TimedOutf("failed to connect to master(s) %v", b.masterAddrs),
				errString(lastErr))
		}
		time.Sleep(connectRetryInterval)
	}
}

func errString(err error) string {
	if err == nil {
		return "no endpoint answered"
	}
	return err.Error()
}

// Client is a handle on the cluster. It owns no persistent state and is
// released with Close. It must not be used after Close.
type Client struct {
	masterAddr string
	svc        Service
	opTimeout  time.Duration
	closed     atomic.Bool
}

// MasterAddr returns the endpoint the client is bound to.
func (c *Client) MasterAddr() string { return c.masterAddr }

func (c *Client) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.opTimeout)
}

// OpenTable fetches the table's current schema and returns a handle on it.
// A missing table is reported as a not-found error.
func (c *Client) OpenTable(ctx context.Context, name string) (*Table, error) {
	ctx, cancel := c.opCtx(ctx)
	defer cancel()
	info, err := c.svc.GetTable(ctx, name)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &Table{
		client:        c,
		name:          info.Name,
		id:            info.ID,
		schema:        info.Schema,
		schemaVersion: info.SchemaVersion,
	}, nil
}

// DeleteTable drops the table by name. Absence is an error.
func (c *Client) DeleteTable(ctx context.Context, name string) error {
	ctx, cancel := c.opCtx(ctx)
	defer cancel()
	return errors.Trace(c.svc.DeleteTable(ctx, name))
}

// NewTableCreator starts a create-table request.
func (c *Client) NewTableCreator() *TableCreator {
	return &TableCreator{client: c}
}

// NewTableAlterer starts a compound alter-table request.
func (c *Client) NewTableAlterer() *TableAlterer {
	return &TableAlterer{client: c}
}

// NewSession opens a mutation session. The default flush mode is
// AutoFlushSync.
func (c *Client) NewSession() *Session {
	return &Session{
		client:           c,
		flushMode:        AutoFlushSync,
		timeout:          c.opTimeout,
		pendingErrorsCap: defaultPendingErrorsCap,
	}
}

// Close releases the client handle.
func (c *Client) Close() {
	if c.closed.Swap(true) {
		return
	}
	log.Info("client closed", zap.String("master", c.masterAddr))
}

// Table is a strong handle on one table, carrying the schema observed when
// it was opened. Reopen after an alteration to observe the new schema.
type Table struct {
	client        *Client
	name          string
	id            uint64
	schema        *Schema
	schemaVersion uint32
}

// Name returns the table name.
func (t *Table) Name() string { return t.name }

// Schema returns the schema the handle was opened with.
func (t *Table) Schema() *Schema { return t.schema }

// SchemaVersion returns the schema version the handle was opened with.
func (t *Table) SchemaVersion() uint32 { return t.schemaVersion }

// Client returns the owning client handle.
func (t *Table) Client() *Client { return t.client }

// NewInsert returns a fresh insert operation against this table.
func (t *Table) NewInsert() *Insert {
	return &Insert{table: t, row: NewPartialRow(t.schema)}
}
