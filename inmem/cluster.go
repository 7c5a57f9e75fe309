// Package inmem is an in-process stand-in for the remote tablet store: a
// table catalog plus per-tablet sorted row storage behind the client's
// service interfaces. It exists so the client library and the sample can be
// exercised without a running cluster; it is a harness, not the service.
package inmem

import (
	"bytes"
	"context"
	"sync"

	"github.com/google/btree"
	"github.com/ngaut/log"
	"github.com/pingcap/errors"

	"github.com/tinytablet/tinytablet/client"
	"github.com/tinytablet/tinytablet/codec"
)

// Config carries the tunables of an in-process cluster.
type Config struct {
	// ScanBatchSize caps the rows returned per scan round trip.
	ScanBatchSize int
}

// NewDefaultConfig returns the default cluster configuration.
func NewDefaultConfig() *Config {
	return &Config{ScanBatchSize: 100}
}

type table struct {
	name    string
	id      uint64
	schema  *client.Schema
	version uint32
	tablets *btree.BTree
}

func (t *table) locations() []client.TabletLocation {
	locs := make([]client.TabletLocation, 0, t.tablets.Len())
	t.tablets.Ascend(func(i btree.Item) bool {
		tb := i.(*tablet)
		locs = append(locs, client.TabletLocation{
			TabletID: tb.id,
			StartKey: tb.startKey,
			EndKey:   tb.endKey,
		})
		return true
	})
	return locs
}

// Cluster implements client.Service in process.
type Cluster struct {
	mu        sync.RWMutex
	conf      *Config
	tables    map[string]*table
	tabletIdx map[uint64]*tablet
	nextID    uint64
	writeHook WriteHook
}

var _ client.Service = (*Cluster)(nil)

// NewCluster returns an empty cluster.
func NewCluster(conf *Config) *Cluster {
	if conf == nil {
		conf = NewDefaultConfig()
	}
	return &Cluster{
		conf:      conf,
		tables:    make(map[string]*table),
		tabletIdx: make(map[uint64]*tablet),
		nextID:    1,
	}
}

// SetWriteHook installs a fault-injection hook consulted on every row write.
func (c *Cluster) SetWriteHook(h WriteHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeHook = h
}

func (c *Cluster) allocID() uint64 {
	id := c.nextID
	c.nextID++
	return id
}

// CreateTable registers a new table pre-split at the request's split keys.
func (c *Cluster) CreateTable(ctx context.Context, req *client.CreateTableRequest) error {
	if req.Name == "" {
		return client.InvalidArgumentf("table name must not be empty")
	}
	if req.Schema == nil {
		return client.InvalidArgumentf("table %q has no schema", req.Name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.tables[req.Name]; ok {
		return client.AlreadyExistsf("table %q already exists", req.Name)
	}
	boundaries := make([][]byte, 0, len(req.SplitKeys)+2)
	boundaries = append(boundaries, nil)
	for i, k := range req.SplitKeys {
		if len(k) == 0 {
			return client.InvalidArgumentf("split key %d is empty", i)
		}
		if i > 0 && bytes.Compare(req.SplitKeys[i-1], k) >= 0 {
			return client.InvalidArgumentf("split keys are not strictly increasing at index %d", i)
		}
		boundaries = append(boundaries, k)
	}
	boundaries = append(boundaries, nil)

	t := &table{
		name:    req.Name,
		id:      c.allocID(),
		schema:  req.Schema,
		version: 0,
		tablets: btree.New(2),
	}
	for i := 0; i+1 < len(boundaries); i++ {
		tb := newTablet(c.allocID(), boundaries[i], boundaries[i+1])
		t.tablets.ReplaceOrInsert(tb)
		c.tabletIdx[tb.id] = tb
	}
	c.tables[req.Name] = t
	log.Infof("[inmem] created table %q with %d tablets", req.Name, t.tablets.Len())
	return nil
}

// GetTable describes a table by name.
func (c *Cluster) GetTable(ctx context.Context, name string) (*client.TableInfo, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[name]
	if !ok {
		return nil, client.NotFoundf("table %q not found", name)
	}
	return &client.TableInfo{
		Name:          t.name,
		ID:            t.id,
		Schema:        t.schema,
		SchemaVersion: t.version,
	}, nil
}

// AlterTable applies a compound alteration atomically: the whole request is
// validated against a scratch copy of the schema before anything is swapped
// in. Stored rows are re-encoded to the new column positions.
func (c *Cluster) AlterTable(ctx context.Context, req *client.AlterTableRequest) (*client.TableInfo, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tables[req.Name]
	if !ok {
		return nil, client.NotFoundf("table %q not found", req.Name)
	}

	// Scratch columns carry their pre-alter position so rows can be
	// remapped; added columns get -1.
	type scratchCol struct {
		col    client.ColumnSchema
		oldIdx int
	}
	cols := make([]scratchCol, 0, t.schema.NumColumns())
	for i, col := range t.schema.Columns() {
		cols = append(cols, scratchCol{col: col, oldIdx: i})
	}
	find := func(name string) int {
		for i := range cols {
			if cols[i].col.Name == name {
				return i
			}
		}
		return -1
	}

	for _, step := range req.Steps {
		switch step.Kind {
		case client.AlterRenameColumn:
			i := find(step.Name)
			if i < 0 {
				return nil, client.NotFoundf("column %q not found", step.Name)
			}
			if step.NewName == "" {
				return nil, client.InvalidArgumentf("new name for column %q is empty", step.Name)
			}
			if j := find(step.NewName); j >= 0 && j != i {
				return nil, client.AlreadyExistsf("column %q already exists", step.NewName)
			}
			cols[i].col.Name = step.NewName
		case client.AlterAddColumn:
			if find(step.Column.Name) >= 0 {
				return nil, client.AlreadyExistsf("column %q already exists", step.Column.Name)
			}
			if !step.Column.Nullable && step.Column.Default == nil {
				return nil, client.InvalidArgumentf("added column %q must be nullable or have a default", step.Column.Name)
			}
			cols = append(cols, scratchCol{col: step.Column, oldIdx: -1})
		case client.AlterDropColumn:
			i := find(step.Name)
			if i < 0 {
				return nil, client.NotFoundf("column %q not found", step.Name)
			}
			if cols[i].oldIdx >= 0 && cols[i].oldIdx < t.schema.NumKeyColumns() {
				return nil, client.InvalidArgumentf("cannot drop key column %q", step.Name)
			}
			cols = append(cols[:i], cols[i+1:]...)
		default:
			return nil, client.InvalidArgumentf("unknown alter step kind %d", step.Kind)
		}
	}

	newCols := make([]client.ColumnSchema, len(cols))
	remap := make(map[int]int, len(cols))
	for i := range cols {
		newCols[i] = cols[i].col
		if cols[i].oldIdx >= 0 {
			remap[cols[i].oldIdx] = i
		}
	}
	newSchema, err := client.NewSchema(newCols, t.schema.NumKeyColumns())
	if err != nil {
		return nil, errors.Trace(err)
	}

	if err := t.remapRows(remap, newSchema); err != nil {
		return nil, errors.Trace(err)
	}
	t.schema = newSchema
	t.version++
	log.Infof("[inmem] altered table %q to schema version %d", req.Name, t.version)
	return &client.TableInfo{
		Name:          t.name,
		ID:            t.id,
		Schema:        t.schema,
		SchemaVersion: t.version,
	}, nil
}

// remapRows rewrites every stored row to the new column positions, dropping
// cells of removed columns.
func (t *table) remapRows(remap map[int]int, newSchema *client.Schema) error {
	var firstErr error
	t.tablets.Ascend(func(i btree.Item) bool {
		tb := i.(*tablet)
		type rewrite struct {
			key   []byte
			value []byte
		}
		var rewrites []rewrite
		tb.ascendRange(nil, nil, func(key, value []byte) bool {
			cells, err := codec.DecodeRow(value)
			if err != nil {
				firstErr = err
				return false
			}
			kept := cells[:0]
			for _, cell := range cells {
				newIdx, ok := remap[cell.Idx]
				if !ok {
					continue
				}
				cell.Idx = newIdx
				kept = append(kept, cell)
			}
			encoded, err := codec.EncodeRow(nil, kept)
			if err != nil {
				firstErr = err
				return false
			}
			rewrites = append(rewrites, rewrite{key: key, value: encoded})
			return true
		})
		for _, rw := range rewrites {
			tb.put(rw.key, rw.value)
		}
		return firstErr == nil
	})
	return firstErr
}

// DeleteTable drops a table and its tablets.
func (c *Cluster) DeleteTable(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tables[name]
	if !ok {
		return client.NotFoundf("table %q not found", name)
	}
	t.tablets.Ascend(func(i btree.Item) bool {
		delete(c.tabletIdx, i.(*tablet).id)
		return true
	})
	delete(c.tables, name)
	log.Infof("[inmem] deleted table %q", name)
	return nil
}

// GetTableLocations lists a table's tablets in start-key order.
func (c *Cluster) GetTableLocations(ctx context.Context, name string) ([]client.TabletLocation, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[name]
	if !ok {
		return nil, client.NotFoundf("table %q not found", name)
	}
	return t.locations(), nil
}

// Write applies a batch of row operations to one tablet. Failures are
// per-row; the batch-level error is reserved for requests that cannot be
// applied at all (missing table or tablet, stale schema version).
func (c *Cluster) Write(ctx context.Context, req *client.WriteRequest) (*client.WriteResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.tables[req.Table]
	if !ok {
		return nil, client.NotFoundf("table %q not found", req.Table)
	}
	if req.SchemaVersion != t.version {
		return nil, client.InvalidArgumentf("table %q schema version is %d, request has %d",
			req.Table, t.version, req.SchemaVersion)
	}
	tb, ok := c.tabletIdx[req.TabletID]
	if !ok {
		return nil, client.NotFoundf("tablet %d not found", req.TabletID)
	}

	resp := &client.WriteResponse{}
	rowErr := func(i int, err error) {
		resp.RowErrors = append(resp.RowErrors, client.RowOpError{Index: i, Err: err})
	}
	for i := range req.Ops {
		op := &req.Ops[i]
		if c.writeHook != nil {
			drop, err := c.writeHook(req.Table, op)
			if err != nil {
				rowErr(i, err)
				continue
			}
			if drop {
				continue
			}
		}
		if !tb.contains(op.Key) {
			rowErr(i, client.InvalidArgumentf("key does not belong to tablet %d", req.TabletID))
			continue
		}
		value, err := t.canonicalRow(op.Row)
		if err != nil {
			rowErr(i, err)
			continue
		}
		if _, exists := tb.get(op.Key); exists {
			rowErr(i, client.AlreadyExistsf("key already present"))
			continue
		}
		tb.put(op.Key, value)
	}
	return resp, nil
}

// canonicalRow validates an encoded row against the current schema, fills
// column defaults and re-encodes the cells in column order.
func (t *table) canonicalRow(raw []byte) ([]byte, error) {
	cells, err := codec.DecodeRow(raw)
	if err != nil {
		return nil, client.InvalidArgumentf("undecodable row: %v", err)
	}
	assigned := make([]interface{}, t.schema.NumColumns())
	seen := make([]bool, t.schema.NumColumns())
	for _, cell := range cells {
		if cell.Idx >= t.schema.NumColumns() {
			return nil, client.InvalidArgumentf("cell index %d out of range", cell.Idx)
		}
		cs := t.schema.Column(cell.Idx)
		if codec.ColumnType(cs.Type) != cell.Type {
			return nil, client.InvalidArgumentf("cell %d has type %s, column %q is %s",
				cell.Idx, cell.Type, cs.Name, cs.Type)
		}
		assigned[cell.Idx] = cell.Value
		seen[cell.Idx] = true
	}
	out := make([]codec.ColVal, 0, t.schema.NumColumns())
	for i := 0; i < t.schema.NumColumns(); i++ {
		cs := t.schema.Column(i)
		if !seen[i] {
			if cs.Default != nil {
				assigned[i] = cs.Default
			} else if !cs.Nullable {
				return nil, client.InvalidArgumentf("non-nullable column %q has no value and no default", cs.Name)
			} else {
				continue
			}
		}
		out = append(out, codec.ColVal{Idx: i, Type: codec.ColumnType(cs.Type), Value: assigned[i]})
	}
	return codec.EncodeRow(nil, out)
}

// Scan returns one batch of rows from a tablet, filtered by the request's
// predicates, in ascending key order.
func (c *Cluster) Scan(ctx context.Context, req *client.ScanRequest) (*client.ScanResponse, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[req.Table]
	if !ok {
		return nil, client.NotFoundf("table %q not found", req.Table)
	}
	if req.SchemaVersion != t.version {
		return nil, client.InvalidArgumentf("table %q schema version is %d, request has %d",
			req.Table, t.version, req.SchemaVersion)
	}
	tb, ok := c.tabletIdx[req.TabletID]
	if !ok {
		return nil, client.NotFoundf("tablet %d not found", req.TabletID)
	}
	batchSize := req.BatchSizeRows
	if batchSize <= 0 || batchSize > c.conf.ScanBatchSize {
		batchSize = c.conf.ScanBatchSize
	}

	resp := &client.ScanResponse{}
	var scanErr error
	tb.ascendRange(req.StartKey, req.EndKey, func(key, value []byte) bool {
		match, err := t.matches(req.Predicates, value)
		if err != nil {
			scanErr = err
			return false
		}
		if !match {
			return true
		}
		if len(resp.Rows) == batchSize {
			resp.More = true
			return false
		}
		resp.Rows = append(resp.Rows, value)
		resp.LastKey = key
		return true
	})
	if scanErr != nil {
		return nil, errors.Trace(scanErr)
	}
	return resp, nil
}

// matches evaluates a conjunctive predicate set against an encoded row.
func (t *table) matches(preds []client.ColumnRangePredicate, value []byte) (bool, error) {
	if len(preds) == 0 {
		return true, nil
	}
	cells, err := codec.DecodeRow(value)
	if err != nil {
		return false, err
	}
	values := make([]interface{}, t.schema.NumColumns())
	for _, cell := range cells {
		if cell.Idx < len(values) {
			values[cell.Idx] = cell.Value
		}
	}
	for _, p := range preds {
		idx, ok := t.schema.ColumnIndex(p.Column.Name)
		if !ok {
			return false, client.NotFoundf("unknown column %q", p.Column.Name)
		}
		if !p.Matches(values[idx]) {
			return false, nil
		}
	}
	return true, nil
}
