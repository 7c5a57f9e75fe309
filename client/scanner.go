package client

import (
	"bytes"
	"context"
	"math"

	"github.com/pingcap/errors"

	"github.com/tinytablet/tinytablet/codec"
)

const defaultScanBatchSizeRows = 100

// RowResult is one decoded row from a scan batch. It stays valid after the
// batch is replaced.
type RowResult struct {
	schema *Schema
	values []interface{}
}

func (r RowResult) getCell(col string, t Type) (interface{}, error) {
	idx, ok := r.schema.ColumnIndex(col)
	if !ok {
		return nil, NotFoundf("unknown column %q", col)
	}
	cs := r.schema.Column(idx)
	if cs.Type != t {
		return nil, InvalidArgumentf("column %q is %s, not %s", col, cs.Type, t)
	}
	v := r.values[idx]
	if v == nil {
		return nil, InvalidArgumentf("column %q is NULL", col)
	}
	return v, nil
}

// GetUint32 reads the named uint32 column.
func (r RowResult) GetUint32(col string) (uint32, error) {
	v, err := r.getCell(col, TypeUint32)
	if err != nil {
		return 0, err
	}
	return v.(uint32), nil
}

// GetString reads the named string column.
func (r RowResult) GetString(col string) (string, error) {
	v, err := r.getCell(col, TypeString)
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// GetBool reads the named bool column.
func (r RowResult) GetBool(col string) (bool, error) {
	v, err := r.getCell(col, TypeBool)
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// IsNull reports whether the named column is NULL in this row.
func (r RowResult) IsNull(col string) (bool, error) {
	idx, ok := r.schema.ColumnIndex(col)
	if !ok {
		return false, NotFoundf("unknown column %q", col)
	}
	return r.values[idx] == nil, nil
}

// Scanner is a cursor over one table. Predicates are conjunctive and must be
// added before Open; rows come back in ascending primary-key order within
// and across batches, because tablets are visited in start-key order and
// each tablet returns rows in key order.
type Scanner struct {
	table         *Table
	predicates    []ColumnRangePredicate
	batchSizeRows int

	opened   bool
	done     bool
	tablets  []TabletLocation
	cur      int
	startKey []byte
	endKey   []byte
	nextKey  []byte
}

// NewScanner returns a scanner over table.
func NewScanner(table *Table) *Scanner {
	return &Scanner{table: table, batchSizeRows: defaultScanBatchSizeRows}
}

// AddConjunctPredicate adds one range predicate to the conjunction.
func (s *Scanner) AddConjunctPredicate(p ColumnRangePredicate) error {
	if s.opened {
		return InvalidArgumentf("scanner is already open")
	}
	if err := p.check(s.table.Schema()); err != nil {
		return errors.Trace(err)
	}
	s.predicates = append(s.predicates, p)
	return nil
}

// SetBatchSizeRows bounds the number of rows per result batch.
func (s *Scanner) SetBatchSizeRows(n int) error {
	if s.opened {
		return InvalidArgumentf("scanner is already open")
	}
	if n < 1 {
		return InvalidArgumentf("batch size %d must be positive", n)
	}
	s.batchSizeRows = n
	return nil
}

// Open resolves the key window implied by the predicates, fetches the
// table's tablet locations and positions the cursor on the first overlapping
// tablet.
func (s *Scanner) Open(ctx context.Context) error {
	if s.opened {
		return InvalidArgumentf("scanner is already open")
	}
	s.startKey, s.endKey = s.keyWindow()

	ctx, cancel := s.table.client.opCtx(ctx)
	defer cancel()
	locs, err := s.table.client.svc.GetTableLocations(ctx, s.table.Name())
	if err != nil {
		return errors.Trace(err)
	}
	cache := newMetaCache(locs)
	s.tablets = cache.tabletsInRange(s.startKey, s.endKey)
	s.cur = 0
	s.nextKey = nil
	s.opened = true
	s.done = len(s.tablets) == 0
	return nil
}

// keyWindow derives [start, end) pruning bounds from predicates on the first
// key column. The window only prunes tablets and rows by key; exact
// filtering is always done predicate by predicate on the service side.
func (s *Scanner) keyWindow() (start, end []byte) {
	first := s.table.Schema().Column(0)
	for _, p := range s.predicates {
		if p.Column.Name != first.Name || p.Column.Type != first.Type {
			continue
		}
		if p.Lower != nil {
			lo := encodeKeyColumn(nil, first.Type, p.Lower)
			if start == nil || bytes.Compare(lo, start) > 0 {
				start = lo
			}
		}
		if p.Upper != nil {
			hi := keyColumnUpperBound(first.Type, p.Upper)
			if hi != nil && (end == nil || bytes.Compare(hi, end) < 0) {
				end = hi
			}
		}
	}
	return start, end
}

// keyColumnUpperBound returns an exclusive key-encoding bound that admits
// every composite key whose first column is <= v. Nil means unbounded.
func keyColumnUpperBound(t Type, v interface{}) []byte {
	switch t {
	case TypeUint32:
		val := v.(uint32)
		if val == math.MaxUint32 {
			return nil
		}
		return codec.EncodeUint32Asc(nil, val+1)
	case TypeString:
		return codec.EncodeBytesAsc(nil, append([]byte(v.(string)), 0))
	case TypeBool:
		if v.(bool) {
			return nil
		}
		return codec.EncodeBoolAsc(nil, true)
	}
	return nil
}

// HasMoreRows reports whether the scan may yield further batches.
func (s *Scanner) HasMoreRows() bool {
	return s.opened && !s.done
}

// NextBatch replaces *results with the next batch of rows. An exhausted scan
// leaves *results empty.
func (s *Scanner) NextBatch(ctx context.Context, results *[]RowResult) error {
	if !s.opened {
		return InvalidArgumentf("scanner is not open")
	}
	*results = (*results)[:0]
	if s.done {
		return nil
	}

	ctx, cancel := s.table.client.opCtx(ctx)
	defer cancel()

	for len(*results) == 0 {
		if s.cur >= len(s.tablets) {
			s.done = true
			return nil
		}
		loc := s.tablets[s.cur]
		start := maxKey(s.nextKey, maxKey(s.startKey, loc.StartKey))
		end := minKey(s.endKey, loc.EndKey)
		resp, err := s.table.client.svc.Scan(ctx, &ScanRequest{
			Table:         s.table.Name(),
			SchemaVersion: s.table.SchemaVersion(),
			TabletID:      loc.TabletID,
			StartKey:      start,
			EndKey:        end,
			Predicates:    s.predicates,
			BatchSizeRows: s.batchSizeRows,
		})
		if err != nil {
			return errors.Trace(err)
		}
		for _, raw := range resp.Rows {
			row, err := s.decodeRow(raw)
			if err != nil {
				return errors.Trace(err)
			}
			*results = append(*results, row)
		}
		if resp.More {
			s.nextKey = keyAfter(resp.LastKey)
		} else {
			s.cur++
			s.nextKey = nil
		}
	}
	return nil
}

func (s *Scanner) decodeRow(raw []byte) (RowResult, error) {
	cells, err := codec.DecodeRow(raw)
	if err != nil {
		return RowResult{}, errors.Trace(err)
	}
	schema := s.table.Schema()
	values := make([]interface{}, schema.NumColumns())
	for _, c := range cells {
		if c.Idx >= len(values) {
			return RowResult{}, IOErrorf("row cell index %d out of range for schema with %d columns", c.Idx, len(values))
		}
		if want := schema.Column(c.Idx).Type.codecType(); c.Type != want {
			return RowResult{}, IOErrorf("row cell %d has type %s, schema says %s", c.Idx, c.Type, want)
		}
		values[c.Idx] = c.Value
	}
	return RowResult{schema: schema, values: values}, nil
}

// Close releases the scanner.
func (s *Scanner) Close() {
	s.done = true
	s.tablets = nil
}

// keyAfter returns the smallest key strictly greater than key.
func keyAfter(key []byte) []byte {
	next := make([]byte, len(key)+1)
	copy(next, key)
	return next
}

// maxKey treats an empty key as negative infinity.
func maxKey(a, b []byte) []byte {
	if len(a) == 0 {
		return b
	}
	if len(b) == 0 {
		return a
	}
	if bytes.Compare(a, b) >= 0 {
		return a
	}
	return b
}

// minKey treats an empty key as positive infinity.
func minKey(a, b []byte) []byte {
	if len(a) == 0 {
		return b
	}
	if len(b) == 0 {
		return a
	}
	if bytes.Compare(a, b) <= 0 {
		return a
	}
	return b
}
