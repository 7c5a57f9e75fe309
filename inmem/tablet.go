package inmem

import (
	"bytes"

	"github.com/google/btree"
	"github.com/petar/GoLLRB/llrb"
)

// tablet is one horizontal shard of a table: a half-open key range
// [startKey, endKey) and its rows in a sorted tree. Empty bounds are
// unbounded.
type tablet struct {
	id       uint64
	startKey []byte
	endKey   []byte
	rows     *llrb.LLRB
}

func newTablet(id uint64, startKey, endKey []byte) *tablet {
	return &tablet{
		id:       id,
		startKey: startKey,
		endKey:   endKey,
		rows:     llrb.New(),
	}
}

func (t *tablet) contains(key []byte) bool {
	return bytes.Compare(key, t.startKey) >= 0 &&
		(len(t.endKey) == 0 || bytes.Compare(key, t.endKey) < 0)
}

var _ btree.Item = &tablet{}

// Less orders tablets by start key within a table's range tree.
func (t *tablet) Less(other btree.Item) bool {
	return bytes.Compare(t.startKey, other.(*tablet).startKey) < 0
}

type memItem struct {
	key   []byte
	value []byte
}

func (m memItem) Less(than llrb.Item) bool {
	return bytes.Compare(m.key, than.(memItem).key) < 0
}

func (t *tablet) get(key []byte) ([]byte, bool) {
	item := t.rows.Get(memItem{key: key})
	if item == nil {
		return nil, false
	}
	return item.(memItem).value, true
}

func (t *tablet) put(key, value []byte) {
	t.rows.ReplaceOrInsert(memItem{key: key, value: value})
}

// ascendRange visits rows with start <= key < end in key order; empty bounds
// are unbounded. The visitor returns false to stop.
func (t *tablet) ascendRange(start, end []byte, f func(key, value []byte) bool) {
	iter := func(i llrb.Item) bool {
		item := i.(memItem)
		return f(item.key, item.value)
	}
	switch {
	case len(start) == 0 && len(end) == 0:
		t.rows.AscendGreaterOrEqual(memItem{}, iter)
	case len(end) == 0:
		t.rows.AscendGreaterOrEqual(memItem{key: start}, iter)
	default:
		t.rows.AscendRange(memItem{key: start}, memItem{key: end}, iter)
	}
}
