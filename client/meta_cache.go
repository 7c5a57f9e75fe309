package client

import (
	"bytes"

	"github.com/google/btree"
)

var _ btree.Item = &tabletItem{}

type tabletItem struct {
	loc TabletLocation
}

// Less orders tablets by start key.
func (t *tabletItem) Less(other btree.Item) bool {
	return bytes.Compare(t.loc.StartKey, other.(*tabletItem).loc.StartKey) < 0
}

func (t *tabletItem) contains(key []byte) bool {
	start, end := t.loc.StartKey, t.loc.EndKey
	return bytes.Compare(key, start) >= 0 && (len(end) == 0 || bytes.Compare(key, end) < 0)
}

// metaCache holds one table's tablet locations ordered by start key. The
// sample opens tables and flushes sequentially, so the cache is rebuilt from
// the master on each flush or scan open rather than maintained incrementally.
type metaCache struct {
	tree *btree.BTree
}

func newMetaCache(locs []TabletLocation) *metaCache {
	t := btree.New(2)
	for i := range locs {
		t.ReplaceOrInsert(&tabletItem{loc: locs[i]})
	}
	return &metaCache{tree: t}
}

// tabletForKey returns the tablet owning key.
func (m *metaCache) tabletForKey(key []byte) (TabletLocation, bool) {
	var found *tabletItem
	m.tree.DescendLessOrEqual(&tabletItem{loc: TabletLocation{StartKey: key}}, func(i btree.Item) bool {
		found = i.(*tabletItem)
		return false
	})
	if found == nil || !found.contains(key) {
		return TabletLocation{}, false
	}
	return found.loc, true
}

// tabletsInRange returns, in start-key order, every tablet overlapping
// [start, end). Nil bounds are unbounded.
func (m *metaCache) tabletsInRange(start, end []byte) []TabletLocation {
	var locs []TabletLocation
	m.tree.Ascend(func(i btree.Item) bool {
		loc := i.(*tabletItem).loc
		if len(end) != 0 && bytes.Compare(loc.StartKey, end) >= 0 {
			return false
		}
		if len(start) != 0 && len(loc.EndKey) != 0 && bytes.Compare(loc.EndKey, start) <= 0 {
			return true
		}
		locs = append(locs, loc)
		return true
	})
	return locs
}
