package inmem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytablet/tinytablet/client"
	"github.com/tinytablet/tinytablet/codec"
)

func key32(v uint32) []byte { return codec.EncodeUint32Asc(nil, v) }

func testSchema(t *testing.T) *client.Schema {
	s, err := client.NewSchema([]client.ColumnSchema{
		{Name: "key", Type: client.TypeUint32},
		{Name: "val", Type: client.TypeUint32},
		{Name: "tag", Type: client.TypeString, Nullable: true},
		{Name: "filled", Type: client.TypeUint32, Default: uint32(12345)},
	}, 1)
	require.NoError(t, err)
	return s
}

func createTestTable(t *testing.T, c *Cluster, name string, splits [][]byte) {
	err := c.CreateTable(context.Background(), &client.CreateTableRequest{
		Name:      name,
		Schema:    testSchema(t),
		SplitKeys: splits,
	})
	require.NoError(t, err)
}

func encodeRow(t *testing.T, cells ...codec.ColVal) []byte {
	b, err := codec.EncodeRow(nil, cells)
	require.NoError(t, err)
	return b
}

func simpleOp(t *testing.T, key, val uint32) client.RowOp {
	return client.RowOp{
		Key: key32(key),
		Row: encodeRow(t,
			codec.ColVal{Idx: 0, Type: codec.TypeUint32, Value: key},
			codec.ColVal{Idx: 1, Type: codec.TypeUint32, Value: val},
		),
	}
}

func TestCreateTableTablets(t *testing.T) {
	c := NewCluster(nil)
	createTestTable(t, c, "t", [][]byte{key32(100), key32(200)})

	locs, err := c.GetTableLocations(context.Background(), "t")
	require.NoError(t, err)
	require.Len(t, locs, 3)
	assert.Empty(t, locs[0].StartKey)
	assert.Equal(t, key32(100), locs[0].EndKey)
	assert.Equal(t, key32(100), locs[1].StartKey)
	assert.Equal(t, key32(200), locs[1].EndKey)
	assert.Empty(t, locs[2].EndKey)
}

func TestCreateTableDuplicate(t *testing.T) {
	c := NewCluster(nil)
	createTestTable(t, c, "t", nil)
	err := c.CreateTable(context.Background(), &client.CreateTableRequest{
		Name:   "t",
		Schema: testSchema(t),
	})
	assert.True(t, client.IsAlreadyExists(err))
}

func TestCreateTableUnsortedSplits(t *testing.T) {
	c := NewCluster(nil)
	err := c.CreateTable(context.Background(), &client.CreateTableRequest{
		Name:      "t",
		Schema:    testSchema(t),
		SplitKeys: [][]byte{key32(200), key32(100)},
	})
	assert.True(t, client.IsInvalidArgument(err))
}

func TestGetDeleteTable(t *testing.T) {
	ctx := context.Background()
	c := NewCluster(nil)

	_, err := c.GetTable(ctx, "nope")
	assert.True(t, client.IsNotFound(err))

	createTestTable(t, c, "t", nil)
	info, err := c.GetTable(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, "t", info.Name)
	assert.Equal(t, uint32(0), info.SchemaVersion)

	require.NoError(t, c.DeleteTable(ctx, "t"))
	_, err = c.GetTable(ctx, "t")
	assert.True(t, client.IsNotFound(err))

	// Create-then-delete leaves the namespace as it was.
	err = c.DeleteTable(ctx, "t")
	assert.True(t, client.IsNotFound(err))
}

func TestWritePerRowErrors(t *testing.T) {
	ctx := context.Background()
	c := NewCluster(nil)
	createTestTable(t, c, "t", nil)
	locs, err := c.GetTableLocations(ctx, "t")
	require.NoError(t, err)
	tabletID := locs[0].TabletID

	resp, err := c.Write(ctx, &client.WriteRequest{
		Table:    "t",
		TabletID: tabletID,
		Ops:      []client.RowOp{simpleOp(t, 1, 10), simpleOp(t, 2, 20)},
	})
	require.NoError(t, err)
	assert.Len(t, resp.RowErrors, 0)

	// A duplicate key fails that row alone.
	resp, err = c.Write(ctx, &client.WriteRequest{
		Table:    "t",
		TabletID: tabletID,
		Ops:      []client.RowOp{simpleOp(t, 2, 21), simpleOp(t, 3, 30)},
	})
	require.NoError(t, err)
	require.Len(t, resp.RowErrors, 1)
	assert.Equal(t, 0, resp.RowErrors[0].Index)
	assert.True(t, client.IsAlreadyExists(resp.RowErrors[0].Err))
}

func TestWriteSchemaVersionMismatch(t *testing.T) {
	ctx := context.Background()
	c := NewCluster(nil)
	createTestTable(t, c, "t", nil)
	locs, _ := c.GetTableLocations(ctx, "t")

	_, err := c.Write(ctx, &client.WriteRequest{
		Table:         "t",
		SchemaVersion: 9,
		TabletID:      locs[0].TabletID,
		Ops:           []client.RowOp{simpleOp(t, 1, 10)},
	})
	assert.True(t, client.IsInvalidArgument(err))
}

func TestWriteFillsDefaults(t *testing.T) {
	ctx := context.Background()
	c := NewCluster(nil)
	createTestTable(t, c, "t", nil)
	locs, _ := c.GetTableLocations(ctx, "t")

	resp, err := c.Write(ctx, &client.WriteRequest{
		Table:    "t",
		TabletID: locs[0].TabletID,
		Ops:      []client.RowOp{simpleOp(t, 1, 10)}, // omits "filled"
	})
	require.NoError(t, err)
	require.Len(t, resp.RowErrors, 0)

	scan, err := c.Scan(ctx, &client.ScanRequest{Table: "t", TabletID: locs[0].TabletID})
	require.NoError(t, err)
	require.Len(t, scan.Rows, 1)
	cells, err := codec.DecodeRow(scan.Rows[0])
	require.NoError(t, err)
	var filled interface{}
	for _, cell := range cells {
		if cell.Idx == 3 {
			filled = cell.Value
		}
	}
	assert.Equal(t, uint32(12345), filled)
}

func TestScanBatchingAndResume(t *testing.T) {
	ctx := context.Background()
	c := NewCluster(&Config{ScanBatchSize: 4})
	createTestTable(t, c, "t", nil)
	locs, _ := c.GetTableLocations(ctx, "t")
	tabletID := locs[0].TabletID

	ops := make([]client.RowOp, 0, 10)
	for i := uint32(0); i < 10; i++ {
		ops = append(ops, simpleOp(t, i, i*2))
	}
	resp, err := c.Write(ctx, &client.WriteRequest{Table: "t", TabletID: tabletID, Ops: ops})
	require.NoError(t, err)
	require.Len(t, resp.RowErrors, 0)

	var keys []uint32
	start := []byte(nil)
	for {
		batch, err := c.Scan(ctx, &client.ScanRequest{
			Table:    "t",
			TabletID: tabletID,
			StartKey: start,
		})
		require.NoError(t, err)
		assert.True(t, len(batch.Rows) <= 4)
		for _, raw := range batch.Rows {
			cells, err := codec.DecodeRow(raw)
			require.NoError(t, err)
			keys = append(keys, cells[0].Value.(uint32))
		}
		if !batch.More {
			break
		}
		start = append(append([]byte(nil), batch.LastKey...), 0)
	}
	require.Len(t, keys, 10)
	for i, k := range keys {
		assert.Equal(t, uint32(i), k)
	}
}

func TestScanPredicateFiltering(t *testing.T) {
	ctx := context.Background()
	c := NewCluster(nil)
	schema := testSchema(t)
	createTestTable(t, c, "t", nil)
	locs, _ := c.GetTableLocations(ctx, "t")
	tabletID := locs[0].TabletID

	ops := make([]client.RowOp, 0, 20)
	for i := uint32(0); i < 20; i++ {
		ops = append(ops, simpleOp(t, i, i*2))
	}
	_, err := c.Write(ctx, &client.WriteRequest{Table: "t", TabletID: tabletID, Ops: ops})
	require.NoError(t, err)

	pred := client.NewColumnRangePredicate(schema.Column(1), uint32(10), uint32(20))
	batch, err := c.Scan(ctx, &client.ScanRequest{
		Table:      "t",
		TabletID:   tabletID,
		Predicates: []client.ColumnRangePredicate{pred},
	})
	require.NoError(t, err)
	// val = 2*key in [10, 20] <=> key in [5, 10].
	require.Len(t, batch.Rows, 6)
}

func TestAlterTableAtomic(t *testing.T) {
	ctx := context.Background()
	c := NewCluster(nil)
	createTestTable(t, c, "t", nil)

	// One bad step poisons the whole request.
	_, err := c.AlterTable(ctx, &client.AlterTableRequest{
		Name: "t",
		Steps: []client.AlterStep{
			{Kind: client.AlterRenameColumn, Name: "val", NewName: "value"},
			{Kind: client.AlterDropColumn, Name: "no_such_column"},
		},
	})
	assert.True(t, client.IsNotFound(err))

	info, err := c.GetTable(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, uint32(0), info.SchemaVersion)
	_, ok := info.Schema.ColumnIndex("val")
	assert.True(t, ok, "failed alter must leave the schema untouched")

	// Dropping a key column is rejected.
	_, err = c.AlterTable(ctx, &client.AlterTableRequest{
		Name:  "t",
		Steps: []client.AlterStep{{Kind: client.AlterDropColumn, Name: "key"}},
	})
	assert.True(t, client.IsInvalidArgument(err))

	// Adding a non-nullable, defaultless column is rejected.
	_, err = c.AlterTable(ctx, &client.AlterTableRequest{
		Name: "t",
		Steps: []client.AlterStep{{
			Kind:   client.AlterAddColumn,
			Name:   "strict",
			Column: client.ColumnSchema{Name: "strict", Type: client.TypeUint32},
		}},
	})
	assert.True(t, client.IsInvalidArgument(err))
}

func TestAlterTableRemapsRows(t *testing.T) {
	ctx := context.Background()
	c := NewCluster(nil)
	createTestTable(t, c, "t", nil)
	locs, _ := c.GetTableLocations(ctx, "t")
	tabletID := locs[0].TabletID

	op := client.RowOp{
		Key: key32(1),
		Row: encodeRow(t,
			codec.ColVal{Idx: 0, Type: codec.TypeUint32, Value: uint32(1)},
			codec.ColVal{Idx: 1, Type: codec.TypeUint32, Value: uint32(11)},
			codec.ColVal{Idx: 2, Type: codec.TypeString, Value: "tagged"},
		),
	}
	_, err := c.Write(ctx, &client.WriteRequest{Table: "t", TabletID: tabletID, Ops: []client.RowOp{op}})
	require.NoError(t, err)

	// Rename val and drop tag: stored rows must follow the moved columns.
	info, err := c.AlterTable(ctx, &client.AlterTableRequest{
		Name: "t",
		Steps: []client.AlterStep{
			{Kind: client.AlterRenameColumn, Name: "val", NewName: "value"},
			{Kind: client.AlterDropColumn, Name: "tag"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), info.SchemaVersion)

	batch, err := c.Scan(ctx, &client.ScanRequest{Table: "t", SchemaVersion: 1, TabletID: tabletID})
	require.NoError(t, err)
	require.Len(t, batch.Rows, 1)
	cells, err := codec.DecodeRow(batch.Rows[0])
	require.NoError(t, err)

	valueIdx, ok := info.Schema.ColumnIndex("value")
	require.True(t, ok)
	var got interface{}
	for _, cell := range cells {
		require.True(t, cell.Idx < info.Schema.NumColumns())
		if cell.Idx == valueIdx {
			got = cell.Value
		}
	}
	assert.Equal(t, uint32(11), got)
}

func TestWriteHooks(t *testing.T) {
	ctx := context.Background()
	c := NewCluster(nil)
	createTestTable(t, c, "t", nil)
	locs, _ := c.GetTableLocations(ctx, "t")
	tabletID := locs[0].TabletID

	c.SetWriteHook(DropKeys(key32(1)))
	resp, err := c.Write(ctx, &client.WriteRequest{
		Table:    "t",
		TabletID: tabletID,
		Ops:      []client.RowOp{simpleOp(t, 1, 10), simpleOp(t, 2, 20)},
	})
	require.NoError(t, err)
	assert.Len(t, resp.RowErrors, 0)

	batch, err := c.Scan(ctx, &client.ScanRequest{Table: "t", TabletID: tabletID})
	require.NoError(t, err)
	assert.Len(t, batch.Rows, 1, "the dropped key must not be stored")

	injected := client.IOErrorf("injected failure")
	c.SetWriteHook(FailKeys(injected, key32(3)))
	resp, err = c.Write(ctx, &client.WriteRequest{
		Table:    "t",
		TabletID: tabletID,
		Ops:      []client.RowOp{simpleOp(t, 3, 30)},
	})
	require.NoError(t, err)
	require.Len(t, resp.RowErrors, 1)
	assert.True(t, client.IsIOError(resp.RowErrors[0].Err))
}

func TestRegistryDial(t *testing.T) {
	r := NewRegistry()
	_, err := r.Dial(context.Background(), "127.0.0.1")
	assert.True(t, client.IsNotFound(err))

	c := NewCluster(nil)
	r.Serve("127.0.0.1", c)
	svc, err := r.Dial(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, client.Service(c), svc)

	r.Remove("127.0.0.1")
	_, err = r.Dial(context.Background(), "127.0.0.1")
	assert.True(t, client.IsNotFound(err))
}
