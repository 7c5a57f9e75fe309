package sample

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinytablet/tinytablet/client"
	"github.com/tinytablet/tinytablet/codec"
	"github.com/tinytablet/tinytablet/inmem"
)

type env struct {
	registry *inmem.Registry
	cluster  *inmem.Cluster
	cfg      *Config
}

func newEnv(t *testing.T) *env {
	cfg := NewDefaultConfig()
	cfg.ConnectTimeoutMs = 500
	e := &env{
		registry: inmem.NewRegistry(),
		cluster:  inmem.NewCluster(inmem.NewDefaultConfig()),
		cfg:      cfg,
	}
	e.registry.Serve(cfg.MasterAddr, e.cluster)
	return e
}

func (e *env) connect(t *testing.T) *client.Client {
	c, err := CreateClient(e.cfg.MasterAddr, e.registry, time.Duration(e.cfg.ConnectTimeoutMs)*time.Millisecond)
	require.NoError(t, err)
	return c
}

// openPopulatedTable drives the pipeline through create, alter and insert,
// returning the opened post-alter table handle.
func (e *env) openPopulatedTable(t *testing.T, rows int) (*client.Client, *client.Table) {
	ctx := context.Background()
	c := e.connect(t)

	schema, err := CreateSchema()
	require.NoError(t, err)
	require.NoError(t, CreateTable(ctx, c, e.cfg.TableName, schema, e.cfg.Tablets))
	require.NoError(t, AlterTable(ctx, c, e.cfg.TableName))

	table, err := c.OpenTable(ctx, e.cfg.TableName)
	require.NoError(t, err)
	require.NoError(t, InsertRows(ctx, table, rows, e.cfg.SessionTimeoutMs))
	return c, table
}

func key32(v uint32) []byte { return codec.EncodeUint32Asc(nil, v) }

func TestSplitKeys(t *testing.T) {
	schema, err := CreateSchema()
	require.NoError(t, err)

	for _, numTablets := range []int{1, 2, 3, 10, 16} {
		keys, err := splitKeys(schema, numTablets)
		require.NoError(t, err)
		require.Len(t, keys, numTablets-1, "tablets=%d", numTablets)
		for i := 1; i < len(keys); i++ {
			assert.True(t, bytes.Compare(keys[i-1], keys[i]) < 0,
				"split keys must be strictly increasing (tablets=%d)", numTablets)
		}
	}

	// For 10 tablets the splits are the encodings of 100, 200, ..., 900.
	keys, err := splitKeys(schema, 10)
	require.NoError(t, err)
	for i, k := range keys {
		assert.Equal(t, key32(uint32((i+1)*100)), k)
	}
}

func TestCreateSchemaShape(t *testing.T) {
	schema, err := CreateSchema()
	require.NoError(t, err)
	require.Equal(t, 4, schema.NumColumns())
	assert.Equal(t, 1, schema.NumKeyColumns())
	assert.Equal(t, "key", schema.Column(0).Name)
	assert.Equal(t, client.TypeString, schema.Column(2).Type)
	assert.Equal(t, uint32(12345), schema.Column(3).Default)
}

func TestHappyPath(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, Run(e.cfg, e.registry))

	// The run drops its table: create-then-delete is the identity on the
	// table namespace.
	c := e.connect(t)
	defer c.Close()
	_, err := c.OpenTable(context.Background(), e.cfg.TableName)
	assert.True(t, client.IsNotFound(err))
}

func TestPreExistingTable(t *testing.T) {
	e := newEnv(t)

	// Occupy the table name with an unrelated schema.
	oldSchema, err := client.NewSchema([]client.ColumnSchema{
		{Name: "id", Type: client.TypeString},
	}, 1)
	require.NoError(t, err)
	require.NoError(t, e.cluster.CreateTable(context.Background(), &client.CreateTableRequest{
		Name:   e.cfg.TableName,
		Schema: oldSchema,
	}))

	require.NoError(t, Run(e.cfg, e.registry))
}

func TestUnreachableMaster(t *testing.T) {
	e := newEnv(t)
	e.registry.Remove(e.cfg.MasterAddr)
	e.cfg.ConnectTimeoutMs = 200

	err := Run(e.cfg, e.registry)
	require.Error(t, err)
	assert.True(t, client.IsTimedOut(err))
}

func TestPartialInsertFailure(t *testing.T) {
	e := newEnv(t)
	injected := client.IOErrorf("injected write failure")
	e.cluster.SetWriteHook(inmem.FailKeys(injected, key32(7)))

	err := Run(e.cfg, e.registry)
	require.Error(t, err)
	assert.True(t, client.IsIOError(err))
	assert.Contains(t, err.Error(), "injected write failure")
}

func TestPendingErrorOverflow(t *testing.T) {
	e := newEnv(t)
	// More failing rows than the session's bounded error buffer holds.
	e.cfg.Rows = 1500
	e.cluster.SetWriteHook(inmem.FailEveryRow(client.IOErrorf("server full")))

	err := Run(e.cfg, e.registry)
	require.Error(t, err)
	assert.True(t, client.IsIOError(err))
	assert.Contains(t, err.Error(), "Overflowed pending errors in session")
}

func TestScanMismatch(t *testing.T) {
	e := newEnv(t)
	// Key 100 silently never makes it to storage.
	e.cluster.SetWriteHook(inmem.DropKeys(key32(100)))

	err := Run(e.cfg, e.registry)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Scan returned the wrong results. Expected key 100 but got 101")
}

func TestShortScan(t *testing.T) {
	e := newEnv(t)
	e.cfg.Rows = 50

	err := Run(e.cfg, e.registry)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Expected 600 rows but got 50")
}

func TestInsertZeroRows(t *testing.T) {
	e := newEnv(t)
	c, table := e.openPopulatedTable(t, 0)
	defer c.Close()

	// Nothing buffered, nothing pending.
	session := table.Client().NewSession()
	defer session.Close()
	require.NoError(t, session.SetFlushMode(client.ManualFlush))
	require.NoError(t, session.Flush(context.Background()))
	errs, overflowed := session.GetPendingErrors()
	assert.Len(t, errs, 0)
	assert.False(t, overflowed)
}

func TestScanSingleRow(t *testing.T) {
	e := newEnv(t)
	c, table := e.openPopulatedTable(t, 1000)
	defer c.Close()

	// lo = hi selects exactly the one row with that key.
	require.NoError(t, ScanRows(context.Background(), table, 300, 300))
}

func TestScanCrossesTabletBoundaries(t *testing.T) {
	e := newEnv(t)
	c, table := e.openPopulatedTable(t, 1000)
	defer c.Close()

	// [5, 600] spans seven of the ten pre-split tablets.
	require.NoError(t, ScanRows(context.Background(), table, e.cfg.ScanLowerBound, e.cfg.ScanUpperBound))
}

func TestRenamedColumnLaw(t *testing.T) {
	e := newEnv(t)
	c, table := e.openPopulatedTable(t, 100)
	defer c.Close()
	ctx := context.Background()

	// The old column name fails at the column level.
	scanner := client.NewScanner(table)
	oldPred := client.NewColumnRangePredicate(
		client.ColumnSchema{Name: "int_val", Type: client.TypeUint32}, uint32(0), uint32(10))
	err := scanner.AddConjunctPredicate(oldPred)
	assert.True(t, client.IsNotFound(err))
	scanner.Close()

	// The new name works, and carries the values written as integer_val.
	scanner = client.NewScanner(table)
	defer scanner.Close()
	require.NoError(t, scanner.AddConjunctPredicate(
		client.NewColumnRangePredicate(table.Schema().Column(0), uint32(3), uint32(3))))
	require.NoError(t, scanner.Open(ctx))

	var results []client.RowResult
	require.True(t, scanner.HasMoreRows())
	for scanner.HasMoreRows() && len(results) == 0 {
		require.NoError(t, scanner.NextBatch(ctx, &results))
	}
	require.Len(t, results, 1)

	v, err := results[0].GetUint32("integer_val")
	require.NoError(t, err)
	assert.Equal(t, uint32(6), v)

	_, err = results[0].GetUint32("int_val")
	assert.True(t, client.IsNotFound(err))

	// another_val was added nullable and never written.
	isNull, err := results[0].IsNull("another_val")
	require.NoError(t, err)
	assert.True(t, isNull)

	// non_null_with_default was set explicitly to 5*key.
	d, err := results[0].GetUint32("non_null_with_default")
	require.NoError(t, err)
	assert.Equal(t, uint32(15), d)
}

func TestAutoFlushSync(t *testing.T) {
	e := newEnv(t)
	c, table := e.openPopulatedTable(t, 0)
	defer c.Close()
	ctx := context.Background()

	session := table.Client().NewSession()
	defer session.Close()
	session.SetTimeoutMillis(e.cfg.SessionTimeoutMs)

	insert := table.NewInsert()
	require.NoError(t, insert.Row().SetUint32("key", 42))
	require.NoError(t, insert.Row().SetUint32("integer_val", 84))
	require.NoError(t, insert.Row().SetUint32("non_null_with_default", 210))
	require.NoError(t, session.Apply(ctx, insert))

	// In the default mode the row is flushed by Apply itself.
	require.NoError(t, ScanRows(ctx, table, 42, 42))
}

func TestApplyValidatesLocally(t *testing.T) {
	e := newEnv(t)
	c, table := e.openPopulatedTable(t, 0)
	defer c.Close()

	session := table.Client().NewSession()
	defer session.Close()

	insert := table.NewInsert()
	require.NoError(t, insert.Row().SetUint32("key", 1))
	// integer_val is non-nullable without a default and left unset.
	err := session.Apply(context.Background(), insert)
	assert.True(t, client.IsInvalidArgument(err))
}

func TestConfigValidate(t *testing.T) {
	cfg := NewDefaultConfig()
	require.NoError(t, cfg.Validate())

	bad := *cfg
	bad.Tablets = 0
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.ScanLowerBound = 700
	assert.Error(t, bad.Validate())

	bad = *cfg
	bad.MasterAddr = ""
	assert.Error(t, bad.Validate())
}

