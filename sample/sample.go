// Package sample walks one full client lifecycle against a tablet-store
// master: connect, define a schema, create a pre-split table, alter it,
// batch-insert rows, range-scan them back with verification, and drop the
// table. Each phase is gated on the previous one succeeding.
package sample

import (
	"context"
	"time"

	"github.com/ngaut/log"
	"github.com/pingcap/errors"

	"github.com/tinytablet/tinytablet/client"
)

const nonNullDefault = uint32(12345)

// CreateClient connects a client to the master at addr.
func CreateClient(addr string, dialer client.Dialer, connectTimeout time.Duration) (*client.Client, error) {
	return client.NewClientBuilder().
		AddMasterServerAddr(addr).
		ConnectTimeout(connectTimeout).
		Dialer(dialer).
		Build()
}

// CreateSchema returns the four-column demonstration schema with the first
// column as primary key.
func CreateSchema() (*client.Schema, error) {
	return client.NewSchema([]client.ColumnSchema{
		{Name: "key", Type: client.TypeUint32},
		{Name: "int_val", Type: client.TypeUint32},
		{Name: "string_val", Type: client.TypeString},
		{Name: "non_null_with_default", Type: client.TypeUint32, Default: nonNullDefault},
	}, 1)
}

// DoesTableExist opens the table by name and classifies the outcome:
// opened means it exists, not-found means it does not, anything else is an
// error.
func DoesTableExist(ctx context.Context, c *client.Client, tableName string) (bool, error) {
	_, err := c.OpenTable(ctx, tableName)
	if err == nil {
		return true, nil
	}
	if client.IsNotFound(err) {
		return false, nil
	}
	return false, errors.Trace(err)
}

// splitKeys computes the numTablets-1 encoded split points at
// i * (1000 / numTablets) for i in [1, numTablets).
func splitKeys(schema *client.Schema, numTablets int) ([][]byte, error) {
	keyBuilder := client.NewEncodedKeyBuilder(schema)
	increment := uint32(1000 / numTablets)
	splits := make([][]byte, 0, numTablets-1)
	for i := uint32(1); i < uint32(numTablets); i++ {
		keyBuilder.Reset()
		if err := keyBuilder.AddColumnKey(i * increment); err != nil {
			return nil, errors.Trace(err)
		}
		key, err := keyBuilder.Build()
		if err != nil {
			return nil, errors.Trace(err)
		}
		splits = append(splits, key)
	}
	return splits, nil
}

// CreateTable creates tableName with the given schema, pre-split into
// numTablets tablets.
func CreateTable(ctx context.Context, c *client.Client, tableName string, schema *client.Schema, numTablets int) error {
	splits, err := splitKeys(schema, numTablets)
	if err != nil {
		return errors.Trace(err)
	}
	return c.NewTableCreator().
		TableName(tableName).
		Schema(schema).
		SplitKeys(splits).
		Create(ctx)
}

// AlterTable submits one atomic compound alteration: rename int_val to
// integer_val, add the nullable bool column another_val, drop string_val.
func AlterTable(ctx context.Context, c *client.Client, tableName string) error {
	return c.NewTableAlterer().
		TableName(tableName).
		RenameColumn("int_val", "integer_val").
		AddNullableColumn("another_val", client.TypeBool).
		DropColumn("string_val").
		Alter(ctx)
}

// InsertRows writes numRows rows in one manually-flushed batch. Row i is
// (key=i, integer_val=2i, non_null_with_default=5i); string_val no longer
// exists after the alteration and another_val is nullable, so both are
// omitted. On a failed flush the pending errors are drained and the first
// one (or a synthesized overflow error) is reported.
func InsertRows(ctx context.Context, table *client.Table, numRows int, timeoutMs int) error {
	session := table.Client().NewSession()
	defer session.Close()
	if err := session.SetFlushMode(client.ManualFlush); err != nil {
		return errors.Trace(err)
	}
	session.SetTimeoutMillis(timeoutMs)

	for i := 0; i < numRows; i++ {
		insert := table.NewInsert()
		row := insert.Row()
		if err := row.SetUint32("key", uint32(i)); err != nil {
			return errors.Trace(err)
		}
		if err := row.SetUint32("integer_val", uint32(i)*2); err != nil {
			return errors.Trace(err)
		}
		if err := row.SetUint32("non_null_with_default", uint32(i)*5); err != nil {
			return errors.Trace(err)
		}
		if err := session.Apply(ctx, insert); err != nil {
			return errors.Trace(err)
		}
	}
	if err := session.Flush(ctx); err == nil {
		return nil
	}

	// Exercise the asynchronous flush; its outcome is only logged.
	session.FlushAsync(func(err error) {
		log.Infof("Asynchronous flush finished with status: %v", err)
	})

	rowErrors, overflowed := session.GetPendingErrors()
	if overflowed {
		return client.IOErrorf("Overflowed pending errors in session")
	}
	return errors.Trace(rowErrors[0].Err)
}

// ScanRows scans the inclusive key window [lowerBound, upperBound] and
// verifies that the keys come back as the exact sequence
// lowerBound..upperBound.
func ScanRows(ctx context.Context, table *client.Table, lowerBound, upperBound uint32) error {
	pred := client.NewColumnRangePredicate(table.Schema().Column(0), lowerBound, upperBound)

	scanner := client.NewScanner(table)
	defer scanner.Close()
	if err := scanner.AddConjunctPredicate(pred); err != nil {
		return errors.Trace(err)
	}
	if err := scanner.Open(ctx); err != nil {
		return errors.Trace(err)
	}

	expected := lowerBound
	var results []client.RowResult
	for scanner.HasMoreRows() {
		if err := scanner.NextBatch(ctx, &results); err != nil {
			return errors.Trace(err)
		}
		for _, result := range results {
			val, err := result.GetUint32("key")
			if err != nil {
				return errors.Trace(err)
			}
			if val != expected {
				return client.IOErrorf("Scan returned the wrong results. Expected key %d but got %d",
					expected, val)
			}
			expected++
		}
	}
	// Every key in [lowerBound, upperBound] must have been seen.
	if expected != upperBound+1 {
		return client.IOErrorf("Scan returned the wrong results. Expected %d rows but got %d",
			upperBound, expected)
	}
	return nil
}

// Run serializes the demonstration phases, logging one line after each, and
// returns the first non-recoverable error.
func Run(cfg *Config, dialer client.Dialer) error {
	c, err := CreateClient(cfg.MasterAddr, dialer, time.Duration(cfg.ConnectTimeoutMs)*time.Millisecond)
	if err != nil {
		return errors.Trace(err)
	}
	defer c.Close()
	log.Info("Created a client connection")

	schema, err := CreateSchema()
	if err != nil {
		return errors.Trace(err)
	}
	log.Info("Created a schema")

	ctx := context.Background()
	exists, err := DoesTableExist(ctx, c, cfg.TableName)
	if err != nil {
		return errors.Trace(err)
	}
	if exists {
		if err := c.DeleteTable(ctx, cfg.TableName); err != nil {
			return errors.Trace(err)
		}
		log.Info("Deleting old table before creating new one")
	}
	if err := CreateTable(ctx, c, cfg.TableName, schema, cfg.Tablets); err != nil {
		return errors.Trace(err)
	}
	log.Info("Created a table")

	if err := AlterTable(ctx, c, cfg.TableName); err != nil {
		return errors.Trace(err)
	}
	log.Info("Altered a table")

	table, err := c.OpenTable(ctx, cfg.TableName)
	if err != nil {
		return errors.Trace(err)
	}
	if err := InsertRows(ctx, table, cfg.Rows, cfg.SessionTimeoutMs); err != nil {
		return errors.Trace(err)
	}
	log.Info("Inserted some rows into a table")

	if err := ScanRows(ctx, table, cfg.ScanLowerBound, cfg.ScanUpperBound); err != nil {
		return errors.Trace(err)
	}
	log.Info("Scanned some rows out of a table")

	if err := c.DeleteTable(ctx, cfg.TableName); err != nil {
		return errors.Trace(err)
	}
	log.Info("Deleted a table")

	return nil
}
