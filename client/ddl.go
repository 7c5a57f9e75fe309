package client

import (
	"bytes"
	"context"

	"github.com/pingcap/errors"
)

// TableCreator accumulates a create-table request. N split keys pre-split
// the table into N+1 tablets.
type TableCreator struct {
	client    *Client
	name      string
	schema    *Schema
	splitKeys [][]byte
}

// TableName sets the table name.
func (tc *TableCreator) TableName(name string) *TableCreator {
	tc.name = name
	return tc
}

// Schema sets the table schema.
func (tc *TableCreator) Schema(s *Schema) *TableCreator {
	tc.schema = s
	return tc
}

// SplitKeys sets the encoded split points, which must be strictly
// increasing.
func (tc *TableCreator) SplitKeys(keys [][]byte) *TableCreator {
	tc.splitKeys = keys
	return tc
}

// Create submits the request.
func (tc *TableCreator) Create(ctx context.Context) error {
	if tc.name == "" {
		return InvalidArgumentf("table name not set")
	}
	if tc.schema == nil {
		return InvalidArgumentf("schema not set")
	}
	for i := 1; i < len(tc.splitKeys); i++ {
		if bytes.Compare(tc.splitKeys[i-1], tc.splitKeys[i]) >= 0 {
			return InvalidArgumentf("split keys are not strictly increasing at index %d", i)
		}
	}
	ctx, cancel := tc.client.opCtx(ctx)
	defer cancel()
	return errors.Trace(tc.client.svc.CreateTable(ctx, &CreateTableRequest{
		Name:      tc.name,
		Schema:    tc.schema,
		SplitKeys: tc.splitKeys,
	}))
}

// TableAlterer accumulates a compound alteration. The steps are applied by
// the service in order and atomically: any invalid step fails the whole
// request and leaves the table untouched.
type TableAlterer struct {
	client *Client
	name   string
	steps  []AlterStep
}

// TableName sets the table to alter.
func (ta *TableAlterer) TableName(name string) *TableAlterer {
	ta.name = name
	return ta
}

// RenameColumn renames a column.
func (ta *TableAlterer) RenameColumn(oldName, newName string) *TableAlterer {
	ta.steps = append(ta.steps, AlterStep{Kind: AlterRenameColumn, Name: oldName, NewName: newName})
	return ta
}

// AddNullableColumn adds a nullable column of the given type.
func (ta *TableAlterer) AddNullableColumn(name string, typ Type) *TableAlterer {
	ta.steps = append(ta.steps, AlterStep{
		Kind:   AlterAddColumn,
		Name:   name,
		Column: ColumnSchema{Name: name, Type: typ, Nullable: true},
	})
	return ta
}

// DropColumn drops a non-key column.
func (ta *TableAlterer) DropColumn(name string) *TableAlterer {
	ta.steps = append(ta.steps, AlterStep{Kind: AlterDropColumn, Name: name})
	return ta
}

// Alter submits the compound request.
func (ta *TableAlterer) Alter(ctx context.Context) error {
	if ta.name == "" {
		return InvalidArgumentf("table name not set")
	}
	if len(ta.steps) == 0 {
		return InvalidArgumentf("alteration has no steps")
	}
	ctx, cancel := ta.client.opCtx(ctx)
	defer cancel()
	_, err := ta.client.svc.AlterTable(ctx, &AlterTableRequest{Name: ta.name, Steps: ta.steps})
	return errors.Trace(err)
}
