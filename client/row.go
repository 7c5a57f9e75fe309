package client

import (
	"github.com/tinytablet/tinytablet/codec"
)

// PartialRow is a partial assignment of column values obeying a schema.
// Cells are set by column name through the typed setters; key columns and
// non-nullable columns without a default must be assigned before the row can
// be applied.
type PartialRow struct {
	schema *Schema
	values []interface{}
	set    []bool
}

// NewPartialRow returns an empty row for the given schema.
func NewPartialRow(schema *Schema) *PartialRow {
	return &PartialRow{
		schema: schema,
		values: make([]interface{}, schema.NumColumns()),
		set:    make([]bool, schema.NumColumns()),
	}
}

// Schema returns the schema this row was built against.
func (r *PartialRow) Schema() *Schema { return r.schema }

// SetUint32 assigns v to the named uint32 column.
func (r *PartialRow) SetUint32(col string, v uint32) error {
	return r.setCell(col, TypeUint32, v)
}

// SetString assigns v to the named string column.
func (r *PartialRow) SetString(col string, v string) error {
	return r.setCell(col, TypeString, v)
}

// SetBool assigns v to the named bool column.
func (r *PartialRow) SetBool(col string, v bool) error {
	return r.setCell(col, TypeBool, v)
}

func (r *PartialRow) setCell(col string, t Type, v interface{}) error {
	idx, ok := r.schema.ColumnIndex(col)
	if !ok {
		return NotFoundf("unknown column %q", col)
	}
	cs := r.schema.Column(idx)
	if cs.Type != t {
		return InvalidArgumentf("column %q is %s, not %s", col, cs.Type, t)
	}
	r.values[idx] = v
	r.set[idx] = true
	return nil
}

// IsSet reports whether the column at position i has been assigned.
func (r *PartialRow) IsSet(i int) bool { return r.set[i] }

// validate checks that every column that must be assigned is assigned.
func (r *PartialRow) validate() error {
	for i := 0; i < r.schema.NumColumns(); i++ {
		if r.set[i] {
			continue
		}
		cs := r.schema.Column(i)
		if i < r.schema.NumKeyColumns() {
			return InvalidArgumentf("key column %q is not set", cs.Name)
		}
		if !cs.Nullable && cs.Default == nil {
			return InvalidArgumentf("non-nullable column %q has no value and no default", cs.Name)
		}
	}
	return nil
}

// encodeKey builds the row's composite primary-key encoding. All key columns
// must be set.
func (r *PartialRow) encodeKey() ([]byte, error) {
	var key []byte
	for i := 0; i < r.schema.NumKeyColumns(); i++ {
		if !r.set[i] {
			return nil, InvalidArgumentf("key column %q is not set", r.schema.Column(i).Name)
		}
		key = encodeKeyColumn(key, r.schema.Column(i).Type, r.values[i])
	}
	return key, nil
}

// encodeRow serializes the assigned cells in column order.
func (r *PartialRow) encodeRow() ([]byte, error) {
	cells := make([]codec.ColVal, 0, r.schema.NumColumns())
	for i := 0; i < r.schema.NumColumns(); i++ {
		if !r.set[i] {
			continue
		}
		cells = append(cells, codec.ColVal{
			Idx:   i,
			Type:  r.schema.Column(i).Type.codecType(),
			Value: r.values[i],
		})
	}
	return codec.EncodeRow(nil, cells)
}

// encodeKeyColumn appends the order-preserving encoding of one key component.
// The value must already be type-checked against t.
func encodeKeyColumn(b []byte, t Type, v interface{}) []byte {
	switch t {
	case TypeUint32:
		return codec.EncodeUint32Asc(b, v.(uint32))
	case TypeString:
		return codec.EncodeBytesAsc(b, []byte(v.(string)))
	case TypeBool:
		return codec.EncodeBoolAsc(b, v.(bool))
	}
	panic("unreachable")
}
