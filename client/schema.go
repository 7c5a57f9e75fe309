package client

import (
	"github.com/tinytablet/tinytablet/codec"
)

// Type is the primitive type of a column.
type Type byte

const (
	TypeUint32 Type = Type(codec.TypeUint32)
	TypeString Type = Type(codec.TypeString)
	TypeBool   Type = Type(codec.TypeBool)
)

func (t Type) String() string { return codec.ColumnType(t).String() }

func (t Type) codecType() codec.ColumnType { return codec.ColumnType(t) }

// checkValue verifies that v is the Go value kind matching t.
func checkValue(t Type, v interface{}) error {
	var ok bool
	switch t {
	case TypeUint32:
		_, ok = v.(uint32)
	case TypeString:
		_, ok = v.(string)
	case TypeBool:
		_, ok = v.(bool)
	default:
		return InvalidArgumentf("unknown column type %d", t)
	}
	if !ok {
		return InvalidArgumentf("value %v (%T) is not a %s", v, v, t)
	}
	return nil
}

// ColumnSchema describes one column: name, primitive type, nullability and an
// optional default value. A non-nil Default means the column may be omitted
// on insert. Default must hold the Go value kind matching Type.
type ColumnSchema struct {
	Name     string
	Type     Type
	Nullable bool
	Default  interface{}
}

// Schema is an ordered sequence of columns; the first NumKeyColumns of them
// form the primary key. Key columns must be non-nullable and defaultless.
type Schema struct {
	columns       []ColumnSchema
	numKeyColumns int
	byName        map[string]int
}

// NewSchema builds a schema from cols, with the leading numKeyColumns columns
// as the primary key.
func NewSchema(cols []ColumnSchema, numKeyColumns int) (*Schema, error) {
	if len(cols) == 0 {
		return nil, InvalidArgumentf("schema must have at least one column")
	}
	if numKeyColumns < 1 || numKeyColumns > len(cols) {
		return nil, InvalidArgumentf("key column count %d out of range [1, %d]", numKeyColumns, len(cols))
	}
	byName := make(map[string]int, len(cols))
	for i, c := range cols {
		if c.Name == "" {
			return nil, InvalidArgumentf("column %d has an empty name", i)
		}
		if _, dup := byName[c.Name]; dup {
			return nil, InvalidArgumentf("duplicate column name %q", c.Name)
		}
		if c.Default != nil {
			if err := checkValue(c.Type, c.Default); err != nil {
				return nil, InvalidArgumentf("default for column %q: %v", c.Name, c.Default)
			}
		}
		if i < numKeyColumns {
			if c.Nullable {
				return nil, InvalidArgumentf("key column %q must not be nullable", c.Name)
			}
			if c.Default != nil {
				return nil, InvalidArgumentf("key column %q must not have a default", c.Name)
			}
		}
		byName[c.Name] = i
	}
	s := &Schema{
		columns:       make([]ColumnSchema, len(cols)),
		numKeyColumns: numKeyColumns,
		byName:        byName,
	}
	copy(s.columns, cols)
	return s, nil
}

// NumColumns returns the number of columns.
func (s *Schema) NumColumns() int { return len(s.columns) }

// NumKeyColumns returns the length of the primary-key prefix.
func (s *Schema) NumKeyColumns() int { return s.numKeyColumns }

// Column returns the descriptor at position i.
func (s *Schema) Column(i int) ColumnSchema { return s.columns[i] }

// Columns returns a copy of all column descriptors.
func (s *Schema) Columns() []ColumnSchema {
	cols := make([]ColumnSchema, len(s.columns))
	copy(cols, s.columns)
	return cols
}

// ColumnIndex returns the position of the named column.
func (s *Schema) ColumnIndex(name string) (int, bool) {
	i, ok := s.byName[name]
	return i, ok
}
