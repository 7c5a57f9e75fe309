package codec

import (
	"encoding/binary"

	"github.com/pingcap/errors"
)

// ColumnType tags the value encoding of one cell in an encoded row.
type ColumnType byte

const (
	TypeUint32 ColumnType = 1 + iota
	TypeString
	TypeBool
)

func (t ColumnType) String() string {
	switch t {
	case TypeUint32:
		return "uint32"
	case TypeString:
		return "string"
	case TypeBool:
		return "bool"
	}
	return "unknown"
}

// ColVal is one assigned cell of a partial row: the column's position in the
// schema, its type tag and its value. The value is a uint32, string or bool
// according to Type.
type ColVal struct {
	Idx   int
	Type  ColumnType
	Value interface{}
}

// EncodeRow appends the encoding of a partial row to b. Cells are written in
// the order given; callers that need a canonical encoding must pass cells
// sorted by column index. Layout is a cell-count prefix followed by
// (column index, type tag, value) triples.
func EncodeRow(b []byte, cells []ColVal) ([]byte, error) {
	var scratch [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(scratch[:], uint64(len(cells)))
	b = append(b, scratch[:n]...)
	for _, c := range cells {
		n = binary.PutUvarint(scratch[:], uint64(c.Idx))
		b = append(b, scratch[:n]...)
		b = append(b, byte(c.Type))
		switch c.Type {
		case TypeUint32:
			v, ok := c.Value.(uint32)
			if !ok {
				return nil, errors.Errorf("column %d: value %T is not uint32", c.Idx, c.Value)
			}
			b = EncodeUint32Asc(b, v)
		case TypeString:
			v, ok := c.Value.(string)
			if !ok {
				return nil, errors.Errorf("column %d: value %T is not string", c.Idx, c.Value)
			}
			n = binary.PutUvarint(scratch[:], uint64(len(v)))
			b = append(b, scratch[:n]...)
			b = append(b, v...)
		case TypeBool:
			v, ok := c.Value.(bool)
			if !ok {
				return nil, errors.Errorf("column %d: value %T is not bool", c.Idx, c.Value)
			}
			b = EncodeBoolAsc(b, v)
		default:
			return nil, errors.Errorf("column %d: unknown column type %d", c.Idx, c.Type)
		}
	}
	return b, nil
}

// DecodeRow decodes a row encoded by EncodeRow.
func DecodeRow(b []byte) ([]ColVal, error) {
	count, n := binary.Uvarint(b)
	if n <= 0 {
		return nil, errors.New("insufficient bytes to decode row header")
	}
	b = b[n:]
	cells := make([]ColVal, 0, count)
	for i := uint64(0); i < count; i++ {
		idx, n := binary.Uvarint(b)
		if n <= 0 {
			return nil, errors.New("insufficient bytes to decode cell index")
		}
		b = b[n:]
		if len(b) < 1 {
			return nil, errors.New("insufficient bytes to decode cell type")
		}
		typ := ColumnType(b[0])
		b = b[1:]
		cell := ColVal{Idx: int(idx), Type: typ}
		var err error
		switch typ {
		case TypeUint32:
			var v uint32
			b, v, err = DecodeUint32Asc(b)
			cell.Value = v
		case TypeString:
			l, n := binary.Uvarint(b)
			if n <= 0 {
				return nil, errors.New("insufficient bytes to decode string length")
			}
			b = b[n:]
			if uint64(len(b)) < l {
				return nil, errors.New("insufficient bytes to decode string value")
			}
			cell.Value = string(b[:l])
			b = b[l:]
		case TypeBool:
			var v bool
			b, v, err = DecodeBoolAsc(b)
			cell.Value = v
		default:
			return nil, errors.Errorf("unknown column type %d", typ)
		}
		if err != nil {
			return nil, err
		}
		cells = append(cells, cell)
	}
	if len(b) != 0 {
		return nil, errors.Errorf("%d trailing bytes after row", len(b))
	}
	return cells, nil
}
