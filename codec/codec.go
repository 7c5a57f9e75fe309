package codec

import (
	"encoding/binary"

	"github.com/pingcap/errors"
)

const (
	encGroupSize = 8
	encMarker    = byte(0xFF)
	encPad       = byte(0x0)
)

var pads = make([]byte, encGroupSize)

// EncodeUint32Asc appends the big-endian encoding of v to b. The encoding
// sorts in the same order as the values.
func EncodeUint32Asc(b []byte, v uint32) []byte {
	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], v)
	return append(b, buf[:]...)
}

// DecodeUint32Asc decodes a value encoded by EncodeUint32Asc, returning the
// leftover bytes and the value.
func DecodeUint32Asc(b []byte) ([]byte, uint32, error) {
	if len(b) < 4 {
		return nil, 0, errors.New("insufficient bytes to decode value")
	}
	return b[4:], binary.BigEndian.Uint32(b[:4]), nil
}

// EncodeBoolAsc appends a single byte, 0 for false and 1 for true.
func EncodeBoolAsc(b []byte, v bool) []byte {
	if v {
		return append(b, 1)
	}
	return append(b, 0)
}

// DecodeBoolAsc decodes a value encoded by EncodeBoolAsc.
func DecodeBoolAsc(b []byte) ([]byte, bool, error) {
	if len(b) < 1 {
		return nil, false, errors.New("insufficient bytes to decode value")
	}
	if b[0] > 1 {
		return nil, false, errors.Errorf("invalid bool byte %d", b[0])
	}
	return b[1:], b[0] == 1, nil
}

// EncodeBytesAsc appends an order-preserving encoding of data to b,
// encoding with the following rule:
//  [group1][marker1]...[groupN][markerN]
//  group is 8 bytes slice which is padding with 0.
//  marker is `0xFF - padding 0 count`
// For example:
//   [] -> [0, 0, 0, 0, 0, 0, 0, 0, 247]
//   [1, 2, 3] -> [1, 2, 3, 0, 0, 0, 0, 0, 250]
//   [1, 2, 3, 0] -> [1, 2, 3, 0, 0, 0, 0, 0, 251]
//   [1, 2, 3, 4, 5, 6, 7, 8] -> [1, 2, 3, 4, 5, 6, 7, 8, 255, 0, 0, 0, 0, 0, 0, 0, 0, 247]
// Refer: https://github.com/facebook/mysql-5.6/wiki/MyRocks-record-format#memcomparable-format
func EncodeBytesAsc(b, data []byte) []byte {
	dLen := len(data)
	result := b
	for idx := 0; idx <= dLen; idx += encGroupSize {
		remain := dLen - idx
		padCount := 0
		if remain >= encGroupSize {
			result = append(result, data[idx:idx+encGroupSize]...)
		} else {
			padCount = encGroupSize - remain
			result = append(result, data[idx:]...)
			result = append(result, pads[:padCount]...)
		}

		marker := encMarker - byte(padCount)
		result = append(result, marker)
	}
	return result
}

// DecodeBytesAsc decodes bytes encoded by EncodeBytesAsc, returning the
// leftover bytes and the decoded value.
func DecodeBytesAsc(b []byte) ([]byte, []byte, error) {
	data := make([]byte, 0, len(b))
	for {
		if len(b) < encGroupSize+1 {
			return nil, nil, errors.New("insufficient bytes to decode value")
		}

		groupBytes := b[:encGroupSize+1]

		group := groupBytes[:encGroupSize]
		marker := groupBytes[encGroupSize]

		padCount := encMarker - marker
		if padCount > encGroupSize {
			return nil, nil, errors.Errorf("invalid marker byte, group bytes %q", groupBytes)
		}

		realGroupSize := encGroupSize - padCount
		data = append(data, group[:realGroupSize]...)
		b = b[encGroupSize+1:]

		if padCount != 0 {
			// Check validity of padding bytes.
			for _, v := range group[realGroupSize:] {
				if v != encPad {
					return nil, nil, errors.Errorf("invalid padding byte, group bytes %q", groupBytes)
				}
			}
			break
		}
	}
	return b, data, nil
}
