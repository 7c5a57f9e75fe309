package inmem

import (
	"bytes"

	"github.com/tinytablet/tinytablet/client"
)

// WriteHook is consulted before every row write. Returning a non-nil error
// fails that row with a per-row error; returning drop discards the row
// silently. Hooks exist to stage failure scenarios in tests.
type WriteHook func(table string, op *client.RowOp) (drop bool, err error)

// DropKeys returns a hook that silently discards writes to the given encoded
// keys.
func DropKeys(keys ...[]byte) WriteHook {
	return func(table string, op *client.RowOp) (bool, error) {
		for _, k := range keys {
			if bytes.Equal(op.Key, k) {
				return true, nil
			}
		}
		return false, nil
	}
}

// FailKeys returns a hook that fails writes to the given encoded keys with
// err.
func FailKeys(err error, keys ...[]byte) WriteHook {
	return func(table string, op *client.RowOp) (bool, error) {
		for _, k := range keys {
			if bytes.Equal(op.Key, k) {
				return false, err
			}
		}
		return false, nil
	}
}

// FailEveryRow returns a hook that fails every write with err.
func FailEveryRow(err error) WriteHook {
	return func(string, *client.RowOp) (bool, error) {
		return false, err
	}
}
