package client

import (
	"context"
)

// TableInfo is the master's description of a table.
type TableInfo struct {
	Name          string
	ID            uint64
	Schema        *Schema
	SchemaVersion uint32
}

// TabletLocation describes one tablet of a table. StartKey is inclusive and
// EndKey exclusive; an empty key means unbounded on that side.
type TabletLocation struct {
	TabletID uint64
	StartKey []byte
	EndKey   []byte
}

// RowOp is one encoded row mutation: the composite primary-key encoding and
// the encoded row it belongs to.
type RowOp struct {
	Key []byte
	Row []byte
}

// RowOpError reports a per-row failure from a write; Index refers to the
// request's op slice.
type RowOpError struct {
	Index int
	Err   error
}

// CreateTableRequest creates a table pre-split at SplitKeys, which must be
// strictly increasing encoded keys. N split keys produce N+1 tablets.
type CreateTableRequest struct {
	Name      string
	Schema    *Schema
	SplitKeys [][]byte
}

// AlterKind discriminates the steps of a compound alteration.
type AlterKind int

const (
	AlterRenameColumn AlterKind = 1 + iota
	AlterAddColumn
	AlterDropColumn
)

// AlterStep is one step of a compound alteration. Name is the column operated
// on; NewName is used by renames and Column by adds.
type AlterStep struct {
	Kind    AlterKind
	Name    string
	NewName string
	Column  ColumnSchema
}

// AlterTableRequest is applied atomically: if any step is invalid the table
// is left untouched.
type AlterTableRequest struct {
	Name  string
	Steps []AlterStep
}

// WriteRequest carries a batch of row operations for a single tablet. The
// service rejects the batch if SchemaVersion is stale.
type WriteRequest struct {
	Table         string
	SchemaVersion uint32
	TabletID      uint64
	Ops           []RowOp
}

// WriteResponse lists the operations that failed; an empty slice means every
// row was applied.
type WriteResponse struct {
	RowErrors []RowOpError
}

// ScanRequest reads one batch of rows from a tablet. StartKey is inclusive,
// EndKey exclusive (nil = unbounded); Predicates are evaluated per row on the
// service side.
type ScanRequest struct {
	Table         string
	SchemaVersion uint32
	TabletID      uint64
	StartKey      []byte
	EndKey        []byte
	Predicates    []ColumnRangePredicate
	BatchSizeRows int
}

// ScanResponse carries one batch of encoded rows in ascending key order.
// LastKey is the key of the last returned row; More reports whether the
// tablet may hold further rows past it.
type ScanResponse struct {
	Rows    [][]byte
	LastKey []byte
	More    bool
}

// MasterService is the catalog surface of the cluster.
type MasterService interface {
	CreateTable(ctx context.Context, req *CreateTableRequest) error
	GetTable(ctx context.Context, name string) (*TableInfo, error)
	AlterTable(ctx context.Context, req *AlterTableRequest) (*TableInfo, error)
	DeleteTable(ctx context.Context, name string) error
	GetTableLocations(ctx context.Context, name string) ([]TabletLocation, error)
}

// TabletService is the data surface of the cluster.
type TabletService interface {
	Write(ctx context.Context, req *WriteRequest) (*WriteResponse, error)
	Scan(ctx context.Context, req *ScanRequest) (*ScanResponse, error)
}

// Service is what a dialed endpoint exposes. The wire protocol behind it is
// the collaborator's concern, not this library's.
type Service interface {
	MasterService
	TabletService
}

// Dialer resolves a master address to a Service.
type Dialer interface {
	Dial(ctx context.Context, addr string) (Service, error)
}
