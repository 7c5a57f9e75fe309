package client

// Insert is a single-row insert operation. The caller fills the row through
// Row's typed setters and transfers the operation to a session with Apply;
// the session owns it from then on until flush.
type Insert struct {
	table *Table
	row   *PartialRow
}

// Row returns the mutable row of the operation.
func (in *Insert) Row() *PartialRow { return in.row }

// Table returns the table this operation targets.
func (in *Insert) Table() *Table { return in.table }
