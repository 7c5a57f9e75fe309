package client

// ColumnRangePredicate constrains a scalar column to the inclusive range
// [Lower, Upper]. A nil bound leaves that side unbounded. Predicates added to
// a scanner are conjunctive.
type ColumnRangePredicate struct {
	Column ColumnSchema
	Lower  interface{}
	Upper  interface{}
}

// NewColumnRangePredicate builds an inclusive range predicate on col.
func NewColumnRangePredicate(col ColumnSchema, lower, upper interface{}) ColumnRangePredicate {
	return ColumnRangePredicate{Column: col, Lower: lower, Upper: upper}
}

// check validates the predicate against a schema.
func (p ColumnRangePredicate) check(schema *Schema) error {
	idx, ok := schema.ColumnIndex(p.Column.Name)
	if !ok {
		return NotFoundf("unknown column %q", p.Column.Name)
	}
	if cs := schema.Column(idx); cs.Type != p.Column.Type {
		return InvalidArgumentf("column %q is %s, not %s", p.Column.Name, cs.Type, p.Column.Type)
	}
	if p.Lower != nil {
		if err := checkValue(p.Column.Type, p.Lower); err != nil {
			return InvalidArgumentf("lower bound for column %q: %v", p.Column.Name, err)
		}
	}
	if p.Upper != nil {
		if err := checkValue(p.Column.Type, p.Upper); err != nil {
			return InvalidArgumentf("upper bound for column %q: %v", p.Column.Name, err)
		}
	}
	return nil
}

// Matches reports whether a cell value satisfies the predicate. A nil value
// (NULL or unset) never matches a bounded predicate.
func (p ColumnRangePredicate) Matches(v interface{}) bool {
	if p.Lower == nil && p.Upper == nil {
		return true
	}
	if v == nil {
		return false
	}
	switch p.Column.Type {
	case TypeUint32:
		val, ok := v.(uint32)
		if !ok {
			return false
		}
		if p.Lower != nil && val < p.Lower.(uint32) {
			return false
		}
		if p.Upper != nil && val > p.Upper.(uint32) {
			return false
		}
	case TypeString:
		val, ok := v.(string)
		if !ok {
			return false
		}
		if p.Lower != nil && val < p.Lower.(string) {
			return false
		}
		if p.Upper != nil && val > p.Upper.(string) {
			return false
		}
	case TypeBool:
		val, ok := v.(bool)
		if !ok {
			return false
		}
		if p.Lower != nil && !val && p.Lower.(bool) {
			return false
		}
		if p.Upper != nil && val && !p.Upper.(bool) {
			return false
		}
	default:
		return false
	}
	return true
}
