package client

// EncodedKeyBuilder turns typed primary-key components into the service's
// opaque key encoding. Components are added in key-column order; Reset starts
// a new key over the same schema.
type EncodedKeyBuilder struct {
	schema *Schema
	buf    []byte
	n      int
}

// NewEncodedKeyBuilder returns a key builder for the schema's primary-key
// prefix.
func NewEncodedKeyBuilder(schema *Schema) *EncodedKeyBuilder {
	return &EncodedKeyBuilder{schema: schema}
}

// Reset discards any components added so far.
func (b *EncodedKeyBuilder) Reset() {
	b.buf = b.buf[:0]
	b.n = 0
}

// AddColumnKey appends the next key component. The value must match the type
// of the corresponding key column.
func (b *EncodedKeyBuilder) AddColumnKey(v interface{}) error {
	if b.n >= b.schema.NumKeyColumns() {
		return InvalidArgumentf("key has only %d columns", b.schema.NumKeyColumns())
	}
	cs := b.schema.Column(b.n)
	if err := checkValue(cs.Type, v); err != nil {
		return InvalidArgumentf("key column %q: %v", cs.Name, err)
	}
	b.buf = encodeKeyColumn(b.buf, cs.Type, v)
	b.n++
	return nil
}

// Build returns the encoded key built so far. At least one component must
// have been added. The returned slice is a copy; the builder may be reused.
func (b *EncodedKeyBuilder) Build() ([]byte, error) {
	if b.n == 0 {
		return nil, InvalidArgumentf("encoded key has no components")
	}
	key := make([]byte, len(b.buf))
	copy(key, b.buf)
	return key, nil
}
