package pgsqlkit

import (
	"github.com/tuannm99/pgsqlkit/internal/native"
	"github.com/tuannm99/pgsqlkit/internal/pgoid"
)

// Column is the metadata of one result column. It is built once per query and
// shared, read-only, by every Record and Field of the Recordset.
type Column struct {
	name   string
	index  int
	typ    uint32
	size   int
	offset int
}

func (c Column) Name() string { return c.name }

// Index is the 0-based position of the column in the result.
func (c Column) Index() int { return c.index }

// Type is the PostgreSQL type OID.
func (c Column) Type() uint32 { return c.typ }

// Size is the server type size in bytes, negative for variable-width types.
func (c Column) Size() int { return c.size }

// Offset is the byte offset of the column inside a fixed-width row image, or
// -1 when this column or any column before it is variable-width.
func (c Column) Offset() int { return c.offset }

func (c Column) kind() pgoid.Kind { return pgoid.Classify(c.typ) }

// Kind names the decode family of the column ("integer", "text", ...).
func (c Column) Kind() string { return c.kind().String() }

// discoverColumns introspects res once, in native field order.
func discoverColumns(res native.Result) []Column {
	n := res.NumFields()
	cols := make([]Column, n)
	offset := 0
	for i := 0; i < n; i++ {
		size := res.FieldSize(i)
		cols[i] = Column{
			name:   res.FieldName(i),
			index:  i,
			typ:    res.FieldType(i),
			size:   size,
			offset: offset,
		}
		if size < 0 {
			offset = -1
		}
		if offset >= 0 {
			offset += size
		} else {
			cols[i].offset = -1
		}
	}
	return cols
}
