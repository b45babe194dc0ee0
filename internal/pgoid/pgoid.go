// Package pgoid classifies PostgreSQL type OIDs and wraps the pgtype codecs
// used to decode text-format values.
package pgoid

import (
	"sync"

	"github.com/jackc/pgx/v5/pgtype"
)

type Kind uint8

const (
	KindText Kind = iota
	KindInteger
	KindFloat
	KindNumeric
	KindBool
	KindDate
	KindTimestamp
	KindTimestampTZ
	KindBytea
)

func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindFloat:
		return "float"
	case KindNumeric:
		return "numeric"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	case KindTimestamp:
		return "timestamp"
	case KindTimestampTZ:
		return "timestamptz"
	case KindBytea:
		return "bytea"
	default:
		return "text"
	}
}

// Classify maps a type OID to the decode kind. Unknown OIDs decode as text.
func Classify(oid uint32) Kind {
	switch oid {
	case pgtype.Int2OID, pgtype.Int4OID, pgtype.Int8OID, pgtype.OIDOID, pgtype.XIDOID, pgtype.CIDOID:
		return KindInteger
	case pgtype.Float4OID, pgtype.Float8OID:
		return KindFloat
	case pgtype.NumericOID:
		return KindNumeric
	case pgtype.BoolOID:
		return KindBool
	case pgtype.DateOID:
		return KindDate
	case pgtype.TimestampOID:
		return KindTimestamp
	case pgtype.TimestamptzOID:
		return KindTimestampTZ
	case pgtype.ByteaOID:
		return KindBytea
	default:
		return KindText
	}
}

// IsNumeric reports whether k holds a number.
func (k Kind) IsNumeric() bool {
	return k == KindInteger || k == KindFloat || k == KindNumeric
}

// IsTemporal reports whether k holds a date or timestamp.
func (k Kind) IsTemporal() bool {
	return k == KindDate || k == KindTimestamp || k == KindTimestampTZ
}

var (
	// pgtype.Map caches scan/encode plans and is not safe for concurrent use.
	mu      sync.Mutex
	typeMap = pgtype.NewMap()
)

// ScanText decodes a text-format value of type oid into dst.
func ScanText(oid uint32, src []byte, dst any) error {
	mu.Lock()
	defer mu.Unlock()
	return typeMap.Scan(oid, pgtype.TextFormatCode, src, dst)
}

// EncodeText encodes value as the text format of type oid.
func EncodeText(oid uint32, value any) ([]byte, error) {
	mu.Lock()
	defer mu.Unlock()
	return typeMap.Encode(oid, pgtype.TextFormatCode, value, nil)
}
