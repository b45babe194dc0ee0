package pgsqlkit

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/tuannm99/pgsqlkit/internal/native"
	"github.com/tuannm99/pgsqlkit/internal/pgoid"
)

// Field is one value of the current row. It decodes its raw bytes on demand
// and caches nothing between calls.
//
// Every accessor returns a NULL sentinel (Valid == false, or a nil slice for
// AsData) when IsNull reports true; nothing is decoded in that case.
type Field struct {
	col  Column
	raw  []byte
	null bool
	enc  Encoding

	owner *Recordset
	gen   uint64
}

func (f Field) Column() Column { return f.col }

func (f Field) IsNull() bool { return f.null }

// Encoding is the encoding AsString uses when none is passed.
func (f Field) Encoding() Encoding { return f.enc }

// WithEncoding returns a copy of f that decodes text with enc.
func (f Field) WithEncoding(enc Encoding) Field {
	f.enc = enc
	return f
}

// AsString decodes the value as text, using enc if given or the field
// encoding otherwise.
func (f Field) AsString(enc ...Encoding) (sql.Null[string], error) {
	if err := f.check(); err != nil || f.null {
		return sql.Null[string]{}, err
	}
	e := f.enc
	if len(enc) > 0 && enc[0] != nil {
		e = enc[0]
	}
	s, err := decodeText(f.raw, e)
	if err != nil {
		return sql.Null[string]{}, f.wrap(err)
	}
	return sql.Null[string]{V: s, Valid: true}, nil
}

// AsNumber parses the value as an integer or floating number depending on
// the column type.
func (f Field) AsNumber() (sql.Null[Number], error) {
	if err := f.check(); err != nil || f.null {
		return sql.Null[Number]{}, err
	}
	n, err := decodeNumber(f.raw, f.col.kind())
	if err != nil {
		return sql.Null[Number]{}, f.wrap(err)
	}
	return sql.Null[Number]{V: n, Valid: true}, nil
}

// AsLong parses the value as a 64-bit integer. Floating and non-numeric
// column types are rejected.
func (f Field) AsLong() (sql.Null[int64], error) {
	if err := f.check(); err != nil || f.null {
		return sql.Null[int64]{}, err
	}
	v, err := decodeLong(f.raw, f.col.kind())
	if err != nil {
		return sql.Null[int64]{}, f.wrap(err)
	}
	return sql.Null[int64]{V: v, Valid: true}, nil
}

// AsDate parses date, timestamp and timestamptz text.
func (f Field) AsDate() (sql.Null[time.Time], error) {
	if err := f.check(); err != nil || f.null {
		return sql.Null[time.Time]{}, err
	}
	t, err := decodeTime(f.raw, f.col.typ)
	if err != nil {
		return sql.Null[time.Time]{}, f.wrap(err)
	}
	return sql.Null[time.Time]{V: t, Valid: true}, nil
}

// AsData returns the value bytes. bytea values are unescaped first; any other
// type is returned verbatim.
func (f Field) AsData() ([]byte, error) {
	if err := f.check(); err != nil || f.null {
		return nil, err
	}
	b, err := decodeData(f.raw, f.col.kind())
	if err != nil {
		return nil, f.wrap(err)
	}
	return b, nil
}

// AsBoolean accepts t, f, true and false.
func (f Field) AsBoolean() (sql.Null[bool], error) {
	if err := f.check(); err != nil || f.null {
		return sql.Null[bool]{}, err
	}
	v, err := decodeBool(f.raw)
	if err != nil {
		return sql.Null[bool]{}, f.wrap(err)
	}
	return sql.Null[bool]{V: v, Valid: true}, nil
}

// Value decodes the field into the natural Go type for its column: int64,
// float64, bool, time.Time, []byte or string. NULL is nil.
func (f Field) Value() (any, error) {
	if err := f.check(); err != nil || f.null {
		return nil, err
	}
	v, err := decodeValue(f.raw, f.col, f.enc)
	if err != nil {
		return nil, f.wrap(err)
	}
	return v, nil
}

func (f Field) check() error {
	if f.owner == nil {
		return nil
	}
	return f.owner.checkGen(f.gen)
}

func (f Field) wrap(err error) error {
	return fmt.Errorf("column %q: %w", f.col.name, err)
}

// Number is a decoded numeric value; integer columns keep full int64
// precision.
type Number struct {
	i       int64
	f       float64
	isFloat bool
}

func IntNumber(v int64) Number     { return Number{i: v} }
func FloatNumber(v float64) Number { return Number{f: v, isFloat: true} }

func (n Number) IsFloat() bool { return n.isFloat }

func (n Number) Int64() int64 {
	if n.isFloat {
		return int64(n.f)
	}
	return n.i
}

func (n Number) Float64() float64 {
	if n.isFloat {
		return n.f
	}
	return float64(n.i)
}

func (n Number) String() string {
	if n.isFloat {
		return strconv.FormatFloat(n.f, 'g', -1, 64)
	}
	return strconv.FormatInt(n.i, 10)
}

func decodeErr(raw []byte, want string) error {
	return fmt.Errorf("%w: %q is not a valid %s", ErrDecode, raw, want)
}

func decodeNumber(raw []byte, kind pgoid.Kind) (Number, error) {
	s := strings.TrimSpace(string(raw))
	switch kind {
	case pgoid.KindInteger:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Number{}, decodeErr(raw, "integer")
		}
		return IntNumber(v), nil
	case pgoid.KindFloat, pgoid.KindNumeric:
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Number{}, decodeErr(raw, "number")
		}
		return FloatNumber(v), nil
	case pgoid.KindText:
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			return IntNumber(v), nil
		}
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			return FloatNumber(v), nil
		}
		return Number{}, decodeErr(raw, "number")
	default:
		return Number{}, fmt.Errorf("%w: %s column is not numeric", ErrDecode, kind)
	}
}

func decodeLong(raw []byte, kind pgoid.Kind) (int64, error) {
	switch kind {
	case pgoid.KindInteger, pgoid.KindNumeric, pgoid.KindText:
		v, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
		if err != nil {
			return 0, decodeErr(raw, "integer")
		}
		return v, nil
	default:
		return 0, fmt.Errorf("%w: %s column is not integer-compatible", ErrDecode, kind)
	}
}

// text columns are tried as timestamptz, then timestamp, then date
var textTimeOIDs = []uint32{pgtype.TimestamptzOID, pgtype.TimestampOID, pgtype.DateOID}

func decodeTime(raw []byte, oid uint32) (time.Time, error) {
	kind := pgoid.Classify(oid)
	if kind.IsTemporal() {
		var t time.Time
		if err := pgoid.ScanText(oid, raw, &t); err != nil {
			return time.Time{}, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return t, nil
	}
	if kind != pgoid.KindText {
		return time.Time{}, fmt.Errorf("%w: %s column is not a date", ErrDecode, kind)
	}
	for _, try := range textTimeOIDs {
		var t time.Time
		if err := pgoid.ScanText(try, raw, &t); err == nil {
			return t, nil
		}
	}
	return time.Time{}, decodeErr(raw, "date")
}

func decodeData(raw []byte, kind pgoid.Kind) ([]byte, error) {
	if kind == pgoid.KindBytea {
		b, err := native.UnescapeBytea(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDecode, err)
		}
		return b, nil
	}
	out := make([]byte, len(raw))
	copy(out, raw)
	return out, nil
}

func decodeBool(raw []byte) (bool, error) {
	switch string(raw) {
	case "t", "true":
		return true, nil
	case "f", "false":
		return false, nil
	}
	return false, decodeErr(raw, "boolean")
}

func decodeValue(raw []byte, col Column, enc Encoding) (any, error) {
	switch kind := col.kind(); kind {
	case pgoid.KindInteger:
		return decodeLong(raw, kind)
	case pgoid.KindFloat, pgoid.KindNumeric:
		n, err := decodeNumber(raw, kind)
		if err != nil {
			return nil, err
		}
		return n.Float64(), nil
	case pgoid.KindBool:
		return decodeBool(raw)
	case pgoid.KindDate, pgoid.KindTimestamp, pgoid.KindTimestampTZ:
		return decodeTime(raw, col.typ)
	case pgoid.KindBytea:
		return decodeData(raw, kind)
	default:
		return decodeText(raw, enc)
	}
}
