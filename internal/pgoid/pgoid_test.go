package pgoid

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	cases := map[uint32]Kind{
		pgtype.Int2OID:        KindInteger,
		pgtype.Int8OID:        KindInteger,
		pgtype.OIDOID:         KindInteger,
		pgtype.Float4OID:      KindFloat,
		pgtype.NumericOID:     KindNumeric,
		pgtype.BoolOID:        KindBool,
		pgtype.DateOID:        KindDate,
		pgtype.TimestampOID:   KindTimestamp,
		pgtype.TimestamptzOID: KindTimestampTZ,
		pgtype.ByteaOID:       KindBytea,
		pgtype.TextOID:        KindText,
		pgtype.JSONBOID:       KindText,
		0:                     KindText,
	}
	for oid, want := range cases {
		require.Equal(t, want, Classify(oid), "oid %d", oid)
	}
}

func TestKindPredicates(t *testing.T) {
	require.True(t, KindInteger.IsNumeric())
	require.True(t, KindNumeric.IsNumeric())
	require.False(t, KindText.IsNumeric())

	require.True(t, KindDate.IsTemporal())
	require.True(t, KindTimestampTZ.IsTemporal())
	require.False(t, KindBytea.IsTemporal())

	require.Equal(t, "timestamptz", KindTimestampTZ.String())
	require.Equal(t, "text", Kind(200).String())
}

func TestScanText(t *testing.T) {
	var d time.Time
	require.NoError(t, ScanText(pgtype.DateOID, []byte("1999-12-31"), &d))
	require.True(t, d.Equal(time.Date(1999, 12, 31, 0, 0, 0, 0, time.UTC)))

	var b []byte
	require.NoError(t, ScanText(pgtype.ByteaOID, []byte(`\xcafe`), &b))
	require.Equal(t, []byte{0xca, 0xfe}, b)

	require.Error(t, ScanText(pgtype.DateOID, []byte("yesterday-ish"), &d))
}

func TestEncodeText(t *testing.T) {
	out, err := EncodeText(pgtype.ByteaOID, []byte{0xca, 0xfe})
	require.NoError(t, err)
	require.Equal(t, `\xcafe`, string(out))
}
