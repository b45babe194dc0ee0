package native

import (
	"bytes"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/lib/pq"

	"github.com/tuannm99/pgsqlkit/internal/pgoid"
)

// EscapeLiteral quotes s as a SQL string literal, using the E'...' form when s
// contains backslashes.
func EscapeLiteral(s string) string {
	return pq.QuoteLiteral(s)
}

// EscapeIdentifier double-quotes s as a SQL identifier.
func EscapeIdentifier(s string) string {
	return pq.QuoteIdentifier(s)
}

// EscapeBytea renders b in the bytea hex text format (\x...). Any byte value,
// including zero, survives the trip.
func EscapeBytea(b []byte) (string, error) {
	if len(b) == 0 {
		return `\x`, nil
	}
	out, err := pgoid.EncodeText(pgtype.ByteaOID, b)
	if err != nil {
		return "", fmt.Errorf("native: escape bytea: %w", err)
	}
	return string(out), nil
}

// UnescapeBytea decodes bytea text back into raw bytes. Both the hex format
// (\x...) and the older escape format (\\ and \ooo octal) are accepted.
func UnescapeBytea(text []byte) ([]byte, error) {
	if !bytes.HasPrefix(text, []byte(`\x`)) {
		return unescapeByteaEscape(text)
	}
	var out []byte
	if err := pgoid.ScanText(pgtype.ByteaOID, text, &out); err != nil {
		return nil, fmt.Errorf("native: unescape bytea: %w", err)
	}
	if out == nil {
		out = []byte{}
	}
	return out, nil
}

func unescapeByteaEscape(text []byte) ([]byte, error) {
	out := make([]byte, 0, len(text))
	for i := 0; i < len(text); {
		c := text[i]
		switch {
		case c != '\\':
			out = append(out, c)
			i++
		case i+1 < len(text) && text[i+1] == '\\':
			out = append(out, '\\')
			i += 2
		case i+3 < len(text) && isOctal(text[i+1]) && text[i+1] <= '3' && isOctal(text[i+2]) && isOctal(text[i+3]):
			out = append(out, (text[i+1]-'0')<<6|(text[i+2]-'0')<<3|(text[i+3]-'0'))
			i += 4
		default:
			return nil, fmt.Errorf("native: unescape bytea: invalid escape at offset %d", i)
		}
	}
	return out, nil
}

func isOctal(c byte) bool { return c >= '0' && c <= '7' }
