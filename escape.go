package pgsqlkit

import (
	"fmt"

	"github.com/tuannm99/pgsqlkit/internal/native"
)

// SQLEncodeString returns s as a quoted SQL string literal, safe to splice
// into inline SQL.
func (c *Connection) SQLEncodeString(s string) string {
	return native.EscapeLiteral(s)
}

// SQLEncodeData renders b as bytea hex text (\x...). Embedded zero and
// high-bit bytes are preserved.
func (c *Connection) SQLEncodeData(b []byte) (string, error) {
	s, err := native.EscapeBytea(b)
	if err != nil {
		return "", c.fail(fmt.Errorf("%w: %w", ErrDecode, err))
	}
	return s, nil
}

// SQLDecodeData turns bytea hex text back into bytes.
func (c *Connection) SQLDecodeData(text []byte) ([]byte, error) {
	b, err := native.UnescapeBytea(text)
	if err != nil {
		return nil, c.fail(fmt.Errorf("%w: %w", ErrDecode, err))
	}
	return b, nil
}
