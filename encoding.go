package pgsqlkit

import (
	"fmt"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
	"golang.org/x/text/encoding/unicode"
)

// Encoding converts raw column bytes to Go strings.
type Encoding = encoding.Encoding

var (
	UTF8        Encoding = unicode.UTF8
	MacRoman    Encoding = charmap.Macintosh
	Latin1      Encoding = charmap.ISO8859_1
	Windows1252 Encoding = charmap.Windows1252
)

// DefaultEncoding is used by new connections.
var DefaultEncoding = UTF8

// server-side encoding names that IANA does not know
var pgEncodingNames = map[string]string{
	"UTF8":      "UTF-8",
	"UNICODE":   "UTF-8",
	"SQL_ASCII": "US-ASCII",
	"LATIN1":    "ISO-8859-1",
	"LATIN2":    "ISO-8859-2",
	"LATIN9":    "ISO-8859-15",
	"WIN1250":   "windows-1250",
	"WIN1251":   "windows-1251",
	"WIN1252":   "windows-1252",
	"KOI8R":     "KOI8-R",
	"MACROMAN":  "macintosh",
}

// LookupEncoding resolves an IANA or PostgreSQL encoding name.
func LookupEncoding(name string) (Encoding, error) {
	key := strings.TrimSpace(name)
	if alias, ok := pgEncodingNames[strings.ToUpper(key)]; ok {
		key = alias
	}
	if strings.EqualFold(key, "US-ASCII") {
		// ASCII is a subset of UTF-8; the x/text index has no decoder for it.
		return UTF8, nil
	}
	enc, err := ianaindex.IANA.Encoding(key)
	if err != nil {
		return nil, fmt.Errorf("pgsqlkit: unknown encoding %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("pgsqlkit: unsupported encoding %q", name)
	}
	return enc, nil
}

func decodeText(raw []byte, enc Encoding) (string, error) {
	if enc == nil || enc == UTF8 {
		return string(raw), nil
	}
	out, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return string(out), nil
}
