package pgsqlkit

import "strings"

// SplitStatements cuts sql at top-level semicolons. Each complete statement
// is returned trimmed and without its terminator; rest is whatever follows
// the last terminator, i.e. input that is still unfinished when not blank.
// Semicolons inside literals, quoted identifiers, comments and dollar-quoted
// bodies do not count.
func SplitStatements(sql string) (stmts []string, rest string) {
	start := 0
	for i := 0; i < len(sql); {
		if j := skipNonCode(sql, i); j > i {
			i = j
			continue
		}
		if sql[i] == ';' {
			if s := strings.TrimSpace(sql[start:i]); s != "" {
				stmts = append(stmts, s)
			}
			start = i + 1
		}
		i++
	}
	return stmts, sql[start:]
}

// CompactStatement flattens sql onto one line. Comments are dropped and
// whitespace outside quoted text collapses to a single space.
func CompactStatement(sql string) string {
	var b strings.Builder
	gap := false
	emit := func(s string) {
		if gap && b.Len() > 0 {
			b.WriteByte(' ')
		}
		gap = false
		b.WriteString(s)
	}
	for i := 0; i < len(sql); {
		if j := skipNonCode(sql, i); j > i {
			if isCommentStart(sql, i) {
				gap = true
			} else {
				emit(sql[i:j])
			}
			i = j
			continue
		}
		switch sql[i] {
		case ' ', '\t', '\n', '\r', '\f':
			gap = true
		default:
			emit(sql[i : i+1])
		}
		i++
	}
	return b.String()
}

// skipNonCode returns the index just past the string literal, quoted
// identifier, comment or dollar-quoted body that starts at i, or i itself
// when none does. Unterminated text runs to the end of sql.
func skipNonCode(sql string, i int) int {
	switch c := sql[i]; {
	case c == '\'':
		// E'...' strings allow backslash escapes
		escapes := i > 0 && (sql[i-1] == 'E' || sql[i-1] == 'e') && (i < 2 || !isIdentByte(sql[i-2]))
		return skipQuoted(sql, i+1, '\'', escapes)
	case c == '"':
		return skipQuoted(sql, i+1, '"', false)
	case strings.HasPrefix(sql[i:], "--"):
		if nl := strings.IndexByte(sql[i:], '\n'); nl >= 0 {
			return i + nl
		}
		return len(sql)
	case strings.HasPrefix(sql[i:], "/*"):
		return skipBlockComment(sql, i+2)
	case c == '$':
		if tag, ok := dollarTag(sql, i); ok {
			return skipDollarQuoted(sql, i+len(tag), tag)
		}
	}
	return i
}

func isCommentStart(sql string, i int) bool {
	return strings.HasPrefix(sql[i:], "--") || strings.HasPrefix(sql[i:], "/*")
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= 0x80
}

func skipQuoted(sql string, i int, quote byte, escapes bool) int {
	for i < len(sql) {
		switch {
		case escapes && sql[i] == '\\':
			i += 2
		case sql[i] == quote:
			if i+1 < len(sql) && sql[i+1] == quote {
				i += 2
				continue
			}
			return i + 1
		default:
			i++
		}
	}
	return len(sql)
}

func skipBlockComment(sql string, i int) int {
	depth := 1
	for i < len(sql) && depth > 0 {
		switch {
		case sql[i] == '/' && i+1 < len(sql) && sql[i+1] == '*':
			depth++
			i += 2
		case sql[i] == '*' && i+1 < len(sql) && sql[i+1] == '/':
			depth--
			i += 2
		default:
			i++
		}
	}
	return i
}

// dollarTag reports the $tag$ opener starting at i, if any. "$1" is a
// placeholder, not a tag.
func dollarTag(sql string, i int) (string, bool) {
	if i > 0 && isIdentByte(sql[i-1]) {
		return "", false
	}
	j := i + 1
	for j < len(sql) && sql[j] != '$' {
		c := sql[j]
		if !(c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= 0x80 || (j > i+1 && c >= '0' && c <= '9')) {
			return "", false
		}
		j++
	}
	if j >= len(sql) {
		return "", false
	}
	return sql[i : j+1], true
}

func skipDollarQuoted(sql string, i int, tag string) int {
	for k := i; k+len(tag) <= len(sql); k++ {
		if sql[k:k+len(tag)] == tag {
			return k + len(tag)
		}
	}
	return len(sql)
}
