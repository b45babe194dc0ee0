package pgsqlkit

import (
	"fmt"
	"strconv"
	"time"

	"github.com/tuannm99/pgsqlkit/internal/native"
)

type ParamKind uint8

const (
	ParamNull ParamKind = iota
	ParamText
	ParamBinary
)

// Param is one positional parameter, bound to $1, $2, ... in order.
type Param struct {
	kind ParamKind
	text string
	data []byte
}

func Null() Param { return Param{kind: ParamNull} }

func Text(s string) Param { return Param{kind: ParamText, text: s} }

// Binary sends b as bytea.
func Binary(b []byte) Param {
	if b == nil {
		b = []byte{}
	}
	return Param{kind: ParamBinary, data: b}
}

// Value converts common Go values to a Param.
func Value(v any) (Param, error) {
	switch x := v.(type) {
	case nil:
		return Null(), nil
	case Param:
		return x, nil
	case string:
		return Text(x), nil
	case []byte:
		if x == nil {
			return Null(), nil
		}
		return Binary(x), nil
	case bool:
		return Text(strconv.FormatBool(x)), nil
	case int:
		return Text(strconv.Itoa(x)), nil
	case int32:
		return Text(strconv.FormatInt(int64(x), 10)), nil
	case int64:
		return Text(strconv.FormatInt(x, 10)), nil
	case float32:
		return Text(strconv.FormatFloat(float64(x), 'g', -1, 32)), nil
	case float64:
		return Text(strconv.FormatFloat(x, 'g', -1, 64)), nil
	case time.Time:
		return Text(x.Format(time.RFC3339Nano)), nil
	case fmt.Stringer:
		return Text(x.String()), nil
	default:
		return Param{}, fmt.Errorf("pgsqlkit: unsupported parameter type %T", v)
	}
}

// Values converts each argument with Value.
func Values(args ...any) ([]Param, error) {
	out := make([]Param, len(args))
	for i, a := range args {
		p, err := Value(a)
		if err != nil {
			return nil, fmt.Errorf("parameter $%d: %w", i+1, err)
		}
		out[i] = p
	}
	return out, nil
}

func (p Param) Kind() ParamKind { return p.kind }

func (p Param) IsNull() bool { return p.kind == ParamNull }

func (p Param) native() native.Param {
	switch p.kind {
	case ParamText:
		// empty text must not turn into NULL
		v := []byte(p.text)
		if v == nil {
			v = []byte{}
		}
		return native.Param{Value: v}
	case ParamBinary:
		return native.Param{Value: p.data, Binary: true}
	default:
		return native.Param{}
	}
}

func nativeParams(params []Param) []native.Param {
	out := make([]native.Param, len(params))
	for i, p := range params {
		out[i] = p.native()
	}
	return out
}

// checkParams compares the placeholders declared in sql with params.
func checkParams(sql string, params []Param) error {
	if declared := countPlaceholders(sql); declared != len(params) {
		return fmt.Errorf("%w: sql declares %d, got %d", ErrParameterMismatch, declared, len(params))
	}
	return nil
}

// countPlaceholders returns the highest $n placeholder in sql. String
// literals, quoted identifiers, comments and dollar-quoted bodies are skipped.
func countPlaceholders(sql string) int {
	highest := 0
	for i := 0; i < len(sql); {
		if j := skipNonCode(sql, i); j > i {
			i = j
			continue
		}
		if sql[i] == '$' && (i == 0 || !isIdentByte(sql[i-1])) {
			j := i + 1
			for j < len(sql) && sql[j] >= '0' && sql[j] <= '9' {
				j++
			}
			if j > i+1 {
				if v, err := strconv.Atoi(sql[i+1 : j]); err == nil && v > highest {
					highest = v
				}
				i = j
				continue
			}
		}
		i++
	}
	return highest
}
