// Package native is the seam between pgsqlkit and the PostgreSQL client
// library that speaks the wire protocol. Everything above this package only
// sees sessions and result handles.
package native

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// NoticeHandler receives informational server messages (NOTICE, WARNING...)
// raised while a command runs.
type NoticeHandler func(msg string)

// Param is one bound parameter value. A nil Value is SQL NULL.
type Param struct {
	Value  []byte
	Binary bool
}

// Driver opens sessions.
type Driver interface {
	Connect(ctx context.Context, connString string, onNotice NoticeHandler) (Session, error)
}

// Session is one open server session. It supports a single outstanding
// operation at a time.
type Session interface {
	// Exec runs sql with the simple query protocol and returns the result of
	// the last statement.
	Exec(ctx context.Context, sql string) (Result, error)
	// ExecParams runs a single statement with positional parameters.
	ExecParams(ctx context.Context, sql string, params []Param) (Result, error)
	Prepare(ctx context.Context, name, sql string) error
	ExecPrepared(ctx context.Context, name string, params []Param) (Result, error)

	IsBusy() bool
	// IsClosed reports whether the session is gone, e.g. after a fatal
	// network error.
	IsClosed() bool
	ParameterStatus(key string) string
	Close(ctx context.Context) error
}

// Result is a completed statement's data. Callers must call Clear exactly
// once when done with it.
type Result interface {
	// Status is the command tag, e.g. "SELECT 3" or "INSERT 0 1".
	Status() string
	NumRows() int
	NumFields() int
	FieldName(col int) string
	FieldType(col int) uint32
	// FieldSize is the server-side type size; negative for variable width.
	FieldSize(col int) int
	Value(row, col int) []byte
	IsNull(row, col int) bool
	Clear()
}

// ErrorMessage renders err the way the server diagnostic reads, falling back to
// err.Error() for client-side failures.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		msg := fmt.Sprintf("%s: %s", pgErr.Severity, pgErr.Message)
		if pgErr.Detail != "" {
			msg += "\nDETAIL: " + pgErr.Detail
		}
		if pgErr.Hint != "" {
			msg += "\nHINT: " + pgErr.Hint
		}
		return msg
	}
	return err.Error()
}
