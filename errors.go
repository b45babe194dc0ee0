package pgsqlkit

import (
	"errors"
	"fmt"

	"github.com/tuannm99/pgsqlkit/internal/native"
)

var (
	// ErrConnection means the session could not be established or was lost.
	ErrConnection = errors.New("pgsqlkit: connection error")
	// ErrCommand means the server rejected or failed the SQL.
	ErrCommand = errors.New("pgsqlkit: command failed")
	// ErrParameterMismatch means the placeholders declared in the SQL and the
	// supplied parameters differ in count. Nothing is sent to the server.
	ErrParameterMismatch = errors.New("pgsqlkit: parameter count mismatch")
	// ErrDecode means a value cannot be coerced to the requested type.
	ErrDecode = errors.New("pgsqlkit: cannot decode value")
	// ErrBounds means there is no current record (the cursor is at EOF) or a
	// column index is out of range.
	ErrBounds = errors.New("pgsqlkit: out of bounds")
	// ErrState is the parent of every "wrong state for this call" error.
	ErrState = errors.New("pgsqlkit: invalid state")

	ErrNotConnected    = fmt.Errorf("%w: not connected", ErrState)
	ErrBusy            = fmt.Errorf("%w: another operation is in progress", ErrState)
	ErrClosing         = fmt.Errorf("%w: connection is closing", ErrState)
	ErrRecordsetClosed = fmt.Errorf("%w: recordset is closed", ErrState)
	ErrStaleRecord     = fmt.Errorf("%w: record is no longer current", ErrState)

	ErrColumnNotFound  = errors.New("pgsqlkit: column not found")
	ErrAmbiguousColumn = errors.New("pgsqlkit: ambiguous column name")
)

// sessionError is a failure reported by the session, filed under kind
// (ErrConnection or ErrCommand).
type sessionError struct {
	kind error
	err  error
}

func (e *sessionError) Error() string   { return e.kind.Error() + ": " + e.err.Error() }
func (e *sessionError) Unwrap() []error { return []error{e.kind, e.err} }

// errorText is the LastError text for err: the server diagnostic when the
// session reported it, err.Error() otherwise.
func errorText(err error) string {
	var se *sessionError
	if errors.As(err, &se) {
		return native.ErrorMessage(se.err)
	}
	return err.Error()
}
