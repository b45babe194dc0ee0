// Package nativemock is a scripted, in-memory stand-in for the native client
// library. Every exchange with the "server" is recorded so tests can assert
// what reached the wire and what did not.
package nativemock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/tuannm99/pgsqlkit/internal/native"
)

var ErrSessionClosed = errors.New("nativemock: session closed")

// Field describes one result column.
type Field struct {
	Name string
	OID  uint32
	Size int
}

// Result is a canned statement result.
type Result struct {
	Tag    string
	Fields []Field
	Rows   [][][]byte

	clears atomic.Int32
}

// NewResult builds a result; build rows with Row.
func NewResult(tag string, fields []Field, rows ...[][]byte) *Result {
	return &Result{Tag: tag, Fields: fields, Rows: rows}
}

// Row converts values to a row of raw cells. nil is NULL, strings and byte
// slices are taken verbatim, anything else goes through fmt.
func Row(vals ...any) [][]byte {
	out := make([][]byte, len(vals))
	for i, v := range vals {
		switch x := v.(type) {
		case nil:
			out[i] = nil
		case string:
			out[i] = []byte(x)
		case []byte:
			out[i] = x
		default:
			out[i] = []byte(fmt.Sprint(x))
		}
	}
	return out
}

func (r *Result) Status() string            { return r.Tag }
func (r *Result) NumRows() int              { return len(r.Rows) }
func (r *Result) NumFields() int            { return len(r.Fields) }
func (r *Result) FieldName(col int) string  { return r.Fields[col].Name }
func (r *Result) FieldType(col int) uint32  { return r.Fields[col].OID }
func (r *Result) FieldSize(col int) int     { return r.Fields[col].Size }
func (r *Result) Value(row, col int) []byte { return r.Rows[row][col] }
func (r *Result) IsNull(row, col int) bool  { return r.Rows[row][col] == nil }
func (r *Result) Clear()                    { r.clears.Add(1) }

// Clears reports how many times Clear was called.
func (r *Result) Clears() int { return int(r.clears.Load()) }

// Call is one recorded exchange.
type Call struct {
	Op     string // exec, execParams, prepare, execPrepared
	SQL    string
	Name   string
	Params []native.Param
}

// Handler answers a call. A nil Result with a nil error yields an empty
// "OK" result.
type Handler func(ctx context.Context, call Call) (*Result, error)

// Driver hands out Sessions. The zero value accepts every connection and
// answers every statement with an empty result.
type Driver struct {
	ConnectErr error
	// ConnectHook, when set, runs inside Connect before ConnectErr is checked.
	ConnectHook func(ctx context.Context) error
	Handler     Handler
	// Notices are delivered to the notice handler on every statement.
	Notices []string
	Status  map[string]string

	mu          sync.Mutex
	connStrings []string
	calls       []Call
	sessions    []*Session
}

func (d *Driver) Connect(ctx context.Context, connString string, onNotice native.NoticeHandler) (native.Session, error) {
	d.mu.Lock()
	d.connStrings = append(d.connStrings, connString)
	d.mu.Unlock()

	if d.ConnectHook != nil {
		if err := d.ConnectHook(ctx); err != nil {
			return nil, err
		}
	}
	if d.ConnectErr != nil {
		return nil, d.ConnectErr
	}

	s := &Session{driver: d, onNotice: onNotice, prepared: make(map[string]string)}
	d.mu.Lock()
	d.sessions = append(d.sessions, s)
	d.mu.Unlock()
	return s, nil
}

// ConnStrings returns every connection string passed to Connect.
func (d *Driver) ConnStrings() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.connStrings...)
}

// Calls returns every exchange across all sessions, in order.
func (d *Driver) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}

func (d *Driver) Sessions() []*Session {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Session(nil), d.sessions...)
}

// Session is a fake server session.
type Session struct {
	driver   *Driver
	onNotice native.NoticeHandler
	busy     atomic.Bool
	closed   atomic.Bool

	mu       sync.Mutex
	prepared map[string]string
}

func (s *Session) IsClosed() bool { return s.closed.Load() }

// Drop simulates the server going away: later calls fail and IsClosed
// reports true.
func (s *Session) Drop() { s.closed.Store(true) }

func (s *Session) Exec(ctx context.Context, sql string) (native.Result, error) {
	return s.round(ctx, Call{Op: "exec", SQL: sql})
}

func (s *Session) ExecParams(ctx context.Context, sql string, params []native.Param) (native.Result, error) {
	return s.round(ctx, Call{Op: "execParams", SQL: sql, Params: params})
}

func (s *Session) Prepare(ctx context.Context, name, sql string) error {
	if _, err := s.round(ctx, Call{Op: "prepare", Name: name, SQL: sql}); err != nil {
		return err
	}
	s.mu.Lock()
	s.prepared[name] = sql
	s.mu.Unlock()
	return nil
}

func (s *Session) ExecPrepared(ctx context.Context, name string, params []native.Param) (native.Result, error) {
	s.mu.Lock()
	sql, ok := s.prepared[name]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("nativemock: prepared statement %q does not exist", name)
	}
	return s.round(ctx, Call{Op: "execPrepared", Name: name, SQL: sql, Params: params})
}

func (s *Session) IsBusy() bool { return s.busy.Load() }

func (s *Session) ParameterStatus(key string) string {
	if v, ok := s.driver.Status[key]; ok {
		return v
	}
	switch key {
	case "server_version":
		return "16.2"
	case "client_encoding":
		return "UTF8"
	}
	return ""
}

func (s *Session) Close(context.Context) error {
	s.closed.Store(true)
	return nil
}

func (s *Session) round(ctx context.Context, call Call) (native.Result, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	s.busy.Store(true)
	defer s.busy.Store(false)

	d := s.driver
	d.mu.Lock()
	d.calls = append(d.calls, call)
	d.mu.Unlock()

	if s.onNotice != nil {
		for _, n := range d.Notices {
			s.onNotice(n)
		}
	}

	if d.Handler == nil {
		return NewResult("OK", nil), nil
	}
	res, err := d.Handler(ctx, call)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return NewResult("OK", nil), nil
	}
	return res, nil
}
