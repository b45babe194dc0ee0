package pgsqlkit

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tuannm99/pgsqlkit/internal/native"
)

// PreparedStatement is a named server-side statement with a fixed parameter
// list. Parameters start out NULL.
type PreparedStatement struct {
	conn *Connection
	name string
	sql  string

	mu     sync.Mutex
	params []Param
	closed bool
}

// Prepare creates a server-side statement named name. The parameter count is
// taken from the $n placeholders in sql.
func (c *Connection) Prepare(name, sql string) (*PreparedStatement, error) {
	return c.PrepareContext(context.Background(), name, sql)
}

func (c *Connection) PrepareContext(ctx context.Context, name, sql string) (*PreparedStatement, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return nil, c.fail(ErrBusy)
	}
	defer c.busy.Store(false)

	_, err := c.exchange(ctx, sql, func(ctx context.Context, sess native.Session) (native.Result, error) {
		if err := sess.Prepare(ctx, name, sql); err != nil {
			return nil, err
		}
		return preparedResult{}, nil
	})
	if err != nil {
		return nil, err
	}

	params := make([]Param, countPlaceholders(sql))
	for i := range params {
		params[i] = Null()
	}
	return &PreparedStatement{conn: c, name: name, sql: sql, params: params}, nil
}

func (ps *PreparedStatement) StatementName() string { return ps.name }

func (ps *PreparedStatement) SQL() string { return ps.sql }

func (ps *PreparedStatement) NumParams() int { return len(ps.params) }

// SetParameter binds p to placeholder $(i+1).
func (ps *PreparedStatement) SetParameter(i int, p Param) error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if i < 0 || i >= len(ps.params) {
		return fmt.Errorf("%w: parameter index %d (have %d)", ErrBounds, i, len(ps.params))
	}
	ps.params[i] = p
	return nil
}

func (ps *PreparedStatement) Parameter(i int) (Param, error) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if i < 0 || i >= len(ps.params) {
		return Param{}, fmt.Errorf("%w: parameter index %d (have %d)", ErrBounds, i, len(ps.params))
	}
	return ps.params[i], nil
}

func (ps *PreparedStatement) Exec() error {
	return ps.ExecContext(context.Background())
}

func (ps *PreparedStatement) ExecContext(ctx context.Context) error {
	c := ps.conn
	if !c.busy.CompareAndSwap(false, true) {
		return c.fail(ErrBusy)
	}
	defer c.busy.Store(false)
	return ps.exec(ctx)
}

func (ps *PreparedStatement) Open() (*Recordset, error) {
	return ps.OpenContext(context.Background())
}

func (ps *PreparedStatement) OpenContext(ctx context.Context) (*Recordset, error) {
	c := ps.conn
	if !c.busy.CompareAndSwap(false, true) {
		return nil, c.fail(ErrBusy)
	}
	defer c.busy.Store(false)
	return ps.open(ctx)
}

func (ps *PreparedStatement) ExecAsync() <-chan Completion {
	return ps.conn.startAsync(CommandDidComplete, func(ctx context.Context) (*Recordset, error) {
		return nil, ps.exec(ctx)
	})
}

func (ps *PreparedStatement) OpenAsync() <-chan Completion {
	return ps.conn.startAsync(CommandDidComplete, ps.open)
}

// Close deallocates the statement on the server. Once that succeeds,
// calling it again is a no-op; after a failure it can be retried.
func (ps *PreparedStatement) Close() error {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	if ps.closed {
		return nil
	}
	err := ps.conn.ExecCommand("DEALLOCATE " + native.EscapeIdentifier(ps.name))
	if err != nil && !errors.Is(err, ErrNotConnected) {
		return err
	}
	// without a session the statement is already gone
	ps.closed = true
	return nil
}

func (ps *PreparedStatement) exec(ctx context.Context) error {
	res, err := ps.send(ctx)
	if err != nil {
		return err
	}
	res.Clear()
	return nil
}

func (ps *PreparedStatement) open(ctx context.Context) (*Recordset, error) {
	res, err := ps.send(ctx)
	if err != nil {
		return nil, err
	}
	return ps.conn.track(res), nil
}

func (ps *PreparedStatement) send(ctx context.Context) (native.Result, error) {
	ps.mu.Lock()
	if ps.closed {
		ps.mu.Unlock()
		return nil, ps.conn.fail(fmt.Errorf("%w: prepared statement %q is closed", ErrState, ps.name))
	}
	params := append([]Param(nil), ps.params...)
	ps.mu.Unlock()

	if err := checkParams(ps.sql, params); err != nil {
		return nil, ps.conn.fail(err)
	}
	np := nativeParams(params)
	return ps.conn.exchange(ctx, ps.sql, func(ctx context.Context, sess native.Session) (native.Result, error) {
		return sess.ExecPrepared(ctx, ps.name, np)
	})
}

// preparedResult stands in for the empty result of a Prepare round trip.
type preparedResult struct{}

func (preparedResult) Status() string        { return "PREPARE" }
func (preparedResult) NumRows() int          { return 0 }
func (preparedResult) NumFields() int        { return 0 }
func (preparedResult) FieldName(int) string  { return "" }
func (preparedResult) FieldType(int) uint32  { return 0 }
func (preparedResult) FieldSize(int) int     { return 0 }
func (preparedResult) Value(int, int) []byte { return nil }
func (preparedResult) IsNull(int, int) bool  { return true }
func (preparedResult) Clear()                {}
