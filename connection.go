// Package pgsqlkit exposes PostgreSQL query results as a cursor chain:
// Connection, Recordset, Record, Field and Column. Statements run synchronously
// or in the background, with positional parameters bound to $1, $2, ...
package pgsqlkit

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc"
	"go.uber.org/multierr"

	"github.com/tuannm99/pgsqlkit/internal/native"
)

const (
	DefaultHost   = "localhost"
	DefaultPort   = "5432"
	DefaultDBName = "template1"

	closeTimeout = 5 * time.Second
)

// Credentials are the discrete connection settings. They are read on every
// Connect and Reset, so changes only take effect on the next one.
type Credentials struct {
	Host       string
	Port       string
	DBName     string
	User       string
	Password   string
	SSLMode    string // disable, allow, prefer, require, verify-ca, verify-full
	Service    string
	KrbsrvName string
	Options    string
}

// Connection is one database session and the root of all data access.
//
// Failures never panic: every call returns an error and also leaves a
// description in LastError. A Connection runs one operation at a time; a call
// made while another (sync or async) is outstanding fails with ErrBusy.
type Connection struct {
	Credentials Credentials
	// ConnectionString, when set, is used verbatim instead of Credentials.
	ConnectionString string
	// LogSQL records every statement sent in SQLLog.
	LogSQL bool

	driver native.Driver

	mu        sync.Mutex
	sess      native.Session
	connected bool
	enc       Encoding
	encSet    bool
	lastError string
	cmdStatus string
	notices   []string
	sqlLog    strings.Builder
	sets      map[*Recordset]struct{}

	busy  atomic.Bool
	async conc.WaitGroup
	// closing counts Close calls waiting for async work; no new async
	// work starts while it is non-zero.
	closing int
	ctx     context.Context
	cancel  context.CancelFunc
}

// NewConnection returns an unconnected Connection with the default
// credentials. The first Connection created becomes the DefaultConnection.
func NewConnection() *Connection {
	return newConnection(native.PgDriver{})
}

func newConnection(driver native.Driver) *Connection {
	c := &Connection{
		Credentials: Credentials{
			Host:   DefaultHost,
			Port:   DefaultPort,
			DBName: DefaultDBName,
		},
		driver: driver,
		enc:    DefaultEncoding,
		sets:   make(map[*Recordset]struct{}),
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	RegisterDefaultConnection(c)
	return c
}

func (c *Connection) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// LastError is the description of the last failure, or "" after a success.
func (c *Connection) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

// LastCmdStatus is the server's text for the last command: the command tag
// followed by any notices. It can be informational even on success.
func (c *Connection) LastCmdStatus() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cmdStatus
}

func (c *Connection) Encoding() Encoding {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enc
}

// SetEncoding sets the encoding handed to Recordsets opened afterwards.
func (c *Connection) SetEncoding(enc Encoding) {
	if enc == nil {
		enc = DefaultEncoding
	}
	c.mu.Lock()
	c.enc, c.encSet = enc, true
	c.mu.Unlock()
}

func (c *Connection) SQLLog() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sqlLog.String()
}

func (c *Connection) AppendSQLLog(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.appendSQLLogLocked(s)
}

func (c *Connection) appendSQLLogLocked(s string) {
	c.sqlLog.WriteString(s)
	if !strings.HasSuffix(s, "\n") {
		c.sqlLog.WriteByte('\n')
	}
}

// Connect opens the session with the stored credentials.
func (c *Connection) Connect() error {
	return c.ConnectContext(context.Background())
}

func (c *Connection) ConnectContext(ctx context.Context) error {
	if !c.busy.CompareAndSwap(false, true) {
		return c.fail(ErrBusy)
	}
	defer c.busy.Store(false)
	return c.connect(ctx)
}

func (c *Connection) connect(ctx context.Context) error {
	connString := c.MakeConnectionString()

	c.mu.Lock()
	old := c.sess
	c.sess, c.connected = nil, false
	c.mu.Unlock()
	if old != nil {
		if err := closeSession(old); err != nil {
			slog.Warn("pgsqlkit: closing previous session", "err", err)
		}
	}

	sess, err := c.driver.Connect(ctx, connString, c.onNotice)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		serr := &sessionError{kind: ErrConnection, err: err}
		c.lastError = errorText(serr)
		slog.Warn("pgsqlkit: connect failed", "host", c.Credentials.Host, "db", c.Credentials.DBName, "err", err)
		return serr
	}
	c.sess, c.connected = sess, true
	c.lastError = ""
	if !c.encSet {
		// follow the session's client_encoding unless the caller chose one
		if name := sess.ParameterStatus("client_encoding"); name != "" {
			if enc, err := LookupEncoding(name); err == nil {
				c.enc = enc
			}
		}
	}
	slog.Debug("pgsqlkit: connected", "host", c.Credentials.Host, "db", c.Credentials.DBName)
	return nil
}

// Reset tears the session down and connects again with the stored
// credentials.
func (c *Connection) Reset() error {
	return c.ResetContext(context.Background())
}

func (c *Connection) ResetContext(ctx context.Context) error {
	if !c.busy.CompareAndSwap(false, true) {
		return c.fail(ErrBusy)
	}
	defer c.busy.Store(false)
	slog.Debug("pgsqlkit: reset")
	return c.connect(ctx)
}

// Close waits for in-flight async work (which is cancelled), closes every
// Recordset still open and releases the session. Calling it again is a
// no-op.
func (c *Connection) Close() error {
	c.mu.Lock()
	c.closing++
	cancel := c.cancel
	c.mu.Unlock()
	cancel()
	c.async.Wait()

	c.mu.Lock()
	c.closing--
	sess := c.sess
	c.sess, c.connected = nil, false
	c.ctx, c.cancel = context.WithCancel(context.Background())
	sets := make([]*Recordset, 0, len(c.sets))
	for rs := range c.sets {
		sets = append(sets, rs)
	}
	c.mu.Unlock()

	var err error
	for _, rs := range sets {
		err = multierr.Append(err, rs.Close())
	}
	if sess != nil {
		err = multierr.Append(err, closeSession(sess))
		slog.Debug("pgsqlkit: connection closed")
	}
	return err
}

func closeSession(sess native.Session) error {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return sess.Close(ctx)
}

// ExecCommand runs a statement that returns no rows. params bind to $1, $2,
// ... and must match the placeholders in sql.
func (c *Connection) ExecCommand(sql string, params ...Param) error {
	return c.ExecCommandContext(context.Background(), sql, params...)
}

func (c *Connection) ExecCommandContext(ctx context.Context, sql string, params ...Param) error {
	if !c.busy.CompareAndSwap(false, true) {
		return c.fail(ErrBusy)
	}
	defer c.busy.Store(false)
	return c.execCommand(ctx, sql, params)
}

func (c *Connection) execCommand(ctx context.Context, sql string, params []Param) error {
	if err := checkParams(sql, params); err != nil {
		return c.fail(err)
	}
	res, err := c.exchange(ctx, sql, simpleOrParams(sql, params))
	if err != nil {
		return err
	}
	res.Clear()
	return nil
}

// Open runs a query and returns its rows as a Recordset, or nil and an error.
func (c *Connection) Open(sql string, params ...Param) (*Recordset, error) {
	return c.OpenContext(context.Background(), sql, params...)
}

func (c *Connection) OpenContext(ctx context.Context, sql string, params ...Param) (*Recordset, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return nil, c.fail(ErrBusy)
	}
	defer c.busy.Store(false)
	return c.open(ctx, sql, params)
}

func (c *Connection) open(ctx context.Context, sql string, params []Param) (*Recordset, error) {
	if err := checkParams(sql, params); err != nil {
		return nil, c.fail(err)
	}
	res, err := c.exchange(ctx, sql, simpleOrParams(sql, params))
	if err != nil {
		return nil, err
	}
	return c.track(res), nil
}

func (c *Connection) track(res native.Result) *Recordset {
	c.mu.Lock()
	defer c.mu.Unlock()
	rs := newRecordset(res, c.enc)
	rs.onClose = c.untrack
	c.sets[rs] = struct{}{}
	return rs
}

func (c *Connection) untrack(rs *Recordset) {
	c.mu.Lock()
	delete(c.sets, rs)
	c.mu.Unlock()
}

type sendFunc func(ctx context.Context, sess native.Session) (native.Result, error)

func simpleOrParams(sql string, params []Param) sendFunc {
	if len(params) == 0 {
		return func(ctx context.Context, sess native.Session) (native.Result, error) {
			return sess.Exec(ctx, sql)
		}
	}
	np := nativeParams(params)
	return func(ctx context.Context, sess native.Session) (native.Result, error) {
		return sess.ExecParams(ctx, sql, np)
	}
}

// exchange sends one request on the session and records the outcome in the
// side channel. Callers validate parameters first so that a mismatch never
// reaches the session.
func (c *Connection) exchange(ctx context.Context, sql string, send sendFunc) (native.Result, error) {
	c.mu.Lock()
	sess := c.sess
	if !c.connected || sess == nil {
		c.mu.Unlock()
		return nil, c.fail(ErrNotConnected)
	}
	c.notices = nil
	if c.LogSQL {
		c.appendSQLLogLocked(sql)
	}
	c.mu.Unlock()

	slog.Debug("pgsqlkit: exec", "sql", sql)
	res, err := send(ctx, sess)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		serr := &sessionError{kind: ErrCommand, err: err}
		if sess.IsClosed() {
			c.sess, c.connected = nil, false
			serr.kind = ErrConnection
			slog.Warn("pgsqlkit: session lost", "err", err)
		}
		msg := errorText(serr)
		c.lastError, c.cmdStatus = msg, msg
		return nil, serr
	}
	c.lastError = ""
	c.cmdStatus = strings.Join(append([]string{res.Status()}, c.notices...), "\n")
	return res, nil
}

func (c *Connection) onNotice(msg string) {
	c.mu.Lock()
	c.notices = append(c.notices, msg)
	c.mu.Unlock()
	slog.Info("pgsqlkit: server notice", "msg", msg)
}

// fail records err in the side channel and returns it.
func (c *Connection) fail(err error) error {
	c.mu.Lock()
	c.lastError = errorText(err)
	c.cmdStatus = ""
	c.mu.Unlock()
	return err
}

// ServerParameter returns a run-time parameter reported by the server
// (server_version, client_encoding, TimeZone...), or "" when not connected.
func (c *Connection) ServerParameter(key string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sess == nil {
		return ""
	}
	return c.sess.ParameterStatus(key)
}

// VersionString returns the server's version() text.
func (c *Connection) VersionString() (string, error) {
	rs, err := c.Open("SELECT version()")
	if err != nil {
		return "", err
	}
	defer func() { _ = rs.Close() }()

	f, err := rs.FieldByIndex(0)
	if err != nil {
		return "", err
	}
	v, err := f.AsString()
	if err != nil {
		return "", err
	}
	return v.V, nil
}
