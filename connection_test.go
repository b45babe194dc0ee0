package pgsqlkit

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/tuannm99/pgsqlkit/internal/native/nativemock"
)

// newTestConn builds an unconnected Connection on a scripted driver. The
// default-connection registry is cleared before and after.
func newTestConn(t *testing.T, d *nativemock.Driver) *Connection {
	t.Helper()

	ResetDefaultConnection()
	c := newConnection(d)
	t.Cleanup(func() {
		_ = c.Close()
		ResetDefaultConnection()
	})
	return c
}

func connectedConn(t *testing.T, d *nativemock.Driver) *Connection {
	t.Helper()

	c := newTestConn(t, d)
	require.NoError(t, c.Connect())
	return c
}

// peopleResult is id int4, name text with three rows; the last name is NULL.
func peopleResult() *nativemock.Result {
	return nativemock.NewResult("SELECT 3",
		[]nativemock.Field{
			{Name: "id", OID: pgtype.Int4OID, Size: 4},
			{Name: "name", OID: pgtype.TextOID, Size: -1},
		},
		nativemock.Row("1", "ann"),
		nativemock.Row("2", "bob"),
		nativemock.Row("3", nil),
	)
}

// answer returns a handler that serves res for every call.
func answer(res *nativemock.Result) nativemock.Handler {
	return func(context.Context, nativemock.Call) (*nativemock.Result, error) {
		return res, nil
	}
}

func TestConnection_ConnectUsesDefaults(t *testing.T) {
	d := &nativemock.Driver{}
	c := newTestConn(t, d)
	require.False(t, c.IsConnected())

	require.NoError(t, c.Connect())
	require.True(t, c.IsConnected())
	require.Empty(t, c.LastError())
	require.Equal(t, []string{"host=localhost port=5432 dbname=template1"}, d.ConnStrings())
}

func TestConnection_ConnectFailure(t *testing.T) {
	d := &nativemock.Driver{ConnectErr: errors.New("dial tcp 127.0.0.1:5432: connection refused")}
	c := newTestConn(t, d)

	err := c.Connect()
	require.ErrorIs(t, err, ErrConnection)
	require.False(t, c.IsConnected())
	require.Contains(t, c.LastError(), "connection refused")
}

func TestConnection_ConnectServerError(t *testing.T) {
	d := &nativemock.Driver{ConnectErr: &pgconn.PgError{
		Severity: "FATAL",
		Message:  `database "nope" does not exist`,
	}}
	c := newTestConn(t, d)

	err := c.Connect()
	require.ErrorIs(t, err, ErrConnection)

	var pgErr *pgconn.PgError
	require.ErrorAs(t, err, &pgErr)
	require.Equal(t, `FATAL: database "nope" does not exist`, c.LastError())
}

func TestDefaultConnection_FirstWins(t *testing.T) {
	ResetDefaultConnection()
	t.Cleanup(ResetDefaultConnection)

	require.Nil(t, DefaultConnection())

	a := newConnection(&nativemock.Driver{})
	b := newConnection(&nativemock.Driver{})
	require.Same(t, a, DefaultConnection())

	require.False(t, RegisterDefaultConnection(b))
	require.Same(t, a, DefaultConnection())

	ResetDefaultConnection()
	require.True(t, RegisterDefaultConnection(b))
	require.Same(t, b, DefaultConnection())
	require.False(t, RegisterDefaultConnection(nil))
}

func TestConnection_NotConnected(t *testing.T) {
	c := newTestConn(t, &nativemock.Driver{})

	err := c.ExecCommand("SELECT 1")
	require.ErrorIs(t, err, ErrNotConnected)
	require.ErrorIs(t, err, ErrState)
	require.NotEmpty(t, c.LastError())

	rs, err := c.Open("SELECT 1")
	require.ErrorIs(t, err, ErrNotConnected)
	require.Nil(t, rs)
}

func TestConnection_ParameterMismatchNeverReachesServer(t *testing.T) {
	d := &nativemock.Driver{}
	c := connectedConn(t, d)

	err := c.ExecCommand("INSERT INTO t VALUES ($1, $2)", Text("a"))
	require.ErrorIs(t, err, ErrParameterMismatch)
	require.Contains(t, c.LastError(), "declares 2, got 1")

	rs, err := c.Open("SELECT 1", Text("extra"))
	require.ErrorIs(t, err, ErrParameterMismatch)
	require.Nil(t, rs)

	require.Empty(t, d.Calls())
}

func TestConnection_ExecCommandProtocols(t *testing.T) {
	d := &nativemock.Driver{}
	c := connectedConn(t, d)

	require.NoError(t, c.ExecCommand("CREATE TABLE t (a text, b bytea)"))
	require.NoError(t, c.ExecCommand("INSERT INTO t VALUES ($1, $2)", Text("a"), Null()))
	require.NoError(t, c.ExecCommand("UPDATE t SET b = $1", Binary([]byte{0x00, 0xff})))

	calls := d.Calls()
	require.Len(t, calls, 3)

	require.Equal(t, "exec", calls[0].Op)
	require.Empty(t, calls[0].Params)

	require.Equal(t, "execParams", calls[1].Op)
	require.Len(t, calls[1].Params, 2)
	require.Equal(t, []byte("a"), calls[1].Params[0].Value)
	require.False(t, calls[1].Params[0].Binary)
	require.Nil(t, calls[1].Params[1].Value)

	require.True(t, calls[2].Params[0].Binary)
	require.Equal(t, []byte{0x00, 0xff}, calls[2].Params[0].Value)
}

func TestConnection_ExecCommandClearsResult(t *testing.T) {
	res := nativemock.NewResult("INSERT 0 1", nil)
	d := &nativemock.Driver{Handler: answer(res)}
	c := connectedConn(t, d)

	require.NoError(t, c.ExecCommand("INSERT INTO t VALUES (1)"))
	require.Equal(t, 1, res.Clears())
	require.Equal(t, "INSERT 0 1", c.LastCmdStatus())
}

func TestConnection_CommandStatusCarriesNotices(t *testing.T) {
	d := &nativemock.Driver{
		Handler: answer(nativemock.NewResult("DROP TABLE", nil)),
		Notices: []string{`NOTICE: table "t" does not exist, skipping`},
	}
	c := connectedConn(t, d)

	require.NoError(t, c.ExecCommand("DROP TABLE IF EXISTS t"))
	require.Empty(t, c.LastError())
	require.Equal(t, "DROP TABLE\nNOTICE: table \"t\" does not exist, skipping", c.LastCmdStatus())

	// notices do not pile up across commands
	require.NoError(t, c.ExecCommand("DROP TABLE IF EXISTS t"))
	require.Equal(t, "DROP TABLE\nNOTICE: table \"t\" does not exist, skipping", c.LastCmdStatus())
}

func TestConnection_CommandError(t *testing.T) {
	d := &nativemock.Driver{
		Handler: func(context.Context, nativemock.Call) (*nativemock.Result, error) {
			return nil, &pgconn.PgError{
				Severity: "ERROR",
				Message:  `relation "nope" does not exist`,
				Hint:     "Check the table name.",
			}
		},
	}
	c := connectedConn(t, d)

	rs, err := c.Open("SELECT * FROM nope")
	require.ErrorIs(t, err, ErrCommand)
	require.Nil(t, rs)
	require.Equal(t, "ERROR: relation \"nope\" does not exist\nHINT: Check the table name.", c.LastError())
	require.True(t, c.IsConnected())
}

func TestConnection_SessionLostAndReset(t *testing.T) {
	d := &nativemock.Driver{}
	c := connectedConn(t, d)

	d.Sessions()[0].Drop()

	err := c.ExecCommand("SELECT 1")
	require.ErrorIs(t, err, ErrConnection)
	require.ErrorIs(t, err, nativemock.ErrSessionClosed)
	require.False(t, c.IsConnected())

	require.ErrorIs(t, c.ExecCommand("SELECT 1"), ErrNotConnected)

	require.NoError(t, c.Reset())
	require.True(t, c.IsConnected())
	require.Len(t, d.Sessions(), 2)
	require.NoError(t, c.ExecCommand("SELECT 1"))
}

func TestConnection_ResetClosesPreviousSession(t *testing.T) {
	d := &nativemock.Driver{}
	c := connectedConn(t, d)

	require.NoError(t, c.Reset())
	sessions := d.Sessions()
	require.Len(t, sessions, 2)
	require.True(t, sessions[0].IsClosed())
	require.False(t, sessions[1].IsClosed())
}

func TestConnection_CloseReleasesRecordsets(t *testing.T) {
	res := peopleResult()
	d := &nativemock.Driver{Handler: answer(res)}
	c := connectedConn(t, d)

	rs, err := c.Open("SELECT id, name FROM people")
	require.NoError(t, err)
	require.True(t, rs.IsOpen())

	require.NoError(t, c.Close())
	require.False(t, c.IsConnected())
	require.False(t, rs.IsOpen())
	require.Equal(t, 1, res.Clears())
	require.True(t, d.Sessions()[0].IsClosed())

	// closing again releases nothing twice
	require.NoError(t, rs.Close())
	require.NoError(t, c.Close())
	require.Equal(t, 1, res.Clears())
}

func TestConnection_ClosedRecordsetIsUntracked(t *testing.T) {
	c := connectedConn(t, &nativemock.Driver{Handler: answer(peopleResult())})

	rs, err := c.Open("SELECT id, name FROM people")
	require.NoError(t, err)

	c.mu.Lock()
	require.Len(t, c.sets, 1)
	c.mu.Unlock()

	require.NoError(t, rs.Close())

	c.mu.Lock()
	require.Empty(t, c.sets)
	c.mu.Unlock()
}

func TestConnection_BusyRejectsSecondOperation(t *testing.T) {
	d := &nativemock.Driver{}
	c := connectedConn(t, d)

	c.busy.Store(true)
	require.ErrorIs(t, c.ExecCommand("SELECT 1"), ErrBusy)
	_, err := c.Open("SELECT 1")
	require.ErrorIs(t, err, ErrBusy)
	require.ErrorIs(t, c.Reset(), ErrBusy)
	require.Equal(t, ErrBusy.Error(), c.LastError())
	c.busy.Store(false)

	require.Empty(t, d.Calls())
	require.NoError(t, c.ExecCommand("SELECT 1"))
}

func TestConnection_SQLLog(t *testing.T) {
	c := connectedConn(t, &nativemock.Driver{})

	require.NoError(t, c.ExecCommand("SELECT 1"))
	require.Empty(t, c.SQLLog())

	c.LogSQL = true
	require.NoError(t, c.ExecCommand("SELECT 2"))
	c.AppendSQLLog("-- marker\n")
	require.NoError(t, c.ExecCommand("SELECT $1", Text("x")))

	require.Equal(t, "SELECT 2\n-- marker\nSELECT $1\n", c.SQLLog())
}

func TestConnection_EncodingFollowsSession(t *testing.T) {
	d := &nativemock.Driver{Status: map[string]string{"client_encoding": "LATIN1"}}

	c := connectedConn(t, d)
	require.Equal(t, Latin1, c.Encoding())
}

func TestConnection_ExplicitEncodingWins(t *testing.T) {
	d := &nativemock.Driver{Status: map[string]string{"client_encoding": "LATIN1"}}
	c := newTestConn(t, d)
	require.Equal(t, UTF8, c.Encoding())

	c.SetEncoding(MacRoman)
	require.NoError(t, c.Connect())
	require.Equal(t, MacRoman, c.Encoding())

	c.SetEncoding(nil)
	require.Equal(t, DefaultEncoding, c.Encoding())
}

func TestConnection_ServerParameter(t *testing.T) {
	c := newTestConn(t, &nativemock.Driver{})
	require.Empty(t, c.ServerParameter("server_version"))

	require.NoError(t, c.Connect())
	require.Equal(t, "16.2", c.ServerParameter("server_version"))
	require.Equal(t, "UTF8", c.ServerParameter("client_encoding"))
}

func TestConnection_VersionString(t *testing.T) {
	d := &nativemock.Driver{
		Handler: func(_ context.Context, call nativemock.Call) (*nativemock.Result, error) {
			require.Equal(t, "SELECT version()", call.SQL)
			return nativemock.NewResult("SELECT 1",
				[]nativemock.Field{{Name: "version", OID: pgtype.TextOID, Size: -1}},
				nativemock.Row("PostgreSQL 16.2 on x86_64-pc-linux-gnu"),
			), nil
		},
	}
	c := connectedConn(t, d)

	v, err := c.VersionString()
	require.NoError(t, err)
	require.Equal(t, "PostgreSQL 16.2 on x86_64-pc-linux-gnu", v)

	c.mu.Lock()
	require.Empty(t, c.sets)
	c.mu.Unlock()
}

func TestConnection_MakeConnectionString(t *testing.T) {
	c := newTestConn(t, &nativemock.Driver{})

	c.Credentials = Credentials{
		Host:     "db.example.com",
		Port:     "6543",
		DBName:   "app",
		User:     "bob",
		Password: `it's a \secret`,
		SSLMode:  "require",
	}
	require.Equal(t,
		`host=db.example.com port=6543 dbname=app user=bob password='it\'s a \\secret' sslmode=require`,
		c.MakeConnectionString())

	c.Credentials = Credentials{User: "ann"}
	require.Equal(t, "host=localhost port=5432 dbname=template1 user=ann", c.MakeConnectionString())

	c.ConnectionString = "postgres://ann@db/app"
	require.Equal(t, "postgres://ann@db/app", c.MakeConnectionString())
}
