package native

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
)

// PgDriver opens sessions through pgconn, the low-level pgx connection layer.
type PgDriver struct {
	// DialFunc replaces the network dialer when set.
	DialFunc pgconn.DialFunc
}

func (d PgDriver) Connect(ctx context.Context, connString string, onNotice NoticeHandler) (Session, error) {
	cfg, err := pgconn.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("native: parse connection string: %w", err)
	}
	if d.DialFunc != nil {
		cfg.DialFunc = d.DialFunc
	}
	if onNotice != nil {
		cfg.OnNotice = func(_ *pgconn.PgConn, n *pgconn.Notice) {
			onNotice(fmt.Sprintf("%s: %s", n.Severity, n.Message))
		}
	}

	conn, err := pgconn.ConnectConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &pgSession{conn: conn}, nil
}

type pgSession struct {
	conn *pgconn.PgConn
}

func (s *pgSession) Exec(ctx context.Context, sql string) (Result, error) {
	mrr := s.conn.Exec(ctx, sql)
	// an empty query string yields no results at all
	last := &pgResult{}
	for mrr.NextResult() {
		last = readResult(mrr.ResultReader())
	}
	if err := mrr.Close(); err != nil {
		return nil, err
	}
	return last, nil
}

func (s *pgSession) ExecParams(ctx context.Context, sql string, params []Param) (Result, error) {
	values, oids, formats := splitParams(params)
	r := readResult(s.conn.ExecParams(ctx, sql, values, oids, formats, nil))
	if r.err != nil {
		return nil, r.err
	}
	return r, nil
}

func (s *pgSession) Prepare(ctx context.Context, name, sql string) error {
	_, err := s.conn.Prepare(ctx, name, sql, nil)
	return err
}

func (s *pgSession) ExecPrepared(ctx context.Context, name string, params []Param) (Result, error) {
	values, _, formats := splitParams(params)
	r := readResult(s.conn.ExecPrepared(ctx, name, values, formats, nil))
	if r.err != nil {
		return nil, r.err
	}
	return r, nil
}

func (s *pgSession) IsBusy() bool { return s.conn.IsBusy() }

func (s *pgSession) IsClosed() bool { return s.conn.IsClosed() }

func (s *pgSession) ParameterStatus(key string) string { return s.conn.ParameterStatus(key) }

func (s *pgSession) Close(ctx context.Context) error { return s.conn.Close(ctx) }

// splitParams maps params onto the parallel slices ExecParams wants. Binary
// values are sent as bytea; text values leave the type to the server.
func splitParams(params []Param) ([][]byte, []uint32, []int16) {
	if len(params) == 0 {
		return nil, nil, nil
	}
	values := make([][]byte, len(params))
	oids := make([]uint32, len(params))
	formats := make([]int16, len(params))
	for i, p := range params {
		values[i] = p.Value
		if p.Binary {
			oids[i] = pgtype.ByteaOID
			formats[i] = pgtype.BinaryFormatCode
		} else {
			formats[i] = pgtype.TextFormatCode
		}
	}
	return values, oids, formats
}

type pgResult struct {
	tag    string
	fields []pgconn.FieldDescription
	rows   [][][]byte
	err    error
}

// readResult drains rr. Result.FieldDescriptions is only filled while rows
// arrive, so the columns come from the reader itself; a SELECT matching no
// rows still describes its columns. The reader reuses its description
// buffer, hence the copy.
func readResult(rr *pgconn.ResultReader) *pgResult {
	res := rr.Read()
	var fields []pgconn.FieldDescription
	if fds := rr.FieldDescriptions(); fds != nil {
		fields = make([]pgconn.FieldDescription, len(fds))
		copy(fields, fds)
	}
	return &pgResult{
		tag:    res.CommandTag.String(),
		fields: fields,
		rows:   res.Rows,
		err:    res.Err,
	}
}

func (r *pgResult) Status() string            { return r.tag }
func (r *pgResult) NumRows() int              { return len(r.rows) }
func (r *pgResult) NumFields() int            { return len(r.fields) }
func (r *pgResult) FieldName(col int) string  { return r.fields[col].Name }
func (r *pgResult) FieldType(col int) uint32  { return r.fields[col].DataTypeOID }
func (r *pgResult) FieldSize(col int) int     { return int(r.fields[col].DataTypeSize) }
func (r *pgResult) Value(row, col int) []byte { return r.rows[row][col] }
func (r *pgResult) IsNull(row, col int) bool  { return r.rows[row][col] == nil }

func (r *pgResult) Clear() {
	r.fields = nil
	r.rows = nil
}
