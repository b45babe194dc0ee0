package pgsqlkit

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/tuannm99/pgsqlkit/internal/native"
)

// Recordset is a cursor over the rows of one query. It owns the native
// result until Close.
//
// A new Recordset sits on row 0, or at EOF when the query returned no rows.
// Moving past either end sets EOF; moving back onto a row clears it. The
// Recordset's FieldByIndex/FieldByName are shortcuts for the same calls on
// Current(), so both paths always see the same row.
type Recordset struct {
	mu sync.Mutex

	res      native.Result
	status   string
	columns  []Column
	byName   map[string][]int
	rowCount int

	pos  int
	eof  bool
	open bool
	// gen is bumped on every cursor move and on Close; Records and Fields
	// carry the gen they were made under.
	gen     uint64
	current *Record
	enc     Encoding

	onClose func(*Recordset)
}

func newRecordset(res native.Result, enc Encoding) *Recordset {
	cols := discoverColumns(res)
	byName := make(map[string][]int, len(cols))
	for _, c := range cols {
		byName[c.name] = append(byName[c.name], c.index)
	}

	rs := &Recordset{
		res:      res,
		status:   res.Status(),
		columns:  cols,
		byName:   byName,
		rowCount: res.NumRows(),
		open:     true,
		enc:      enc,
	}
	rs.moveLocked(0)
	return rs
}

// Columns returns the column list captured when the query ran.
func (rs *Recordset) Columns() ([]Column, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if !rs.open {
		return nil, ErrRecordsetClosed
	}
	return append([]Column(nil), rs.columns...), nil
}

func (rs *Recordset) RecordCount() (int, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if !rs.open {
		return 0, ErrRecordsetClosed
	}
	return rs.rowCount, nil
}

// Status is the command tag of the statement that produced the rows.
func (rs *Recordset) Status() string { return rs.status }

func (rs *Recordset) IsEOF() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.eof
}

func (rs *Recordset) IsOpen() bool {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.open
}

func (rs *Recordset) Encoding() Encoding {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.enc
}

// SetEncoding changes the encoding of Records produced from now on,
// including the one Current returns next. Records already handed out keep
// the encoding they were made with.
func (rs *Recordset) SetEncoding(enc Encoding) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.enc = enc
	if rs.current != nil {
		rs.current = rs.current.WithEncoding(enc)
	}
}

// Current returns the Record under the cursor, or nil at EOF.
func (rs *Recordset) Current() (*Record, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if !rs.open {
		return nil, ErrRecordsetClosed
	}
	return rs.current, nil
}

// MoveFirst, MovePrevious, MoveNext and MoveLast return the Record at the new
// position, or nil when the move left the rows and set EOF.
func (rs *Recordset) MoveFirst() (*Record, error) {
	return rs.move(func(int) int { return 0 })
}

func (rs *Recordset) MovePrevious() (*Record, error) {
	return rs.move(func(pos int) int { return pos - 1 })
}

func (rs *Recordset) MoveNext() (*Record, error) {
	return rs.move(func(pos int) int { return pos + 1 })
}

func (rs *Recordset) MoveLast() (*Record, error) {
	return rs.move(func(int) int { return rs.rowCount - 1 })
}

func (rs *Recordset) move(to func(pos int) int) (*Record, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if !rs.open {
		return nil, ErrRecordsetClosed
	}
	return rs.moveLocked(to(rs.pos)), nil
}

func (rs *Recordset) moveLocked(pos int) *Record {
	rs.gen++
	switch {
	case pos < 0:
		rs.pos, rs.eof, rs.current = -1, true, nil
	case pos >= rs.rowCount:
		rs.pos, rs.eof, rs.current = rs.rowCount, true, nil
	default:
		rs.pos, rs.eof = pos, false
		rs.current = &Record{rs: rs, row: pos, gen: rs.gen, enc: rs.enc}
	}
	return rs.current
}

// FieldByIndex addresses a field of the current record.
func (rs *Recordset) FieldByIndex(i int) (Field, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if err := rs.currentLocked(); err != nil {
		return Field{}, err
	}
	return rs.fieldLocked(rs.current, i)
}

// FieldByName addresses a field of the current record by exact column name.
func (rs *Recordset) FieldByName(name string) (Field, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if err := rs.currentLocked(); err != nil {
		return Field{}, err
	}
	i, err := rs.columnIndexLocked(name)
	if err != nil {
		return Field{}, err
	}
	return rs.fieldLocked(rs.current, i)
}

// DictionaryFromRecord decodes the current record into a Dict with one entry
// per column, in column order.
func (rs *Recordset) DictionaryFromRecord() (Dict, error) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if err := rs.currentLocked(); err != nil {
		return Dict{}, err
	}

	d := Dict{
		keys: make([]string, len(rs.columns)),
		vals: make([]any, len(rs.columns)),
	}
	for i, col := range rs.columns {
		d.keys[i] = col.name
		if rs.res.IsNull(rs.pos, i) {
			continue
		}
		v, err := decodeValue(rs.res.Value(rs.pos, i), col, rs.current.enc)
		if err != nil {
			return Dict{}, fmt.Errorf("column %q: %w", col.name, err)
		}
		d.vals[i] = v
	}
	return d, nil
}

// Close releases the native result. Calling it again is a no-op.
func (rs *Recordset) Close() error {
	rs.mu.Lock()
	if !rs.open {
		rs.mu.Unlock()
		return nil
	}
	rs.open = false
	rs.gen++
	rs.current = nil
	rs.eof = true
	rs.res.Clear()
	onClose := rs.onClose
	rs.mu.Unlock()

	if onClose != nil {
		onClose(rs)
	}
	slog.Debug("pgsqlkit: recordset closed", "status", rs.status, "rows", rs.rowCount)
	return nil
}

func (rs *Recordset) currentLocked() error {
	if !rs.open {
		return ErrRecordsetClosed
	}
	if rs.eof || rs.current == nil {
		return fmt.Errorf("%w: recordset is at EOF", ErrBounds)
	}
	return nil
}

func (rs *Recordset) checkGen(gen uint64) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.checkGenLocked(gen)
}

func (rs *Recordset) checkGenLocked(gen uint64) error {
	if !rs.open {
		return ErrRecordsetClosed
	}
	if gen != rs.gen {
		return ErrStaleRecord
	}
	return nil
}

func (rs *Recordset) columnIndexLocked(name string) (int, error) {
	idx := rs.byName[name]
	switch len(idx) {
	case 0:
		return 0, fmt.Errorf("%w: %q", ErrColumnNotFound, name)
	case 1:
		return idx[0], nil
	default:
		return 0, fmt.Errorf("%w: %q matches %d columns", ErrAmbiguousColumn, name, len(idx))
	}
}

func (rs *Recordset) fieldLocked(r *Record, i int) (Field, error) {
	if i < 0 || i >= len(rs.columns) {
		return Field{}, fmt.Errorf("%w: column index %d (have %d)", ErrBounds, i, len(rs.columns))
	}
	return Field{
		col:   rs.columns[i],
		raw:   rs.res.Value(r.row, i),
		null:  rs.res.IsNull(r.row, i),
		enc:   r.enc,
		owner: rs,
		gen:   r.gen,
	}, nil
}
