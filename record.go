package pgsqlkit

// Record is one row of a Recordset. It is created on every cursor move and is
// only valid while the cursor stays on its row and the Recordset is open.
type Record struct {
	rs  *Recordset
	row int
	gen uint64
	enc Encoding
}

// RowNumber is the 0-based row position.
func (r *Record) RowNumber() int { return r.row }

func (r *Record) Encoding() Encoding { return r.enc }

// WithEncoding returns a copy of r whose fields decode text with enc.
func (r *Record) WithEncoding(enc Encoding) *Record {
	cp := *r
	cp.enc = enc
	return &cp
}

func (r *Record) FieldByIndex(i int) (Field, error) {
	r.rs.mu.Lock()
	defer r.rs.mu.Unlock()
	if err := r.rs.checkGenLocked(r.gen); err != nil {
		return Field{}, err
	}
	return r.rs.fieldLocked(r, i)
}

// FieldByName looks the column up by exact name.
func (r *Record) FieldByName(name string) (Field, error) {
	r.rs.mu.Lock()
	defer r.rs.mu.Unlock()
	if err := r.rs.checkGenLocked(r.gen); err != nil {
		return Field{}, err
	}
	i, err := r.rs.columnIndexLocked(name)
	if err != nil {
		return Field{}, err
	}
	return r.rs.fieldLocked(r, i)
}
