package pgsqlkit

// Dict is a record projected to name → decoded value, keeping column order.
// NULL columns map to nil.
type Dict struct {
	keys []string
	vals []any
}

func (d Dict) Len() int { return len(d.keys) }

// Keys returns the column names in column order.
func (d Dict) Keys() []string { return append([]string(nil), d.keys...) }

// Get returns the value of the first column named name.
func (d Dict) Get(name string) (any, bool) {
	for i, k := range d.keys {
		if k == name {
			return d.vals[i], true
		}
	}
	return nil, false
}

// At returns the i-th entry.
func (d Dict) At(i int) (string, any) { return d.keys[i], d.vals[i] }

// Map copies the entries into a map. Later duplicate names win.
func (d Dict) Map() map[string]any {
	m := make(map[string]any, len(d.keys))
	for i, k := range d.keys {
		m[k] = d.vals[i]
	}
	return m
}
