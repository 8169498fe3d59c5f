package domain

// Column is one named value of a record, in table column order.
type Column struct {
	Name  string
	Value any
}

// Record is anything the store can upsert: a table, the natural key columns,
// and the ordered column values (key columns included).
type Record interface {
	Table() string
	ConflictKey() []string
	Columns() []Column
}

// KeyValues returns the values of r's natural key columns, in key order.
func KeyValues(r Record) []any {
	cols := r.Columns()
	byName := make(map[string]any, len(cols))
	for _, c := range cols {
		byName[c.Name] = c.Value
	}
	key := r.ConflictKey()
	out := make([]any, len(key))
	for i, k := range key {
		out[i] = byName[k]
	}
	return out
}

// Records converts a typed slice to []Record.
func Records[T Record](in []T) []Record {
	out := make([]Record, len(in))
	for i := range in {
		out[i] = in[i]
	}
	return out
}
