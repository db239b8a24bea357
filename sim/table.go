package sim

import (
	"github.com/pkg/errors"
)

// Table is a named, ordered collection of equal-length float64 columns
// keyed by a stable int64 row identifier. Steps may add or replace
// columns but never mutate identifiers.
type Table struct {
	Name string
	ids  []int64
	cols map[string][]float64
	// order preserves column insertion order so snapshots and writers
	// see a stable layout.
	order []string
}

// NewTable creates a table over the given row identifiers. The id slice
// is copied; callers keep ownership of their argument.
func NewTable(name string, ids []int64) *Table {
	return &Table{
		Name: name,
		ids:  append([]int64(nil), ids...),
		cols: make(map[string][]float64),
	}
}

// Len returns the row count.
func (t *Table) Len() int { return len(t.ids) }

// Width returns the column count, excluding the id column.
func (t *Table) Width() int { return len(t.order) }

// IDs returns the row identifiers. The returned slice is shared; do
// not mutate.
func (t *Table) IDs() []int64 { return t.ids }

// ColumnNames returns column names in insertion order.
func (t *Table) ColumnNames() []string {
	return append([]string(nil), t.order...)
}

// AddColumn adds or replaces a column. The values slice is copied.
func (t *Table) AddColumn(name string, values []float64) error {
	if len(values) != len(t.ids) {
		return errors.Errorf("table %s: column %s has %d values, want %d",
			t.Name, name, len(values), len(t.ids))
	}
	if _, exists := t.cols[name]; !exists {
		t.order = append(t.order, name)
	}
	t.cols[name] = append([]float64(nil), values...)
	return nil
}

// Column returns a column's values. The returned slice is shared; do
// not mutate.
func (t *Table) Column(name string) ([]float64, bool) {
	c, ok := t.cols[name]
	return c, ok
}

// HasColumn reports whether the column exists.
func (t *Table) HasColumn(name string) bool {
	_, ok := t.cols[name]
	return ok
}

// RowIndex returns a map from row id to row position.
func (t *Table) RowIndex() map[int64]int {
	idx := make(map[int64]int, len(t.ids))
	for i, id := range t.ids {
		idx[id] = i
	}
	return idx
}

// Take builds a new table containing the given row positions, in the
// given order. Row ids may repeat (interaction cross products rely on
// this).
func (t *Table) Take(positions []int) *Table {
	ids := make([]int64, len(positions))
	for i, p := range positions {
		ids[i] = t.ids[p]
	}
	out := NewTable(t.Name, ids)
	for _, name := range t.order {
		src := t.cols[name]
		vals := make([]float64, len(positions))
		for i, p := range positions {
			vals[i] = src[p]
		}
		out.cols[name] = vals
		out.order = append(out.order, name)
	}
	return out
}

// Slice returns a deep copy of rows [lo, hi).
func (t *Table) Slice(lo, hi int) *Table {
	out := NewTable(t.Name, t.ids[lo:hi])
	for _, name := range t.order {
		out.cols[name] = append([]float64(nil), t.cols[name][lo:hi]...)
		out.order = append(out.order, name)
	}
	return out
}

// Clone returns a deep copy. Checkpoint snapshots depend on clones
// sharing nothing with the live table.
func (t *Table) Clone() *Table {
	out := NewTable(t.Name, t.ids)
	for _, name := range t.order {
		out.cols[name] = append([]float64(nil), t.cols[name]...)
		out.order = append(out.order, name)
	}
	return out
}

// Equal reports whether two tables have identical ids, column layout,
// and values. Used by snapshot and resume tests.
func (t *Table) Equal(other *Table) bool {
	if t.Len() != other.Len() || len(t.order) != len(other.order) {
		return false
	}
	for i := range t.ids {
		if t.ids[i] != other.ids[i] {
			return false
		}
	}
	for i, name := range t.order {
		if other.order[i] != name {
			return false
		}
		a, b := t.cols[name], other.cols[name]
		for j := range a {
			if a[j] != b[j] {
				return false
			}
		}
	}
	return true
}
