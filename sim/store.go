package sim

import (
	"github.com/pkg/errors"
)

// TableStore is the process-wide mapping from table name to Table. It
// is created empty at pipeline start, populated by the initialize
// step, and mutated in place by each subsequent step. The pipeline
// owns it exclusively between steps; no other component retains a
// reference across step boundaries.
type TableStore struct {
	tables map[string]*Table
	order  []string
}

// NewTableStore creates an empty store.
func NewTableStore() *TableStore {
	return &TableStore{tables: make(map[string]*Table)}
}

// Replace adds a table or replaces an existing one under its name.
func (s *TableStore) Replace(t *Table) {
	if _, exists := s.tables[t.Name]; !exists {
		s.order = append(s.order, t.Name)
	}
	s.tables[t.Name] = t
}

// Get returns the named table.
func (s *TableStore) Get(name string) (*Table, error) {
	t, ok := s.tables[name]
	if !ok {
		return nil, errors.Wrap(ErrUnknownTable, name)
	}
	return t, nil
}

// Drop removes the named table. Dropping an absent table is a no-op;
// the two-phase location models drop their sample table when done.
func (s *TableStore) Drop(name string) {
	if _, ok := s.tables[name]; !ok {
		return
	}
	delete(s.tables, name)
	for i, n := range s.order {
		if n == name {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
}

// Names returns table names in insertion order.
func (s *TableStore) Names() []string {
	return append([]string(nil), s.order...)
}

// Clone returns a deep snapshot of every table.
func (s *TableStore) Clone() *TableStore {
	out := NewTableStore()
	for _, name := range s.order {
		out.Replace(s.tables[name].Clone())
	}
	return out
}

// Equal reports whether two stores hold identical tables in identical
// order.
func (s *TableStore) Equal(other *TableStore) bool {
	if len(s.order) != len(other.order) {
		return false
	}
	for i, name := range s.order {
		if other.order[i] != name {
			return false
		}
		if !s.tables[name].Equal(other.tables[name]) {
			return false
		}
	}
	return true
}
