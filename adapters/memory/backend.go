// Package memory provides an in-memory Backend implementation. It exists
// so tests and small deployments can substitute for the SQLite backend
// without any observable behavior drift.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/artpar/declarest/core/backend"
	"github.com/artpar/declarest/core/column"
)

// Backend keeps all records in process memory, guarded by a single lock.
type Backend struct {
	mu     sync.RWMutex
	tables map[string]*table
}

type table struct {
	cols   *column.Registry
	rows   map[int64]map[string]any
	nextID int64
}

// New creates an empty in-memory backend.
func New() *Backend {
	return &Backend{tables: make(map[string]*table)}
}

// CreateTable registers a table and its column registry.
func (b *Backend) CreateTable(ctx context.Context, name string, cols *column.Registry) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.tables[name]; exists {
		return nil
	}
	b.tables[name] = &table{cols: cols, rows: make(map[int64]map[string]any)}
	return nil
}

// Create inserts a new record and returns its allocated id.
func (b *Backend) Create(ctx context.Context, name string, data map[string]any) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, err := b.table(name)
	if err != nil {
		return 0, err
	}
	if err := t.checkUnique(name, data, 0); err != nil {
		return 0, err
	}

	t.nextID++
	id := t.nextID

	row := copyRow(data)
	delete(row, column.IdentityName)
	row[column.IdentityName] = id
	t.rows[id] = row

	return id, nil
}

// Read returns a copy of the record with the given id.
func (b *Backend) Read(ctx context.Context, name string, id int64) (map[string]any, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	t, err := b.table(name)
	if err != nil {
		return nil, err
	}
	row, ok := t.rows[id]
	if !ok {
		return nil, backend.ErrNotFound
	}
	return copyRow(row), nil
}

// Update applies data to an existing record and returns the updated row.
func (b *Backend) Update(ctx context.Context, name string, id int64, data map[string]any) (map[string]any, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, err := b.table(name)
	if err != nil {
		return nil, err
	}
	row, ok := t.rows[id]
	if !ok {
		return nil, backend.ErrNotFound
	}
	if err := t.checkUnique(name, data, id); err != nil {
		return nil, err
	}

	for k, v := range data {
		if k == column.IdentityName {
			continue
		}
		row[k] = v
	}
	return copyRow(row), nil
}

// Delete removes a record, reporting whether it existed.
func (b *Backend) Delete(ctx context.Context, name string, id int64) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, err := b.table(name)
	if err != nil {
		return false, err
	}
	if _, ok := t.rows[id]; !ok {
		return false, nil
	}
	delete(t.rows, id)
	return true, nil
}

// Query returns matching rows plus the total match count.
func (b *Backend) Query(ctx context.Context, name string, q backend.Query) ([]map[string]any, int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	t, err := b.table(name)
	if err != nil {
		return nil, 0, err
	}

	var matched []map[string]any
	for _, row := range t.rows {
		if rowMatches(row, q.Filters) {
			matched = append(matched, row)
		}
	}
	total := int64(len(matched))

	sortColumn := q.SortColumn
	if sortColumn == "" {
		sortColumn = column.IdentityName
	}
	sort.SliceStable(matched, func(i, j int) bool {
		c := compareValues(matched[i][sortColumn], matched[j][sortColumn])
		if q.SortDesc {
			c = -c
		}
		if c != 0 {
			return c < 0
		}
		// Ties broken by identity ascending for determinism.
		return compareValues(matched[i][column.IdentityName], matched[j][column.IdentityName]) < 0
	})

	start := q.Start
	if start < 0 {
		start = 0
	}
	if start >= len(matched) {
		return []map[string]any{}, total, nil
	}
	end := len(matched)
	if q.Limit > 0 && start+q.Limit < end {
		end = start + q.Limit
	}

	out := make([]map[string]any, 0, end-start)
	for _, row := range matched[start:end] {
		out = append(out, copyRow(row))
	}
	return out, total, nil
}

// Close is a no-op for the in-memory backend.
func (b *Backend) Close() error { return nil }

var _ backend.Backend = (*Backend)(nil)

func (b *Backend) table(name string) (*table, error) {
	t, ok := b.tables[name]
	if !ok {
		return nil, fmt.Errorf("table %q not registered", name)
	}
	return t, nil
}

// checkUnique enforces uniqueness constraints. self is excluded so updates
// can rewrite a row with its own values.
func (t *table) checkUnique(name string, data map[string]any, self int64) error {
	for _, c := range t.cols.Columns() {
		if !c.Unique() {
			continue
		}
		value, ok := data[c.Name()]
		if !ok || value == nil {
			continue
		}
		for id, row := range t.rows {
			if id == self {
				continue
			}
			if valuesEqual(row[c.Name()], value) {
				return &backend.ConstraintError{Table: name, Column: c.Name()}
			}
		}
	}
	return nil
}

func copyRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}

func rowMatches(row map[string]any, filters map[string]any) bool {
	for k, want := range filters {
		if !valuesEqual(row[k], want) {
			return false
		}
	}
	return true
}

// valuesEqual compares loosely across the numeric forms JSON decoding and
// storage hand back.
func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if an, aok := asFloat(a); aok {
		if bn, bok := asFloat(b); bok {
			return an == bn
		}
		return false
	}
	if at, aok := a.(time.Time); aok {
		if bt, bok := b.(time.Time); bok {
			return at.Equal(bt)
		}
		return false
	}
	return a == b
}

// compareValues orders the value types the engine stores: nil first, then
// numbers, times, and strings.
func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	if an, aok := asFloat(a); aok {
		if bn, bok := asFloat(b); bok {
			switch {
			case an < bn:
				return -1
			case an > bn:
				return 1
			default:
				return 0
			}
		}
	}
	if at, aok := a.(time.Time); aok {
		if bt, bok := b.(time.Time); bok {
			switch {
			case at.Before(bt):
				return -1
			case at.After(bt):
				return 1
			default:
				return 0
			}
		}
	}
	as := fmt.Sprint(a)
	bs := fmt.Sprint(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
