// Package backend defines the uniform storage contract every backend
// implementation satisfies. The in-memory variant must be functionally
// indistinguishable from the persistent variant under this contract so
// tests can substitute it without altering observable handler behavior.
package backend

import (
	"context"
	"errors"
	"fmt"

	"github.com/artpar/declarest/core/column"
)

// ErrNotFound is returned when no record matches the requested id.
var ErrNotFound = errors.New("record not found")

// ConstraintError reports a broken uniqueness or kind-level constraint.
type ConstraintError struct {
	Table  string
	Column string
}

func (e *ConstraintError) Error() string {
	if e.Column != "" {
		return fmt.Sprintf("constraint violation on %s.%s", e.Table, e.Column)
	}
	return fmt.Sprintf("constraint violation on %s", e.Table)
}

// Query configures a list/search operation.
type Query struct {
	// Filters are column-value equality pairs. Callers restrict keys to
	// searchable columns before building a Query.
	Filters map[string]any

	// SortColumn orders the result set. Ties are always broken by id
	// ascending for determinism.
	SortColumn string

	// SortDesc sorts in descending order.
	SortDesc bool

	// Start is the offset into the matching rows.
	Start int

	// Limit is the maximum number of rows to return.
	Limit int
}

// Backend abstracts persistence for models. All operations are keyed by a
// model's registered table identity plus an integer primary key. A Backend
// may be shared across requests and must then be safe for concurrent use.
type Backend interface {
	// CreateTable prepares storage for a table described by its column
	// registry. Idempotent.
	CreateTable(ctx context.Context, table string, cols *column.Registry) error

	// Create inserts a new record and returns its allocated id.
	Create(ctx context.Context, table string, data map[string]any) (int64, error)

	// Read returns the record with the given id, or ErrNotFound.
	Read(ctx context.Context, table string, id int64) (map[string]any, error)

	// Update applies data to an existing record and returns the full
	// updated row, or ErrNotFound.
	Update(ctx context.Context, table string, id int64, data map[string]any) (map[string]any, error)

	// Delete removes a record, reporting whether it existed.
	Delete(ctx context.Context, table string, id int64) (bool, error)

	// Query returns matching rows plus the total match count. A Start at
	// or beyond the total yields an empty row set with an accurate count,
	// never an error.
	Query(ctx context.Context, table string, q Query) ([]map[string]any, int64, error)

	// Close releases backend resources.
	Close() error
}
