// Package column defines the ordered, immutable column metadata that
// describes a model's fields. Each column kind is polymorphic over a small
// capability set: input validation, search-value validation, pre/post save
// lifecycle hooks, and serialization. Custom kinds embed a built-in kind
// and override selectively; Base supplies no-op defaults.
package column

import (
	"context"
)

// IdentityName is the implicit leading identity column of every model.
const IdentityName = "id"

// Record is the read-only view of a model instance that lifecycle hooks
// receive. For a create, Exists reports false and Get returns nil.
type Record interface {
	// Get returns the persisted value of a field, or nil.
	Get(name string) any

	// Exists reports whether the record is already persisted.
	Exists() bool
}

// Column describes one model field plus its validation and lifecycle
// behavior. Columns are declared once per model and never mutated after
// registration; registration order determines serialization order.
type Column interface {
	// Name is the field name, unique within a model.
	Name() string

	// Kind identifies the column type (string, integer, email, ...).
	Kind() string

	// Writeable reports whether clients may supply a value for this column.
	Writeable() bool

	// Unique reports whether values must be unique across the model.
	Unique() bool

	// Requirements returns the ordered input requirements evaluated on write.
	Requirements() []Requirement

	// InputError validates a client-supplied value. Empty string means valid.
	InputError(value any) string

	// CheckSearchValue validates a search filter value. Empty string means valid.
	CheckSearchValue(value any) string

	// PreSave runs before the backend commit. It receives the merged
	// new+existing field data and may enrich or replace any field in it,
	// including fields the column doesn't own. Hooks run in registration
	// order; later hooks see earlier hooks' mutations.
	PreSave(ctx context.Context, data map[string]any, r Record) (map[string]any, error)

	// PostSave runs after the backend commit with the final row id, for
	// fire-and-forget side effects. It must not mutate the persisted row.
	PostSave(ctx context.Context, data map[string]any, r Record, id int64) error

	// ToJSON converts a stored value to its serialized form.
	ToJSON(value any) any

	// SQLType returns the SQLite column type for DDL generation.
	SQLType() string
}

// Option configures a column at declaration time.
type Option func(*Base)

// NotWriteable marks the column as engine-managed: client input for it is
// never accepted.
func NotWriteable() Option {
	return func(b *Base) { b.writeable = false }
}

// WithUnique adds a uniqueness constraint on the column's values.
func WithUnique() Option {
	return func(b *Base) { b.unique = true }
}

// WithRequirements appends input requirements, evaluated in order on write.
func WithRequirements(reqs ...Requirement) Option {
	return func(b *Base) { b.requirements = append(b.requirements, reqs...) }
}

// Base carries the declaration shared by every column kind and supplies
// no-op defaults for the capability set.
type Base struct {
	name         string
	kind         string
	writeable    bool
	unique       bool
	requirements []Requirement
}

// NewBase builds the embedded base for a column kind. Exposed so external
// packages can define custom kinds without reimplementing the defaults.
func NewBase(name, kind string, opts ...Option) Base {
	b := Base{name: name, kind: kind, writeable: true}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// Name returns the field name.
func (b *Base) Name() string { return b.name }

// Kind returns the column kind.
func (b *Base) Kind() string { return b.kind }

// Writeable reports whether clients may write this column.
func (b *Base) Writeable() bool { return b.writeable }

// Unique reports whether the column carries a uniqueness constraint.
func (b *Base) Unique() bool { return b.unique }

// Requirements returns the declared input requirements.
func (b *Base) Requirements() []Requirement { return b.requirements }

// InputError accepts any value by default.
func (b *Base) InputError(value any) string { return "" }

// CheckSearchValue accepts any value by default.
func (b *Base) CheckSearchValue(value any) string { return "" }

// PreSave returns the data unchanged by default.
func (b *Base) PreSave(ctx context.Context, data map[string]any, r Record) (map[string]any, error) {
	return data, nil
}

// PostSave does nothing by default.
func (b *Base) PostSave(ctx context.Context, data map[string]any, r Record, id int64) error {
	return nil
}

// ToJSON passes the stored value through unchanged by default.
func (b *Base) ToJSON(value any) any { return value }

// SQLType defaults to TEXT.
func (b *Base) SQLType() string { return "TEXT" }
