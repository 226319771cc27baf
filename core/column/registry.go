package column

import "fmt"

// Registry is the ordered, immutable column set of one model. The implicit
// identity column always leads; registration order drives both DDL and
// response serialization order.
type Registry struct {
	columns []Column
	byName  map[string]Column
}

// NewRegistry builds a registry from the declared columns. The identity
// column is added implicitly; declaring a column named "id" is an error,
// as is a duplicate name.
func NewRegistry(cols ...Column) (*Registry, error) {
	r := &Registry{
		columns: make([]Column, 0, len(cols)+1),
		byName:  make(map[string]Column, len(cols)+1),
	}

	id := Identity()
	r.columns = append(r.columns, id)
	r.byName[id.Name()] = id

	for _, c := range cols {
		if c.Name() == IdentityName {
			return nil, fmt.Errorf("column %q is implicit and cannot be declared", IdentityName)
		}
		if _, exists := r.byName[c.Name()]; exists {
			return nil, fmt.Errorf("duplicate column %q", c.Name())
		}
		r.columns = append(r.columns, c)
		r.byName[c.Name()] = c
	}

	return r, nil
}

// MustRegistry is NewRegistry for static declarations that cannot fail at
// runtime, such as a model's columns_configuration.
func MustRegistry(cols ...Column) *Registry {
	r, err := NewRegistry(cols...)
	if err != nil {
		panic(err)
	}
	return r
}

// Columns returns the columns in registration order, identity first.
func (r *Registry) Columns() []Column {
	out := make([]Column, len(r.columns))
	copy(out, r.columns)
	return out
}

// Get returns the column with the given name.
func (r *Registry) Get(name string) (Column, bool) {
	c, ok := r.byName[name]
	return c, ok
}

// Has reports whether a column with the given name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Names returns the column names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.columns))
	for i, c := range r.columns {
		names[i] = c.Name()
	}
	return names
}

// Len returns the number of columns, including the identity column.
func (r *Registry) Len() int {
	return len(r.columns)
}
