// Package model provides the active-record style layer between handlers
// and backends. A Models value is the gateway to one table; a Model is a
// single record flowing through the column lifecycle on save.
package model

import (
	"context"
	"fmt"

	"github.com/artpar/declarest/core/backend"
	"github.com/artpar/declarest/core/column"
)

// Models is the query gateway for one table. It pairs a backend with the
// table's column registry and hydrates Model instances from rows.
type Models struct {
	name    string
	backend backend.Backend
	columns *column.Registry
}

// NewModels builds the gateway for a table.
func NewModels(name string, be backend.Backend, cols *column.Registry) *Models {
	return &Models{name: name, backend: be, columns: cols}
}

// Name returns the table name.
func (m *Models) Name() string { return m.name }

// Columns returns the table's column registry.
func (m *Models) Columns() *column.Registry { return m.columns }

// CreateTable prepares backend storage for this table.
func (m *Models) CreateTable(ctx context.Context) error {
	return m.backend.CreateTable(ctx, m.name, m.columns)
}

// Blank returns an unsaved model with no data.
func (m *Models) Blank() *Model {
	return &Model{models: m, data: map[string]any{}}
}

// Find loads the record with the given id, or backend.ErrNotFound.
func (m *Models) Find(ctx context.Context, id int64) (*Model, error) {
	row, err := m.backend.Read(ctx, m.name, id)
	if err != nil {
		return nil, err
	}
	return &Model{models: m, data: row, exists: true}, nil
}

// Query returns matching models plus the total match count.
func (m *Models) Query(ctx context.Context, q backend.Query) ([]*Model, int64, error) {
	rows, total, err := m.backend.Query(ctx, m.name, q)
	if err != nil {
		return nil, 0, err
	}
	models := make([]*Model, 0, len(rows))
	for _, row := range rows {
		models = append(models, &Model{models: m, data: row, exists: true})
	}
	return models, total, nil
}

// Model is one record. Zero or one rows in the backend correspond to it
// depending on Exists.
type Model struct {
	models *Models
	data   map[string]any
	exists bool
}

// Get returns the persisted value of a field, or nil.
func (m *Model) Get(name string) any { return m.data[name] }

// Exists reports whether the record is persisted.
func (m *Model) Exists() bool { return m.exists }

// ID returns the record's identity, or 0 if unsaved.
func (m *Model) ID() int64 {
	id, _ := asInt64(m.data[column.IdentityName])
	return id
}

// Data returns a copy of the record's fields.
func (m *Model) Data() map[string]any {
	out := make(map[string]any, len(m.data))
	for k, v := range m.data {
		out[k] = v
	}
	return out
}

// Columns returns the column registry of the owning table.
func (m *Model) Columns() *column.Registry { return m.models.columns }

// Save persists incoming data through the full column lifecycle: merge
// over existing fields, run every column's PreSave in registration order,
// commit, refresh from the committed row, then run every PostSave.
// Lifecycle hooks always fire, even when incoming changes nothing.
func (m *Model) Save(ctx context.Context, incoming map[string]any) error {
	merged := make(map[string]any, len(m.data)+len(incoming))
	for k, v := range m.data {
		merged[k] = v
	}
	for k, v := range incoming {
		if k == column.IdentityName {
			continue
		}
		merged[k] = v
	}

	before := m.snapshot()
	var err error
	for _, c := range m.models.columns.Columns() {
		merged, err = c.PreSave(ctx, merged, before)
		if err != nil {
			return fmt.Errorf("pre-save %s.%s: %w", m.models.name, c.Name(), err)
		}
	}

	var row map[string]any
	var id int64
	if m.exists {
		id = m.ID()
		row, err = m.models.backend.Update(ctx, m.models.name, id, merged)
		if err != nil {
			return err
		}
	} else {
		id, err = m.models.backend.Create(ctx, m.models.name, merged)
		if err != nil {
			return err
		}
		row, err = m.models.backend.Read(ctx, m.models.name, id)
		if err != nil {
			return err
		}
	}

	m.data = row
	m.exists = true

	for _, c := range m.models.columns.Columns() {
		if err := c.PostSave(ctx, row, before, id); err != nil {
			return fmt.Errorf("post-save %s.%s: %w", m.models.name, c.Name(), err)
		}
	}
	return nil
}

// Delete removes the record. Deleting an unsaved or already-deleted model
// returns backend.ErrNotFound.
func (m *Model) Delete(ctx context.Context) error {
	if !m.exists {
		return backend.ErrNotFound
	}
	existed, err := m.models.backend.Delete(ctx, m.models.name, m.ID())
	if err != nil {
		return err
	}
	if !existed {
		return backend.ErrNotFound
	}
	m.exists = false
	return nil
}

// snapshot freezes the pre-save state so lifecycle hooks observe the
// record as it was before the commit.
func (m *Model) snapshot() column.Record {
	data := make(map[string]any, len(m.data))
	for k, v := range m.data {
		data[k] = v
	}
	return &snapshotRecord{data: data, exists: m.exists}
}

type snapshotRecord struct {
	data   map[string]any
	exists bool
}

func (s *snapshotRecord) Get(name string) any { return s.data[name] }
func (s *snapshotRecord) Exists() bool        { return s.exists }

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}
