// Package sqlite provides the SQLite Backend implementation. Tables are
// created dynamically from column registries; no hand-written migrations.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/artpar/declarest/core/backend"
	"github.com/artpar/declarest/core/column"
	"github.com/mattn/go-sqlite3"
)

// Backend persists records in a SQLite database.
type Backend struct {
	db *sql.DB

	mu     sync.RWMutex
	tables map[string]*column.Registry
}

// Open creates a SQLite backend at the given path.
func Open(path string) (*Backend, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if path == ":memory:" {
		// A pooled second connection would see an empty database.
		db.SetMaxOpenConns(1)
	}

	pragmas := []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	return FromDB(db), nil
}

// FromDB creates a backend from an existing connection.
func FromDB(db *sql.DB) *Backend {
	return &Backend{db: db, tables: make(map[string]*column.Registry)}
}

// DB returns the underlying database connection.
func (b *Backend) DB() *sql.DB { return b.db }

// Close closes the database connection.
func (b *Backend) Close() error { return b.db.Close() }

// CreateTable creates the table for a column registry if it doesn't exist.
func (b *Backend) CreateTable(ctx context.Context, table string, cols *column.Registry) error {
	b.mu.Lock()
	b.tables[table] = cols
	b.mu.Unlock()

	if _, err := b.db.ExecContext(ctx, buildCreateTableSQL(table, cols)); err != nil {
		return fmt.Errorf("create table %s: %w", table, err)
	}
	return nil
}

// Create inserts a new record and returns its allocated id.
func (b *Backend) Create(ctx context.Context, table string, data map[string]any) (int64, error) {
	cols, err := b.registry(table)
	if err != nil {
		return 0, err
	}

	var names []string
	var placeholders []string
	var values []any
	for _, c := range cols.Columns() {
		if c.Name() == column.IdentityName {
			continue
		}
		value, ok := data[c.Name()]
		if !ok {
			continue
		}
		names = append(names, c.Name())
		placeholders = append(placeholders, "?")
		values = append(values, toStorage(value))
	}

	insertSQL := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table,
		strings.Join(names, ", "),
		strings.Join(placeholders, ", "),
	)

	res, err := b.db.ExecContext(ctx, insertSQL, values...)
	if err != nil {
		return 0, wrapConstraint(table, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	return id, nil
}

// Read returns the record with the given id.
func (b *Backend) Read(ctx context.Context, table string, id int64) (map[string]any, error) {
	cols, err := b.registry(table)
	if err != nil {
		return nil, err
	}

	names := cols.Names()
	query := fmt.Sprintf(
		"SELECT %s FROM %s WHERE %s = ?",
		strings.Join(names, ", "), table, column.IdentityName,
	)

	values := make([]any, len(names))
	dest := make([]any, len(names))
	for i := range values {
		dest[i] = &values[i]
	}

	if err := b.db.QueryRowContext(ctx, query, id).Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, backend.ErrNotFound
		}
		return nil, fmt.Errorf("read %s: %w", table, err)
	}

	row := make(map[string]any, len(names))
	for i, name := range names {
		row[name] = fromStorage(values[i])
	}
	return row, nil
}

// Update applies data to an existing record and returns the updated row.
func (b *Backend) Update(ctx context.Context, table string, id int64, data map[string]any) (map[string]any, error) {
	cols, err := b.registry(table)
	if err != nil {
		return nil, err
	}

	var sets []string
	var values []any
	for _, c := range cols.Columns() {
		if c.Name() == column.IdentityName {
			continue
		}
		value, ok := data[c.Name()]
		if !ok {
			continue
		}
		sets = append(sets, c.Name()+" = ?")
		values = append(values, toStorage(value))
	}

	if len(sets) == 0 {
		return b.Read(ctx, table, id)
	}

	values = append(values, id)
	updateSQL := fmt.Sprintf(
		"UPDATE %s SET %s WHERE %s = ?",
		table, strings.Join(sets, ", "), column.IdentityName,
	)

	res, err := b.db.ExecContext(ctx, updateSQL, values...)
	if err != nil {
		return nil, wrapConstraint(table, err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return nil, backend.ErrNotFound
	}

	return b.Read(ctx, table, id)
}

// Delete removes a record, reporting whether it existed.
func (b *Backend) Delete(ctx context.Context, table string, id int64) (bool, error) {
	if _, err := b.registry(table); err != nil {
		return false, err
	}

	res, err := b.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE %s = ?", table, column.IdentityName), id)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", table, err)
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

// Query returns matching rows plus the total match count.
func (b *Backend) Query(ctx context.Context, table string, q backend.Query) ([]map[string]any, int64, error) {
	cols, err := b.registry(table)
	if err != nil {
		return nil, 0, err
	}

	var conditions []string
	var args []any
	for name, value := range q.Filters {
		if !cols.Has(name) {
			continue
		}
		conditions = append(conditions, name+" = ?")
		args = append(args, toStorage(value))
	}
	var whereClause string
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	countSQL := fmt.Sprintf("SELECT COUNT(*) FROM %s%s", table, whereClause)
	if err := b.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", table, err)
	}

	sortColumn := q.SortColumn
	if sortColumn == "" || !cols.Has(sortColumn) {
		sortColumn = column.IdentityName
	}
	direction := "ASC"
	if q.SortDesc {
		direction = "DESC"
	}

	names := cols.Names()
	querySQL := fmt.Sprintf(
		"SELECT %s FROM %s%s ORDER BY %s %s, %s ASC LIMIT %d OFFSET %d",
		strings.Join(names, ", "), table, whereClause,
		sortColumn, direction, column.IdentityName,
		normalizeLimit(q.Limit), maxInt(q.Start, 0),
	)

	rows, err := b.db.QueryContext(ctx, querySQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	results := []map[string]any{}
	for rows.Next() {
		values := make([]any, len(names))
		dest := make([]any, len(names))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, 0, fmt.Errorf("scan %s: %w", table, err)
		}
		row := make(map[string]any, len(names))
		for i, name := range names {
			row[name] = fromStorage(values[i])
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("query %s: %w", table, err)
	}

	return results, total, nil
}

var _ backend.Backend = (*Backend)(nil)

func (b *Backend) registry(table string) (*column.Registry, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	cols, ok := b.tables[table]
	if !ok {
		return nil, fmt.Errorf("table %q not registered", table)
	}
	return cols, nil
}

// buildCreateTableSQL generates CREATE TABLE DDL from a column registry.
func buildCreateTableSQL(table string, cols *column.Registry) string {
	var defs []string
	var constraints []string

	for _, c := range cols.Columns() {
		defs = append(defs, c.Name()+" "+c.SQLType())
		if c.Unique() {
			constraints = append(constraints, fmt.Sprintf("UNIQUE(%s)", c.Name()))
		}
	}

	ddl := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s (\n  %s",
		table, strings.Join(defs, ",\n  "),
	)
	if len(constraints) > 0 {
		ddl += ",\n  " + strings.Join(constraints, ",\n  ")
	}
	return ddl + "\n)"
}

// toStorage converts engine values to SQLite values. Timestamps are stored
// as RFC 3339 text so lexicographic ordering matches chronological.
func toStorage(value any) any {
	if t, ok := value.(time.Time); ok {
		return t.UTC().Format(time.RFC3339)
	}
	return value
}

// fromStorage converts SQLite values back to engine values.
func fromStorage(value any) any {
	if b, ok := value.([]byte); ok {
		return string(b)
	}
	return value
}

// wrapConstraint maps sqlite constraint failures onto the backend contract.
func wrapConstraint(table string, err error) error {
	var serr sqlite3.Error
	if errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint {
		return &backend.ConstraintError{Table: table, Column: constraintColumn(serr.Error())}
	}
	return fmt.Errorf("%s: %w", table, err)
}

// constraintColumn extracts the column name from messages like
// "UNIQUE constraint failed: users.email".
func constraintColumn(msg string) string {
	idx := strings.LastIndex(msg, ".")
	if idx < 0 || idx == len(msg)-1 {
		return ""
	}
	col := msg[idx+1:]
	if strings.ContainsAny(col, " :") {
		return ""
	}
	return col
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return -1 // SQLite: no limit
	}
	return limit
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
