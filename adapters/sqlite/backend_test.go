package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/artpar/declarest/core/backend"
	"github.com/artpar/declarest/core/column"
)

func newUserTable(t *testing.T) *Backend {
	t.Helper()
	b, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { b.Close() })

	cols := column.MustRegistry(
		column.String("name"),
		column.Email("email", column.WithUnique()),
		column.Integer("age"),
	)
	if err := b.CreateTable(context.Background(), "users", cols); err != nil {
		t.Fatal(err)
	}
	return b
}

func TestCreateReadRoundTrip(t *testing.T) {
	b := newUserTable(t)
	ctx := context.Background()

	id, err := b.Create(ctx, "users", map[string]any{"name": "Conor", "email": "c@example.com", "age": int64(30)})
	if err != nil {
		t.Fatal(err)
	}
	if id != 1 {
		t.Errorf("id = %d, want 1", id)
	}

	row, err := b.Read(ctx, "users", id)
	if err != nil {
		t.Fatal(err)
	}
	if row["name"] != "Conor" || row["email"] != "c@example.com" {
		t.Errorf("row = %v", row)
	}
	if row["age"] != int64(30) {
		t.Errorf("age = %v (%T), want int64(30)", row["age"], row["age"])
	}
	if row["id"] != int64(1) {
		t.Errorf("id field = %v (%T)", row["id"], row["id"])
	}
}

func TestCreateTableIsIdempotent(t *testing.T) {
	b := newUserTable(t)
	cols := column.MustRegistry(column.String("name"))
	if err := b.CreateTable(context.Background(), "users", cols); err != nil {
		t.Fatal(err)
	}
}

func TestReadUnknownIDReturnsNotFound(t *testing.T) {
	b := newUserTable(t)
	if _, err := b.Read(context.Background(), "users", 99); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestUpdateMergesAndReturnsRow(t *testing.T) {
	b := newUserTable(t)
	ctx := context.Background()

	id, _ := b.Create(ctx, "users", map[string]any{"name": "Conor", "email": "c@example.com", "age": int64(30)})

	row, err := b.Update(ctx, "users", id, map[string]any{"name": "Connor"})
	if err != nil {
		t.Fatal(err)
	}
	if row["name"] != "Connor" {
		t.Errorf("name = %v", row["name"])
	}
	if row["age"] != int64(30) {
		t.Errorf("untouched field lost: age = %v", row["age"])
	}

	if _, err := b.Update(ctx, "users", 99, map[string]any{"name": "x"}); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("update of missing row: err = %v, want ErrNotFound", err)
	}
}

func TestDelete(t *testing.T) {
	b := newUserTable(t)
	ctx := context.Background()

	id, _ := b.Create(ctx, "users", map[string]any{"name": "Conor", "email": "c@example.com"})
	existed, err := b.Delete(ctx, "users", id)
	if err != nil || !existed {
		t.Fatalf("delete: existed=%v err=%v", existed, err)
	}
	existed, err = b.Delete(ctx, "users", id)
	if err != nil || existed {
		t.Fatalf("second delete: existed=%v err=%v", existed, err)
	}
}

func TestUniqueConstraint(t *testing.T) {
	b := newUserTable(t)
	ctx := context.Background()

	id, _ := b.Create(ctx, "users", map[string]any{"name": "Conor", "email": "c@example.com"})
	_, err := b.Create(ctx, "users", map[string]any{"name": "Clone", "email": "c@example.com"})
	var ce *backend.ConstraintError
	if !errors.As(err, &ce) {
		t.Fatalf("err = %v, want ConstraintError", err)
	}
	if ce.Column != "email" {
		t.Errorf("constraint column = %q", ce.Column)
	}

	// Rewriting a row with its own value is allowed.
	if _, err := b.Update(ctx, "users", id, map[string]any{"email": "c@example.com"}); err != nil {
		t.Errorf("self update rejected: %v", err)
	}
}

func TestQuerySortPaginateAndCount(t *testing.T) {
	b := newUserTable(t)
	ctx := context.Background()

	names := []string{"charlie", "alice", "bob", "alice"}
	for i, n := range names {
		if _, err := b.Create(ctx, "users", map[string]any{"name": n, "email": n + string(rune('0'+i)) + "@x.com", "age": int64(20 + i)}); err != nil {
			t.Fatal(err)
		}
	}

	rows, total, err := b.Query(ctx, "users", backend.Query{SortColumn: "name", Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if total != 4 || len(rows) != 4 {
		t.Fatalf("total=%d len=%d", total, len(rows))
	}
	// alice(id 2) before alice(id 4): ties broken by id ascending.
	if rows[0]["name"] != "alice" || rows[0]["id"] != int64(2) {
		t.Errorf("rows[0] = %v", rows[0])
	}
	if rows[1]["name"] != "alice" || rows[1]["id"] != int64(4) {
		t.Errorf("rows[1] = %v", rows[1])
	}

	rows, _, err = b.Query(ctx, "users", backend.Query{SortColumn: "name", SortDesc: true, Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if rows[0]["name"] != "charlie" {
		t.Errorf("desc rows[0] = %v", rows[0])
	}

	rows, total, err = b.Query(ctx, "users", backend.Query{SortColumn: "name", Start: 1, Limit: 2})
	if err != nil {
		t.Fatal(err)
	}
	if total != 4 || len(rows) != 2 {
		t.Fatalf("windowed: total=%d len=%d", total, len(rows))
	}

	// Start beyond total: empty rows, accurate count, no error.
	rows, total, err = b.Query(ctx, "users", backend.Query{SortColumn: "name", Start: 100, Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if total != 4 || len(rows) != 0 {
		t.Errorf("beyond total: total=%d len=%d", total, len(rows))
	}
}

func TestQueryFilters(t *testing.T) {
	b := newUserTable(t)
	ctx := context.Background()

	b.Create(ctx, "users", map[string]any{"name": "alice", "email": "a@x.com", "age": int64(20)})
	b.Create(ctx, "users", map[string]any{"name": "bob", "email": "b@x.com", "age": int64(30)})

	rows, total, err := b.Query(ctx, "users", backend.Query{Filters: map[string]any{"name": "bob"}, Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if total != 1 || len(rows) != 1 || rows[0]["email"] != "b@x.com" {
		t.Fatalf("filter result: total=%d rows=%v", total, rows)
	}

	// Unknown filter columns are ignored rather than breaking the SQL.
	rows, _, err = b.Query(ctx, "users", backend.Query{Filters: map[string]any{"nope": "x"}, Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Errorf("unknown filter rows = %d", len(rows))
	}
}

func TestTimestampsStoredAsRFC3339Text(t *testing.T) {
	b, err := Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { b.Close() })
	ctx := context.Background()

	cols := column.MustRegistry(column.String("name"), column.String("created"))
	if err := b.CreateTable(ctx, "events", cols); err != nil {
		t.Fatal(err)
	}

	stamp := time.Date(2025, 3, 1, 12, 30, 0, 0, time.UTC)
	id, err := b.Create(ctx, "events", map[string]any{"name": "launch", "created": stamp})
	if err != nil {
		t.Fatal(err)
	}

	row, err := b.Read(ctx, "events", id)
	if err != nil {
		t.Fatal(err)
	}
	if row["created"] != "2025-03-01T12:30:00Z" {
		t.Errorf("created = %v (%T)", row["created"], row["created"])
	}
}
