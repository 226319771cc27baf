package model

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/artpar/declarest/adapters/clock"
	"github.com/artpar/declarest/adapters/memory"
	"github.com/artpar/declarest/core/backend"
	"github.com/artpar/declarest/core/column"
)

func newUserModels(t *testing.T, clk *clock.Fake) *Models {
	t.Helper()
	cols := column.MustRegistry(
		column.String("name"),
		column.Email("email"),
		column.Created("created", clk),
		column.Updated("updated", clk),
	)
	models := NewModels("users", memory.New(), cols)
	if err := models.CreateTable(context.Background()); err != nil {
		t.Fatal(err)
	}
	return models
}

func TestSaveStampsTimestamps(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	models := newUserModels(t, clk)
	ctx := context.Background()

	user := models.Blank()
	if err := user.Save(ctx, map[string]any{"name": "Conor", "email": "c@example.com"}); err != nil {
		t.Fatal(err)
	}
	if !user.Exists() || user.ID() != 1 {
		t.Fatalf("exists=%v id=%d", user.Exists(), user.ID())
	}

	created := user.Get("created")
	updated := user.Get("updated")
	if created == nil || updated == nil {
		t.Fatalf("timestamps missing: created=%v updated=%v", created, updated)
	}

	// A later save re-stamps updated but never created.
	clk.Advance(time.Hour)
	if err := user.Save(ctx, map[string]any{"name": "Connor"}); err != nil {
		t.Fatal(err)
	}
	if user.Get("created") != created {
		t.Errorf("created changed on update: %v -> %v", created, user.Get("created"))
	}
	if user.Get("updated") == updated {
		t.Error("updated not re-stamped on update")
	}
	if user.Get("email") != "c@example.com" {
		t.Errorf("untouched field lost: %v", user.Get("email"))
	}
}

// touchCounter records every PreSave invocation.
type touchCounter struct {
	column.Base
	calls int
}

func (c *touchCounter) PreSave(ctx context.Context, data map[string]any, r column.Record) (map[string]any, error) {
	c.calls++
	return data, nil
}

func TestLifecycleFiresOnNoOpSave(t *testing.T) {
	counter := &touchCounter{Base: column.NewBase("marker", "string", column.NotWriteable())}
	cols := column.MustRegistry(column.String("name"), counter)
	models := NewModels("items", memory.New(), cols)
	ctx := context.Background()
	if err := models.CreateTable(ctx); err != nil {
		t.Fatal(err)
	}

	item := models.Blank()
	if err := item.Save(ctx, map[string]any{"name": "a"}); err != nil {
		t.Fatal(err)
	}
	// Saving identical data still runs the full lifecycle: there is no
	// change detection.
	if err := item.Save(ctx, map[string]any{"name": "a"}); err != nil {
		t.Fatal(err)
	}
	if counter.calls != 2 {
		t.Errorf("PreSave calls = %d, want 2", counter.calls)
	}
}

// upperName rewrites a field owned by an earlier column.
type upperName struct{ column.Base }

func (c *upperName) PreSave(ctx context.Context, data map[string]any, r column.Record) (map[string]any, error) {
	if s, ok := data["name"].(string); ok {
		data["name"] = s + "!"
	}
	return data, nil
}

func TestPreSaveRunsInRegistrationOrder(t *testing.T) {
	cols := column.MustRegistry(
		column.String("name"),
		&upperName{Base: column.NewBase("shout", "string", column.NotWriteable())},
	)
	models := NewModels("items", memory.New(), cols)
	ctx := context.Background()
	if err := models.CreateTable(ctx); err != nil {
		t.Fatal(err)
	}

	item := models.Blank()
	if err := item.Save(ctx, map[string]any{"name": "hey"}); err != nil {
		t.Fatal(err)
	}
	if item.Get("name") != "hey!" {
		t.Errorf("name = %v, want enriched value persisted", item.Get("name"))
	}
}

func TestFindAndDelete(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	models := newUserModels(t, clk)
	ctx := context.Background()

	user := models.Blank()
	if err := user.Save(ctx, map[string]any{"name": "Conor", "email": "c@example.com"}); err != nil {
		t.Fatal(err)
	}

	found, err := models.Find(ctx, user.ID())
	if err != nil {
		t.Fatal(err)
	}
	if found.Get("name") != "Conor" {
		t.Errorf("found name = %v", found.Get("name"))
	}

	if err := found.Delete(ctx); err != nil {
		t.Fatal(err)
	}
	if err := found.Delete(ctx); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("second delete err = %v, want ErrNotFound", err)
	}
	if _, err := models.Find(ctx, user.ID()); !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("find after delete err = %v, want ErrNotFound", err)
	}
}

func TestQueryHydratesModels(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	models := newUserModels(t, clk)
	ctx := context.Background()

	for _, n := range []string{"bob", "alice"} {
		u := models.Blank()
		if err := u.Save(ctx, map[string]any{"name": n, "email": n + "@x.com"}); err != nil {
			t.Fatal(err)
		}
	}

	list, total, err := models.Query(ctx, backend.Query{SortColumn: "name", Limit: 10})
	if err != nil {
		t.Fatal(err)
	}
	if total != 2 || len(list) != 2 {
		t.Fatalf("total=%d len=%d", total, len(list))
	}
	if list[0].Get("name") != "alice" || !list[0].Exists() {
		t.Errorf("list[0] = %v", list[0].Data())
	}
}
