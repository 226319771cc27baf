package bootstrap

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/artpar/declarest/config"
)

func newApp(t *testing.T, yaml string) *App {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	holder, err := config.NewHolder(path, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(holder.Stop)

	app, err := New(holder, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { app.Backend.Close() })
	return app
}

const memoryConfig = `
database:
  driver: memory
metrics:
  enabled: true
openapi:
  enabled: true
`

func TestAppServesUsersResource(t *testing.T) {
	app := newApp(t, memoryConfig)

	body := `{"name":"Conor","email":"c@example.com","password":"hunter2"}`
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users", strings.NewReader(body)))
	if rec.Code != http.StatusOK {
		t.Fatalf("create: code=%d body=%s", rec.Code, rec.Body.String())
	}

	var created struct {
		Status string         `json:"status"`
		Data   map[string]any `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.Data["name"] != "Conor" {
		t.Errorf("data = %v", created.Data)
	}
	// The secret column never serializes.
	if _, ok := created.Data["password"]; ok {
		t.Error("password leaked into response")
	}
	if created.Data["created"] == nil || created.Data["updated"] == nil {
		t.Errorf("timestamps missing: %v", created.Data)
	}

	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"numberResults":1`) {
		t.Errorf("list: code=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestAppServesNotesWithGeneratedUUID(t *testing.T) {
	app := newApp(t, memoryConfig)

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/notes",
		strings.NewReader(`{"title":"first","body":"hello","author_id":1}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("create: code=%d body=%s", rec.Code, rec.Body.String())
	}

	var created struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	id, _ := created.Data["external_id"].(string)
	if len(id) != 36 {
		t.Errorf("external_id = %q, want generated UUID", id)
	}
}

func TestAppEnrichment(t *testing.T) {
	lookup := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"city":"cool city","state":"awesome state","country":"my country","age":20}`))
	}))
	defer lookup.Close()

	app := newApp(t, memoryConfig+fmt.Sprintf("enrichment:\n  url: %s\n", lookup.URL))

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users",
		strings.NewReader(`{"name":"Alice","email":"alice@example2.com"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("create: code=%d body=%s", rec.Code, rec.Body.String())
	}

	var created struct {
		Data map[string]any `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	if created.Data["city"] != "cool city" || created.Data["age"] != float64(20) {
		t.Errorf("enriched data = %v", created.Data)
	}
}

func TestAppSecretAuth(t *testing.T) {
	app := newApp(t, memoryConfig+"auth:\n  mode: secret\n  secret: topsecret\n")

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("unauthenticated: code=%d", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.Header.Set("Authorization", "Bearer topsecret")
	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("authenticated: code=%d body=%s", rec.Code, rec.Body.String())
	}
}

func TestAppOperationalSurface(t *testing.T) {
	app := newApp(t, memoryConfig)

	for _, path := range []string{"/health", "/metrics", "/.well-known/openapi.json"} {
		rec := httptest.NewRecorder()
		app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK {
			t.Errorf("%s: code=%d", path, rec.Code)
		}
	}
}

func TestAppSQLiteBackend(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "app.db")
	app := newApp(t, fmt.Sprintf("database:\n  driver: sqlite\n  path: %s\n", dbPath))

	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users",
		strings.NewReader(`{"name":"Conor","email":"c@example.com"}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("create: code=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	app.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/1", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("fetch: code=%d body=%s", rec.Code, rec.Body.String())
	}
}
