package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("email") != "a@x.com" {
			t.Errorf("query = %v", r.URL.Query())
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"city":"cool city","age":20}`))
	}))
	defer srv.Close()

	var out struct {
		City string `json:"city"`
		Age  int    `json:"age"`
	}
	err := New().GetJSON(context.Background(), srv.URL, map[string]string{"email": "a@x.com"}, &out)
	if err != nil {
		t.Fatal(err)
	}
	if out.City != "cool city" || out.Age != 20 {
		t.Errorf("out = %+v", out)
	}
}

func TestGetJSONNonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	var out map[string]any
	if err := New().GetJSON(context.Background(), srv.URL, nil, &out); err == nil {
		t.Error("non-2xx status not reported")
	}
}

func TestGetJSONBadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	var out map[string]any
	if err := New().GetJSON(context.Background(), srv.URL, nil, &out); err == nil {
		t.Error("malformed body not reported")
	}
}
