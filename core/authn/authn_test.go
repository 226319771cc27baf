package authn

import (
	"context"
	"errors"
	"net/http"
	"testing"
)

func TestPublicAcceptsEverything(t *testing.T) {
	if err := (Public{}).Authenticate(context.Background(), http.Header{}); err != nil {
		t.Errorf("err = %v", err)
	}
}

func TestSecretBearer(t *testing.T) {
	s := NewSecretBearer("", "topsecret")
	ctx := context.Background()

	cases := []struct {
		name  string
		value string
		ok    bool
	}{
		{"bare secret", "topsecret", true},
		{"bearer prefix", "Bearer topsecret", true},
		{"wrong secret", "nope", false},
		{"missing header", "", false},
		{"prefix only", "Bearer ", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := http.Header{}
			if tc.value != "" {
				h.Set("Authorization", tc.value)
			}
			err := s.Authenticate(ctx, h)
			if tc.ok && err != nil {
				t.Errorf("rejected: %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrUnauthenticated) {
				t.Errorf("err = %v, want ErrUnauthenticated", err)
			}
		})
	}
}

func TestSecretBearerCustomHeader(t *testing.T) {
	s := NewSecretBearer("X-Api-Key", "k1")
	ctx := context.Background()

	h := http.Header{}
	h.Set("X-Api-Key", "k1")
	if err := s.Authenticate(ctx, h); err != nil {
		t.Errorf("rejected: %v", err)
	}

	// No Bearer stripping outside Authorization.
	h.Set("X-Api-Key", "Bearer k1")
	if err := s.Authenticate(ctx, h); !errors.Is(err, ErrUnauthenticated) {
		t.Errorf("err = %v, want ErrUnauthenticated", err)
	}
}

func TestFuncAdapter(t *testing.T) {
	called := false
	s := Func(func(ctx context.Context, headers http.Header) error {
		called = true
		if headers.Get("X-Ok") != "yes" {
			return ErrUnauthenticated
		}
		return nil
	})

	h := http.Header{}
	h.Set("X-Ok", "yes")
	if err := s.Authenticate(context.Background(), h); err != nil || !called {
		t.Errorf("err=%v called=%v", err, called)
	}
}
