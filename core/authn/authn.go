// Package authn defines pluggable request authentication. Handlers run
// exactly one strategy before touching any backend; a failure short
// circuits the request.
package authn

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
)

// ErrUnauthenticated is returned when a strategy rejects the request.
// Strategies wrap it rather than inventing their own sentinel so callers
// can map every rejection to the same response.
var ErrUnauthenticated = errors.New("unauthenticated")

// Strategy authenticates one request from its headers.
type Strategy interface {
	Authenticate(ctx context.Context, headers http.Header) error
}

// Public accepts every request.
type Public struct{}

// Authenticate always succeeds.
func (Public) Authenticate(ctx context.Context, headers http.Header) error { return nil }

// SecretBearer accepts requests carrying a shared secret in a header.
// Comparison is constant time over a digest so secret length leaks
// nothing either.
type SecretBearer struct {
	header string
	digest [sha256.Size]byte
}

// NewSecretBearer builds a shared-secret strategy. header defaults to
// Authorization, where a "Bearer " prefix is tolerated.
func NewSecretBearer(header, secret string) *SecretBearer {
	if header == "" {
		header = "Authorization"
	}
	return &SecretBearer{header: header, digest: sha256.Sum256([]byte(secret))}
}

// Authenticate checks the configured header against the shared secret.
// A missing header and a wrong secret are indistinguishable.
func (s *SecretBearer) Authenticate(ctx context.Context, headers http.Header) error {
	presented := headers.Get(s.header)
	if strings.EqualFold(s.header, "Authorization") {
		if rest, ok := strings.CutPrefix(presented, "Bearer "); ok {
			presented = rest
		}
	}
	got := sha256.Sum256([]byte(presented))
	if subtle.ConstantTimeCompare(got[:], s.digest[:]) != 1 {
		return ErrUnauthenticated
	}
	return nil
}

// Func adapts a plain function into a Strategy, for app-defined schemes.
type Func func(ctx context.Context, headers http.Header) error

// Authenticate calls the wrapped function.
func (f Func) Authenticate(ctx context.Context, headers http.Header) error {
	return f(ctx, headers)
}
