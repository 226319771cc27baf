// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"time"
)

// Clock abstracts time for testability. Timestamp columns are stamped
// through the injected clock, never through time.Now directly.
type Clock interface {
	Now() time.Time
}

// IDGenerator generates unique identifiers for non-identity purposes
// (request ids, uuid column defaults). Record identity is allocated by
// the storage backend.
type IDGenerator interface {
	New() string
}

// Getter performs outbound JSON GET requests. It is the seam enrichment
// columns use for external lookups, so tests can substitute a fake.
type Getter interface {
	// GetJSON issues a GET to url with the given query params and decodes
	// the response body into out.
	GetJSON(ctx context.Context, url string, params map[string]string, out any) error
}
