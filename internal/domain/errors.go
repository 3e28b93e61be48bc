package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingAPIKey is returned at construction time when no catalog API
	// key is configured.
	ErrMissingAPIKey = errors.New("catalog API key is not configured")

	// ErrUnknownDomain is returned for a card domain with no rules table.
	ErrUnknownDomain = errors.New("unknown card domain")

	// ErrInvalidQuery is returned when a card query is missing its name.
	ErrInvalidQuery = errors.New("invalid card query")

	// ErrCacheMiss is returned when data is not found in cache.
	ErrCacheMiss = errors.New("cache miss")
)

// CatalogError is the typed failure the catalog client exposes. Callers map
// it to an outward-facing status: Blocked or upstream 429 -> 429, Timeout
// exhausted -> 504, other retryable failures exhausted -> 503, rest -> 500.
type CatalogError struct {
	Message   string
	Status    int  // upstream HTTP status, 0 for transport errors
	Retryable bool // transient; the client retries these up to its budget
	Blocked   bool // anti-bot interception (Cloudflare challenge page)
	Timeout   bool // request deadline exceeded
}

func (e *CatalogError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("catalog request failed (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("catalog request failed: %s", e.Message)
}
