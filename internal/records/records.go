// Package records persists the service-side view of each installation:
// the bookmark list filed under its code, the share token that exposes
// it read-only, and activity timestamps for garbage collection.
package records

import (
	"context"
	"errors"
	"time"

	"github.com/pagefaves/pagefaves/internal/domain"
)

// ErrNotFound is returned when no record exists for a code or token.
var ErrNotFound = errors.New("record not found")

// Record is one installation's server-side state.
type Record struct {
	Code       string            `json:"code"`
	ShareToken string            `json:"shareToken"`
	Bookmarks  []domain.Bookmark `json:"bookmarks"`
	CreatedAt  time.Time         `json:"createdAt"`
	UpdatedAt  time.Time         `json:"updatedAt"`
	LastSeenAt time.Time         `json:"lastSeenAt"`
}

// Store is the record repository. Implementations must be safe for
// concurrent use.
type Store interface {
	// Get returns the record for code, or ErrNotFound.
	Get(ctx context.Context, code string) (*Record, error)
	// Save upserts a record, keyed by its Code, and indexes its
	// ShareToken when set.
	Save(ctx context.Context, rec *Record) error
	// Delete removes a record and its share-token index entry.
	// Deleting an absent code is not an error.
	Delete(ctx context.Context, code string) error
	// All returns every stored record, order unspecified.
	All(ctx context.Context) ([]*Record, error)
	// CodeForShareToken resolves a share token, or ErrNotFound.
	CodeForShareToken(ctx context.Context, token string) (string, error)
	// Ping reports backend reachability.
	Ping(ctx context.Context) error
	Close() error
}
