package store

import "context"

// Backend is one physical key-value backend. Backends report errors; the
// Store is the layer that swallows them and degrades, so that no storage
// failure ever propagates to the widget's caller.
type Backend interface {
	// Get returns the value for key. ok is false when the key is absent
	// (or expired, for backends with expiry).
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	Close() error
}
