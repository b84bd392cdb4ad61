package store

import (
	"context"
	"encoding/json"
)

// Well-known keys. Each of session state, the history ledger, and options
// lives under its own key as a JSON blob.
const (
	KeyState   = "state"
	KeyHistory = "history"
	KeyOptions = "options"
)

// Store is the persistent key-value store the session core writes through.
// Set applies all pairs in a single transaction, which is what lets a
// caller persist a mutated counter together with the ledger entry it
// produced: a crash can never leave one without the other.
type Store interface {
	// Get returns the values for the requested keys. Missing keys are
	// simply absent from the result, not an error.
	Get(ctx context.Context, keys ...string) (map[string]json.RawMessage, error)

	// Set upserts every pair atomically.
	Set(ctx context.Context, values map[string]json.RawMessage) error

	// Clear removes every key.
	Clear(ctx context.Context) error

	// ListKeys returns all stored keys in lexical order.
	ListKeys(ctx context.Context) ([]string, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
