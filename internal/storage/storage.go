// Package storage persists query outcomes keyed by the fully-substituted
// question string. Two backends share one record serialization boundary:
// a volatile in-process map and a durable SQLite store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"surveyor/internal/question"
)

// ErrUnknownKind indicates an unrecognized storage kind selector.
var ErrUnknownKind = errors.New("unknown storage kind")

// Storage is the cache contract the workflow runs against. Keys are
// question values: two questions rendering to the same string share one
// entry. Put overwrites idempotently and the write is observable by any
// instance bound to the same backing store once it returns.
type Storage interface {
	// Get looks up the stored response for the question. The second
	// return is false when no entry exists.
	Get(ctx context.Context, q question.Question) (question.QueryResponse, bool, error)
	// Put stores the response under the question's value, replacing any
	// previous entry.
	Put(ctx context.Context, q question.Question, resp question.QueryResponse) error
	// Delete removes the entry if present. Deleting a missing entry is
	// not an error.
	Delete(ctx context.Context, q question.Question) error
	// Count returns the number of stored entries.
	Count(ctx context.Context) (int, error)
	// Questions enumerates the stored questions, for dumps and
	// inspection. Persisted questions carry template, word set, and
	// value; schemas are not persisted.
	Questions(ctx context.Context) ([]question.Question, error)
	// Clear removes every stored entry. Entries never expire
	// implicitly; this is the only bulk removal.
	Clear(ctx context.Context) error
	// Close releases backend resources.
	Close() error
}

// Open constructs a backend by kind: "memory" or "sqlite". The path is
// only meaningful for sqlite. An unrecognized kind is a configuration
// error.
func Open(kind, path string) (Storage, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "memory":
		return NewMemory(), nil
	case "sqlite":
		return NewSQLite(path)
	default:
		return nil, fmt.Errorf("storage kind %q: %w", kind, ErrUnknownKind)
	}
}
