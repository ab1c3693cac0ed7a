package db

import (
	"context"
	"time"
)

// Collection names for the persisted layout. The engine owns exactly these
// three; there is no lock table and no cache collection.
const (
	CollectionStudies  = "studies"
	CollectionVersions = "study_versions"
	CollectionDatasets = "datasets"
)

// KeyField is the pseudo-field drivers resolve to the document key, usable
// in filters, sorts, and aggregations like any stored field.
const KeyField = "_key"

// Token is the optimistic-concurrency marker attached to every document.
// It is opaque to callers: compare for equality, pass back on writes.
// Internally two parts (write sequence + store epoch) so a driver restore or
// failover cannot resurrect a stale sequence number.
type Token struct {
	Seq  int64
	Term int64
}

// IsZero reports whether the token is unset.
func (t Token) IsZero() bool { return t.Seq == 0 && t.Term == 0 }

// Store is the document store capability consumed by the engine.
//
//nolint:interfacebloat // facade by design -- consumers use narrow sub-interfaces
type Store interface {
	Reader
	Searcher
	Writer
	Pinger
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Reader provides keyed document access.
type Reader interface {
	// Get returns the raw document and its current token.
	// Returns ErrKeyNotFound for an absent key.
	Get(ctx context.Context, collection, key string) ([]byte, Token, error)
	// MultiGet returns the documents for the given keys in one round trip.
	// Missing keys are silently absent from the result map.
	MultiGet(ctx context.Context, collection string, keys []string) (map[string][]byte, error)
}

// Searcher provides filtered, aggregated search over a collection.
type Searcher interface {
	Search(ctx context.Context, collection string, q *SearchQuery) (*SearchResult, error)
}

// Writer provides document mutation with compare-and-swap semantics.
type Writer interface {
	// Create inserts a new document. Returns ErrKeyExists if the key is taken.
	Create(ctx context.Context, collection, key string, doc []byte) (Token, error)
	// Write replaces a document. When expected is non-nil the write only
	// succeeds if the stored token matches; a mismatch returns a
	// TokenMismatchError and never silently overwrites.
	Write(ctx context.Context, collection, key string, doc []byte, expected *Token) (Token, error)
	// Delete removes a document. Returns ErrKeyNotFound for an absent key.
	Delete(ctx context.Context, collection, key string) error
	// DeleteByFilter removes every document matching the conjunction of
	// filters and returns the number removed.
	DeleteByFilter(ctx context.Context, collection string, filters []Filter) (int64, error)
}
