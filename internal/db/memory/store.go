// Package memory implements db.Store entirely in process. It is the driver
// used by tests and local development, and doubles as the reference
// implementation of the adapter semantics: filter scoping, aggregation
// counting, collapsing, and compare-and-swap all behave exactly as the
// contract documents.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/studycat-io/studycat/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

type entry struct {
	raw   []byte
	doc   map[string]any
	token db.Token
}

// Store is an in-process document store.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]*entry
	seq         int64
	term        int64
}

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{
		collections: make(map[string]map[string]*entry),
		term:        1,
	}
}

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close() {}

// WaitForReady returns immediately; the store has no connection to wait for.
func (s *Store) WaitForReady(_ context.Context, _ time.Duration) error { return nil }

// Get returns the raw document and its current token.
func (s *Store) Get(_ context.Context, collection, key string) ([]byte, db.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.collections[collection][key]
	if !ok {
		return nil, db.Token{}, &db.Error{Op: db.OpGet, Err: db.ErrKeyNotFound}
	}
	raw := make([]byte, len(e.raw))
	copy(raw, e.raw)
	return raw, e.token, nil
}

// MultiGet returns the documents present for the given keys.
func (s *Store) MultiGet(_ context.Context, collection string, keys []string) (map[string][]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]byte, len(keys))
	coll := s.collections[collection]
	for _, k := range keys {
		if e, ok := coll[k]; ok {
			raw := make([]byte, len(e.raw))
			copy(raw, e.raw)
			out[k] = raw
		}
	}
	return out, nil
}

// Create inserts a new document.
func (s *Store) Create(_ context.Context, collection, key string, doc []byte) (db.Token, error) {
	parsed, err := decodeDoc(doc)
	if err != nil {
		return db.Token{}, &db.Error{Op: db.OpCreate, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.coll(collection)
	if _, ok := coll[key]; ok {
		return db.Token{}, &db.Error{Op: db.OpCreate, Err: db.ErrKeyExists}
	}
	tok := s.nextToken()
	coll[key] = &entry{raw: cloneBytes(doc), doc: parsed, token: tok}
	return tok, nil
}

// Write replaces a document, enforcing the expected token when given.
func (s *Store) Write(_ context.Context, collection, key string, doc []byte, expected *db.Token) (db.Token, error) {
	parsed, err := decodeDoc(doc)
	if err != nil {
		return db.Token{}, &db.Error{Op: db.OpWrite, Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.coll(collection)
	cur, ok := coll[key]
	if expected != nil {
		if !ok {
			return db.Token{}, &db.Error{Op: db.OpWrite, Err: db.ErrKeyNotFound}
		}
		if cur.token != *expected {
			return db.Token{}, &db.Error{Op: db.OpWrite, Err: db.NewTokenMismatch(cur.token)}
		}
	}
	tok := s.nextToken()
	coll[key] = &entry{raw: cloneBytes(doc), doc: parsed, token: tok}
	return tok, nil
}

// Delete removes a document.
func (s *Store) Delete(_ context.Context, collection, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.coll(collection)
	if _, ok := coll[key]; !ok {
		return &db.Error{Op: db.OpDelete, Err: db.ErrKeyNotFound}
	}
	delete(coll, key)
	return nil
}

// DeleteByFilter removes every matching document.
func (s *Store) DeleteByFilter(_ context.Context, collection string, filters []db.Filter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.coll(collection)
	var removed int64
	for key, e := range coll {
		if ok, _ := matchFilters(key, e.doc, filters); ok {
			delete(coll, key)
			removed++
		}
	}
	return removed, nil
}

func (s *Store) coll(name string) map[string]*entry {
	c, ok := s.collections[name]
	if !ok {
		c = make(map[string]*entry)
		s.collections[name] = c
	}
	return c
}

func (s *Store) nextToken() db.Token {
	s.seq++
	return db.Token{Seq: s.seq, Term: s.term}
}

func decodeDoc(doc []byte) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return m, nil
}

func cloneBytes(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
