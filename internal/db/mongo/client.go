// Package mongo implements db.Store on MongoDB. Documents are stored with
// their JSON fields at the top level plus three reserved members: "_id"
// (the document key) and the "_seq"/"_term" token parts used for
// compare-and-swap writes.
package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/studycat-io/studycat/internal/db"
)

// Compile-time check: Store implements db.Store.
var _ db.Store = (*Store)(nil)

const (
	fieldSeq  = "_seq"
	fieldTerm = "_term"
)

// Config holds connection parameters for a Mongo store.
type Config struct {
	URI      string
	Database string
	// Term is the store epoch recorded in new documents' tokens. Usually
	// left zero, in which case the connect time is used.
	Term int64
}

// Store implements db.Store via the official Mongo driver.
type Store struct {
	client *mongo.Client
	dbase  *mongo.Database
	term   int64
}

// NewStore connects to MongoDB.
func NewStore(cfg Config) (*Store, error) {
	if cfg.URI == "" {
		return nil, fmt.Errorf("mongo uri is required")
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("mongo database is required")
	}

	client, err := mongo.Connect(options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}

	term := cfg.Term
	if term == 0 {
		term = time.Now().Unix()
	}
	return &Store{client: client, dbase: client.Database(cfg.Database), term: term}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx, nil); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close() {
	_ = s.client.Disconnect(context.Background())
}

// WaitForReady polls Ping until the store responds or the timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout waiting for database: %w", ctx.Err())
		case <-ticker.C:
			if err := s.Ping(ctx); err == nil {
				return nil
			}
		}
	}
}

// EnsureTextIndex creates the text index used for free-text queries over a
// collection. Safe to call repeatedly.
func (s *Store) EnsureTextIndex(ctx context.Context, collection string, fields []string) error {
	keys := bson.D{}
	for _, f := range fields {
		keys = append(keys, bson.E{Key: f, Value: "text"})
	}
	_, err := s.dbase.Collection(collection).Indexes().CreateOne(ctx, mongo.IndexModel{Keys: keys})
	if err != nil {
		return fmt.Errorf("create text index on %s: %w", collection, err)
	}
	return nil
}

func (s *Store) coll(name string) *mongo.Collection {
	return s.dbase.Collection(name)
}
