package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/studycat-io/studycat/internal/db"
)

// Get returns the raw document and its current token.
func (s *Store) Get(ctx context.Context, collection, key string) ([]byte, db.Token, error) {
	var m bson.M
	err := s.coll(collection).FindOne(ctx, bson.M{"_id": key}).Decode(&m)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, db.Token{}, &db.Error{Op: db.OpGet, Err: db.ErrKeyNotFound}
	}
	if err != nil {
		return nil, db.Token{}, &db.Error{Op: db.OpGet, Err: err}
	}
	raw, tok, err := stripMeta(m)
	if err != nil {
		return nil, db.Token{}, &db.Error{Op: db.OpGet, Err: err}
	}
	return raw, tok, nil
}

// MultiGet fetches the given keys in one query; missing keys are absent.
func (s *Store) MultiGet(ctx context.Context, collection string, keys []string) (map[string][]byte, error) {
	if len(keys) == 0 {
		return map[string][]byte{}, nil
	}
	cur, err := s.coll(collection).Find(ctx, bson.M{"_id": bson.M{"$in": keys}})
	if err != nil {
		return nil, &db.Error{Op: db.OpMultiGet, Err: err}
	}
	defer cur.Close(ctx)

	out := make(map[string][]byte, len(keys))
	for cur.Next(ctx) {
		var m bson.M
		if err := cur.Decode(&m); err != nil {
			return nil, &db.Error{Op: db.OpMultiGet, Err: err}
		}
		key, _ := m["_id"].(string)
		raw, _, err := stripMeta(m)
		if err != nil {
			return nil, &db.Error{Op: db.OpMultiGet, Err: err}
		}
		out[key] = raw
	}
	if err := cur.Err(); err != nil {
		return nil, &db.Error{Op: db.OpMultiGet, Err: err}
	}
	return out, nil
}

// Create inserts a new document with an initial token.
func (s *Store) Create(ctx context.Context, collection, key string, doc []byte) (db.Token, error) {
	fields, err := decodeFields(doc)
	if err != nil {
		return db.Token{}, &db.Error{Op: db.OpCreate, Err: err}
	}
	fields["_id"] = key
	fields[fieldSeq] = int64(1)
	fields[fieldTerm] = s.term

	if _, err := s.coll(collection).InsertOne(ctx, fields); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return db.Token{}, &db.Error{Op: db.OpCreate, Err: db.ErrKeyExists}
		}
		return db.Token{}, &db.Error{Op: db.OpCreate, Err: err}
	}
	return db.Token{Seq: 1, Term: s.term}, nil
}

// Write replaces a document. With an expected token the replace is
// conditional on (key, seq, term); a lost race surfaces the stored token.
func (s *Store) Write(ctx context.Context, collection, key string, doc []byte, expected *db.Token) (db.Token, error) {
	fields, err := decodeFields(doc)
	if err != nil {
		return db.Token{}, &db.Error{Op: db.OpWrite, Err: err}
	}

	if expected == nil {
		return s.writeUnconditional(ctx, collection, key, fields)
	}

	fields["_id"] = key
	fields[fieldSeq] = expected.Seq + 1
	fields[fieldTerm] = expected.Term

	filter := bson.M{"_id": key, fieldSeq: expected.Seq, fieldTerm: expected.Term}
	res, err := s.coll(collection).ReplaceOne(ctx, filter, fields)
	if err != nil {
		return db.Token{}, &db.Error{Op: db.OpWrite, Err: err}
	}
	if res.MatchedCount == 0 {
		// Distinguish a missing document from a stale token.
		var cur bson.M
		err := s.coll(collection).FindOne(ctx, bson.M{"_id": key}).Decode(&cur)
		if errors.Is(err, mongo.ErrNoDocuments) {
			return db.Token{}, &db.Error{Op: db.OpWrite, Err: db.ErrKeyNotFound}
		}
		if err != nil {
			return db.Token{}, &db.Error{Op: db.OpWrite, Err: err}
		}
		return db.Token{}, &db.Error{Op: db.OpWrite, Err: db.NewTokenMismatch(tokenOf(cur))}
	}
	return db.Token{Seq: expected.Seq + 1, Term: expected.Term}, nil
}

// writeUnconditional upserts via an update pipeline so the sequence number
// still advances even without a caller-supplied token.
func (s *Store) writeUnconditional(ctx context.Context, collection, key string, fields bson.M) (db.Token, error) {
	meta := bson.M{
		fieldSeq:  bson.M{"$add": bson.A{bson.M{"$ifNull": bson.A{"$" + fieldSeq, int64(0)}}, int64(1)}},
		fieldTerm: bson.M{"$ifNull": bson.A{"$" + fieldTerm, s.term}},
	}
	pipeline := bson.A{bson.M{"$replaceWith": bson.M{"$mergeObjects": bson.A{fields, meta}}}}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After).
		SetProjection(bson.M{fieldSeq: 1, fieldTerm: 1})
	var after bson.M
	if err := s.coll(collection).FindOneAndUpdate(ctx, bson.M{"_id": key}, pipeline, opts).Decode(&after); err != nil {
		return db.Token{}, &db.Error{Op: db.OpWrite, Err: err}
	}
	return tokenOf(after), nil
}

// Delete removes a document.
func (s *Store) Delete(ctx context.Context, collection, key string) error {
	res, err := s.coll(collection).DeleteOne(ctx, bson.M{"_id": key})
	if err != nil {
		return &db.Error{Op: db.OpDelete, Err: err}
	}
	if res.DeletedCount == 0 {
		return &db.Error{Op: db.OpDelete, Err: db.ErrKeyNotFound}
	}
	return nil
}

// DeleteByFilter removes every document matching the filters.
func (s *Store) DeleteByFilter(ctx context.Context, collection string, filters []db.Filter) (int64, error) {
	match, err := compileFilters(filters)
	if err != nil {
		return 0, &db.Error{Op: db.OpDeleteByFilter, Err: err}
	}
	res, err := s.coll(collection).DeleteMany(ctx, match)
	if err != nil {
		return 0, &db.Error{Op: db.OpDeleteByFilter, Err: err}
	}
	return res.DeletedCount, nil
}

// stripMeta removes the reserved members and re-encodes the document as JSON.
func stripMeta(m bson.M) ([]byte, db.Token, error) {
	tok := tokenOf(m)
	delete(m, "_id")
	delete(m, fieldSeq)
	delete(m, fieldTerm)
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, db.Token{}, fmt.Errorf("encode document: %w", err)
	}
	return raw, tok, nil
}

func tokenOf(m bson.M) db.Token {
	return db.Token{Seq: asInt64(m[fieldSeq]), Term: asInt64(m[fieldTerm])}
}

func asInt64(v any) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int32:
		return int64(t)
	case int:
		return int64(t)
	case float64:
		return int64(t)
	default:
		return 0
	}
}

func decodeFields(doc []byte) (bson.M, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return bson.M(m), nil
}
