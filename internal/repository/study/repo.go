// Package study persists the studies collection.
package study

import (
	"context"
	"errors"
	"fmt"

	"github.com/studycat-io/studycat/internal/db"
	"github.com/studycat-io/studycat/internal/domain"
)

// maxKeySet bounds keys-only resolution; beyond this the catalog would need
// a paged resolution pass.
const maxKeySet = 10000

// store is the consumer interface for studies (ISP).
type store interface {
	Get(ctx context.Context, collection, key string) ([]byte, db.Token, error)
	MultiGet(ctx context.Context, collection string, keys []string) (map[string][]byte, error)
	Create(ctx context.Context, collection, key string, doc []byte) (db.Token, error)
	Write(ctx context.Context, collection, key string, doc []byte, expected *db.Token) (db.Token, error)
	Search(ctx context.Context, collection string, q *db.SearchQuery) (*db.SearchResult, error)
}

// Hit is one study search hit with its relevance score.
type Hit struct {
	Study domain.Study
	Score float64
}

// Repo persists studies.
type Repo struct {
	store store
}

// New creates a study repository.
func New(s store) *Repo { return &Repo{store: s} }

// Get returns a study and its version token.
func (r *Repo) Get(ctx context.Context, id string) (domain.Study, domain.Token, error) {
	raw, tok, err := r.store.Get(ctx, db.CollectionStudies, id)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domain.Study{}, domain.Token{}, domain.ErrNotFound
		}
		return domain.Study{}, domain.Token{}, fmt.Errorf("get study %s: %w", id, err)
	}
	s, err := decode(raw)
	if err != nil {
		return domain.Study{}, domain.Token{}, err
	}
	return s, domain.Token(tok), nil
}

// MultiGet batch-resolves studies; missing ids are silently absent.
func (r *Repo) MultiGet(ctx context.Context, ids []string) (map[string]domain.Study, error) {
	raws, err := r.store.MultiGet(ctx, db.CollectionStudies, ids)
	if err != nil {
		return nil, fmt.Errorf("multi-get studies: %w", err)
	}
	out := make(map[string]domain.Study, len(raws))
	for id, raw := range raws {
		s, err := decode(raw)
		if err != nil {
			return nil, err
		}
		out[id] = s
	}
	return out, nil
}

// Create inserts a new study. A taken id surfaces as ErrConflict so the id
// allocator can retry with the next one.
func (r *Repo) Create(ctx context.Context, s *domain.Study) (domain.Token, error) {
	raw, err := encode(s)
	if err != nil {
		return domain.Token{}, err
	}
	tok, err := r.store.Create(ctx, db.CollectionStudies, s.ID(), raw)
	if err != nil {
		if errors.Is(err, db.ErrKeyExists) {
			return domain.Token{}, fmt.Errorf("study id %s taken: %w", s.ID(), domain.ErrConflict)
		}
		return domain.Token{}, fmt.Errorf("create study %s: %w", s.ID(), err)
	}
	return domain.Token(tok), nil
}

// Update replaces a study under its version token.
func (r *Repo) Update(ctx context.Context, s *domain.Study, token domain.Token) (domain.Token, error) {
	raw, err := encode(s)
	if err != nil {
		return domain.Token{}, err
	}
	expected := db.Token(token)
	tok, err := r.store.Write(ctx, db.CollectionStudies, s.ID(), raw, &expected)
	if err != nil {
		return domain.Token{}, mapWriteErr("update study "+s.ID(), err)
	}
	return domain.Token(tok), nil
}

// Search runs a filtered study query.
func (r *Repo) Search(ctx context.Context, q *db.SearchQuery) ([]Hit, int64, error) {
	res, err := r.store.Search(ctx, db.CollectionStudies, q)
	if err != nil {
		return nil, 0, fmt.Errorf("search studies: %w", err)
	}
	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		s, err := decode(h.Source)
		if err != nil {
			return nil, 0, err
		}
		hits = append(hits, Hit{Study: s, Score: h.Score})
	}
	return hits, res.Total, nil
}

// LastID returns the highest allocated study id, or "" when the collection
// is empty. The id allocator starts from here.
func (r *Repo) LastID(ctx context.Context) (string, error) {
	q := &db.SearchQuery{
		Sort: []db.SortField{{Field: db.KeyField, Desc: true}},
		Size: 1,
	}
	res, err := r.store.Search(ctx, db.CollectionStudies, q)
	if err != nil {
		return "", fmt.Errorf("resolve last study id: %w", err)
	}
	if len(res.Hits) == 0 {
		return "", nil
	}
	return res.Hits[0].Key, nil
}

// ResolveKeys returns the ids of every study matching the filters, via a
// keys-only terms aggregation (no hits are fetched).
func (r *Repo) ResolveKeys(ctx context.Context, filters []db.Filter) ([]string, error) {
	q := &db.SearchQuery{
		Filters: filters,
		Aggs: map[string]db.Agg{
			"keys": {Terms: &db.TermsAgg{Field: FieldID, Size: maxKeySet}},
		},
	}
	res, err := r.store.Search(ctx, db.CollectionStudies, q)
	if err != nil {
		return nil, fmt.Errorf("resolve study keys: %w", err)
	}
	node, ok := res.Aggs["keys"]
	if !ok {
		return nil, nil
	}
	keys := make([]string, 0, len(node.Buckets))
	for _, b := range node.Buckets {
		keys = append(keys, b.Key)
	}
	return keys, nil
}

// mapWriteErr translates store write failures into domain errors.
func mapWriteErr(op string, err error) error {
	var mismatch *db.TokenMismatchError
	if errors.As(err, &mismatch) {
		return domain.NewTokenConflict(domain.Token(mismatch.Current))
	}
	if errors.Is(err, db.ErrKeyNotFound) {
		return domain.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
