// Package dataset persists the datasets collection. One document per
// released version; latest-version views collapse on the dataset id.
package dataset

import (
	"context"
	"errors"
	"fmt"

	"github.com/studycat-io/studycat/internal/db"
	"github.com/studycat-io/studycat/internal/domain"
)

const maxKeySet = 10000

// aggTotal names the cardinality aggregation that carries the collapsed
// pagination total.
const aggTotal = "total"

// store is the consumer interface for datasets (ISP).
type store interface {
	Get(ctx context.Context, collection, key string) ([]byte, db.Token, error)
	MultiGet(ctx context.Context, collection string, keys []string) (map[string][]byte, error)
	Create(ctx context.Context, collection, key string, doc []byte) (db.Token, error)
	Delete(ctx context.Context, collection, key string) error
	Search(ctx context.Context, collection string, q *db.SearchQuery) (*db.SearchResult, error)
}

// Hit is one dataset search hit with its relevance score.
type Hit struct {
	Dataset domain.Dataset
	Score   float64
}

// Page is one page of latest-version dataset hits. Total counts distinct
// dataset ids across the full filtered set, not raw version documents.
type Page struct {
	Hits  []Hit
	Total int64
}

// Repo persists datasets.
type Repo struct {
	store store
}

// New creates a dataset repository.
func New(s store) *Repo { return &Repo{store: s} }

// Get returns one dataset version by its "<datasetId>.<version>" key.
func (r *Repo) Get(ctx context.Context, key string) (domain.Dataset, error) {
	raw, _, err := r.store.Get(ctx, db.CollectionDatasets, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domain.Dataset{}, domain.ErrNotFound
		}
		return domain.Dataset{}, fmt.Errorf("get dataset %s: %w", key, err)
	}
	return decode(raw)
}

// MultiGet batch-resolves dataset versions; missing keys are silently absent.
func (r *Repo) MultiGet(ctx context.Context, keys []string) (map[string]domain.Dataset, error) {
	raws, err := r.store.MultiGet(ctx, db.CollectionDatasets, keys)
	if err != nil {
		return nil, fmt.Errorf("multi-get datasets: %w", err)
	}
	out := make(map[string]domain.Dataset, len(raws))
	for key, raw := range raws {
		d, err := decode(raw)
		if err != nil {
			return nil, err
		}
		out[key] = d
	}
	return out, nil
}

// Create inserts a new dataset version.
func (r *Repo) Create(ctx context.Context, d *domain.Dataset) error {
	raw, err := encode(d)
	if err != nil {
		return err
	}
	if _, err := r.store.Create(ctx, db.CollectionDatasets, d.Key(), raw); err != nil {
		if errors.Is(err, db.ErrKeyExists) {
			return fmt.Errorf("dataset %s exists: %w", d.Key(), domain.ErrConflict)
		}
		return fmt.Errorf("create dataset %s: %w", d.Key(), err)
	}
	return nil
}

// Delete removes one dataset version. Absent keys are not an error, so
// compensation paths can replay safely.
func (r *Repo) Delete(ctx context.Context, key string) error {
	if err := r.store.Delete(ctx, db.CollectionDatasets, key); err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil
		}
		return fmt.Errorf("delete dataset %s: %w", key, err)
	}
	return nil
}

// SearchLatest runs a filtered dataset query collapsed to the latest version
// per dataset id. The representative per group is the highest version
// ordinal, release date breaking ties.
func (r *Repo) SearchLatest(ctx context.Context, filters []db.Filter, sort []db.SortField, from, size int) (*Page, error) {
	q := &db.SearchQuery{
		Filters: filters,
		Sort:    sort,
		From:    from,
		Size:    size,
		Collapse: &db.Collapse{
			Field: FieldDatasetID,
			InnerSort: []db.SortField{
				{Field: FieldVersionOrdinal, Desc: true},
				{Field: FieldReleaseDate, Desc: true},
			},
		},
		Aggs: map[string]db.Agg{
			aggTotal: {Cardinality: &db.CardinalityAgg{Field: FieldDatasetID}},
		},
	}
	res, err := r.store.Search(ctx, db.CollectionDatasets, q)
	if err != nil {
		return nil, fmt.Errorf("search datasets: %w", err)
	}
	page := &Page{Hits: make([]Hit, 0, len(res.Hits))}
	for _, h := range res.Hits {
		d, err := decode(h.Source)
		if err != nil {
			return nil, err
		}
		page.Hits = append(page.Hits, Hit{Dataset: d, Score: h.Score})
	}
	if node, ok := res.Aggs[aggTotal]; ok {
		page.Total = node.Value
	}
	return page, nil
}

// Facets runs an aggregation-only query over the filtered set and returns
// the raw aggregation tree.
func (r *Repo) Facets(ctx context.Context, filters []db.Filter, aggs map[string]db.Agg) (db.AggTree, error) {
	q := &db.SearchQuery{Filters: filters, Aggs: aggs}
	res, err := r.store.Search(ctx, db.CollectionDatasets, q)
	if err != nil {
		return nil, fmt.Errorf("aggregate datasets: %w", err)
	}
	return res.Aggs, nil
}

// ResolveStudyKeys returns the distinct owning-study ids of every dataset
// version matching the filters.
func (r *Repo) ResolveStudyKeys(ctx context.Context, filters []db.Filter) ([]string, error) {
	q := &db.SearchQuery{
		Filters: filters,
		Aggs: map[string]db.Agg{
			"keys": {Terms: &db.TermsAgg{Field: FieldStudyID, Size: maxKeySet}},
		},
	}
	res, err := r.store.Search(ctx, db.CollectionDatasets, q)
	if err != nil {
		return nil, fmt.Errorf("resolve dataset study keys: %w", err)
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

// DeleteByStudy removes every dataset version owned by a study. Used by the
// physical cleanup behind logical study deletion.
func (r *Repo) DeleteByStudy(ctx context.Context, studyID string) error {
	keys, err := r.KeysByStudy(ctx, studyID)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := r.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

// KeysByDataset lists the storage keys of every stored version of one
// dataset id.
func (r *Repo) KeysByDataset(ctx context.Context, datasetID string) ([]string, error) {
	q := &db.SearchQuery{
		Filters: []db.Filter{db.Prefix{Field: db.KeyField, Values: []string{datasetID + "."}}},
		Aggs: map[string]db.Agg{
			"keys": {Terms: &db.TermsAgg{Field: db.KeyField, Size: maxKeySet}},
		},
	}
	res, err := r.store.Search(ctx, db.CollectionDatasets, q)
	if err != nil {
		return nil, fmt.Errorf("list versions of dataset %s: %w", datasetID, err)
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

// KeysByStudy lists the storage keys of every dataset version owned by a
// study.
func (r *Repo) KeysByStudy(ctx context.Context, studyID string) ([]string, error) {
	q := &db.SearchQuery{
		Filters: []db.Filter{db.Term{Field: FieldStudyID, Value: studyID}},
		Aggs: map[string]db.Agg{
			"keys": {Terms: &db.TermsAgg{Field: db.KeyField, Size: maxKeySet}},
		},
	}
	res, err := r.store.Search(ctx, db.CollectionDatasets, q)
	if err != nil {
		return nil, fmt.Errorf("list dataset keys for study %s: %w", studyID, err)
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
