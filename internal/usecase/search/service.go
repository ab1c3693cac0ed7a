// Package search is the cross-collection search orchestrator. Studies and
// datasets live in independently indexed collections with no native join, so
// cross-collection constraints run as an explicit two-stage plan: resolve a
// key set on one collection, then filter the other by it.
package search

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/studycat-io/studycat/internal/db"
	"github.com/studycat-io/studycat/internal/domain"
	"github.com/studycat-io/studycat/internal/metrics"
	"github.com/studycat-io/studycat/internal/repository/dataset"
	"github.com/studycat-io/studycat/internal/repository/study"
	"github.com/studycat-io/studycat/internal/usecase/visibility"
)

// observeStage records the duration of one plan stage.
func observeStage(entry, stage string, start time.Time) {
	metrics.SearchStageDuration.WithLabelValues(entry, stage).Observe(time.Since(start).Seconds())
}

// Service orchestrates federated search across the study and dataset
// collections.
type Service struct {
	studies  StudyRepo
	versions VersionRepo
	datasets DatasetRepo
	log      *zap.Logger
}

// New creates the search orchestrator.
func New(studies StudyRepo, versions VersionRepo, datasets DatasetRepo, log *zap.Logger) *Service {
	return &Service{studies: studies, versions: versions, datasets: datasets, log: log}
}

// SearchDatasets returns the latest version of every dataset matching the
// params and visible to the actor, with an optional facet breakdown over the
// same filter set.
func (s *Service) SearchDatasets(ctx context.Context, actor domain.Actor, p *Params) (*DatasetResult, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}

	// Stage 1: visibility. Dataset documents carry no status, so non-admin
	// actors constrain by the owning-study key set.
	var visible plan
	if f := visibility.StatusFilter(actor); f != nil {
		start := time.Now()
		keys, err := s.studies.ResolveKeys(ctx, []db.Filter{f})
		if err != nil {
			return nil, err
		}
		observeStage("datasets", "resolve", start)
		visible.resolve(keys)
	}
	if visible.shortCircuit() {
		metrics.SearchShortCircuitTotal.WithLabelValues("datasets").Inc()
		s.log.Debug("dataset search: no visible studies", zap.String("actor", actor.ID))
		return emptyDatasetResult(p), nil
	}

	filters := buildDatasetFilters(p, true)
	if visible.resolved {
		filters = append(filters, db.Terms{Field: dataset.FieldStudyID, Values: visible.keys})
	}

	// Stage 2: the collapse query and the facet aggregation are independent
	// read-only legs over the same filter set, so they run concurrently.
	var (
		page   *dataset.Page
		facets map[string][]FacetBucket
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer observeStage("datasets", "fetch", time.Now())
		var err error
		page, err = s.datasets.SearchLatest(gctx, filters, datasetSort(p), p.From, p.Size)
		return err
	})
	if p.WithFacets {
		g.Go(func() error {
			defer observeStage("datasets", "facets", time.Now())
			tree, err := s.datasets.Facets(gctx, filters, buildFacetAggs())
			if err != nil {
				return err
			}
			facets = extractFacets(tree)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	data := make([]DatasetView, 0, len(page.Hits))
	for i := range page.Hits {
		data = append(data, datasetView(&page.Hits[i].Dataset, p.Lang))
	}
	return &DatasetResult{
		Data:       data,
		Pagination: Pagination{Total: page.Total, From: p.From, Size: p.Size},
		Facets:     facets,
	}, nil
}

// SearchStudies returns the studies matching the params and visible to the
// actor, denormalized over their latest version's datasets. Facets always
// describe dataset attributes, so they come from a second, dataset-scoped
// aggregation restricted to the matching study keys.
func (s *Service) SearchStudies(ctx context.Context, actor domain.Actor, p *Params) (*StudyResult, error) {
	p.Normalize()
	if err := p.Validate(); err != nil {
		return nil, err
	}

	// Stage 1: dataset pre-pass. Any dataset-scoped filter narrows the study
	// set to owners of at least one matching dataset.
	var owners plan
	if p.HasDatasetFilters() {
		start := time.Now()
		keys, err := s.datasets.ResolveStudyKeys(ctx, buildDatasetFilters(p, false))
		if err != nil {
			return nil, err
		}
		observeStage("studies", "resolve", start)
		owners.resolve(keys)
	}
	if owners.shortCircuit() {
		metrics.SearchShortCircuitTotal.WithLabelValues("studies").Inc()
		s.log.Debug("study search: no datasets match", zap.String("actor", actor.ID))
		return emptyStudyResult(p), nil
	}

	filters := buildStudyFilters(p)
	if f := visibility.StatusFilter(actor); f != nil {
		filters = append(filters, f)
	}
	if owners.resolved {
		filters = append(filters, db.Terms{Field: study.FieldID, Values: owners.keys})
	}

	var (
		data   []StudySummary
		total  int64
		facets map[string][]FacetBucket
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer observeStage("studies", "fetch", time.Now())
		hits, t, err := s.studies.Search(gctx, &db.SearchQuery{
			Filters: filters,
			Sort:    studySort(p),
			From:    p.From,
			Size:    p.Size,
		})
		if err != nil {
			return err
		}
		total = t
		data, err = s.summarize(gctx, hits, p.Lang)
		return err
	})
	if p.WithFacets {
		g.Go(func() error {
			defer observeStage("studies", "facets", time.Now())
			matched, err := s.studies.ResolveKeys(gctx, filters)
			if err != nil {
				return err
			}
			if len(matched) == 0 {
				return nil
			}
			dsFilters := append(buildDatasetFilters(p, false),
				db.Terms{Field: dataset.FieldStudyID, Values: matched})
			tree, err := s.datasets.Facets(gctx, dsFilters, buildFacetAggs())
			if err != nil {
				return err
			}
			facets = extractFacets(tree)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &StudyResult{
		Data:       data,
		Pagination: Pagination{Total: total, From: p.From, Size: p.Size},
		Facets:     facets,
	}, nil
}

// summarize batch-resolves the hits' latest versions and their dataset
// references, then projects each study into a single-language summary.
// Broken references are filtered here, never rejected.
func (s *Service) summarize(ctx context.Context, hits []study.Hit, lang string) ([]StudySummary, error) {
	versionKeys := make([]string, 0, len(hits))
	for i := range hits {
		if k := hits[i].Study.LatestVersionKey(); k != "" {
			versionKeys = append(versionKeys, k)
		}
	}
	versions, err := s.versions.MultiGet(ctx, versionKeys)
	if err != nil {
		return nil, err
	}

	var datasetKeys []string
	for _, v := range versions {
		for _, ref := range v.Datasets() {
			datasetKeys = append(datasetKeys, ref.Key())
		}
	}
	resolved := map[string]domain.Dataset{}
	if len(datasetKeys) > 0 {
		resolved, err = s.datasets.MultiGet(ctx, datasetKeys)
		if err != nil {
			return nil, err
		}
	}

	out := make([]StudySummary, 0, len(hits))
	for i := range hits {
		st := &hits[i].Study
		var ds []domain.Dataset
		if v, ok := versions[st.LatestVersionKey()]; ok {
			for _, ref := range v.Datasets() {
				if d, ok := resolved[ref.Key()]; ok {
					ds = append(ds, d)
				}
			}
		}
		out = append(out, studySummary(st, ds, lang))
	}
	return out, nil
}

func emptyDatasetResult(p *Params) *DatasetResult {
	return &DatasetResult{
		Data:       []DatasetView{},
		Pagination: Pagination{From: p.From, Size: p.Size},
	}
}

func emptyStudyResult(p *Params) *StudyResult {
	return &StudyResult{
		Data:       []StudySummary{},
		Pagination: Pagination{From: p.From, Size: p.Size},
	}
}
