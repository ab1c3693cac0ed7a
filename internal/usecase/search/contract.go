package search

import (
	"context"

	"github.com/studycat-io/studycat/internal/db"
	"github.com/studycat-io/studycat/internal/domain"
	"github.com/studycat-io/studycat/internal/repository/dataset"
	"github.com/studycat-io/studycat/internal/repository/study"
)

// StudyRepo is the study persistence surface the orchestrator consumes.
type StudyRepo interface {
	Search(ctx context.Context, q *db.SearchQuery) ([]study.Hit, int64, error)
	ResolveKeys(ctx context.Context, filters []db.Filter) ([]string, error)
}

// VersionRepo resolves study versions in batches.
type VersionRepo interface {
	MultiGet(ctx context.Context, keys []string) (map[string]domain.StudyVersion, error)
}

// DatasetRepo is the dataset persistence surface the orchestrator consumes.
type DatasetRepo interface {
	SearchLatest(ctx context.Context, filters []db.Filter, sort []db.SortField, from, size int) (*dataset.Page, error)
	Facets(ctx context.Context, filters []db.Filter, aggs map[string]db.Agg) (db.AggTree, error)
	ResolveStudyKeys(ctx context.Context, filters []db.Filter) ([]string, error)
	MultiGet(ctx context.Context, keys []string) (map[string]domain.Dataset, error)
}
