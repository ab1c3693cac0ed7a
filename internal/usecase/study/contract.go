package study

import (
	"context"

	"github.com/studycat-io/studycat/internal/domain"
)

// StudyRepo is the study persistence surface this usecase consumes.
type StudyRepo interface {
	Get(ctx context.Context, id string) (domain.Study, domain.Token, error)
	Create(ctx context.Context, s *domain.Study) (domain.Token, error)
	Update(ctx context.Context, s *domain.Study, token domain.Token) (domain.Token, error)
	LastID(ctx context.Context) (string, error)
}

// VersionRepo is the study-version persistence surface.
type VersionRepo interface {
	Get(ctx context.Context, key string) (domain.StudyVersion, domain.Token, error)
	Create(ctx context.Context, v *domain.StudyVersion) (domain.Token, error)
	Delete(ctx context.Context, key string) error
}

// DatasetRepo resolves dataset references for the detail view and removes
// dataset documents when a study is deleted.
type DatasetRepo interface {
	MultiGet(ctx context.Context, keys []string) (map[string]domain.Dataset, error)
	DeleteByStudy(ctx context.Context, studyID string) error
}
