package dataset

import (
	"context"

	"github.com/studycat-io/studycat/internal/domain"
)

// StudyRepo resolves the owning study for access and state checks.
type StudyRepo interface {
	Get(ctx context.Context, id string) (domain.Study, domain.Token, error)
}

// VersionRepo reads and rewrites the reference list of a study version.
type VersionRepo interface {
	Get(ctx context.Context, key string) (domain.StudyVersion, domain.Token, error)
	Update(ctx context.Context, v *domain.StudyVersion, token domain.Token) (domain.Token, error)
}

// DatasetRepo is the dataset persistence surface this usecase consumes.
type DatasetRepo interface {
	Get(ctx context.Context, key string) (domain.Dataset, error)
	Create(ctx context.Context, d *domain.Dataset) error
	Delete(ctx context.Context, key string) error
	KeysByDataset(ctx context.Context, datasetID string) ([]string, error)
}
