// Package dataset implements the dataset lifecycle under a draft study:
// creation linked into the latest version's reference list, physical
// deletion with unlink, and atomic dataset-id rename.
package dataset

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/studycat-io/studycat/internal/domain"
	"github.com/studycat-io/studycat/internal/usecase/compensate"
	"github.com/studycat-io/studycat/internal/usecase/visibility"
)

const dateLayout = "2006-01-02"

// Service implements the dataset operations.
type Service struct {
	studies  StudyRepo
	versions VersionRepo
	datasets DatasetRepo
	log      *zap.Logger
	now      func() time.Time
}

// New creates the dataset service.
func New(studies StudyRepo, versions VersionRepo, datasets DatasetRepo, log *zap.Logger) *Service {
	return &Service{
		studies:  studies,
		versions: versions,
		datasets: datasets,
		log:      log,
		now:      time.Now,
	}
}

// editable loads the study and enforces the shared mutation preconditions:
// the actor can see it, may edit it, and it is still a draft.
func (s *Service) editable(ctx context.Context, actor domain.Actor, studyID, action string) (domain.Study, error) {
	st, _, err := s.studies.Get(ctx, studyID)
	if err != nil {
		return domain.Study{}, err
	}
	if !visibility.CanAccess(actor, &st) {
		return domain.Study{}, domain.ErrNotFound
	}
	if !actor.Admin && !st.IsOwner(actor.ID) {
		return domain.Study{}, fmt.Errorf("%s: %w", action, domain.ErrForbidden)
	}
	if st.Status() != domain.StatusDraft {
		return domain.Study{}, &domain.StateMismatchError{Action: action, Want: domain.StatusDraft, Got: st.Status()}
	}
	if st.LatestVersionKey() == "" {
		return domain.Study{}, fmt.Errorf("study %s has no version to link against: %w", studyID, domain.ErrUpstream)
	}
	return st, nil
}

// CreateInput is the payload for dataset creation.
type CreateInput struct {
	StudyID        string
	DatasetID      string
	Version        string // defaults to v1
	Name           domain.Text
	TypeOfData     string
	AccessCriteria domain.AccessCriteria
	ReleaseDate    string
	Experiments    []domain.Experiment
}

// Created reports a created dataset release.
type Created struct {
	DatasetID    string `json:"datasetId"`
	Version      string `json:"version"`
	StudyID      string `json:"studyId"`
	StudyVersion string `json:"studyVersion"`
}

// Create writes a dataset release under a draft study and links it into the
// latest version's reference list. A dataset id already referenced gets its
// reference advanced to the new release instead of a second entry. If the
// link update fails, the document is compensated away.
func (s *Service) Create(ctx context.Context, actor domain.Actor, in CreateInput) (*Created, error) {
	st, err := s.editable(ctx, actor, in.StudyID, "createDataset")
	if err != nil {
		return nil, err
	}
	if in.DatasetID == "" {
		return nil, fmt.Errorf("dataset id is required: %w", domain.ErrValidation)
	}

	version := in.Version
	if version == "" {
		version = domain.FirstVersionLabel
	}
	name := in.Name
	if name.IsEmpty() {
		// Auto-name after the id when the caller supplies none.
		name = domain.Text{EN: in.DatasetID}
	}
	releaseDate := in.ReleaseDate
	if releaseDate == "" {
		releaseDate = s.now().UTC().Format(dateLayout)
	}

	d, err := domain.NewDataset(
		in.DatasetID, version, st.ID(), st.LatestVersionKey(),
		name, in.TypeOfData, in.AccessCriteria, releaseDate, in.Experiments,
	)
	if err != nil {
		return nil, err
	}
	if err := s.datasets.Create(ctx, &d); err != nil {
		return nil, err
	}

	comp := compensate.New(s.log, "createDataset")
	comp.Add("delete dataset "+d.Key(), func(ctx context.Context) error {
		return s.datasets.Delete(ctx, d.Key())
	})
	if err := s.link(ctx, st.LatestVersionKey(), d.Ref()); err != nil {
		comp.Run(ctx)
		return nil, err
	}
	return &Created{
		DatasetID:    d.DatasetID(),
		Version:      d.Version(),
		StudyID:      st.ID(),
		StudyVersion: st.LatestVersionKey(),
	}, nil
}

// link advances or appends the reference for ref.DatasetID in the version's
// list, under the version document's own token.
func (s *Service) link(ctx context.Context, versionKey string, ref domain.DatasetRef) error {
	v, vtok, err := s.versions.Get(ctx, versionKey)
	if err != nil {
		return err
	}
	refs := make([]domain.DatasetRef, 0, len(v.Datasets())+1)
	replaced := false
	for _, r := range v.Datasets() {
		if r.DatasetID == ref.DatasetID {
			refs = append(refs, ref)
			replaced = true
			continue
		}
		refs = append(refs, r)
	}
	if !replaced {
		refs = append(refs, ref)
	}
	updated := v.WithDatasets(refs)
	_, err = s.versions.Update(ctx, &updated, vtok)
	return err
}

// Delete physically removes a dataset from a draft study. The reference is
// unlinked first; if a document delete then fails, the reference is
// relinked so the catalog never points at a half-removed state.
// version narrows the removal to one release; empty removes every release
// of the id.
func (s *Service) Delete(ctx context.Context, actor domain.Actor, studyID, datasetID, version string) error {
	st, err := s.editable(ctx, actor, studyID, "deleteDataset")
	if err != nil {
		return err
	}

	v, vtok, err := s.versions.Get(ctx, st.LatestVersionKey())
	if err != nil {
		return err
	}
	if !v.HasDataset(datasetID) {
		return domain.ErrNotFound
	}
	prior := v.Datasets()
	refs := make([]domain.DatasetRef, 0, len(prior))
	for _, r := range prior {
		if r.DatasetID == datasetID {
			continue
		}
		refs = append(refs, r)
	}
	unlinked := v.WithDatasets(refs)
	newTok, err := s.versions.Update(ctx, &unlinked, vtok)
	if err != nil {
		return err
	}

	comp := compensate.New(s.log, "deleteDataset")
	comp.Add("relink dataset "+datasetID, func(ctx context.Context) error {
		restored := v.WithDatasets(prior)
		_, err := s.versions.Update(ctx, &restored, newTok)
		return err
	})

	keys := []string{datasetID + "." + version}
	if version == "" {
		keys, err = s.datasets.KeysByDataset(ctx, datasetID)
		if err != nil {
			comp.Run(ctx)
			return err
		}
	}
	for _, key := range keys {
		if err := s.datasets.Delete(ctx, key); err != nil {
			comp.Run(ctx)
			return err
		}
	}
	return nil
}

// Rename moves every stored release of a dataset id to a new id and rewrites
// the latest version's reference. The sequence is create-under-new-id,
// update reference, delete-old-id; a failure before the old documents are
// deleted rolls the new documents back, so the catalog never shows a
// half-renamed dataset.
func (s *Service) Rename(ctx context.Context, actor domain.Actor, studyID, oldID, newID string) error {
	st, err := s.editable(ctx, actor, studyID, "renameDataset")
	if err != nil {
		return err
	}
	if newID == "" || newID == oldID {
		return fmt.Errorf("rename target id %q: %w", newID, domain.ErrValidation)
	}

	oldKeys, err := s.datasets.KeysByDataset(ctx, oldID)
	if err != nil {
		return err
	}
	if len(oldKeys) == 0 {
		return domain.ErrNotFound
	}

	comp := compensate.New(s.log, "renameDataset")
	for _, key := range oldKeys {
		d, err := s.datasets.Get(ctx, key)
		if err != nil {
			comp.Run(ctx)
			return err
		}
		renamed := d.WithID(newID)
		if err := s.datasets.Create(ctx, &renamed); err != nil {
			comp.Run(ctx)
			return err
		}
		comp.Add("delete dataset "+renamed.Key(), func(ctx context.Context) error {
			return s.datasets.Delete(ctx, renamed.Key())
		})
	}

	v, vtok, err := s.versions.Get(ctx, st.LatestVersionKey())
	if err != nil {
		comp.Run(ctx)
		return err
	}
	if v.HasDataset(oldID) {
		refs := make([]domain.DatasetRef, 0, len(v.Datasets()))
		for _, r := range v.Datasets() {
			if r.DatasetID == oldID {
				r.DatasetID = newID
			}
			refs = append(refs, r)
		}
		relinked := v.WithDatasets(refs)
		if _, err := s.versions.Update(ctx, &relinked, vtok); err != nil {
			comp.Run(ctx)
			return err
		}
	}

	// Past the commit point: the references now name the new id. Old-id
	// documents are removed best effort; a leftover is an orphan, not a
	// correctness problem for readers.
	for _, key := range oldKeys {
		if err := s.datasets.Delete(ctx, key); err != nil {
			s.log.Warn("rename cleanup failed, old dataset document orphaned",
				zap.String("key", key), zap.Error(err))
		}
	}
	s.log.Info("dataset renamed",
		zap.String("study", studyID),
		zap.String("from", oldID),
		zap.String("to", newID))
	return nil
}
