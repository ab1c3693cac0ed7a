// Package study implements the study lifecycle: creation with an atomically
// linked first version, detail reads, publication workflow transitions, and
// version appending.
package study

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/studycat-io/studycat/internal/domain"
	"github.com/studycat-io/studycat/internal/domain/workflow"
	"github.com/studycat-io/studycat/internal/metrics"
	"github.com/studycat-io/studycat/internal/usecase/compensate"
	"github.com/studycat-io/studycat/internal/usecase/visibility"
)

// allocAttempts bounds the id-allocation retry loop under concurrent
// creations.
const allocAttempts = 5

const dateLayout = "2006-01-02"

// Service implements the study operations.
type Service struct {
	studies  StudyRepo
	versions VersionRepo
	datasets DatasetRepo
	log      *zap.Logger
	now      func() time.Time
}

// New creates the study service.
func New(studies StudyRepo, versions VersionRepo, datasets DatasetRepo, log *zap.Logger) *Service {
	return &Service{
		studies:  studies,
		versions: versions,
		datasets: datasets,
		log:      log,
		now:      time.Now,
	}
}

func (s *Service) today() string { return s.now().UTC().Format(dateLayout) }

// CreateInput is the payload for study creation.
type CreateInput struct {
	Title    domain.Text
	Summary  domain.Text
	Provider domain.Text
	Owners   []string
}

// Create allocates the next free study id and creates a draft study with
// its v1 snapshot. The version document is written first; if the study
// write then fails, the version is compensated away.
func (s *Service) Create(ctx context.Context, actor domain.Actor, in CreateInput) (*Created, error) {
	if actor.IsAnonymous() {
		return nil, fmt.Errorf("study creation requires authentication: %w", domain.ErrForbidden)
	}
	owners := in.Owners
	if len(owners) == 0 {
		owners = []string{actor.ID}
	}

	next, err := s.nextIDNumber(ctx)
	if err != nil {
		return nil, err
	}
	today := s.today()

	for attempt := 0; attempt < allocAttempts; attempt++ {
		id := fmt.Sprintf("hum%04d", next+attempt)
		st, err := domain.NewStudy(id, in.Title, in.Summary, in.Provider, owners)
		if err != nil {
			return nil, err
		}
		v, err := domain.NewStudyVersion(id, domain.FirstVersionLabel, today, domain.Text{}, nil)
		if err != nil {
			return nil, err
		}
		linked := st.WithVersionLinked(v.ID(), v.Label(), today)

		if _, err := s.versions.Create(ctx, &v); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				continue // id taken by a concurrent creation
			}
			return nil, err
		}

		comp := compensate.New(s.log, "createStudy")
		comp.Add("delete version "+v.ID(), func(ctx context.Context) error {
			return s.versions.Delete(ctx, v.ID())
		})
		tok, err := s.studies.Create(ctx, &linked)
		if err != nil {
			comp.Run(ctx)
			if errors.Is(err, domain.ErrConflict) {
				continue
			}
			return nil, err
		}
		return &Created{ID: id, Status: string(linked.Status()), Token: tok.String()}, nil
	}
	return nil, fmt.Errorf("study id allocation exhausted after %d attempts: %w", allocAttempts, domain.ErrConflict)
}

// nextIDNumber derives the next id ordinal from the highest allocated id.
func (s *Service) nextIDNumber(ctx context.Context) (int, error) {
	last, err := s.studies.LastID(ctx)
	if err != nil {
		return 0, err
	}
	if last == "" {
		return 1, nil
	}
	n, err := strconv.Atoi(strings.TrimPrefix(last, "hum"))
	if err != nil {
		return 0, fmt.Errorf("malformed allocated study id %q: %w", last, domain.ErrUpstream)
	}
	return n + 1, nil
}

// GetDetail returns the study at one version, defaulting to the latest.
// Visibility denial renders as not-found.
func (s *Service) GetDetail(ctx context.Context, actor domain.Actor, id, versionLabel, lang string) (*Detail, error) {
	st, tok, err := s.studies.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !visibility.CanAccess(actor, &st) {
		return nil, domain.ErrNotFound
	}

	label := versionLabel
	if label == "" {
		label = st.LatestVersion()
	}
	detail := &Detail{
		ID:            st.ID(),
		Title:         st.Title().Resolve(lang),
		Summary:       st.Summary().Resolve(lang),
		Provider:      st.Provider().Resolve(lang),
		Status:        string(st.Status()),
		Owners:        st.Owners(),
		Versions:      st.Versions(),
		LatestVersion: st.LatestVersion(),
		PublishedAt:   st.PublishedAt(),
		UpdatedAt:     st.UpdatedAt(),
		Token:         tok.String(),
	}
	if label == "" {
		return detail, nil
	}
	if _, err := domain.ParseVersionLabel(label); err != nil {
		return nil, err
	}

	v, _, err := s.versions.Get(ctx, st.VersionKey(label))
	if err != nil {
		return nil, err
	}
	resolved := map[string]domain.Dataset{}
	if refs := v.Datasets(); len(refs) > 0 {
		keys := make([]string, 0, len(refs))
		for _, ref := range refs {
			keys = append(keys, ref.Key())
		}
		resolved, err = s.datasets.MultiGet(ctx, keys)
		if err != nil {
			return nil, err
		}
	}
	detail.Version = versionDetail(&v, resolved, lang)
	return detail, nil
}

// PerformTransition applies one workflow action under the caller-supplied
// version token. The transition is validated against fresh state before any
// write; a stale token surfaces as Conflict with the current token attached,
// and is never retried here.
func (s *Service) PerformTransition(ctx context.Context, actor domain.Actor, id, action string, token domain.Token) (*TransitionResult, error) {
	act, err := workflow.ParseAction(action)
	if err != nil {
		return nil, err
	}
	st, _, err := s.studies.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !visibility.CanAccess(actor, &st) {
		return nil, domain.ErrNotFound
	}
	if err := workflow.Validate(actor, &st, act); err != nil {
		metrics.WorkflowTransitionsTotal.WithLabelValues(string(act), transitionOutcome(err)).Inc()
		return nil, err
	}
	target, err := workflow.Target(act)
	if err != nil {
		return nil, err
	}

	updated := st.WithStatus(target, s.today())
	tok, err := s.studies.Update(ctx, &updated, token)
	if err != nil {
		metrics.WorkflowTransitionsTotal.WithLabelValues(string(act), transitionOutcome(err)).Inc()
		return nil, err
	}
	metrics.WorkflowTransitionsTotal.WithLabelValues(string(act), "ok").Inc()
	s.log.Info("study transition",
		zap.String("study", id),
		zap.String("action", string(act)),
		zap.String("status", string(target)))

	// Deletion is logical for the study but physical for its dataset
	// documents. The transition has committed, so a cleanup failure leaves
	// orphans (already invisible, their owner is deleted) rather than
	// failing the request.
	if target == domain.StatusDeleted {
		if err := s.datasets.DeleteByStudy(ctx, id); err != nil {
			s.log.Warn("dataset cleanup after study deletion failed",
				zap.String("study", id), zap.Error(err))
		}
	}
	return &TransitionResult{ID: id, Status: string(target), Token: tok.String()}, nil
}

// transitionOutcome classifies a transition failure for metrics.
func transitionOutcome(err error) string {
	switch {
	case errors.Is(err, domain.ErrStateMismatch):
		return "state"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	default:
		return "error"
	}
}

// VersionInput is the payload for appending a study version.
type VersionInput struct {
	ReleaseDate string
	ReleaseNote domain.Text
	// Datasets overrides the new snapshot's references; nil copies the
	// prior version's.
	Datasets []domain.DatasetRef
	// Lang selects the projection language of the returned detail.
	Lang string
}

// CreateVersion appends the next version snapshot to a draft study. The
// version document is written first; if advancing the study's link list
// fails, the snapshot is compensated away.
func (s *Service) CreateVersion(ctx context.Context, actor domain.Actor, id string, in VersionInput) (*Detail, error) {
	st, tok, err := s.studies.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !visibility.CanAccess(actor, &st) {
		return nil, domain.ErrNotFound
	}
	if !actor.Admin && !st.IsOwner(actor.ID) {
		return nil, fmt.Errorf("version creation: %w", domain.ErrForbidden)
	}
	if st.Status() != domain.StatusDraft {
		return nil, &domain.StateMismatchError{Action: "createVersion", Want: domain.StatusDraft, Got: st.Status()}
	}

	label := domain.FirstVersionLabel
	refs := in.Datasets
	if latest := st.LatestVersion(); latest != "" {
		label, err = domain.NextVersionLabel(latest)
		if err != nil {
			return nil, err
		}
		if refs == nil {
			prior, _, err := s.versions.Get(ctx, st.LatestVersionKey())
			if err != nil {
				return nil, err
			}
			refs = prior.Datasets()
		}
	}

	releaseDate := in.ReleaseDate
	if releaseDate == "" {
		releaseDate = s.today()
	}
	v, err := domain.NewStudyVersion(id, label, releaseDate, in.ReleaseNote, refs)
	if err != nil {
		return nil, err
	}
	if _, err := s.versions.Create(ctx, &v); err != nil {
		return nil, err
	}

	comp := compensate.New(s.log, "createVersion")
	comp.Add("delete version "+v.ID(), func(ctx context.Context) error {
		return s.versions.Delete(ctx, v.ID())
	})
	linked := st.WithVersionLinked(v.ID(), label, s.today())
	if _, err := s.studies.Update(ctx, &linked, tok); err != nil {
		comp.Run(ctx)
		return nil, err
	}
	return s.GetDetail(ctx, actor, id, label, in.Lang)
}
