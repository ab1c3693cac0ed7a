package dataset

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/studycat-io/studycat/internal/domain"
)

// --- Mocks ---

type mockStudies struct {
	study  domain.Study
	token  domain.Token
	getErr error
}

func (m *mockStudies) Get(_ context.Context, _ string) (domain.Study, domain.Token, error) {
	return m.study, m.token, m.getErr
}

type mockVersions struct {
	version domain.StudyVersion
	token   domain.Token
	getErr  error

	updated   []domain.StudyVersion
	updateErr error
}

func (m *mockVersions) Get(_ context.Context, _ string) (domain.StudyVersion, domain.Token, error) {
	return m.version, m.token, m.getErr
}

func (m *mockVersions) Update(_ context.Context, v *domain.StudyVersion, token domain.Token) (domain.Token, error) {
	if m.updateErr != nil {
		return domain.Token{}, m.updateErr
	}
	m.updated = append(m.updated, *v)
	return domain.Token{Seq: token.Seq + 1, Term: token.Term}, nil
}

type mockDatasets struct {
	docs       map[string]domain.Dataset
	createErrs map[string]error // keyed by dataset key
	deleteErrs map[string]error
	deleted    []string
}

func newMockDatasets(docs ...domain.Dataset) *mockDatasets {
	m := &mockDatasets{docs: make(map[string]domain.Dataset)}
	for _, d := range docs {
		m.docs[d.Key()] = d
	}
	return m
}

func (m *mockDatasets) Get(_ context.Context, key string) (domain.Dataset, error) {
	d, ok := m.docs[key]
	if !ok {
		return domain.Dataset{}, domain.ErrNotFound
	}
	return d, nil
}

func (m *mockDatasets) Create(_ context.Context, d *domain.Dataset) error {
	if err := m.createErrs[d.Key()]; err != nil {
		return err
	}
	if _, ok := m.docs[d.Key()]; ok {
		return domain.ErrConflict
	}
	m.docs[d.Key()] = *d
	return nil
}

func (m *mockDatasets) Delete(_ context.Context, key string) error {
	if err := m.deleteErrs[key]; err != nil {
		return err
	}
	m.deleted = append(m.deleted, key)
	delete(m.docs, key)
	return nil
}

func (m *mockDatasets) KeysByDataset(_ context.Context, datasetID string) ([]string, error) {
	var keys []string
	for k := range m.docs {
		if strings.HasPrefix(k, datasetID+".") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// --- Helpers ---

var owner = domain.Actor{ID: "owner@org"}

func draftStudy(t *testing.T) domain.Study {
	t.Helper()
	return domain.ReconstructStudy(
		"hum0007", domain.Text{EN: "Liver cohort"}, domain.Text{}, domain.Text{},
		domain.StatusDraft, []string{"owner@org"}, []string{"hum0007.v1"}, "v1", "", "2024-01-01",
	)
}

func makeVersion(t *testing.T, refs ...domain.DatasetRef) domain.StudyVersion {
	t.Helper()
	v, err := domain.NewStudyVersion("hum0007", "v1", "2024-01-01", domain.Text{}, refs)
	if err != nil {
		t.Fatalf("NewStudyVersion: %v", err)
	}
	return v
}

func makeDataset(t *testing.T, id, version string) domain.Dataset {
	t.Helper()
	d, err := domain.NewDataset(id, version, "hum0007", "hum0007.v1",
		domain.Text{EN: id}, "RNA-seq", domain.AccessOpen, "2024-01-01", nil)
	if err != nil {
		t.Fatalf("NewDataset: %v", err)
	}
	return d
}

func newService(studies *mockStudies, versions *mockVersions, datasets *mockDatasets) *Service {
	svc := New(studies, versions, datasets, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return svc
}

// --- Create ---

func TestCreate_LinksIntoLatestVersion(t *testing.T) {
	studies := &mockStudies{study: draftStudy(t)}
	versions := &mockVersions{version: makeVersion(t)}
	datasets := newMockDatasets()
	svc := newService(studies, versions, datasets)

	created, err := svc.Create(context.Background(), owner, CreateInput{
		StudyID:        "hum0007",
		DatasetID:      "rna",
		TypeOfData:     "RNA-seq",
		AccessCriteria: domain.AccessOpen,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.Version != "v1" {
		t.Errorf("expected default version v1, got %s", created.Version)
	}
	if created.StudyVersion != "hum0007.v1" {
		t.Errorf("expected link target hum0007.v1, got %s", created.StudyVersion)
	}

	d, ok := datasets.docs["rna.v1"]
	if !ok {
		t.Fatal("expected dataset document rna.v1")
	}
	if d.Name().EN != "rna" {
		t.Errorf("expected auto-name after the id, got %q", d.Name().EN)
	}
	if d.ReleaseDate() != "2024-06-01" {
		t.Errorf("expected today's release date, got %s", d.ReleaseDate())
	}

	want := []domain.DatasetRef{{DatasetID: "rna", Version: "v1"}}
	if diff := cmp.Diff(want, versions.updated[0].Datasets()); diff != "" {
		t.Errorf("linked references mismatch (-want +got):\n%s", diff)
	}
}

func TestCreate_AdvancesExistingReference(t *testing.T) {
	studies := &mockStudies{study: draftStudy(t)}
	versions := &mockVersions{version: makeVersion(t,
		domain.DatasetRef{DatasetID: "rna", Version: "v1"},
		domain.DatasetRef{DatasetID: "wgs", Version: "v1"},
	)}
	datasets := newMockDatasets(makeDataset(t, "rna", "v1"))
	svc := newService(studies, versions, datasets)

	_, err := svc.Create(context.Background(), owner, CreateInput{
		StudyID:        "hum0007",
		DatasetID:      "rna",
		Version:        "v2",
		AccessCriteria: domain.AccessOpen,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []domain.DatasetRef{
		{DatasetID: "rna", Version: "v2"},
		{DatasetID: "wgs", Version: "v1"},
	}
	if diff := cmp.Diff(want, versions.updated[0].Datasets()); diff != "" {
		t.Errorf("references mismatch (-want +got):\n%s", diff)
	}
}

func TestCreate_CompensatesDocumentOnLinkFailure(t *testing.T) {
	boom := errors.New("link failed")
	studies := &mockStudies{study: draftStudy(t)}
	versions := &mockVersions{version: makeVersion(t), updateErr: boom}
	datasets := newMockDatasets()
	svc := newService(studies, versions, datasets)

	_, err := svc.Create(context.Background(), owner, CreateInput{
		StudyID:        "hum0007",
		DatasetID:      "rna",
		AccessCriteria: domain.AccessOpen,
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the link failure, got %v", err)
	}
	if _, ok := datasets.docs["rna.v1"]; ok {
		t.Error("the orphaned document must be compensated away")
	}
}

func TestCreate_RequiresDraftStudy(t *testing.T) {
	st := draftStudy(t)
	studies := &mockStudies{study: st.WithStatus(domain.StatusPublished, "2024-05-01")}
	svc := newService(studies, &mockVersions{}, newMockDatasets())

	_, err := svc.Create(context.Background(), owner, CreateInput{StudyID: "hum0007", DatasetID: "rna", AccessCriteria: domain.AccessOpen})
	var mismatch *domain.StateMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected StateMismatchError, got %v", err)
	}
}

func TestCreate_StrangerSeesNotFound(t *testing.T) {
	studies := &mockStudies{study: draftStudy(t)}
	svc := newService(studies, &mockVersions{}, newMockDatasets())

	_, err := svc.Create(context.Background(), domain.Actor{ID: "stranger@org"}, CreateInput{
		StudyID: "hum0007", DatasetID: "rna", AccessCriteria: domain.AccessOpen,
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreate_MissingDatasetID(t *testing.T) {
	studies := &mockStudies{study: draftStudy(t)}
	svc := newService(studies, &mockVersions{version: makeVersion(t)}, newMockDatasets())

	_, err := svc.Create(context.Background(), owner, CreateInput{StudyID: "hum0007", AccessCriteria: domain.AccessOpen})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

// --- Delete ---

func TestDelete_UnlinksAndRemovesAllVersions(t *testing.T) {
	studies := &mockStudies{study: draftStudy(t)}
	versions := &mockVersions{version: makeVersion(t,
		domain.DatasetRef{DatasetID: "rna", Version: "v2"},
		domain.DatasetRef{DatasetID: "wgs", Version: "v1"},
	)}
	datasets := newMockDatasets(
		makeDataset(t, "rna", "v1"),
		makeDataset(t, "rna", "v2"),
		makeDataset(t, "wgs", "v1"),
	)
	svc := newService(studies, versions, datasets)

	if err := svc.Delete(context.Background(), owner, "hum0007", "rna", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []domain.DatasetRef{{DatasetID: "wgs", Version: "v1"}}
	if diff := cmp.Diff(want, versions.updated[0].Datasets()); diff != "" {
		t.Errorf("references mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"rna.v1", "rna.v2"}, datasets.deleted); diff != "" {
		t.Errorf("deleted keys mismatch (-want +got):\n%s", diff)
	}
	if _, ok := datasets.docs["wgs.v1"]; !ok {
		t.Error("unrelated dataset was removed")
	}
}

func TestDelete_SingleVersionOnly(t *testing.T) {
	studies := &mockStudies{study: draftStudy(t)}
	versions := &mockVersions{version: makeVersion(t, domain.DatasetRef{DatasetID: "rna", Version: "v2"})}
	datasets := newMockDatasets(makeDataset(t, "rna", "v1"), makeDataset(t, "rna", "v2"))
	svc := newService(studies, versions, datasets)

	if err := svc.Delete(context.Background(), owner, "hum0007", "rna", "v1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"rna.v1"}, datasets.deleted); diff != "" {
		t.Errorf("deleted keys mismatch (-want +got):\n%s", diff)
	}
}

func TestDelete_RelinksOnDocumentFailure(t *testing.T) {
	studies := &mockStudies{study: draftStudy(t)}
	prior := []domain.DatasetRef{{DatasetID: "rna", Version: "v1"}}
	versions := &mockVersions{version: makeVersion(t, prior...)}
	datasets := newMockDatasets(makeDataset(t, "rna", "v1"))
	datasets.deleteErrs = map[string]error{"rna.v1": errors.New("io failure")}
	svc := newService(studies, versions, datasets)

	err := svc.Delete(context.Background(), owner, "hum0007", "rna", "")
	if err == nil {
		t.Fatal("expected the delete failure to surface")
	}
	// First update unlinked, the compensation relinked the prior list.
	if len(versions.updated) != 2 {
		t.Fatalf("expected unlink + relink, got %d updates", len(versions.updated))
	}
	if diff := cmp.Diff(prior, versions.updated[1].Datasets()); diff != "" {
		t.Errorf("relinked references mismatch (-want +got):\n%s", diff)
	}
}

func TestDelete_UnreferencedDatasetIsNotFound(t *testing.T) {
	studies := &mockStudies{study: draftStudy(t)}
	versions := &mockVersions{version: makeVersion(t)}
	svc := newService(studies, versions, newMockDatasets())

	err := svc.Delete(context.Background(), owner, "hum0007", "rna", "")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// --- Rename ---

func TestRename_MovesAllVersionsAndReference(t *testing.T) {
	studies := &mockStudies{study: draftStudy(t)}
	versions := &mockVersions{version: makeVersion(t, domain.DatasetRef{DatasetID: "rna", Version: "v2"})}
	datasets := newMockDatasets(makeDataset(t, "rna", "v1"), makeDataset(t, "rna", "v2"))
	svc := newService(studies, versions, datasets)

	if err := svc.Rename(context.Background(), owner, "hum0007", "rna", "rna-liver"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, key := range []string{"rna-liver.v1", "rna-liver.v2"} {
		if _, ok := datasets.docs[key]; !ok {
			t.Errorf("expected document %s after rename", key)
		}
	}
	for _, key := range []string{"rna.v1", "rna.v2"} {
		if _, ok := datasets.docs[key]; ok {
			t.Errorf("old document %s must be removed", key)
		}
	}
	want := []domain.DatasetRef{{DatasetID: "rna-liver", Version: "v2"}}
	if diff := cmp.Diff(want, versions.updated[0].Datasets()); diff != "" {
		t.Errorf("references mismatch (-want +got):\n%s", diff)
	}
}

func TestRename_RollsBackOnReferenceFailure(t *testing.T) {
	studies := &mockStudies{study: draftStudy(t)}
	versions := &mockVersions{
		version:   makeVersion(t, domain.DatasetRef{DatasetID: "rna", Version: "v1"}),
		updateErr: errors.New("reference update failed"),
	}
	datasets := newMockDatasets(makeDataset(t, "rna", "v1"))
	svc := newService(studies, versions, datasets)

	err := svc.Rename(context.Background(), owner, "hum0007", "rna", "rna-liver")
	if err == nil {
		t.Fatal("expected the reference failure to surface")
	}
	if _, ok := datasets.docs["rna-liver.v1"]; ok {
		t.Error("the new-id document must be rolled back")
	}
	if _, ok := datasets.docs["rna.v1"]; !ok {
		t.Error("the old-id document must survive the rollback")
	}
}

func TestRename_LeavesOrphanWhenCleanupFails(t *testing.T) {
	studies := &mockStudies{study: draftStudy(t)}
	versions := &mockVersions{version: makeVersion(t, domain.DatasetRef{DatasetID: "rna", Version: "v1"})}
	datasets := newMockDatasets(makeDataset(t, "rna", "v1"))
	datasets.deleteErrs = map[string]error{"rna.v1": errors.New("io failure")}
	svc := newService(studies, versions, datasets)

	// Past the commit point the rename succeeds even if old-document cleanup
	// fails; readers follow the updated reference.
	if err := svc.Rename(context.Background(), owner, "hum0007", "rna", "rna-liver"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []domain.DatasetRef{{DatasetID: "rna-liver", Version: "v1"}}
	if diff := cmp.Diff(want, versions.updated[0].Datasets()); diff != "" {
		t.Errorf("references mismatch (-want +got):\n%s", diff)
	}
}

func TestRename_ValidatesTarget(t *testing.T) {
	studies := &mockStudies{study: draftStudy(t)}
	svc := newService(studies, &mockVersions{version: makeVersion(t)}, newMockDatasets())

	if err := svc.Rename(context.Background(), owner, "hum0007", "rna", ""); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation for empty target, got %v", err)
	}
	if err := svc.Rename(context.Background(), owner, "hum0007", "rna", "rna"); !errors.Is(err, domain.ErrValidation) {
		t.Errorf("expected ErrValidation for identical target, got %v", err)
	}
}

func TestRename_UnknownDatasetIsNotFound(t *testing.T) {
	studies := &mockStudies{study: draftStudy(t)}
	svc := newService(studies, &mockVersions{version: makeVersion(t)}, newMockDatasets())

	if err := svc.Rename(context.Background(), owner, "hum0007", "ghost", "ghost2"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
