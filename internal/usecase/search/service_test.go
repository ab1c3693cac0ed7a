package search

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"github.com/studycat-io/studycat/internal/db/memory"
	"github.com/studycat-io/studycat/internal/domain"
	datasetrepo "github.com/studycat-io/studycat/internal/repository/dataset"
	studyrepo "github.com/studycat-io/studycat/internal/repository/study"
	versionrepo "github.com/studycat-io/studycat/internal/repository/version"
)

var (
	anon  = domain.Anonymous()
	owner = domain.Actor{ID: "owner@org"}
	admin = domain.Actor{ID: "root@org", Admin: true}
)

func boolPtr(b bool) *bool { return &b }

type fixture struct {
	svc      *Service
	studies  *studyrepo.Repo
	versions *versionrepo.Repo
	datasets *datasetrepo.Repo
}

func seedStudy(t *testing.T, f *fixture, id string, status domain.Status, ownerID, title, publishedAt string, refs []domain.DatasetRef) {
	t.Helper()
	ctx := context.Background()

	v, err := domain.NewStudyVersion(id, "v1", "2024-01-01", domain.Text{}, refs)
	if err != nil {
		t.Fatalf("NewStudyVersion: %v", err)
	}
	if _, err := f.versions.Create(ctx, &v); err != nil {
		t.Fatalf("create version: %v", err)
	}

	st := domain.ReconstructStudy(
		id, domain.Text{EN: title}, domain.Text{}, domain.Text{},
		status, []string{ownerID}, []string{v.ID()}, "v1", publishedAt, "2024-01-01",
	)
	if _, err := f.studies.Create(ctx, &st); err != nil {
		t.Fatalf("create study: %v", err)
	}
}

func seedDataset(t *testing.T, f *fixture, datasetID, version, studyID, name, typeOfData string,
	access domain.AccessCriteria, releaseDate string, exps []domain.Experiment) {
	t.Helper()
	d, err := domain.NewDataset(
		datasetID, version, studyID, studyID+".v1",
		domain.Text{EN: name}, typeOfData, access, releaseDate, exps,
	)
	if err != nil {
		t.Fatalf("NewDataset: %v", err)
	}
	if err := f.datasets.Create(context.Background(), &d); err != nil {
		t.Fatalf("create dataset: %v", err)
	}
}

// newFixture builds the catalog the tests query:
//
//	hum0001 published, owner@org  -> rna-liver (v1, v2)
//	hum0002 draft,     owner@org  -> wgs-heart (v1)
//	hum0003 published, other@org  -> sc-blood (v1) + one dangling reference
//	hum0004 draft,     other@org  -> atac (v1)
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	f := &fixture{
		studies:  studyrepo.New(store),
		versions: versionrepo.New(store),
		datasets: datasetrepo.New(store),
	}
	f.svc = New(f.studies, f.versions, f.datasets, zap.NewNop())

	seedStudy(t, f, "hum0001", domain.StatusPublished, "owner@org", "Liver cancer multi-omics", "2024-01-15",
		[]domain.DatasetRef{{DatasetID: "rna-liver", Version: "v2"}})
	seedStudy(t, f, "hum0002", domain.StatusDraft, "owner@org", "Heart imaging cohort", "",
		[]domain.DatasetRef{{DatasetID: "wgs-heart", Version: "v1"}})
	seedStudy(t, f, "hum0003", domain.StatusPublished, "other@org", "Blood cell atlas", "2024-02-20",
		[]domain.DatasetRef{{DatasetID: "sc-blood", Version: "v1"}, {DatasetID: "ghost", Version: "v1"}})
	seedStudy(t, f, "hum0004", domain.StatusDraft, "other@org", "Chromatin accessibility", "",
		[]domain.DatasetRef{{DatasetID: "atac", Version: "v1"}})

	seedDataset(t, f, "rna-liver", "v1", "hum0001", "Liver RNA profiling", "RNA-seq", domain.AccessOpen, "2023-06-01",
		[]domain.Experiment{
			{AssayType: "RNA-seq", Tissue: "liver", Platform: "IlluminaX", Tumor: true, ParticipantCount: 100,
				Diseases: []domain.Disease{{Code: "C22.0", Label: domain.Text{EN: "Liver cell carcinoma"}}}},
		})
	seedDataset(t, f, "rna-liver", "v2", "hum0001", "Liver RNA profiling", "RNA-seq", domain.AccessOpen, "2024-03-01",
		[]domain.Experiment{
			{AssayType: "RNA-seq", Tissue: "liver", Platform: "IlluminaX", Tumor: false, ParticipantCount: 120,
				Diseases: []domain.Disease{{Code: "C22.0", Label: domain.Text{EN: "Liver cell carcinoma"}}}},
			{AssayType: "RNA-seq", Tissue: "blood", Platform: "IlluminaX", Tumor: true, ParticipantCount: 30,
				Diseases: []domain.Disease{{Code: "C22.1", Label: domain.Text{EN: "Intrahepatic bile duct carcinoma"}}}},
		})
	seedDataset(t, f, "wgs-heart", "v1", "hum0002", "Cardiac genomes", "WGS", domain.AccessControlled, "2024-05-10",
		[]domain.Experiment{
			{AssayType: "WGS", Tissue: "heart", Platform: "NovaSeq", ParticipantCount: 200,
				Diseases: []domain.Disease{{Code: "I21"}}},
		})
	seedDataset(t, f, "sc-blood", "v1", "hum0003", "Single-cell blood atlas", "scRNA-seq", domain.AccessOpen, "2024-04-20",
		[]domain.Experiment{
			{AssayType: "scRNA-seq", Tissue: "blood", Platform: "10x Chromium", ParticipantCount: 50,
				Diseases: []domain.Disease{{Code: "D64"}}},
		})
	seedDataset(t, f, "atac", "v1", "hum0004", "Open chromatin map", "ATAC-seq", domain.AccessOpen, "2024-01-05",
		[]domain.Experiment{
			{AssayType: "ATAC-seq", Tissue: "liver", Platform: "NovaSeq", ParticipantCount: 10},
		})
	return f
}

func datasetIDs(res *DatasetResult) []string {
	ids := make([]string, 0, len(res.Data))
	for _, d := range res.Data {
		ids = append(ids, d.DatasetID)
	}
	return ids
}

func studyIDs(res *StudyResult) []string {
	ids := make([]string, 0, len(res.Data))
	for _, s := range res.Data {
		ids = append(ids, s.ID)
	}
	return ids
}

func TestSearchDatasets_VisibilityMatrix(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		actor domain.Actor
		want  []string
	}{
		{"anonymous sees published studies' datasets", anon, []string{"sc-blood", "rna-liver"}},
		{"owner additionally sees own drafts", owner, []string{"wgs-heart", "sc-blood", "rna-liver"}},
		{"admin sees everything", admin, []string{"wgs-heart", "sc-blood", "rna-liver", "atac"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := f.svc.SearchDatasets(context.Background(), tt.actor, &Params{})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			// Default order is release date of the latest version, newest first.
			if diff := cmp.Diff(tt.want, datasetIDs(res)); diff != "" {
				t.Errorf("dataset ids mismatch (-want +got):\n%s", diff)
			}
			if res.Pagination.Total != int64(len(tt.want)) {
				t.Errorf("expected total %d, got %d", len(tt.want), res.Pagination.Total)
			}
		})
	}
}

func TestSearchDatasets_CollapsesToLatestVersion(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.SearchDatasets(context.Background(), anon, &Params{TypeOfData: []string{"RNA-seq"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Data) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(res.Data))
	}
	if res.Data[0].Version != "v2" {
		t.Errorf("expected the latest version v2, got %s", res.Data[0].Version)
	}
	// Two stored versions, one dataset: the total counts distinct ids.
	if res.Pagination.Total != 1 {
		t.Errorf("expected total 1, got %d", res.Pagination.Total)
	}
}

func TestSearchDatasets_NestedFiltersAreIndependent(t *testing.T) {
	f := newFixture(t)

	// No single experiment of rna-liver v2 is liver AND tumor, but one is
	// liver and another is tumor: separate clauses match independently.
	res, err := f.svc.SearchDatasets(context.Background(), admin, &Params{
		Tissue: []string{"liver"},
		Tumor:  boolPtr(true),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"rna-liver"}, datasetIDs(res)); diff != "" {
		t.Errorf("dataset ids mismatch (-want +got):\n%s", diff)
	}
}

func TestSearchDatasets_ControlledOnlyLegacyFlag(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.SearchDatasets(context.Background(), admin, &Params{ControlledOnly: boolPtr(true)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"wgs-heart"}, datasetIDs(res)); diff != "" {
		t.Errorf("dataset ids mismatch (-want +got):\n%s", diff)
	}

	// Explicit accessCriteria supersedes the legacy flag.
	res, err = f.svc.SearchDatasets(context.Background(), admin, &Params{
		ControlledOnly: boolPtr(true),
		AccessCriteria: []string{"open"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, d := range res.Data {
		if d.AccessCriteria != "open" {
			t.Errorf("expected only open datasets, got %s %s", d.DatasetID, d.AccessCriteria)
		}
	}
}

func TestSearchDatasets_FreeTextRelevance(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.SearchDatasets(context.Background(), admin, &Params{Query: "blood"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"sc-blood"}, datasetIDs(res)); diff != "" {
		t.Errorf("dataset ids mismatch (-want +got):\n%s", diff)
	}
}

func TestSearchDatasets_NameSubstring(t *testing.T) {
	f := newFixture(t)

	// Substring matching is case-insensitive and exact (no relevance
	// ranking): "ATLAS" only matches the single-cell blood atlas.
	res, err := f.svc.SearchDatasets(context.Background(), admin, &Params{Name: "ATLAS"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"sc-blood"}, datasetIDs(res)); diff != "" {
		t.Errorf("dataset ids mismatch (-want +got):\n%s", diff)
	}

	res, err = f.svc.SearchDatasets(context.Background(), admin, &Params{Name: "no such dataset"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Data) != 0 {
		t.Errorf("expected no hits, got %v", datasetIDs(res))
	}
}

func TestSearchDatasets_FacetReverseCounts(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.SearchDatasets(context.Background(), admin, &Params{WithFacets: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Facets == nil {
		t.Fatal("expected facets in the response")
	}

	byValue := func(facet string) map[string]int64 {
		out := make(map[string]int64)
		for _, b := range res.Facets[facet] {
			out[b.Value] = b.Count
		}
		return out
	}

	// rna-liver contributes three RNA-seq experiments across two documents,
	// but the facet counts documents, not experiments.
	assays := byValue("assayType")
	if assays["RNA-seq"] != 2 {
		t.Errorf("expected RNA-seq count 2, got %d", assays["RNA-seq"])
	}
	if assays["WGS"] != 1 {
		t.Errorf("expected WGS count 1, got %d", assays["WGS"])
	}

	codes := byValue("diseaseCode")
	if codes["C22.0"] != 2 || codes["C22.1"] != 1 {
		t.Errorf("unexpected disease code counts: %v", codes)
	}

	types := byValue("typeOfData")
	if types["RNA-seq"] != 2 {
		t.Errorf("expected typeOfData RNA-seq count 2, got %d", types["RNA-seq"])
	}
}

func TestSearchDatasets_ShortCircuitWhenNothingVisible(t *testing.T) {
	store := memory.NewStore()
	f := &fixture{
		studies:  studyrepo.New(store),
		versions: versionrepo.New(store),
		datasets: datasetrepo.New(store),
	}
	f.svc = New(f.studies, f.versions, f.datasets, zap.NewNop())
	seedStudy(t, f, "hum0001", domain.StatusDraft, "owner@org", "Unreleased", "", nil)

	res, err := f.svc.SearchDatasets(context.Background(), anon, &Params{WithFacets: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Data) != 0 || res.Pagination.Total != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
	if res.Facets != nil {
		t.Errorf("short-circuited search must not aggregate, got %v", res.Facets)
	}
}

func TestSearchDatasets_Pagination(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.SearchDatasets(context.Background(), admin, &Params{From: 1, Size: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"sc-blood", "rna-liver"}, datasetIDs(res)); diff != "" {
		t.Errorf("page mismatch (-want +got):\n%s", diff)
	}
	if res.Pagination.Total != 4 {
		t.Errorf("expected total 4, got %d", res.Pagination.Total)
	}
}

func TestSearchDatasets_RejectsInvertedRanges(t *testing.T) {
	f := newFixture(t)

	minV, maxV := 100.0, 10.0
	_, err := f.svc.SearchDatasets(context.Background(), admin, &Params{
		ParticipantMin: &minV,
		ParticipantMax: &maxV,
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}

	_, err = f.svc.SearchDatasets(context.Background(), admin, &Params{
		ReleasedFrom: "2024-12-31",
		ReleasedTo:   "2024-01-01",
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestSearchStudies_DatasetPrePass(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.SearchStudies(context.Background(), admin, &Params{TypeOfData: []string{"WGS"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"hum0002"}, studyIDs(res)); diff != "" {
		t.Errorf("study ids mismatch (-want +got):\n%s", diff)
	}

	// The same pre-pass under anonymous visibility leaves nothing: hum0002
	// is a draft.
	res, err = f.svc.SearchStudies(context.Background(), anon, &Params{TypeOfData: []string{"WGS"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Data) != 0 {
		t.Errorf("expected no visible studies, got %v", studyIDs(res))
	}
}

func TestSearchStudies_ShortCircuitWhenNoDatasetMatches(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.SearchStudies(context.Background(), admin, &Params{TypeOfData: []string{"proteomics"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Data) != 0 || res.Pagination.Total != 0 {
		t.Errorf("expected empty result, got %+v", res)
	}
}

func TestSearchStudies_SummarizesLatestVersion(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.SearchStudies(context.Background(), anon, &Params{Sort: "id"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"hum0001", "hum0003"}, studyIDs(res)); diff != "" {
		t.Fatalf("study ids mismatch (-want +got):\n%s", diff)
	}

	liver := res.Data[0]
	if diff := cmp.Diff([]string{"RNA-seq"}, liver.DatasetTypes); diff != "" {
		t.Errorf("dataset types mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"IlluminaX"}, liver.Platforms); diff != "" {
		t.Errorf("platforms mismatch (-want +got):\n%s", diff)
	}

	// hum0003's dangling "ghost" reference is silently dropped.
	blood := res.Data[1]
	if diff := cmp.Diff([]string{"scRNA-seq"}, blood.DatasetTypes); diff != "" {
		t.Errorf("dataset types mismatch (-want +got):\n%s", diff)
	}
}

func TestSearchStudies_FreeTextTargetsStudyFields(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.SearchStudies(context.Background(), admin, &Params{Query: "liver"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Matches the study title, not dataset names: only hum0001.
	if diff := cmp.Diff([]string{"hum0001"}, studyIDs(res)); diff != "" {
		t.Errorf("study ids mismatch (-want +got):\n%s", diff)
	}
}

func TestSearchStudies_FacetsScopedToVisibleMatches(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.SearchStudies(context.Background(), anon, &Params{WithFacets: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	types := make(map[string]int64)
	for _, b := range res.Facets["typeOfData"] {
		types[b.Value] = b.Count
	}
	if _, ok := types["WGS"]; ok {
		t.Error("facets leaked a dataset of an invisible draft study")
	}
	if types["scRNA-seq"] != 1 {
		t.Errorf("expected scRNA-seq count 1, got %d", types["scRNA-seq"])
	}
}

func TestSearchStudies_LanguageProjection(t *testing.T) {
	store := memory.NewStore()
	f := &fixture{
		studies:  studyrepo.New(store),
		versions: versionrepo.New(store),
		datasets: datasetrepo.New(store),
	}
	f.svc = New(f.studies, f.versions, f.datasets, zap.NewNop())

	ctx := context.Background()
	v, err := domain.NewStudyVersion("hum0001", "v1", "2024-01-01", domain.Text{}, nil)
	if err != nil {
		t.Fatalf("NewStudyVersion: %v", err)
	}
	if _, err := f.versions.Create(ctx, &v); err != nil {
		t.Fatalf("create version: %v", err)
	}
	st := domain.ReconstructStudy(
		"hum0001", domain.Text{JA: "肝臓がん研究", EN: "Liver cancer study"}, domain.Text{}, domain.Text{},
		domain.StatusPublished, []string{"owner@org"}, []string{"hum0001.v1"}, "v1", "2024-01-15", "2024-01-15",
	)
	if _, err := f.studies.Create(ctx, &st); err != nil {
		t.Fatalf("create study: %v", err)
	}

	res, err := f.svc.SearchStudies(ctx, anon, &Params{Lang: "ja"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Data[0].Title != "肝臓がん研究" {
		t.Errorf("expected Japanese title, got %q", res.Data[0].Title)
	}
}
