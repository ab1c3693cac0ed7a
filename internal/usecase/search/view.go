package search

import (
	"sort"

	"github.com/studycat-io/studycat/internal/domain"
)

// Pagination reports the true total for the query plus the requested window.
// For dataset search the total counts distinct dataset ids, not raw version
// documents.
type Pagination struct {
	Total int64 `json:"total"`
	From  int   `json:"from"`
	Size  int   `json:"size"`
}

// DiseaseView is a language-projected disease entry.
type DiseaseView struct {
	Code  string `json:"code"`
	Label string `json:"label,omitempty"`
}

// ExperimentView is one experiment sub-record of a dataset hit.
type ExperimentView struct {
	AssayType        string        `json:"assayType,omitempty"`
	Tissue           string        `json:"tissue,omitempty"`
	Platform         string        `json:"platform,omitempty"`
	Tumor            bool          `json:"tumor"`
	ParticipantCount int           `json:"participantCount,omitempty"`
	Diseases         []DiseaseView `json:"diseases,omitempty"`
}

// DatasetView is one dataset search hit, projected into a single language.
type DatasetView struct {
	DatasetID      string           `json:"datasetId"`
	Version        string           `json:"version"`
	StudyID        string           `json:"studyId"`
	Name           string           `json:"name,omitempty"`
	TypeOfData     string           `json:"typeOfData,omitempty"`
	AccessCriteria string           `json:"accessCriteria"`
	ReleaseDate    string           `json:"releaseDate,omitempty"`
	Experiments    []ExperimentView `json:"experiments,omitempty"`
}

// StudySummary is one study search hit, denormalized over its latest
// version's dataset references.
type StudySummary struct {
	ID            string   `json:"id"`
	Title         string   `json:"title,omitempty"`
	Summary       string   `json:"summary,omitempty"`
	Provider      string   `json:"provider,omitempty"`
	Status        string   `json:"status"`
	LatestVersion string   `json:"latestVersion,omitempty"`
	PublishedAt   string   `json:"publishedAt,omitempty"`
	UpdatedAt     string   `json:"updatedAt,omitempty"`
	DatasetTypes  []string `json:"datasetTypes,omitempty"`
	Platforms     []string `json:"platforms,omitempty"`
}

// StudyResult is the study-search response.
type StudyResult struct {
	Data       []StudySummary           `json:"data"`
	Pagination Pagination               `json:"pagination"`
	Facets     map[string][]FacetBucket `json:"facets,omitempty"`
}

// DatasetResult is the dataset-search response.
type DatasetResult struct {
	Data       []DatasetView            `json:"data"`
	Pagination Pagination               `json:"pagination"`
	Facets     map[string][]FacetBucket `json:"facets,omitempty"`
}

func datasetView(d *domain.Dataset, lang string) DatasetView {
	exps := make([]ExperimentView, 0, len(d.Experiments()))
	for _, e := range d.Experiments() {
		diseases := make([]DiseaseView, 0, len(e.Diseases))
		for _, dis := range e.Diseases {
			diseases = append(diseases, DiseaseView{Code: dis.Code, Label: dis.Label.Resolve(lang)})
		}
		exps = append(exps, ExperimentView{
			AssayType:        e.AssayType,
			Tissue:           e.Tissue,
			Platform:         e.Platform,
			Tumor:            e.Tumor,
			ParticipantCount: e.ParticipantCount,
			Diseases:         diseases,
		})
	}
	return DatasetView{
		DatasetID:      d.DatasetID(),
		Version:        d.Version(),
		StudyID:        d.StudyID(),
		Name:           d.Name().Resolve(lang),
		TypeOfData:     d.TypeOfData(),
		AccessCriteria: string(d.AccessCriteria()),
		ReleaseDate:    d.ReleaseDate(),
		Experiments:    exps,
	}
}

// studySummary denormalizes one study over its resolved latest-version
// datasets. Broken references simply contribute nothing.
func studySummary(s *domain.Study, datasets []domain.Dataset, lang string) StudySummary {
	types := make(map[string]struct{})
	platforms := make(map[string]struct{})
	for i := range datasets {
		d := &datasets[i]
		if t := d.TypeOfData(); t != "" {
			types[t] = struct{}{}
		}
		for _, e := range d.Experiments() {
			if e.Platform != "" {
				platforms[e.Platform] = struct{}{}
			}
		}
	}
	return StudySummary{
		ID:            s.ID(),
		Title:         s.Title().Resolve(lang),
		Summary:       s.Summary().Resolve(lang),
		Provider:      s.Provider().Resolve(lang),
		Status:        string(s.Status()),
		LatestVersion: s.LatestVersion(),
		PublishedAt:   s.PublishedAt(),
		UpdatedAt:     s.UpdatedAt(),
		DatasetTypes:  sortedKeys(types),
		Platforms:     sortedKeys(platforms),
	}
}

func sortedKeys(set map[string]struct{}) []string {
	if len(set) == 0 {
		return nil
	}
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
