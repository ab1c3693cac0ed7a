package study

import "github.com/studycat-io/studycat/internal/domain"

// Created is the response to a study creation.
type Created struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Token  string `json:"token"`
}

// DatasetEntry is one resolved dataset reference in a detail view.
type DatasetEntry struct {
	DatasetID      string `json:"datasetId"`
	Version        string `json:"version"`
	Name           string `json:"name,omitempty"`
	TypeOfData     string `json:"typeOfData,omitempty"`
	AccessCriteria string `json:"accessCriteria"`
	ReleaseDate    string `json:"releaseDate,omitempty"`
}

// VersionDetail is one study-version snapshot with its references resolved.
// Broken references are filtered out, not surfaced.
type VersionDetail struct {
	Label       string         `json:"label"`
	ReleaseDate string         `json:"releaseDate,omitempty"`
	ReleaseNote string         `json:"releaseNote,omitempty"`
	Datasets    []DatasetEntry `json:"datasets"`
}

// Detail is the full single-study view at one version.
type Detail struct {
	ID            string        `json:"id"`
	Title         string        `json:"title,omitempty"`
	Summary       string        `json:"summary,omitempty"`
	Provider      string        `json:"provider,omitempty"`
	Status        string        `json:"status"`
	Owners        []string      `json:"owners,omitempty"`
	Versions      []string      `json:"versions,omitempty"`
	LatestVersion string        `json:"latestVersion,omitempty"`
	PublishedAt   string        `json:"publishedAt,omitempty"`
	UpdatedAt     string        `json:"updatedAt,omitempty"`
	Version       VersionDetail `json:"version"`
	Token         string        `json:"token"`
}

// TransitionResult reports a completed workflow transition.
type TransitionResult struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Token  string `json:"token"`
}

func versionDetail(v *domain.StudyVersion, resolved map[string]domain.Dataset, lang string) VersionDetail {
	out := VersionDetail{
		Label:       v.Label(),
		ReleaseDate: v.ReleaseDate(),
		ReleaseNote: v.ReleaseNote().Resolve(lang),
		Datasets:    []DatasetEntry{},
	}
	for _, ref := range v.Datasets() {
		d, ok := resolved[ref.Key()]
		if !ok {
			continue
		}
		out.Datasets = append(out.Datasets, DatasetEntry{
			DatasetID:      d.DatasetID(),
			Version:        d.Version(),
			Name:           d.Name().Resolve(lang),
			TypeOfData:     d.TypeOfData(),
			AccessCriteria: string(d.AccessCriteria()),
			ReleaseDate:    d.ReleaseDate(),
		})
	}
	return out
}
