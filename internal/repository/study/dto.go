package study

import (
	"encoding/json"
	"fmt"

	"github.com/studycat-io/studycat/internal/domain"
)

// Document field paths, shared with the query composer and visibility policy.
const (
	FieldID          = "id"
	FieldStatus      = "status"
	FieldOwners      = "owners"
	FieldTitleJA     = "title.ja"
	FieldTitleEN     = "title.en"
	FieldSummaryJA   = "summary.ja"
	FieldSummaryEN   = "summary.en"
	FieldProviderJA  = "provider.ja"
	FieldProviderEN  = "provider.en"
	FieldPublishedAt = "publishedAt"
)

// TextFields are the free-text searchable paths, also used to build the
// store's text index.
var TextFields = []string{
	FieldTitleJA, FieldTitleEN,
	FieldSummaryJA, FieldSummaryEN,
	FieldProviderJA, FieldProviderEN,
}

type textDoc struct {
	JA string `json:"ja,omitempty"`
	EN string `json:"en,omitempty"`
}

type studyDoc struct {
	ID            string   `json:"id"`
	Title         textDoc  `json:"title"`
	Summary       textDoc  `json:"summary"`
	Provider      textDoc  `json:"provider"`
	Status        string   `json:"status"`
	Owners        []string `json:"owners"`
	Versions      []string `json:"versions,omitempty"`
	LatestVersion string   `json:"latestVersion,omitempty"`
	PublishedAt   string   `json:"publishedAt,omitempty"`
	UpdatedAt     string   `json:"updatedAt,omitempty"`
}

func encode(s *domain.Study) ([]byte, error) {
	doc := studyDoc{
		ID:            s.ID(),
		Title:         textDoc{JA: s.Title().JA, EN: s.Title().EN},
		Summary:       textDoc{JA: s.Summary().JA, EN: s.Summary().EN},
		Provider:      textDoc{JA: s.Provider().JA, EN: s.Provider().EN},
		Status:        string(s.Status()),
		Owners:        s.Owners(),
		Versions:      s.Versions(),
		LatestVersion: s.LatestVersion(),
		PublishedAt:   s.PublishedAt(),
		UpdatedAt:     s.UpdatedAt(),
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode study %s: %w", s.ID(), err)
	}
	return raw, nil
}

func decode(raw []byte) (domain.Study, error) {
	var doc studyDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.Study{}, fmt.Errorf("decode study: %w: %w", domain.ErrUpstream, err)
	}
	return domain.ReconstructStudy(
		doc.ID,
		domain.Text{JA: doc.Title.JA, EN: doc.Title.EN},
		domain.Text{JA: doc.Summary.JA, EN: doc.Summary.EN},
		domain.Text{JA: doc.Provider.JA, EN: doc.Provider.EN},
		domain.Status(doc.Status),
		doc.Owners, doc.Versions, doc.LatestVersion, doc.PublishedAt, doc.UpdatedAt,
	), nil
}
