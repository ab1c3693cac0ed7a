package version

import (
	"encoding/json"
	"fmt"

	"github.com/studycat-io/studycat/internal/domain"
)

type textDoc struct {
	JA string `json:"ja,omitempty"`
	EN string `json:"en,omitempty"`
}

type refDoc struct {
	DatasetID string `json:"datasetId"`
	Version   string `json:"version"`
}

type versionDoc struct {
	ID          string   `json:"id"`
	StudyID     string   `json:"studyId"`
	Label       string   `json:"label"`
	ReleaseDate string   `json:"releaseDate,omitempty"`
	ReleaseNote textDoc  `json:"releaseNote"`
	Datasets    []refDoc `json:"datasets,omitempty"`
}

func encode(v *domain.StudyVersion) ([]byte, error) {
	refs := make([]refDoc, 0, len(v.Datasets()))
	for _, r := range v.Datasets() {
		refs = append(refs, refDoc{DatasetID: r.DatasetID, Version: r.Version})
	}
	doc := versionDoc{
		ID:          v.ID(),
		StudyID:     v.StudyID(),
		Label:       v.Label(),
		ReleaseDate: v.ReleaseDate(),
		ReleaseNote: textDoc{JA: v.ReleaseNote().JA, EN: v.ReleaseNote().EN},
		Datasets:    refs,
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode study version %s: %w", v.ID(), err)
	}
	return raw, nil
}

func decode(raw []byte) (domain.StudyVersion, error) {
	var doc versionDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.StudyVersion{}, fmt.Errorf("decode study version: %w: %w", domain.ErrUpstream, err)
	}
	refs := make([]domain.DatasetRef, 0, len(doc.Datasets))
	for _, r := range doc.Datasets {
		refs = append(refs, domain.DatasetRef{DatasetID: r.DatasetID, Version: r.Version})
	}
	return domain.ReconstructStudyVersion(
		doc.ID, doc.StudyID, doc.Label, doc.ReleaseDate,
		domain.Text{JA: doc.ReleaseNote.JA, EN: doc.ReleaseNote.EN}, refs,
	), nil
}
