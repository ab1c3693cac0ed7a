package dataset

import (
	"encoding/json"
	"fmt"

	"github.com/studycat-io/studycat/internal/domain"
)

// Document field paths, shared with the query composer and facet shapes.
// Fields under PathExperiments and PathDiseases are relative to the nested
// scope they live in.
const (
	FieldDatasetID      = "datasetId"
	FieldVersion        = "version"
	FieldVersionOrdinal = "versionOrdinal"
	FieldStudyID        = "studyId"
	FieldStudyVersionID = "studyVersionId"
	FieldNameJA         = "name.ja"
	FieldNameEN         = "name.en"
	FieldTypeOfData     = "typeOfData"
	FieldAccessCriteria = "accessCriteria"
	FieldReleaseDate    = "releaseDate"

	PathExperiments     = "experiments"
	ExpAssayType        = "assayType"
	ExpTissue           = "tissue"
	ExpPlatform         = "platform"
	ExpTumor            = "tumor"
	ExpParticipantCount = "participantCount"
	PathDiseases        = "diseases"
	DiseaseCode         = "code"
)

// TextFields are the free-text searchable paths, also used to build the
// store's text index.
var TextFields = []string{FieldNameJA, FieldNameEN, FieldTypeOfData}

type textDoc struct {
	JA string `json:"ja,omitempty"`
	EN string `json:"en,omitempty"`
}

type diseaseDoc struct {
	Code  string  `json:"code"`
	Label textDoc `json:"label"`
}

type experimentDoc struct {
	AssayType        string       `json:"assayType,omitempty"`
	Tissue           string       `json:"tissue,omitempty"`
	Platform         string       `json:"platform,omitempty"`
	Tumor            bool         `json:"tumor"`
	ParticipantCount int          `json:"participantCount,omitempty"`
	Diseases         []diseaseDoc `json:"diseases,omitempty"`
}

type datasetDoc struct {
	DatasetID string `json:"datasetId"`
	Version   string `json:"version"`
	// VersionOrdinal is the numeric part of the label. Labels are strings,
	// so latest-version collapsing and sorting must run on this field:
	// string order puts "v9" after "v10".
	VersionOrdinal int             `json:"versionOrdinal"`
	StudyID        string          `json:"studyId"`
	StudyVersionID string          `json:"studyVersionId"`
	Name           textDoc         `json:"name"`
	TypeOfData     string          `json:"typeOfData,omitempty"`
	AccessCriteria string          `json:"accessCriteria"`
	ReleaseDate    string          `json:"releaseDate,omitempty"`
	Experiments    []experimentDoc `json:"experiments,omitempty"`
}

func encode(d *domain.Dataset) ([]byte, error) {
	exps := make([]experimentDoc, 0, len(d.Experiments()))
	for _, e := range d.Experiments() {
		diseases := make([]diseaseDoc, 0, len(e.Diseases))
		for _, dis := range e.Diseases {
			diseases = append(diseases, diseaseDoc{
				Code:  dis.Code,
				Label: textDoc{JA: dis.Label.JA, EN: dis.Label.EN},
			})
		}
		exps = append(exps, experimentDoc{
			AssayType:        e.AssayType,
			Tissue:           e.Tissue,
			Platform:         e.Platform,
			Tumor:            e.Tumor,
			ParticipantCount: e.ParticipantCount,
			Diseases:         diseases,
		})
	}
	ordinal, err := domain.ParseVersionLabel(d.Version())
	if err != nil {
		return nil, err
	}
	doc := datasetDoc{
		DatasetID:      d.DatasetID(),
		Version:        d.Version(),
		VersionOrdinal: ordinal,
		StudyID:        d.StudyID(),
		StudyVersionID: d.StudyVersionID(),
		Name:           textDoc{JA: d.Name().JA, EN: d.Name().EN},
		TypeOfData:     d.TypeOfData(),
		AccessCriteria: string(d.AccessCriteria()),
		ReleaseDate:    d.ReleaseDate(),
		Experiments:    exps,
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode dataset %s: %w", d.Key(), err)
	}
	return raw, nil
}

func decode(raw []byte) (domain.Dataset, error) {
	var doc datasetDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return domain.Dataset{}, fmt.Errorf("decode dataset: %w: %w", domain.ErrUpstream, err)
	}
	exps := make([]domain.Experiment, 0, len(doc.Experiments))
	for _, e := range doc.Experiments {
		diseases := make([]domain.Disease, 0, len(e.Diseases))
		for _, dis := range e.Diseases {
			diseases = append(diseases, domain.Disease{
				Code:  dis.Code,
				Label: domain.Text{JA: dis.Label.JA, EN: dis.Label.EN},
			})
		}
		exps = append(exps, domain.Experiment{
			AssayType:        e.AssayType,
			Tissue:           e.Tissue,
			Platform:         e.Platform,
			Tumor:            e.Tumor,
			ParticipantCount: e.ParticipantCount,
			Diseases:         diseases,
		})
	}
	return domain.ReconstructDataset(
		doc.DatasetID, doc.Version, doc.StudyID, doc.StudyVersionID,
		domain.Text{JA: doc.Name.JA, EN: doc.Name.EN},
		doc.TypeOfData, domain.AccessCriteria(doc.AccessCriteria),
		doc.ReleaseDate, exps,
	), nil
}
