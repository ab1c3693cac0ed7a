package domain

import "fmt"

// AccessCriteria classifies how a dataset release may be obtained.
type AccessCriteria string

const (
	AccessOpen       AccessCriteria = "open"
	AccessControlled AccessCriteria = "controlled"
)

// ParseAccessCriteria validates an access-criteria string.
func ParseAccessCriteria(s string) (AccessCriteria, error) {
	switch AccessCriteria(s) {
	case AccessOpen, AccessControlled:
		return AccessCriteria(s), nil
	default:
		return "", fmt.Errorf("unknown access criteria %q: %w", s, ErrValidation)
	}
}

// Disease is one diagnosed condition attached to an experiment.
type Disease struct {
	Code  string // code-family identifier, e.g. an ICD-10 code
	Label Text
}

// Experiment is one assay sub-record of a dataset. Its fields are the
// filterable/aggregatable facet dimensions.
type Experiment struct {
	AssayType        string
	Tissue           string
	Platform         string
	Tumor            bool
	ParticipantCount int
	Diseases         []Disease
}

// Dataset is one versioned data release, owned by exactly one study.
// Visibility is derived from the owning study's status, never stored here.
type Dataset struct {
	datasetID      string
	version        string
	studyID        string
	studyVersionID string
	name           Text
	typeOfData     string
	accessCriteria AccessCriteria
	releaseDate    string
	experiments    []Experiment
}

// NewDataset validates and creates a dataset release.
func NewDataset(
	datasetID, version, studyID, studyVersionID string,
	name Text, typeOfData string, accessCriteria AccessCriteria,
	releaseDate string, experiments []Experiment,
) (Dataset, error) {
	if datasetID == "" {
		return Dataset{}, fmt.Errorf("dataset id is required: %w", ErrValidation)
	}
	if _, err := ParseVersionLabel(version); err != nil {
		return Dataset{}, err
	}
	if studyID == "" || studyVersionID == "" {
		return Dataset{}, fmt.Errorf("dataset requires an owning study version: %w", ErrValidation)
	}
	if _, err := ParseAccessCriteria(string(accessCriteria)); err != nil {
		return Dataset{}, err
	}
	return Dataset{
		datasetID: datasetID, version: version,
		studyID: studyID, studyVersionID: studyVersionID,
		name: name, typeOfData: typeOfData, accessCriteria: accessCriteria,
		releaseDate: releaseDate, experiments: append([]Experiment(nil), experiments...),
	}, nil
}

// ReconstructDataset hydrates a Dataset from storage.
func ReconstructDataset(
	datasetID, version, studyID, studyVersionID string,
	name Text, typeOfData string, accessCriteria AccessCriteria,
	releaseDate string, experiments []Experiment,
) Dataset {
	return Dataset{
		datasetID: datasetID, version: version,
		studyID: studyID, studyVersionID: studyVersionID,
		name: name, typeOfData: typeOfData, accessCriteria: accessCriteria,
		releaseDate: releaseDate, experiments: experiments,
	}
}

// Key returns the storage key "<datasetId>.<version>".
func (d *Dataset) Key() string { return d.datasetID + "." + d.version }

// DatasetID returns the version-independent dataset identifier.
func (d *Dataset) DatasetID() string { return d.datasetID }

// Version returns the dense version label.
func (d *Dataset) Version() string { return d.version }

// StudyID returns the owning study id.
func (d *Dataset) StudyID() string { return d.studyID }

// StudyVersionID returns the owning study-version key.
func (d *Dataset) StudyVersionID() string { return d.studyVersionID }

// Name returns the bilingual display name.
func (d *Dataset) Name() Text { return d.name }

// TypeOfData returns the release's data type ("WGS", "RNA-seq", ...).
func (d *Dataset) TypeOfData() string { return d.typeOfData }

// AccessCriteria returns the access classification.
func (d *Dataset) AccessCriteria() AccessCriteria { return d.accessCriteria }

// ReleaseDate returns the release date.
func (d *Dataset) ReleaseDate() string { return d.releaseDate }

// Experiments returns the assay sub-records.
func (d *Dataset) Experiments() []Experiment { return d.experiments }

// Ref returns this release as a version reference.
func (d *Dataset) Ref() DatasetRef {
	return DatasetRef{DatasetID: d.datasetID, Version: d.version}
}

// WithID returns a copy under a different dataset id, used by the atomic
// rename sequence.
func (d *Dataset) WithID(datasetID string) Dataset {
	c := *d
	c.datasetID = datasetID
	return c
}
