package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// DatasetRef is a (datasetId, version) reference held by a StudyVersion.
// References may dangle after a dataset delete; they are filtered at read,
// never rejected at write.
type DatasetRef struct {
	DatasetID string
	Version   string
}

// Key returns the referenced dataset's storage key.
func (r DatasetRef) Key() string { return r.DatasetID + "." + r.Version }

// FirstVersionLabel is where dense version numbering starts.
const FirstVersionLabel = "v1"

// ParseVersionLabel parses a dense "vN" label.
func ParseVersionLabel(label string) (int, error) {
	rest, ok := strings.CutPrefix(label, "v")
	if !ok {
		return 0, fmt.Errorf("malformed version label %q: %w", label, ErrValidation)
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("malformed version label %q: %w", label, ErrValidation)
	}
	return n, nil
}

// NextVersionLabel returns the label following the given one ("v2" → "v3").
func NextVersionLabel(label string) (string, error) {
	n, err := ParseVersionLabel(label)
	if err != nil {
		return "", err
	}
	return "v" + strconv.Itoa(n+1), nil
}

// StudyVersion is a dated snapshot of a study's dataset composition.
type StudyVersion struct {
	id          string // "<studyId>.<label>"
	studyID     string
	label       string
	releaseDate string
	releaseNote Text
	datasets    []DatasetRef
}

// NewStudyVersion validates and creates a version snapshot.
func NewStudyVersion(studyID, label, releaseDate string, releaseNote Text, datasets []DatasetRef) (StudyVersion, error) {
	if studyID == "" {
		return StudyVersion{}, fmt.Errorf("study id is required: %w", ErrValidation)
	}
	if _, err := ParseVersionLabel(label); err != nil {
		return StudyVersion{}, err
	}
	return StudyVersion{
		id:          studyID + "." + label,
		studyID:     studyID,
		label:       label,
		releaseDate: releaseDate,
		releaseNote: releaseNote,
		datasets:    append([]DatasetRef(nil), datasets...),
	}, nil
}

// ReconstructStudyVersion hydrates a StudyVersion from storage.
func ReconstructStudyVersion(
	id, studyID, label, releaseDate string, releaseNote Text, datasets []DatasetRef,
) StudyVersion {
	return StudyVersion{
		id: id, studyID: studyID, label: label,
		releaseDate: releaseDate, releaseNote: releaseNote, datasets: datasets,
	}
}

// ID returns the storage key "<studyId>.<label>".
func (v *StudyVersion) ID() string { return v.id }

// StudyID returns the owning study id.
func (v *StudyVersion) StudyID() string { return v.studyID }

// Label returns the dense version label ("v1", "v2", ...).
func (v *StudyVersion) Label() string { return v.label }

// ReleaseDate returns the snapshot's release date.
func (v *StudyVersion) ReleaseDate() string { return v.releaseDate }

// ReleaseNote returns the bilingual release note.
func (v *StudyVersion) ReleaseNote() Text { return v.releaseNote }

// Datasets returns the dataset references of this snapshot.
func (v *StudyVersion) Datasets() []DatasetRef { return v.datasets }

// HasDataset reports whether the snapshot references the dataset id in any
// version.
func (v *StudyVersion) HasDataset(datasetID string) bool {
	for _, r := range v.datasets {
		if r.DatasetID == datasetID {
			return true
		}
	}
	return false
}

// WithDatasets returns a copy with the reference list replaced.
func (v *StudyVersion) WithDatasets(refs []DatasetRef) StudyVersion {
	c := *v
	c.datasets = append([]DatasetRef(nil), refs...)
	return c
}
