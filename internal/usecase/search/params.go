package search

import (
	"fmt"

	"github.com/studycat-io/studycat/internal/domain"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// SortRelevance orders by free-text score; only honored when Query is set.
const SortRelevance = "relevance"

// Params are the decoded search parameters shared by both entry points.
// Multi-valued fields are OR sets; distinct fields AND together. Nil or
// empty fields emit no filter clause at all.
type Params struct {
	// Query is the free-text query. On study search it matches bilingual
	// title/summary/provider; on dataset search, name and data type.
	Query string
	// Lang selects the projection language for denormalized text.
	Lang string

	// Dataset-scoped filters.
	// Name is a case-insensitive substring match over the bilingual
	// dataset name pair; either language side may satisfy it.
	Name              string
	TypeOfData        []string
	AccessCriteria    []string
	ControlledOnly    *bool // legacy flag; superseded by AccessCriteria
	AssayType         []string
	Tissue            []string
	Platform          []string
	Tumor             *bool
	DiseaseCodePrefix []string
	ParticipantMin    *float64
	ParticipantMax    *float64
	ReleasedFrom      string
	ReleasedTo        string

	// Study-scoped filters.
	PublishedFrom string
	PublishedTo   string

	// Sort names a sort order; empty picks relevance when Query is set,
	// otherwise the entry point's default field order.
	Sort string
	Desc bool

	From       int
	Size       int
	WithFacets bool
}

// Normalize clamps paging and defaults the language. Called once at the
// service boundary.
func (p *Params) Normalize() {
	if p.From < 0 {
		p.From = 0
	}
	if p.Size <= 0 {
		p.Size = defaultPageSize
	}
	if p.Size > maxPageSize {
		p.Size = maxPageSize
	}
	if p.Lang != domain.LangJA && p.Lang != domain.LangEN {
		p.Lang = domain.LangEN
	}
}

// Validate rejects malformed range input before any store call.
func (p *Params) Validate() error {
	if p.ParticipantMin != nil && p.ParticipantMax != nil && *p.ParticipantMin > *p.ParticipantMax {
		return fmt.Errorf("participant range min exceeds max: %w", domain.ErrValidation)
	}
	if p.ReleasedFrom != "" && p.ReleasedTo != "" && p.ReleasedFrom > p.ReleasedTo {
		return fmt.Errorf("release date range start exceeds end: %w", domain.ErrValidation)
	}
	if p.PublishedFrom != "" && p.PublishedTo != "" && p.PublishedFrom > p.PublishedTo {
		return fmt.Errorf("publish date range start exceeds end: %w", domain.ErrValidation)
	}
	return nil
}

// HasDatasetFilters reports whether any dataset-scoped filter is set. The
// free-text query does not count: on study search it targets study fields.
func (p *Params) HasDatasetFilters() bool {
	return p.Name != "" ||
		len(p.TypeOfData) > 0 ||
		len(p.AccessCriteria) > 0 ||
		p.ControlledOnly != nil ||
		len(p.AssayType) > 0 ||
		len(p.Tissue) > 0 ||
		len(p.Platform) > 0 ||
		p.Tumor != nil ||
		len(p.DiseaseCodePrefix) > 0 ||
		p.ParticipantMin != nil || p.ParticipantMax != nil ||
		p.ReleasedFrom != "" || p.ReleasedTo != ""
}
