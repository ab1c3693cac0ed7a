package search

import (
	"strconv"

	"github.com/studycat-io/studycat/internal/db"
	"github.com/studycat-io/studycat/internal/domain"
	"github.com/studycat-io/studycat/internal/repository/dataset"
	"github.com/studycat-io/studycat/internal/repository/study"
)

// buildDatasetFilters composes the dataset-collection filters for the
// params. Pure and deterministic: clauses AND together, values within one
// clause OR together. Each experiment-scoped clause is an independent
// nested-membership test, so tissue=X and assayType=Y may be satisfied by
// different experiments of the same dataset. withText controls whether the
// free-text query joins in (it does for dataset search; study search spends
// it on study fields instead).
func buildDatasetFilters(p *Params, withText bool) []db.Filter {
	var filters []db.Filter

	if p.Name != "" {
		filters = append(filters, db.Contains{
			Fields: []string{dataset.FieldNameJA, dataset.FieldNameEN},
			Value:  p.Name,
		})
	}
	if len(p.TypeOfData) > 0 {
		filters = append(filters, db.Terms{Field: dataset.FieldTypeOfData, Values: p.TypeOfData})
	}
	switch {
	case len(p.AccessCriteria) > 0:
		filters = append(filters, db.Terms{Field: dataset.FieldAccessCriteria, Values: p.AccessCriteria})
	case p.ControlledOnly != nil && *p.ControlledOnly:
		// Legacy flag, equivalent to accessCriteria=controlled.
		filters = append(filters, db.Term{Field: dataset.FieldAccessCriteria, Value: string(domain.AccessControlled)})
	}
	if len(p.AssayType) > 0 {
		filters = append(filters, nestedTerms(dataset.ExpAssayType, p.AssayType))
	}
	if len(p.Tissue) > 0 {
		filters = append(filters, nestedTerms(dataset.ExpTissue, p.Tissue))
	}
	if len(p.Platform) > 0 {
		filters = append(filters, nestedTerms(dataset.ExpPlatform, p.Platform))
	}
	if p.Tumor != nil {
		filters = append(filters, nestedTerms(dataset.ExpTumor, []string{strconv.FormatBool(*p.Tumor)}))
	}
	if len(p.DiseaseCodePrefix) > 0 {
		filters = append(filters, db.Nested{
			Path: dataset.PathExperiments,
			Filters: []db.Filter{db.Nested{
				Path:    dataset.PathDiseases,
				Filters: []db.Filter{db.Prefix{Field: dataset.DiseaseCode, Values: p.DiseaseCodePrefix}},
			}},
		})
	}
	if p.ParticipantMin != nil || p.ParticipantMax != nil {
		filters = append(filters, db.Nested{
			Path: dataset.PathExperiments,
			Filters: []db.Filter{db.Range{
				Field: dataset.ExpParticipantCount,
				GTE:   p.ParticipantMin,
				LTE:   p.ParticipantMax,
			}},
		})
	}
	if p.ReleasedFrom != "" || p.ReleasedTo != "" {
		filters = append(filters, db.DateRange{
			Field: dataset.FieldReleaseDate,
			From:  p.ReleasedFrom,
			To:    p.ReleasedTo,
		})
	}
	if withText && p.Query != "" {
		filters = append(filters, db.Text{Fields: dataset.TextFields, Query: p.Query})
	}
	return filters
}

func nestedTerms(field string, values []string) db.Filter {
	return db.Nested{
		Path:    dataset.PathExperiments,
		Filters: []db.Filter{db.Terms{Field: field, Values: values}},
	}
}

// buildStudyFilters composes the study-collection filters for the params.
func buildStudyFilters(p *Params) []db.Filter {
	var filters []db.Filter
	if p.Query != "" {
		filters = append(filters, db.Text{Fields: study.TextFields, Query: p.Query})
	}
	if p.PublishedFrom != "" || p.PublishedTo != "" {
		filters = append(filters, db.DateRange{
			Field: study.FieldPublishedAt,
			From:  p.PublishedFrom,
			To:    p.PublishedTo,
		})
	}
	return filters
}

// datasetSort maps a sort name to dataset fields, always ending with the
// primary-key tiebreak so pagination stays stable. Relevance falls back to
// the default order when no free-text query is present.
func datasetSort(p *Params) []db.SortField {
	var fields []db.SortField
	switch p.Sort {
	case SortRelevance:
		if p.Query != "" {
			fields = append(fields, db.SortField{Field: db.SortScore, Desc: true})
		}
	case "releaseDate":
		fields = append(fields, db.SortField{Field: dataset.FieldReleaseDate, Desc: p.Desc})
	case "datasetId":
		fields = append(fields, db.SortField{Field: dataset.FieldDatasetID, Desc: p.Desc})
	case "":
		if p.Query != "" {
			fields = append(fields, db.SortField{Field: db.SortScore, Desc: true})
		} else {
			fields = append(fields, db.SortField{Field: dataset.FieldReleaseDate, Desc: true})
		}
	}
	return append(fields, db.SortField{Field: db.KeyField})
}

// studySort is datasetSort's study-collection counterpart.
func studySort(p *Params) []db.SortField {
	var fields []db.SortField
	switch p.Sort {
	case SortRelevance:
		if p.Query != "" {
			fields = append(fields, db.SortField{Field: db.SortScore, Desc: true})
		}
	case "publishedAt":
		fields = append(fields, db.SortField{Field: study.FieldPublishedAt, Desc: p.Desc})
	case "id":
		fields = append(fields, db.SortField{Field: study.FieldID, Desc: p.Desc})
	case "":
		if p.Query != "" {
			fields = append(fields, db.SortField{Field: db.SortScore, Desc: true})
		} else {
			fields = append(fields, db.SortField{Field: study.FieldPublishedAt, Desc: true})
		}
	}
	return append(fields, db.SortField{Field: db.KeyField})
}
