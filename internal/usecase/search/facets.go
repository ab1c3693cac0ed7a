package search

import (
	"github.com/studycat-io/studycat/internal/db"
	"github.com/studycat-io/studycat/internal/repository/dataset"
)

// facetBucketSize bounds the number of values returned per facet.
const facetBucketSize = 50

// Inner aggregation names; the response tree mirrors the request, so the
// extractor walks these same names back out.
const (
	aggValues   = "values"
	aggDatasets = "datasets"
)

// facetShape declares how deep a facet's field sits. The extractor selects
// the walk from this table instead of probing the response structure.
type facetShape int

const (
	// shapeFlat buckets a top-level dataset field.
	shapeFlat facetShape = iota
	// shapeNested buckets an experiment field; bucket counts come from the
	// distinct-parent reverse count, not the sub-record count.
	shapeNested
	// shapeDoubleNested buckets a disease field two levels down, also
	// reverse-counted.
	shapeDoubleNested
)

type facetDef struct {
	name  string
	shape facetShape
	field string
}

// facetDefs is the static facet table. Order fixes the response order.
var facetDefs = []facetDef{
	{name: "typeOfData", shape: shapeFlat, field: dataset.FieldTypeOfData},
	{name: "accessCriteria", shape: shapeFlat, field: dataset.FieldAccessCriteria},
	{name: "assayType", shape: shapeNested, field: dataset.ExpAssayType},
	{name: "tissue", shape: shapeNested, field: dataset.ExpTissue},
	{name: "platform", shape: shapeNested, field: dataset.ExpPlatform},
	{name: "tumor", shape: shapeNested, field: dataset.ExpTumor},
	{name: "diseaseCode", shape: shapeDoubleNested, field: dataset.DiseaseCode},
}

// FacetBucket is one value/count pair of a facet.
type FacetBucket struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

// buildFacetAggs builds the aggregation requests for every declared facet.
func buildFacetAggs() map[string]db.Agg {
	aggs := make(map[string]db.Agg, len(facetDefs))
	for _, def := range facetDefs {
		terms := db.Agg{
			Terms: &db.TermsAgg{Field: def.field, Size: facetBucketSize},
		}
		switch def.shape {
		case shapeFlat:
			aggs[def.name] = terms
		case shapeNested:
			terms.Sub = map[string]db.Agg{aggDatasets: {ReverseNested: true}}
			aggs[def.name] = db.Agg{
				Nested: dataset.PathExperiments,
				Sub:    map[string]db.Agg{aggValues: terms},
			}
		case shapeDoubleNested:
			terms.Sub = map[string]db.Agg{aggDatasets: {ReverseNested: true}}
			aggs[def.name] = db.Agg{
				Nested: dataset.PathExperiments,
				Sub: map[string]db.Agg{aggValues: {
					Nested: dataset.PathDiseases,
					Sub:    map[string]db.Agg{aggValues: terms},
				}},
			}
		}
	}
	return aggs
}

// extractFacets walks the aggregation response along each facet's declared
// shape and returns value/count lists. A bucket's count is its reverse count
// when present, so a dataset with three matching experiments counts once.
// Missing or empty aggregations yield no key at all.
func extractFacets(tree db.AggTree) map[string][]FacetBucket {
	out := make(map[string][]FacetBucket)
	for _, def := range facetDefs {
		node := tree[def.name]
		switch def.shape {
		case shapeNested:
			node = child(node, aggValues)
		case shapeDoubleNested:
			node = child(child(node, aggValues), aggValues)
		}
		if node == nil || len(node.Buckets) == 0 {
			continue
		}
		buckets := make([]FacetBucket, 0, len(node.Buckets))
		for _, b := range node.Buckets {
			count := b.DocCount
			if rev, ok := b.Sub[aggDatasets]; ok {
				count = rev.DocCount
			}
			buckets = append(buckets, FacetBucket{Value: b.Key, Count: count})
		}
		out[def.name] = buckets
	}
	return out
}

func child(node *db.AggNode, name string) *db.AggNode {
	if node == nil {
		return nil
	}
	return node.Sub[name]
}
