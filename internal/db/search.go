package db

// SortScore sorts by text relevance (descending). Only meaningful when the
// query carries a Text filter.
const SortScore = "_score"

// SortField is one sort criterion. Callers append a key sort as the final
// criterion for deterministic pagination.
type SortField struct {
	Field string
	Desc  bool
}

// Collapse deduplicates hits to one document per distinct value of Field.
// The representative per group is the first document under InnerSort; the
// collapsed hits are then ordered by the query's Sort and paginated.
// Collapsing changes the meaning of SearchResult.Total (it stays the raw
// pre-collapse hit count), so pagination totals over collapsed results must
// come from a Cardinality aggregation on the collapse field.
type Collapse struct {
	Field     string
	InnerSort []SortField
}

// SearchQuery is a filtered, sorted, paginated, optionally aggregated and
// collapsed query over one collection. Filters are ANDed. Aggregations are
// computed over the full filtered set, unaffected by Collapse and paging.
// Size <= 0 requests an aggregation-only response with no hits.
type SearchQuery struct {
	Filters  []Filter
	Sort     []SortField
	From     int
	Size     int
	Aggs     map[string]Agg
	Collapse *Collapse
}

// Agg is one aggregation request. Exactly one of Terms, Cardinality,
// Nested, or ReverseNested is set.
type Agg struct {
	// Terms buckets documents (or sub-records, inside a Nested wrapper) by
	// the distinct values of a field.
	Terms *TermsAgg
	// Cardinality counts distinct values of a field across matching documents.
	Cardinality *CardinalityAgg
	// Nested descends into the array of sub-documents at this path; Sub
	// aggregations then run per sub-record.
	Nested string
	// ReverseNested, inside a Terms bucket under a Nested wrapper, counts
	// the distinct root documents contributing to the bucket.
	ReverseNested bool
	// Sub holds sub-aggregations (per bucket for Terms, under the wrapper
	// node for Nested).
	Sub map[string]Agg
}

// TermsAgg buckets by field value.
type TermsAgg struct {
	Field string
	Size  int
}

// CardinalityAgg counts distinct field values.
type CardinalityAgg struct {
	Field string
}

// AggTree is the aggregation response, keyed by request name. Its shape
// mirrors the request: Nested wrappers become nodes with Sub, Terms become
// nodes with Buckets, ReverseNested and Cardinality become leaf counts.
type AggTree map[string]*AggNode

// AggNode is one node of the aggregation response.
type AggNode struct {
	// DocCount is the number of documents or sub-records at this node
	// (Nested wrappers and ReverseNested leaves).
	DocCount int64
	// Value is the distinct count for Cardinality nodes.
	Value int64
	// Buckets holds Terms buckets.
	Buckets []AggBucket
	// Sub holds sub-aggregation results for wrapper nodes.
	Sub AggTree
}

// AggBucket is one Terms bucket.
type AggBucket struct {
	Key      string
	DocCount int64
	Sub      AggTree
}

// Hit is a single search hit.
type Hit struct {
	Key    string
	Score  float64
	Source []byte
	Token  Token
}

// SearchResult is the response to a SearchQuery.
type SearchResult struct {
	// Total is the raw count of matching documents before collapsing.
	Total int64
	Hits  []Hit
	Aggs  AggTree
}
