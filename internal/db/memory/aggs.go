package memory

import (
	"sort"

	"github.com/studycat-io/studycat/internal/db"
)

// scoped is one record in the current aggregation scope: the root document
// key plus the map currently in scope (the document itself, or one
// sub-record after a Nested descent).
type scoped struct {
	rootKey string
	value   map[string]any
}

// computeAggs evaluates the aggregation requests over the filtered set.
func computeAggs(hits []matched, aggs map[string]db.Agg) db.AggTree {
	scope := make([]scoped, 0, len(hits))
	for _, h := range hits {
		scope = append(scope, scoped{rootKey: h.key, value: h.doc})
	}
	return evalAggs(scope, aggs)
}

func evalAggs(scope []scoped, aggs map[string]db.Agg) db.AggTree {
	tree := make(db.AggTree, len(aggs))
	for name, agg := range aggs {
		tree[name] = evalAgg(scope, agg)
	}
	return tree
}

func evalAgg(scope []scoped, agg db.Agg) *db.AggNode {
	switch {
	case agg.Nested != "":
		return evalNested(scope, agg)
	case agg.Terms != nil:
		return evalTerms(scope, agg)
	case agg.Cardinality != nil:
		return evalCardinality(scope, agg.Cardinality.Field)
	case agg.ReverseNested:
		return evalReverseNested(scope)
	default:
		return &db.AggNode{}
	}
}

// evalNested descends into the sub-record array, multiplying the scope: one
// scoped record per sub-record, all retaining their root key.
func evalNested(scope []scoped, agg db.Agg) *db.AggNode {
	var inner []scoped
	for _, s := range scope {
		for _, elem := range subRecords(s.value, agg.Nested) {
			inner = append(inner, scoped{rootKey: s.rootKey, value: elem})
		}
	}
	node := &db.AggNode{DocCount: int64(len(inner))}
	if len(agg.Sub) > 0 {
		node.Sub = evalAggs(inner, agg.Sub)
	}
	return node
}

// evalTerms buckets the scope by field value. Inside a nested scope each
// sub-record counts separately, so DocCount is inflated by multiplicity;
// a ReverseNested sub-aggregation supplies the distinct-root correction.
func evalTerms(scope []scoped, agg db.Agg) *db.AggNode {
	type group struct {
		members []scoped
	}
	groups := make(map[string]*group)
	for _, s := range scope {
		for _, v := range distinctStrings(fieldValues(s.rootKey, s.value, agg.Terms.Field)) {
			g, ok := groups[v]
			if !ok {
				g = &group{}
				groups[v] = g
			}
			g.members = append(g.members, s)
		}
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	// Order buckets by count descending, key ascending on ties.
	sort.Slice(keys, func(i, j int) bool {
		ci, cj := len(groups[keys[i]].members), len(groups[keys[j]].members)
		if ci != cj {
			return ci > cj
		}
		return keys[i] < keys[j]
	})
	if agg.Terms.Size > 0 && len(keys) > agg.Terms.Size {
		keys = keys[:agg.Terms.Size]
	}

	node := &db.AggNode{}
	for _, k := range keys {
		g := groups[k]
		bucket := db.AggBucket{Key: k, DocCount: int64(len(g.members))}
		if len(agg.Sub) > 0 {
			bucket.Sub = evalAggs(g.members, agg.Sub)
		}
		node.Buckets = append(node.Buckets, bucket)
	}
	return node
}

func evalCardinality(scope []scoped, field string) *db.AggNode {
	distinct := make(map[string]struct{})
	for _, s := range scope {
		for _, v := range fieldValues(s.rootKey, s.value, field) {
			distinct[stringValue(v)] = struct{}{}
		}
	}
	return &db.AggNode{Value: int64(len(distinct))}
}

// evalReverseNested counts the distinct root documents in scope.
func evalReverseNested(scope []scoped) *db.AggNode {
	roots := make(map[string]struct{})
	for _, s := range scope {
		roots[s.rootKey] = struct{}{}
	}
	return &db.AggNode{DocCount: int64(len(roots))}
}

func distinctStrings(vals []any) []string {
	seen := make(map[string]struct{}, len(vals))
	var out []string
	for _, v := range vals {
		s := stringValue(v)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
