package memory

import (
	"context"
	"sort"

	"github.com/studycat-io/studycat/internal/db"
)

type matched struct {
	key   string
	doc   map[string]any
	raw   []byte
	token db.Token
	score float64
}

// Search evaluates filters over the collection, computes aggregations over
// the full filtered set, then collapses, sorts, and paginates the hits.
func (s *Store) Search(_ context.Context, collection string, q *db.SearchQuery) (*db.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []matched
	for key, e := range s.collections[collection] {
		if ok, score := matchFilters(key, e.doc, q.Filters); ok {
			hits = append(hits, matched{key: key, doc: e.doc, raw: e.raw, token: e.token, score: score})
		}
	}

	res := &db.SearchResult{Total: int64(len(hits))}
	if len(q.Aggs) > 0 {
		res.Aggs = computeAggs(hits, q.Aggs)
	}
	if q.Size <= 0 {
		// Aggregation-only query.
		return res, nil
	}

	if q.Collapse != nil {
		hits = collapse(hits, q.Collapse)
	}
	sortHits(hits, q.Sort)
	hits = paginate(hits, q.From, q.Size)

	res.Hits = make([]db.Hit, 0, len(hits))
	for _, h := range hits {
		res.Hits = append(res.Hits, db.Hit{Key: h.key, Score: h.score, Source: cloneBytes(h.raw), Token: h.token})
	}
	return res, nil
}

// collapse keeps one hit per distinct value of the collapse field, picking
// the first under InnerSort. Hits without a value collapse under "".
func collapse(hits []matched, c *db.Collapse) []matched {
	best := make(map[string]matched)
	var order []string
	for _, h := range hits {
		group := ""
		if vals := fieldValues(h.key, h.doc, c.Field); len(vals) > 0 {
			group = stringValue(vals[0])
		}
		cur, ok := best[group]
		if !ok {
			best[group] = h
			order = append(order, group)
			continue
		}
		if compareHits(h, cur, c.InnerSort) < 0 {
			best[group] = h
		}
	}
	out := make([]matched, 0, len(best))
	for _, g := range order {
		out = append(out, best[g])
	}
	return out
}

func sortHits(hits []matched, fields []db.SortField) {
	if len(fields) == 0 {
		return
	}
	sort.SliceStable(hits, func(i, j int) bool {
		return compareHits(hits[i], hits[j], fields) < 0
	})
}

// compareHits orders two hits by the sort fields; ties on every field
// compare equal (0).
func compareHits(a, b matched, fields []db.SortField) int {
	for _, f := range fields {
		var cmp int
		if f.Field == db.SortScore {
			cmp = compareFloat(a.score, b.score)
		} else {
			cmp = compareValues(sortValue(a, f.Field), sortValue(b, f.Field))
		}
		if f.Desc {
			cmp = -cmp
		}
		if cmp != 0 {
			return cmp
		}
	}
	return 0
}

func sortValue(h matched, field string) any {
	vals := fieldValues(h.key, h.doc, field)
	if len(vals) == 0 {
		return nil
	}
	return vals[0]
}

func compareValues(a, b any) int {
	an, aok := numericValue(a)
	bn, bok := numericValue(b)
	if aok && bok {
		return compareFloat(an, bn)
	}
	as, bs := stringValue(a), stringValue(b)
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	default:
		return 0
	}
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func paginate(hits []matched, from, size int) []matched {
	if from < 0 {
		from = 0
	}
	if from >= len(hits) {
		return nil
	}
	hits = hits[from:]
	if size < len(hits) {
		hits = hits[:size]
	}
	return hits
}
