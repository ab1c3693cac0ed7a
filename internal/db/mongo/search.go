package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/studycat-io/studycat/internal/db"
)

const scoreField = "_score"

// Search runs the main query (with optional collapse) plus one aggregation
// pipeline per requested facet, all over the same filter set.
func (s *Store) Search(ctx context.Context, collection string, q *db.SearchQuery) (*db.SearchResult, error) {
	match, err := compileFilters(q.Filters)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	total, err := s.coll(collection).CountDocuments(ctx, match)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	res := &db.SearchResult{Total: total}

	if q.Size > 0 {
		hits, err := s.fetchHits(ctx, collection, match, q)
		if err != nil {
			return nil, err
		}
		res.Hits = hits
	}

	if len(q.Aggs) > 0 {
		res.Aggs = make(db.AggTree, len(q.Aggs))
		for name, agg := range q.Aggs {
			node, err := s.runAgg(ctx, collection, match, agg)
			if err != nil {
				return nil, err
			}
			res.Aggs[name] = node
		}
	}
	return res, nil
}

func (s *Store) fetchHits(ctx context.Context, collection string, match bson.M, q *db.SearchQuery) ([]db.Hit, error) {
	scored := hasTextFilter(q.Filters)
	pipeline := bson.A{bson.M{"$match": match}}
	if scored {
		pipeline = append(pipeline, bson.M{"$addFields": bson.M{scoreField: bson.M{"$meta": "textScore"}}})
	}

	if q.Collapse != nil {
		if inner := sortDoc(q.Collapse.InnerSort); len(inner) > 0 {
			pipeline = append(pipeline, bson.M{"$sort": inner})
		}
		pipeline = append(pipeline,
			bson.M{"$group": bson.M{"_id": "$" + mapField(q.Collapse.Field), "doc": bson.M{"$first": "$$ROOT"}}},
			bson.M{"$replaceRoot": bson.M{"newRoot": "$doc"}},
		)
	}
	if main := sortDoc(q.Sort); len(main) > 0 {
		pipeline = append(pipeline, bson.M{"$sort": main})
	}
	if q.From > 0 {
		pipeline = append(pipeline, bson.M{"$skip": q.From})
	}
	pipeline = append(pipeline, bson.M{"$limit": q.Size})

	cur, err := s.coll(collection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	defer cur.Close(ctx)

	var hits []db.Hit
	for cur.Next(ctx) {
		var m bson.M
		if err := cur.Decode(&m); err != nil {
			return nil, &db.Error{Op: db.OpSearch, Err: err}
		}
		key, _ := m["_id"].(string)
		var score float64
		if v, ok := m[scoreField]; ok {
			if f, ok := v.(float64); ok {
				score = f
			}
			delete(m, scoreField)
		}
		raw, tok, err := stripMeta(m)
		if err != nil {
			return nil, &db.Error{Op: db.OpSearch, Err: err}
		}
		hits = append(hits, db.Hit{Key: key, Score: score, Source: raw, Token: tok})
	}
	if err := cur.Err(); err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	return hits, nil
}

func sortDoc(fields []db.SortField) bson.D {
	d := bson.D{}
	for _, f := range fields {
		dir := 1
		if f.Desc {
			dir = -1
		}
		name := mapField(f.Field)
		if f.Field == db.SortScore {
			name = scoreField
		}
		d = append(d, bson.E{Key: name, Value: dir})
	}
	return d
}

// runAgg evaluates one aggregation request. The engine issues a fixed set of
// shapes (flat terms, cardinality, and nested chains ending in a terms
// bucket with an optional reverse-nested count); anything else is rejected.
func (s *Store) runAgg(ctx context.Context, collection string, match bson.M, agg db.Agg) (*db.AggNode, error) {
	switch {
	case agg.Cardinality != nil:
		return s.runCardinality(ctx, collection, match, agg.Cardinality.Field)
	case agg.Terms != nil:
		return s.runTerms(ctx, collection, match, nil, "", agg)
	case agg.Nested != "":
		return s.runNestedChain(ctx, collection, match, agg)
	default:
		return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("unsupported aggregation shape")}
	}
}

func (s *Store) runCardinality(ctx context.Context, collection string, match bson.M, field string) (*db.AggNode, error) {
	pipeline := bson.A{
		bson.M{"$match": match},
		bson.M{"$group": bson.M{"_id": nil, "set": bson.M{"$addToSet": "$" + mapField(field)}}},
		bson.M{"$project": bson.M{"n": bson.M{"$size": "$set"}}},
	}
	cur, err := s.coll(collection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	defer cur.Close(ctx)

	node := &db.AggNode{}
	if cur.Next(ctx) {
		var m bson.M
		if err := cur.Decode(&m); err != nil {
			return nil, &db.Error{Op: db.OpSearch, Err: err}
		}
		node.Value = asInt64(m["n"])
	}
	return node, cur.Err()
}

// runNestedChain unwinds each nested level, then delegates to the terminal
// terms aggregation. The response tree mirrors the request shape so the
// facet extractor can walk it identically across drivers.
func (s *Store) runNestedChain(ctx context.Context, collection string, match bson.M, agg db.Agg) (*db.AggNode, error) {
	var unwinds []string
	prefix := ""
	cur := agg
	var chain []string

	for cur.Nested != "" {
		if prefix == "" {
			prefix = cur.Nested
		} else {
			prefix = prefix + "." + cur.Nested
		}
		unwinds = append(unwinds, prefix)

		if len(cur.Sub) != 1 {
			return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("nested aggregation requires exactly one sub-aggregation")}
		}
		for name, sub := range cur.Sub {
			chain = append(chain, name)
			cur = sub
		}
	}
	if cur.Terms == nil {
		return nil, &db.Error{Op: db.OpSearch, Err: fmt.Errorf("nested aggregation must end in a terms bucket")}
	}

	terms, err := s.runTerms(ctx, collection, match, unwinds, prefix, cur)
	if err != nil {
		return nil, err
	}

	// Wrap the terms node to mirror the request nesting.
	node := terms
	for i := len(chain) - 1; i >= 0; i-- {
		node = &db.AggNode{Sub: db.AggTree{chain[i]: node}}
	}
	return node, nil
}

func (s *Store) runTerms(
	ctx context.Context, collection string, match bson.M,
	unwinds []string, prefix string, agg db.Agg,
) (*db.AggNode, error) {
	reverseName := ""
	for name, sub := range agg.Sub {
		if sub.ReverseNested {
			reverseName = name
		}
	}

	field := agg.Terms.Field
	if prefix != "" {
		field = prefix + "." + field
	}

	pipeline := bson.A{bson.M{"$match": match}}
	for _, u := range unwinds {
		pipeline = append(pipeline, bson.M{"$unwind": "$" + u})
	}
	group := bson.M{"_id": "$" + mapField(field), "count": bson.M{"$sum": 1}}
	if reverseName != "" {
		// $group overwrites _id, so stash the root key first.
		pipeline = append(pipeline, bson.M{"$addFields": bson.M{"_root": "$_id"}})
		group["roots"] = bson.M{"$addToSet": "$_root"}
	}
	pipeline = append(pipeline, bson.M{"$group": group})
	pipeline = append(pipeline, bson.M{"$sort": bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}})
	if agg.Terms.Size > 0 {
		pipeline = append(pipeline, bson.M{"$limit": agg.Terms.Size})
	}

	cur, err := s.coll(collection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	defer cur.Close(ctx)

	node := &db.AggNode{}
	for cur.Next(ctx) {
		var m bson.M
		if err := cur.Decode(&m); err != nil {
			return nil, &db.Error{Op: db.OpSearch, Err: err}
		}
		key := bucketKey(m["_id"])
		if key == "" {
			continue
		}
		bucket := db.AggBucket{Key: key, DocCount: asInt64(m["count"])}
		if reverseName != "" {
			roots, _ := m["roots"].(bson.A)
			bucket.Sub = db.AggTree{reverseName: {DocCount: int64(len(roots))}}
		}
		node.Buckets = append(node.Buckets, bucket)
	}
	return node, cur.Err()
}

func bucketKey(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case int32, int64, float64:
		return fmt.Sprintf("%v", t)
	default:
		return ""
	}
}
