package mongo

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/studycat-io/studycat/internal/db"
)

// compileFilters translates a clause list into one $match document.
func compileFilters(filters []db.Filter) (bson.M, error) {
	clauses, err := compileAll(filters)
	if err != nil {
		return nil, err
	}
	switch len(clauses) {
	case 0:
		return bson.M{}, nil
	case 1:
		return clauses[0], nil
	default:
		return bson.M{"$and": clauses}, nil
	}
}

func compileAll(filters []db.Filter) ([]bson.M, error) {
	out := make([]bson.M, 0, len(filters))
	for _, f := range filters {
		c, err := compileFilter(f)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func compileFilter(f db.Filter) (bson.M, error) {
	switch c := f.(type) {
	case db.Term:
		return bson.M{mapField(c.Field): bson.M{"$in": valueVariants(c.Value)}}, nil
	case db.Terms:
		var variants []any
		for _, v := range c.Values {
			variants = append(variants, valueVariants(v)...)
		}
		return bson.M{mapField(c.Field): bson.M{"$in": variants}}, nil
	case db.Prefix:
		alts := make([]string, 0, len(c.Values))
		for _, v := range c.Values {
			alts = append(alts, regexp.QuoteMeta(v))
		}
		pattern := "^(?:" + strings.Join(alts, "|") + ")"
		return bson.M{mapField(c.Field): bson.M{"$regex": pattern}}, nil
	case db.Range:
		bounds := bson.M{}
		if c.GTE != nil {
			bounds["$gte"] = *c.GTE
		}
		if c.LTE != nil {
			bounds["$lte"] = *c.LTE
		}
		return bson.M{mapField(c.Field): bounds}, nil
	case db.DateRange:
		bounds := bson.M{}
		if c.From != "" {
			bounds["$gte"] = c.From
		}
		if c.To != "" {
			bounds["$lte"] = c.To
		}
		return bson.M{mapField(c.Field): bounds}, nil
	case db.Contains:
		pattern := regexp.QuoteMeta(c.Value)
		ors := make([]bson.M, 0, len(c.Fields))
		for _, field := range c.Fields {
			ors = append(ors, bson.M{mapField(field): bson.M{"$regex": pattern, "$options": "i"}})
		}
		return bson.M{"$or": ors}, nil
	case db.Text:
		// Scoped to the collection's text index rather than c.Fields; the
		// index is created over the same fields by EnsureTextIndex.
		return bson.M{"$text": bson.M{"$search": c.Query}}, nil
	case db.Nested:
		inner, err := compileFilters(c.Filters)
		if err != nil {
			return nil, err
		}
		return bson.M{mapField(c.Path): bson.M{"$elemMatch": inner}}, nil
	case db.Or:
		ors, err := compileAll(c.Filters)
		if err != nil {
			return nil, err
		}
		return bson.M{"$or": ors}, nil
	case db.Keys:
		vals := make([]any, 0, len(c.Values))
		for _, v := range c.Values {
			vals = append(vals, v)
		}
		return bson.M{"_id": bson.M{"$in": vals}}, nil
	default:
		return nil, fmt.Errorf("unsupported filter %T", f)
	}
}

func mapField(field string) string {
	if field == db.KeyField {
		return "_id"
	}
	return field
}

// valueVariants widens a string filter value to the typed forms the value
// may be stored as (JSON booleans and numbers).
func valueVariants(v string) []any {
	variants := []any{v}
	switch v {
	case "true":
		variants = append(variants, true)
	case "false":
		variants = append(variants, false)
	default:
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			variants = append(variants, n)
		}
	}
	return variants
}

func hasTextFilter(filters []db.Filter) bool {
	for _, f := range filters {
		if _, ok := f.(db.Text); ok {
			return true
		}
	}
	return false
}
