package memory

import (
	"strconv"
	"strings"

	"github.com/studycat-io/studycat/internal/db"
)

// matchFilters evaluates the conjunction of filters against one document and
// returns the relevance score accumulated by Text clauses.
func matchFilters(key string, doc map[string]any, filters []db.Filter) (bool, float64) {
	var score float64
	for _, f := range filters {
		ok, s := matchFilter(key, doc, f)
		if !ok {
			return false, 0
		}
		score += s
	}
	return true, score
}

func matchFilter(key string, doc map[string]any, f db.Filter) (bool, float64) {
	switch c := f.(type) {
	case db.Term:
		return containsValue(fieldValues(key, doc, c.Field), c.Value), 0
	case db.Terms:
		vals := fieldValues(key, doc, c.Field)
		for _, want := range c.Values {
			if containsValue(vals, want) {
				return true, 0
			}
		}
		return false, 0
	case db.Prefix:
		for _, v := range fieldValues(key, doc, c.Field) {
			s := stringValue(v)
			for _, p := range c.Values {
				if strings.HasPrefix(s, p) {
					return true, 0
				}
			}
		}
		return false, 0
	case db.Range:
		for _, v := range fieldValues(key, doc, c.Field) {
			n, ok := numericValue(v)
			if !ok {
				continue
			}
			if c.GTE != nil && n < *c.GTE {
				continue
			}
			if c.LTE != nil && n > *c.LTE {
				continue
			}
			return true, 0
		}
		return false, 0
	case db.DateRange:
		for _, v := range fieldValues(key, doc, c.Field) {
			s := stringValue(v)
			if s == "" {
				continue
			}
			if c.From != "" && s < c.From {
				continue
			}
			if c.To != "" && s > c.To {
				continue
			}
			return true, 0
		}
		return false, 0
	case db.Contains:
		needle := strings.ToLower(c.Value)
		for _, field := range c.Fields {
			for _, v := range fieldValues(key, doc, field) {
				if strings.Contains(strings.ToLower(stringValue(v)), needle) {
					return true, 0
				}
			}
		}
		return false, 0
	case db.Text:
		score := textScore(key, doc, c)
		return score > 0, score
	case db.Nested:
		for _, elem := range subRecords(doc, c.Path) {
			if ok, _ := matchFilters(key, elem, c.Filters); ok {
				return true, 0
			}
		}
		return false, 0
	case db.Or:
		for _, inner := range c.Filters {
			if ok, s := matchFilter(key, doc, inner); ok {
				return true, s
			}
		}
		return false, 0
	case db.Keys:
		for _, k := range c.Values {
			if k == key {
				return true, 0
			}
		}
		return false, 0
	default:
		return false, 0
	}
}

// textScore counts occurrences of each query token across the fields,
// case-insensitive. Zero means no match.
func textScore(key string, doc map[string]any, c db.Text) float64 {
	tokens := strings.Fields(strings.ToLower(c.Query))
	if len(tokens) == 0 {
		return 0
	}
	var score float64
	for _, field := range c.Fields {
		for _, v := range fieldValues(key, doc, field) {
			haystack := strings.ToLower(stringValue(v))
			for _, tok := range tokens {
				score += float64(strings.Count(haystack, tok))
			}
		}
	}
	return score
}

// fieldValues resolves a dotted path to its scalar values, fanning out over
// arrays along the way. The KeyField pseudo-field resolves to the key.
func fieldValues(key string, doc map[string]any, path string) []any {
	if path == db.KeyField {
		return []any{key}
	}
	return resolvePath(doc, strings.Split(path, "."))
}

func resolvePath(v any, parts []string) []any {
	if len(parts) == 0 {
		switch arr := v.(type) {
		case []any:
			var out []any
			for _, e := range arr {
				out = append(out, resolvePath(e, nil)...)
			}
			return out
		case map[string]any:
			return nil
		default:
			return []any{v}
		}
	}
	switch node := v.(type) {
	case map[string]any:
		child, ok := node[parts[0]]
		if !ok {
			return nil
		}
		return resolvePath(child, parts[1:])
	case []any:
		var out []any
		for _, e := range node {
			out = append(out, resolvePath(e, parts)...)
		}
		return out
	default:
		return nil
	}
}

// subRecords resolves a dotted path to the array of sub-documents at that
// path, fanning out over intermediate arrays.
func subRecords(doc map[string]any, path string) []map[string]any {
	var out []map[string]any
	for _, v := range resolveNode(doc, strings.Split(path, ".")) {
		if m, ok := v.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func resolveNode(v any, parts []string) []any {
	if len(parts) == 0 {
		if arr, ok := v.([]any); ok {
			return arr
		}
		return []any{v}
	}
	switch node := v.(type) {
	case map[string]any:
		child, ok := node[parts[0]]
		if !ok {
			return nil
		}
		return resolveNode(child, parts[1:])
	case []any:
		var out []any
		for _, e := range node {
			out = append(out, resolveNode(e, parts)...)
		}
		return out
	default:
		return nil
	}
}

func containsValue(vals []any, want string) bool {
	for _, v := range vals {
		if stringValue(v) == want {
			return true
		}
	}
	return false
}

func stringValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case nil:
		return ""
	default:
		return ""
	}
}

func numericValue(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case string:
		n, err := strconv.ParseFloat(t, 64)
		return n, err == nil
	default:
		return 0, false
	}
}
