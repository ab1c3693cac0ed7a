package db

// Filter is one clause of a store query. Clauses in a query's filter list
// are combined with AND; variants that carry several values OR within the
// clause. Field paths use dots ("title.ja", "experiments.tissue").
type Filter interface {
	filter()
}

// Term matches documents whose field equals the value exactly.
// On array fields the clause matches if any element equals the value.
type Term struct {
	Field string
	Value string
}

// Terms matches documents whose field equals any of the values (OR).
type Terms struct {
	Field  string
	Values []string
}

// Prefix matches documents whose field starts with any of the values,
// used for code-family filters (e.g. a disease code and its sub-codes).
type Prefix struct {
	Field  string
	Values []string
}

// Range matches a numeric field against optional inclusive bounds.
// A nil bound leaves that side open.
type Range struct {
	Field string
	GTE   *float64
	LTE   *float64
}

// DateRange matches a date field (ISO "2006-01-02" strings order
// lexicographically) against optional inclusive bounds.
type DateRange struct {
	Field string
	From  string
	To    string
}

// Contains matches if any of the fields contains the value as a
// case-insensitive substring, used across bilingual field pairs.
type Contains struct {
	Fields []string
	Value  string
}

// Text is a free-text relevance query over the given fields. Drivers score
// hits; hits may be sorted by SortScore.
type Text struct {
	Fields []string
	Query  string
}

// Nested scopes its inner clauses to a single element of the array of
// sub-documents at Path: a document matches if at least one element
// satisfies all inner filters. Separate Nested clauses on the same path are
// satisfied independently, possibly by different elements.
type Nested struct {
	Path    string
	Filters []Filter
}

// Or matches if any of the inner filters matches.
type Or struct {
	Filters []Filter
}

// Keys restricts matches to the given document keys.
type Keys struct {
	Values []string
}

func (Term) filter()      {}
func (Terms) filter()     {}
func (Prefix) filter()    {}
func (Range) filter()     {}
func (DateRange) filter() {}
func (Contains) filter()  {}
func (Text) filter()      {}
func (Nested) filter()    {}
func (Or) filter()        {}
func (Keys) filter()      {}
