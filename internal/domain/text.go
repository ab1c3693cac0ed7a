package domain

// Lang selects a projection language.
const (
	LangEN = "en"
	LangJA = "ja"
)

// Text is a bilingual text value. Either side may be empty.
type Text struct {
	JA string
	EN string
}

// IsEmpty reports whether both sides are empty.
func (t Text) IsEmpty() bool { return t.JA == "" && t.EN == "" }

// Resolve projects the text into one language with fallback:
// requested language, then English, then Japanese.
func (t Text) Resolve(lang string) string {
	if lang == LangJA && t.JA != "" {
		return t.JA
	}
	if t.EN != "" {
		return t.EN
	}
	return t.JA
}
