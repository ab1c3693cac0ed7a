package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// Token is the opaque optimistic-concurrency marker returned on every read
// and required on every write. Two internal parts (write sequence and store
// epoch), exposed as one comparable value so storage version semantics never
// leak into business logic.
type Token struct {
	Seq  int64
	Term int64
}

// IsZero reports whether the token is unset.
func (t Token) IsZero() bool { return t.Seq == 0 && t.Term == 0 }

// String renders the token in its wire form "seq-term".
func (t Token) String() string {
	return strconv.FormatInt(t.Seq, 10) + "-" + strconv.FormatInt(t.Term, 10)
}

// ParseToken parses the wire form produced by String.
func ParseToken(s string) (Token, error) {
	seqStr, termStr, ok := strings.Cut(s, "-")
	if !ok {
		return Token{}, fmt.Errorf("malformed version token %q: %w", s, ErrValidation)
	}
	seq, err := strconv.ParseInt(seqStr, 10, 64)
	if err != nil {
		return Token{}, fmt.Errorf("malformed version token %q: %w", s, ErrValidation)
	}
	term, err := strconv.ParseInt(termStr, 10, 64)
	if err != nil {
		return Token{}, fmt.Errorf("malformed version token %q: %w", s, ErrValidation)
	}
	return Token{Seq: seq, Term: term}, nil
}
