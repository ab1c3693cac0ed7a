package search

// plan is the two-stage cross-collection query plan: an optional
// key-resolution stage whose output constrains the fetch stage. Making the
// stage explicit keeps the empty-key-set short circuit a visible branch
// rather than an incidental early return.
type plan struct {
	resolved bool
	keys     []string
}

// resolve records the key-resolution stage's output.
func (p *plan) resolve(keys []string) {
	p.resolved = true
	p.keys = keys
}

// shortCircuit reports whether the resolution stage ran and matched nothing,
// in which case the fetch stage is skipped and the result is empty (a valid
// "no matches" outcome, not an error).
func (p *plan) shortCircuit() bool {
	return p.resolved && len(p.keys) == 0
}
