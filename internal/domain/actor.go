package domain

// Actor is the authenticated identity a request runs as. The zero value is
// the anonymous actor.
type Actor struct {
	ID    string
	Admin bool
}

// Anonymous returns the unauthenticated actor.
func Anonymous() Actor { return Actor{} }

// IsAnonymous reports whether the actor carries no identity.
func (a Actor) IsAnonymous() bool { return a.ID == "" }
