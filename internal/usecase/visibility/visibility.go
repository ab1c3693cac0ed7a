// Package visibility derives who may see which studies. Datasets and study
// versions carry no status of their own; their visibility is always the
// owning study's.
package visibility

import (
	"github.com/studycat-io/studycat/internal/db"
	"github.com/studycat-io/studycat/internal/domain"
	"github.com/studycat-io/studycat/internal/repository/study"
)

// StatusFilter returns the filter restricting a search to the studies the
// actor may see, or nil when no restriction applies (admins).
//
// Anonymous readers see published studies only. Authenticated readers
// additionally see every study they own, whatever its status.
func StatusFilter(actor domain.Actor) db.Filter {
	if actor.Admin {
		return nil
	}
	published := db.Term{Field: study.FieldStatus, Value: string(domain.StatusPublished)}
	if actor.IsAnonymous() {
		return published
	}
	return db.Or{Filters: []db.Filter{
		published,
		db.Term{Field: study.FieldOwners, Value: actor.ID},
	}}
}

// CanAccess reports whether the actor may read the study. Callers translate
// a denial into not-found, never forbidden, so probing ids reveals nothing.
func CanAccess(actor domain.Actor, s *domain.Study) bool {
	if actor.Admin {
		return true
	}
	if s.Status() == domain.StatusPublished {
		return true
	}
	return !actor.IsAnonymous() && s.IsOwner(actor.ID)
}
