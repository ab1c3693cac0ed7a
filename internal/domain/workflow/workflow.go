// Package workflow is the publication state machine for studies. It is pure:
// every check runs against an in-memory Study before any write is attempted.
package workflow

import (
	"fmt"

	"github.com/studycat-io/studycat/internal/domain"
)

// Action is a workflow transition request.
type Action string

const (
	ActionSubmit    Action = "submit"
	ActionApprove   Action = "approve"
	ActionReject    Action = "reject"
	ActionUnpublish Action = "unpublish"
	ActionDelete    Action = "delete"
)

// ParseAction validates an action string.
func ParseAction(s string) (Action, error) {
	switch Action(s) {
	case ActionSubmit, ActionApprove, ActionReject, ActionUnpublish, ActionDelete:
		return Action(s), nil
	default:
		return "", fmt.Errorf("unknown workflow action %q: %w", s, domain.ErrValidation)
	}
}

type transition struct {
	from domain.Status
	to   domain.Status
	// fromAny transitions from every non-terminal status.
	fromAny bool
	// ownerAllowed permits study owners in addition to admins.
	ownerAllowed bool
}

var transitions = map[Action]transition{
	ActionSubmit:    {from: domain.StatusDraft, to: domain.StatusReview, ownerAllowed: true},
	ActionApprove:   {from: domain.StatusReview, to: domain.StatusPublished},
	ActionReject:    {from: domain.StatusReview, to: domain.StatusDraft},
	ActionUnpublish: {from: domain.StatusPublished, to: domain.StatusDraft},
	ActionDelete:    {to: domain.StatusDeleted, fromAny: true},
}

// Target returns the status an action transitions into.
func Target(action Action) (domain.Status, error) {
	t, ok := transitions[action]
	if !ok {
		return "", fmt.Errorf("unknown workflow action %q: %w", action, domain.ErrValidation)
	}
	return t.to, nil
}

// CanPerform is the pure role guard: admins may perform any action,
// owners only the owner-gated ones.
func CanPerform(actor domain.Actor, study *domain.Study, action Action) bool {
	t, ok := transitions[action]
	if !ok {
		return false
	}
	if actor.Admin {
		return true
	}
	return t.ownerAllowed && !actor.IsAnonymous() && study.IsOwner(actor.ID)
}

// Validate checks an action against the study's current state and the
// actor's role. Role failures surface as ErrForbidden; a from-state
// mismatch surfaces as a StateMismatchError. Nothing is written here.
func Validate(actor domain.Actor, study *domain.Study, action Action) error {
	t, ok := transitions[action]
	if !ok {
		return fmt.Errorf("unknown workflow action %q: %w", action, domain.ErrValidation)
	}
	if !CanPerform(actor, study, action) {
		return fmt.Errorf("action %q: %w", action, domain.ErrForbidden)
	}
	if study.Status() == domain.StatusDeleted {
		return &domain.StateMismatchError{Action: string(action), Want: t.from, Got: study.Status()}
	}
	if !t.fromAny && study.Status() != t.from {
		return &domain.StateMismatchError{Action: string(action), Want: t.from, Got: study.Status()}
	}
	return nil
}
