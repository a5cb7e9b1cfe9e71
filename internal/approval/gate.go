// Package approval holds the one rule that decides whether a mutation is
// published immediately or queued for manual review. Property creation,
// property update and booking creation all go through it.
package approval

import (
	"fmt"

	"propertyhub/internal/apperr"
)

// Actor is the authenticated user behind a request. A nil *Actor means the
// request carries no session.
type Actor struct {
	UserID uint
	Email  string
	Admin  bool
}

// Decide reports whether the actor's mutations are auto-approved
func Decide(actor *Actor) bool {
	return actor != nil && actor.Admin
}

// Resolve returns the approval value a mutation ends up with.
// A nil requested value leaves current untouched. An explicit value is only
// accepted from a trusted actor.
func Resolve(actor *Actor, requested *bool, current bool) (bool, error) {
	if requested == nil {
		return current, nil
	}
	if !Decide(actor) {
		return current, fmt.Errorf("%w: only administrators can set approval", apperr.ErrForbidden)
	}
	return *requested, nil
}

// ForCreate resolves approval for a new record, defaulting to the actor's trust
func ForCreate(actor *Actor, requested *bool) (bool, error) {
	return Resolve(actor, requested, Decide(actor))
}
