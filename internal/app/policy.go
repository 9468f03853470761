package app

import (
	"fmt"

	"github.com/dkeye/Classroom/internal/domain"
)

// Policy decides which affordances a participant gets. It is advisory: the
// signaling server enforces the same rules.
type Policy interface {
	CanModerate(actor, target domain.Role, action domain.Action) bool
	CanRecord(actor domain.Role) bool
}

// RolePolicy: admin acts on anyone, teacher acts on students, students act on nobody.
type RolePolicy struct{}

func (RolePolicy) CanModerate(actor, target domain.Role, action domain.Action) bool {
	return CanModerate(actor, target, action)
}

func (RolePolicy) CanRecord(actor domain.Role) bool {
	return actor == domain.RoleTeacher || actor == domain.RoleAdmin
}

func CanModerate(actor, target domain.Role, action domain.Action) bool {
	if !action.Valid() {
		return false
	}
	switch actor {
	case domain.RoleAdmin:
		return true
	case domain.RoleTeacher:
		return target == domain.RoleStudent
	}
	return false
}

// Authorize applies the policy to concrete participants. Turning off your own
// microphone or camera is not moderation and is always allowed.
func Authorize(p Policy, actor, target domain.Participant, action domain.Action) error {
	if !action.Valid() {
		return fmt.Errorf("%w: %q", domain.ErrUnknownAction, action)
	}
	if actor.ID == target.ID && action != domain.ActionKick {
		return nil
	}
	if !p.CanModerate(actor.Role, target.Role, action) {
		return fmt.Errorf("%w: %s cannot %s %s", domain.ErrPermissionDenied, actor.Role, action, target.Role)
	}
	return nil
}
