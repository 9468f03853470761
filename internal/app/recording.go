package app

import (
	"fmt"

	"github.com/dkeye/Classroom/internal/domain"
)

// RecordingController holds the single session-wide recording flag.
// It never produces the recorded artifact itself.
type RecordingController struct {
	policy Policy
	active bool
	by     domain.UserID
}

func NewRecordingController(p Policy) *RecordingController {
	return &RecordingController{policy: p}
}

func (r *RecordingController) IsRecording() bool        { return r.active }
func (r *RecordingController) StartedBy() domain.UserID { return r.by }

// Start reports whether the flag changed. Starting twice is a no-op.
func (r *RecordingController) Start(actor domain.Participant) (bool, error) {
	return r.toggle(actor, true)
}

// Stop reports whether the flag changed. Stopping while idle is a no-op.
func (r *RecordingController) Stop(actor domain.Participant) (bool, error) {
	return r.toggle(actor, false)
}

func (r *RecordingController) toggle(actor domain.Participant, active bool) (bool, error) {
	if !r.policy.CanRecord(actor.Role) {
		return false, fmt.Errorf("%w: %s cannot control recording", domain.ErrPermissionDenied, actor.Role)
	}
	if r.active == active {
		return false, nil
	}
	r.Apply(actor.ID, active)
	return true, nil
}

// Apply sets the flag from a recording event or a rollback.
func (r *RecordingController) Apply(by domain.UserID, active bool) {
	r.active = active
	if active {
		r.by = by
	} else {
		r.by = ""
	}
}
