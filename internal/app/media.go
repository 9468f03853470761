package app

import (
	"fmt"

	"github.com/dkeye/Classroom/internal/domain"
	"github.com/rs/zerolog/log"
)

// Pending is a local optimistic toggle whose transport call has not completed yet.
type Pending struct {
	ID      uint64
	Kind    domain.MediaKind
	Enabled bool
	Prev    bool
	// Aborted is set when a remote sharer took the screen while the call was in flight.
	Aborted bool
}

type Outcome int

const (
	// OutcomeStale means the completion no longer matches a pending toggle.
	OutcomeStale Outcome = iota
	OutcomeConfirmed
	OutcomeRolledBack
	// OutcomeAborted means the toggle was preempted; StopNeeded tells whether
	// the transport now holds a capture that must be released.
	OutcomeAborted
)

// Completion is what the arbiter decided when a transport call finished.
type Completion struct {
	Outcome    Outcome
	StopNeeded bool
}

// MediaArbiter reconciles optimistic local toggles with the state reported by
// the media transport, and keeps at most one screen sharer.
type MediaArbiter struct {
	reg     *Registry
	local   domain.UserID
	nextID  uint64
	pending map[domain.MediaKind]*Pending
	sharer  domain.UserID
}

func NewMediaArbiter(reg *Registry, local domain.UserID) *MediaArbiter {
	return &MediaArbiter{
		reg:     reg,
		local:   local,
		pending: make(map[domain.MediaKind]*Pending),
	}
}

// ActiveSharer returns "" when nobody shares.
func (a *MediaArbiter) ActiveSharer() domain.UserID { return a.sharer }

func (a *MediaArbiter) Pending(kind domain.MediaKind) (Pending, bool) {
	p, ok := a.pending[kind]
	if !ok {
		return Pending{}, false
	}
	return *p, true
}

// ApplyOptimistic writes the local flag before the transport call is issued.
func (a *MediaArbiter) ApplyOptimistic(kind domain.MediaKind, enabled bool) (Pending, error) {
	if !kind.Valid() {
		return Pending{}, fmt.Errorf("%w: %q", domain.ErrUnknownKind, kind)
	}
	me, ok := a.reg.Get(a.local)
	if !ok {
		return Pending{}, domain.ErrNotConnected
	}
	if kind == domain.MediaScreen && enabled && a.sharer != "" && a.sharer != a.local {
		name := string(a.sharer)
		if p, ok := a.reg.Get(a.sharer); ok && p.DisplayName != "" {
			name = p.DisplayName
		}
		return Pending{}, fmt.Errorf("%w by %s", domain.ErrScreenAlreadyShared, name)
	}

	a.nextID++
	p := &Pending{
		ID:      a.nextID,
		Kind:    kind,
		Enabled: enabled,
		Prev:    me.Flag(kind),
	}
	if old, ok := a.pending[kind]; ok {
		// The older call still counts as the value to return to.
		p.Prev = old.Prev
	}
	a.pending[kind] = p

	me.SetFlag(kind, enabled)
	if kind == domain.MediaScreen {
		switch {
		case enabled:
			a.sharer = a.local
		case a.sharer == a.local:
			a.sharer = ""
		}
	}
	return *p, nil
}

// Complete settles the transport call identified by id.
func (a *MediaArbiter) Complete(kind domain.MediaKind, id uint64, callErr error) Completion {
	p, ok := a.pending[kind]
	if !ok || p.ID != id {
		return Completion{Outcome: OutcomeStale}
	}
	delete(a.pending, kind)

	if p.Aborted {
		// A capture is left running if enabling succeeded or disabling failed.
		return Completion{Outcome: OutcomeAborted, StopNeeded: p.Enabled == (callErr == nil)}
	}
	if callErr == nil {
		return Completion{Outcome: OutcomeConfirmed}
	}

	if me, ok := a.reg.Get(a.local); ok {
		me.SetFlag(kind, p.Prev)
	}
	if kind == domain.MediaScreen {
		switch {
		case p.Prev:
			a.sharer = a.local
		case a.sharer == a.local:
			a.sharer = ""
		}
	}
	log.Warn().Str("module", "app.media").Str("kind", string(kind)).Bool("enabled", p.Enabled).Err(callErr).Msg("optimistic toggle rolled back")
	return Completion{Outcome: OutcomeRolledBack}
}

// ApplyAuthoritative overwrites the flag with what the transport reports.
// It always wins over a pending optimistic value.
func (a *MediaArbiter) ApplyAuthoritative(user domain.UserID, kind domain.MediaKind, enabled bool) error {
	p, ok := a.reg.Get(user)
	if !ok {
		return fmt.Errorf("%w: track state for unknown user %s", domain.ErrStaleEvent, user)
	}
	if user == a.local {
		delete(a.pending, kind)
	}
	if kind == domain.MediaScreen {
		a.setScreen(p, enabled)
		return nil
	}
	p.SetFlag(kind, enabled)
	return nil
}

// ApplyRemoteToggle handles a media-toggle broadcast. Toggles about the local
// user are ignored while a local call is in flight; the transport reports the truth.
func (a *MediaArbiter) ApplyRemoteToggle(user domain.UserID, kind domain.MediaKind, enabled bool) error {
	if kind == domain.MediaScreen {
		_, err := a.ApplyScreenShare(user, enabled)
		return err
	}
	p, ok := a.reg.Get(user)
	if !ok {
		return fmt.Errorf("%w: toggle for unknown user %s", domain.ErrStaleEvent, user)
	}
	if user == a.local {
		if _, busy := a.pending[kind]; busy {
			return nil
		}
	}
	p.SetFlag(kind, enabled)
	return nil
}

// ApplyScreenShare handles a screen-share event. The server is the tie-breaker:
// an active event makes user the sharer regardless of local state. It reports
// whether the local user lost a confirmed share and must stop capturing.
func (a *MediaArbiter) ApplyScreenShare(user domain.UserID, active bool) (bool, error) {
	p, ok := a.reg.Get(user)
	if !ok {
		return false, fmt.Errorf("%w: screen share from unknown user %s", domain.ErrStaleEvent, user)
	}
	if !active {
		p.IsScreenSharing = false
		if a.sharer == user {
			a.sharer = ""
		}
		return false, nil
	}

	preempted := false
	if user != a.local {
		if pend, ok := a.pending[domain.MediaScreen]; ok {
			pend.Aborted = true
		} else if me, ok := a.reg.Get(a.local); ok && me.IsScreenSharing {
			preempted = true
		}
	}
	a.setScreen(p, true)
	return preempted, nil
}

// OnLeft releases the screen when its holder leaves. Registry.OnLeft clears the flags.
func (a *MediaArbiter) OnLeft(user domain.UserID) {
	if a.sharer == user {
		a.sharer = ""
	}
	if user == a.local {
		clear(a.pending)
	}
}

func (a *MediaArbiter) setScreen(p *domain.Participant, active bool) {
	if !active {
		p.IsScreenSharing = false
		if a.sharer == p.ID {
			a.sharer = ""
		}
		return
	}
	a.reg.Each(func(other *domain.Participant) {
		if other.ID != p.ID {
			other.IsScreenSharing = false
		}
	})
	p.IsScreenSharing = true
	a.sharer = p.ID
}

// CheckInvariant verifies that the active sharer is the only participant flagged as sharing.
func (a *MediaArbiter) CheckInvariant() error {
	sharers := a.reg.ScreenSharers()
	switch {
	case len(sharers) > 1:
		return fmt.Errorf("%d participants sharing: %v", len(sharers), sharers)
	case len(sharers) == 1 && sharers[0] != a.sharer:
		return fmt.Errorf("active sharer %q but %q is sharing", a.sharer, sharers[0])
	case len(sharers) == 0 && a.sharer != "":
		return fmt.Errorf("active sharer %q is not sharing", a.sharer)
	}
	return nil
}
