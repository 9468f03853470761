package orch

import (
	"context"
	"errors"
	"fmt"

	"github.com/dkeye/Classroom/internal/app"
	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/rs/zerolog/log"
)

func (o *Orchestrator) KickParticipant(ctx context.Context, target domain.UserID) error {
	return o.moderate(ctx, target, []domain.Action{domain.ActionKick})
}

// StopParticipantMedia turns a participant's audio, video or both off. Targeting
// yourself is a plain local toggle.
func (o *Orchestrator) StopParticipantMedia(ctx context.Context, target domain.UserID, what domain.MediaTarget) error {
	actions := what.Actions()
	if len(actions) == 0 {
		return fmt.Errorf("%w: %q", domain.ErrUnknownKind, what)
	}
	return o.moderate(ctx, target, actions)
}

func (o *Orchestrator) moderate(ctx context.Context, targetID domain.UserID, actions []domain.Action) error {
	var err error
	if derr := o.do(ctx, func() {
		if err = o.requireConnected(); err != nil {
			return
		}
		defer o.publish()
		st := o.st
		me, _ := st.registry.Get(st.local.ID)
		target, ok := st.registry.Get(targetID)
		if !ok {
			err = fmt.Errorf("%w: unknown participant %s", domain.ErrStaleEvent, targetID)
			return
		}
		for _, action := range actions {
			if action == domain.ActionKick && targetID == st.local.ID {
				err = fmt.Errorf("%w: cannot kick yourself, leave instead", domain.ErrPermissionDenied)
				return
			}
			if err = app.Authorize(o.Policy, *me, *target, action); err != nil {
				if errors.Is(err, domain.ErrPermissionDenied) {
					o.notify(domain.NoticePermissionDenied, err.Error())
				}
				return
			}
		}
		for _, action := range actions {
			if targetID == st.local.ID {
				if kind, ok := actionKind(action); ok && me.Flag(kind) {
					if err = o.beginMedia(kind, false); err != nil {
						return
					}
				}
				continue
			}
			if err = o.send(core.ModerationCommand{TargetID: targetID, Action: action}); err != nil {
				return
			}
			log.Info().Str("module", "orch").Str("target", string(targetID)).Str("action", string(action)).Msg("moderation sent")
		}
	}); derr != nil {
		return derr
	}
	return err
}

func actionKind(a domain.Action) (domain.MediaKind, bool) {
	switch a {
	case domain.ActionMute:
		return domain.MediaAudio, true
	case domain.ActionStopVideo:
		return domain.MediaVideo, true
	}
	return "", false
}

// onModeration applies a command aimed at the local user. Commands aimed at
// others show up as their own toggle and presence events.
func (o *Orchestrator) onModeration(ev core.ModerationReceived) {
	st := o.st
	if ev.TargetID != st.local.ID {
		return
	}
	log.Warn().Str("module", "orch").Str("actor", string(ev.ActorID)).Str("action", string(ev.Action)).Msg("moderated")
	if ev.Action == domain.ActionKick {
		o.notify(domain.NoticeKicked, fmt.Sprintf("removed from the session by %s", ev.ActorID))
		o.end(domain.PhaseKicked, "")
		return
	}
	kind, ok := actionKind(ev.Action)
	if !ok {
		log.Debug().Str("module", "orch").Str("action", string(ev.Action)).Msg("unknown moderation action dropped")
		return
	}
	me, ok := st.registry.Get(st.local.ID)
	if !ok || !me.Flag(kind) {
		return
	}
	if err := o.beginMedia(kind, false); err != nil {
		log.Warn().Str("module", "orch").Err(err).Msg("apply moderation")
	}
}

func (o *Orchestrator) StartRecording(ctx context.Context) error {
	return o.setRecording(ctx, true)
}

func (o *Orchestrator) StopRecording(ctx context.Context) error {
	return o.setRecording(ctx, false)
}

// setRecording flips the flag, then notifies the recording collaborator. The
// flag is announced on the signaling channel only once the collaborator
// accepted it and is rolled back otherwise.
func (o *Orchestrator) setRecording(ctx context.Context, active bool) error {
	var (
		err     error
		changed bool
		epoch   uint64
		sid     domain.SessionID
		prevBy  domain.UserID
	)
	if derr := o.do(ctx, func() {
		if err = o.requireConnected(); err != nil {
			return
		}
		st := o.st
		me, _ := st.registry.Get(st.local.ID)
		prevBy = st.recording.StartedBy()
		if active {
			changed, err = st.recording.Start(*me)
		} else {
			changed, err = st.recording.Stop(*me)
		}
		if errors.Is(err, domain.ErrPermissionDenied) {
			o.notify(domain.NoticePermissionDenied, err.Error())
		}
		epoch, sid = o.epoch, st.id
		o.publish()
	}); derr != nil {
		return derr
	}
	if err != nil || !changed {
		return err
	}

	go func() {
		callCtx, cancel := context.WithTimeout(context.Background(), o.opts.MediaCallTimeout)
		defer cancel()
		callErr := o.API.NotifyRecording(callCtx, sid, active)
		o.post(func() {
			if epoch != o.epoch {
				return
			}
			if callErr != nil {
				if o.st.recording.IsRecording() == active {
					o.st.recording.Apply(prevBy, !active)
				}
				o.notify(domain.NoticeOptimisticRollback, fmt.Sprintf("recording: %v", callErr))
			} else {
				_ = o.send(core.RecordingToggle{Active: active})
			}
			o.publish()
		})
	}()
	return nil
}
