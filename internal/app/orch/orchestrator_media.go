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

func (o *Orchestrator) SetAudioEnabled(ctx context.Context, enabled bool) error {
	return o.setMedia(ctx, domain.MediaAudio, enabled)
}

func (o *Orchestrator) SetVideoEnabled(ctx context.Context, enabled bool) error {
	return o.setMedia(ctx, domain.MediaVideo, enabled)
}

// SetScreenSharing fails with ErrScreenAlreadyShared while someone else holds the screen.
func (o *Orchestrator) SetScreenSharing(ctx context.Context, enabled bool) error {
	return o.setMedia(ctx, domain.MediaScreen, enabled)
}

// setMedia writes the optimistic flag and returns; the transport call completes later.
func (o *Orchestrator) setMedia(ctx context.Context, kind domain.MediaKind, enabled bool) error {
	var err error
	if derr := o.do(ctx, func() {
		if err = o.requireConnected(); err != nil {
			return
		}
		err = o.beginMedia(kind, enabled)
		o.publish()
	}); derr != nil {
		return derr
	}
	return err
}

func (o *Orchestrator) beginMedia(kind domain.MediaKind, enabled bool) error {
	pend, err := o.st.media.ApplyOptimistic(kind, enabled)
	if err != nil {
		if errors.Is(err, domain.ErrScreenAlreadyShared) {
			o.notify(domain.NoticeScreenShareBusy, err.Error())
		}
		return err
	}
	epoch := o.epoch
	go o.runMediaCall(epoch, pend)
	return nil
}

func (o *Orchestrator) runMediaCall(epoch uint64, pend app.Pending) {
	ctx, cancel := context.WithTimeout(context.Background(), o.opts.MediaCallTimeout)
	defer cancel()
	callErr := o.Transport.SetMediaEnabled(ctx, pend.Kind, pend.Enabled)
	o.post(func() { o.completeMedia(epoch, pend, callErr) })
}

func (o *Orchestrator) completeMedia(epoch uint64, pend app.Pending, callErr error) {
	if epoch != o.epoch {
		log.Debug().Str("module", "orch").Str("kind", string(pend.Kind)).Msg("media completion after leave ignored")
		return
	}
	res := o.st.media.Complete(pend.Kind, pend.ID, callErr)
	switch res.Outcome {
	case app.OutcomeConfirmed:
		o.announceMedia(pend.Kind, pend.Enabled)
	case app.OutcomeRolledBack:
		o.notify(domain.NoticeOptimisticRollback, fmt.Sprintf("%v: %s: %v", domain.ErrOptimisticRollback, pend.Kind, callErr))
	case app.OutcomeAborted:
		if res.StopNeeded {
			go o.releaseScreen(epoch)
		}
	case app.OutcomeStale:
		// The transport may report the new track state before the call returns.
		// Announce only if that report agreed and no newer toggle is in flight.
		_, newer := o.st.media.Pending(pend.Kind)
		if me, ok := o.st.registry.Get(o.st.local.ID); ok && callErr == nil && !newer && me.Flag(pend.Kind) == pend.Enabled {
			o.announceMedia(pend.Kind, pend.Enabled)
			break
		}
		log.Debug().Str("module", "orch").Str("kind", string(pend.Kind)).Uint64("id", pend.ID).Msg("superseded media completion")
	}
	o.publish()
}

func (o *Orchestrator) announceMedia(kind domain.MediaKind, enabled bool) {
	if kind == domain.MediaScreen {
		_ = o.send(core.ScreenShareToggle{Active: enabled})
		return
	}
	_ = o.send(core.MediaToggle{Kind: kind, Enabled: enabled})
}

// releaseScreen stops a local capture that lost the screen to another participant.
func (o *Orchestrator) releaseScreen(epoch uint64) {
	ctx, cancel := context.WithTimeout(context.Background(), o.opts.MediaCallTimeout)
	defer cancel()
	if err := o.Transport.SetMediaEnabled(ctx, domain.MediaScreen, false); err != nil {
		log.Warn().Str("module", "orch").Uint64("epoch", epoch).Err(err).Msg("stop preempted screen capture")
	}
}

func (o *Orchestrator) onScreenShare(ev core.ScreenShareChanged) error {
	preempted, err := o.st.media.ApplyScreenShare(ev.UserID, ev.Active)
	if err != nil {
		return err
	}
	if preempted {
		name := string(ev.UserID)
		if p, ok := o.st.registry.Get(ev.UserID); ok && p.DisplayName != "" {
			name = p.DisplayName
		}
		o.notify(domain.NoticeScreenShareBusy, fmt.Sprintf("screen taken over by %s", name))
		go o.releaseScreen(o.epoch)
	}
	return nil
}
