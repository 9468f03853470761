package orch

import (
	"context"
	"fmt"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/rs/zerolog/log"
)

type JoinRequest struct {
	SessionID domain.SessionID
	User      domain.User
	Token     string
}

// Join validates the join window, mints transport credentials and connects.
// Network calls run outside the loop. Joining while connected is a no-op that
// returns the current state.
func (o *Orchestrator) Join(ctx context.Context, req JoinRequest) (Snapshot, error) {
	if err := req.User.Validate(); err != nil {
		return Snapshot{}, err
	}

	var (
		snap     Snapshot
		epoch    uint64
		already  bool
		busy     bool
		torndown <-chan struct{}
	)
	err := o.do(ctx, func() {
		switch o.st.phase {
		case domain.PhaseConnected:
			already = true
			snap = o.snapshot()
			return
		case domain.PhaseConnecting:
			busy = true
			return
		}
		o.epoch++
		epoch = o.epoch
		torndown = o.torndown
		o.st.stopFlush()
		o.st = o.newSession(req.SessionID, req.User, domain.PhaseConnecting)
		o.publish()
	})
	switch {
	case err != nil:
		return Snapshot{}, err
	case already:
		return snap, nil
	case busy:
		return Snapshot{}, fmt.Errorf("%w: join in progress", domain.ErrAlreadyConnected)
	}

	log.Info().Str("module", "orch").Str("session", string(req.SessionID)).Str("user", string(req.User.ID)).Msg("joining")

	// A dropped connection must be closed before a new one is dialed.
	if torndown != nil {
		select {
		case <-torndown:
		case <-ctx.Done():
			return o.failJoin(context.Background(), epoch, ctx.Err())
		}
	}

	window, err := o.API.JoinWindow(ctx, req.SessionID)
	if err != nil {
		return o.failJoin(ctx, epoch, fmt.Errorf("join window: %w", err))
	}
	if !window.Contains(o.opts.Now()) {
		return o.failJoin(ctx, epoch, domain.ErrJoinWindowClosed)
	}
	recordings, err := o.API.ListRecordings(ctx, req.SessionID)
	if err != nil {
		log.Warn().Str("module", "orch").Err(err).Msg("list recordings")
	}
	creds, err := o.API.MintCredentials(ctx, req.SessionID, req.User.ID)
	if err != nil {
		return o.failJoin(ctx, epoch, fmt.Errorf("mint credentials: %w", err))
	}
	if err := o.Transport.Connect(ctx, req.SessionID, req.Token, creds); err != nil {
		return o.failJoin(ctx, epoch, fmt.Errorf("connect: %w", err))
	}

	stale := false
	err = o.do(ctx, func() {
		if o.epoch != epoch {
			stale = true
			return
		}
		st := o.st
		st.phase = domain.PhaseConnected
		st.creds = creds
		st.window = window
		st.recordings = recordings
		st.registry.OnJoined(*domain.NewParticipant(req.User))
		_ = o.send(core.JoinRequest{User: req.User})
		if st.board.RequestFullState() {
			_ = o.send(core.WhiteboardRequest{})
		}
		o.publish()
	})
	if err != nil {
		return Snapshot{}, err
	}
	if stale {
		o.Transport.Disconnect()
		return Snapshot{}, fmt.Errorf("%w: left while connecting", domain.ErrNotConnected)
	}
	log.Info().Str("module", "orch").Str("session", string(req.SessionID)).Str("room", creds.Room).Msg("joined")

	if _, err := o.LoadOlder(ctx, ""); err != nil {
		log.Warn().Str("module", "orch").Err(err).Msg("initial history page")
	}
	return o.Snapshot(ctx)
}

// failJoin records a connection error. Participant state is left as it was.
func (o *Orchestrator) failJoin(ctx context.Context, epoch uint64, cause error) (Snapshot, error) {
	log.Error().Str("module", "orch").Err(cause).Msg("join failed")
	var snap Snapshot
	_ = o.do(ctx, func() {
		if o.epoch == epoch {
			o.st.phase = domain.PhaseFailed
			o.st.err = cause.Error()
			o.publish()
		}
		snap = o.snapshot()
	})
	return snap, cause
}

// Leave resets the session. Completions of calls still in flight are ignored afterwards.
func (o *Orchestrator) Leave(ctx context.Context) error {
	wasLive := false
	err := o.do(ctx, func() {
		switch o.st.phase {
		case domain.PhaseIdle, domain.PhaseDisconnected:
			return
		case domain.PhaseConnected:
			_ = o.send(core.LeaveNotice{})
		}
		wasLive = true
		o.epoch++
		o.st.stopFlush()
		o.st = o.newSession(o.st.id, domain.User{}, domain.PhaseDisconnected)
		o.publish()
	})
	if err != nil {
		return err
	}
	if wasLive {
		o.Transport.Disconnect()
		log.Info().Str("module", "orch").Msg("left session")
	}
	return nil
}

// end closes the session from inside the loop after a kick or a lost connection.
// The roster is kept so the final state stays visible.
func (o *Orchestrator) end(phase domain.ConnectionPhase, cause string) {
	o.epoch++
	o.st.stopFlush()
	o.st.phase = phase
	o.st.err = cause
	done := make(chan struct{})
	o.torndown = done
	go func() {
		defer close(done)
		o.Transport.Disconnect()
	}()
}

func (o *Orchestrator) dispatch(env core.Envelope) {
	if o.st.phase != domain.PhaseConnected {
		log.Debug().Str("module", "orch").Str("category", string(env.Event.Category())).Str("phase", string(o.st.phase)).Msg("event outside a live session dropped")
		return
	}
	st := o.st
	var err error
	switch ev := env.Event.(type) {
	case core.ParticipantJoined:
		p := ev.Participant
		// Screen ownership only changes through screen-share events.
		p.IsScreenSharing = false
		st.registry.OnJoined(p)
	case core.ParticipantLeft:
		if ev.UserID == st.local.ID {
			err = fmt.Errorf("%w: leave for the local user", domain.ErrStaleEvent)
			break
		}
		if !st.registry.OnLeft(ev.UserID) {
			err = fmt.Errorf("%w: leave for unknown user %s", domain.ErrStaleEvent, ev.UserID)
			break
		}
		st.media.OnLeft(ev.UserID)
	case core.PresenceChanged:
		if !st.registry.OnPresenceChanged(ev.UserID, ev.Online) {
			err = fmt.Errorf("%w: presence for unknown user %s", domain.ErrStaleEvent, ev.UserID)
			break
		}
		if !ev.Online {
			st.media.OnLeft(ev.UserID)
		}
	case core.MediaToggled:
		err = st.media.ApplyRemoteToggle(ev.UserID, ev.Kind, ev.Enabled)
	case core.ScreenShareChanged:
		err = o.onScreenShare(ev)
	case core.RecordingChanged:
		st.recording.Apply(ev.ActorID, ev.Active)
	case core.ChatReceived:
		if ev.Message.SessionID != "" && ev.Message.SessionID != st.id {
			err = fmt.Errorf("%w: message for session %s", domain.ErrStaleEvent, ev.Message.SessionID)
			break
		}
		st.chat.AppendIncoming(ev.Message)
	case core.ModerationReceived:
		o.onModeration(ev)
	case core.WhiteboardReceived:
		st.board.ApplyRemote(ev.Scene)
	case core.TrackStateChanged:
		user := ev.State.UserID
		if user == "" {
			user = st.local.ID
		}
		err = st.media.ApplyAuthoritative(user, ev.State.Kind, ev.State.Enabled)
	case core.ConnectionLost:
		cause := fmt.Sprintf("%s connection lost", ev.Source)
		if ev.Err != nil {
			cause = fmt.Sprintf("%s: %v", cause, ev.Err)
		}
		log.Error().Str("module", "orch").Str("source", ev.Source).Err(ev.Err).Msg("connection lost")
		o.end(domain.PhaseFailed, cause)
	}
	reportEventErr(env, err)
	o.publish()
}
