package rtc

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// remoteKind maps a remote track to a media kind. Screen tracks carry a
// "screen" track id prefix; the stream id is the sender's user id.
func remoteKind(track *webrtc.TrackRemote) domain.MediaKind {
	if track.Kind() == webrtc.RTPCodecTypeAudio {
		return domain.MediaAudio
	}
	if strings.HasPrefix(track.ID(), string(domain.MediaScreen)) {
		return domain.MediaScreen
	}
	return domain.MediaVideo
}

// watcher reports a remote track as enabled while packets flow and disabled
// after idle without packets or once the track ends.
type watcher struct {
	track  *webrtc.TrackRemote
	cancel context.CancelFunc
}

type watchers struct {
	mu     sync.Mutex
	byID   map[string]*watcher
	idle   time.Duration
	report func(core.TrackState)
}

func newWatchers(idle time.Duration, report func(core.TrackState)) *watchers {
	return &watchers{byID: make(map[string]*watcher), idle: idle, report: report}
}

// start replaces any watcher for the same track id and starts the read loop.
func (m *watchers) start(ctx context.Context, track *webrtc.TrackRemote) {
	logger := log.With().
		Str("module", "rtc").
		Str("user", track.StreamID()).
		Str("track_id", track.ID()).
		Logger()

	wctx, cancel := context.WithCancel(ctx)
	w := &watcher{track: track, cancel: cancel}

	m.mu.Lock()
	if old, ok := m.byID[track.ID()]; ok {
		logger.Info().Msg("replacing existing watcher")
		old.cancel()
	}
	m.byID[track.ID()] = w
	m.mu.Unlock()

	go m.loop(wctx, w, &logger)
}

func (m *watchers) loop(ctx context.Context, w *watcher, logger *zerolog.Logger) {
	state := core.TrackState{UserID: domain.UserID(w.track.StreamID()), Kind: remoteKind(w.track)}
	defer func() {
		m.mu.Lock()
		if m.byID[w.track.ID()] == w {
			delete(m.byID, w.track.ID())
		}
		m.mu.Unlock()
		if state.Enabled {
			state.Enabled = false
			m.report(state)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("watcher ctx done")
			return
		default:
		}
		if m.idle > 0 {
			_ = w.track.SetReadDeadline(time.Now().Add(m.idle))
		}
		_, _, err := w.track.ReadRTP()
		var netErr net.Error
		switch {
		case err == nil:
			if !state.Enabled {
				state.Enabled = true
				m.report(state)
			}
		case errors.As(err, &netErr) && netErr.Timeout():
			if state.Enabled {
				state.Enabled = false
				m.report(state)
			}
		default:
			logger.Info().Err(err).Msg("remote track ended")
			return
		}
	}
}

func (m *watchers) stopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, w := range m.byID {
		w.cancel()
		delete(m.byID, id)
	}
}
