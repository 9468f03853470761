package rtc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var ErrClosed = errors.New("media connection closed")

type Config struct {
	ICEServers []domain.ICEServer
	// StreamID tags local tracks; the SFU uses it as the sender's user id.
	StreamID string
	// RemoteIdle is how long a remote track may stay silent before it is reported disabled.
	RemoteIdle time.Duration
}

func DefaultWebRTCConfig() webrtc.Configuration {
	return webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{
			{
				URLs: []string{"stun:stun.l.google.com:19302"},
			},
		},
	}
}

// webRTCConfig prefers servers minted with the credentials, then configured ones.
func webRTCConfig(cfg Config, creds domain.TransportCredentials) webrtc.Configuration {
	servers := creds.ICEServers
	if len(servers) == 0 {
		servers = cfg.ICEServers
	}
	if len(servers) == 0 {
		return DefaultWebRTCConfig()
	}
	out := webrtc.Configuration{}
	for _, s := range servers {
		out.ICEServers = append(out.ICEServers, webrtc.ICEServer{
			URLs:       s.URLs,
			Username:   s.Username,
			Credential: s.Credential,
		})
	}
	return out
}

// WebRTCConnection is the client side of the media transport: one peer
// connection to the SFU carrying the local captures and every remote track.
type WebRTCConnection struct {
	cfg    Config
	pc     *webrtc.PeerConnection
	cancel context.CancelFunc

	mu     sync.Mutex
	local  map[domain.MediaKind]*LocalTrack
	remote *watchers
	closed bool

	onICE        func(webrtc.ICECandidateInit)
	onOffer      func(webrtc.SessionDescription)
	onTrackState func(core.TrackState)
	onClosed     func()
	closeOnce    sync.Once
}

func NewWebRTCConnection(cfg Config) *WebRTCConnection {
	if cfg.RemoteIdle <= 0 {
		cfg.RemoteIdle = 3 * time.Second
	}
	return &WebRTCConnection{cfg: cfg, local: make(map[domain.MediaKind]*LocalTrack)}
}

// Start creates the peer connection, adds a muted track per local capture
// and binds the connection lifetime to ctx. Callbacks must be set before Start.
func (c *WebRTCConnection) Start(ctx context.Context, creds domain.TransportCredentials) error {
	pc, err := webrtc.NewPeerConnection(webRTCConfig(c.cfg, creds))
	if err != nil {
		return fmt.Errorf("new peer connection: %w", err)
	}
	ctx, cancel := context.WithCancel(ctx)
	c.pc, c.cancel = pc, cancel
	c.remote = newWatchers(c.cfg.RemoteIdle, c.reportTrack)

	pc.OnICEConnectionStateChange(func(s webrtc.ICEConnectionState) {
		log.Info().Str("module", "rtc").Str("room", creds.Room).Str("ice_state", s.String()).Msg("ICE state")
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc").Str("room", creds.Room).Str("peer_connection_state", s.String()).Msg("Peer state")
		if s == webrtc.PeerConnectionStateFailed ||
			s == webrtc.PeerConnectionStateClosed {
			go c.Close()
		}
	})

	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand != nil && c.onICE != nil {
			c.onICE(cand.ToJSON())
		}
	})

	pc.OnNegotiationNeeded(func() {
		if err := c.negotiate(); err != nil {
			log.Error().Err(err).Str("module", "rtc").Msg("negotiation")
		}
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		log.Info().
			Str("module", "rtc").
			Str("kind", track.Kind().String()).
			Str("track_id", track.ID()).
			Str("stream_id", track.StreamID()).
			Msg("OnTrack received")
		c.remote.start(ctx, track)
	})

	for _, kind := range []domain.MediaKind{domain.MediaAudio, domain.MediaVideo, domain.MediaScreen} {
		if err := c.addLocal(kind); err != nil {
			c.Close()
			return fmt.Errorf("add %s track: %w", kind, err)
		}
	}
	return nil
}

func (c *WebRTCConnection) addLocal(kind domain.MediaKind) error {
	lt, err := NewLocalTrack(kind, c.cfg.StreamID)
	if err != nil {
		return err
	}
	dir := webrtc.RTPTransceiverDirectionSendrecv
	if kind == domain.MediaScreen {
		dir = webrtc.RTPTransceiverDirectionSendonly
	}
	if _, err := c.pc.AddTransceiverFromTrack(lt.Track, webrtc.RTPTransceiverInit{Direction: dir}); err != nil {
		return err
	}
	c.mu.Lock()
	c.local[kind] = lt
	c.mu.Unlock()
	return nil
}

func (c *WebRTCConnection) negotiate() error {
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		return err
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		return err
	}
	if c.onOffer != nil {
		c.onOffer(*c.pc.LocalDescription())
	}
	return nil
}

// SetEnabled gates a local capture. Tracks stay negotiated; a muted track
// drops every sample. The resulting state is reported through OnTrackState.
func (c *WebRTCConnection) SetEnabled(ctx context.Context, kind domain.MediaKind, enabled bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	lt, ok := c.local[kind]
	c.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", domain.ErrUnknownKind, kind)
	}

	if enabled {
		lt.markLive()
	} else {
		lt.markMuted()
	}
	log.Info().Str("module", "rtc").Str("kind", string(kind)).Bool("enabled", enabled).Msg("local track")
	c.reportTrack(core.TrackState{Kind: kind, Enabled: enabled})
	return nil
}

// LocalTrack exposes a capture so a media source can feed samples into it.
func (c *WebRTCConnection) LocalTrack(kind domain.MediaKind) (*LocalTrack, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	lt, ok := c.local[kind]
	return lt, ok
}

func (c *WebRTCConnection) ApplyAnswer(answer webrtc.SessionDescription) error {
	return c.pc.SetRemoteDescription(answer)
}

func (c *WebRTCConnection) AddICECandidate(ci webrtc.ICECandidateInit) error {
	return c.pc.AddICECandidate(ci)
}

func (c *WebRTCConnection) reportTrack(s core.TrackState) {
	if c.onTrackState != nil {
		c.onTrackState(s)
	}
}

func (c *WebRTCConnection) Close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		if c.cancel != nil {
			c.cancel()
		}
		if c.remote != nil {
			c.remote.stopAll()
		}
		if c.pc != nil {
			if err := c.pc.Close(); err != nil {
				log.Error().Err(err).Str("module", "rtc").Msg("close error")
			} else {
				log.Info().Str("module", "rtc").Msg("closed")
			}
		}
		if c.onClosed != nil {
			c.onClosed()
		}
	})
}

func (c *WebRTCConnection) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *WebRTCConnection) OnICECandidate(fn func(webrtc.ICECandidateInit)) { c.onICE = fn }
func (c *WebRTCConnection) OnOffer(fn func(webrtc.SessionDescription))      { c.onOffer = fn }
func (c *WebRTCConnection) OnTrackState(fn func(core.TrackState))           { c.onTrackState = fn }

// OnClosed sets application-level callback for media teardown.
func (c *WebRTCConnection) OnClosed(fn func()) { c.onClosed = fn }
