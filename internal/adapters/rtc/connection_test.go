package rtc

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	states []core.TrackState
	offers chan webrtc.SessionDescription
	closed chan struct{}
}

func start(t *testing.T) (*WebRTCConnection, *recorder) {
	t.Helper()
	rec := &recorder{offers: make(chan webrtc.SessionDescription, 4), closed: make(chan struct{})}
	c := NewWebRTCConnection(Config{StreamID: "me", ICEServers: []domain.ICEServer{}})
	c.OnOffer(func(sd webrtc.SessionDescription) { rec.offers <- sd })
	c.OnTrackState(func(s core.TrackState) {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		rec.states = append(rec.states, s)
	})
	c.OnClosed(func() { close(rec.closed) })
	require.NoError(t, c.Start(context.Background(), domain.TransportCredentials{Room: "room-1"}))
	t.Cleanup(c.Close)
	return c, rec
}

func (r *recorder) last() core.TrackState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[len(r.states)-1]
}

func TestWebRTCConnection_OffersAllCaptures(t *testing.T) {
	_, rec := start(t)

	var offer webrtc.SessionDescription
	select {
	case offer = <-rec.offers:
	case <-time.After(3 * time.Second):
		t.Fatal("no offer")
	}

	require.Equal(t, webrtc.SDPTypeOffer, offer.Type)
	require.Equal(t, 1, strings.Count(offer.SDP, "m=audio"))
	require.Equal(t, 2, strings.Count(offer.SDP, "m=video"))
}

func TestWebRTCConnection_AnswerFromRemotePeer(t *testing.T) {
	req := require.New(t)
	c, rec := start(t)
	offer := <-rec.offers

	sfu, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	req.NoError(err)
	defer sfu.Close()
	req.NoError(sfu.SetRemoteDescription(offer))
	answer, err := sfu.CreateAnswer(nil)
	req.NoError(err)
	req.NoError(sfu.SetLocalDescription(answer))

	req.NoError(c.ApplyAnswer(*sfu.LocalDescription()))
}

func TestWebRTCConnection_SetEnabledReportsLocalState(t *testing.T) {
	req := require.New(t)
	c, rec := start(t)

	req.NoError(c.SetEnabled(context.Background(), domain.MediaVideo, true))
	req.Equal(core.TrackState{Kind: domain.MediaVideo, Enabled: true}, rec.last())
	lt, ok := c.LocalTrack(domain.MediaVideo)
	req.True(ok)
	req.True(lt.IsLive())

	req.NoError(c.SetEnabled(context.Background(), domain.MediaVideo, false))
	req.Equal(core.TrackState{Kind: domain.MediaVideo, Enabled: false}, rec.last())
	req.False(lt.IsLive())

	req.ErrorIs(c.SetEnabled(context.Background(), "hologram", true), domain.ErrUnknownKind)
}

func TestWebRTCConnection_Close(t *testing.T) {
	req := require.New(t)
	c, rec := start(t)

	c.Close()
	c.Close()

	<-rec.closed
	req.True(c.IsClosed())
	req.ErrorIs(c.SetEnabled(context.Background(), domain.MediaAudio, true), ErrClosed)
}

func TestWebRTCConfig(t *testing.T) {
	req := require.New(t)
	minted := domain.TransportCredentials{ICEServers: []domain.ICEServer{{URLs: []string{"turn:t.example"}, Username: "u", Credential: "p"}}}
	configured := Config{ICEServers: []domain.ICEServer{{URLs: []string{"stun:s.example"}}}}

	req.Equal("turn:t.example", webRTCConfig(configured, minted).ICEServers[0].URLs[0])
	req.Equal("stun:s.example", webRTCConfig(configured, domain.TransportCredentials{}).ICEServers[0].URLs[0])
	req.Equal(DefaultWebRTCConfig(), webRTCConfig(Config{}, domain.TransportCredentials{}))
}
