package transport

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/require"
)

type fakeSignal struct {
	mu      sync.Mutex
	frames  chan core.Frame
	done    chan struct{}
	sent    []core.Frame
	dialErr error
	closed  bool
	err     error
}

func newFakeSignal() *fakeSignal {
	return &fakeSignal{frames: make(chan core.Frame, 16), done: make(chan struct{})}
}

func (s *fakeSignal) Dial(context.Context, domain.SessionID, string) error { return s.dialErr }

func (s *fakeSignal) TrySend(f core.Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, f)
	return nil
}

func (s *fakeSignal) Frames() <-chan core.Frame { return s.frames }
func (s *fakeSignal) Done() <-chan struct{}     { return s.done }
func (s *fakeSignal) Err() error                { return s.err }

func (s *fakeSignal) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.done)
	}
}

// drop simulates the server going away.
func (s *fakeSignal) drop(err error) {
	s.err = err
	close(s.frames)
}

func (s *fakeSignal) sentTypes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.sent))
	for _, f := range s.sent {
		var v struct {
			Type string `json:"type"`
		}
		_ = json.Unmarshal(f, &v)
		out = append(out, v.Type)
	}
	return out
}

func (s *fakeSignal) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeMedia struct {
	mu         sync.Mutex
	startErr   error
	closed     bool
	answers    []webrtc.SessionDescription
	candidates []webrtc.ICECandidateInit
	enabled    map[domain.MediaKind]bool

	onICE        func(webrtc.ICECandidateInit)
	onOffer      func(webrtc.SessionDescription)
	onTrackState func(core.TrackState)
	onClosed     func()
}

func newFakeMedia() *fakeMedia {
	return &fakeMedia{enabled: make(map[domain.MediaKind]bool)}
}

func (m *fakeMedia) Start(context.Context, domain.TransportCredentials) error { return m.startErr }

func (m *fakeMedia) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

func (m *fakeMedia) IsClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func (m *fakeMedia) SetEnabled(_ context.Context, kind domain.MediaKind, enabled bool) error {
	m.mu.Lock()
	m.enabled[kind] = enabled
	m.mu.Unlock()
	m.onTrackState(core.TrackState{Kind: kind, Enabled: enabled})
	return nil
}

func (m *fakeMedia) ApplyAnswer(sd webrtc.SessionDescription) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers = append(m.answers, sd)
	return nil
}

func (m *fakeMedia) AddICECandidate(ci webrtc.ICECandidateInit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candidates = append(m.candidates, ci)
	return nil
}

func (m *fakeMedia) OnICECandidate(fn func(webrtc.ICECandidateInit)) { m.onICE = fn }
func (m *fakeMedia) OnOffer(fn func(webrtc.SessionDescription))      { m.onOffer = fn }
func (m *fakeMedia) OnTrackState(fn func(core.TrackState))           { m.onTrackState = fn }
func (m *fakeMedia) OnClosed(fn func())                              { m.onClosed = fn }

func connect(t *testing.T) (*Adapter, *fakeSignal, *fakeMedia) {
	t.Helper()
	sig, med := newFakeSignal(), newFakeMedia()
	a := New(
		func() core.SignalConnection { return sig },
		func() core.MediaConnection { return med },
		Options{Buffer: 16},
	)
	require.NoError(t, a.Connect(context.Background(), "s1", "tok", domain.TransportCredentials{}))
	t.Cleanup(a.Disconnect)
	return a, sig, med
}

func next(t *testing.T, a *Adapter) core.Envelope {
	t.Helper()
	select {
	case env := <-a.Events():
		return env
	case <-time.After(time.Second):
		t.Fatal("no event")
		return core.Envelope{}
	}
}

func quiet(t *testing.T, a *Adapter) {
	t.Helper()
	select {
	case env := <-a.Events():
		t.Fatalf("unexpected event %T", env.Event)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestAdapter_ConnectTwiceIsNoop(t *testing.T) {
	r := require.New(t)
	a, _, _ := connect(t)

	// when
	err := a.Connect(context.Background(), "s1", "tok", domain.TransportCredentials{})

	// then
	r.NoError(err)
	r.True(a.Connected())
}

func TestAdapter_ConnectFailureClosesBoth(t *testing.T) {
	r := require.New(t)
	sig, med := newFakeSignal(), newFakeMedia()
	med.startErr = errors.New("ice unreachable")
	a := New(
		func() core.SignalConnection { return sig },
		func() core.MediaConnection { return med },
		Options{},
	)

	// when
	err := a.Connect(context.Background(), "s1", "tok", domain.TransportCredentials{})

	// then
	r.ErrorContains(err, "media: ice unreachable")
	r.False(a.Connected())
	r.True(sig.isClosed())
	r.True(med.IsClosed())
}

func TestAdapter_DedupsSequencedEventsPerCategory(t *testing.T) {
	r := require.New(t)
	a, sig, _ := connect(t)

	// given
	sig.frames <- core.Frame(`{"type":"presence","seq":5,"user_id":"u1","online":true}`)
	sig.frames <- core.Frame(`{"type":"presence","seq":5,"user_id":"u1","online":true}`)
	sig.frames <- core.Frame(`{"type":"member_left","seq":4,"user_id":"u1"}`)
	sig.frames <- core.Frame(`{"type":"recording","seq":1,"user_id":"u1","active":true}`)
	sig.frames <- core.Frame(`{"type":"member_left","seq":6,"user_id":"u1"}`)

	// then
	env := next(t, a)
	r.Equal(uint64(5), env.Seq)
	r.Equal(core.PresenceChanged{UserID: "u1", Online: true}, env.Event)
	r.False(env.ReceivedAt.IsZero())

	env = next(t, a)
	r.Equal(uint64(1), env.Seq)
	r.Equal(core.RecordingChanged{ActorID: "u1", Active: true}, env.Event)

	env = next(t, a)
	r.Equal(uint64(6), env.Seq)
	r.Equal(core.ParticipantLeft{UserID: "u1"}, env.Event)
	quiet(t, a)
}

func TestAdapter_StampsUnsequencedEvents(t *testing.T) {
	r := require.New(t)
	a, sig, _ := connect(t)

	// given
	sig.frames <- core.Frame(`{"type":"presence","user_id":"u1","online":false}`)
	sig.frames <- core.Frame(`{"type":"presence","user_id":"u1","online":true}`)

	// then
	r.Equal(uint64(1), next(t, a).Seq)
	r.Equal(uint64(2), next(t, a).Seq)
}

func TestAdapter_RoutesNegotiationToMedia(t *testing.T) {
	r := require.New(t)
	a, sig, med := connect(t)

	// when
	sig.frames <- core.Frame(`{"type":"answer","sdp":"v=0"}`)
	sig.frames <- core.Frame(`{"type":"candidate","candidate":"candidate:1 1 udp 1 10.0.0.1 5000 typ host"}`)
	med.onOffer(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0"})
	med.onICE(webrtc.ICECandidateInit{Candidate: "candidate:2"})

	// then
	quiet(t, a)
	med.mu.Lock()
	r.Len(med.answers, 1)
	r.Equal(webrtc.SDPTypeAnswer, med.answers[0].Type)
	r.Len(med.candidates, 1)
	med.mu.Unlock()
	r.Equal([]string{"offer", "candidate"}, sig.sentTypes())
}

func TestAdapter_ForwardsTrackState(t *testing.T) {
	r := require.New(t)
	a, _, med := connect(t)

	// when
	r.NoError(a.SetMediaEnabled(context.Background(), domain.MediaAudio, true))

	// then
	env := next(t, a)
	r.Equal(core.TrackStateChanged{State: core.TrackState{Kind: domain.MediaAudio, Enabled: true}}, env.Event)
	r.True(med.enabled[domain.MediaAudio])
}

func TestAdapter_SendEncodes(t *testing.T) {
	r := require.New(t)
	a, sig, _ := connect(t)

	// when
	r.NoError(a.Send(core.ScreenShareToggle{Active: true}))

	// then
	r.Equal([]string{"screen_share"}, sig.sentTypes())
}

func TestAdapter_SignalDropReportsConnectionLost(t *testing.T) {
	r := require.New(t)
	a, sig, _ := connect(t)

	// when
	sig.drop(errors.New("read: eof"))

	// then
	env := next(t, a)
	lost, ok := env.Event.(core.ConnectionLost)
	r.True(ok)
	r.Equal("signal", lost.Source)
	r.EqualError(lost.Err, "read: eof")
}

func TestAdapter_MediaCloseReportsConnectionLostOnce(t *testing.T) {
	r := require.New(t)
	a, _, med := connect(t)

	// when
	med.onClosed()
	med.onClosed()

	// then
	env := next(t, a)
	r.Equal(core.ConnectionLost{Source: "media"}, env.Event)
	quiet(t, a)
}

func TestAdapter_DisconnectIsSilent(t *testing.T) {
	r := require.New(t)
	a, sig, med := connect(t)

	// when
	a.Disconnect()
	med.onClosed()

	// then
	quiet(t, a)
	r.False(a.Connected())
	r.True(sig.isClosed())
	r.ErrorIs(a.Send(core.LeaveNotice{}), domain.ErrNotConnected)
	r.ErrorIs(a.SetMediaEnabled(context.Background(), domain.MediaVideo, true), domain.ErrNotConnected)
}

func TestAdapter_ConnectAfterLostDialsFresh(t *testing.T) {
	r := require.New(t)
	sigs := []*fakeSignal{newFakeSignal(), newFakeSignal()}
	meds := []*fakeMedia{newFakeMedia(), newFakeMedia()}
	var dials, starts int
	a := New(
		func() core.SignalConnection { dials++; return sigs[dials-1] },
		func() core.MediaConnection { starts++; return meds[starts-1] },
		Options{Buffer: 16},
	)
	t.Cleanup(a.Disconnect)
	r.NoError(a.Connect(context.Background(), "s1", "tok", domain.TransportCredentials{}))

	// given
	sigs[0].drop(errors.New("read: eof"))
	_, ok := next(t, a).Event.(core.ConnectionLost)
	r.True(ok)
	r.False(a.Connected())
	r.ErrorIs(a.Send(core.LeaveNotice{}), domain.ErrNotConnected)
	r.Eventually(func() bool { return sigs[0].isClosed() && meds[0].IsClosed() }, time.Second, 10*time.Millisecond)

	// when
	err := a.Connect(context.Background(), "s1", "tok", domain.TransportCredentials{})

	// then
	r.NoError(err)
	r.Equal(2, dials)
	r.True(a.Connected())
	r.NoError(a.Send(core.ScreenShareToggle{Active: true}))
	r.Equal([]string{"screen_share"}, sigs[1].sentTypes())
	r.Empty(sigs[0].sentTypes())

	// a late close from the first media connection is ignored
	meds[0].onClosed()
	quiet(t, a)
	r.True(a.Connected())
}
