package orch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestJoin_ConnectsAndAnnounces(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, Options{})

	snap := h.join(t, user("t1", domain.RoleTeacher))

	req.Equal(sid, snap.SessionID)
	req.Equal(domain.UserID("t1"), snap.LocalUserID)
	req.Equal("room-1", snap.Credentials.Room)
	me, ok := snap.Participant("t1")
	req.True(ok)
	req.True(me.IsOnline)
	req.Len(sentOf[core.JoinRequest](h.ft), 1)
	req.Len(sentOf[core.WhiteboardRequest](h.ft), 1)
}

func TestJoin_SecondJoinIsNoOp(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, Options{})
	first := h.join(t, user("t1", domain.RoleTeacher))

	again, err := h.o.Join(context.Background(), JoinRequest{SessionID: sid, User: user("t1", domain.RoleTeacher)})

	req.NoError(err)
	req.Equal(first.Phase, again.Phase)
	connects, _ := h.ft.counts()
	req.Equal(1, connects)
	req.Len(sentOf[core.WhiteboardRequest](h.ft), 1)
}

func TestJoin_OutsideJoinWindow(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, Options{})
	closed := domain.JoinWindow{ClosesAt: time.Now().Add(-time.Hour)}
	h.api.EXPECT().JoinWindow(gomock.Any(), sid).Return(closed, nil)

	snap, err := h.o.Join(context.Background(), JoinRequest{SessionID: sid, User: user("s1", domain.RoleStudent)})

	req.ErrorIs(err, domain.ErrJoinWindowClosed)
	req.Equal(domain.PhaseFailed, snap.Phase)
	req.NotEmpty(snap.Error)
	req.Empty(snap.Participants)
	connects, _ := h.ft.counts()
	req.Zero(connects)

	// And every command is refused until a new join
	req.ErrorIs(h.o.SetAudioEnabled(context.Background(), true), domain.ErrNotConnected)
}

func TestJoin_ConnectFailureSurfacesAsError(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, Options{})
	h.ft.connectErr = errors.New("dial tcp: connection refused")
	h.expectJoin()

	snap, err := h.o.Join(context.Background(), JoinRequest{SessionID: sid, User: user("s1", domain.RoleStudent)})

	req.Error(err)
	req.Equal(domain.PhaseFailed, snap.Phase)
	req.Contains(snap.Error, "connection refused")

	// And the caller may retry
	h.ft.connectErr = nil
	h.join(t, user("s1", domain.RoleStudent))
}

func TestJoin_RejectsInvalidUser(t *testing.T) {
	h := newHarness(t, Options{})
	_, err := h.o.Join(context.Background(), JoinRequest{SessionID: sid, User: domain.User{}})
	require.ErrorIs(t, err, domain.ErrUserIDEmpty)
}

func TestLeave_ResetsAndDisconnects(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, Options{})
	h.join(t, user("t1", domain.RoleTeacher))
	h.deliver(t, remote("s1", domain.RoleStudent))

	req.NoError(h.o.Leave(context.Background()))

	snap := h.snapshot(t)
	req.Equal(domain.PhaseDisconnected, snap.Phase)
	req.Empty(snap.Participants)
	req.Len(sentOf[core.LeaveNotice](h.ft), 1)
	_, disconnects := h.ft.counts()
	req.Equal(1, disconnects)

	// Leaving twice is harmless
	req.NoError(h.o.Leave(context.Background()))
	_, disconnects = h.ft.counts()
	req.Equal(1, disconnects)
}

func TestRegistry_RedeliveredJoinAndLeave(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, Options{})
	h.join(t, user("t1", domain.RoleTeacher))

	// Given B joins twice and shares the screen
	snap := h.deliver(t,
		remote("b", domain.RoleStudent),
		remote("b", domain.RoleStudent),
		core.MediaToggled{UserID: "b", Kind: domain.MediaAudio, Enabled: true},
		core.ScreenShareChanged{UserID: "b", Active: true},
	)
	req.Len(snap.Participants, 2)
	req.Equal(2, snap.OnlineCount)
	req.Equal(domain.UserID("b"), snap.ActiveSharer)

	// When B leaves
	snap = h.deliver(t, core.ParticipantLeft{UserID: "b"})

	// Then the entry stays, offline and without media
	b, ok := snap.Participant("b")
	req.True(ok)
	req.False(b.IsOnline)
	req.False(b.IsAudioEnabled)
	req.False(b.IsVideoEnabled)
	req.False(b.IsScreenSharing)
	req.Empty(snap.ActiveSharer)
	req.Equal(1, snap.OnlineCount)
}

func TestDispatch_StaleEventsAreIgnored(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, Options{})
	h.join(t, user("t1", domain.RoleTeacher))

	snap := h.deliver(t,
		core.PresenceChanged{UserID: "ghost", Online: false},
		core.ParticipantLeft{UserID: "ghost"},
		core.MediaToggled{UserID: "ghost", Kind: domain.MediaVideo, Enabled: true},
		core.ChatReceived{Message: domain.ChatMessage{ID: "m-1", SessionID: "other", SenderID: "x", Content: "hi"}},
	)

	req.Len(snap.Participants, 1)
	req.Empty(snap.Messages)
	req.Empty(snap.Error)
}

func TestDispatch_ChatFromUnknownSenderIsShown(t *testing.T) {
	h := newHarness(t, Options{})
	h.join(t, user("t1", domain.RoleTeacher))

	snap := h.deliver(t, core.ChatReceived{Message: domain.ChatMessage{ID: "m-1", SessionID: sid, SenderID: "late", Content: "hi", SentAt: time.Now()}})

	require.Len(t, snap.Messages, 1)
}

func TestDispatch_ConnectionLost(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, Options{})
	h.join(t, user("t1", domain.RoleTeacher))
	h.deliver(t, remote("s1", domain.RoleStudent))

	snap := h.deliver(t, core.ConnectionLost{Source: "signal", Err: errors.New("EOF")})

	req.Equal(domain.PhaseFailed, snap.Phase)
	req.Contains(snap.Error, "signal")
	req.Len(snap.Participants, 2)
	req.Eventually(func() bool {
		_, d := h.ft.counts()
		return d == 1
	}, time.Second, 10*time.Millisecond)
	_, err := h.o.SendChat(context.Background(), "anyone?")
	req.ErrorIs(err, domain.ErrNotConnected)
}

func TestJoin_AfterConnectionLostWaitsForTeardown(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, Options{})
	h.join(t, user("t1", domain.RoleTeacher))

	// given
	gate := make(chan struct{})
	h.ft.mu.Lock()
	h.ft.gate = gate
	h.ft.mu.Unlock()
	h.deliver(t, core.ConnectionLost{Source: "signal", Err: errors.New("EOF")})

	// when
	h.expectJoin()
	h.api.EXPECT().FetchHistory(gomock.Any(), sid, "", 50).Return(domain.HistoryPage{}, nil)
	joined := make(chan error, 1)
	go func() {
		_, err := h.o.Join(context.Background(), JoinRequest{SessionID: sid, User: user("t1", domain.RoleTeacher), Token: "bearer"})
		joined <- err
	}()

	// then
	req.Never(func() bool {
		c, _ := h.ft.counts()
		return c > 1
	}, 100*time.Millisecond, 10*time.Millisecond)
	close(gate)
	select {
	case err := <-joined:
		req.NoError(err)
	case <-time.After(2 * time.Second):
		t.Fatal("join did not finish")
	}
	h.ft.mu.Lock()
	req.Equal([]string{"connect", "disconnect", "connect"}, h.ft.order)
	h.ft.mu.Unlock()
	req.True(h.ft.Connected())
	req.Equal(domain.PhaseConnected, h.snapshot(t).Phase)
}

func TestDispatch_RoomStateDoesNotGrantScreen(t *testing.T) {
	h := newHarness(t, Options{})
	h.join(t, user("t1", domain.RoleTeacher))
	j := remote("s1", domain.RoleStudent)
	j.Participant.IsScreenSharing = true

	snap := h.deliver(t, j)

	p, _ := snap.Participant("s1")
	require.False(t, p.IsScreenSharing)
	require.Empty(t, snap.ActiveSharer)
}
