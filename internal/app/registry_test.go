package app

import (
	"testing"

	"github.com/dkeye/Classroom/internal/domain"
	"github.com/stretchr/testify/require"
)

func participant(id string, role domain.Role) domain.Participant {
	return domain.Participant{User: domain.User{ID: domain.UserID(id), DisplayName: id, Role: role}}
}

func TestRegistry_OnJoined_IsIdempotent(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()

	// Given the same join delivered twice
	reg.OnJoined(participant("alice", domain.RoleStudent))
	p, _ := reg.Get("alice")
	p.IsAudioEnabled = true
	renamed := participant("alice", domain.RoleStudent)
	renamed.DisplayName = "Alice L."
	reg.OnJoined(renamed)

	// Then there is still a single entry, refreshed, with its media flags kept
	req.Equal(1, reg.Len())
	p, ok := reg.Get("alice")
	req.True(ok)
	req.Equal("Alice L.", p.DisplayName)
	req.True(p.IsOnline)
	req.True(p.IsAudioEnabled)
}

func TestRegistry_OnLeft_KeepsOfflineEntry(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	reg.OnJoined(participant("bob", domain.RoleStudent))
	p, _ := reg.Get("bob")
	p.IsAudioEnabled, p.IsVideoEnabled, p.IsScreenSharing = true, true, true

	req.True(reg.OnLeft("bob"))

	p, ok := reg.Get("bob")
	req.True(ok)
	req.False(p.IsOnline)
	req.False(p.IsAudioEnabled)
	req.False(p.IsVideoEnabled)
	req.False(p.IsScreenSharing)
	req.Len(reg.Snapshot(), 1)
	req.Empty(reg.Online())
}

func TestRegistry_PresenceForUnknownUserIsIgnored(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()

	req.False(reg.OnPresenceChanged("ghost", false))
	req.False(reg.OnLeft("ghost"))
	req.Equal(0, reg.Len())
}

func TestRegistry_SnapshotKeepsJoinOrder(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	for _, id := range []string{"c", "a", "b"} {
		reg.OnJoined(participant(id, domain.RoleStudent))
	}
	reg.OnJoined(participant("a", domain.RoleTeacher))

	snap := reg.Snapshot()
	req.Equal([]domain.UserID{"c", "a", "b"}, []domain.UserID{snap[0].ID, snap[1].ID, snap[2].ID})
	req.Equal(domain.RoleTeacher, snap[1].Role)
}
