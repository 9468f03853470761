package app

import (
	"testing"

	"github.com/dkeye/Classroom/internal/domain"
	"github.com/stretchr/testify/require"
)

func TestCanModerate(t *testing.T) {
	tests := []struct {
		name   string
		actor  domain.Role
		target domain.Role
		action domain.Action
		want   bool
	}{
		{"student cannot kick student", domain.RoleStudent, domain.RoleStudent, domain.ActionKick, false},
		{"student cannot mute teacher", domain.RoleStudent, domain.RoleTeacher, domain.ActionMute, false},
		{"teacher mutes student", domain.RoleTeacher, domain.RoleStudent, domain.ActionMute, true},
		{"teacher stops student video", domain.RoleTeacher, domain.RoleStudent, domain.ActionStopVideo, true},
		{"teacher cannot kick teacher", domain.RoleTeacher, domain.RoleTeacher, domain.ActionKick, false},
		{"teacher cannot mute admin", domain.RoleTeacher, domain.RoleAdmin, domain.ActionMute, false},
		{"admin kicks teacher", domain.RoleAdmin, domain.RoleTeacher, domain.ActionKick, true},
		{"admin mutes admin", domain.RoleAdmin, domain.RoleAdmin, domain.ActionMute, true},
		{"unknown action", domain.RoleAdmin, domain.RoleStudent, domain.Action("ban"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, CanModerate(tt.actor, tt.target, tt.action))
		})
	}
}

func TestAuthorize_SelfMediaIsNotModeration(t *testing.T) {
	req := require.New(t)
	student := participant("s1", domain.RoleStudent)

	req.NoError(Authorize(RolePolicy{}, student, student, domain.ActionMute))
	req.NoError(Authorize(RolePolicy{}, student, student, domain.ActionStopVideo))
	req.ErrorIs(Authorize(RolePolicy{}, student, student, domain.ActionKick), domain.ErrPermissionDenied)
	req.ErrorIs(Authorize(RolePolicy{}, student, participant("s2", domain.RoleStudent), domain.ActionMute), domain.ErrPermissionDenied)
	req.ErrorIs(Authorize(RolePolicy{}, student, student, domain.Action("ban")), domain.ErrUnknownAction)
}

func TestRolePolicy_CanRecord(t *testing.T) {
	req := require.New(t)
	p := RolePolicy{}
	req.False(p.CanRecord(domain.RoleStudent))
	req.True(p.CanRecord(domain.RoleTeacher))
	req.True(p.CanRecord(domain.RoleAdmin))
}
