package orch

import (
	"time"

	"github.com/dkeye/Classroom/internal/app"
	"github.com/dkeye/Classroom/internal/domain"
)

// session is the aggregate for one join. It is replaced wholesale on join and leave.
type session struct {
	id         domain.SessionID
	phase      domain.ConnectionPhase
	creds      domain.TransportCredentials
	local      domain.User
	window     domain.JoinWindow
	recordings []domain.Recording
	err        string
	notice     *domain.Notice

	registry  *app.Registry
	media     *app.MediaArbiter
	recording *app.RecordingController
	chat      *app.ChatLog
	board     *app.WhiteboardReplica
	flush     *time.Timer
}

func (o *Orchestrator) newSession(sid domain.SessionID, user domain.User, phase domain.ConnectionPhase) *session {
	reg := app.NewRegistry()
	return &session{
		id:        sid,
		phase:     phase,
		local:     user,
		registry:  reg,
		media:     app.NewMediaArbiter(reg, user.ID),
		recording: app.NewRecordingController(o.Policy),
		chat:      app.NewChatLog(sid, o.opts.ChatEchoWindow),
		board:     app.NewWhiteboardReplica(o.opts.WhiteboardInterval),
	}
}

func (s *session) stopFlush() {
	if s.flush != nil {
		s.flush.Stop()
		s.flush = nil
	}
}

// Snapshot is the read-only projection handed to presentation.
type Snapshot struct {
	SessionID         domain.SessionID            `json:"session_id"`
	Phase             domain.ConnectionPhase      `json:"phase"`
	Credentials       domain.TransportCredentials `json:"-"`
	LocalUserID       domain.UserID               `json:"local_user_id"`
	Participants      []domain.Participant        `json:"participants"`
	OnlineCount       int                         `json:"online_count"`
	ActiveSharer      domain.UserID               `json:"active_screen_sharer,omitempty"`
	IsRecording       bool                        `json:"is_recording"`
	RecordingBy       domain.UserID               `json:"recording_by,omitempty"`
	Messages          []domain.VisibleMessage     `json:"messages"`
	HasMoreHistory    bool                        `json:"has_more_history"`
	Whiteboard        domain.Scene                `json:"whiteboard"`
	WhiteboardVersion uint64                      `json:"whiteboard_version"`
	JoinWindow        domain.JoinWindow           `json:"join_window"`
	Recordings        []domain.Recording          `json:"recordings,omitempty"`
	Error             string                      `json:"error,omitempty"`
	Notice            *domain.Notice              `json:"notice,omitempty"`
}

// Participant looks a roster entry up by id.
func (s Snapshot) Participant(id domain.UserID) (domain.Participant, bool) {
	for _, p := range s.Participants {
		if p.ID == id {
			return p, true
		}
	}
	return domain.Participant{}, false
}

func (o *Orchestrator) snapshot() Snapshot {
	st := o.st
	snap := Snapshot{
		SessionID:         st.id,
		Phase:             st.phase,
		Credentials:       st.creds,
		LocalUserID:       st.local.ID,
		Participants:      st.registry.Snapshot(),
		OnlineCount:       len(st.registry.Online()),
		ActiveSharer:      st.media.ActiveSharer(),
		IsRecording:       st.recording.IsRecording(),
		RecordingBy:       st.recording.StartedBy(),
		Messages:          st.chat.Visible(),
		HasMoreHistory:    st.chat.HasMore(),
		Whiteboard:        st.board.Scene(),
		WhiteboardVersion: st.board.Version(),
		JoinWindow:        st.window,
		Recordings:        append([]domain.Recording(nil), st.recordings...),
		Error:             st.err,
	}
	if st.notice != nil {
		n := *st.notice
		snap.Notice = &n
	}
	return snap
}
