package domain

import "time"

type SessionID string

type ConnectionPhase string

const (
	PhaseIdle         ConnectionPhase = "idle"
	PhaseConnecting   ConnectionPhase = "connecting"
	PhaseConnected    ConnectionPhase = "connected"
	PhaseDisconnected ConnectionPhase = "disconnected"
	PhaseKicked       ConnectionPhase = "kicked"
	PhaseFailed       ConnectionPhase = "failed"
)

// TransportCredentials are minted by the REST API before the media transport connects.
type TransportCredentials struct {
	Room       string      `json:"room"`
	Token      string      `json:"token"`
	URL        string      `json:"url,omitempty"`
	ICEServers []ICEServer `json:"ice_servers,omitempty"`
}

type ICEServer struct {
	URLs       []string `json:"urls" mapstructure:"urls"`
	Username   string   `json:"username,omitempty" mapstructure:"username"`
	Credential string   `json:"credential,omitempty" mapstructure:"credential"`
}

// JoinWindow is the interval in which a session accepts participants.
type JoinWindow struct {
	OpensAt  time.Time `json:"opens_at"`
	ClosesAt time.Time `json:"closes_at"`
}

func (w JoinWindow) Contains(t time.Time) bool {
	if !w.OpensAt.IsZero() && t.Before(w.OpensAt) {
		return false
	}
	if !w.ClosesAt.IsZero() && t.After(w.ClosesAt) {
		return false
	}
	return true
}

type Recording struct {
	ID        string    `json:"id"`
	SessionID SessionID `json:"session_id"`
	URL       string    `json:"url"`
	StartedAt time.Time `json:"started_at"`
	Duration  int64     `json:"duration_seconds"`
}

type NoticeKind string

const (
	NoticePermissionDenied   NoticeKind = "permission_denied"
	NoticeOptimisticRollback NoticeKind = "optimistic_rollback"
	NoticeScreenShareBusy    NoticeKind = "screen_share_busy"
	NoticeKicked             NoticeKind = "kicked"
)

// Notice is a transient condition shown to the user; state is unchanged by it.
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
	At      time.Time  `json:"at"`
}
