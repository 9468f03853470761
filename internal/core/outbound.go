package core

import (
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/pion/webrtc/v4"
)

// Outbound is the closed set of messages this client puts on the signaling channel.
type Outbound interface{ outbound() }

type JoinRequest struct{ User domain.User }

type LeaveNotice struct{}

type MediaToggle struct {
	Kind    domain.MediaKind
	Enabled bool
}

type ScreenShareToggle struct{ Active bool }

type RecordingToggle struct{ Active bool }

type ChatSend struct {
	ClientID domain.MessageID
	Content  string
	Kind     domain.MessageKind
	TargetID domain.MessageID
}

type ModerationCommand struct {
	TargetID domain.UserID
	Action   domain.Action
}

type WhiteboardRequest struct{}

type WhiteboardUpdate struct{ Scene domain.Scene }

type LocalOffer struct{ Description webrtc.SessionDescription }

type LocalCandidate struct{ Candidate webrtc.ICECandidateInit }

func (JoinRequest) outbound()       {}
func (LeaveNotice) outbound()       {}
func (MediaToggle) outbound()       {}
func (ScreenShareToggle) outbound() {}
func (RecordingToggle) outbound()   {}
func (ChatSend) outbound()          {}
func (ModerationCommand) outbound() {}
func (WhiteboardRequest) outbound() {}
func (WhiteboardUpdate) outbound()  {}
func (LocalOffer) outbound()        {}
func (LocalCandidate) outbound()    {}
