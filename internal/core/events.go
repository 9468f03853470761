package core

import (
	"time"

	"github.com/dkeye/Classroom/internal/domain"
)

type Category string

const (
	CategoryPresence    Category = "presence"
	CategoryMediaToggle Category = "media-toggle"
	CategoryScreenShare Category = "screen-share"
	CategoryRecording   Category = "recording"
	CategoryChat        Category = "chat"
	CategoryModeration  Category = "moderation"
	CategoryWhiteboard  Category = "whiteboard"
	CategoryTrackState  Category = "transport-track-state"
	CategoryConnection  Category = "connection"
)

// Event is the closed set of normalized inbound events.
type Event interface {
	Category() Category
	sealed()
}

// Envelope carries an event with the ordering data stamped by the transport adapter.
type Envelope struct {
	Seq        uint64
	ReceivedAt time.Time
	Event      Event
}

type ParticipantJoined struct{ Participant domain.Participant }

type ParticipantLeft struct{ UserID domain.UserID }

type PresenceChanged struct {
	UserID domain.UserID
	Online bool
}

type MediaToggled struct {
	UserID  domain.UserID
	Kind    domain.MediaKind
	Enabled bool
}

type ScreenShareChanged struct {
	UserID domain.UserID
	Active bool
}

type RecordingChanged struct {
	ActorID domain.UserID
	Active  bool
}

type ChatReceived struct{ Message domain.ChatMessage }

type ModerationReceived struct {
	ActorID  domain.UserID
	TargetID domain.UserID
	Action   domain.Action
}

type WhiteboardReceived struct{ Scene domain.Scene }

type TrackStateChanged struct{ State TrackState }

// ConnectionLost reports that the signaling channel or the media transport went away.
type ConnectionLost struct {
	Source string
	Err    error
}

func (ParticipantJoined) Category() Category  { return CategoryPresence }
func (ParticipantLeft) Category() Category    { return CategoryPresence }
func (PresenceChanged) Category() Category    { return CategoryPresence }
func (MediaToggled) Category() Category       { return CategoryMediaToggle }
func (ScreenShareChanged) Category() Category { return CategoryScreenShare }
func (RecordingChanged) Category() Category   { return CategoryRecording }
func (ChatReceived) Category() Category       { return CategoryChat }
func (ModerationReceived) Category() Category { return CategoryModeration }
func (WhiteboardReceived) Category() Category { return CategoryWhiteboard }
func (TrackStateChanged) Category() Category  { return CategoryTrackState }
func (ConnectionLost) Category() Category     { return CategoryConnection }

func (ParticipantJoined) sealed()  {}
func (ParticipantLeft) sealed()    {}
func (PresenceChanged) sealed()    {}
func (MediaToggled) sealed()       {}
func (ScreenShareChanged) sealed() {}
func (RecordingChanged) sealed()   {}
func (ChatReceived) sealed()       {}
func (ModerationReceived) sealed() {}
func (WhiteboardReceived) sealed() {}
func (TrackStateChanged) sealed()  {}
func (ConnectionLost) sealed()     {}
