package signal

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/samber/lo"
)

var ErrUnknownType = errors.New("unknown signal type")

// Inbound is one decoded frame. Negotiation frames carry Answer or Candidate
// and no events.
type Inbound struct {
	Type      string
	Seq       uint64
	HasSeq    bool
	Events    []core.Event
	Answer    *webrtc.SessionDescription
	Candidate *webrtc.ICECandidateInit
	Error     string
}

type envelope struct {
	Type string  `json:"type"`
	Seq  *uint64 `json:"seq,omitempty"`
}

type roomStatePayload struct {
	Participants []domain.Participant `json:"participants"`
	ScreenSharer domain.UserID        `json:"screen_sharer,omitempty"`
	Recording    bool                 `json:"recording"`
	RecordingBy  domain.UserID        `json:"recording_by,omitempty"`
}

type memberPayload struct {
	User domain.Participant `json:"user"`
}

type userPayload struct {
	UserID  domain.UserID    `json:"user_id"`
	Online  bool             `json:"online"`
	Kind    domain.MediaKind `json:"kind"`
	Enabled bool             `json:"enabled"`
	Active  bool             `json:"active"`
}

type chatPayload struct {
	Message domain.ChatMessage `json:"message"`
}

type moderationPayload struct {
	ActorID  domain.UserID `json:"actor_id"`
	TargetID domain.UserID `json:"target_id"`
	Action   domain.Action `json:"action"`
}

type whiteboardPayload struct {
	Scene domain.Scene `json:"scene"`
}

type errorPayload struct {
	Error string `json:"error"`
}

// Decode turns a raw frame into the closed set of events. Anything not in
// that set fails here, before a reducer sees it.
func Decode(data []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Inbound{}, fmt.Errorf("bad json: %w", err)
	}
	in := Inbound{Type: env.Type}
	if env.Seq != nil {
		in.Seq, in.HasSeq = *env.Seq, true
	}

	var err error
	switch env.Type {
	case "room_state":
		var p roomStatePayload
		if err = json.Unmarshal(data, &p); err == nil {
			in.Events = expandRoomState(p)
		}
	case "member_joined":
		var p memberPayload
		if err = json.Unmarshal(data, &p); err == nil {
			in.Events = []core.Event{core.ParticipantJoined{Participant: p.User}}
		}
	case "member_left":
		var p userPayload
		if err = json.Unmarshal(data, &p); err == nil {
			in.Events = []core.Event{core.ParticipantLeft{UserID: p.UserID}}
		}
	case "presence":
		var p userPayload
		if err = json.Unmarshal(data, &p); err == nil {
			in.Events = []core.Event{core.PresenceChanged{UserID: p.UserID, Online: p.Online}}
		}
	case "media_toggle":
		var p userPayload
		if err = json.Unmarshal(data, &p); err == nil {
			if !p.Kind.Valid() {
				return Inbound{}, fmt.Errorf("%w: %q", domain.ErrUnknownKind, p.Kind)
			}
			in.Events = []core.Event{core.MediaToggled{UserID: p.UserID, Kind: p.Kind, Enabled: p.Enabled}}
		}
	case "screen_share":
		var p userPayload
		if err = json.Unmarshal(data, &p); err == nil {
			in.Events = []core.Event{core.ScreenShareChanged{UserID: p.UserID, Active: p.Active}}
		}
	case "recording":
		var p userPayload
		if err = json.Unmarshal(data, &p); err == nil {
			in.Events = []core.Event{core.RecordingChanged{ActorID: p.UserID, Active: p.Active}}
		}
	case "chat":
		var p chatPayload
		if err = json.Unmarshal(data, &p); err == nil {
			in.Events = []core.Event{core.ChatReceived{Message: p.Message}}
		}
	case "moderation":
		var p moderationPayload
		if err = json.Unmarshal(data, &p); err == nil {
			if !p.Action.Valid() {
				return Inbound{}, fmt.Errorf("%w: %q", domain.ErrUnknownAction, p.Action)
			}
			in.Events = []core.Event{core.ModerationReceived{ActorID: p.ActorID, TargetID: p.TargetID, Action: p.Action}}
		}
	case "whiteboard":
		var p whiteboardPayload
		if err = json.Unmarshal(data, &p); err == nil {
			in.Events = []core.Event{core.WhiteboardReceived{Scene: p.Scene}}
		}
	case "answer":
		in.Answer, err = decodeAnswer(data)
	case "candidate":
		in.Candidate, err = decodeCandidate(data)
	case "pong":
	case "error":
		var p errorPayload
		if err = json.Unmarshal(data, &p); err == nil {
			in.Error = p.Error
		}
	default:
		return Inbound{}, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	if err != nil {
		return Inbound{}, fmt.Errorf("bad %s payload: %w", env.Type, err)
	}
	return in, nil
}

// expandRoomState orders the snapshot as joins, then the sharer, then recording.
func expandRoomState(p roomStatePayload) []core.Event {
	events := lo.Map(p.Participants, func(part domain.Participant, _ int) core.Event {
		return core.ParticipantJoined{Participant: part}
	})
	for _, part := range p.Participants {
		if part.IsAudioEnabled {
			events = append(events, core.MediaToggled{UserID: part.ID, Kind: domain.MediaAudio, Enabled: true})
		}
		if part.IsVideoEnabled {
			events = append(events, core.MediaToggled{UserID: part.ID, Kind: domain.MediaVideo, Enabled: true})
		}
	}
	if p.ScreenSharer != "" {
		events = append(events, core.ScreenShareChanged{UserID: p.ScreenSharer, Active: true})
	}
	events = append(events, core.RecordingChanged{ActorID: p.RecordingBy, Active: p.Recording})
	return events
}

// Encode renders an outbound message as a frame.
func Encode(msg core.Outbound) (core.Frame, error) {
	var v any
	switch m := msg.(type) {
	case core.JoinRequest:
		v = struct {
			Type string      `json:"type"`
			User domain.User `json:"user"`
		}{"join", m.User}
	case core.LeaveNotice:
		v = typeOnly{"leave"}
	case core.MediaToggle:
		v = struct {
			Type    string           `json:"type"`
			Kind    domain.MediaKind `json:"kind"`
			Enabled bool             `json:"enabled"`
		}{"media_toggle", m.Kind, m.Enabled}
	case core.ScreenShareToggle:
		v = activePayload{"screen_share", m.Active}
	case core.RecordingToggle:
		v = activePayload{"recording", m.Active}
	case core.ChatSend:
		v = struct {
			Type     string             `json:"type"`
			ClientID domain.MessageID   `json:"client_id"`
			Content  string             `json:"content"`
			Kind     domain.MessageKind `json:"kind,omitempty"`
			TargetID domain.MessageID   `json:"target_id,omitempty"`
		}{"chat", m.ClientID, m.Content, m.Kind, m.TargetID}
	case core.ModerationCommand:
		v = struct {
			Type     string        `json:"type"`
			TargetID domain.UserID `json:"target_id"`
			Action   domain.Action `json:"action"`
		}{"moderation", m.TargetID, m.Action}
	case core.WhiteboardRequest:
		v = typeOnly{"whiteboard_get"}
	case core.WhiteboardUpdate:
		v = struct {
			Type  string       `json:"type"`
			Scene domain.Scene `json:"scene"`
		}{"whiteboard_update", m.Scene}
	case core.LocalOffer:
		v = sdpPayload{"offer", m.Description.SDP}
	case core.LocalCandidate:
		v = encodeCandidate(m.Candidate)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownType, msg)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return core.Frame(b), nil
}

type typeOnly struct {
	Type string `json:"type"`
}

type activePayload struct {
	Type   string `json:"type"`
	Active bool   `json:"active"`
}
