package core

import (
	"context"

	"github.com/dkeye/Classroom/internal/domain"
	"github.com/pion/webrtc/v4"
)

// TrackState is what the media transport itself reports about a track.
// UserID is empty for local tracks.
type TrackState struct {
	UserID  domain.UserID
	Kind    domain.MediaKind
	Enabled bool
}

type MediaConnection interface {
	// Start configures internal callbacks and binds the connection lifetime to ctx.
	Start(ctx context.Context, creds domain.TransportCredentials) error
	// Close should stop all underlying media resources.
	Close()
	IsClosed() bool
	// SetEnabled turns the local camera, microphone or screen capture on or off.
	SetEnabled(ctx context.Context, kind domain.MediaKind, enabled bool) error
	ApplyAnswer(webrtc.SessionDescription) error
	// AddICECandidate applies a remote ICE candidate.
	AddICECandidate(webrtc.ICECandidateInit) error
	// OnICECandidate sets a callback for newly gathered local ICE candidates.
	OnICECandidate(func(webrtc.ICECandidateInit))
	// OnOffer sets a callback for local offers that must reach the remote side.
	OnOffer(func(webrtc.SessionDescription))
	// OnTrackState sets a callback for local and remote track changes.
	OnTrackState(func(TrackState))
	// OnClosed sets a callback for media session teardown.
	OnClosed(func())
}
