package rtc

import (
	"sync/atomic"

	"github.com/dkeye/Classroom/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

type LocalState int32

const (
	LocalStateMuted LocalState = iota
	LocalStateLive
)

// LocalTrack is one outgoing capture: microphone, camera or screen.
type LocalTrack struct {
	Kind  domain.MediaKind
	Track *webrtc.TrackLocalStaticSample
	state atomic.Int32 // Zero by default (LocalStateMuted)
}

func NewLocalTrack(kind domain.MediaKind, streamID string) (*LocalTrack, error) {
	codec := webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}
	if kind == domain.MediaAudio {
		codec = webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}
	}
	track, err := webrtc.NewTrackLocalStaticSample(codec, string(kind), streamID)
	if err != nil {
		return nil, err
	}
	return &LocalTrack{Kind: kind, Track: track}, nil
}

func (lt *LocalTrack) State() LocalState { return LocalState(lt.state.Load()) }
func (lt *LocalTrack) IsLive() bool      { return lt.State() == LocalStateLive }
func (lt *LocalTrack) markLive()         { lt.state.Store(int32(LocalStateLive)) }
func (lt *LocalTrack) markMuted()        { lt.state.Store(int32(LocalStateMuted)) }

// WriteSample feeds captured media. Samples are dropped while the track is muted.
func (lt *LocalTrack) WriteSample(s media.Sample) error {
	if !lt.IsLive() {
		return nil
	}
	return lt.Track.WriteSample(s)
}
