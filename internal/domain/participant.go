package domain

type MediaKind string

const (
	MediaAudio  MediaKind = "audio"
	MediaVideo  MediaKind = "video"
	MediaScreen MediaKind = "screen"
)

func (k MediaKind) Valid() bool {
	switch k {
	case MediaAudio, MediaVideo, MediaScreen:
		return true
	}
	return false
}

// Participant is one roster entry. Entries are kept after disconnect with IsOnline=false.
type Participant struct {
	User
	TransportHandle string `json:"transport_handle,omitempty"`
	IsOnline        bool   `json:"is_online"`
	IsAudioEnabled  bool   `json:"is_audio_enabled"`
	IsVideoEnabled  bool   `json:"is_video_enabled"`
	IsScreenSharing bool   `json:"is_screen_sharing"`
}

func NewParticipant(user User) *Participant {
	return &Participant{User: user, IsOnline: true}
}

// Flag returns the media flag for kind.
func (p *Participant) Flag(kind MediaKind) bool {
	switch kind {
	case MediaAudio:
		return p.IsAudioEnabled
	case MediaVideo:
		return p.IsVideoEnabled
	case MediaScreen:
		return p.IsScreenSharing
	}
	return false
}

func (p *Participant) SetFlag(kind MediaKind, enabled bool) {
	switch kind {
	case MediaAudio:
		p.IsAudioEnabled = enabled
	case MediaVideo:
		p.IsVideoEnabled = enabled
	case MediaScreen:
		p.IsScreenSharing = enabled
	}
}

// ClearMedia turns every live media flag off.
func (p *Participant) ClearMedia() {
	p.IsAudioEnabled = false
	p.IsVideoEnabled = false
	p.IsScreenSharing = false
}
