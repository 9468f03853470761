package domain

type Action string

const (
	ActionMute      Action = "mute"
	ActionStopVideo Action = "stop_video"
	ActionKick      Action = "kick"
)

func (a Action) Valid() bool {
	switch a {
	case ActionMute, ActionStopVideo, ActionKick:
		return true
	}
	return false
}

// MediaTarget selects which media a stop-media command affects.
type MediaTarget string

const (
	TargetAudio MediaTarget = "audio"
	TargetVideo MediaTarget = "video"
	TargetBoth  MediaTarget = "both"
)

// Actions maps a stop-media target to the moderation actions it requires.
func (t MediaTarget) Actions() []Action {
	switch t {
	case TargetAudio:
		return []Action{ActionMute}
	case TargetVideo:
		return []Action{ActionStopVideo}
	case TargetBoth:
		return []Action{ActionMute, ActionStopVideo}
	}
	return nil
}
