package domain

import "encoding/json"

// ViewState is the small non-element part of a whiteboard scene.
type ViewState struct {
	Background string `json:"background,omitempty"`
}

// Scene is an opaque ordered list of drawable elements. Elements are never interpreted here.
type Scene struct {
	Elements []json.RawMessage `json:"elements"`
	View     ViewState         `json:"view"`
}

func (s Scene) Clone() Scene {
	out := Scene{View: s.View}
	if s.Elements != nil {
		out.Elements = make([]json.RawMessage, len(s.Elements))
		for i, e := range s.Elements {
			out.Elements[i] = append(json.RawMessage(nil), e...)
		}
	}
	return out
}
