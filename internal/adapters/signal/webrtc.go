package signal

import (
	"encoding/json"
	"errors"

	"github.com/pion/webrtc/v4"
)

type sdpPayload struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

type candidatePayload struct {
	Type          string  `json:"type"`
	Candidate     string  `json:"candidate"`
	SDPMid        string  `json:"sdpMid,omitempty"`
	SDPMLineIndex *uint16 `json:"sdpMLineIndex,omitempty"`
}

func encodeCandidate(ci webrtc.ICECandidateInit) candidatePayload {
	resp := candidatePayload{
		Type:          "candidate",
		Candidate:     ci.Candidate,
		SDPMLineIndex: ci.SDPMLineIndex,
	}
	if ci.SDPMid != nil {
		resp.SDPMid = *ci.SDPMid
	}
	return resp
}

func decodeCandidate(data []byte) (*webrtc.ICECandidateInit, error) {
	var p candidatePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	cand := webrtc.ICECandidateInit{
		Candidate:     p.Candidate,
		SDPMLineIndex: p.SDPMLineIndex,
	}
	if p.SDPMid != "" {
		cand.SDPMid = &p.SDPMid
	}
	return &cand, nil
}

func decodeAnswer(data []byte) (*webrtc.SessionDescription, error) {
	var p sdpPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	if p.SDP == "" {
		return nil, errors.New("empty sdp")
	}
	return &webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: p.SDP}, nil
}
