package app

import (
	"encoding/json"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/dkeye/Classroom/internal/domain"
)

// WhiteboardReplica holds the shared scene. Conflicts resolve last-writer-wins
// per broadcast: two users drawing at once can lose one of the strokes.
type WhiteboardReplica struct {
	scene     domain.Scene
	version   uint64
	requested bool

	throttle   *Throttle
	pending    *domain.Scene
	lastRemote uint64
	lastSent   uint64
}

func NewWhiteboardReplica(minInterval time.Duration) *WhiteboardReplica {
	return &WhiteboardReplica{throttle: NewThrottle(1, minInterval)}
}

// RequestFullState reports true only the first time, so the full-state request goes out once per join.
func (w *WhiteboardReplica) RequestFullState() bool {
	if w.requested {
		return false
	}
	w.requested = true
	return true
}

// ApplyRemote replaces the scene with a broadcast one.
func (w *WhiteboardReplica) ApplyRemote(scene domain.Scene) {
	w.scene = scene.Clone()
	w.version++
	w.lastRemote = Fingerprint(scene)
}

// SubmitLocal applies a local edit. It returns the scene to broadcast now, or
// deferred=true when the throttle holds it back until NextFlush. A scene equal
// to the last remote one is an echo of ApplyRemote and is not re-submitted.
func (w *WhiteboardReplica) SubmitLocal(scene domain.Scene, now time.Time) (send *domain.Scene, deferred bool) {
	fp := Fingerprint(scene)
	if fp == w.lastRemote && fp == Fingerprint(w.scene) {
		return nil, false
	}
	w.scene = scene.Clone()
	w.version++
	if fp == w.lastSent && w.pending == nil {
		return nil, false
	}
	if !w.throttle.Allow(now) {
		held := scene.Clone()
		w.pending = &held
		return nil, true
	}
	w.pending = nil
	w.lastSent = fp
	out := scene.Clone()
	return &out, false
}

// Flush releases the pending scene once the throttle allows it.
func (w *WhiteboardReplica) Flush(now time.Time) (send *domain.Scene, deferred bool) {
	if w.pending == nil {
		return nil, false
	}
	if !w.throttle.Allow(now) {
		return nil, true
	}
	out := w.pending.Clone()
	w.pending = nil
	w.lastSent = Fingerprint(out)
	return &out, false
}

func (w *WhiteboardReplica) NextFlush(now time.Time) time.Time { return w.throttle.NextAllowed(now) }
func (w *WhiteboardReplica) HasPending() bool                  { return w.pending != nil }
func (w *WhiteboardReplica) Scene() domain.Scene               { return w.scene.Clone() }
func (w *WhiteboardReplica) Version() uint64                   { return w.version }

// Fingerprint hashes the scene's canonical JSON form.
func Fingerprint(scene domain.Scene) uint64 {
	b, err := json.Marshal(scene)
	if err != nil {
		return 0
	}
	return xxhash.Sum64(b)
}
