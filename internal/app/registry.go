package app

import (
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// Registry is the session roster keyed by user id. Entries are never removed
// while the session lives, so absentees stay visible with IsOnline=false.
//
// Registry is owned by the session loop and is not safe for concurrent use.
type Registry struct {
	byID  map[domain.UserID]*domain.Participant
	order []domain.UserID
}

func NewRegistry() *Registry {
	return &Registry{byID: make(map[domain.UserID]*domain.Participant)}
}

// OnJoined creates the entry or refreshes an existing one. Redelivered joins
// keep the current media flags.
func (r *Registry) OnJoined(p domain.Participant) *domain.Participant {
	if cur, ok := r.byID[p.ID]; ok {
		cur.DisplayName = p.DisplayName
		cur.AvatarRef = p.AvatarRef
		cur.Role = p.Role
		if p.TransportHandle != "" {
			cur.TransportHandle = p.TransportHandle
		}
		cur.IsOnline = true
		log.Debug().Str("module", "app.registry").Str("user", string(p.ID)).Msg("refreshed participant")
		return cur
	}
	entry := p
	entry.IsOnline = true
	r.byID[p.ID] = &entry
	r.order = append(r.order, p.ID)
	log.Info().Str("module", "app.registry").Str("user", string(p.ID)).Str("role", string(p.Role)).Msg("participant joined")
	return &entry
}

// OnLeft marks the user offline and clears live media. Unknown users report false.
func (r *Registry) OnLeft(id domain.UserID) bool {
	p, ok := r.byID[id]
	if !ok {
		return false
	}
	p.IsOnline = false
	p.ClearMedia()
	log.Info().Str("module", "app.registry").Str("user", string(id)).Msg("participant left")
	return true
}

// OnPresenceChanged flips IsOnline. Going offline also clears live media.
func (r *Registry) OnPresenceChanged(id domain.UserID, online bool) bool {
	p, ok := r.byID[id]
	if !ok {
		return false
	}
	p.IsOnline = online
	if !online {
		p.ClearMedia()
	}
	return true
}

func (r *Registry) Get(id domain.UserID) (*domain.Participant, bool) {
	p, ok := r.byID[id]
	return p, ok
}

func (r *Registry) Len() int { return len(r.order) }

// Each visits entries in join order.
func (r *Registry) Each(fn func(p *domain.Participant)) {
	for _, id := range r.order {
		fn(r.byID[id])
	}
}

// Snapshot returns copies in join order.
func (r *Registry) Snapshot() []domain.Participant {
	return lo.Map(r.order, func(id domain.UserID, _ int) domain.Participant {
		return *r.byID[id]
	})
}

func (r *Registry) Online() []domain.Participant {
	return lo.Filter(r.Snapshot(), func(p domain.Participant, _ int) bool { return p.IsOnline })
}

// ScreenSharers lists users whose IsScreenSharing flag is set.
func (r *Registry) ScreenSharers() []domain.UserID {
	var out []domain.UserID
	r.Each(func(p *domain.Participant) {
		if p.IsScreenSharing {
			out = append(out, p.ID)
		}
	})
	return out
}
