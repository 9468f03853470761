package domain

import (
	"strings"
	"time"
)

type MessageID string

type MessageKind string

const (
	KindMessage MessageKind = "message"
	KindEdit    MessageKind = "edit"
	KindDelete  MessageKind = "delete"
)

const MaxMessageLen = 4000

// ProvisionalPrefix marks ids generated locally before the server echo arrives.
const ProvisionalPrefix = "tmp-"

// ChatMessage is append-only. Edits and deletes are new entries pointing at TargetID.
type ChatMessage struct {
	ID        MessageID   `json:"id"`
	SessionID SessionID   `json:"session_id"`
	SenderID  UserID      `json:"sender_id"`
	Content   string      `json:"content"`
	SentAt    time.Time   `json:"sent_at"`
	Kind      MessageKind `json:"kind,omitempty"`
	TargetID  MessageID   `json:"target_id,omitempty"`
}

func (m ChatMessage) IsProvisional() bool {
	return strings.HasPrefix(string(m.ID), ProvisionalPrefix)
}

// Less orders by SentAt, then ID.
func (m ChatMessage) Less(o ChatMessage) bool {
	if !m.SentAt.Equal(o.SentAt) {
		return m.SentAt.Before(o.SentAt)
	}
	return m.ID < o.ID
}

func (m ChatMessage) EffectiveKind() MessageKind {
	if m.Kind == "" {
		return KindMessage
	}
	return m.Kind
}

// HistoryPage is one page of prior messages, oldest first.
type HistoryPage struct {
	Messages   []ChatMessage `json:"messages"`
	NextCursor string        `json:"next_cursor"`
	HasMore    bool          `json:"has_more"`
}

// VisibleMessage is a transcript line after edits and deletes are applied.
type VisibleMessage struct {
	ChatMessage
	Edited  bool `json:"edited"`
	Deleted bool `json:"deleted"`
}
