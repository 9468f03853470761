package app

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dkeye/Classroom/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// ChatLog keeps messages ordered by (SentAt, ID) and unique by ID.
//
// Locally sent messages carry a provisional id until the server echo arrives;
// the echo replaces the provisional entry when sender and content match and
// the timestamps are within the echo window.
type ChatLog struct {
	session    domain.SessionID
	echoWindow time.Duration

	entries []domain.ChatMessage
	ids     map[domain.MessageID]struct{}

	loaded     map[string]struct{}
	nextCursor string
	hasMore    bool
}

func NewChatLog(session domain.SessionID, echoWindow time.Duration) *ChatLog {
	return &ChatLog{
		session:    session,
		echoWindow: echoWindow,
		ids:        make(map[domain.MessageID]struct{}),
		loaded:     make(map[string]struct{}),
		hasMore:    true,
	}
}

// NewProvisional appends a locally sent message with a temporary id.
func (c *ChatLog) NewProvisional(sender domain.UserID, content string, now time.Time) (domain.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.ChatMessage{}, domain.ErrEmptyMessage
	}
	if len(content) > domain.MaxMessageLen {
		return domain.ChatMessage{}, domain.ErrMessageTooLong
	}
	msg := domain.ChatMessage{
		ID:        domain.MessageID(domain.ProvisionalPrefix + uuid.NewString()),
		SessionID: c.session,
		SenderID:  sender,
		Content:   content,
		SentAt:    now,
		Kind:      domain.KindMessage,
	}
	c.insert(msg)
	return msg, nil
}

// NewOverride appends a provisional edit or delete targeting an existing message.
func (c *ChatLog) NewOverride(sender domain.UserID, kind domain.MessageKind, target domain.MessageID, content string, now time.Time) (domain.ChatMessage, error) {
	orig, ok := c.find(target)
	if !ok {
		return domain.ChatMessage{}, fmt.Errorf("%w: unknown message %s", domain.ErrStaleEvent, target)
	}
	if orig.SenderID != sender {
		return domain.ChatMessage{}, fmt.Errorf("%w: not the author of %s", domain.ErrPermissionDenied, target)
	}
	if kind == domain.KindEdit && strings.TrimSpace(content) == "" {
		return domain.ChatMessage{}, domain.ErrEmptyMessage
	}
	if kind == domain.KindDelete {
		content = ""
	}
	msg := domain.ChatMessage{
		ID:        domain.MessageID(domain.ProvisionalPrefix + uuid.NewString()),
		SessionID: c.session,
		SenderID:  sender,
		Content:   content,
		SentAt:    now,
		Kind:      kind,
		TargetID:  target,
	}
	c.insert(msg)
	return msg, nil
}

// Remove drops an entry, used when a provisional message could not be sent.
func (c *ChatLog) Remove(id domain.MessageID) bool {
	for i, m := range c.entries {
		if m.ID == id {
			c.entries = append(c.entries[:i], c.entries[i+1:]...)
			delete(c.ids, id)
			return true
		}
	}
	return false
}

// AppendIncoming applies a pushed message. It reports false for duplicates.
func (c *ChatLog) AppendIncoming(m domain.ChatMessage) bool {
	if _, dup := c.ids[m.ID]; dup {
		// A history page may have brought the canonical copy before the echo.
		c.confirmProvisional(m)
		log.Debug().Str("module", "app.chat").Str("id", string(m.ID)).Msg("duplicate message dropped")
		return false
	}
	c.confirmProvisional(m)
	c.insert(m)
	return true
}

// MergePage inserts a history page and returns how many entries were new.
// Merging the same cursor twice never duplicates entries.
func (c *ChatLog) MergePage(cursor string, page domain.HistoryPage) int {
	added := 0
	for _, m := range page.Messages {
		if _, dup := c.ids[m.ID]; dup {
			c.confirmProvisional(m)
			continue
		}
		c.confirmProvisional(m)
		c.insert(m)
		added++
	}
	if _, seen := c.loaded[cursor]; !seen {
		c.loaded[cursor] = struct{}{}
		c.nextCursor = page.NextCursor
		c.hasMore = page.HasMore && page.NextCursor != ""
	}
	return added
}

func (c *ChatLog) Loaded(cursor string) bool {
	_, ok := c.loaded[cursor]
	return ok
}

// NextCursor points before the oldest loaded page.
func (c *ChatLog) NextCursor() string { return c.nextCursor }
func (c *ChatLog) HasMore() bool      { return c.hasMore }
func (c *ChatLog) Len() int           { return len(c.entries) }

func (c *ChatLog) Messages() []domain.ChatMessage {
	out := make([]domain.ChatMessage, len(c.entries))
	copy(out, c.entries)
	return out
}

// Visible folds edits and deletes into the messages they target. Stored
// entries are left untouched.
func (c *ChatLog) Visible() []domain.VisibleMessage {
	out := make([]domain.VisibleMessage, 0, len(c.entries))
	index := make(map[domain.MessageID]int, len(c.entries))
	for _, m := range c.entries {
		switch m.EffectiveKind() {
		case domain.KindMessage:
			index[m.ID] = len(out)
			out = append(out, domain.VisibleMessage{ChatMessage: m})
		case domain.KindEdit:
			if i, ok := index[m.TargetID]; ok && !out[i].Deleted && out[i].SenderID == m.SenderID {
				out[i].Content = m.Content
				out[i].Edited = true
			}
		case domain.KindDelete:
			if i, ok := index[m.TargetID]; ok && out[i].SenderID == m.SenderID {
				out[i].Content = ""
				out[i].Deleted = true
			}
		}
	}
	return out
}

func (c *ChatLog) insert(m domain.ChatMessage) {
	i := sort.Search(len(c.entries), func(i int) bool { return m.Less(c.entries[i]) })
	c.entries = append(c.entries, domain.ChatMessage{})
	copy(c.entries[i+1:], c.entries[i:])
	c.entries[i] = m
	c.ids[m.ID] = struct{}{}
}

func (c *ChatLog) find(id domain.MessageID) (domain.ChatMessage, bool) {
	if _, ok := c.ids[id]; !ok {
		return domain.ChatMessage{}, false
	}
	for _, m := range c.entries {
		if m.ID == id {
			return m, true
		}
	}
	return domain.ChatMessage{}, false
}

// confirmProvisional drops the provisional entry that m is the canonical copy of.
func (c *ChatLog) confirmProvisional(m domain.ChatMessage) {
	if m.IsProvisional() {
		return
	}
	idx := c.matchProvisional(m)
	if idx < 0 {
		return
	}
	tmp := c.entries[idx].ID
	c.entries = append(c.entries[:idx], c.entries[idx+1:]...)
	delete(c.ids, tmp)
	log.Debug().Str("module", "app.chat").Str("provisional", string(tmp)).Str("id", string(m.ID)).Msg("provisional message confirmed")
}

// matchProvisional finds the provisional entry closest in time to the echo.
func (c *ChatLog) matchProvisional(echo domain.ChatMessage) int {
	best, bestGap := -1, time.Duration(-1)
	for i, m := range c.entries {
		if !m.IsProvisional() || m.SenderID != echo.SenderID || m.Content != echo.Content {
			continue
		}
		if m.EffectiveKind() != echo.EffectiveKind() || m.TargetID != echo.TargetID {
			continue
		}
		gap := m.SentAt.Sub(echo.SentAt)
		if gap < 0 {
			gap = -gap
		}
		if gap > c.echoWindow {
			continue
		}
		if best < 0 || gap < bestGap {
			best, bestGap = i, gap
		}
	}
	return best
}
