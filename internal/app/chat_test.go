package app

import (
	"testing"
	"time"

	"github.com/dkeye/Classroom/internal/domain"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func msg(id, sender, content string, at time.Time) domain.ChatMessage {
	return domain.ChatMessage{
		ID:        domain.MessageID(id),
		SessionID: "s1",
		SenderID:  domain.UserID(sender),
		Content:   content,
		SentAt:    at,
	}
}

func TestChatLog_EchoReplacesProvisional(t *testing.T) {
	req := require.New(t)
	log := NewChatLog("s1", 2*time.Second)

	// Given A sends "hello"
	pending, err := log.NewProvisional("a", "hello", t0)
	req.NoError(err)
	req.True(pending.IsProvisional())
	req.Equal(1, log.Len())

	// When the server echo arrives with its canonical id
	req.True(log.AppendIncoming(msg("m-42", "a", "hello", t0.Add(800*time.Millisecond))))

	// Then there is exactly one entry, bearing the canonical id
	msgs := log.Messages()
	req.Len(msgs, 1)
	req.Equal(domain.MessageID("m-42"), msgs[0].ID)
}

func TestChatLog_HistoryPageBeforeEcho(t *testing.T) {
	req := require.New(t)
	log := NewChatLog("s1", 2*time.Second)

	// Given A sends "hello" while the first history page is in flight
	_, err := log.NewProvisional("a", "hello", t0)
	req.NoError(err)

	// When the page already holds the canonical copy, then the echo arrives
	req.Equal(1, log.MergePage("", domain.HistoryPage{
		Messages: []domain.ChatMessage{msg("m-42", "a", "hello", t0.Add(300*time.Millisecond))},
	}))
	req.False(log.AppendIncoming(msg("m-42", "a", "hello", t0.Add(300*time.Millisecond))))

	// Then only the canonical entry is left
	msgs := log.Messages()
	req.Len(msgs, 1)
	req.Equal(domain.MessageID("m-42"), msgs[0].ID)
}

func TestChatLog_RedeliveredEchoConfirmsProvisional(t *testing.T) {
	req := require.New(t)
	log := NewChatLog("s1", 2*time.Second)

	// Given the canonical copy is known and a second send of the same text is pending
	req.True(log.AppendIncoming(msg("m-1", "a", "ok", t0)))
	_, err := log.NewProvisional("a", "ok", t0.Add(time.Second))
	req.NoError(err)

	// When m-1 is delivered again
	req.False(log.AppendIncoming(msg("m-1", "a", "ok", t0)))

	// Then the pending copy is taken as confirmed
	req.Equal(1, log.Len())
}

func TestChatLog_EchoOutsideWindowIsKept(t *testing.T) {
	req := require.New(t)
	log := NewChatLog("s1", 2*time.Second)
	_, _ = log.NewProvisional("a", "hello", t0)

	log.AppendIncoming(msg("m-1", "a", "hello", t0.Add(5*time.Second)))
	log.AppendIncoming(msg("m-2", "b", "hello", t0))

	req.Equal(3, log.Len())
}

func TestChatLog_DuplicatesAndOrdering(t *testing.T) {
	req := require.New(t)
	log := NewChatLog("s1", 2*time.Second)

	req.True(log.AppendIncoming(msg("m-2", "a", "second", t0.Add(time.Second))))
	req.True(log.AppendIncoming(msg("m-1", "b", "first", t0)))
	req.True(log.AppendIncoming(msg("m-0", "c", "tie", t0.Add(time.Second))))
	req.False(log.AppendIncoming(msg("m-2", "a", "second", t0.Add(time.Second))))

	ids := []domain.MessageID{}
	for _, m := range log.Messages() {
		ids = append(ids, m.ID)
	}
	req.Equal([]domain.MessageID{"m-1", "m-0", "m-2"}, ids)
}

func TestChatLog_MergePageIsIdempotent(t *testing.T) {
	req := require.New(t)
	log := NewChatLog("s1", 2*time.Second)
	log.AppendIncoming(msg("m-10", "a", "live", t0.Add(time.Hour)))
	page := domain.HistoryPage{
		Messages:   []domain.ChatMessage{msg("m-1", "a", "old", t0), msg("m-2", "b", "older?", t0.Add(time.Minute))},
		NextCursor: "c-1",
		HasMore:    true,
	}

	req.Equal(2, log.MergePage("", page))
	req.Equal(0, log.MergePage("", page))

	req.Equal(3, log.Len())
	req.Equal("c-1", log.NextCursor())
	req.True(log.HasMore())
	req.True(log.Loaded(""))
	msgs := log.Messages()
	req.Equal(domain.MessageID("m-1"), msgs[0].ID)
	req.Equal(domain.MessageID("m-10"), msgs[2].ID)

	// A last page without a cursor ends the history
	log.MergePage("c-1", domain.HistoryPage{Messages: []domain.ChatMessage{msg("m-0", "a", "first", t0.Add(-time.Hour))}})
	req.False(log.HasMore())
	// Replaying an earlier cursor does not move the paging position back
	log.MergePage("", page)
	req.Equal("", log.NextCursor())
	req.Equal(4, log.Len())
}

func TestChatLog_RejectsEmptyAndOversized(t *testing.T) {
	req := require.New(t)
	log := NewChatLog("s1", time.Second)

	_, err := log.NewProvisional("a", "   ", t0)
	req.ErrorIs(err, domain.ErrEmptyMessage)
	big := make([]byte, domain.MaxMessageLen+1)
	for i := range big {
		big[i] = 'x'
	}
	_, err = log.NewProvisional("a", string(big), t0)
	req.ErrorIs(err, domain.ErrMessageTooLong)
	req.Equal(0, log.Len())
}

func TestChatLog_EditsAndDeletesAreOverlays(t *testing.T) {
	req := require.New(t)
	log := NewChatLog("s1", time.Second)
	log.AppendIncoming(msg("m-1", "a", "helo", t0))
	log.AppendIncoming(msg("m-2", "b", "hi", t0.Add(time.Second)))

	edit := msg("m-3", "a", "hello", t0.Add(2*time.Second))
	edit.Kind, edit.TargetID = domain.KindEdit, "m-1"
	log.AppendIncoming(edit)
	del := msg("m-4", "b", "", t0.Add(3*time.Second))
	del.Kind, del.TargetID = domain.KindDelete, "m-2"
	log.AppendIncoming(del)
	forged := msg("m-5", "b", "pwned", t0.Add(4*time.Second))
	forged.Kind, forged.TargetID = domain.KindEdit, "m-1"
	log.AppendIncoming(forged)

	visible := log.Visible()
	req.Len(visible, 2)
	req.Equal("hello", visible[0].Content)
	req.True(visible[0].Edited)
	req.True(visible[1].Deleted)
	req.Equal("", visible[1].Content)

	// The stored entries are untouched
	req.Equal(5, log.Len())
	req.Equal("helo", log.Messages()[0].Content)
}

func TestChatLog_NewOverrideRequiresAuthor(t *testing.T) {
	req := require.New(t)
	log := NewChatLog("s1", time.Second)
	log.AppendIncoming(msg("m-1", "a", "hi", t0))

	_, err := log.NewOverride("b", domain.KindEdit, "m-1", "changed", t0.Add(time.Second))
	req.ErrorIs(err, domain.ErrPermissionDenied)
	_, err = log.NewOverride("a", domain.KindEdit, "missing", "changed", t0.Add(time.Second))
	req.ErrorIs(err, domain.ErrStaleEvent)

	edit, err := log.NewOverride("a", domain.KindEdit, "m-1", "hey", t0.Add(time.Second))
	req.NoError(err)
	req.True(edit.IsProvisional())
	req.Equal("hey", log.Visible()[0].Content)
}

func TestChatLog_RemoveProvisional(t *testing.T) {
	req := require.New(t)
	log := NewChatLog("s1", time.Second)
	m, _ := log.NewProvisional("a", "oops", t0)

	req.True(log.Remove(m.ID))
	req.False(log.Remove(m.ID))
	req.Equal(0, log.Len())
}
