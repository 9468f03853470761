package orch

import (
	"context"
	"fmt"
	"time"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/rs/zerolog/log"
)

// SendChat appends a provisional message and sends it. The server echo later
// replaces the provisional id with the canonical one.
func (o *Orchestrator) SendChat(ctx context.Context, content string) (domain.ChatMessage, error) {
	return o.chatCommand(ctx, func() (domain.ChatMessage, error) {
		return o.st.chat.NewProvisional(o.st.local.ID, content, o.opts.Now())
	})
}

func (o *Orchestrator) EditMessage(ctx context.Context, id domain.MessageID, content string) (domain.ChatMessage, error) {
	return o.chatCommand(ctx, func() (domain.ChatMessage, error) {
		return o.st.chat.NewOverride(o.st.local.ID, domain.KindEdit, id, content, o.opts.Now())
	})
}

func (o *Orchestrator) DeleteMessage(ctx context.Context, id domain.MessageID) (domain.ChatMessage, error) {
	return o.chatCommand(ctx, func() (domain.ChatMessage, error) {
		return o.st.chat.NewOverride(o.st.local.ID, domain.KindDelete, id, "", o.opts.Now())
	})
}

func (o *Orchestrator) chatCommand(ctx context.Context, create func() (domain.ChatMessage, error)) (domain.ChatMessage, error) {
	var (
		msg domain.ChatMessage
		err error
	)
	if derr := o.do(ctx, func() {
		if err = o.requireConnected(); err != nil {
			return
		}
		if msg, err = create(); err != nil {
			return
		}
		err = o.send(core.ChatSend{ClientID: msg.ID, Content: msg.Content, Kind: msg.EffectiveKind(), TargetID: msg.TargetID})
		if err != nil {
			o.st.chat.Remove(msg.ID)
			err = fmt.Errorf("send chat: %w", err)
		}
		o.publish()
	}); derr != nil {
		return domain.ChatMessage{}, derr
	}
	return msg, err
}

// LoadOlder fetches the page before cursor and merges it; an empty cursor
// continues from the oldest page loaded so far. A cursor already merged is not
// fetched again. It returns how many messages were new.
func (o *Orchestrator) LoadOlder(ctx context.Context, cursor string) (int, error) {
	var (
		err   error
		epoch uint64
		sid   domain.SessionID
		done  bool
	)
	if derr := o.do(ctx, func() {
		if err = o.requireConnected(); err != nil {
			return
		}
		if cursor == "" {
			if !o.st.chat.HasMore() {
				done = true
				return
			}
			cursor = o.st.chat.NextCursor()
		}
		if cursor != "" && o.st.chat.Loaded(cursor) {
			// Pages before a cursor never change.
			done = true
			return
		}
		epoch, sid = o.epoch, o.st.id
	}); derr != nil {
		return 0, derr
	}
	if err != nil || done {
		return 0, err
	}

	page, err := o.API.FetchHistory(ctx, sid, cursor, o.opts.ChatPageSize)
	if err != nil {
		return 0, fmt.Errorf("fetch history: %w", err)
	}

	added := 0
	if derr := o.do(ctx, func() {
		if epoch != o.epoch {
			err = fmt.Errorf("%w: history page after leave", domain.ErrStaleEvent)
			return
		}
		added = o.st.chat.MergePage(cursor, page)
		o.publish()
	}); derr != nil {
		return 0, derr
	}
	log.Debug().Str("module", "orch").Str("cursor", cursor).Int("added", added).Msg("history page merged")
	return added, err
}

// SubmitWhiteboard replaces the shared scene locally and broadcasts it,
// throttled. A held-back scene is flushed by a timer.
func (o *Orchestrator) SubmitWhiteboard(ctx context.Context, scene domain.Scene) error {
	var err error
	if derr := o.do(ctx, func() {
		if err = o.requireConnected(); err != nil {
			return
		}
		send, deferred := o.st.board.SubmitLocal(scene, o.opts.Now())
		if send != nil {
			err = o.send(core.WhiteboardUpdate{Scene: *send})
		}
		if deferred {
			o.scheduleFlush()
		}
		o.publish()
	}); derr != nil {
		return derr
	}
	return err
}

func (o *Orchestrator) scheduleFlush() {
	st := o.st
	if st.flush != nil || !st.board.HasPending() {
		return
	}
	now := o.opts.Now()
	wait := st.board.NextFlush(now).Sub(now)
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	epoch := o.epoch
	st.flush = time.AfterFunc(wait, func() {
		o.post(func() { o.flushWhiteboard(epoch) })
	})
}

func (o *Orchestrator) flushWhiteboard(epoch uint64) {
	if epoch != o.epoch || o.st.phase != domain.PhaseConnected {
		return
	}
	o.st.flush = nil
	send, deferred := o.st.board.Flush(o.opts.Now())
	if send != nil {
		_ = o.send(core.WhiteboardUpdate{Scene: *send})
	}
	if deferred {
		o.scheduleFlush()
	}
}
