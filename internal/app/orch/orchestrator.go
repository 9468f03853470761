package orch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dkeye/Classroom/internal/app"
	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/rs/zerolog/log"
)

// ErrStopped is returned by commands issued after Run has returned.
var ErrStopped = errors.New("session store stopped")

type Options struct {
	ChatEchoWindow     time.Duration
	ChatPageSize       int
	WhiteboardInterval time.Duration
	MediaCallTimeout   time.Duration
	InboxSize          int
	SubscriberBuffer   int
	Now                func() time.Time
}

func (o Options) withDefaults() Options {
	if o.ChatEchoWindow <= 0 {
		o.ChatEchoWindow = 2 * time.Second
	}
	if o.ChatPageSize <= 0 {
		o.ChatPageSize = 50
	}
	if o.MediaCallTimeout <= 0 {
		o.MediaCallTimeout = 10 * time.Second
	}
	if o.InboxSize <= 0 {
		o.InboxSize = 64
	}
	if o.SubscriberBuffer <= 0 {
		o.SubscriberBuffer = 16
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Orchestrator is the session store. One goroutine (Run) owns every slice of
// state; commands and transport events reach it over channels, so reducers
// always run to completion before the next one starts.
type Orchestrator struct {
	Transport core.EventTransport
	API       core.SessionAPI
	Policy    app.Policy

	opts    Options
	inbox   chan func()
	stopped chan struct{}

	// Owned by the Run goroutine.
	epoch   uint64
	st      *session
	subs    map[int]chan Snapshot
	nextSub int

	// Closed once the teardown started by end has finished.
	torndown chan struct{}
}

func New(transport core.EventTransport, api core.SessionAPI, policy app.Policy, opts Options) *Orchestrator {
	if policy == nil {
		policy = app.RolePolicy{}
	}
	opts = opts.withDefaults()
	o := &Orchestrator{
		Transport: transport,
		API:       api,
		Policy:    policy,
		opts:      opts,
		inbox:     make(chan func(), opts.InboxSize),
		stopped:   make(chan struct{}),
		subs:      make(map[int]chan Snapshot),
	}
	o.st = o.newSession("", domain.User{}, domain.PhaseIdle)
	return o
}

// Run serves commands and transport events until ctx is done.
func (o *Orchestrator) Run(ctx context.Context) error {
	defer close(o.stopped)
	events := o.Transport.Events()
	log.Info().Str("module", "orch").Msg("session store started")
	for {
		select {
		case <-ctx.Done():
			o.shutdown()
			return ctx.Err()
		case fn := <-o.inbox:
			fn()
		case env, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			o.dispatch(env)
		}
	}
}

func (o *Orchestrator) shutdown() {
	o.st.stopFlush()
	for id, ch := range o.subs {
		close(ch)
		delete(o.subs, id)
	}
	log.Info().Str("module", "orch").Msg("session store stopped")
}

// do runs fn on the loop and waits for it.
func (o *Orchestrator) do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	select {
	case o.inbox <- func() { fn(); close(done) }:
	case <-ctx.Done():
		return ctx.Err()
	case <-o.stopped:
		return ErrStopped
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-o.stopped:
		return ErrStopped
	}
}

// post queues fn without waiting. Completions of asynchronous calls come back this way.
func (o *Orchestrator) post(fn func()) {
	select {
	case o.inbox <- fn:
	case <-o.stopped:
	}
}

// Snapshot returns the current read model.
func (o *Orchestrator) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := o.do(ctx, func() { snap = o.snapshot() })
	return snap, err
}

// Subscribe registers a projection listener. The channel receives the current
// snapshot right away and a new one after every change; a slow reader only
// loses intermediate snapshots, never the latest one.
func (o *Orchestrator) Subscribe(ctx context.Context) (<-chan Snapshot, func(), error) {
	var (
		id int
		ch = make(chan Snapshot, o.opts.SubscriberBuffer)
	)
	err := o.do(ctx, func() {
		o.nextSub++
		id = o.nextSub
		o.subs[id] = ch
		ch <- o.snapshot()
	})
	if err != nil {
		return nil, func() {}, err
	}
	cancel := func() {
		o.post(func() {
			if c, ok := o.subs[id]; ok {
				delete(o.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel, nil
}

func (o *Orchestrator) publish() {
	if len(o.subs) == 0 {
		return
	}
	snap := o.snapshot()
	for _, ch := range o.subs {
		select {
		case ch <- snap:
			continue
		default:
		}
		// Full: drop the oldest one so the latest state gets through.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}

func (o *Orchestrator) notify(kind domain.NoticeKind, msg string) {
	o.st.notice = &domain.Notice{Kind: kind, Message: msg, At: o.opts.Now()}
	log.Warn().Str("module", "orch").Str("kind", string(kind)).Msg(msg)
}

// requireConnected gates every command: a failed or left session takes no commands.
func (o *Orchestrator) requireConnected() error {
	if o.st.phase != domain.PhaseConnected {
		return fmt.Errorf("%w: phase %s", domain.ErrNotConnected, o.st.phase)
	}
	return nil
}

func (o *Orchestrator) send(msg core.Outbound) error {
	if err := o.Transport.Send(msg); err != nil {
		log.Warn().Str("module", "orch").Err(err).Msgf("send %T", msg)
		return err
	}
	return nil
}

// reportEventErr applies the error policy for reducers: stale events are
// dropped quietly, anything else is logged.
func reportEventErr(env core.Envelope, err error) {
	if err == nil {
		return
	}
	if errors.Is(err, domain.ErrStaleEvent) {
		log.Debug().Str("module", "orch").Str("category", string(env.Event.Category())).Uint64("seq", env.Seq).Err(err).Msg("stale event dropped")
		return
	}
	log.Warn().Str("module", "orch").Str("category", string(env.Event.Category())).Uint64("seq", env.Seq).Err(err).Msg("event rejected")
}
