package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Classroom/internal/adapters/signal"
	"github.com/dkeye/Classroom/internal/core"
	"github.com/dkeye/Classroom/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

type Options struct {
	// Buffer is the capacity of the Events channel.
	Buffer int
	Now    func() time.Time
}

// Adapter funnels one signaling connection and one media connection into a
// single ordered stream of envelopes. Negotiation frames go to the media
// connection and never show up on Events.
type Adapter struct {
	NewSignal func() core.SignalConnection
	NewMedia  func() core.MediaConnection

	now    func() time.Time
	events chan core.Envelope

	mu         sync.Mutex
	gen        uint64
	connecting bool
	signal     core.SignalConnection
	media      core.MediaConnection
	ctx        context.Context
	cancel     context.CancelFunc
	lastSeq    map[core.Category]uint64
	localSeq   map[core.Category]uint64
}

func New(newSignal func() core.SignalConnection, newMedia func() core.MediaConnection, opts Options) *Adapter {
	if opts.Buffer <= 0 {
		opts.Buffer = 64
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Adapter{
		NewSignal: newSignal,
		NewMedia:  newMedia,
		now:       opts.Now,
		events:    make(chan core.Envelope, opts.Buffer),
		lastSeq:   make(map[core.Category]uint64),
		localSeq:  make(map[core.Category]uint64),
	}
}

// Events is never closed; it outlives every connection of the adapter.
func (a *Adapter) Events() <-chan core.Envelope { return a.events }

func (a *Adapter) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.signal != nil
}

// Connect dials the signaling channel and starts the media transport in
// parallel. Either failure tears both down.
func (a *Adapter) Connect(ctx context.Context, sid domain.SessionID, token string, creds domain.TransportCredentials) error {
	a.mu.Lock()
	if a.signal != nil || a.connecting {
		a.mu.Unlock()
		return nil
	}
	a.connecting = true
	a.gen++
	gen := a.gen
	runCtx, cancel := context.WithCancel(context.Background())
	a.ctx, a.cancel = runCtx, cancel
	a.mu.Unlock()

	sig, med := a.NewSignal(), a.NewMedia()
	a.bindMedia(gen, med)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := sig.Dial(gctx, sid, token); err != nil {
			return fmt.Errorf("signal: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := med.Start(runCtx, creds); err != nil {
			return fmt.Errorf("media: %w", err)
		}
		return nil
	})
	err := g.Wait()

	a.mu.Lock()
	a.connecting = false
	if err == nil && gen != a.gen {
		err = fmt.Errorf("%w: disconnected while connecting", domain.ErrNotConnected)
	}
	if err != nil {
		if gen == a.gen {
			a.gen++
		}
		a.mu.Unlock()
		cancel()
		sig.Close()
		med.Close()
		log.Error().Str("module", "transport").Str("session", string(sid)).Err(err).Msg("connect failed")
		return err
	}
	a.signal, a.media = sig, med
	clear(a.lastSeq)
	clear(a.localSeq)
	a.mu.Unlock()

	go a.pump(runCtx, gen, sig, med)
	log.Info().Str("module", "transport").Str("session", string(sid)).Msg("connected")
	return nil
}

// bindMedia wires the media callbacks before Start so no early offer or
// candidate is lost.
func (a *Adapter) bindMedia(gen uint64, med core.MediaConnection) {
	med.OnOffer(func(sd webrtc.SessionDescription) {
		a.sendFor(gen, core.LocalOffer{Description: sd})
	})
	med.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		a.sendFor(gen, core.LocalCandidate{Candidate: ci})
	})
	med.OnTrackState(func(s core.TrackState) {
		a.emit(gen, core.TrackStateChanged{State: s}, 0, false)
	})
	med.OnClosed(func() {
		a.connectionLost(gen, "media", nil)
	})
}

// Disconnect closes both connections. It does not emit ConnectionLost and
// does nothing when no connection is up or being dialed.
func (a *Adapter) Disconnect() {
	a.mu.Lock()
	if a.signal == nil && !a.connecting {
		a.mu.Unlock()
		return
	}
	a.gen++
	sig, med, cancel := a.signal, a.media, a.cancel
	a.signal, a.media, a.cancel = nil, nil, nil
	a.mu.Unlock()

	teardown(cancel, sig, med)
}

func teardown(cancel context.CancelFunc, sig core.SignalConnection, med core.MediaConnection) {
	if cancel != nil {
		cancel()
	}
	if sig != nil {
		sig.Close()
	}
	if med != nil {
		med.Close()
	}
}

func (a *Adapter) Send(msg core.Outbound) error {
	a.mu.Lock()
	sig := a.signal
	a.mu.Unlock()
	if sig == nil {
		return domain.ErrNotConnected
	}
	frame, err := signal.Encode(msg)
	if err != nil {
		return err
	}
	return sig.TrySend(frame)
}

func (a *Adapter) SetMediaEnabled(ctx context.Context, kind domain.MediaKind, enabled bool) error {
	a.mu.Lock()
	med := a.media
	a.mu.Unlock()
	if med == nil {
		return domain.ErrNotConnected
	}
	return med.SetEnabled(ctx, kind, enabled)
}

func (a *Adapter) sendFor(gen uint64, msg core.Outbound) {
	a.mu.Lock()
	sig := a.signal
	if gen != a.gen {
		sig = nil
	}
	a.mu.Unlock()
	if sig == nil {
		// Offers gathered before Dial returns are repeated by the next negotiation.
		log.Debug().Str("module", "transport").Msgf("%T dropped, signal not ready", msg)
		return
	}
	frame, err := signal.Encode(msg)
	if err == nil {
		err = sig.TrySend(frame)
	}
	if err != nil {
		log.Warn().Str("module", "transport").Err(err).Msgf("send %T", msg)
	}
}

func (a *Adapter) pump(ctx context.Context, gen uint64, sig core.SignalConnection, med core.MediaConnection) {
	for {
		select {
		case <-ctx.Done():
			return
		case f, ok := <-sig.Frames():
			if !ok {
				a.connectionLost(gen, "signal", sig.Err())
				return
			}
			a.handleFrame(gen, med, f)
		}
	}
}

func (a *Adapter) handleFrame(gen uint64, med core.MediaConnection, f core.Frame) {
	in, err := signal.Decode(f)
	if err != nil {
		log.Warn().Str("module", "transport").Err(err).Msg("frame dropped")
		return
	}
	switch {
	case in.Answer != nil:
		if err := med.ApplyAnswer(*in.Answer); err != nil {
			log.Error().Str("module", "transport").Err(err).Msg("apply answer")
		}
		return
	case in.Candidate != nil:
		if err := med.AddICECandidate(*in.Candidate); err != nil {
			log.Warn().Str("module", "transport").Err(err).Msg("add ice candidate")
		}
		return
	case in.Error != "":
		log.Warn().Str("module", "transport").Str("error", in.Error).Msg("server error")
		return
	}
	for _, ev := range in.Events {
		a.emit(gen, ev, in.Seq, in.HasSeq && in.Type != "room_state")
	}
}

// emit stamps and queues an event. Upstream sequence numbers are checked per
// category: anything at or below the last one seen is a redelivery.
func (a *Adapter) emit(gen uint64, ev core.Event, seq uint64, sequenced bool) {
	a.mu.Lock()
	if gen != a.gen {
		a.mu.Unlock()
		return
	}
	cat := ev.Category()
	if sequenced {
		if last, ok := a.lastSeq[cat]; ok && seq <= last {
			a.mu.Unlock()
			log.Debug().Str("module", "transport").Str("category", string(cat)).Uint64("seq", seq).Msg("redelivered event dropped")
			return
		}
		a.lastSeq[cat] = seq
	} else {
		a.localSeq[cat]++
		seq = a.localSeq[cat]
	}
	ctx := a.ctx
	a.mu.Unlock()

	env := core.Envelope{Seq: seq, ReceivedAt: a.now(), Event: ev}
	select {
	case a.events <- env:
	case <-ctx.Done():
	}
}

// connectionLost detaches the broken pair so the next Connect dials a fresh
// one, then reports the loss once.
func (a *Adapter) connectionLost(gen uint64, source string, err error) {
	a.mu.Lock()
	if gen != a.gen || a.signal == nil {
		a.mu.Unlock()
		return
	}
	a.gen++
	sig, med, cancel := a.signal, a.media, a.cancel
	a.signal, a.media, a.cancel = nil, nil, nil
	ctx := a.ctx
	a.mu.Unlock()

	log.Error().Str("module", "transport").Str("source", source).Err(err).Msg("connection lost")
	select {
	case a.events <- core.Envelope{ReceivedAt: a.now(), Event: core.ConnectionLost{Source: source, Err: err}}:
	case <-ctx.Done():
	}
	// The media side may be reporting from inside its own Close.
	go teardown(cancel, sig, med)
}
