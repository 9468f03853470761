package core

import (
	"context"

	"github.com/dkeye/Classroom/internal/domain"
)

// Frame is a raw signaling payload.
type Frame []byte

// SignalConnection abstracts the signaling channel client.
// Owned by the transport adapter; the adapter must Close() it.
type SignalConnection interface {
	// Dial opens the connection, authenticated with a bearer token.
	Dial(ctx context.Context, sessionID domain.SessionID, token string) error
	TrySend(Frame) error
	// Frames delivers inbound payloads in arrival order.
	Frames() <-chan Frame
	// Done is closed once the connection is gone, for any reason.
	Done() <-chan struct{}
	Err() error
	Close()
}
