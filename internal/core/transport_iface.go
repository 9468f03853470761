package core

import (
	"context"

	"github.com/dkeye/Classroom/internal/domain"
)

// EventTransport funnels the signaling channel and the media transport into one stream.
type EventTransport interface {
	// Connect opens one signaling and one media connection. A second call while
	// connected is a no-op.
	Connect(ctx context.Context, sid domain.SessionID, token string, creds domain.TransportCredentials) error
	Disconnect()
	Connected() bool
	Events() <-chan Envelope
	// Send never blocks; it fails when the outbound buffer is full or the channel is closed.
	Send(Outbound) error
	SetMediaEnabled(ctx context.Context, kind domain.MediaKind, enabled bool) error
}
