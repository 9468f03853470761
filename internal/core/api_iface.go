//go:generate go run go.uber.org/mock/mockgen -source=api_iface.go -destination=../mocks/mock_session_api.go -package=mocks
package core

import (
	"context"

	"github.com/dkeye/Classroom/internal/domain"
)

// SessionAPI is the REST collaborator. Only the chat history and recording
// notifications are used once the session is live.
type SessionAPI interface {
	JoinWindow(ctx context.Context, sid domain.SessionID) (domain.JoinWindow, error)
	MintCredentials(ctx context.Context, sid domain.SessionID, uid domain.UserID) (domain.TransportCredentials, error)
	ListRecordings(ctx context.Context, sid domain.SessionID) ([]domain.Recording, error)
	FetchHistory(ctx context.Context, sid domain.SessionID, cursor string, limit int) (domain.HistoryPage, error)
	NotifyRecording(ctx context.Context, sid domain.SessionID, active bool) error
}
