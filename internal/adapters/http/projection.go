package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const (
	projectionWriteWait  = 5 * time.Second
	projectionPingPeriod = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	// The inspector listens on a local port only.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// serveProjection pushes every published snapshot to the socket as JSON. The
// stream is read-only; inbound messages are discarded.
func serveProjection(ctx context.Context, c *gin.Context, s Session) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Str("module", "adapters.http").Err(err).Msg("projection upgrade")
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	snaps, unsubscribe, err := s.Subscribe(ctx)
	if err != nil {
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()),
			time.Now().Add(projectionWriteWait))
		_ = ws.Close()
		return
	}
	defer unsubscribe()

	go readDiscard(ws, cancel)
	log.Debug().Str("module", "adapters.http").Str("request_id", c.GetString("request_id")).Msg("projection subscribed")

	ticker := time.NewTicker(projectionPingPeriod)
	defer func() {
		ticker.Stop()
		_ = ws.Close()
	}()
	for {
		select {
		case <-ctx.Done():
			_ = ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(projectionWriteWait))
			return
		case snap, ok := <-snaps:
			if !ok {
				return
			}
			_ = ws.SetWriteDeadline(time.Now().Add(projectionWriteWait))
			if err := ws.WriteJSON(snap); err != nil {
				log.Debug().Str("module", "adapters.http").Err(err).Msg("projection write")
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(projectionWriteWait)); err != nil {
				return
			}
		}
	}
}

func readDiscard(ws *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}
