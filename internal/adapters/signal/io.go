package signal

import (
	"fmt"
	"time"

	"github.com/dkeye/Classroom/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (c *WsSignalConn) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		deadline := time.Now().Add(c.cfg.WriteWait)
		_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = c.conn.Close()
	}()
	for {
		select {
		case <-c.done:
			c.flush()
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.write(data); err != nil {
				c.fail(err)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.cfg.WriteWait)); err != nil {
				c.fail(fmt.Errorf("ping: %w", err))
				return
			}
		}
	}
}

// flush writes what was queued before Close, so a final leave still goes out.
func (c *WsSignalConn) flush() {
	for data := range c.send {
		if err := c.write(data); err != nil {
			return
		}
	}
}

func (c *WsSignalConn) write(data core.Frame) error {
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

func (c *WsSignalConn) readPump(pongWait time.Duration) {
	defer close(c.frames)
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			select {
			case <-c.done:
				log.Info().Str("module", "signal").Msg("readPump closing")
			default:
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Info().Str("module", "signal").Msg("closed by server")
					c.closeWith(ErrClosedByServer)
					return
				}
				c.fail(fmt.Errorf("read: %w", err))
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		select {
		case c.frames <- core.Frame(data):
		case <-c.done:
			return
		}
	}
}

func (c *WsSignalConn) fail(err error) {
	log.Error().Err(err).Str("module", "signal").Msg("signaling connection failed")
	c.closeWith(err)
}
