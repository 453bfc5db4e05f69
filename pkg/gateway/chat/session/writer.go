package session

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
)

type wsWriter interface {
	SetWriteDeadline(t time.Time) error
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// outboundWriter owns all writes to the socket. Frames arrive in order on
// one channel and are written in that order; a ping keeps the connection
// alive between frames.
type outboundWriter struct {
	ws           wsWriter
	ctx          context.Context
	frames       <-chan []byte
	pingInterval time.Duration
	writeTimeout time.Duration
	closeCode    func() int
}

func (w *outboundWriter) Run() error {
	if w == nil || w.ws == nil {
		return nil
	}

	pingInterval := w.pingInterval
	if pingInterval <= 0 {
		pingInterval = 20 * time.Second
	}
	writeTimeout := w.writeTimeout
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}

	pingTicker := time.NewTicker(pingInterval)
	defer pingTicker.Stop()

	for {
		select {
		case <-w.ctx.Done():
			w.writeClose(writeTimeout)
			return nil
		case <-pingTicker.C:
			deadline := time.Now().Add(writeTimeout)
			if err := w.ws.WriteControl(websocket.PingMessage, []byte("ping"), deadline); err != nil {
				return err
			}
		case frame, ok := <-w.frames:
			if !ok {
				w.writeClose(writeTimeout)
				return nil
			}
			if err := w.ws.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return err
			}
			if err := w.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				return err
			}
		}
	}
}

// writeClose drains any frames already queued, then sends the close frame
// and shuts the socket.
func (w *outboundWriter) writeClose(writeTimeout time.Duration) {
	deadline := time.Now().Add(writeTimeout)
	for done := false; !done; {
		select {
		case frame, ok := <-w.frames:
			if !ok {
				done = true
				break
			}
			if time.Now().After(deadline) {
				done = true
				break
			}
			_ = w.ws.SetWriteDeadline(deadline)
			if err := w.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				done = true
			}
		default:
			done = true
		}
	}

	code := websocket.CloseNormalClosure
	if w.closeCode != nil {
		if c := w.closeCode(); c != 0 {
			code = c
		}
	}
	_ = w.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""), time.Now().Add(writeTimeout))
	_ = w.ws.Close()
}
