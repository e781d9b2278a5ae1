package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"time"

	"github.com/coder/websocket"
)

const (
	eventsBuffer      = 64
	eventWriteTimeout = 5 * time.Second
)

// handleEvents upgrades to a websocket and streams hub events as JSON text
// messages until the client goes away or the server stops.
func (g *Gateway) handleEvents() http.HandlerFunc {
	opts := &websocket.AcceptOptions{}
	if slices.Contains(g.config.CORSOrigins, "*") {
		opts.InsecureSkipVerify = true
	} else {
		opts.OriginPatterns = g.config.CORSOrigins
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, opts)
		if err != nil {
			g.logger.Warn("gateway: websocket accept failed", "error", err)
			return
		}
		defer func() {
			_ = conn.Close(websocket.StatusInternalError, "unexpected close")
		}()

		ch, unsubscribe := g.deps.Service.Events().Subscribe(eventsBuffer)
		defer unsubscribe()

		// Clients only listen; CloseRead handles control frames and cancels
		// ctx when the peer disconnects.
		ctx := conn.CloseRead(r.Context())
		g.logger.Debug("gateway: event stream opened", "remote_addr", r.RemoteAddr)

		for {
			select {
			case <-ctx.Done():
				_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			case ev, ok := <-ch:
				if !ok {
					return
				}
				data, err := json.Marshal(ev)
				if err != nil {
					g.logger.Error("gateway: encode event", "error", err)
					continue
				}
				if err := writeEvent(ctx, conn, data); err != nil {
					g.logger.Debug("gateway: event stream closed", "error", err)
					return
				}
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, eventWriteTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
