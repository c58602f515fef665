package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const streamWriteTimeout = 5 * time.Second

// handleStatusStream pushes the status snapshot over a websocket every
// stream interval until the client goes away or the server shuts down.
func (s *Server) handleStatusStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: s.devMode,
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to accept status stream")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream ended")

	// Inbound messages are ignored; the returned context ends when the
	// client closes.
	ctx := conn.CloseRead(r.Context())

	s.log.Debug().Msg("Status stream client connected")

	ticker := time.NewTicker(s.streamInterval)
	defer ticker.Stop()

	for {
		if err := s.pushStatus(ctx, conn); err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				s.log.Debug().Err(err).Msg("Status stream write failed")
			}
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-s.done:
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) pushStatus(ctx context.Context, conn *websocket.Conn) error {
	writeCtx, cancel := context.WithTimeout(ctx, streamWriteTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, conn, s.snapshot(writeCtx))
}
