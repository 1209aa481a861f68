package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/a-bouts/race-engine/api/model"
)

const writeWait = 10 * time.Second

// stream pushes every snapshot to the client as JSON. The client may send
// {"action":"tack"} or {"action":"heading","heading":h}.
func (s *server) stream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("Failed to upgrade connection")
		return
	}
	defer conn.Close()

	logger := requestLogger(r, "stream")
	logger.Info("Client connected")

	snaps, unsubscribe := s.Race.Subscribe()
	defer unsubscribe()

	commands := make(chan model.Command)
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			var c model.Command
			if err := conn.ReadJSON(&c); err != nil {
				if _, ok := err.(*websocket.CloseError); !ok {
					logger.WithError(err).Debug("Client read failed")
				}
				return
			}
			select {
			case commands <- c:
			case <-r.Context().Done():
				return
			}
		}
	}()

	for {
		select {
		case snap, ok := <-snaps:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "race over"))
				return
			}
			if err := conn.WriteJSON(snap); err != nil {
				logger.WithError(err).Info("Client disconnected")
				return
			}

		case c := <-commands:
			s.command(r.Context(), c)

		case <-closed:
			logger.Info("Client disconnected")
			return
		}
	}
}

func (s *server) command(ctx context.Context, c model.Command) {
	var err error
	switch c.Action {
	case "tack":
		_, _, err = s.Race.Tack(ctx)
	case "heading":
		err = s.Race.SetHeading(ctx, c.Heading)
	default:
		log.Warnf("Unknown stream action '%s'", c.Action)
		return
	}
	if err != nil {
		log.WithError(err).Warnf("Stream action '%s' failed", c.Action)
	}
}
