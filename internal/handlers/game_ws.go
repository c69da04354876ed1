// internal/handlers/game_ws.go
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/jason-s-yu/tambola/internal/auth"
	"github.com/jason-s-yu/tambola/internal/cache"
	"github.com/jason-s-yu/tambola/internal/middleware"
	"github.com/sirupsen/logrus"
)

// FeedSubprotocol is the websocket subprotocol clients of the game feed must speak.
const FeedSubprotocol = "games"

const feedWriteTimeout = 5 * time.Second

// EventSource streams game events until ctx is done.
type EventSource interface {
	Subscribe(ctx context.Context) (<-chan cache.GameCreatedEvent, error)
}

// GameFeedHandler upgrades to a websocket and forwards every game_created event.
// The first frame is {"type":"ready"} once the subscription is live.
func GameFeedHandler(logger *logrus.Logger, events EventSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if events == nil {
			writeError(w, http.StatusServiceUnavailable, "live feed unavailable")
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{FeedSubprotocol},
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != FeedSubprotocol {
			c.Close(BadSubprotocolError, "client must speak the games subprotocol")
			return
		}

		id, _ := auth.IdentityFrom(r.Context())
		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path)

		// The feed is write-only; CloseRead cancels ctx once the client goes away.
		ctx := c.CloseRead(r.Context())
		stream, err := events.Subscribe(ctx)
		if err != nil {
			logger.WithFields(logrus.Fields{"user_id": id.UserID, "error": err}).Warn("game feed subscribe failed")
			c.Close(FeedUnavailableError, "feed unavailable")
			return
		}

		err = writeFrame(ctx, c, map[string]string{"type": "ready"})
		for err == nil {
			select {
			case <-ctx.Done():
				err = ctx.Err()
			case ev, ok := <-stream:
				if !ok {
					c.Close(websocket.StatusGoingAway, "feed closed")
					middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, nil)
					return
				}
				err = writeFrame(ctx, c, ev)
			}
		}

		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, err)
		c.Close(websocket.StatusNormalClosure, "")
	}
}

func writeFrame(ctx context.Context, c *websocket.Conn, v any) error {
	ctx, cancel := context.WithTimeout(ctx, feedWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, c, v)
}
