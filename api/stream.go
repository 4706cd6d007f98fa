package api

import (
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const streamHeartbeat = 15 * time.Second

// streamBoard pushes the user's committed board snapshots over SSE as
// they land on the updates channel. EventSource cannot set headers, so a
// token query parameter is accepted as an Authorization fallback.
func streamBoard(sessions Sessions, rc *redis.Client, channel string, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		header := c.Request().Header.Get(echo.HeaderAuthorization)
		if header == "" {
			if token := c.QueryParam("token"); token != "" {
				header = "Bearer " + token
			}
		}
		userID, err := auth.UserIDFromAuthHeader(header)
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
		c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
		c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
		c.Response().Header().Set("X-Accel-Buffering", "no")
		flusher, ok := c.Response().Writer.(http.Flusher)
		if !ok {
			return c.String(http.StatusInternalServerError, "stream unsupported")
		}
		c.Response().WriteHeader(http.StatusOK)

		// Current snapshot first so a reconnecting client never renders stale.
		state := sessions.Session(userID).Board()
		initial, err := sonic.ConfigStd.Marshal(updateEnvelope{UserID: userID, Board: state, Counts: state.Counts()})
		if err == nil {
			if _, err := c.Response().Write([]byte("data: " + string(initial) + "\n\n")); err != nil {
				return nil
			}
		}
		flusher.Flush()

		ctx := c.Request().Context()
		sub := rc.Subscribe(ctx, channel)
		defer sub.Close()
		ch := sub.Channel()

		heartbeat := time.NewTicker(streamHeartbeat)
		defer heartbeat.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case msg, ok := <-ch:
				if !ok {
					return nil
				}
				var ev updateEnvelope
				if err := sonic.ConfigStd.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					logger.Errorf("unable to parse board update: %v", err)
					continue
				}
				if ev.UserID != userID {
					continue
				}
				if _, err := c.Response().Write([]byte("data: " + msg.Payload + "\n\n")); err != nil {
					return nil
				}
				flusher.Flush()
			case <-heartbeat.C:
				if _, err := c.Response().Write([]byte(": keep-alive\n\n")); err != nil {
					return nil
				}
				flusher.Flush()
			}
		}
	}
}
