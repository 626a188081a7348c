package server

import (
	"io"
	"time"

	"github.com/Paladins-Inn/delphi-council/internal/notify"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type eventPayload struct {
	Key       string    `json:"key"`
	Text      string    `json:"text"`
	Level     string    `json:"level"`
	Timestamp time.Time `json:"timestamp"`
}

// streamEvents pushes the notifications of the logged-in person as server
// sent events until the client goes away.
func (h *httpHandler) streamEvents(c *gin.Context) {
	principal := principalFrom(c)
	locale := localeFrom(c).String()
	ctx := c.Request.Context()
	stream, cleanup := h.notifier.Subscribe(ctx, principal.PersonID)
	defer cleanup()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	h.logger.Debug("event stream opened", zap.String("person_id", principal.PersonID))
	c.SSEvent(notify.EventHeartbeat, gin.H{"timestamp": h.clock().UTC()})
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case notification, ok := <-stream:
			if !ok {
				return false
			}
			c.SSEvent(notify.EventNotification, eventPayload{
				Key:       notification.Key,
				Text:      h.renderNotification(locale, notification),
				Level:     string(notification.Level),
				Timestamp: notification.Timestamp,
			})
			return true
		case tick := <-ticker.C:
			c.SSEvent(notify.EventHeartbeat, gin.H{"timestamp": tick.UTC()})
			return true
		}
	})
	h.logger.Debug("event stream closed", zap.String("person_id", principal.PersonID))
}
