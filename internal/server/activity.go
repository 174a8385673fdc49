package server

import (
	"encoding/json"
	"strings"

	"inkwell/internal/middleware"
	"inkwell/internal/notifications"
	"inkwell/internal/observability"
)

// logActivity records events published on the notification channels. Readers
// consume the same channels; the server only counts and logs them.
func (s *Server) logActivity(channel, payload string) {
	var ev notifications.Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		middleware.Logger.Warn("malformed activity event", "channel", channel, "error", err.Error())
		return
	}

	switch ev.Type {
	case notifications.EventPostPublished, notifications.EventCommentAdded, notifications.EventPostLiked:
	default:
		middleware.Logger.Warn("unknown activity event", "channel", channel, "type", ev.Type)
		return
	}

	observability.ActivityEvents.WithLabelValues(ev.Type).Inc()
	middleware.Logger.Info("activity event",
		"type", ev.Type,
		"recipient", recipient(channel),
		"post_id", ev.PostID,
		"actor_id", ev.ActorID,
	)
}

// recipient is the user a channel addresses, or "broadcast".
func recipient(channel string) string {
	if id := strings.TrimPrefix(channel, notifications.UserChannel("")); id != channel {
		return id
	}
	return "broadcast"
}
