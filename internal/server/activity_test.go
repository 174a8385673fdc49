package server

import (
	"testing"

	"inkwell/internal/notifications"
	"inkwell/internal/observability"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecipient(t *testing.T) {
	assert.Equal(t, "abc123", recipient(notifications.UserChannel("abc123")))
	assert.Equal(t, "broadcast", recipient(notifications.BroadcastChannel))
}

func TestLogActivity_CountsKnownEvents(t *testing.T) {
	ts := newTestServer(t)
	counter := observability.ActivityEvents.WithLabelValues(notifications.EventPostLiked)
	before := testutil.ToFloat64(counter)

	ts.logActivity(notifications.UserChannel("author-1"), `{"type":"post_liked","postId":"p1","actorId":"u1"}`)
	ts.logActivity(notifications.UserChannel("author-1"), `{"type":"something_else"}`)
	ts.logActivity(notifications.UserChannel("author-1"), `not json`)

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}
