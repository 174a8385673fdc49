package notifications

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	authorID = "64b7f0c2a1d3e4f5a6b7c8d9"
	readerID = "64b7f0c2a1d3e4f5a6b7c8da"
)

func newRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestNotifier_NilRedisIsNoop(t *testing.T) {
	n := NewNotifier(nil)
	assert.NoError(t, n.PublishUser(context.Background(), authorID, "test payload"))
	assert.NoError(t, n.Broadcast(context.Background(), Event{Type: EventPostPublished}))
	assert.NoError(t, n.StartPatternSubscriber(context.Background(), func(string, string) {}))

	var nilNotifier *Notifier
	assert.NoError(t, nilNotifier.NotifyUser(context.Background(), authorID, Event{Type: EventCommentAdded, ActorID: readerID}))
}

func TestUserChannel(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "notifications:user:"+authorID, UserChannel(authorID))
}

func TestNotifier_NotifyUser_Delivers(t *testing.T) {
	rdb := newRedis(t)
	n := NewNotifier(rdb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type delivery struct{ channel, payload string }
	got := make(chan delivery, 64)
	require.NoError(t, n.StartPatternSubscriber(ctx, func(channel, payload string) {
		got <- delivery{channel, payload}
	}))

	ev := Event{Type: EventCommentAdded, PostID: "p1", CommentID: "c1", ActorID: readerID, ActorName: "Reader"}
	// Retry until the subscription is registered.
	require.Eventually(t, func() bool {
		assert.NoError(t, n.NotifyUser(context.Background(), authorID, ev))
		select {
		case d := <-got:
			assert.Equal(t, UserChannel(authorID), d.channel)
			var decoded Event
			assert.NoError(t, json.Unmarshal([]byte(d.payload), &decoded))
			assert.Equal(t, EventCommentAdded, decoded.Type)
			assert.Equal(t, "c1", decoded.CommentID)
			assert.False(t, decoded.CreatedAt.IsZero())
			return true
		case <-time.After(20 * time.Millisecond):
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestNotifier_NotifyUser_SkipsSelf(t *testing.T) {
	rdb := newRedis(t)
	n := NewNotifier(rdb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var received int32
	require.NoError(t, n.StartPatternSubscriber(ctx, func(string, string) {
		atomic.AddInt32(&received, 1)
	}))
	time.Sleep(20 * time.Millisecond)

	require.NoError(t, n.NotifyUser(context.Background(), authorID, Event{Type: EventPostLiked, ActorID: authorID}))
	assert.Never(t, func() bool {
		return atomic.LoadInt32(&received) > 0
	}, 100*time.Millisecond, 10*time.Millisecond)
}

func TestNotifier_StartPatternSubscriber_StopsOnCancel(t *testing.T) {
	rdb := newRedis(t)
	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())

	var received int32
	payloads := make(chan string, 64)
	require.NoError(t, n.StartPatternSubscriber(ctx, func(_ string, payload string) {
		atomic.AddInt32(&received, 1)
		payloads <- payload
	}))

	assert.Eventually(t, func() bool {
		_ = n.PublishBroadcast(context.Background(), "before-cancel")
		return atomic.LoadInt32(&received) >= 1
	}, time.Second, 20*time.Millisecond)

	cancel()
	time.Sleep(20 * time.Millisecond)

	// Drain the pre-cancel messages to avoid false positives.
	for len(payloads) > 0 {
		<-payloads
	}

	require.NoError(t, n.PublishBroadcast(context.Background(), "after-cancel"))
	assert.Never(t, func() bool {
		select {
		case payload := <-payloads:
			return payload == "after-cancel"
		default:
			return false
		}
	}, 200*time.Millisecond, 10*time.Millisecond)
}
