// Package notifications publishes activity events over Redis pub/sub.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"runtime/debug"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event types.
const (
	EventPostPublished = "post_published"
	EventCommentAdded  = "comment_added"
	EventPostLiked     = "post_liked"
)

// BroadcastChannel receives events addressed to every reader.
const BroadcastChannel = "notifications:broadcast"

// Event is the payload published for reader-facing activity.
type Event struct {
	Type      string    `json:"type"`
	PostID    string    `json:"postId"`
	PostTitle string    `json:"postTitle,omitempty"`
	CommentID string    `json:"commentId,omitempty"`
	ActorID   string    `json:"actorId"`
	ActorName string    `json:"actorName"`
	CreatedAt time.Time `json:"createdAt"`
}

// Notifier provides helpers to publish notifications into Redis channels
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishUser sends a notification payload to a user's channel.
func (n *Notifier) PublishUser(ctx context.Context, userID string, payload string) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, UserChannel(userID), payload).Err()
}

// PublishBroadcast sends a notification payload to all subscribers.
func (n *Notifier) PublishBroadcast(ctx context.Context, payload string) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	return n.rdb.Publish(ctx, BroadcastChannel, payload).Err()
}

// NotifyUser publishes ev to userID. Actors are not notified of their own activity.
func (n *Notifier) NotifyUser(ctx context.Context, userID string, ev Event) error {
	if userID == "" || userID == ev.ActorID {
		return nil
	}
	payload, err := encode(ev)
	if err != nil {
		return err
	}
	return n.PublishUser(ctx, userID, payload)
}

// Broadcast publishes ev to every subscriber.
func (n *Notifier) Broadcast(ctx context.Context, ev Event) error {
	payload, err := encode(ev)
	if err != nil {
		return err
	}
	return n.PublishBroadcast(ctx, payload)
}

func encode(ev Event) (string, error) {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now().UTC()
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}
	return string(b), nil
}

// StartPatternSubscriber subscribes to pattern `notifications:user:*` and the
// broadcast channel, and calls onMessage for each incoming message until ctx
// is cancelled.
func (n *Notifier) StartPatternSubscriber(
	ctx context.Context, onMessage func(channel string, payload string),
) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, "notifications:user:*", BroadcastChannel)
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Printf("PANIC in PatternSubscriber: %v\n%s", r, debug.Stack())
						}
					}()
					onMessage(msg.Channel, msg.Payload)
				}()
			}
		}
	}()

	return nil
}

// UserChannel derives the Redis channel name for a user.
func UserChannel(userID string) string {
	return "notifications:user:" + userID
}
