package pipeline

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"
)

// SendQueue nudges the send worker through Redis. All failures degrade
// to the cron pickup path, so errors are logged and swallowed.
type SendQueue struct {
	client *redis.Client
	key    string
}

// NewSendQueue wraps a Redis client. client may be nil.
func NewSendQueue(client *redis.Client, key string) *SendQueue {
	if key == "" {
		key = "newsletter:send"
	}
	return &SendQueue{client: client, key: key}
}

// Nudge enqueues an issue ID for immediate send pickup.
func (q *SendQueue) Nudge(ctx context.Context, issueID string) {
	if q == nil || q.client == nil {
		return
	}
	if err := q.client.LPush(ctx, q.key, issueID).Err(); err != nil {
		log.Printf("[SendQueue] enqueue %s failed, cron will pick it up: %v", issueID, err)
	}
}

// maxNudgeDrain bounds one drain pass so a flooded queue cannot spin
// the send loop.
const maxNudgeDrain = 25

// Drain empties the queue and returns how many nudges were waiting.
// Other processes (the admin server, a second worker) push here when
// they promote an issue to next-send.
func (q *SendQueue) Drain(ctx context.Context) int {
	n := 0
	for n < maxNudgeDrain && q.Pop(ctx) != "" {
		n++
	}
	return n
}

// Pop returns the next queued issue ID, or "" when the queue is empty
// or unavailable.
func (q *SendQueue) Pop(ctx context.Context) string {
	if q == nil || q.client == nil {
		return ""
	}
	val, err := q.client.RPop(ctx, q.key).Result()
	if err != nil {
		if err != redis.Nil {
			log.Printf("[SendQueue] pop failed: %v", err)
		}
		return ""
	}
	return val
}
