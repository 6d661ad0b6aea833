package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrQueueEmpty is returned by Dequeue when the blocking pop times out with
// nothing to deliver. Callers just loop again.
var ErrQueueEmpty = errors.New("notification queue empty")

// Queue is a Redis-list backed event queue. Notify pushes; the Sender worker
// pops. Keeping the queue in Redis means events survive a process restart
// between the state transition committing and the webhook going out.
type Queue struct {
	client *redis.Client
	key    string
}

// NewQueue wraps an existing Redis client with the list key events live under.
func NewQueue(client *redis.Client, key string) *Queue {
	return &Queue{client: client, key: key}
}

// Notify enqueues an event. Implements the service layer's Notifier.
func (q *Queue) Notify(ctx context.Context, ev Event) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("notify.Queue.Notify: marshal: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, b).Err(); err != nil {
		return fmt.Errorf("notify.Queue.Notify: %w", err)
	}
	return nil
}

// Dequeue blocks up to timeout for the next event. Returns ErrQueueEmpty on
// timeout so the caller can distinguish "nothing to do" from a broken client.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (Event, error) {
	var ev Event

	res, err := q.client.BRPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ev, ErrQueueEmpty
		}
		return ev, fmt.Errorf("notify.Queue.Dequeue: %w", err)
	}
	if len(res) < 2 {
		return ev, ErrQueueEmpty
	}
	if err := json.Unmarshal([]byte(res[1]), &ev); err != nil {
		return ev, fmt.Errorf("notify.Queue.Dequeue: unmarshal: %w", err)
	}
	return ev, nil
}
