package queue

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisFastQueue carries HIGH priority envelopes: a Redis list holds them
// durably until popped, and a pub/sub channel nudges idle consumers awake.
// The list is the source of truth — a published message that nobody was
// subscribed for is still recoverable by the poller.
type RedisFastQueue struct {
	rdb     *redis.Client
	listKey string
	channel string
}

func NewRedisFastQueue(rdb *redis.Client, listKey, channel string) *RedisFastQueue {
	return &RedisFastQueue{rdb: rdb, listKey: listKey, channel: channel}
}

// Push appends the envelope to the list, then publishes the same bytes as a
// wake-up. Publish failure after a successful push is tolerated: the poller
// will pick the entry up.
func (q *RedisFastQueue) Push(ctx context.Context, payload []byte) error {
	if err := q.rdb.LPush(ctx, q.listKey, payload).Err(); err != nil {
		return err
	}
	return q.rdb.Publish(ctx, q.channel, payload).Err()
}

// Pop removes and returns the oldest entry, or (nil, nil) when the list is
// empty. RPOP is atomic, so at most one consumer receives any given entry.
func (q *RedisFastQueue) Pop(ctx context.Context) ([]byte, error) {
	val, err := q.rdb.RPop(ctx, q.listKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	return val, nil
}

// Subscribe returns a channel of raw envelope payloads published on the
// wake-up channel, and a close func. Pub/sub delivery is best-effort and
// not exactly-once; only the Pop path is.
func (q *RedisFastQueue) Subscribe(ctx context.Context) (<-chan []byte, func() error) {
	sub := q.rdb.Subscribe(ctx, q.channel)
	out := make(chan []byte)

	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			select {
			case out <- []byte(msg.Payload):
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, sub.Close
}

// Depth reports the current list length.
func (q *RedisFastQueue) Depth(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, q.listKey).Result()
}
