package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Query is a single Redis command vector, e.g. []interface{}{"HSET", "key", "field", "value"}.
type Query []interface{}

// FireAndForgetQuery asynchronously enqueues a single command vector. The caller never blocks
// beyond the Client's own internal connection pool; go-redis's pipelining and automatic
// reconnect give at-most-once delivery per call, matching the Connection contract.
func (c *Client) FireAndForgetQuery(ctx context.Context, q Query) {
	go func() {
		cmd := c.Client.Do(ctx, q...)
		if err := cmd.Err(); err != nil && !IsNilOrCanceled(err) {
			c.logger.Warnw("Fire-and-forget query failed", "query", q, "error", err)
		}
	}()
}

// FireAndForgetQueries atomically enqueues a sequence of command vectors framed in a single
// MULTI ... EXEC transaction, so that no other enqueued work from this Client interleaves
// between them.
func (c *Client) FireAndForgetQueries(ctx context.Context, qs []Query) {
	go func() {
		_, err := c.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, q := range qs {
				pipe.Do(ctx, q...)
			}

			return nil
		})

		if err != nil && !IsNilOrCanceled(err) {
			c.logger.Warnw("Fire-and-forget transaction failed", "queries", qs, "error", err)
		}
	}()
}

// IsConnected reports whether the underlying connection pool currently has at least one
// established connection, probed with a cheap PING.
func (c *Client) IsConnected(ctx context.Context) bool {
	return c.Client.Ping(ctx).Err() == nil
}

// IsNilOrCanceled reports whether err is the expected "empty reply"/context-canceled noise that
// fire-and-forget callers should not bother logging.
func IsNilOrCanceled(err error) bool {
	return err == nil || err == context.Canceled || err == redis.Nil
}
