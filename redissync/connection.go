package redissync

import (
	"context"

	icingaredis "github.com/icinga/icinga-redis-sync/redis"
)

// Connection is the polymorphic collaborator: a thin, fire-and-forget
// command sink shared across every writer goroutine. A redis.Client satisfies it through the
// ClientConnection adapter below; tests
// may supply a fake backed by miniredis or an in-memory recorder.
type Connection interface {
	// FireAndForgetQuery asynchronously enqueues a single command vector.
	FireAndForgetQuery(ctx context.Context, q []interface{})
	// FireAndForgetQueries atomically enqueues a batch of command vectors framed as MULTI...EXEC.
	FireAndForgetQueries(ctx context.Context, qs [][]interface{})
	// IsConnected reports whether the connection is currently usable.
	IsConnected(ctx context.Context) bool
	// Eval runs a server-side script, used for the atomic dump-reset.
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error)
}

// enqueue converts a Batch's rendered queries into a single atomic FireAndForgetQueries call, or
// does nothing if the batch is empty. stateHash is the state hash name to use if the batch
// carries any States (empty string if the type has no state hash).
func enqueue(ctx context.Context, conn Connection, b *Batch, stateHash string) {
	qs := b.Queries(stateHash)
	if len(qs) == 0 {
		return
	}

	vecs := make([][]interface{}, len(qs))
	for i, q := range qs {
		vecs[i] = []interface{}(q)
	}

	conn.FireAndForgetQueries(ctx, vecs)
}

// ClientConnection adapts a *redis.Client, extended with FireAndForgetQuery/FireAndForgetQueries/Eval
// (see redis/fireforget.go), to Connection.
type ClientConnection struct {
	*icingaredis.Client
}

func (c ClientConnection) FireAndForgetQuery(ctx context.Context, q []interface{}) {
	c.Client.FireAndForgetQuery(ctx, icingaredis.Query(q))
}

func (c ClientConnection) FireAndForgetQueries(ctx context.Context, qs [][]interface{}) {
	converted := make([]icingaredis.Query, len(qs))
	for i, q := range qs {
		converted[i] = icingaredis.Query(q)
	}

	c.Client.FireAndForgetQueries(ctx, converted)
}

func (c ClientConnection) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	return c.Client.Eval(ctx, script, keys, args...).Result()
}
