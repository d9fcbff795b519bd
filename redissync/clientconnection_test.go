package redissync

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	icingaredis "github.com/icinga/icinga-redis-sync/redis"
	"github.com/icinga/icinga-redis-sync/logging"
)

func newTestClientConnection(t *testing.T) (ClientConnection, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	logger := logging.NewLogger(zaptest.NewLogger(t).Sugar(), time.Hour)
	client := icingaredis.NewClient(rdb, logger, &icingaredis.Options{})

	return ClientConnection{Client: client}, mr
}

func TestClientConnection_FireAndForgetQuery_WritesToRedis(t *testing.T) {
	conn, mr := newTestClientConnection(t)

	conn.FireAndForgetQuery(context.Background(), []interface{}{"HSET", "icinga:host", "id1", "row1"})

	require.Eventually(t, func() bool {
		v, _ := mr.HGet("icinga:host", "id1")
		return v == "row1"
	}, time.Second, 10*time.Millisecond)
}

func TestClientConnection_FireAndForgetQueries_AreAtomic(t *testing.T) {
	conn, mr := newTestClientConnection(t)

	conn.FireAndForgetQueries(context.Background(), [][]interface{}{
		{"HSET", "icinga:host", "id1", "row1"},
		{"PUBLISH", "icinga:config:update", "host:id1"},
	})

	require.Eventually(t, func() bool {
		v, _ := mr.HGet("icinga:host", "id1")
		return v == "row1"
	}, time.Second, 10*time.Millisecond)
}

func TestClientConnection_IsConnected(t *testing.T) {
	conn, mr := newTestClientConnection(t)
	require.True(t, conn.IsConnected(context.Background()))

	mr.Close()
	require.False(t, conn.IsConnected(context.Background()))
}

func TestClientConnection_Eval_RunsScript(t *testing.T) {
	conn, _ := newTestClientConnection(t)

	result, err := conn.Eval(context.Background(), `return 'ok'`, nil)
	require.NoError(t, err)
	require.Equal(t, "ok", result)
}
