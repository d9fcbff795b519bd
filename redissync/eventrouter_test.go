package redissync

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/icinga/icinga-redis-sync/configobject"
	"github.com/icinga/icinga-redis-sync/identifier"
)

func TestSendConfigUpdate_WritesConfigChecksumAndPublishes(t *testing.T) {
	conn := newFakeConnection()
	r := EventRouter{
		Conn:       conn,
		Serializer: Serializer{EnvID: "env1"},
		Keyset:     DefaultKeyset,
	}

	h := &configobject.Host{ObjectBase: configobject.ObjectBase{ObjName: "example.com", IsActive: true}}
	r.SendConfigUpdate(context.Background(), h)

	require.Len(t, conn.batches, 1)

	var sawConfig, sawChecksum, sawPublish bool
	for _, q := range conn.batches[0] {
		switch q[0] {
		case "HSET", "HMSET":
			if q[1] == DefaultKeyset.ConfigHash("host") {
				sawConfig = true
			} else if q[1] == DefaultKeyset.ChecksumHash("host") {
				sawChecksum = true
			}
		case "PUBLISH":
			sawPublish = true
		}
	}

	require.True(t, sawConfig)
	require.True(t, sawChecksum)
	require.True(t, sawPublish)
}

func TestSendConfigUpdate_NoopWhenDisconnected(t *testing.T) {
	conn := newFakeConnection()
	conn.connected = false

	r := EventRouter{Conn: conn, Serializer: Serializer{EnvID: "env1"}, Keyset: DefaultKeyset}
	h := &configobject.Host{ObjectBase: configobject.ObjectBase{ObjName: "example.com"}}

	r.SendConfigUpdate(context.Background(), h)
	require.Empty(t, conn.batches)
}

func TestSendConfigDelete_RemovesConfigAndStateThenPublishes(t *testing.T) {
	conn := newFakeConnection()
	r := EventRouter{Conn: conn, Keyset: DefaultKeyset}

	h := &configobject.Host{ObjectBase: configobject.ObjectBase{ObjName: "example.com"}}
	r.SendConfigDelete(context.Background(), h)

	id := identifier.ObjectIdentifier("example.com")
	qs := conn.allQueries()
	require.Contains(t, qs, []interface{}{"HDEL", DefaultKeyset.ConfigHash("host"), id})
	require.Contains(t, qs, []interface{}{"HDEL", DefaultKeyset.StateHash("host"), id})
	require.Contains(t, qs, []interface{}{"PUBLISH", ConfigDeleteChannel, "host:" + id})
}

func TestSendStatusUpdate_AppendsToTypedStream(t *testing.T) {
	conn := newFakeConnection()
	r := EventRouter{Conn: conn, Serializer: Serializer{EnvID: "env1"}, Keyset: DefaultKeyset}

	h := &configobject.Host{ObjectBase: configobject.ObjectBase{ObjName: "example.com"}}
	r.SendStatusUpdate(context.Background(), h)

	qs := conn.allQueries()
	require.Len(t, qs, 1)
	require.Equal(t, "XADD", qs[0][0])
	require.Equal(t, HostStateStream, qs[0][1])
}

func TestSendStatusUpdate_ServiceUsesServiceStream(t *testing.T) {
	conn := newFakeConnection()
	r := EventRouter{Conn: conn, Serializer: Serializer{EnvID: "env1"}, Keyset: DefaultKeyset}

	svc := &configobject.Service{ObjectBase: configobject.ObjectBase{ObjName: "example.com!ping"}, HostName: "example.com", ShortName: "ping"}
	r.SendStatusUpdate(context.Background(), svc)

	qs := conn.allQueries()
	require.Equal(t, ServiceStateStream, qs[0][1])
}

func TestOnActiveOrVersionChanged_InactiveWithoutExtensionIsIgnored(t *testing.T) {
	conn := newFakeConnection()
	r := EventRouter{Conn: conn, Serializer: Serializer{EnvID: "env1"}, Keyset: DefaultKeyset}

	h := &configobject.Host{ObjectBase: configobject.ObjectBase{ObjName: "example.com", IsActive: false}}
	r.onActiveOrVersionChanged(context.Background(), h)

	require.Empty(t, conn.queries)
}

func TestOnActiveOrVersionChanged_InactiveWithExtensionDeletes(t *testing.T) {
	conn := newFakeConnection()
	r := EventRouter{Conn: conn, Serializer: Serializer{EnvID: "env1"}, Keyset: DefaultKeyset}

	h := &configobject.Host{ObjectBase: configobject.ObjectBase{
		ObjName:      "example.com",
		IsActive:     false,
		ExtensionSet: map[string]struct{}{configobject.ConfigObjectDeleted: {}},
	}}
	r.onActiveOrVersionChanged(context.Background(), h)

	require.NotEmpty(t, conn.queries)
}

func TestObjectID_MatchesIdentifierPackage(t *testing.T) {
	h := &configobject.Host{ObjectBase: configobject.ObjectBase{ObjName: "example.com"}}
	require.Equal(t, identifier.ObjectIdentifier("example.com"), ObjectID(h))
}
