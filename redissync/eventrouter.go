package redissync

import (
	"context"
	"fmt"
	"time"

	"github.com/icinga/icinga-redis-sync/configobject"
	"github.com/icinga/icinga-redis-sync/identifier"
	"github.com/icinga/icinga-redis-sync/logging"
)

// EventRouter subscribes to a configobject.System's lifecycle events and dispatches single-object
// updates/deletes/status refreshes through a Connection.
type EventRouter struct {
	System     configobject.System
	Conn       Connection
	Serializer Serializer
	Keyset     Keyset
	Logger     *logging.Logger
}

// Start registers every lifecycle handler below on r.System, for the lifetime of ctx.
func (r EventRouter) Start(ctx context.Context) {
	r.System.Subscribe(ctx, configobject.Handlers{
		OnStateChange: func(c configobject.Checkable) {
			r.SendStatusUpdate(ctx, c)
		},
		OnAcknowledgementCleared: func(c configobject.Checkable) {
			r.SendStatusUpdate(ctx, c)
		},
		OnActiveChanged: func(o configobject.Object) {
			r.onActiveOrVersionChanged(ctx, o)
		},
		OnVersionChanged: func(o configobject.Object) {
			r.onActiveOrVersionChanged(ctx, o)
		},
		OnDowntimeStarted: func(d *configobject.Downtime, anchor configobject.Checkable) {
			r.SendStatusUpdate(ctx, anchor)
		},
		OnDowntimeTriggered: func(d *configobject.Downtime, anchor configobject.Checkable) {
			r.SendStatusUpdate(ctx, anchor)
		},
		OnDowntimeRemoved: func(d *configobject.Downtime, anchor configobject.Checkable) {
			r.SendStatusUpdate(ctx, anchor)
		},
	})
}

func (r EventRouter) onActiveOrVersionChanged(ctx context.Context, o configobject.Object) {
	if o.Active() {
		r.SendConfigUpdate(ctx, o)
		return
	}

	if configobject.HasExtension(o, configobject.ConfigObjectDeleted) {
		r.SendConfigDelete(ctx, o)
	}
}

// SendConfigUpdate flattens o's attributes and dependencies into a single atomic batch and
// enqueues it. It is a no-op if the connection is not currently usable.
func (r EventRouter) SendConfigUpdate(ctx context.Context, o configobject.Object) {
	if r.Conn == nil || !r.Conn.IsConnected(ctx) {
		return
	}

	typeName := configobject.DBTypeName(o)

	b := NewBatch()

	attrs, err := r.Serializer.PrepareObject(o)
	if err != nil {
		if r.Logger != nil {
			r.Logger.Errorw("can't serialize object for config update", "type", typeName, "name", o.Name(), "error", err)
		}

		return
	}

	row, err := MarshalAttrs(attrs)
	if err != nil {
		if r.Logger != nil {
			r.Logger.Errorw("can't marshal object attributes", "type", typeName, "name", o.Name(), "error", err)
		}

		return
	}

	objectID, _ := attrs["name_checksum"].(string)
	b.HSet(r.Keyset.ConfigHash(typeName), objectID, row)
	b.HSet(r.Keyset.ChecksumHash(typeName), objectID, ChecksumFor(attrs))
	b.Publish(ConfigUpdateChannel, typeName+":"+objectID)

	r.Serializer.InsertObjectDependencies(o, typeName, b, true)

	if c, ok := o.(configobject.Checkable); ok {
		state := r.Serializer.SerializeState(o.Name(), typeName, c, time.Now())
		stateJSON, err := MarshalAttrs(state)
		if err == nil {
			b.AddState(state["id"].(string), stateJSON)
		}
	}

	enqueue(ctx, r.Conn, b, r.Keyset.StateHash(typeName))
}

// SendConfigDelete removes o's config/state rows and publishes a delete notice.
func (r EventRouter) SendConfigDelete(ctx context.Context, o configobject.Object) {
	if r.Conn == nil || !r.Conn.IsConnected(ctx) {
		return
	}

	typeName := configobject.DBTypeName(o)
	objectID := ObjectID(o)

	r.Conn.FireAndForgetQueries(ctx, [][]interface{}{
		{"HDEL", r.Keyset.ConfigHash(typeName), objectID},
		{"HDEL", r.Keyset.StateHash(typeName), objectID},
		{"PUBLISH", ConfigDeleteChannel, typeName + ":" + objectID},
	})
}

// SendStatusUpdate appends c's current state to its state stream, sanitizing field
// values for XADD.
func (r EventRouter) SendStatusUpdate(ctx context.Context, c configobject.Checkable) {
	if r.Conn == nil || !r.Conn.IsConnected(ctx) {
		return
	}

	typeName := configobject.DBTypeName(c)
	state := r.Serializer.SerializeState(c.Name(), typeName, c, time.Now())

	fields := make(map[string]string, len(state))
	for k, v := range state {
		fields[k] = stringifyField(v)
	}

	sanitized := SanitizeStreamFields(fields)

	q := []interface{}{"XADD", StateStream(typeName), "*"}
	for _, k := range sortedKeys(toAnyMap(sanitized)) {
		q = append(q, k, sanitized[k])
	}

	r.Conn.FireAndForgetQuery(ctx, q)
}

// ObjectID returns the content-addressed identifier of o's canonical name.
func ObjectID(o configobject.Object) string {
	return identifier.ObjectIdentifier(o.Name())
}

func toAnyMap(m map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}

	return out
}

// stringifyField renders a state attribute value as a stream field string, the way XADD expects.
func stringifyField(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprintf("%v", val)
	}
}
