package redissync

import (
	"context"
	"time"

	"github.com/icinga/icinga-redis-sync/com"
	"github.com/icinga/icinga-redis-sync/configobject"
	"github.com/icinga/icinga-redis-sync/logging"
)

const (
	dumpChunkSize = 500
	dumpFlushSize = 100
)

// dumpResetScriptSrc mirrors redis.DumpResetScript's Lua source. It is kept local so Dumper can
// run it through the Connection abstraction's plain-string Eval rather than depend on go-redis's
// *redis.Script type, keeping Connection usable with a non-go-redis fake in tests.
const dumpResetScriptSrc = `
local key = KEYS[1]
local wipId = redis.call('XADD', key, '*', 'type', '*', 'state', 'wip')
local entries = redis.call('XRANGE', key, '-', '+')
for _, entry in ipairs(entries) do
	if entry[1] ~= wipId then
		redis.call('XDEL', key, entry[1])
	end
end
return wipId
`

// Dumper orchestrates the initial/full re-dump of a configobject.System into a Connection.
type Dumper struct {
	System      configobject.System
	Conn        Connection
	Serializer  Serializer
	Keyset      Keyset
	Concurrency int
	Logger      *logging.Logger
}

// UpdateAllConfigObjects performs a full dump: atomic stream reset, stale global key deletion,
// then a parallel per-type dump of every live object, finishing with the mandatory "done" marker
// regardless of whether any type failed.
func (d Dumper) UpdateAllConfigObjects(ctx context.Context) error {
	startTime := time.Now()

	if _, err := d.Conn.Eval(ctx, dumpResetScriptSrc, []string{DumpStream}); err != nil {
		return err
	}

	d.Conn.FireAndForgetQuery(ctx, deleteQuery(d.Keyset.GlobalHashes()))

	err := ParallelFor(ctx, d.Concurrency, d.System.Types(), func(ctx context.Context, t configobject.Type) error {
		return d.dumpType(ctx, t)
	})

	d.Conn.FireAndForgetQuery(ctx, []interface{}{"XADD", DumpStream, "*", "type", "*", "state", "done"})

	if d.Logger != nil {
		if err != nil {
			d.Logger.Errorw("full dump finished with errors", "took", time.Since(startTime), "error", err)
		} else {
			d.Logger.Infow("full dump finished", "took", time.Since(startTime))
		}
	}

	return err
}

// dumpType dumps every primary typename derived from t (a single Type may expand into more than
// one typename for Downtime/Comment).
func (d Dumper) dumpType(ctx context.Context, t configobject.Type) error {
	for _, typeName := range primaryTypeNames(t) {
		if err := d.dumpTypeName(ctx, t, typeName); err != nil {
			return err
		}
	}

	return nil
}

func (d Dumper) dumpTypeName(ctx context.Context, t configobject.Type, typeName string) error {
	withState := typeName == "host" || typeName == "service"

	d.Conn.FireAndForgetQuery(ctx, deleteQuery(d.Keyset.ForType(typeName, withState || typeName == "user")))

	objects, err := d.System.ObjectsOfType(ctx, t)
	if err != nil {
		return err
	}

	filtered := make(chan configobject.Object)
	go func() {
		defer close(filtered)

		for o := range objects {
			if configobject.DBTypeName(o) != typeName {
				continue
			}

			select {
			case filtered <- o:
			case <-ctx.Done():
				return
			}
		}
	}()

	chunks := com.Bulk(ctx, filtered, dumpChunkSize, func() com.BulkChunkSplitPolicy[configobject.Object] {
		return com.NeverSplit[configobject.Object]()
	})

	err = ParallelFor(ctx, d.Concurrency, drainChunks(chunks), func(ctx context.Context, chunk []configobject.Object) error {
		return d.dumpChunk(ctx, chunk, typeName, withState)
	})
	if err != nil {
		return err
	}

	d.Conn.FireAndForgetQuery(ctx, []interface{}{"XADD", DumpStream, "*", "type", typeName, "state", "done"})

	return nil
}

// drainChunks materialises a channel of chunks into a slice so it can be handed to ParallelFor,
// which operates over a concrete slice of work items.
func drainChunks[T any](ch <-chan []T) [][]T {
	var out [][]T
	for chunk := range ch {
		out = append(out, chunk)
	}

	return out
}

func (d Dumper) dumpChunk(ctx context.Context, chunk []configobject.Object, typeName string, withState bool) error {
	b := NewBatch()

	for _, o := range chunk {
		attrs, err := d.Serializer.PrepareObject(o)
		if err == nil {
			row, marshalErr := MarshalAttrs(attrs)
			if marshalErr == nil {
				objectID := attrs["name_checksum"].(string)
				b.HSet(d.Keyset.ConfigHash(typeName), objectID, row)
				b.HSet(d.Keyset.ChecksumHash(typeName), objectID, ChecksumFor(attrs))
			}
		}

		d.Serializer.InsertObjectDependencies(o, typeName, b, false)

		if withState {
			if c, ok := o.(configobject.Checkable); ok {
				state := d.Serializer.SerializeState(o.Name(), typeName, c, time.Now())
				stateJSON, _ := MarshalAttrs(state)
				b.AddState(state["id"].(string), stateJSON)
			}
		}

		b.CountObject()

		if b.ObjectCount() >= dumpFlushSize {
			enqueue(ctx, d.Conn, b, d.Keyset.StateHash(typeName))
			b.Reset()
		}
	}

	if !b.Empty() {
		enqueue(ctx, d.Conn, b, d.Keyset.StateHash(typeName))
	}

	return nil
}

// primaryTypeNames expands a Type into the remote typenames it dumps under: Downtime and Comment
// split into host/service variants, everything else maps to its own TypeName.
func primaryTypeNames(t configobject.Type) []string {
	switch t.TypeName() {
	case "downtime":
		return []string{"hostdowntime", "servicedowntime"}
	case "comment":
		return []string{"hostcomment", "servicecomment"}
	default:
		return []string{t.TypeName()}
	}
}

// deleteQuery renders a DEL command vector over keys, or nil if there is nothing to delete.
func deleteQuery(keys []string) []interface{} {
	if len(keys) == 0 {
		return nil
	}

	q := make([]interface{}, 0, len(keys)+1)
	q = append(q, "DEL")
	for _, k := range keys {
		q = append(q, k)
	}

	return q
}
