package redissync

// Batch is the set of per-chunk, per-goroutine accumulators a single object's serialisation and
// dependency emission write into. It is local to one chunk and
// merged into outbound commands on flush.
type Batch struct {
	// HMSets maps a hash name to its pending field/value pairs.
	HMSets map[string][]string
	// Publishes maps a pub/sub channel to its pending messages.
	Publishes map[string][]string
	// States accumulates (objectID, jsonState) pairs for checkable types, flattened into a
	// single HMSET of the state hash on flush.
	States []string

	objectCount int
}

// NewBatch returns an empty Batch.
func NewBatch() *Batch {
	return &Batch{
		HMSets:    make(map[string][]string),
		Publishes: make(map[string][]string),
	}
}

// HSet appends one field/value pair to the named hash.
func (b *Batch) HSet(hash, field, value string) {
	b.HMSets[hash] = append(b.HMSets[hash], field, value)
}

// Publish appends one message to the named channel.
func (b *Batch) Publish(channel, message string) {
	b.Publishes[channel] = append(b.Publishes[channel], message)
}

// AddState appends one (objectID, jsonState) pair.
func (b *Batch) AddState(objectID, jsonState string) {
	b.States = append(b.States, objectID, jsonState)
}

// CountObject marks that one more object has been folded into this Batch. Dumper uses this to
// decide when to flush (every 100 objects).
func (b *Batch) CountObject() {
	b.objectCount++
}

// ObjectCount returns how many objects have been folded into this Batch since the last reset.
func (b *Batch) ObjectCount() int {
	return b.objectCount
}

// Empty reports whether the batch has nothing pending.
func (b *Batch) Empty() bool {
	return len(b.HMSets) == 0 && len(b.Publishes) == 0 && len(b.States) == 0
}

// Reset clears the batch for reuse after a flush.
func (b *Batch) Reset() {
	for k := range b.HMSets {
		delete(b.HMSets, k)
	}

	for k := range b.Publishes {
		delete(b.Publishes, k)
	}

	b.States = b.States[:0]
	b.objectCount = 0
}

// Queries renders the batch's pending writes as a sequence of command vectors: one HMSET per
// populated hash (including the state hash, if any), then one PUBLISH per pending message. The
// vectors carry no MULTI/EXEC; Connection.FireAndForgetQueries adds that framing.
func (b *Batch) Queries(stateHash string) []redisQuery {
	var qs []redisQuery

	for hash, kv := range b.HMSets {
		if len(kv) == 0 {
			continue
		}

		qs = append(qs, buildHMSet(hash, kv))
	}

	if len(b.States) > 0 {
		qs = append(qs, buildHMSet(stateHash, b.States))
	}

	for channel, messages := range b.Publishes {
		for _, m := range messages {
			qs = append(qs, redisQuery{"PUBLISH", channel, m})
		}
	}

	return qs
}

func buildHMSet(hash string, kv []string) redisQuery {
	q := redisQuery{"HMSET", hash}
	for _, v := range kv {
		q = append(q, v)
	}

	return q
}

// redisQuery is a local alias kept independent of the redis package's Query type so that Batch
// stays usable without importing the connection layer; Writer converts it to redis.Query at the
// point it talks to the Connection.
type redisQuery []interface{}
