package redissync

import (
	"context"
	"sync"
)

// fakeConnection records every query handed to it instead of talking to a real Redis server,
// so Dumper/EventRouter tests can assert on what would have been written without miniredis.
type fakeConnection struct {
	mu        sync.Mutex
	connected bool
	queries   [][]interface{}
	batches   [][][]interface{}
	evalCalls []evalCall
}

type evalCall struct {
	script string
	keys   []string
	args   []interface{}
}

func newFakeConnection() *fakeConnection {
	return &fakeConnection{connected: true}
}

func (f *fakeConnection) FireAndForgetQuery(ctx context.Context, q []interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.queries = append(f.queries, q)
}

func (f *fakeConnection) FireAndForgetQueries(ctx context.Context, qs [][]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.batches = append(f.batches, qs)
	f.queries = append(f.queries, qs...)
}

func (f *fakeConnection) IsConnected(ctx context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.connected
}

func (f *fakeConnection) Eval(ctx context.Context, script string, keys []string, args ...interface{}) (interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.evalCalls = append(f.evalCalls, evalCall{script: script, keys: keys, args: args})
	return "0-1", nil
}

func (f *fakeConnection) allQueries() [][]interface{} {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([][]interface{}, len(f.queries))
	copy(out, f.queries)
	return out
}

var _ Connection = (*fakeConnection)(nil)
