package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screenai-backend/internal/models"
	"screenai-backend/internal/pkg/logger"
	"screenai-backend/internal/protocol"
)

// memQueue is a stand-in for redis lists. BLPop waits on a per-key channel so
// the pool's loop can be exercised without a server.
type memQueue struct {
	mu    sync.Mutex
	lists map[string]chan string
	locks map[string]bool
}

func newMemQueue() *memQueue {
	return &memQueue{lists: map[string]chan string{}, locks: map[string]bool{}}
}

func (m *memQueue) list(key string) chan string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.lists[key]
	if !ok {
		ch = make(chan string, 512)
		m.lists[key] = ch
	}
	return ch
}

func (m *memQueue) RPush(_ context.Context, key string, values ...interface{}) *redis.IntCmd {
	ch := m.list(key)
	for _, v := range values {
		ch <- string(v.([]byte))
	}
	return redis.NewIntResult(int64(len(ch)), nil)
}

func (m *memQueue) BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd {
	select {
	case item := <-m.list(keys[0]):
		return redis.NewStringSliceResult([]string{keys[0], item}, nil)
	case <-ctx.Done():
		return redis.NewStringSliceResult(nil, ctx.Err())
	case <-time.After(timeout):
		return redis.NewStringSliceResult(nil, redis.Nil)
	}
}

func (m *memQueue) SetNX(_ context.Context, key string, _ interface{}, _ time.Duration) *redis.BoolCmd {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[key] {
		return redis.NewBoolResult(false, nil)
	}
	m.locks[key] = true
	return redis.NewBoolResult(true, nil)
}

type recordingDispatcher struct {
	mu    sync.Mutex
	envs  []protocol.Envelope
	delay func(env protocol.Envelope)
}

func (d *recordingDispatcher) Dispatch(_ context.Context, env protocol.Envelope) error {
	if d.delay != nil {
		d.delay(env)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.envs = append(d.envs, env)
	return nil
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.envs)
}

func (d *recordingDispatcher) textsFor(contextID string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []string
	for _, env := range d.envs {
		if env.ContextID == contextID {
			out = append(out, env.Message.(protocol.QueryText).Text)
		}
	}
	return out
}

func queuedJob(t *testing.T, env protocol.Envelope) string {
	t.Helper()
	payload, err := protocol.MarshalEnvelope(env)
	require.NoError(t, err)
	raw, err := json.Marshal(models.NewJob(payload))
	require.NoError(t, err)
	return string(raw)
}

// distinctShards returns two context ids that land on different shards.
func distinctShards(t *testing.T, shards int) (string, string) {
	t.Helper()
	first := "ctx-0"
	for i := 1; i < 100; i++ {
		id := fmt.Sprintf("ctx-%d", i)
		if shardFor(id, shards) != shardFor(first, shards) {
			return first, id
		}
	}
	t.Fatal("no two ids on different shards")
	return "", ""
}

func TestPool_DispatchesQueuedMessages(t *testing.T) {
	q := newMemQueue()
	d := &recordingDispatcher{}
	pool := newPool(q, d, 2, logger.NewNop())
	pool.Start()
	defer pool.Stop()

	env := protocol.Envelope{ContextID: "ctx-1", Message: protocol.QueryText{Text: "hello"}}
	require.NoError(t, newQueue(q, 2).Enqueue(context.Background(), env))

	assert.Eventually(t, func() bool { return d.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, env, d.envs[0])
}

func TestPool_KeepsPerContextOrder(t *testing.T) {
	q := newMemQueue()
	d := &recordingDispatcher{delay: func(env protocol.Envelope) {
		// early messages are slow, so a second consumer would overtake them
		if env.Message.(protocol.QueryText).Text < "05" {
			time.Sleep(2 * time.Millisecond)
		}
	}}
	pool := newPool(q, d, 4, logger.NewNop())
	pool.Start()
	defer pool.Stop()

	producer := newQueue(q, 4)
	ids := []string{"ctx-a", "ctx-b", "ctx-c"}
	var want []string
	for i := 0; i < 20; i++ {
		want = append(want, fmt.Sprintf("%02d", i))
		for _, id := range ids {
			require.NoError(t, producer.Enqueue(context.Background(),
				protocol.Envelope{ContextID: id, Message: protocol.QueryText{Text: fmt.Sprintf("%02d", i)}}))
		}
	}

	require.Eventually(t, func() bool { return d.count() == 60 }, 5*time.Second, 5*time.Millisecond)
	for _, id := range ids {
		assert.Equal(t, want, d.textsFor(id), id)
	}
}

func TestPool_SlowContextDoesNotBlockOthers(t *testing.T) {
	q := newMemQueue()
	slow, fast := distinctShards(t, 2)
	release := make(chan struct{})
	d := &recordingDispatcher{delay: func(env protocol.Envelope) {
		if env.ContextID == slow {
			<-release
		}
	}}
	pool := newPool(q, d, 2, logger.NewNop())
	pool.Start()
	defer pool.Stop()
	defer close(release)

	producer := newQueue(q, 2)
	require.NoError(t, producer.Enqueue(context.Background(), protocol.Envelope{ContextID: slow, Message: protocol.QueryText{Text: "1"}}))
	require.NoError(t, producer.Enqueue(context.Background(), protocol.Envelope{ContextID: fast, Message: protocol.QueryText{Text: "2"}}))

	assert.Eventually(t, func() bool { return len(d.textsFor(fast)) == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestShardFor_Stable(t *testing.T) {
	for _, id := range []string{"a", "ctx-1", "0c6f6f9e-4f57-4a57-9d59-8f5e2b1f3f11"} {
		s := shardFor(id, 5)
		assert.Equal(t, s, shardFor(id, 5))
		assert.GreaterOrEqual(t, s, 0)
		assert.Less(t, s, 5)
	}
	assert.Equal(t, "queue:intents:3", ShardKey(3))
}

func TestProcess_DuplicateJobRunsOnce(t *testing.T) {
	q := newMemQueue()
	d := &recordingDispatcher{}
	pool := newPool(q, d, 1, logger.NewNop())

	raw := queuedJob(t, protocol.Envelope{ContextID: "ctx-1", Message: protocol.OpenEmpty{}})

	require.NoError(t, pool.process(context.Background(), raw))
	require.NoError(t, pool.process(context.Background(), raw))
	assert.Equal(t, 1, d.count())
}

func TestProcess_BadInput(t *testing.T) {
	pool := newPool(newMemQueue(), &recordingDispatcher{}, 1, logger.NewNop())

	assert.Error(t, pool.process(context.Background(), "{not json"))

	bogus := json.RawMessage(`{"context_id":"ctx-1","message":{"type":"bogus"}}`)
	raw, _ := json.Marshal(models.NewJob(bogus))
	assert.ErrorContains(t, pool.process(context.Background(), string(raw)), "unknown message type")
}

func TestPool_StopReturns(t *testing.T) {
	pool := newPool(newMemQueue(), &recordingDispatcher{}, 3, logger.NewNop())
	pool.Start()

	done := make(chan struct{})
	go func() {
		pool.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}
