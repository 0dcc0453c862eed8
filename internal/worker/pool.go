package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"screenai-backend/internal/models"
	"screenai-backend/internal/pkg/logger"
	"screenai-backend/internal/protocol"
)

// IntentQueue prefixes the shard lists holding inbound page messages.
const IntentQueue = "queue:intents"

const (
	popTimeout = 30 * time.Second
	jobTimeout = 3 * time.Minute
	lockTTL    = 10 * time.Minute
)

type Dispatcher interface {
	Dispatch(ctx context.Context, env protocol.Envelope) error
}

type queueClient interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	BLPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// ShardKey names the list for shard i.
func ShardKey(i int) string {
	return fmt.Sprintf("%s:%d", IntentQueue, i)
}

// shardFor pins a page context to one shard. Each shard has exactly one
// consumer, so a context's messages are dispatched in the order it sent them.
func shardFor(contextID string, shards int) int {
	h := fnv.New32a()
	h.Write([]byte(contextID))
	return int(h.Sum32() % uint32(shards))
}

// Queue is the producer side, used by the socket hub. shards must match the
// consuming pool's worker count.
type Queue struct {
	redis  queueClient
	shards int
}

func NewQueue(redisClient *redis.Client, shards int) *Queue {
	return newQueue(redisClient, shards)
}

func newQueue(client queueClient, shards int) *Queue {
	if shards <= 0 {
		shards = 1
	}
	return &Queue{redis: client, shards: shards}
}

// Enqueue appends env to its context's shard.
func (q *Queue) Enqueue(ctx context.Context, env protocol.Envelope) error {
	payload, err := protocol.MarshalEnvelope(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	data, err := json.Marshal(models.NewJob(payload))
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	return q.redis.RPush(ctx, ShardKey(shardFor(env.ContextID, q.shards)), data).Err()
}

// Pool runs one worker per shard. Contexts on different shards are
// dispatched concurrently.
type Pool struct {
	redis       queueClient
	dispatcher  Dispatcher
	workerCount int
	log         logger.ILogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewPool(redisClient *redis.Client, dispatcher Dispatcher, workerCount int, log logger.ILogger) *Pool {
	return newPool(redisClient, dispatcher, workerCount, log)
}

func newPool(client queueClient, dispatcher Dispatcher, workerCount int, log logger.ILogger) *Pool {
	if workerCount <= 0 {
		workerCount = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		redis:       client,
		dispatcher:  dispatcher,
		workerCount: workerCount,
		log:         log,
		ctx:         ctx,
		cancel:      cancel,
	}
}

func (p *Pool) Start() {
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.log.Info("Worker", "pool started", map[string]interface{}{"workers": p.workerCount, "queue": IntentQueue})
}

// Stop ends the workers and waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	p.cancel()
	p.wg.Wait()
}

func (p *Pool) worker(shard int) {
	defer p.wg.Done()
	key := ShardKey(shard)
	for {
		result, err := p.redis.BLPop(p.ctx, popTimeout, key).Result()
		if p.ctx.Err() != nil {
			p.log.Debug("Worker", "shutting down", map[string]interface{}{"shard": shard})
			return
		}
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				p.log.Warn("Worker", "pop failed", map[string]interface{}{"shard": shard, "error": err.Error()})
				time.Sleep(time.Second)
			}
			continue // Timeout or error, retry
		}

		if len(result) < 2 {
			continue
		}

		// a job that started is allowed to finish after Stop
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		if err := p.process(ctx, result[1]); err != nil {
			p.log.Warn("Worker", "job failed", map[string]interface{}{"shard": shard, "error": err.Error()})
		}
		cancel()
	}
}

// process decodes one queued job and hands it to the orchestrator. A job id
// is processed at most once within lockTTL, even if it was queued twice.
func (p *Pool) process(ctx context.Context, raw string) error {
	var job models.Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return fmt.Errorf("parse job: %w", err)
	}

	lockKey := fmt.Sprintf("job_lock:%s", job.ID.String())
	locked, err := p.redis.SetNX(ctx, lockKey, "1", lockTTL).Result()
	if err != nil {
		return fmt.Errorf("lock job %s: %w", job.ID, err)
	}
	if !locked {
		return nil // Already dispatched
	}

	env, err := protocol.UnmarshalEnvelope(job.Envelope)
	if err != nil {
		return fmt.Errorf("job %s: %w", job.ID, err)
	}

	p.log.Debug("Worker", "dispatching", map[string]interface{}{
		"job_id":     job.ID.String(),
		"context_id": env.ContextID,
		"type":       env.Message.Type(),
		"queued_for": time.Since(job.CreatedAt).String(),
	})

	return p.dispatcher.Dispatch(ctx, env)
}
