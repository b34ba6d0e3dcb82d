package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
)

const defaultRedisBlock = 2 * time.Second

// RedisBackend keeps each queue in a list. Fetch moves jobs atomically into
// a per-consumer processing list and Ack removes them, so jobs held by a
// consumer that died are moved back to pending the next time a consumer
// with the same name starts fetching that queue.
type RedisBackend struct {
	client   *redis.Client
	consumer string
	block    time.Duration

	recovered sync.Map
}

// NewRedisBackend builds a backend. consumer must be stable across restarts
// of the same worker.
func NewRedisBackend(client *redis.Client, consumer string) *RedisBackend {
	return &RedisBackend{
		client:   client,
		consumer: consumer,
		block:    defaultRedisBlock,
	}
}

func pendingKey(queue string) string {
	return fmt.Sprintf("jobs:%s:pending", queue)
}

func (b *RedisBackend) processingKey(queue string) string {
	return fmt.Sprintf("jobs:%s:processing:%s", queue, b.consumer)
}

// Push writes all jobs in one MULTI/EXEC transaction.
func (b *RedisBackend) Push(ctx context.Context, jobs ...Job) error {
	encoded := make([][]byte, len(jobs))
	for i, job := range jobs {
		data, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("encode job: %w", err)
		}
		encoded[i] = data
	}
	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, job := range jobs {
			pipe.LPush(ctx, pendingKey(job.Queue), encoded[i])
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("push jobs: %w", err)
	}
	return nil
}

func (b *RedisBackend) Fetch(ctx context.Context, queue string, max int) ([]Delivery, error) {
	if _, done := b.recovered.Load(queue); !done {
		if err := b.recover(ctx, queue); err != nil {
			return nil, err
		}
		b.recovered.Store(queue, struct{}{})
	}

	pending, processing := pendingKey(queue), b.processingKey(queue)
	first, err := b.client.BLMove(ctx, pending, processing, "RIGHT", "LEFT", b.block).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch job: %w", err)
	}

	raws := []string{first}
	for len(raws) < max {
		raw, err := b.client.LMove(ctx, pending, processing, "RIGHT", "LEFT").Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("fetch job: %w", err)
		}
		raws = append(raws, raw)
	}

	out := make([]Delivery, 0, len(raws))
	for _, raw := range raws {
		var job Job
		if err := json.Unmarshal([]byte(raw), &job); err != nil {
			// unreadable entries are handed over nameless so they get
			// dead-lettered instead of looping forever
			job = Job{ID: ulid.Make(), Queue: queue, Payload: json.RawMessage(raw)}
		}
		out = append(out, Delivery{Job: job, receipt: raw})
	}
	return out, nil
}

func (b *RedisBackend) Ack(ctx context.Context, queue string, deliveries []Delivery) error {
	if len(deliveries) == 0 {
		return nil
	}
	processing := b.processingKey(queue)
	_, err := b.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, d := range deliveries {
			raw, ok := d.receipt.(string)
			if !ok {
				continue
			}
			pipe.LRem(ctx, processing, 1, raw)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ack jobs: %w", err)
	}
	return nil
}

// recover moves jobs left in this consumer's processing list back to the
// consuming end of pending, oldest first.
func (b *RedisBackend) recover(ctx context.Context, queue string) error {
	pending, processing := pendingKey(queue), b.processingKey(queue)
	for {
		err := b.client.LMove(ctx, processing, pending, "LEFT", "RIGHT").Err()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("recover jobs: %w", err)
		}
	}
}

// Close leaves the client open; its owner closes it.
func (b *RedisBackend) Close() error {
	return nil
}
