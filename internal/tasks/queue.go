// Package tasks runs background work: a task queue consumed by a bounded
// worker pool, and a Group for in-process continuations.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Task kinds.
const (
	KindEvaluate = "evaluate"
	// KindScoreAll evaluates every unscored candidate. It carries no candidate.
	KindScoreAll = "score-all"
)

// ErrQueueFull is returned by MemoryQueue.Enqueue when ctx ends before there is room.
var ErrQueueFull = errors.New("task queue is full")

// Task is one unit of queued work.
type Task struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	CandidateID uuid.UUID `json:"candidateId"`
	EnqueuedAt  time.Time `json:"enqueuedAt"`
}

// NewTask returns a task of kind for a candidate.
func NewTask(kind string, candidateID uuid.UUID) Task {
	return Task{ID: uuid.NewString(), Kind: kind, CandidateID: candidateID, EnqueuedAt: time.Now().UTC()}
}

// Queue is a FIFO of tasks shared by producers and the worker pool.
type Queue interface {
	Enqueue(ctx context.Context, task Task) error
	// Dequeue blocks until a task is available or ctx is done.
	Dequeue(ctx context.Context) (Task, error)
	Len(ctx context.Context) (int64, error)
	Close() error
}

// MemoryQueue is a bounded in-process queue.
type MemoryQueue struct {
	ch chan Task
}

// DefaultMemoryQueueSize bounds a MemoryQueue built with size <= 0.
const DefaultMemoryQueueSize = 1024

// NewMemoryQueue returns a queue holding at most size tasks.
func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = DefaultMemoryQueueSize
	}
	return &MemoryQueue{ch: make(chan Task, size)}
}

// Enqueue adds task, waiting for room until ctx is done.
func (q *MemoryQueue) Enqueue(ctx context.Context, task Task) error {
	select {
	case q.ch <- task:
		return nil
	default:
	}
	select {
	case q.ch <- task:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrQueueFull, ctx.Err())
	}
}

// Dequeue waits for the next task.
func (q *MemoryQueue) Dequeue(ctx context.Context) (Task, error) {
	select {
	case <-ctx.Done():
		return Task{}, ctx.Err()
	case task := <-q.ch:
		return task, nil
	}
}

// Len returns the number of waiting tasks.
func (q *MemoryQueue) Len(context.Context) (int64, error) {
	return int64(len(q.ch)), nil
}

// Close is a no-op.
func (q *MemoryQueue) Close() error { return nil }

// RedisQueue keeps tasks as JSON in a Redis list: RPUSH to enqueue, BLPOP to dequeue.
type RedisQueue struct {
	client  *redis.Client
	key     string
	timeout time.Duration
}

// RedisOptions configures NewRedisQueue.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// NewRedisQueue connects to Redis and verifies the connection.
func NewRedisQueue(ctx context.Context, opts RedisOptions) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", opts.Addr, err)
	}
	key := opts.Key
	if key == "" {
		key = "hiretrack:tasks"
	}
	return &RedisQueue{client: client, key: key, timeout: time.Second}, nil
}

// Enqueue appends task to the list.
func (q *RedisQueue) Enqueue(ctx context.Context, task Task) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to encode task: %w", err)
	}
	return q.client.RPush(ctx, q.key, payload).Err()
}

// Dequeue pops the oldest task, polling with BLPOP until ctx is done.
func (q *RedisQueue) Dequeue(ctx context.Context) (Task, error) {
	for {
		if err := ctx.Err(); err != nil {
			return Task{}, err
		}
		res, err := q.client.BLPop(ctx, q.timeout, q.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return Task{}, ctx.Err()
			}
			return Task{}, err
		}
		// res is [key, value]
		if len(res) != 2 {
			return Task{}, fmt.Errorf("unexpected BLPOP reply of length %d", len(res))
		}
		var task Task
		if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
			return Task{}, fmt.Errorf("failed to decode task: %w", err)
		}
		return task, nil
	}
}

// Len returns the list length.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

// Close closes the Redis client.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
