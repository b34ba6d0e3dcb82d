package jobs

import (
	"context"
	"sync"
)

type memoryQueue struct {
	pending []Job
	ready   chan struct{}
}

// MemoryBackend is an in-process backend. Jobs do not survive a restart.
type MemoryBackend struct {
	mu     sync.Mutex
	queues map[string]*memoryQueue
	closed bool
	done   chan struct{}
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		queues: make(map[string]*memoryQueue),
		done:   make(chan struct{}),
	}
}

// queue must be called with mu held.
func (b *MemoryBackend) queue(name string) *memoryQueue {
	q, ok := b.queues[name]
	if !ok {
		q = &memoryQueue{ready: make(chan struct{}, 1)}
		b.queues[name] = q
	}
	return q
}

func (b *MemoryBackend) Push(_ context.Context, jobs ...Job) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	touched := make([]*memoryQueue, 0, len(jobs))
	for _, job := range jobs {
		q := b.queue(job.Queue)
		q.pending = append(q.pending, job)
		touched = append(touched, q)
	}
	b.mu.Unlock()

	for _, q := range touched {
		select {
		case q.ready <- struct{}{}:
		default:
		}
	}
	return nil
}

func (b *MemoryBackend) Fetch(ctx context.Context, queue string, max int) ([]Delivery, error) {
	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return nil, ErrClosed
		}
		q := b.queue(queue)
		if n := min(max, len(q.pending)); n > 0 {
			out := make([]Delivery, n)
			for i, job := range q.pending[:n] {
				out[i] = Delivery{Job: job}
			}
			q.pending = q.pending[n:]
			b.mu.Unlock()
			return out, nil
		}
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-b.done:
			return nil, ErrClosed
		case <-q.ready:
		}
	}
}

func (b *MemoryBackend) Ack(context.Context, string, []Delivery) error {
	return nil
}

// Pending returns a snapshot of jobs waiting on queue.
func (b *MemoryBackend) Pending(queue string) []Job {
	b.mu.Lock()
	defer b.mu.Unlock()
	q, ok := b.queues[queue]
	if !ok {
		return nil
	}
	out := make([]Job, len(q.pending))
	copy(out, q.pending)
	return out
}

func (b *MemoryBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		close(b.done)
	}
	return nil
}
