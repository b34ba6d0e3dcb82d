// Package jobs runs named background jobs on named queues with a bounded
// number of concurrent handlers per job name. Delivery is at-least-once:
// a job is acknowledged only after it succeeded or was dead-lettered.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Job is one unit of deferred work.
type Job struct {
	ID         ulid.ULID       `json:"id"`
	Queue      string          `json:"queue"`
	Name       string          `json:"name"`
	Payload    json.RawMessage `json:"payload"`
	Attempt    int             `json:"attempt"`
	EnqueuedAt time.Time       `json:"enqueuedAt"`
}

// Ref identifies an enqueued job. Enqueue returns it immediately; the
// outcome is only observable through metrics and the dead-letter store.
type Ref struct {
	ID    ulid.ULID
	Queue string
	Name  string
}

func (j Job) Ref() Ref {
	return Ref{ID: j.ID, Queue: j.Queue, Name: j.Name}
}

// Handler processes a job. It may be invoked more than once for the same
// job and must tolerate that.
type Handler func(ctx context.Context, job Job) error

// Request describes a job to enqueue.
type Request struct {
	Queue   string
	Name    string
	Payload any
}

// Enqueuer is the producer side of the runner.
type Enqueuer interface {
	Enqueue(ctx context.Context, queue, name string, payload any) (Ref, error)
	EnqueueAll(ctx context.Context, reqs ...Request) ([]Ref, error)
}

// Delivery is a job handed out by a backend together with whatever the
// backend needs to acknowledge it.
type Delivery struct {
	Job     Job
	receipt any
}

// Backend moves jobs between producers and the runner.
type Backend interface {
	// Push queues every job or none of them.
	Push(ctx context.Context, jobs ...Job) error
	// Fetch blocks until at least one job is available, the backend's poll
	// interval elapses (returning no deliveries), or ctx is done.
	Fetch(ctx context.Context, queue string, max int) ([]Delivery, error)
	// Ack marks deliveries as finished. Deliveries of one fetch may be
	// acknowledged separately and in any order; unacknowledged ones are
	// redelivered.
	Ack(ctx context.Context, queue string, deliveries []Delivery) error
	Close() error
}

var (
	ErrNoHandler = errors.New("no handler registered")
	ErrClosed    = errors.New("backend closed")
)

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying; the runner dead-letters the job
// after the current attempt.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Decode unmarshals the job payload into T. A payload that does not decode
// is a permanent failure.
func Decode[T any](job Job) (*T, error) {
	var v T
	if err := json.Unmarshal(job.Payload, &v); err != nil {
		return nil, Permanent(fmt.Errorf("decode %s/%s payload: %w", job.Queue, job.Name, err))
	}
	return &v, nil
}

func newJob(queue, name string, payload any, now time.Time) (Job, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Job{}, fmt.Errorf("encode %s/%s payload: %w", queue, name, err)
	}
	return Job{
		ID:         ulid.Make(),
		Queue:      queue,
		Name:       name,
		Payload:    data,
		EnqueuedAt: now,
	}, nil
}
