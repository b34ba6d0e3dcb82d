package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"socialid/internal/platform/metrics"
)

const (
	defaultBatchSize   = 10
	defaultMaxAttempts = 5
	defaultBackoff     = 200 * time.Millisecond
	defaultMaxBackoff  = 30 * time.Second
)

type registration struct {
	handler     Handler
	concurrency int
	sem         *semaphore.Weighted
}

// Runner registers handlers, enqueues jobs and consumes every registered
// queue from a Backend.
type Runner struct {
	backend     Backend
	deadLetters DeadLetterStore
	logger      *slog.Logger
	metrics     *metrics.Metrics
	maxAttempts int
	backoff     time.Duration
	maxBackoff  time.Duration
	// batchSize bounds the deliveries of one queue in flight at once.
	batchSize int
	now       func() time.Time

	mu     sync.RWMutex
	queues map[string]map[string]*registration
}

type Option func(*Runner)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Runner) {
		r.metrics = m
	}
}

func WithDeadLetters(store DeadLetterStore) Option {
	return func(r *Runner) {
		r.deadLetters = store
	}
}

// WithMaxAttempts bounds handler invocations per delivery. Zero retries
// until the handler succeeds or the runner stops.
func WithMaxAttempts(n int) Option {
	return func(r *Runner) {
		if n >= 0 {
			r.maxAttempts = n
		}
	}
}

func WithBackoff(base, max time.Duration) Option {
	return func(r *Runner) {
		if base > 0 {
			r.backoff = base
		}
		if max > 0 {
			r.maxBackoff = max
		}
	}
}

func WithBatchSize(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func NewRunner(backend Backend, opts ...Option) *Runner {
	r := &Runner{
		backend:     backend,
		logger:      slog.Default(),
		maxAttempts: defaultMaxAttempts,
		backoff:     defaultBackoff,
		maxBackoff:  defaultMaxBackoff,
		batchSize:   defaultBatchSize,
		now:         time.Now,
		queues:      make(map[string]map[string]*registration),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.deadLetters == nil {
		r.deadLetters = NewMemoryDeadLetters()
	}
	return r
}

// Register binds handler to jobs named name on queue, allowing at most
// concurrency invocations at once. Register before Run.
func (r *Runner) Register(queue, name string, concurrency int, handler Handler) error {
	if queue == "" || name == "" {
		return errors.New("jobs: queue and name are required")
	}
	if handler == nil {
		return fmt.Errorf("jobs: nil handler for %s/%s", queue, name)
	}
	if concurrency < 1 {
		return fmt.Errorf("jobs: concurrency for %s/%s must be positive", queue, name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	names, ok := r.queues[queue]
	if !ok {
		names = make(map[string]*registration)
		r.queues[queue] = names
	}
	if _, exists := names[name]; exists {
		return fmt.Errorf("jobs: handler for %s/%s already registered", queue, name)
	}
	names[name] = &registration{
		handler:     handler,
		concurrency: concurrency,
		sem:         semaphore.NewWeighted(int64(concurrency)),
	}
	return nil
}

// Enqueue hands a job to the backend and returns without waiting for it to
// be processed.
func (r *Runner) Enqueue(ctx context.Context, queue, name string, payload any) (Ref, error) {
	refs, err := r.EnqueueAll(ctx, Request{Queue: queue, Name: name, Payload: payload})
	if err != nil {
		return Ref{}, err
	}
	return refs[0], nil
}

// EnqueueAll hands every request to the backend in one push: either all of
// the jobs are queued or none is.
func (r *Runner) EnqueueAll(ctx context.Context, reqs ...Request) ([]Ref, error) {
	if len(reqs) == 0 {
		return nil, nil
	}
	now := r.now()
	batch := make([]Job, 0, len(reqs))
	for _, req := range reqs {
		job, err := newJob(req.Queue, req.Name, req.Payload, now)
		if err != nil {
			return nil, err
		}
		batch = append(batch, job)
	}
	if err := r.backend.Push(ctx, batch...); err != nil {
		return nil, fmt.Errorf("enqueue %s: %w", describe(batch), err)
	}

	refs := make([]Ref, len(batch))
	for i, job := range batch {
		refs[i] = job.Ref()
		r.metrics.IncrementJobsEnqueued(job.Queue, job.Name)
		r.logger.DebugContext(ctx, "job enqueued",
			"queue", job.Queue,
			"job", job.Name,
			"job_id", job.ID.String(),
		)
	}
	return refs, nil
}

func describe(batch []Job) string {
	names := make([]string, len(batch))
	for i, job := range batch {
		names[i] = job.Queue + "/" + job.Name
	}
	return strings.Join(names, ", ")
}

// Run consumes every registered queue until ctx is done. Handlers already
// running finish their current attempt; jobs that did not reach a final
// outcome stay unacknowledged and are redelivered.
func (r *Runner) Run(ctx context.Context) error {
	queues := r.queueNames()
	if len(queues) == 0 {
		return errors.New("jobs: no handlers registered")
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, queue := range queues {
		g.Go(func() error {
			return r.consume(gctx, queue)
		})
	}
	r.logger.InfoContext(ctx, "job runner started", "queues", queues)
	err := g.Wait()
	r.logger.InfoContext(context.WithoutCancel(ctx), "job runner stopped")
	return err
}

func (r *Runner) queueNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.queues))
	for q := range r.queues {
		names = append(names, q)
	}
	sort.Strings(names)
	return names
}

func (r *Runner) lookup(queue, name string) *registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.queues[queue][name]
}

// consume keeps up to batchSize deliveries of queue in flight. Each one is
// handled on its own goroutine and acknowledged as soon as it reaches a
// final outcome, so a job waiting out its retries never holds back the rest.
func (r *Runner) consume(ctx context.Context, queue string) error {
	slots := semaphore.NewWeighted(int64(r.batchSize))
	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		if err := slots.Acquire(ctx, 1); err != nil {
			return nil
		}
		n := 1
		for n < r.batchSize && slots.TryAcquire(1) {
			n++
		}

		deliveries, err := r.backend.Fetch(ctx, queue, n)
		if unused := n - len(deliveries); unused > 0 {
			slots.Release(int64(unused))
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, ErrClosed) {
				return err
			}
			r.logger.ErrorContext(ctx, "failed to fetch jobs", "queue", queue, "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(r.backoff):
			}
			continue
		}

		for _, d := range deliveries {
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer slots.Release(1)
				r.handle(ctx, queue, d)
			}()
		}
	}
}

// handle runs one delivery under its job name's concurrency limit and
// acknowledges it once it succeeded or was dead-lettered.
func (r *Runner) handle(ctx context.Context, queue string, d Delivery) {
	reg := r.lookup(queue, d.Job.Name)
	if reg == nil {
		r.deadLetter(ctx, d.Job, ErrNoHandler)
		r.ack(ctx, queue, d)
		return
	}
	if err := reg.sem.Acquire(ctx, 1); err != nil {
		return
	}
	final := r.process(ctx, d.Job, reg.handler)
	reg.sem.Release(1)
	if final {
		r.ack(ctx, queue, d)
	}
}

func (r *Runner) ack(ctx context.Context, queue string, d Delivery) {
	if err := r.backend.Ack(context.WithoutCancel(ctx), queue, []Delivery{d}); err != nil {
		r.logger.ErrorContext(ctx, "failed to acknowledge job",
			"queue", queue,
			"job", d.Job.Name,
			"job_id", d.Job.ID.String(),
			"error", err,
		)
	}
}

// process runs job until it succeeds or exhausts its attempts, reporting
// whether it reached a final outcome.
func (r *Runner) process(ctx context.Context, job Job, handler Handler) bool {
	handlerCtx := context.WithoutCancel(ctx)
	start := r.now()
	attempts := 0

	err := retry.Do(ctx, r.newBackoff(), func(_ context.Context) error {
		attempts++
		job.Attempt = attempts
		if err := safeCall(handlerCtx, handler, job); err != nil {
			if IsPermanent(err) {
				return err
			}
			r.metrics.IncrementJobsProcessed(job.Queue, job.Name, "retry")
			r.logger.WarnContext(ctx, "job attempt failed",
				"queue", job.Queue,
				"job", job.Name,
				"job_id", job.ID.String(),
				"attempt", attempts,
				"error", err,
			)
			return retry.RetryableError(err)
		}
		return nil
	})
	r.metrics.ObserveJobDuration(job.Queue, job.Name, r.now().Sub(start))

	if err == nil {
		r.metrics.IncrementJobsProcessed(job.Queue, job.Name, "success")
		return true
	}
	if ctx.Err() != nil && !IsPermanent(err) && (r.maxAttempts == 0 || attempts < r.maxAttempts) {
		// stopped mid-retry; leave unacknowledged for redelivery
		return false
	}
	r.metrics.IncrementJobsProcessed(job.Queue, job.Name, "failed")
	r.deadLetter(ctx, job, err)
	return true
}

func (r *Runner) newBackoff() retry.Backoff {
	b := retry.NewExponential(r.backoff)
	b = retry.WithCappedDuration(r.maxBackoff, b)
	if r.maxAttempts > 0 {
		b = retry.WithMaxRetries(uint64(r.maxAttempts-1), b)
	}
	return b
}

func (r *Runner) deadLetter(ctx context.Context, job Job, cause error) {
	r.metrics.IncrementJobsDeadLettered(job.Queue, job.Name)
	r.logger.ErrorContext(ctx, "job dead-lettered",
		"queue", job.Queue,
		"job", job.Name,
		"job_id", job.ID.String(),
		"attempts", job.Attempt,
		"error", cause,
	)
	entry := DeadLetter{Job: job, Error: cause.Error(), FailedAt: r.now()}
	if err := r.deadLetters.Put(context.WithoutCancel(ctx), entry); err != nil {
		r.logger.ErrorContext(ctx, "failed to store dead letter",
			"queue", job.Queue,
			"job_id", job.ID.String(),
			"error", err,
		)
	}
}

func safeCall(ctx context.Context, handler Handler, job Job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job handler panic: %v", rec)
		}
	}()
	return handler(ctx, job)
}
