package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaBackend maps each queue to a topic. Pushes are transactional and
// consumers read committed records only. Every queue gets its own
// consumer-group client with auto-commit disabled; a partition's offset
// advances only past records that reached a final outcome, so acks may
// arrive in any order.
type KafkaBackend struct {
	brokers     []string
	group       string
	topicPrefix string

	produceMu sync.Mutex
	producer  *kgo.Client

	// commitMu keeps offset commits of one backend in order.
	commitMu  sync.Mutex
	mu        sync.Mutex
	consumers map[string]*kgo.Client
	inflight  map[string]map[topicPartition]*partitionLog
	closed    bool
}

type topicPartition struct {
	topic     string
	partition int32
}

// partitionLog holds fetched records of one partition in offset order.
type partitionLog struct {
	records []*kgo.Record
	done    map[int64]bool
}

func NewKafkaBackend(brokers []string, group, topicPrefix string) (*KafkaBackend, error) {
	producer, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.TransactionalID(group+"-producer-"+ulid.Make().String()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return &KafkaBackend{
		brokers:     brokers,
		group:       group,
		topicPrefix: topicPrefix,
		producer:    producer,
		consumers:   make(map[string]*kgo.Client),
		inflight:    make(map[string]map[topicPartition]*partitionLog),
	}, nil
}

func (b *KafkaBackend) topic(queue string) string {
	return b.topicPrefix + queue
}

// EnsureTopics creates the topics backing queues, ignoring ones that exist.
func (b *KafkaBackend) EnsureTopics(ctx context.Context, partitions int32, replication int16, queues ...string) error {
	topics := make([]string, len(queues))
	for i, q := range queues {
		topics[i] = b.topic(q)
	}
	resp, err := kadm.NewClient(b.producer).CreateTopics(ctx, partitions, replication, nil, topics...)
	if err != nil {
		return fmt.Errorf("create topics: %w", err)
	}
	for topic, r := range resp {
		if r.Err != nil && !errors.Is(r.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %s: %w", topic, r.Err)
		}
	}
	return nil
}

// Push produces all jobs in one transaction.
func (b *KafkaBackend) Push(ctx context.Context, jobs ...Job) error {
	records := make([]*kgo.Record, len(jobs))
	for i, job := range jobs {
		data, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("encode job: %w", err)
		}
		records[i] = &kgo.Record{
			Topic: b.topic(job.Queue),
			Key:   []byte(job.ID.String()),
			Value: data,
		}
	}

	b.produceMu.Lock()
	defer b.produceMu.Unlock()
	if err := b.producer.BeginTransaction(); err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := b.producer.ProduceSync(ctx, records...).FirstErr(); err != nil {
		if abortErr := b.producer.EndTransaction(context.WithoutCancel(ctx), kgo.TryAbort); abortErr != nil {
			return fmt.Errorf("produce jobs: %w", errors.Join(err, abortErr))
		}
		return fmt.Errorf("produce jobs: %w", err)
	}
	if err := b.producer.EndTransaction(ctx, kgo.TryCommit); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func (b *KafkaBackend) consumer(queue string) (*kgo.Client, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	if cl, ok := b.consumers[queue]; ok {
		return cl, nil
	}
	forget := func(_ context.Context, _ *kgo.Client, partitions map[string][]int32) {
		b.forget(queue, partitions)
	}
	cl, err := kgo.NewClient(
		kgo.SeedBrokers(b.brokers...),
		kgo.ConsumerGroup(b.group),
		kgo.ConsumeTopics(b.topic(queue)),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.FetchIsolationLevel(kgo.ReadCommitted()),
		kgo.DisableAutoCommit(),
		kgo.OnPartitionsRevoked(forget),
		kgo.OnPartitionsLost(forget),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	b.consumers[queue] = cl
	b.inflight[queue] = make(map[topicPartition]*partitionLog)
	return cl, nil
}

// forget drops tracking for partitions this consumer no longer owns. Their
// unfinished records are redelivered to the new owner.
func (b *KafkaBackend) forget(queue string, partitions map[string][]int32) {
	b.mu.Lock()
	defer b.mu.Unlock()
	logs := b.inflight[queue]
	for topic, ids := range partitions {
		for _, id := range ids {
			delete(logs, topicPartition{topic: topic, partition: id})
		}
	}
}

func (b *KafkaBackend) Fetch(ctx context.Context, queue string, max int) ([]Delivery, error) {
	cl, err := b.consumer(queue)
	if err != nil {
		return nil, err
	}
	fetches := cl.PollRecords(ctx, max)
	if fetches.IsClientClosed() {
		return nil, ErrClosed
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if errs := fetches.Errors(); len(errs) > 0 {
		return nil, fmt.Errorf("poll %s: %w", errs[0].Topic, errs[0].Err)
	}

	records := fetches.Records()
	if len(records) == 0 {
		return nil, nil
	}
	out := make([]Delivery, 0, len(records))
	b.mu.Lock()
	logs := b.inflight[queue]
	for _, rec := range records {
		var job Job
		if err := json.Unmarshal(rec.Value, &job); err != nil {
			job = Job{ID: ulid.Make(), Queue: queue, Payload: json.RawMessage(rec.Value)}
		}
		out = append(out, Delivery{Job: job, receipt: rec})

		key := topicPartition{topic: rec.Topic, partition: rec.Partition}
		log, ok := logs[key]
		if !ok {
			log = &partitionLog{done: make(map[int64]bool)}
			logs[key] = log
		}
		log.records = append(log.records, rec)
	}
	b.mu.Unlock()
	return out, nil
}

// Ack marks deliveries finished and commits, per partition, the last record
// before the first unfinished one.
func (b *KafkaBackend) Ack(ctx context.Context, queue string, deliveries []Delivery) error {
	b.commitMu.Lock()
	defer b.commitMu.Unlock()

	b.mu.Lock()
	cl := b.consumers[queue]
	logs := b.inflight[queue]
	touched := make(map[topicPartition]struct{})
	for _, d := range deliveries {
		rec, ok := d.receipt.(*kgo.Record)
		if !ok {
			continue
		}
		key := topicPartition{topic: rec.Topic, partition: rec.Partition}
		log, ok := logs[key]
		if !ok {
			continue
		}
		log.done[rec.Offset] = true
		touched[key] = struct{}{}
	}
	var commit []*kgo.Record
	for key := range touched {
		if last := logs[key].advance(); last != nil {
			commit = append(commit, last)
		}
	}
	b.mu.Unlock()

	if cl == nil || len(commit) == 0 {
		return nil
	}
	if err := cl.CommitRecords(ctx, commit...); err != nil {
		return fmt.Errorf("commit offsets: %w", err)
	}
	return nil
}

// advance pops the finished prefix of the log and returns its last record.
func (l *partitionLog) advance() *kgo.Record {
	var last *kgo.Record
	for len(l.records) > 0 && l.done[l.records[0].Offset] {
		last = l.records[0]
		delete(l.done, last.Offset)
		l.records = l.records[1:]
	}
	return last
}

// Close closes every client. Consumers are closed outside mu because
// leaving the group runs the revoke callback.
func (b *KafkaBackend) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	consumers := make([]*kgo.Client, 0, len(b.consumers))
	for _, cl := range b.consumers {
		consumers = append(consumers, cl)
	}
	b.mu.Unlock()

	for _, cl := range consumers {
		cl.Close()
	}
	b.producer.Close()
	return nil
}
