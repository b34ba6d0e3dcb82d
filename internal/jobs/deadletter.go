package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

// DeadLetter is a job that will not be retried again.
type DeadLetter struct {
	Job      Job       `json:"job"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failedAt"`
}

type DeadLetterStore interface {
	Put(ctx context.Context, entry DeadLetter) error
	List(ctx context.Context, queue string) ([]DeadLetter, error)
}

// MemoryDeadLetters keeps dead letters for the lifetime of the process.
type MemoryDeadLetters struct {
	mu      sync.RWMutex
	entries map[string][]DeadLetter
}

func NewMemoryDeadLetters() *MemoryDeadLetters {
	return &MemoryDeadLetters{entries: make(map[string][]DeadLetter)}
}

func (s *MemoryDeadLetters) Put(_ context.Context, entry DeadLetter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.Job.Queue] = append(s.entries[entry.Job.Queue], entry)
	return nil
}

func (s *MemoryDeadLetters) List(_ context.Context, queue string) ([]DeadLetter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DeadLetter, len(s.entries[queue]))
	copy(out, s.entries[queue])
	return out, nil
}

// BoltDeadLetters persists dead letters in a bbolt file, one bucket per
// queue keyed by job id so entries list in enqueue order.
type BoltDeadLetters struct {
	db *bbolt.DB
}

func OpenBoltDeadLetters(path string) (*BoltDeadLetters, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open dead-letter store: %w", err)
	}
	return &BoltDeadLetters{db: db}, nil
}

func (s *BoltDeadLetters) Put(_ context.Context, entry DeadLetter) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode dead letter: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists([]byte(entry.Job.Queue))
		if err != nil {
			return err
		}
		return b.Put(entry.Job.ID.Bytes(), data)
	})
}

func (s *BoltDeadLetters) List(_ context.Context, queue string) ([]DeadLetter, error) {
	var out []DeadLetter
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(queue))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			var entry DeadLetter
			if err := json.Unmarshal(v, &entry); err != nil {
				return err
			}
			out = append(out, entry)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	return out, nil
}

func (s *BoltDeadLetters) Close() error {
	return s.db.Close()
}
