//go:build integration

package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"socialid/pkg/testutil/containers"
)

func TestKafkaBackend(t *testing.T) {
	rp := containers.NewRedpandaContainer(t)
	ctx := context.Background()

	backend, err := NewKafkaBackend([]string{rp.Broker}, "socialid-test", "jobs.")
	require.NoError(t, err)
	defer backend.Close()
	require.NoError(t, backend.EnsureTopics(ctx, 1, 1, "email"))
	// creating again is not an error
	require.NoError(t, backend.EnsureTopics(ctx, 1, 1, "email"))

	runner := newTestRunner(backend)
	var (
		mu   sync.Mutex
		seen []string
	)
	require.NoError(t, runner.Register("email", "welcome", 5, func(_ context.Context, job Job) error {
		payload, err := Decode[greeting](job)
		if err != nil {
			return err
		}
		mu.Lock()
		seen = append(seen, payload.Name)
		mu.Unlock()
		return nil
	}))

	for _, name := range []string{"Kim", "Lee", "Park"} {
		_, err := runner.Enqueue(ctx, "email", "welcome", greeting{Name: name})
		require.NoError(t, err)
	}

	stop := startRunner(t, runner)
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 3
	}, 30*time.Second, 50*time.Millisecond)
	stop()

	assert.ElementsMatch(t, []string{"Kim", "Lee", "Park"}, seen)
}

func TestKafkaBackendPushIsTransactional(t *testing.T) {
	rp := containers.NewRedpandaContainer(t)
	ctx := context.Background()

	backend, err := NewKafkaBackend([]string{rp.Broker}, "socialid-tx", "jobs.")
	require.NoError(t, err)
	defer backend.Close()
	require.NoError(t, backend.EnsureTopics(ctx, 1, 1, "auth", "user"))

	runner := newTestRunner(backend)
	refs, err := runner.EnqueueAll(ctx,
		Request{Queue: "auth", Name: "addAuthUserToDB", Payload: greeting{Name: "Kim"}},
		Request{Queue: "user", Name: "addUserToDB", Payload: greeting{Name: "Kim"}},
	)
	require.NoError(t, err)
	require.Len(t, refs, 2)

	for i, queue := range []string{"auth", "user"} {
		var deliveries []Delivery
		require.Eventually(t, func() bool {
			fetchCtx, cancel := context.WithTimeout(ctx, time.Second)
			defer cancel()
			deliveries, _ = backend.Fetch(fetchCtx, queue, 10)
			return len(deliveries) > 0
		}, 30*time.Second, 100*time.Millisecond)
		require.Len(t, deliveries, 1)
		assert.Equal(t, refs[i].ID, deliveries[0].Job.ID)
		require.NoError(t, backend.Ack(ctx, queue, deliveries))
	}

	t.Run("unreadable records get distinct ids", func(t *testing.T) {
		require.NoError(t, backend.producer.BeginTransaction())
		err := backend.producer.ProduceSync(ctx,
			&kgo.Record{Topic: backend.topic("auth"), Value: []byte("{not json")},
			&kgo.Record{Topic: backend.topic("auth"), Value: []byte("also not json")},
		).FirstErr()
		require.NoError(t, err)
		require.NoError(t, backend.producer.EndTransaction(ctx, kgo.TryCommit))

		var deliveries []Delivery
		require.Eventually(t, func() bool {
			fetchCtx, cancel := context.WithTimeout(ctx, time.Second)
			defer cancel()
			batch, _ := backend.Fetch(fetchCtx, "auth", 10)
			deliveries = append(deliveries, batch...)
			return len(deliveries) >= 2
		}, 30*time.Second, 100*time.Millisecond)
		require.Len(t, deliveries, 2)
		assert.NotZero(t, deliveries[0].Job.ID)
		assert.NotEqual(t, deliveries[0].Job.ID, deliveries[1].Job.ID)
	})
}
