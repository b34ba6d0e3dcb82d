package jobs

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoltDeadLetters(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "dead-letters.db")

	store, err := OpenBoltDeadLetters(path)
	require.NoError(t, err)

	first, err := newJob("auth", "addAuthUserToDB", greeting{Name: "Kim"}, time.Now())
	require.NoError(t, err)
	second, err := newJob("auth", "addAuthUserToDB", greeting{Name: "Lee"}, time.Now())
	require.NoError(t, err)

	for _, job := range []Job{first, second} {
		require.NoError(t, store.Put(ctx, DeadLetter{Job: job, Error: "boom", FailedAt: time.Now()}))
	}
	require.NoError(t, store.Close())

	// entries survive reopening
	store, err = OpenBoltDeadLetters(path)
	require.NoError(t, err)
	defer store.Close()

	entries, err := store.List(ctx, "auth")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, first.ID, entries[0].Job.ID)
	assert.Equal(t, second.ID, entries[1].Job.ID)
	assert.JSONEq(t, `{"name":"Kim"}`, string(entries[0].Job.Payload))

	empty, err := store.List(ctx, "email")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestDecode(t *testing.T) {
	job, err := newJob("email", "welcome", greeting{Name: "Kim"}, time.Now())
	require.NoError(t, err)

	got, err := Decode[greeting](job)
	require.NoError(t, err)
	assert.Equal(t, "Kim", got.Name)

	job.Payload = []byte("{")
	_, err = Decode[greeting](job)
	require.Error(t, err)
	assert.True(t, IsPermanent(err))
}
