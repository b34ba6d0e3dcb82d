package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialid/internal/auth/models"
	"socialid/internal/auth/service"
	"socialid/internal/jobs"
	"socialid/internal/mail"
	"socialid/internal/platform/config"
)

func deadLetter(t *testing.T, queue, name string, payload any) jobs.DeadLetter {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	return jobs.DeadLetter{
		Job:      jobs.Job{ID: ulid.Make(), Queue: queue, Name: name, Payload: data},
		Error:    "constraint violation",
		FailedAt: time.Now().UTC(),
	}
}

func TestRedactDeadLetter(t *testing.T) {
	t.Run("persist identity job hides the password hash", func(t *testing.T) {
		entry := deadLetter(t, service.QueueAuth, service.JobAddAuthUser, &models.AuthIdentity{
			ID:           uuid.New(),
			Username:     "Kim",
			Email:        "Kim@test.com",
			PasswordHash: "$argon2id$v=19$secret",
		})

		got := redactDeadLetter(entry)
		assert.NotContains(t, string(got.Job.Payload), "secret")

		var fields map[string]any
		require.NoError(t, json.Unmarshal(got.Job.Payload, &fields))
		assert.Equal(t, "[REDACTED]", fields["passwordHash"])
		assert.Equal(t, "Kim", fields["username"])
		assert.Equal(t, entry.Job.ID, got.Job.ID)
		assert.Contains(t, string(entry.Job.Payload), "secret", "input entry is left untouched")
	})

	t.Run("email job hides the body", func(t *testing.T) {
		entry := deadLetter(t, service.QueueEmail, service.JobForgotPasswordEmail, mail.Message{
			To:      "Kim@test.com",
			Subject: "Reset your password",
			HTML:    `<a href="https://social.example/reset-password?token=abc">reset</a>`,
		})

		got := redactDeadLetter(entry)
		assert.NotContains(t, string(got.Job.Payload), "token=abc")
		assert.Contains(t, string(got.Job.Payload), "Kim@test.com")
	})

	t.Run("payloads without credentials are unchanged", func(t *testing.T) {
		entry := deadLetter(t, service.QueueUser, service.JobAddUser, map[string]string{"username": "Kim"})
		assert.Equal(t, entry, redactDeadLetter(entry))

		raw := jobs.DeadLetter{Job: jobs.Job{ID: ulid.Make(), Queue: "auth", Payload: json.RawMessage("{not json")}}
		assert.Equal(t, raw, redactDeadLetter(raw))
	})
}

func TestDeadLettersCmdRedactsOutput(t *testing.T) {
	cfg := config.Default()
	cfg.Jobs.DeadLetterPath = filepath.Join(t.TempDir(), "dead-letters.db")

	store, err := jobs.OpenBoltDeadLetters(cfg.Jobs.DeadLetterPath)
	require.NoError(t, err)
	require.NoError(t, store.Put(context.Background(), deadLetter(t, service.QueueAuth, service.JobAddAuthUser, &models.AuthIdentity{
		ID:           uuid.New(),
		Username:     "Kim",
		PasswordHash: "$argon2id$v=19$secret",
	})))
	require.NoError(t, store.Close())

	cmd := NewDeadLettersCmd(func(*cobra.Command) (config.Config, error) { return cfg, nil })
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--queue", service.QueueAuth})
	require.NoError(t, cmd.ExecuteContext(context.Background()))

	assert.NotContains(t, out.String(), "secret")
	assert.Contains(t, out.String(), "[REDACTED]")
	assert.Contains(t, out.String(), "constraint violation")
}
