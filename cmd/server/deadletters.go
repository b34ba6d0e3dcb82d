package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"socialid/internal/auth/service"
	"socialid/internal/jobs"
)

// redactedFields are payload keys that carry credentials: password hashes of
// persist jobs, reset digests, and email bodies holding reset links.
var redactedFields = []string{"passwordHash", "passwordResetToken", "template"}

const redacted = `"[REDACTED]"`

// redactDeadLetter masks credential fields of a JSON object payload. Other
// payloads are returned unchanged.
func redactDeadLetter(entry jobs.DeadLetter) jobs.DeadLetter {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(entry.Job.Payload, &fields); err != nil {
		return entry
	}
	changed := false
	for _, key := range redactedFields {
		if _, ok := fields[key]; ok {
			fields[key] = json.RawMessage(redacted)
			changed = true
		}
	}
	if !changed {
		return entry
	}
	payload, err := json.Marshal(fields)
	if err != nil {
		return entry
	}
	entry.Job.Payload = payload
	return entry
}

// NewDeadLettersCmd lists jobs that exhausted their attempts with credential
// fields masked. The dead-letter file is locked while a worker has it open.
func NewDeadLettersCmd(load configLoader) *cobra.Command {
	var queues []string

	cmd := &cobra.Command{
		Use:   "deadletters",
		Short: "List dead-lettered jobs as JSON lines",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			store, err := jobs.OpenBoltDeadLetters(cfg.Jobs.DeadLetterPath)
			if err != nil {
				return err
			}
			defer store.Close()

			enc := json.NewEncoder(cmd.OutOrStdout())
			for _, queue := range queues {
				entries, err := store.List(cmd.Context(), queue)
				if err != nil {
					return err
				}
				for _, entry := range entries {
					if err := enc.Encode(redactDeadLetter(entry)); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&queues, "queue",
		[]string{service.QueueAuth, service.QueueUser, service.QueueEmail}, "queues to list")
	return cmd
}
