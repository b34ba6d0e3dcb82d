package main

import (
	"github.com/spf13/cobra"
)

// NewWorkerCmd consumes the job queues until interrupted.
func NewWorkerCmd(load configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the background job workers",
		Long: `Consume the auth, user and emails queues: persist new identities and
profiles and deliver password reset email. Jobs that exhaust their
attempts are written to the dead-letter file.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := load(cmd)
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, newLogger(cfg), true)
			if err != nil {
				return err
			}
			defer a.Close()
			return a.runner.Run(cmd.Context())
		},
	}
}
