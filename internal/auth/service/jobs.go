package service

import (
	"context"
	"errors"
	"fmt"

	"socialid/internal/auth/models"
	"socialid/internal/jobs"
	"socialid/internal/mail"
	"socialid/pkg/platform/sentinel"
)

// JobRegistrar is the consumer side of the job runner.
type JobRegistrar interface {
	Register(queue, name string, concurrency int, handler jobs.Handler) error
}

// RegisterJobHandlers registers the persist and email handlers for the jobs
// this service enqueues. The email handler needs a mailer.
func (s *Service) RegisterJobHandlers(registrar JobRegistrar) error {
	if s.mailer == nil {
		return errors.New("mailer is required to handle email jobs")
	}
	if err := registrar.Register(QueueAuth, JobAddAuthUser, s.jobConcurrency, s.persistIdentity); err != nil {
		return err
	}
	if err := registrar.Register(QueueUser, JobAddUser, s.jobConcurrency, s.persistProfile); err != nil {
		return err
	}
	return registrar.Register(QueueEmail, JobForgotPasswordEmail, s.emailConcurrency, s.sendEmail)
}

func (s *Service) persistIdentity(ctx context.Context, job jobs.Job) error {
	identity, err := jobs.Decode[models.AuthIdentity](job)
	if err != nil {
		return err
	}
	if err := s.identities.Create(ctx, identity); err != nil {
		// Another identity took the username or email between the signup
		// check and this write.
		if errors.Is(err, sentinel.ErrConflict) {
			return jobs.Permanent(err)
		}
		return err
	}
	s.logger.DebugContext(ctx, "identity persisted", "job_id", job.ID.String(), "auth_id", identity.ID.String())
	return nil
}

func (s *Service) persistProfile(ctx context.Context, job jobs.Job) error {
	profile, err := jobs.Decode[models.UserProfile](job)
	if err != nil {
		return err
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return jobs.Permanent(err)
		}
		return err
	}
	s.logger.DebugContext(ctx, "profile persisted", "job_id", job.ID.String(), "profile_id", profile.ID.String())
	return nil
}

func (s *Service) sendEmail(ctx context.Context, job jobs.Job) error {
	msg, err := jobs.Decode[mail.Message](job)
	if err != nil {
		return err
	}
	if msg.To == "" {
		return jobs.Permanent(fmt.Errorf("email job %s has no recipient", job.ID))
	}
	return s.mailer.Send(ctx, *msg)
}
