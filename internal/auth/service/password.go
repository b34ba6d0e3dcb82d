package service

import (
	"context"
	"net/url"
	"strings"

	"socialid/internal/auth/device"
	"socialid/internal/auth/models"
	"socialid/internal/auth/resettoken"
	"socialid/internal/mail"
	dErrors "socialid/pkg/domain-errors"
	"socialid/pkg/requestcontext"
)

const confirmationDateLayout = "02/01/2006 15:04"

// RequestPasswordReset issues a one-hour reset token for the account with the
// given email and schedules the reset email. Only the token digest is stored.
func (s *Service) RequestPasswordReset(ctx context.Context, req *models.ForgotPasswordRequest) (result *models.MessageResult, err error) {
	ctx, span := s.startSpan(ctx, "RequestPasswordReset")
	defer func() { endSpan(span, err) }()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	identity, err := s.identities.FindByEmail(ctx, models.FirstLetterUppercase(req.Email))
	if err != nil {
		if isNotFound(err) {
			return nil, invalidCredentials()
		}
		return nil, internal(err, "failed to look up user")
	}

	token, digest, err := resettoken.Generate()
	if err != nil {
		return nil, internal(err, "failed to generate reset token")
	}
	expires := resettoken.ExpiresAt(requestcontext.Now(ctx))
	if err := s.identities.UpdateResetToken(ctx, identity.ID, digest, expires); err != nil {
		return nil, internal(err, "failed to store reset token")
	}

	html, err := mail.RenderPasswordReset(mail.PasswordResetParams{
		Username:  identity.Username,
		ResetLink: s.resetLink(token),
	})
	if err != nil {
		return nil, internal(err, "failed to render reset email")
	}
	if err := s.enqueueEmail(ctx, identity.Email, mail.SubjectPasswordReset, html); err != nil {
		return nil, err
	}

	s.metrics.IncrementPasswordResets("requested")
	s.logger.InfoContext(ctx, "password reset requested",
		"request_id", requestcontext.RequestID(ctx),
		"auth_id", identity.ID.String(),
	)
	return &models.MessageResult{Message: models.MessageResetEmailSent}, nil
}

// ResetPassword replaces the password of the account holding req.Token and
// clears the token. Mismatched passwords are rejected before any lookup. Of
// concurrent confirms with the same token, only one succeeds.
func (s *Service) ResetPassword(ctx context.Context, req *models.ResetPasswordRequest) (result *models.MessageResult, err error) {
	ctx, span := s.startSpan(ctx, "ResetPassword")
	defer func() { endSpan(span, err) }()

	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.Password != req.ConfirmPassword {
		return nil, dErrors.New(dErrors.CodePasswordMismatch, msgPasswordMismatch)
	}

	now := requestcontext.Now(ctx)
	digest := resettoken.Digest(req.Token)
	identity, err := s.identities.FindByResetToken(ctx, digest, now)
	if err != nil {
		if isNotFound(err) {
			s.metrics.IncrementPasswordResets("expired")
			return nil, dErrors.New(dErrors.CodeTokenExpired, msgTokenExpired)
		}
		return nil, internal(err, "failed to look up reset token")
	}

	passwordHash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, internal(err, "failed to hash password")
	}
	// the token may have been consumed or replaced since the lookup
	if err := s.identities.ResetPassword(ctx, identity.ID, digest, now, passwordHash); err != nil {
		if isNotFound(err) {
			s.metrics.IncrementPasswordResets("expired")
			return nil, dErrors.New(dErrors.CodeTokenExpired, msgTokenExpired)
		}
		return nil, internal(err, "failed to update password")
	}

	html, err := mail.RenderPasswordResetConfirmation(mail.PasswordResetConfirmationParams{
		Username:  identity.Username,
		Email:     identity.Email,
		IPAddress: requestcontext.ClientIP(ctx),
		Device:    device.ParseUserAgent(requestcontext.UserAgent(ctx)),
		Date:      now.Format(confirmationDateLayout),
	})
	if err != nil {
		return nil, internal(err, "failed to render confirmation email")
	}
	if err := s.enqueueEmail(ctx, identity.Email, mail.SubjectPasswordResetConfirmation, html); err != nil {
		return nil, err
	}

	s.metrics.IncrementPasswordResets("completed")
	s.logger.InfoContext(ctx, "password reset",
		"request_id", requestcontext.RequestID(ctx),
		"auth_id", identity.ID.String(),
	)
	return &models.MessageResult{Message: models.MessagePasswordReset}, nil
}

func (s *Service) enqueueEmail(ctx context.Context, to, subject, html string) error {
	msg := mail.Message{To: to, Subject: subject, HTML: html}
	if _, err := s.queue.Enqueue(ctx, QueueEmail, JobForgotPasswordEmail, msg); err != nil {
		return internal(err, "failed to schedule email")
	}
	return nil
}

func (s *Service) resetLink(token string) string {
	return strings.TrimRight(s.clientURL, "/") + "/reset-password?token=" + url.QueryEscape(token)
}
