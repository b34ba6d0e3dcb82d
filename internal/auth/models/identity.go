package models

import (
	"time"

	"github.com/google/uuid"
)

// AuthIdentity is the credential record: who may sign in and how. The public,
// user-facing record is UserProfile.
type AuthIdentity struct {
	ID          uuid.UUID `json:"id"`
	UID         int64     `json:"uId"`
	Username    string    `json:"username"`
	Email       string    `json:"email"`
	AvatarColor string    `json:"avatarColor"`
	CreatedAt   time.Time `json:"createdAt"`

	// PasswordHash travels in job payloads so the persist worker can write it,
	// but it is stripped from every response model.
	PasswordHash string `json:"passwordHash"`

	// PasswordResetToken holds the digest of an issued reset token, never the
	// token itself.
	PasswordResetToken   string     `json:"passwordResetToken,omitempty"`
	PasswordResetExpires *time.Time `json:"passwordResetExpires,omitempty"`
}

// HasValidResetToken reports whether a reset digest is set and unexpired at now.
func (a *AuthIdentity) HasValidResetToken(now time.Time) bool {
	if a.PasswordResetToken == "" || a.PasswordResetExpires == nil {
		return false
	}
	return now.Before(*a.PasswordResetExpires)
}

// ClearResetToken unsets both reset fields.
func (a *AuthIdentity) ClearResetToken() {
	a.PasswordResetToken = ""
	a.PasswordResetExpires = nil
}
