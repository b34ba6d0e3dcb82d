package models

import (
	"time"

	"github.com/google/uuid"
)

// NotificationSettings toggles which events a user is notified about.
type NotificationSettings struct {
	Messages  bool `json:"messages"`
	Reactions bool `json:"reactions"`
	Comments  bool `json:"comments"`
	Follows   bool `json:"follows"`
}

// SocialLinks are the user's external profile links.
type SocialLinks struct {
	Facebook  string `json:"facebook"`
	Instagram string `json:"instagram"`
	Twitter   string `json:"twitter"`
	Youtube   string `json:"youtube"`
}

// UserProfile is the denormalized public record that is cached on signup and
// served to clients. Identity fields are copies of AuthIdentity.
type UserProfile struct {
	ID             uuid.UUID            `json:"id"`
	AuthID         uuid.UUID            `json:"authId"`
	UID            int64                `json:"uId"`
	Username       string               `json:"username"`
	Email          string               `json:"email"`
	AvatarColor    string               `json:"avatarColor"`
	CreatedAt      time.Time            `json:"createdAt"`
	ProfilePicture string               `json:"profilePicture"`
	PostsCount     int                  `json:"postsCount"`
	FollowersCount int                  `json:"followersCount"`
	FollowingCount int                  `json:"followingCount"`
	Blocked        []uuid.UUID          `json:"blocked"`
	BlockedBy      []uuid.UUID          `json:"blockedBy"`
	Work           string               `json:"work"`
	School         string               `json:"school"`
	Location       string               `json:"location"`
	Quote          string               `json:"quote"`
	BgImageVersion string               `json:"bgImageVersion"`
	BgImageID      string               `json:"bgImageId"`
	Notifications  NotificationSettings `json:"notifications"`
	Social         SocialLinks          `json:"social"`
}

// NewUserProfile builds the profile created alongside identity at signup.
// Counters start at zero, every notification is enabled and links are empty.
func NewUserProfile(id uuid.UUID, identity *AuthIdentity) *UserProfile {
	return &UserProfile{
		ID:          id,
		AuthID:      identity.ID,
		UID:         identity.UID,
		Username:    identity.Username,
		Email:       identity.Email,
		AvatarColor: identity.AvatarColor,
		CreatedAt:   identity.CreatedAt,
		Blocked:     []uuid.UUID{},
		BlockedBy:   []uuid.UUID{},
		Notifications: NotificationSettings{
			Messages:  true,
			Reactions: true,
			Comments:  true,
			Follows:   true,
		},
	}
}

// MergeIdentity overwrites the denormalized identity fields with the values
// from the authoritative credential record.
func (p *UserProfile) MergeIdentity(identity *AuthIdentity) {
	p.AuthID = identity.ID
	p.UID = identity.UID
	p.Username = identity.Username
	p.Email = identity.Email
	p.AvatarColor = identity.AvatarColor
	p.CreatedAt = identity.CreatedAt
}
