package jwttoken

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialid/internal/auth/models"
	dErrors "socialid/pkg/domain-errors"
)

var (
	jwtService = NewJWTService("test-signing-key", "test-issuer", time.Hour)
	profileID  = uuid.New()
	identity   = &models.AuthIdentity{
		ID:          uuid.New(),
		UID:         123456789012,
		Username:    "Kim",
		Email:       "Kim@test.com",
		AvatarColor: "red",
	}
)

func Test_IssueSessionToken(t *testing.T) {
	token, err := jwtService.IssueSessionToken(profileID, identity)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := jwtService.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, profileID.String(), claims.UserID)
	assert.Equal(t, identity.UID, claims.UID)
	assert.Equal(t, "Kim@test.com", claims.Email)
	assert.Equal(t, "Kim", claims.Username)
	assert.Equal(t, "red", claims.AvatarColor)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)

	id, err := claims.ProfileID()
	require.NoError(t, err)
	assert.Equal(t, profileID, id)
}

func Test_IssueSessionToken_NoExpiry(t *testing.T) {
	svc := NewJWTService("test-signing-key", "test-issuer", 0)
	token, err := svc.IssueSessionToken(profileID, identity)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Nil(t, claims.ExpiresAt)
}

func Test_ValidateToken_Missing(t *testing.T) {
	_, err := jwtService.ValidateToken("")
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, MessageTokenMissing))
}

func Test_ValidateToken_InvalidToken(t *testing.T) {
	_, err := jwtService.ValidateToken("invalid-token-string")
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, MessageTokenInvalid))
}

func Test_ValidateToken_WrongKey(t *testing.T) {
	other := NewJWTService("another-key", "test-issuer", time.Hour)
	token, err := other.IssueSessionToken(profileID, identity)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, MessageTokenInvalid))
}

func Test_ValidateToken_ExpiredToken(t *testing.T) {
	svc := NewJWTService("test-signing-key", "test-issuer", time.Minute)
	svc.now = func() time.Time { return time.Now().Add(-time.Hour) }
	token, err := svc.IssueSessionToken(profileID, identity)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(token)
	require.ErrorIs(t, err, dErrors.New(dErrors.CodeUnauthorized, MessageTokenInvalid))
	assert.True(t, errors.Is(err, jwt.ErrTokenExpired))
}

func Test_ValidateToken_RejectsNoneAlgorithm(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		UserID:           profileID.String(),
		RegisteredClaims: jwt.RegisteredClaims{Issuer: "test-issuer"},
	})
	signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = jwtService.ValidateToken(signed)
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}

func Test_ValidateSession(t *testing.T) {
	token, err := jwtService.IssueSessionToken(profileID, identity)
	require.NoError(t, err)

	id, err := jwtService.ValidateSession(token)
	require.NoError(t, err)
	assert.Equal(t, profileID, id)

	_, err = jwtService.ValidateSession(token + "x")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
}
