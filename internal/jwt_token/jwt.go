package jwttoken

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"socialid/internal/auth/models"
	dErrors "socialid/pkg/domain-errors"
)

const (
	MessageTokenMissing = "Token is not available. Please login again."
	MessageTokenInvalid = "Token is invalid. Please login again."
)

// Claims is the session payload. UserID is the profile id, not the
// credential id.
type Claims struct {
	UserID      string `json:"userId"`
	UID         int64  `json:"uId"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	AvatarColor string `json:"avatarColor"`
	jwt.RegisteredClaims
}

// JWTService signs and validates HS256 session tokens.
type JWTService struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
	now        func() time.Time
}

// NewJWTService builds a service. A zero ttl issues tokens without an exp
// claim.
func NewJWTService(signingKey string, issuer string, ttl time.Duration) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		issuer:     issuer,
		ttl:        ttl,
		now:        time.Now,
	}
}

// IssueSessionToken signs a token for the signed-in user. profileID becomes
// the userId claim.
func (s *JWTService) IssueSessionToken(profileID uuid.UUID, identity *models.AuthIdentity) (string, error) {
	now := s.now()
	registered := jwt.RegisteredClaims{
		IssuedAt: jwt.NewNumericDate(now),
		Issuer:   s.issuer,
		Subject:  profileID.String(),
		ID:       uuid.NewString(),
	}
	if s.ttl > 0 {
		registered.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:           profileID.String(),
		UID:              identity.UID,
		Email:            identity.Email,
		Username:         identity.Username,
		AvatarColor:      identity.AvatarColor,
		RegisteredClaims: registered,
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "failed to sign session token")
	}
	return signed, nil
}

func (s *JWTService) ValidateToken(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, MessageTokenMissing)
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(s.issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		// expired, tampered and malformed tokens all read the same to clients
		return nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, MessageTokenInvalid)
	}
	if !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, MessageTokenInvalid)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok {
		return nil, dErrors.New(dErrors.CodeUnauthorized, MessageTokenInvalid)
	}
	return claims, nil
}

// ProfileID parses the userId claim.
func (c *Claims) ProfileID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.UserID)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeUnauthorized, MessageTokenInvalid)
	}
	return id, nil
}
