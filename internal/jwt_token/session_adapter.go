package jwttoken

import "github.com/google/uuid"

// ValidateSession validates a session token and returns its profile id. It
// lets the HTTP auth middleware depend on a profile id instead of Claims.
func (s *JWTService) ValidateSession(token string) (uuid.UUID, error) {
	claims, err := s.ValidateToken(token)
	if err != nil {
		return uuid.Nil, err
	}
	return claims.ProfileID()
}
