package service

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/ziminpro/ums/internal/domain"
)

// TokenService issues and validates signed HS256 claims tokens. The secret
// is fixed at startup and shared by every verifier in the process.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService signing with secret and issuing
// tokens valid for ttl.
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl}
}

// Issue signs a token carrying the user's identity and role claims.
func (s *TokenService) Issue(userID uuid.UUID, email, name string, roles []string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   userID.String(),
		"email": email,
		"name":  name,
		"roles": roles,
		"iat":   now.Unix(),
		"exp":   now.Add(s.ttl).Unix(),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Validate reports whether the token's signature verifies against the
// configured secret and its expiry has not passed. Malformed input is
// simply invalid, never an error.
func (s *TokenService) Validate(tokenString string) bool {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	return err == nil && token.Valid
}

// ExtractUserID parses the subject claim without verifying the signature.
// Callers must have accepted the token via Validate first; an unvalidated
// token's claims are untrusted input.
func (s *TokenService) ExtractUserID(tokenString string) (uuid.UUID, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return uuid.Nil, fmt.Errorf("%w: %v", domain.ErrMalformedToken, err)
	}
	sub, _ := claims["sub"].(string)
	id, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid subject claim", domain.ErrMalformedToken)
	}
	return id, nil
}
