package jwt

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Claims represents the identity token claims structure. Tokens are minted
// by the external identity service; this service verifies them with the
// shared secret and trusts the reputation snapshot they carry for the
// duration of the token. Grants land in the stored score and show up in the
// next minted token.
type Claims struct {
	UserID      uuid.UUID `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Reputation  int       `json:"reputation"`
	IsReviewer  bool      `json:"is_reviewer"`
	jwt.RegisteredClaims
}

// Service handles identity token operations
type Service struct {
	secret            string
	accessTokenExpiry time.Duration
}

// NewService creates a new JWT service
func NewService(secret string, accessExpiry time.Duration) *Service {
	return &Service{
		secret:            secret,
		accessTokenExpiry: accessExpiry,
	}
}

// GenerateToken generates a signed identity token. Used by tests and local
// tooling; production tokens come from the identity service.
func (s *Service) GenerateToken(userID uuid.UUID, displayName string, reputation int, isReviewer bool) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID:      userID,
		DisplayName: displayName,
		Reputation:  reputation,
		IsReviewer:  isReviewer,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    "crowdroutes-identity",
			Subject:   userID.String(),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return tokenString, nil
}

// ValidateToken validates and parses an identity token
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}

	return claims, nil
}

// IsTokenExpired checks if a token is expired without verifying it.
// Unparseable tokens are not expired, just invalid.
func (s *Service) IsTokenExpired(tokenString string) bool {
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, &Claims{})
	if err != nil {
		return false
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || claims.ExpiresAt == nil {
		return false
	}

	return claims.ExpiresAt.Time.Before(time.Now())
}
