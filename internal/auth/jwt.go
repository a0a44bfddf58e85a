package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/oklog/ulid/v2"

	"github.com/vidflow-dev/vidflow/internal/models"
)

// TokenType tells access and refresh tokens apart
type TokenType string

const (
	AccessToken  TokenType = "access"
	RefreshToken TokenType = "refresh"
)

// ErrWrongTokenType is returned when a refresh token is used as an access
// token or the other way around
var ErrWrongTokenType = errors.New("wrong token type")

// JWTClaims represents the JWT token claims
type JWTClaims struct {
	UserID string    `json:"user_id"`
	Email  string    `json:"email"`
	Type   TokenType `json:"typ"`
	jwt.RegisteredClaims
}

// Issuer signs and validates the token pair handed out at login
type Issuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	clock      clockwork.Clock
}

// NewIssuer creates an Issuer. A nil clock uses the real one.
func NewIssuer(secret string, accessTTL, refreshTTL time.Duration, clock clockwork.Clock) *Issuer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Issuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		clock:      clock,
	}
}

// IssuePair creates a fresh access and refresh token for a user
func (i *Issuer) IssuePair(userID, email string) (models.TokenPair, error) {
	access, err := i.generate(userID, email, AccessToken, i.accessTTL)
	if err != nil {
		return models.TokenPair{}, err
	}
	refresh, err := i.generate(userID, email, RefreshToken, i.refreshTTL)
	if err != nil {
		return models.TokenPair{}, err
	}
	return models.TokenPair{Access: access, Refresh: refresh}, nil
}

// IssueAccess creates an access token only, used by the refresh endpoint
func (i *Issuer) IssueAccess(userID, email string) (string, error) {
	return i.generate(userID, email, AccessToken, i.accessTTL)
}

func (i *Issuer) generate(userID, email string, typ TokenType, ttl time.Duration) (string, error) {
	if len(i.secret) == 0 {
		return "", fmt.Errorf("JWT secret not initialized")
	}

	now := i.clock.Now()
	claims := JWTClaims{
		UserID: userID,
		Email:  email,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			// tokens issued within the same second must still differ
			ID:        ulid.Make().String(),
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(i.secret)
}

// Validate parses a token, checks its signature, expiry and type, and
// returns its claims
func (i *Issuer) Validate(tokenString string, want TokenType) (*JWTClaims, error) {
	if len(i.secret) == 0 {
		return nil, fmt.Errorf("JWT secret not initialized")
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.clock.Now), jwt.WithExpirationRequired())

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Type != want {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}
