// Package auth issues and validates the bearer tokens that guard the admin API.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ScopeAdmin grants model bundle management.
const ScopeAdmin = "models:admin"

// Issuer is the iss claim of every token.
const Issuer = "listrank"

// Token lifetimes.
const (
	DefaultTokenTTL = time.Hour
	MaxTokenTTL     = 30 * 24 * time.Hour
)

// Default leeway for token validation.
const DefaultLeeway = 30 * time.Second

// Token errors
var (
	ErrInvalidToken      = errors.New("invalid token")
	ErrExpiredToken      = errors.New("token has expired")
	ErrEmptySubject      = errors.New("subject cannot be empty")
	ErrInvalidTTL        = errors.New("token lifetime out of range")
	ErrInsufficientScope = errors.New("token lacks the required scope")
	ErrNoSecret          = errors.New("signing secret is not configured")
)

// Claims are the JWT claims of an admin token.
type Claims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope"`
}

// TokenService signs and verifies HS256 tokens.
// Supports dual-key rotation: tokens are signed with the current secret but
// validate against either the current or the previous one.
type TokenService struct {
	currentSecret  []byte
	previousSecret []byte
	leeway         time.Duration
	now            func() time.Time
}

// NewTokenService creates a TokenService. Pass an empty previousSecret when
// no rotation is in progress.
func NewTokenService(currentSecret, previousSecret string) *TokenService {
	svc := &TokenService{
		currentSecret: []byte(currentSecret),
		leeway:        DefaultLeeway,
		now:           time.Now,
	}
	if previousSecret != "" {
		svc.previousSecret = []byte(previousSecret)
	}
	return svc
}

// WithLeeway returns a copy of s using the given clock skew allowance.
func (s *TokenService) WithLeeway(leeway time.Duration) *TokenService {
	cp := *s
	cp.leeway = leeway
	return &cp
}

// Issue signs an admin token for subject valid for ttl.
func (s *TokenService) Issue(subject string, ttl time.Duration) (string, error) {
	if len(s.currentSecret) == 0 {
		return "", ErrNoSecret
	}
	if subject == "" {
		return "", ErrEmptySubject
	}
	if ttl <= 0 || ttl > MaxTokenTTL {
		return "", fmt.Errorf("%w: %s (max %s)", ErrInvalidTTL, ttl, MaxTokenTTL)
	}

	now := s.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Scope: ScopeAdmin,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.currentSecret)
}

// Validate parses a token and checks its signature, expiry, issuer and scope.
func (s *TokenService) Validate(tokenString string) (*Claims, error) {
	if len(s.currentSecret) == 0 {
		return nil, ErrNoSecret
	}

	claims, err := s.parse(tokenString, s.currentSecret)
	if err != nil && s.previousSecret != nil && !errors.Is(err, jwt.ErrTokenExpired) {
		claims, err = s.parse(tokenString, s.previousSecret)
	}
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims.Scope != ScopeAdmin {
		return nil, ErrInsufficientScope
	}
	return claims, nil
}

func (s *TokenService) parse(tokenString string, secret []byte) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(s.leeway),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
