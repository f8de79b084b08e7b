package service

import (
	"crypto/subtle"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ibkr-relay/internal/config"
)

var (
	ErrInvalidSecret = errors.New("invalid dashboard secret")
	ErrInvalidToken  = errors.New("invalid token")
)

// AuthService issues and validates bearer tokens for the dashboard API.
// There are no user accounts; a caller who presents the configured dashboard
// secret gets a short-lived token.
type AuthService struct {
	cfg config.AuthConfig
}

// NewAuthService creates a new AuthService
func NewAuthService(cfg config.AuthConfig) *AuthService {
	return &AuthService{cfg: cfg}
}

// TokenResponse represents the JWT token response
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// IssueToken exchanges the dashboard secret for a signed token
func (s *AuthService) IssueToken(secret string) (*TokenResponse, error) {
	if s.cfg.DashboardSecret == "" ||
		subtle.ConstantTimeCompare([]byte(secret), []byte(s.cfg.DashboardSecret)) != 1 {
		return nil, ErrInvalidSecret
	}

	expireHours := s.cfg.ExpireHours
	if expireHours <= 0 {
		expireHours = 24
	}
	ttl := time.Duration(expireHours) * time.Hour

	claims := jwt.RegisteredClaims{
		Subject:   "dashboard",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return nil, err
	}

	return &TokenResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int(ttl.Seconds()),
	}, nil
}

// ValidateToken parses and verifies a bearer token
func (s *AuthService) ValidateToken(tokenString string) error {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, ErrInvalidToken
			}
			return []byte(s.cfg.JWTSecret), nil
		})
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	return nil
}
