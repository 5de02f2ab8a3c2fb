// Package auth implements the moderation board's admin gate: a configured
// admin credential is exchanged for a signed token, and admin routes verify
// that token. There is no user store; the session is whatever the token says.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/elevityx/truckeelights/internal/domain"
)

const (
	issuer    = "truckeelights"
	RoleAdmin = "admin"
)

type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

type Service struct {
	secret     []byte
	adminEmail string
	adminHash  string
	tokenTTL   time.Duration
}

func New(secret, adminEmail, adminHash string) *Service {
	return &Service{
		secret:     []byte(secret),
		adminEmail: adminEmail,
		adminHash:  adminHash,
		tokenTTL:   24 * time.Hour,
	}
}

// Login checks the credential pair against the configured admin account and
// returns a signed token. Bad credentials are ErrAuthFailed, never a reason
// breakdown.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	if len(s.secret) == 0 || s.adminHash == "" {
		return "", domain.ErrAuthFailed
	}
	if email != s.adminEmail {
		return "", domain.ErrAuthFailed
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.adminHash), []byte(password)); err != nil {
		return "", domain.ErrAuthFailed
	}

	now := time.Now()
	claims := &Claims{
		Email: email,
		Role:  RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a token and requires the admin role.
func (s *Service) Verify(tokenString string) (*Claims, error) {
	if len(s.secret) == 0 {
		return nil, domain.ErrAuthFailed
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, domain.ErrAuthFailed
	}
	if claims.Role != RoleAdmin {
		return nil, domain.ErrAuthFailed
	}
	return claims, nil
}

// HashPassword is a convenience for provisioning ADMIN_PASSWORD_HASH.
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
