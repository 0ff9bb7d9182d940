package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"

	"github.com/mealpoint/mealpoint/internal/shared"
)

const revokedKeyPrefix = "auth:revoked:"

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	FindByUsername(ctx context.Context, username string) (User, error)
	GetByID(ctx context.Context, id int64) (User, error)
}

// Claims are the JWT claims of an issued token.
type Claims struct {
	jwt.RegisteredClaims
	UserID    int64  `json:"uid"`
	Role      string `json:"role"`
	CanteenID int64  `json:"canteen_id,omitempty"`
}

// Token is a signed bearer token with its metadata.
type Token struct {
	AccessToken string    `json:"access_token"`
	Role        string    `json:"role"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Service wraps authentication: credential checks, token issue and parse,
// and a Redis-backed revocation set keyed by token id.
type Service struct {
	repo     RepositoryPort
	redis    *redis.Client
	secret   []byte
	tokenTTL time.Duration
	now      func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, rdb *redis.Client, secret string, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}
	return &Service{repo: repo, redis: rdb, secret: []byte(secret), tokenTTL: tokenTTL, now: time.Now}
}

// Authenticate validates username/password credentials.
func (s *Service) Authenticate(ctx context.Context, username, password string) (User, error) {
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return User{}, shared.ErrInvalidCredentials
	}
	if !user.IsActive {
		return User{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, shared.ErrInvalidCredentials
	}
	return user, nil
}

// Login authenticates and issues a signed token.
func (s *Service) Login(ctx context.Context, username, password string) (Token, error) {
	user, err := s.Authenticate(ctx, username, password)
	if err != nil {
		return Token{}, err
	}

	now := s.now()
	expiresAt := now.Add(s.tokenTTL)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   user.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			Issuer:    "mealpoint",
		},
		UserID:    user.ID,
		Role:      user.Role,
		CanteenID: user.CanteenID,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Token{}, err
	}
	return Token{AccessToken: signed, Role: user.Role, ExpiresAt: expiresAt}, nil
}

// ParseToken validates a bearer token and returns the principal it names.
// Revoked tokens are rejected even before expiry.
func (s *Service) ParseToken(ctx context.Context, tokenStr string) (*shared.AuthContext, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("auth: invalid or expired token: %w", shared.ErrInvalidCredentials)
	}

	if s.redis != nil && claims.ID != "" {
		n, err := s.redis.Exists(ctx, revokedKeyPrefix+claims.ID).Result()
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return nil, fmt.Errorf("auth: token revoked: %w", shared.ErrInvalidCredentials)
		}
	}

	return &shared.AuthContext{
		UserID:    claims.UserID,
		Username:  claims.Subject,
		Role:      claims.Role,
		CanteenID: claims.CanteenID,
	}, nil
}

// Revoke invalidates a token for the remainder of its lifetime.
func (s *Service) Revoke(ctx context.Context, tokenStr string) error {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid || claims.ID == "" {
		return fmt.Errorf("auth: invalid token: %w", shared.ErrInvalidCredentials)
	}
	if s.redis == nil {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	return s.redis.Set(ctx, revokedKeyPrefix+claims.ID, "1", ttl).Err()
}

// GetUser fetches one account.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	return s.repo.GetByID(ctx, id)
}
