package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"instashare/internal/config"
	"instashare/internal/model"
	"instashare/internal/repository"
)

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrUsernameTaken      = errors.New("username already taken")
	ErrTokenInvalid       = errors.New("token is invalid or expired")
)

// RegisterInput carries a registration request.
type RegisterInput struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

// LoginInput carries a login request.
type LoginInput struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthService defines account and token use cases.
type AuthService interface {
	// Register creates a new account with a bcrypt-hashed password.
	Register(ctx context.Context, in RegisterInput) (*model.User, error)

	// Login verifies credentials and returns a signed JWT plus the user.
	Login(ctx context.Context, in LoginInput) (string, *model.User, error)

	// VerifyToken validates a JWT and returns the user ID it was issued to.
	VerifyToken(token string) (string, error)
}

type authService struct {
	users    repository.UserRepository
	secret   []byte
	ttl      time.Duration
	validate *validator.Validate
}

// NewAuthService constructs a new AuthService.
func NewAuthService(users repository.UserRepository, cfg config.AuthConfig) AuthService {
	return &authService{
		users:    users,
		secret:   []byte(cfg.JWTSecret),
		ttl:      time.Duration(cfg.TokenTTLMin) * time.Minute,
		validate: validator.New(),
	}
}

func (s *authService) Register(ctx context.Context, in RegisterInput) (*model.User, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("validate registration: %w", err)
	}

	_, err := s.users.FindByUsername(ctx, in.Username)
	if err == nil {
		return nil, ErrUsernameTaken
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("check username: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &model.User{
		ID:           uuid.New().String(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	stored, err := s.users.Create(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return stored, nil
}

func (s *authService) Login(ctx context.Context, in LoginInput) (string, *model.User, error) {
	if err := s.validate.Struct(in); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	u, err := s.users.FindByUsername(ctx, in.Username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil, ErrInvalidCredentials
		}
		return "", nil, fmt.Errorf("find user: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   u.ID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return token, u, nil
}

func (s *authService) VerifyToken(token string) (string, error) {
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrTokenInvalid
	}
	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", ErrTokenInvalid
	}
	return claims.Subject, nil
}
