package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/storepilot/storepilot/internal/domain"
	"github.com/storepilot/storepilot/pkg/util"
)

// ErrInvalidCredentials is returned on login with an unknown email or wrong
// password. It deliberately does not distinguish the two.
var ErrInvalidCredentials = errors.New("invalid credentials")

const minPasswordLength = 8

// AuthService registers accounts and issues identity tokens. The first
// registered account becomes the admin; every later one is a tenant.
type AuthService struct {
	users     domain.UserRepository
	jwtSecret string
	jwtExpiry time.Duration
	logger    *slog.Logger
}

func NewAuthService(users domain.UserRepository, jwtSecret string, jwtExpiry time.Duration, logger *slog.Logger) *AuthService {
	return &AuthService{
		users:     users,
		jwtSecret: jwtSecret,
		jwtExpiry: jwtExpiry,
		logger:    logger.With("component", "auth_service"),
	}
}

// Register creates an account and returns it with a fresh token.
func (s *AuthService) Register(ctx context.Context, email, password string) (*domain.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, "", fmt.Errorf("%w: invalid email address", domain.ErrValidation)
	}
	if len(password) < minPasswordLength {
		return nil, "", fmt.Errorf("%w: password must be at least %d characters", domain.ErrValidation, minPasswordLength)
	}

	hash, err := util.HashPassword(password)
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	role := domain.RoleTenant
	count, err := s.users.Count(ctx)
	if err != nil {
		return nil, "", fmt.Errorf("count users: %w", err)
	}
	if count == 0 {
		role = domain.RoleAdmin
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, "", err
	}

	token, err := util.GenerateToken(user.ID, user.Role, s.jwtSecret, s.jwtExpiry)
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}

	s.logger.Info("account registered", "user_id", user.ID, "role", user.Role)
	return user, token, nil
}

// Login verifies credentials and returns a fresh token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}
	if !util.CheckPasswordHash(password, user.PasswordHash) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := util.GenerateToken(user.ID, user.Role, s.jwtSecret, s.jwtExpiry)
	if err != nil {
		return nil, "", fmt.Errorf("generate token: %w", err)
	}
	return user, token, nil
}

// Identify resolves a bearer token into the acting identity.
func (s *AuthService) Identify(tokenString string) (domain.Identity, error) {
	claims, err := util.ValidateToken(tokenString, s.jwtSecret)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %s", domain.ErrUnauthenticated, err)
	}
	return domain.Identity{UserID: claims.UserID, Role: claims.Role}, nil
}
