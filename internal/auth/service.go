package auth

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/mhp-app/backend/internal/models"
	"github.com/mhp-app/backend/internal/store"
	"github.com/mhp-app/backend/pkg/apperr"
	"github.com/mhp-app/backend/pkg/password"
)

// Service authenticates users against the user store.
type Service struct {
	users  store.UserStore
	jwt    *JWTService
	logger *zap.Logger
}

// NewService creates an auth service.
func NewService(users store.UserStore, jwt *JWTService, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{users: users, jwt: jwt, logger: logger}
}

// Session is a signed token plus the user it was issued for.
type Session struct {
	Token     string            `json:"access_token"`
	TokenType string            `json:"token_type"`
	User      models.UserPublic `json:"user"`
}

func (s *Service) session(u *models.User) (*Session, error) {
	token, err := s.jwt.Generate(u)
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "failed to generate token")
	}
	return &Session{Token: token, TokenType: "bearer", User: u.ToPublic()}, nil
}

// Login checks credentials. Unknown emails, wrong passwords and deactivated
// accounts all fail the same way.
func (s *Service) Login(ctx context.Context, email, pass string) (*Session, error) {
	u, err := s.users.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Wrap(apperr.TransientStoreError, err, "failed to load user")
	}
	if u == nil || !u.Active || !password.Matches(pass, u.Password) {
		s.logger.Warn("login failed", zap.String("email", email))
		return nil, apperr.New(apperr.NotAuthenticated, "invalid email or password")
	}
	s.logger.Info("login", zap.String("user_id", u.ID.String()))
	return s.session(u)
}

// RegisterInput is a self-service signup.
type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Team     string
}

// Register creates an active employee account and signs a token for it.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	u, err := s.CreateUser(ctx, CreateUserInput{
		Name: in.Name, Email: in.Email, Password: in.Password, Role: models.RoleEmployee, Team: in.Team,
	})
	if err != nil {
		return nil, err
	}
	return s.session(u)
}

// CreateUserInput is used by signup and by admins creating accounts.
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     models.Role
	Team     string
}

// CreateUser hashes the password and stores a new active user.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*models.User, error) {
	if !in.Role.Valid() {
		return nil, apperr.New(apperr.ValidationError, "invalid role %q", in.Role)
	}
	hash, err := password.Hash(in.Password)
	if password.IsPolicyError(err) {
		return nil, apperr.New(apperr.ValidationError, "%s", err.Error())
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.Internal, err, "failed to hash password")
	}
	u := &models.User{
		Name:     strings.TrimSpace(in.Name),
		Email:    strings.ToLower(strings.TrimSpace(in.Email)),
		Password: hash,
		Role:     in.Role,
		Team:     strings.TrimSpace(in.Team),
		Active:   true,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, apperr.New(apperr.Conflict, "email already registered")
		}
		return nil, apperr.Wrap(apperr.TransientStoreError, err, "failed to create user")
	}
	return u, nil
}

// EnsureAdmin creates an admin account for email unless one is already registered.
func (s *Service) EnsureAdmin(ctx context.Context, email, pass string) (bool, error) {
	_, err := s.users.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return false, apperr.Wrap(apperr.TransientStoreError, err, "failed to look up admin")
	}
	u, err := s.CreateUser(ctx, CreateUserInput{Name: "Administrator", Email: email, Password: pass, Role: models.RoleAdmin})
	if err != nil {
		return false, err
	}
	s.logger.Info("seeded admin user", zap.String("user_id", u.ID.String()), zap.String("email", u.Email))
	return true, nil
}

// Authenticate resolves a bearer token to the current, active user record.
func (s *Service) Authenticate(ctx context.Context, token string) (*models.User, error) {
	claims, err := s.jwt.Validate(token)
	if errors.Is(err, ErrTokenExpired) {
		return nil, apperr.Wrap(apperr.NotAuthenticated, err, "token expired")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.NotAuthenticated, err, "invalid token")
	}
	u, err := s.users.GetUser(ctx, claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.New(apperr.NotAuthenticated, "could not validate credentials")
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.TransientStoreError, err, "failed to load user")
	}
	if !u.Active {
		return nil, apperr.New(apperr.PermissionDenied, "user account is deactivated")
	}
	return u, nil
}
