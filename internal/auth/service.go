package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/scholaris/scholaris/internal/shared"
)

// ProfileProvisioner creates the student-facing record for a new student identity.
type ProfileProvisioner interface {
	ProvisionProfile(ctx context.Context, identity Identity, name string) error
}

// ServiceConfig tunes token lifetimes and signup policy.
type ServiceConfig struct {
	LoginTTL         time.Duration
	SignupTTL        time.Duration
	AllowAdminSignup bool
}

// SignupInput carries the signup form.
type SignupInput struct {
	Name     string
	Email    string
	Password string
	Role     string
}

// Service wraps authentication business rules.
type Service struct {
	repo     Repository
	hasher   *PasswordHasher
	tokens   *TokenService
	profiles ProfileProvisioner
	cfg      ServiceConfig
	logger   *slog.Logger
}

// NewService constructs a new Service. profiles may be nil when no student
// records are kept.
func NewService(logger *slog.Logger, repo Repository, hasher *PasswordHasher, tokens *TokenService, profiles ProfileProvisioner, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.LoginTTL <= 0 {
		cfg.LoginTTL = time.Hour
	}
	if cfg.SignupTTL <= 0 {
		cfg.SignupTTL = 24 * time.Hour
	}
	return &Service{repo: repo, hasher: hasher, tokens: tokens, profiles: profiles, cfg: cfg, logger: logger}
}

// Signup registers a new identity, provisions its student profile when the
// role is student, and issues a signup token.
func (s *Service) Signup(ctx context.Context, in SignupInput) (Session, error) {
	role := RoleStudent
	if strings.TrimSpace(in.Role) != "" {
		parsed, err := ParseRole(in.Role)
		if err != nil {
			return Session{}, fmt.Errorf("role must be admin or student: %w", shared.ErrValidation)
		}
		role = parsed
	}
	if role == RoleAdmin && !s.cfg.AllowAdminSignup {
		return Session{}, fmt.Errorf("admin signup disabled: %w", shared.ErrForbidden)
	}

	email := NormalizeEmail(in.Email)
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return Session{}, shared.ErrConflict
	} else if !errors.Is(err, shared.ErrNotFound) {
		return Session{}, err
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if err != nil {
		return Session{}, err
	}
	identity, err := s.repo.Create(ctx, Identity{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Verified:     true,
	})
	if err != nil {
		return Session{}, err
	}

	if role == RoleStudent && s.profiles != nil {
		if err := s.profiles.ProvisionProfile(ctx, identity, in.Name); err != nil {
			s.logger.Warn("signup left identity without profile",
				slog.String("identity_id", identity.ID), slog.Any("error", err))
			return Session{}, err
		}
	}

	token, exp, err := s.tokens.Issue(Claims{IdentityID: identity.ID, Role: identity.Role}, s.cfg.SignupTTL)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: exp, Identity: identity, Name: in.Name}, nil
}

// Login validates email/password credentials and issues a login token.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	identity, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Session{}, shared.ErrInvalidCredentials
		}
		return Session{}, err
	}
	ok, err := s.hasher.Compare(ctx, identity.PasswordHash, password)
	if err != nil {
		return Session{}, err
	}
	if !ok {
		return Session{}, shared.ErrInvalidCredentials
	}
	token, exp, err := s.tokens.Issue(Claims{IdentityID: identity.ID, Role: identity.Role, Email: identity.Email}, s.cfg.LoginTTL)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, ExpiresAt: exp, Identity: identity}, nil
}
