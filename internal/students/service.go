package students

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/scholaris/scholaris/internal/auth"
	"github.com/scholaris/scholaris/internal/shared"
)

// ErrIdentityRef rejects a profile link to anything but an unlinked student identity.
var ErrIdentityRef = fmt.Errorf("user must reference a student identity without a profile: %w", shared.ErrValidation)

// DeleteMode selects which identity an admin delete removes alongside the profile.
type DeleteMode string

const (
	// DeleteLinked removes the identity referenced by the profile.
	DeleteLinked DeleteMode = "linked"
	// DeleteLegacy removes the identity whose id equals the profile id.
	DeleteLegacy DeleteMode = "legacy"
)

// ParseDeleteMode validates a configured delete mode.
func ParseDeleteMode(s string) (DeleteMode, error) {
	switch DeleteMode(s) {
	case DeleteLinked, "":
		return DeleteLinked, nil
	case DeleteLegacy:
		return DeleteLegacy, nil
	}
	return "", fmt.Errorf("unknown student delete mode %q", s)
}

// Config holds service tunables.
type Config struct {
	DefaultPassword string
	DeleteMode      DeleteMode
}

// Service implements student profile use cases.
type Service struct {
	repo       Repository
	identities auth.Repository
	hasher     *auth.PasswordHasher
	cfg        Config
	logger     *slog.Logger
	now        func() time.Time
}

// NewService wires a Service.
func NewService(logger *slog.Logger, repo Repository, identities auth.Repository, hasher *auth.PasswordHasher, cfg Config) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultPassword == "" {
		cfg.DefaultPassword = "changeme"
	}
	if cfg.DeleteMode == "" {
		cfg.DeleteMode = DeleteLinked
	}
	return &Service{
		repo:       repo,
		identities: identities,
		hasher:     hasher,
		cfg:        cfg,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ProvisionProfile creates the empty-course profile for a newly signed-up student.
func (s *Service) ProvisionProfile(ctx context.Context, identity auth.Identity, name string) error {
	_, err := s.repo.Create(ctx, Profile{
		Name:       name,
		Email:      identity.Email,
		EnrolledAt: s.now(),
		IdentityID: identity.ID,
	})
	return err
}

// Mine returns the profile owned by identityID.
func (s *Service) Mine(ctx context.Context, identityID string) (Profile, error) {
	return s.repo.FindByIdentity(ctx, identityID)
}

// UpdateMine applies a self-service update to the caller's profile.
func (s *Service) UpdateMine(ctx context.Context, identityID string, upd SelfUpdate) (Profile, error) {
	p, err := s.repo.FindByIdentity(ctx, identityID)
	if err != nil {
		return Profile{}, err
	}
	changes := upd.Changes()
	if changes.Empty() {
		return p, nil
	}
	return s.repo.Update(ctx, p.ID, changes)
}

// List returns every profile, most recently enrolled first.
func (s *Service) List(ctx context.Context) ([]Profile, error) {
	return s.repo.List(ctx)
}

// Create enrols a student: a student identity with the default password,
// then its profile. The two writes are not atomic.
func (s *Service) Create(ctx context.Context, in NewStudent) (Profile, error) {
	email := auth.NormalizeEmail(in.Email)
	if _, err := s.identities.FindByEmail(ctx, email); err == nil {
		return Profile{}, shared.ErrConflict
	} else if !errors.Is(err, shared.ErrNotFound) {
		return Profile{}, err
	}

	hash, err := s.hasher.Hash(ctx, s.cfg.DefaultPassword)
	if err != nil {
		return Profile{}, err
	}
	identity, err := s.identities.Create(ctx, auth.Identity{
		Email:        email,
		PasswordHash: hash,
		Role:         auth.RoleStudent,
		Verified:     true,
	})
	if err != nil {
		return Profile{}, err
	}

	p, err := s.repo.Create(ctx, Profile{
		Name:       in.Name,
		Email:      email,
		Course:     in.Course,
		EnrolledAt: s.now(),
		IdentityID: identity.ID,
	})
	if err != nil {
		s.logger.Warn("student identity left without profile",
			slog.String("identity_id", identity.ID), slog.Any("error", err))
		return Profile{}, err
	}
	return p, nil
}

// Update overwrites any profile field as an administrator. A new identity
// reference must point at a student identity not linked to another profile.
func (s *Service) Update(ctx context.Context, id string, changes Changes) (Profile, error) {
	if changes.Empty() {
		return s.repo.FindByID(ctx, id)
	}
	if changes.IdentityID != nil {
		if err := s.checkIdentityRef(ctx, id, *changes.IdentityID); err != nil {
			return Profile{}, err
		}
	}
	return s.repo.Update(ctx, id, changes)
}

func (s *Service) checkIdentityRef(ctx context.Context, profileID, identityID string) error {
	identity, err := s.identities.FindByID(ctx, identityID)
	if errors.Is(err, shared.ErrNotFound) {
		return ErrIdentityRef
	}
	if err != nil {
		return err
	}
	if identity.Role != auth.RoleStudent {
		return ErrIdentityRef
	}
	owner, err := s.repo.FindByIdentity(ctx, identityID)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return nil
	case err != nil:
		return err
	case owner.ID != profileID:
		return ErrIdentityRef
	}
	return nil
}

// Delete removes a profile and then an identity chosen by the delete mode.
// Only student identities are ever removed. Missing records are not an error.
func (s *Service) Delete(ctx context.Context, id string) error {
	identityID := id
	if s.cfg.DeleteMode == DeleteLinked {
		p, err := s.repo.FindByID(ctx, id)
		if errors.Is(err, shared.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		identityID = p.IdentityID
	}

	if err := s.repo.Delete(ctx, id); err != nil && !errors.Is(err, shared.ErrNotFound) {
		return err
	}

	logger := s.logger.With(slog.String("profile_id", id), slog.String("identity_id", identityID))
	identity, err := s.identities.FindByID(ctx, identityID)
	if errors.Is(err, shared.ErrNotFound) {
		return nil
	}
	if err != nil {
		logger.Warn("student profile deleted but identity remains", slog.Any("error", err))
		return err
	}
	if identity.Role != auth.RoleStudent {
		logger.Warn("identity linked from deleted profile is not a student, kept", slog.String("role", identity.Role.String()))
		return nil
	}
	if err := s.identities.Delete(ctx, identityID); err != nil && !errors.Is(err, shared.ErrNotFound) {
		logger.Warn("student profile deleted but identity remains", slog.Any("error", err))
		return err
	}
	return nil
}

// FindOrphans reports profiles whose identity is gone and student identities
// that never received a profile.
func (s *Service) FindOrphans(ctx context.Context) (OrphanReport, error) {
	report := OrphanReport{
		ProfilesWithoutIdentity:  []Profile{},
		IdentitiesWithoutProfile: []OrphanedIdentity{},
		ScannedAt:                s.now(),
	}

	profiles, err := s.repo.List(ctx)
	if err != nil {
		return OrphanReport{}, err
	}
	linked := make(map[string]struct{}, len(profiles))
	for _, p := range profiles {
		linked[p.IdentityID] = struct{}{}
		if _, err := s.identities.FindByID(ctx, p.IdentityID); err != nil {
			if !errors.Is(err, shared.ErrNotFound) {
				return OrphanReport{}, err
			}
			report.ProfilesWithoutIdentity = append(report.ProfilesWithoutIdentity, p)
		}
	}

	identities, err := s.identities.ListByRole(ctx, auth.RoleStudent)
	if err != nil {
		return OrphanReport{}, err
	}
	for _, identity := range identities {
		if _, ok := linked[identity.ID]; !ok {
			report.IdentitiesWithoutProfile = append(report.IdentitiesWithoutProfile, orphanedIdentity(identity))
		}
	}
	return report, nil
}

var _ auth.ProfileProvisioner = (*Service)(nil)
