package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scholaris/scholaris/internal/shared"
)

// Repository is the credential store. Create and Update return
// shared.ErrConflict for a registered email; lookups and Delete return
// shared.ErrNotFound when nothing matches.
type Repository interface {
	Create(ctx context.Context, identity Identity) (Identity, error)
	FindByEmail(ctx context.Context, email string) (Identity, error)
	FindByID(ctx context.Context, id string) (Identity, error)
	Update(ctx context.Context, identity Identity) (Identity, error)
	Delete(ctx context.Context, id string) error
	ListByRole(ctx context.Context, role Role) ([]Identity, error)
}

// NormalizeEmail is the canonical form used for uniqueness checks.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const (
	identityColumns = `id, email, password_hash, role, is_verified, created_at`
	identitySelect  = `id::text, email, password_hash, role, is_verified, created_at`
)

// Create inserts a new identity.
func (r *PGRepository) Create(ctx context.Context, identity Identity) (Identity, error) {
	identity.ID = uuid.NewString()
	identity.Email = NormalizeEmail(identity.Email)
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = time.Now().UTC()
	}
	_, err := r.pool.Exec(ctx,
		`INSERT INTO identities (`+identityColumns+`) VALUES ($1, $2, $3, $4, $5, $6)`,
		identity.ID, identity.Email, identity.PasswordHash, identity.Role.String(), identity.Verified, identity.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return Identity{}, shared.ErrConflict
		}
		return Identity{}, err
	}
	return identity, nil
}

// FindByEmail fetches an identity by email.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (Identity, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+identitySelect+` FROM identities WHERE email = $1`, NormalizeEmail(email))
	return scanIdentity(row)
}

// FindByID fetches an identity by id.
func (r *PGRepository) FindByID(ctx context.Context, id string) (Identity, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Identity{}, shared.ErrNotFound
	}
	row := r.pool.QueryRow(ctx, `SELECT `+identitySelect+` FROM identities WHERE id = $1`, id)
	return scanIdentity(row)
}

// Update replaces the mutable fields of an identity.
func (r *PGRepository) Update(ctx context.Context, identity Identity) (Identity, error) {
	if _, err := uuid.Parse(identity.ID); err != nil {
		return Identity{}, shared.ErrNotFound
	}
	identity.Email = NormalizeEmail(identity.Email)
	tag, err := r.pool.Exec(ctx,
		`UPDATE identities SET email = $2, password_hash = $3, role = $4, is_verified = $5 WHERE id = $1`,
		identity.ID, identity.Email, identity.PasswordHash, identity.Role.String(), identity.Verified)
	if err != nil {
		if isUniqueViolation(err) {
			return Identity{}, shared.ErrConflict
		}
		return Identity{}, err
	}
	if tag.RowsAffected() == 0 {
		return Identity{}, shared.ErrNotFound
	}
	return r.FindByID(ctx, identity.ID)
}

// Delete removes an identity by id.
func (r *PGRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return shared.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM identities WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListByRole returns identities holding role, oldest first.
func (r *PGRepository) ListByRole(ctx context.Context, role Role) ([]Identity, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+identitySelect+` FROM identities WHERE role = $1 ORDER BY created_at`, role.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var identities []Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		identities = append(identities, identity)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return identities, nil
}

func scanIdentity(row pgx.Row) (Identity, error) {
	var (
		identity Identity
		role     string
	)
	err := row.Scan(&identity.ID, &identity.Email, &identity.PasswordHash, &role, &identity.Verified, &identity.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Identity{}, shared.ErrNotFound
		}
		return Identity{}, err
	}
	identity.Role, _ = ParseRole(role)
	return identity, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

var _ Repository = (*PGRepository)(nil)
