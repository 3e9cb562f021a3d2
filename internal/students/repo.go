package students

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/scholaris/scholaris/internal/shared"
)

// Repository persists student profiles.
type Repository interface {
	Create(ctx context.Context, p Profile) (Profile, error)
	FindByID(ctx context.Context, id string) (Profile, error)
	FindByIdentity(ctx context.Context, identityID string) (Profile, error)
	// List returns every profile, most recently enrolled first.
	List(ctx context.Context) ([]Profile, error)
	Update(ctx context.Context, id string, changes Changes) (Profile, error)
	Delete(ctx context.Context, id string) error
}

// PGRepository stores profiles in PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL-backed repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const profileSelect = `SELECT id::text, name, email, course, enrolled_at, identity_id::text FROM student_profiles`

// Create inserts a profile, assigning an id and enrolment time when absent.
func (r *PGRepository) Create(ctx context.Context, p Profile) (Profile, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.EnrolledAt.IsZero() {
		p.EnrolledAt = time.Now().UTC()
	}
	if _, err := uuid.Parse(p.IdentityID); err != nil {
		return Profile{}, fmt.Errorf("identity reference %q: %w", p.IdentityID, shared.ErrValidation)
	}
	_, err := r.pool.Exec(ctx, `INSERT INTO student_profiles (id, name, email, course, enrolled_at, identity_id)
VALUES ($1::uuid, $2, $3, $4, $5, $6::uuid)`, p.ID, p.Name, p.Email, p.Course, p.EnrolledAt, p.IdentityID)
	if err != nil {
		return Profile{}, fmt.Errorf("insert student profile: %w", err)
	}
	return p, nil
}

// FindByID loads a profile by its id.
func (r *PGRepository) FindByID(ctx context.Context, id string) (Profile, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Profile{}, shared.ErrNotFound
	}
	return scanProfile(r.pool.QueryRow(ctx, profileSelect+` WHERE id = $1::uuid`, id))
}

// FindByIdentity loads the profile linked to an identity.
func (r *PGRepository) FindByIdentity(ctx context.Context, identityID string) (Profile, error) {
	if _, err := uuid.Parse(identityID); err != nil {
		return Profile{}, shared.ErrNotFound
	}
	return scanProfile(r.pool.QueryRow(ctx, profileSelect+` WHERE identity_id = $1::uuid`, identityID))
}

// List returns all profiles ordered by enrolment, newest first.
func (r *PGRepository) List(ctx context.Context) ([]Profile, error) {
	rows, err := r.pool.Query(ctx, profileSelect+` ORDER BY enrolled_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list student profiles: %w", err)
	}
	defer rows.Close()
	var out []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Update overwrites the non-nil fields of changes.
func (r *PGRepository) Update(ctx context.Context, id string, changes Changes) (Profile, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Profile{}, shared.ErrNotFound
	}
	if changes.IdentityID != nil {
		if _, err := uuid.Parse(*changes.IdentityID); err != nil {
			return Profile{}, fmt.Errorf("identity reference %q: %w", *changes.IdentityID, shared.ErrValidation)
		}
	}
	row := r.pool.QueryRow(ctx, `UPDATE student_profiles SET
	name = COALESCE($2, name),
	email = COALESCE($3, email),
	course = COALESCE($4, course),
	enrolled_at = COALESCE($5, enrolled_at),
	identity_id = COALESCE($6::uuid, identity_id)
WHERE id = $1::uuid
RETURNING id::text, name, email, course, enrolled_at, identity_id::text`,
		id, changes.Name, changes.Email, changes.Course, changes.EnrolledAt, changes.IdentityID)
	return scanProfile(row)
}

// Delete removes a profile.
func (r *PGRepository) Delete(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return shared.ErrNotFound
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM student_profiles WHERE id = $1::uuid`, id)
	if err != nil {
		return fmt.Errorf("delete student profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func scanProfile(row pgx.Row) (Profile, error) {
	var p Profile
	if err := row.Scan(&p.ID, &p.Name, &p.Email, &p.Course, &p.EnrolledAt, &p.IdentityID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Profile{}, shared.ErrNotFound
		}
		return Profile{}, fmt.Errorf("scan student profile: %w", err)
	}
	p.EnrolledAt = p.EnrolledAt.UTC()
	return p, nil
}
