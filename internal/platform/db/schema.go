package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the identity and student profile tables. Profiles carry no
// foreign key to identities: the two are written independently.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS identities (
	id uuid PRIMARY KEY,
	email text NOT NULL UNIQUE,
	password_hash text NOT NULL,
	role text NOT NULL CHECK (role IN ('admin', 'student')),
	is_verified boolean NOT NULL DEFAULT true,
	created_at timestamptz NOT NULL DEFAULT now()
)`,
	`CREATE TABLE IF NOT EXISTS student_profiles (
	id uuid PRIMARY KEY,
	name text NOT NULL DEFAULT '',
	email text NOT NULL DEFAULT '',
	course text NOT NULL DEFAULT '',
	enrolled_at timestamptz NOT NULL DEFAULT now(),
	identity_id uuid NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS student_profiles_identity_idx ON student_profiles (identity_id)`,
	`CREATE INDEX IF NOT EXISTS student_profiles_enrolled_idx ON student_profiles (enrolled_at DESC)`,
}

// EnsureSchema applies Schema in a single transaction.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	return WithTx(ctx, pool, func(tx pgx.Tx) error {
		for _, stmt := range Schema {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("platform/db: apply schema: %w", err)
			}
		}
		return nil
	})
}

// WithTx executes fn within a transaction, rolling back on error.
func WithTx(ctx context.Context, pool *pgxpool.Pool, fn func(pgx.Tx) error) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	return nil
}
