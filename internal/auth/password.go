package auth

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/semaphore"

	"github.com/scholaris/scholaris/internal/shared"
)

// PasswordHasher runs bcrypt through a bounded pool so concurrent signups
// cannot saturate every CPU.
type PasswordHasher struct {
	cost int
	pool *semaphore.Weighted
}

// NewPasswordHasher builds a hasher. Out-of-range costs fall back to
// bcrypt.DefaultCost; workers <= 0 uses the number of CPUs.
func NewPasswordHasher(cost, workers int) *PasswordHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &PasswordHasher{cost: cost, pool: semaphore.NewWeighted(int64(workers))}
}

// Hash returns a salted bcrypt hash of password.
func (h *PasswordHasher) Hash(ctx context.Context, password string) (string, error) {
	if err := h.pool.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer h.pool.Release(1)
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("password longer than 72 bytes: %w", shared.ErrValidation)
		}
		return "", err
	}
	return string(hashed), nil
}

// Compare reports whether password matches hash. A mismatch is not an error.
func (h *PasswordHasher) Compare(ctx context.Context, hash, password string) (bool, error) {
	if err := h.pool.Acquire(ctx, 1); err != nil {
		return false, err
	}
	defer h.pool.Release(1)
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, err
	}
}
