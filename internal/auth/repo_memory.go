package auth

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scholaris/scholaris/internal/shared"
)

// MemoryRepository is an in-process Repository for development and tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[string]Identity
	byEmail map[string]string
}

// NewMemoryRepository constructs an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    map[string]Identity{},
		byEmail: map[string]string{},
	}
}

func (r *MemoryRepository) Create(ctx context.Context, identity Identity) (Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity.Email = NormalizeEmail(identity.Email)
	if _, exists := r.byEmail[identity.Email]; exists {
		return Identity{}, shared.ErrConflict
	}
	identity.ID = uuid.NewString()
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = time.Now().UTC()
	}
	r.byID[identity.ID] = identity
	r.byEmail[identity.Email] = identity.ID
	return identity, nil
}

func (r *MemoryRepository) FindByEmail(ctx context.Context, email string) (Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[NormalizeEmail(email)]
	if !ok {
		return Identity{}, shared.ErrNotFound
	}
	return r.byID[id], nil
}

func (r *MemoryRepository) FindByID(ctx context.Context, id string) (Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	identity, ok := r.byID[id]
	if !ok {
		return Identity{}, shared.ErrNotFound
	}
	return identity, nil
}

func (r *MemoryRepository) Update(ctx context.Context, identity Identity) (Identity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.byID[identity.ID]
	if !ok {
		return Identity{}, shared.ErrNotFound
	}
	identity.Email = NormalizeEmail(identity.Email)
	if owner, taken := r.byEmail[identity.Email]; taken && owner != identity.ID {
		return Identity{}, shared.ErrConflict
	}
	delete(r.byEmail, current.Email)
	identity.CreatedAt = current.CreatedAt
	r.byID[identity.ID] = identity
	r.byEmail[identity.Email] = identity.ID
	return identity, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.byID[id]
	if !ok {
		return shared.ErrNotFound
	}
	delete(r.byID, id)
	delete(r.byEmail, identity.Email)
	return nil
}

func (r *MemoryRepository) ListByRole(ctx context.Context, role Role) ([]Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Identity
	for _, identity := range r.byID {
		if identity.Role == role {
			out = append(out, identity)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

var _ Repository = (*MemoryRepository)(nil)
