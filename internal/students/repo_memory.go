package students

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/scholaris/scholaris/internal/shared"
)

type memoryProfile struct {
	Profile
	seq uint64
}

// MemoryRepository keeps profiles in process memory.
type MemoryRepository struct {
	mu   sync.RWMutex
	rows map[string]memoryProfile
	seq  uint64
}

// NewMemoryRepository constructs an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[string]memoryProfile)}
}

// Create stores a profile.
func (r *MemoryRepository) Create(_ context.Context, p Profile) (Profile, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.EnrolledAt.IsZero() {
		p.EnrolledAt = time.Now().UTC()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[p.ID]; ok {
		return Profile{}, shared.ErrConflict
	}
	r.seq++
	r.rows[p.ID] = memoryProfile{Profile: p, seq: r.seq}
	return p, nil
}

// FindByID returns the profile with the given id.
func (r *MemoryRepository) FindByID(_ context.Context, id string) (Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.rows[id]
	if !ok {
		return Profile{}, shared.ErrNotFound
	}
	return row.Profile, nil
}

// FindByIdentity returns the profile linked to identityID.
func (r *MemoryRepository) FindByIdentity(_ context.Context, identityID string) (Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, row := range r.rows {
		if row.IdentityID == identityID {
			return row.Profile, nil
		}
	}
	return Profile{}, shared.ErrNotFound
}

// List returns profiles newest enrolment first; ties go to the later insert.
func (r *MemoryRepository) List(_ context.Context) ([]Profile, error) {
	r.mu.RLock()
	rows := make([]memoryProfile, 0, len(r.rows))
	for _, row := range r.rows {
		rows = append(rows, row)
	}
	r.mu.RUnlock()

	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].EnrolledAt.Equal(rows[j].EnrolledAt) {
			return rows[i].EnrolledAt.After(rows[j].EnrolledAt)
		}
		return rows[i].seq > rows[j].seq
	})
	out := make([]Profile, len(rows))
	for i, row := range rows {
		out[i] = row.Profile
	}
	return out, nil
}

// Update applies changes to a stored profile.
func (r *MemoryRepository) Update(_ context.Context, id string, changes Changes) (Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return Profile{}, shared.ErrNotFound
	}
	row.Profile = changes.apply(row.Profile)
	r.rows[id] = row
	return row.Profile, nil
}

// Delete removes a profile.
func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return shared.ErrNotFound
	}
	delete(r.rows, id)
	return nil
}
