// Package students manages student profiles linked to student identities.
package students

import (
	"time"

	"github.com/scholaris/scholaris/internal/auth"
)

// Profile is the student-facing record owned by exactly one student identity.
type Profile struct {
	ID         string    `json:"_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	Course     string    `json:"course"`
	EnrolledAt time.Time `json:"enrolledAt"`
	IdentityID string    `json:"user"`
}

// Changes lists profile fields to overwrite; nil fields are left untouched.
type Changes struct {
	Name       *string
	Email      *string
	Course     *string
	EnrolledAt *time.Time
	IdentityID *string
}

// Empty reports whether no field is set.
func (c Changes) Empty() bool {
	return c.Name == nil && c.Email == nil && c.Course == nil && c.EnrolledAt == nil && c.IdentityID == nil
}

func (c Changes) apply(p Profile) Profile {
	if c.Name != nil {
		p.Name = *c.Name
	}
	if c.Email != nil {
		p.Email = *c.Email
	}
	if c.Course != nil {
		p.Course = *c.Course
	}
	if c.EnrolledAt != nil {
		p.EnrolledAt = *c.EnrolledAt
	}
	if c.IdentityID != nil {
		p.IdentityID = *c.IdentityID
	}
	return p
}

// SelfUpdate is the subset of fields a student may change on their own profile.
type SelfUpdate struct {
	Name   *string
	Email  *string
	Course *string
}

// Changes converts the self-service update into repository changes.
func (u SelfUpdate) Changes() Changes {
	return Changes{Name: u.Name, Email: u.Email, Course: u.Course}
}

// NewStudent is the admin input for enrolling a student.
type NewStudent struct {
	Name   string
	Email  string
	Course string
}

// OrphanedIdentity is a student identity that has no profile.
type OrphanedIdentity struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
}

// OrphanReport lists records left behind by partially failed writes.
type OrphanReport struct {
	ProfilesWithoutIdentity  []Profile          `json:"profilesWithoutIdentity"`
	IdentitiesWithoutProfile []OrphanedIdentity `json:"identitiesWithoutProfile"`
	ScannedAt                time.Time          `json:"scannedAt"`
}

// Total returns the number of orphaned records.
func (r OrphanReport) Total() int {
	return len(r.ProfilesWithoutIdentity) + len(r.IdentitiesWithoutProfile)
}

func orphanedIdentity(i auth.Identity) OrphanedIdentity {
	return OrphanedIdentity{ID: i.ID, Email: i.Email, CreatedAt: i.CreatedAt}
}
