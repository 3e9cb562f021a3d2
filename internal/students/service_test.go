package students

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/scholaris/scholaris/internal/auth"
	"github.com/scholaris/scholaris/internal/shared"
)

type fixture struct {
	svc        *Service
	repo       *MemoryRepository
	identities *auth.MemoryRepository
	hasher     *auth.PasswordHasher
}

func newFixture(t *testing.T, mode DeleteMode) fixture {
	t.Helper()
	repo := NewMemoryRepository()
	identities := auth.NewMemoryRepository()
	hasher := auth.NewPasswordHasher(bcrypt.MinCost, 2)
	svc := NewService(nil, repo, identities, hasher, Config{DeleteMode: mode})
	return fixture{svc: svc, repo: repo, identities: identities, hasher: hasher}
}

func (f fixture) signup(t *testing.T, name, email string) auth.Identity {
	t.Helper()
	identity, err := f.identities.Create(context.Background(), auth.Identity{Email: email, Role: auth.RoleStudent, Verified: true})
	require.NoError(t, err)
	require.NoError(t, f.svc.ProvisionProfile(context.Background(), identity, name))
	return identity
}

func strPtr(s string) *string { return &s }

func TestProvisionProfile(t *testing.T) {
	f := newFixture(t, DeleteLinked)
	identity := f.signup(t, "Ada", "ada@x.com")

	p, err := f.svc.Mine(context.Background(), identity.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ada", p.Name)
	assert.Equal(t, "ada@x.com", p.Email)
	assert.Empty(t, p.Course)
	assert.Equal(t, identity.ID, p.IdentityID)
	assert.False(t, p.EnrolledAt.IsZero())
}

func TestMineNotFound(t *testing.T) {
	f := newFixture(t, DeleteLinked)
	_, err := f.svc.Mine(context.Background(), "missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUpdateMineOnlyTouchesAllowedFields(t *testing.T) {
	f := newFixture(t, DeleteLinked)
	identity := f.signup(t, "Ada", "ada@x.com")
	before, err := f.svc.Mine(context.Background(), identity.ID)
	require.NoError(t, err)

	after, err := f.svc.UpdateMine(context.Background(), identity.ID, SelfUpdate{Course: strPtr("Maths")})
	require.NoError(t, err)
	assert.Equal(t, "Maths", after.Course)
	assert.Equal(t, before.Name, after.Name)
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, before.IdentityID, after.IdentityID)
	assert.True(t, before.EnrolledAt.Equal(after.EnrolledAt))
}

func TestCreateProvisionsIdentityWithDefaultPassword(t *testing.T) {
	f := newFixture(t, DeleteLinked)
	ctx := context.Background()

	p, err := f.svc.Create(ctx, NewStudent{Name: "A", Email: "A@x.com", Course: "CS"})
	require.NoError(t, err)
	assert.Equal(t, "CS", p.Course)
	assert.Equal(t, "a@x.com", p.Email)

	identity, err := f.identities.FindByID(ctx, p.IdentityID)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleStudent, identity.Role)
	ok, err := f.hasher.Compare(ctx, identity.PasswordHash, "changeme")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCreateDuplicateEmail(t *testing.T) {
	f := newFixture(t, DeleteLinked)
	f.signup(t, "Ada", "ada@x.com")

	_, err := f.svc.Create(context.Background(), NewStudent{Name: "B", Email: "ada@x.com"})
	require.ErrorIs(t, err, shared.ErrConflict)

	profiles, err := f.svc.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, profiles, 1)
}

func TestListNewestFirst(t *testing.T) {
	f := newFixture(t, DeleteLinked)
	ctx := context.Background()
	f.signup(t, "Old", "old@x.com")

	created, err := f.svc.Create(ctx, NewStudent{Name: "A", Email: "a@x.com", Course: "CS"})
	require.NoError(t, err)

	profiles, err := f.svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, created.ID, profiles[0].ID)
	assert.Equal(t, "Old", profiles[1].Name)
}

func TestAdminUpdateAnyField(t *testing.T) {
	f := newFixture(t, DeleteLinked)
	ctx := context.Background()
	p, err := f.svc.Create(ctx, NewStudent{Name: "A", Email: "a@x.com"})
	require.NoError(t, err)

	enrolled := time.Date(2020, 9, 1, 0, 0, 0, 0, time.UTC)
	updated, err := f.svc.Update(ctx, p.ID, Changes{Name: strPtr("B"), EnrolledAt: &enrolled})
	require.NoError(t, err)
	assert.Equal(t, "B", updated.Name)
	assert.True(t, enrolled.Equal(updated.EnrolledAt))
	assert.Equal(t, p.IdentityID, updated.IdentityID)

	_, err = f.svc.Update(ctx, "missing", Changes{Name: strPtr("C")})
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestAdminUpdateRejectsNonStudentIdentityRef(t *testing.T) {
	f := newFixture(t, DeleteLinked)
	ctx := context.Background()
	p, err := f.svc.Create(ctx, NewStudent{Name: "A", Email: "a@x.com"})
	require.NoError(t, err)
	other, err := f.svc.Create(ctx, NewStudent{Name: "B", Email: "b@x.com"})
	require.NoError(t, err)
	admin, err := f.identities.Create(ctx, auth.Identity{Email: "admin@x.com", Role: auth.RoleAdmin})
	require.NoError(t, err)

	cases := map[string]string{
		"admin identity":   admin.ID,
		"unknown identity": "does-not-exist",
		"already linked":   other.IdentityID,
	}
	for name, ref := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.Update(ctx, p.ID, Changes{IdentityID: strPtr(ref)})
			require.ErrorIs(t, err, ErrIdentityRef)
			assert.ErrorIs(t, err, shared.ErrValidation)

			stored, err := f.repo.FindByID(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, p.IdentityID, stored.IdentityID)
		})
	}
}

func TestAdminUpdateRelinksToFreeStudentIdentity(t *testing.T) {
	f := newFixture(t, DeleteLinked)
	ctx := context.Background()
	p, err := f.svc.Create(ctx, NewStudent{Name: "A", Email: "a@x.com"})
	require.NoError(t, err)
	free, err := f.identities.Create(ctx, auth.Identity{Email: "free@x.com", Role: auth.RoleStudent})
	require.NoError(t, err)

	same, err := f.svc.Update(ctx, p.ID, Changes{IdentityID: strPtr(p.IdentityID)})
	require.NoError(t, err)
	assert.Equal(t, p.IdentityID, same.IdentityID)

	moved, err := f.svc.Update(ctx, p.ID, Changes{IdentityID: strPtr(free.ID)})
	require.NoError(t, err)
	assert.Equal(t, free.ID, moved.IdentityID)
}

func TestDeleteNeverRemovesAdminIdentity(t *testing.T) {
	for _, mode := range []DeleteMode{DeleteLinked, DeleteLegacy} {
		t.Run(string(mode), func(t *testing.T) {
			f := newFixture(t, mode)
			ctx := context.Background()
			admin, err := f.identities.Create(ctx, auth.Identity{Email: "admin@x.com", Role: auth.RoleAdmin})
			require.NoError(t, err)
			// A profile written straight to the store can still point at an admin.
			p, err := f.repo.Create(ctx, Profile{Name: "Bad link", Email: "bad@x.com", IdentityID: admin.ID})
			require.NoError(t, err)
			if mode == DeleteLegacy {
				p.ID = admin.ID
			}

			require.NoError(t, f.svc.Delete(ctx, p.ID))

			_, err = f.identities.FindByID(ctx, admin.ID)
			assert.NoError(t, err)
		})
	}
}

func TestDeleteLinkedRemovesProfileAndIdentity(t *testing.T) {
	f := newFixture(t, DeleteLinked)
	ctx := context.Background()
	p, err := f.svc.Create(ctx, NewStudent{Name: "A", Email: "a@x.com"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, p.ID))

	_, err = f.repo.FindByID(ctx, p.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = f.identities.FindByID(ctx, p.IdentityID)
	assert.ErrorIs(t, err, shared.ErrNotFound)

	assert.NoError(t, f.svc.Delete(ctx, p.ID))
}

func TestDeleteLegacyLeavesLinkedIdentity(t *testing.T) {
	f := newFixture(t, DeleteLegacy)
	ctx := context.Background()
	p, err := f.svc.Create(ctx, NewStudent{Name: "A", Email: "a@x.com"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, p.ID))

	_, err = f.repo.FindByID(ctx, p.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
	_, err = f.identities.FindByID(ctx, p.IdentityID)
	assert.NoError(t, err)

	report, err := f.svc.FindOrphans(ctx)
	require.NoError(t, err)
	require.Len(t, report.IdentitiesWithoutProfile, 1)
	assert.Equal(t, p.IdentityID, report.IdentitiesWithoutProfile[0].ID)
}

func TestFindOrphans(t *testing.T) {
	f := newFixture(t, DeleteLinked)
	ctx := context.Background()

	f.signup(t, "Ok", "ok@x.com")

	dangling, err := f.repo.Create(ctx, Profile{Name: "Ghost", Email: "ghost@x.com", IdentityID: "gone"})
	require.NoError(t, err)

	lonely, err := f.identities.Create(ctx, auth.Identity{Email: "lonely@x.com", Role: auth.RoleStudent})
	require.NoError(t, err)
	_, err = f.identities.Create(ctx, auth.Identity{Email: "admin@x.com", Role: auth.RoleAdmin})
	require.NoError(t, err)

	report, err := f.svc.FindOrphans(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Total())
	require.Len(t, report.ProfilesWithoutIdentity, 1)
	assert.Equal(t, dangling.ID, report.ProfilesWithoutIdentity[0].ID)
	require.Len(t, report.IdentitiesWithoutProfile, 1)
	assert.Equal(t, lonely.ID, report.IdentitiesWithoutProfile[0].ID)
}

type failingRepo struct {
	*MemoryRepository
}

func (failingRepo) Create(context.Context, Profile) (Profile, error) {
	return Profile{}, errors.New("disk full")
}

func TestCreateLeavesIdentityWhenProfileFails(t *testing.T) {
	identities := auth.NewMemoryRepository()
	svc := NewService(nil, failingRepo{NewMemoryRepository()}, identities, auth.NewPasswordHasher(bcrypt.MinCost, 1), Config{})

	_, err := svc.Create(context.Background(), NewStudent{Name: "A", Email: "a@x.com"})
	require.EqualError(t, err, "disk full")

	_, err = identities.FindByEmail(context.Background(), "a@x.com")
	assert.NoError(t, err)
}

func TestParseDeleteMode(t *testing.T) {
	mode, err := ParseDeleteMode("")
	require.NoError(t, err)
	assert.Equal(t, DeleteLinked, mode)

	mode, err = ParseDeleteMode("legacy")
	require.NoError(t, err)
	assert.Equal(t, DeleteLegacy, mode)

	_, err = ParseDeleteMode("cascade")
	assert.Error(t, err)
}
