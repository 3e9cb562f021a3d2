package client

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoute(t *testing.T) {
	admin := &Session{Token: "a", User: User{ID: "1", Role: "admin"}}
	student := &Session{Token: "s", User: User{ID: "2", Role: "Student"}}

	cases := []struct {
		name    string
		view    string
		session *Session
		want    Decision
	}{
		{"home signed out", ViewHome, nil, Decision{Redirect: ViewLogin}},
		{"home admin", ViewHome, admin, Decision{Redirect: ViewAdmin}},
		{"home student", ViewHome, student, Decision{Redirect: ViewStudent}},
		{"login signed out", ViewLogin, nil, Decision{Allow: true}},
		{"login signed in", ViewLogin, student, Decision{Redirect: ViewHome}},
		{"signup signed in", ViewSignup, admin, Decision{Redirect: ViewHome}},
		{"admin view as admin", ViewAdmin, admin, Decision{Allow: true}},
		{"admin view as student", ViewAdmin, student, Decision{Redirect: ViewLogin}},
		{"admin view signed out", ViewAdmin, nil, Decision{Redirect: ViewLogin}},
		{"student view as student", ViewStudent, student, Decision{Allow: true}},
		{"student view as admin", ViewStudent, admin, Decision{Redirect: ViewLogin}},
		{"unknown view", "/reports", admin, Decision{Redirect: ViewHome}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Route(tc.view, tc.session))
		})
	}
}

func TestResolve(t *testing.T) {
	admin := &Session{Token: "a", User: User{ID: "1", Role: "admin"}}
	assert.Equal(t, ViewAdmin, Resolve(ViewLogin, admin))
	assert.Equal(t, ViewLogin, Resolve(ViewStudent, admin))
	assert.Equal(t, ViewLogin, Resolve(ViewHome, nil))
}

func TestGuardCheckUsesStore(t *testing.T) {
	store := NewMemorySessionStore()
	guard := NewGuard(store)
	ctx := context.Background()

	d, s, err := guard.Check(ctx, ViewStudent)
	require.NoError(t, err)
	assert.Nil(t, s)
	assert.Equal(t, Decision{Redirect: ViewLogin}, d)

	require.NoError(t, store.Set(ctx, sampleSession))
	d, s, err = guard.Check(ctx, ViewStudent)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.True(t, d.Allow)
	assert.Equal(t, "u1", s.User.ID)
}
