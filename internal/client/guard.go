package client

import (
	"context"
	"errors"
)

// Views the guard knows about.
const (
	ViewHome    = "/"
	ViewLogin   = "/login"
	ViewSignup  = "/signup"
	ViewAdmin   = "/admin"
	ViewStudent = "/student"
)

var protectedViews = map[string]string{
	ViewAdmin:   "admin",
	ViewStudent: "student",
}

// Decision is the outcome of a guard check. When Allow is false, Redirect
// names the view to open instead.
type Decision struct {
	Allow    bool
	Redirect string
}

// Route decides whether a view may open for the given session, which is nil
// when signed out.
func Route(view string, session *Session) Decision {
	switch view {
	case ViewHome:
		if session == nil {
			return Decision{Redirect: ViewLogin}
		}
		if session.HasRole("admin") {
			return Decision{Redirect: ViewAdmin}
		}
		return Decision{Redirect: ViewStudent}
	case ViewLogin, ViewSignup:
		if session != nil {
			return Decision{Redirect: ViewHome}
		}
		return Decision{Allow: true}
	}
	role, ok := protectedViews[view]
	if !ok {
		return Decision{Redirect: ViewHome}
	}
	if session == nil || !session.HasRole(role) {
		return Decision{Redirect: ViewLogin}
	}
	return Decision{Allow: true}
}

// Resolve follows redirects from view until a view is allowed.
func Resolve(view string, session *Session) string {
	for i := 0; i < 4; i++ {
		d := Route(view, session)
		if d.Allow {
			return view
		}
		view = d.Redirect
	}
	return view
}

// Guard applies Route using the session held in a SessionStore.
type Guard struct {
	store SessionStore
}

// NewGuard builds a Guard over store.
func NewGuard(store SessionStore) *Guard {
	return &Guard{store: store}
}

// Check loads the current session and decides whether view may open.
func (g *Guard) Check(ctx context.Context, view string) (Decision, *Session, error) {
	s, err := g.store.Get(ctx)
	switch {
	case errors.Is(err, ErrNoSession):
		return Route(view, nil), nil, nil
	case err != nil:
		return Decision{}, nil, err
	}
	return Route(view, &s), &s, nil
}
