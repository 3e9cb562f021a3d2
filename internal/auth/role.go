package auth

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
)

// Role is the closed set of account roles.
type Role uint8

const (
	// RoleUnknown is the zero value; it never satisfies an authorization check.
	RoleUnknown Role = iota
	RoleAdmin
	RoleStudent
)

// ErrUnknownRole is returned when a wire value names no known role.
var ErrUnknownRole = errors.New("auth: unknown role")

// ParseRole converts a wire string into a Role, ignoring case.
func ParseRole(s string) (Role, error) {
	switch cases.Fold().String(strings.TrimSpace(s)) {
	case "admin":
		return RoleAdmin, nil
	case "student":
		return RoleStudent, nil
	default:
		return RoleUnknown, fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// String returns the wire form of the role.
func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleStudent:
		return "student"
	default:
		return ""
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
