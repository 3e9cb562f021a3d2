package auth

import "time"

// Identity represents an account with credentials and a role.
type Identity struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Verified     bool      `json:"isVerified"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Claims is the identity carried by a token and attached to authenticated requests.
type Claims struct {
	IdentityID string
	Role       Role
	Email      string
	ExpiresAt  time.Time
}

// Session is the result of a successful signup or login.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Identity  Identity
	Name      string
}
