package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrTokenInvalid covers malformed, tampered, or wrongly signed tokens.
	ErrTokenInvalid = errors.New("auth: invalid token")
	// ErrTokenExpired indicates a well-formed token past its expiry.
	ErrTokenExpired = errors.New("auth: token expired")
)

type tokenClaims struct {
	IdentityID string `json:"id"`
	Role       string `json:"role"`
	Email      string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HS256 identity tokens.
type TokenService struct {
	secret []byte
	issuer string
}

// NewTokenService builds a TokenService bound to secret. The issuer is
// optional; when set it is stamped on issued tokens and required on verify.
func NewTokenService(secret []byte, issuer string) (*TokenService, error) {
	if len(secret) == 0 {
		return nil, errors.New("auth: token secret must be provided")
	}
	key := make([]byte, len(secret))
	copy(key, secret)
	return &TokenService{secret: key, issuer: issuer}, nil
}

// Issue signs claims with an absolute expiry ttl from now.
func (s *TokenService) Issue(c Claims, ttl time.Duration) (string, time.Time, error) {
	if c.IdentityID == "" {
		return "", time.Time{}, errors.New("auth: identity id required")
	}
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := tokenClaims{
		IdentityID: c.IdentityID,
		Role:       c.Role.String(),
		Email:      c.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.IdentityID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Verify checks signature and expiry and returns the decoded claims. A role
// the service does not recognise decodes as RoleUnknown.
func (s *TokenService) Verify(token string) (Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}
	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{}, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, ErrTokenInvalid
	}
	tc, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid || tc.IdentityID == "" {
		return Claims{}, ErrTokenInvalid
	}
	role, _ := ParseRole(tc.Role)
	out := Claims{IdentityID: tc.IdentityID, Role: role, Email: tc.Email}
	if tc.ExpiresAt != nil {
		out.ExpiresAt = tc.ExpiresAt.Time
	}
	return out, nil
}
