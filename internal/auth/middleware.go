package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/scholaris/scholaris/internal/platform/httpx"
)

// Gate stages.
const (
	StageAuthenticate = "authenticate"
	StageAuthorize    = "authorize"
)

// Verifier decodes bearer tokens.
type Verifier interface {
	Verify(token string) (Claims, error)
}

// DecisionRecorder observes gate outcomes.
type DecisionRecorder interface {
	RecordGateDecision(stage, outcome string)
}

// Gate authenticates bearer tokens and enforces role membership.
type Gate struct {
	verifier Verifier
	logger   *slog.Logger
	recorder DecisionRecorder
}

// NewGate constructs a Gate. logger and recorder may be nil.
func NewGate(verifier Verifier, logger *slog.Logger, recorder DecisionRecorder) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{verifier: verifier, logger: logger, recorder: recorder}
}

// Require authenticates the request and then checks its role against roles.
func (g *Gate) Require(roles ...Role) func(http.Handler) http.Handler {
	authorize := g.Authorize(roles...)
	return func(next http.Handler) http.Handler {
		return g.Authenticate(authorize(next))
	}
}

// Authenticate verifies the bearer token and attaches its claims to the context.
func (g *Gate) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			g.record(StageAuthenticate, "missing")
			httpx.Message(w, http.StatusUnauthorized, "No token, authorization denied")
			return
		}
		claims, err := g.verifier.Verify(token)
		if err != nil {
			if errors.Is(err, ErrTokenExpired) {
				g.record(StageAuthenticate, "expired")
				httpx.Message(w, http.StatusUnauthorized, "Token expired")
				return
			}
			g.record(StageAuthenticate, "invalid")
			g.logger.Debug("token rejected", slog.String("path", r.URL.Path), slog.Any("error", err))
			httpx.Message(w, http.StatusUnauthorized, "Token is not valid")
			return
		}
		g.record(StageAuthenticate, "ok")
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

// Authorize admits requests whose authenticated role is one of roles. It must
// run after Authenticate; without claims in context it answers 401.
func (g *Gate) Authorize(roles ...Role) func(http.Handler) http.Handler {
	allowed := make(map[Role]struct{}, len(roles))
	for _, role := range roles {
		if role == RoleUnknown {
			continue
		}
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if !ok {
				g.record(StageAuthorize, "unauthenticated")
				httpx.Message(w, http.StatusUnauthorized, "No token, authorization denied")
				return
			}
			if _, ok := allowed[claims.Role]; !ok {
				g.record(StageAuthorize, "forbidden")
				httpx.Message(w, http.StatusForbidden, "Forbidden")
				return
			}
			g.record(StageAuthorize, "ok")
			next.ServeHTTP(w, r)
		})
	}
}

func (g *Gate) record(stage, outcome string) {
	if g.recorder != nil {
		g.recorder.RecordGateDecision(stage, outcome)
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(h[len(prefix):])
	return token, token != ""
}
