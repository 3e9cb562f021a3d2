package auth

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/scholaris/scholaris/internal/platform/httpx"
	"github.com/scholaris/scholaris/internal/shared"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	validator      *validator.Validate
	exposeInternal bool
}

// NewHandler constructs a Handler instance. exposeInternal controls whether
// unexpected errors reach the client verbatim.
func NewHandler(logger *slog.Logger, service *Service, exposeInternal bool) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		validator:      validator.New(),
		exposeInternal: exposeInternal,
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/signup", h.handleSignup)
	r.Post("/login", h.handleLogin)
}

type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UserView is the public projection of an identity.
type UserView struct {
	ID    string `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// SessionResponse is returned by signup and login.
type SessionResponse struct {
	Token string   `json:"token"`
	User  UserView `json:"user"`
}

func sessionResponse(s Session) SessionResponse {
	return SessionResponse{
		Token: s.Token,
		User: UserView{
			ID:    s.Identity.ID,
			Name:  s.Name,
			Email: s.Identity.Email,
			Role:  s.Identity.Role,
		},
	}
}

func (h *Handler) handleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Message(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Message(w, http.StatusBadRequest, httpx.ValidationMessage(err))
		return
	}
	session, err := h.service.Signup(r.Context(), SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		if errors.Is(err, shared.ErrConflict) {
			httpx.Message(w, http.StatusBadRequest, "User already exists")
			return
		}
		if httpx.StatusFor(err) == http.StatusInternalServerError {
			h.logger.Error("signup failed", slog.Any("error", err))
		}
		httpx.RespondError(w, err, h.exposeInternal)
		return
	}
	httpx.JSON(w, http.StatusCreated, sessionResponse(session))
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Message(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Message(w, http.StatusBadRequest, "Invalid credentials")
		return
	}
	session, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, shared.ErrInvalidCredentials) {
			httpx.Message(w, http.StatusBadRequest, "Invalid credentials")
			return
		}
		h.logger.Error("login failed", slog.Any("error", err))
		httpx.RespondError(w, err, h.exposeInternal)
		return
	}
	httpx.JSON(w, http.StatusOK, sessionResponse(session))
}
