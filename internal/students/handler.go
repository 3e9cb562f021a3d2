package students

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/scholaris/scholaris/internal/auth"
	"github.com/scholaris/scholaris/internal/platform/httpx"
	"github.com/scholaris/scholaris/internal/shared"
)

// Handler exposes student profile endpoints.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	gate           *auth.Gate
	validator      *validator.Validate
	exposeInternal bool
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, gate *auth.Gate, exposeInternal bool) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		gate:           gate,
		validator:      validator.New(),
		exposeInternal: exposeInternal,
	}
}

// MountRoutes registers student routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(auth.RoleStudent))
		r.Get("/me", h.getMine)
		r.Put("/me", h.updateMine)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.gate.Require(auth.RoleAdmin))
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/orphans", h.orphans)
		r.Put("/{id}", h.update)
		r.Delete("/{id}", h.remove)
	})
}

type selfUpdateRequest struct {
	Name   *string `json:"name"`
	Email  *string `json:"email" validate:"omitempty,email"`
	Course *string `json:"course"`
}

type createRequest struct {
	Name   string `json:"name" validate:"required"`
	Email  string `json:"email" validate:"required,email"`
	Course string `json:"course"`
}

type adminUpdateRequest struct {
	Name       *string    `json:"name"`
	Email      *string    `json:"email" validate:"omitempty,email"`
	Course     *string    `json:"course"`
	EnrolledAt *time.Time `json:"enrolledAt"`
	User       *string    `json:"user" validate:"omitempty,min=1"`
}

func (h *Handler) getMine(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.ClaimsFromContext(r.Context())
	p, err := h.service.Mine(r.Context(), claims.IdentityID)
	if err != nil {
		h.fail(w, "load own profile", err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) updateMine(w http.ResponseWriter, r *http.Request) {
	var req selfUpdateRequest
	if !h.decode(w, r, &req) {
		return
	}
	claims, _ := auth.ClaimsFromContext(r.Context())
	p, err := h.service.UpdateMine(r.Context(), claims.IdentityID, SelfUpdate{
		Name:   req.Name,
		Email:  req.Email,
		Course: req.Course,
	})
	if err != nil {
		h.fail(w, "update own profile", err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	profiles, err := h.service.List(r.Context())
	if err != nil {
		h.fail(w, "list students", err)
		return
	}
	if profiles == nil {
		profiles = []Profile{}
	}
	httpx.JSON(w, http.StatusOK, profiles)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.service.Create(r.Context(), NewStudent{Name: req.Name, Email: req.Email, Course: req.Course})
	if err != nil {
		h.fail(w, "create student", err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req adminUpdateRequest
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.service.Update(r.Context(), chi.URLParam(r, "id"), Changes{
		Name:       req.Name,
		Email:      req.Email,
		Course:     req.Course,
		EnrolledAt: req.EnrolledAt,
		IdentityID: req.User,
	})
	if err != nil {
		h.fail(w, "update student", err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) remove(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, "delete student", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) orphans(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.FindOrphans(r.Context())
	if err != nil {
		h.fail(w, "scan orphans", err)
		return
	}
	httpx.JSON(w, http.StatusOK, report)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := httpx.DecodeJSON(r, target); err != nil {
		httpx.Message(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if err := h.validator.Struct(target); err != nil {
		httpx.Message(w, http.StatusBadRequest, httpx.ValidationMessage(err))
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		httpx.Message(w, http.StatusNotFound, "Student not found")
	case errors.Is(err, shared.ErrConflict):
		httpx.Message(w, http.StatusBadRequest, "User already exists")
	case errors.Is(err, ErrIdentityRef):
		httpx.Message(w, http.StatusBadRequest, "Invalid user reference")
	default:
		if httpx.StatusFor(err) == http.StatusInternalServerError {
			h.logger.Error(op+" failed", slog.Any("error", err))
		}
		httpx.RespondError(w, err, h.exposeInternal)
	}
}
