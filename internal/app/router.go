package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/scholaris/scholaris/internal/auth"
	"github.com/scholaris/scholaris/internal/observability"
	"github.com/scholaris/scholaris/internal/platform/httpx"
	"github.com/scholaris/scholaris/internal/students"
	"github.com/scholaris/scholaris/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger   *slog.Logger
	Config   *Config
	Services *Services
	Metrics  *observability.Metrics
	// Queue fields stay nil when Redis is not configured.
	QueueInspector jobs.QueueInspector
	QueueClient    jobs.OrphanScanEnqueuer
}

// NewRouter constructs the chi.Router with Scholaris defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	var recorder auth.DecisionRecorder
	if params.Metrics != nil {
		recorder = params.Metrics
	}
	gate := auth.NewGate(params.Services.Tokens, params.Logger, recorder)
	expose := params.Config.ExposeInternalErrors()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", auth.NewHandler(params.Logger, params.Services.Auth, expose).MountRoutes)
		r.Route("/students", students.NewHandler(params.Logger, params.Services.Students, gate, expose).MountRoutes)
	})

	r.Route("/jobs", jobs.NewHandler(params.QueueInspector, params.QueueClient, gate.Require(auth.RoleAdmin), params.Logger).MountRoutes)

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Message(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Message(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return r
}
