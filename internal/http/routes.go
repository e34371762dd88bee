package httpx

import (
	"log/slog"
	"net/http"

	"github.com/target/mmk-autoapply/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Applications *service.ApplicationService
	Auth         Authenticator
	// Health lists the dependency pings behind /healthz.
	Health []HealthCheck
	// MaxBodyBytes caps request bodies; zero leaves them unbounded.
	MaxBodyBytes int64
	Logger       *slog.Logger
}

// NewRouter builds the API handler: Recover, then Logging, then bearer
// authentication for everything under /api.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "http")

	api := http.NewServeMux()
	registerApplicationRoutes(api, &ApplicationHandlers{Svc: services.Applications, Logger: logger})

	mux := http.NewServeMux()
	health := healthHandler(services.Health, logger)
	mux.Handle("GET "+healthPath, health)
	mux.Handle("HEAD "+healthPath, health)
	mux.Handle("/api/", Chain(api, RequireBearer(services.Auth, logger), limitBody(services.MaxBodyBytes)))

	return Chain(mux, Recover(logger), Logging(logger))
}

func registerApplicationRoutes(mux *http.ServeMux, h *ApplicationHandlers) {
	mux.HandleFunc("POST /api/automation/apply/{jobId}", h.RequestApply)
	mux.HandleFunc("DELETE /api/automation/tasks/{id}", h.CancelTask)

	mux.HandleFunc("GET /api/applications", h.ListApplications)
	mux.HandleFunc("POST /api/applications", h.SaveJob)
	mux.HandleFunc("GET /api/applications/{id}", h.GetApplication)
	mux.HandleFunc("PATCH /api/applications/{id}/status", h.UpdateStatus)
	mux.HandleFunc("PATCH /api/applications/{id}/notes", h.UpdateNotes)
	mux.HandleFunc("DELETE /api/applications/{id}", h.Dismiss)
	mux.HandleFunc("GET /api/applications/{id}/logs", h.ListLogs)
}

func limitBody(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if maxBytes <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil && r.Body != http.NoBody {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}
