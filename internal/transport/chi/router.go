package chi

import (
	"net/http"

	gochi "github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/kailas-cloud/recall/internal/metrics"
)

// MaxBodyBytes caps request bodies.
const MaxBodyBytes = 1 << 20

// RouterConfig holds the cross-cutting HTTP settings.
type RouterConfig struct {
	APIKeys     []string
	CORSOrigins []string
}

// NewRouter mounts the API routes behind the middleware chain.
func NewRouter(s *Server, cfg RouterConfig, logger *zap.Logger) http.Handler {
	r := gochi.NewRouter()
	r.Use(JSONRecoverer(logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(WideEventMiddleware(logger))
	if len(cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID", "X-Model-Tokens"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}
	r.Use(BearerAuthMiddleware(cfg.APIKeys))
	r.Use(metrics.Middleware())
	r.Use(chiMiddleware.RequestSize(MaxBodyBytes))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrorCodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrorCodeBadRequest, "method not allowed")
	})

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Post("/reload", s.Reload)
	r.Post("/ask", s.Ask)
	r.Get("/search", s.Search)
	r.Post("/start_script", s.StartScript)
	r.Post("/stop_script", s.StopScript)

	return r
}
