package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"watchtower-backend/application/commands"
	"watchtower-backend/application/commands/bus"
	querybus "watchtower-backend/application/queries/bus"
	"watchtower-backend/interfaces/http/rest/handlers"
	"watchtower-backend/interfaces/http/rest/middleware"
	"watchtower-backend/pkg/auth"
)

// Router creates and configures the HTTP router
type Router struct {
	tracker     *commands.TrackHandler
	commandBus  *bus.CommandBus
	queryBus    *querybus.QueryBus
	validator   *auth.JWTValidator
	rateLimiter middleware.Limiter
	enableCORS  bool
	readyCheck  func() error
	logger      *zap.Logger
}

// RouterOption customizes the router.
type RouterOption func(*Router)

// WithJWTValidator enables bearer token validation.
func WithJWTValidator(validator *auth.JWTValidator) RouterOption {
	return func(rt *Router) { rt.validator = validator }
}

// WithRateLimiter swaps the default in-process limiter, e.g. for the
// DynamoDB-backed one when requests fan out across Lambda instances.
func WithRateLimiter(limiter middleware.Limiter) RouterOption {
	return func(rt *Router) { rt.rateLimiter = limiter }
}

// WithCORS toggles the CORS middleware.
func WithCORS(enabled bool) RouterOption {
	return func(rt *Router) { rt.enableCORS = enabled }
}

// WithReadinessCheck wires a dependency probe into GET /ready.
func WithReadinessCheck(check func() error) RouterOption {
	return func(rt *Router) { rt.readyCheck = check }
}

// NewRouter creates a new router instance
func NewRouter(
	tracker *commands.TrackHandler,
	commandBus *bus.CommandBus,
	queryBus *querybus.QueryBus,
	logger *zap.Logger,
	opts ...RouterOption,
) *Router {
	rt := &Router{
		tracker:     tracker,
		commandBus:  commandBus,
		queryBus:    queryBus,
		rateLimiter: auth.NewIPRateLimiter(300),
		enableCORS:  true,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))

	if rt.enableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"http://localhost:3000", "https://*.watchtower.dev"},
			AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// Health check
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RateLimit(rt.rateLimiter))
		r.Use(middleware.Authenticate(rt.validator, rt.logger))

		// Watchlist endpoints
		r.Route("/watchlist", func(r chi.Router) {
			watchlistHandler := handlers.NewWatchlistHandler(rt.tracker, rt.commandBus, rt.queryBus, rt.logger)
			r.Get("/", watchlistHandler.List)
			r.Post("/", watchlistHandler.Track)
			r.Delete("/", watchlistHandler.Untrack)
			r.Get("/series", watchlistHandler.Series)
		})

		// Alert endpoints
		r.Route("/alerts", func(r chi.Router) {
			alertHandler := handlers.NewAlertHandler(rt.commandBus, rt.queryBus, rt.logger)
			r.Get("/", alertHandler.List)
			r.Post("/{alertID}/read", alertHandler.MarkRead)
		})
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

// readinessCheck reports whether downstream dependencies answer
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if rt.readyCheck != nil {
		if err := rt.readyCheck(); err != nil {
			rt.logger.Warn("readiness check failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"not ready"}`))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
