/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address from proxy headers
  3. Logger:     Request logging through zap
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. CORS:       Cross-origin requests for frontend
  6. Metrics:    Request count and latency per route (optional)
  7. Identify:   Caller from X-Employee-ID / X-Role (under /api only)

SECURITY NOTE:
  Identity headers are trusted as-is. The server is meant to sit behind a
  gateway that authenticates the session and sets them.

SEE ALSO:
  - handlers.go: Handler implementations
  - identity.go: Caller extraction
  - cmd/server/main.go: Server startup
*/
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/warp/leave-engine/config"
	"github.com/warp/leave-engine/metrics"
)

// RouterOptions carries the optional pieces of the router.
type RouterOptions struct {
	CORS        config.CORSConfig
	Metrics     *metrics.Collector
	MetricsPath string
	Logger      *zap.Logger
	// Ping backs /healthz; nil means always healthy.
	Ping func(ctx context.Context) error
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger.Named("http")))
	r.Use(middleware.Recoverer)
	if len(opts.CORS.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.CORS.AllowedOrigins,
			AllowedMethods:   opts.CORS.AllowedMethods,
			AllowedHeaders:   opts.CORS.AllowedHeaders,
			AllowCredentials: true,
			MaxAge:           opts.CORS.MaxAge,
		}))
	}
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, opts.Metrics.Handler())
	}

	var ping func(*http.Request) error
	if opts.Ping != nil {
		ping = func(req *http.Request) error { return opts.Ping(req.Context()) }
	}
	r.Get("/healthz", h.Healthz(ping))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Use(Identify)

		r.Route("/requests", func(r chi.Router) {
			r.Get("/", h.ListMyRequests)
			r.Post("/", h.SubmitRequest)
			r.Get("/{id}", h.GetRequest)
			r.Post("/{id}/transitions", h.Transition)
			r.Get("/{id}/audit", h.GetAudit)
		})

		r.Route("/manager", func(r chi.Router) {
			r.Get("/pending-approvals", h.PendingApprovals)
			r.Get("/pending-cancellations", h.PendingCancellations)
		})

		r.Route("/employees", func(r chi.Router) {
			r.Put("/{id}", h.SaveEmployee)
			r.Get("/{id}/balances", h.GetBalances)
			r.Get("/{id}/working-days", h.PreviewWorkingDays)
			r.Put("/{id}/manager", h.AssignManager)
		})

		r.Get("/admin/queue", h.AdminQueue)
		r.Put("/leave-types/{id}", h.SaveLeaveType)

		r.Route("/balances", func(r chi.Router) {
			r.Put("/", h.SetBalance)
			r.Put("/override", h.OverrideBalance)
			r.Post("/bulk", h.BulkSetBalance)
		})

		r.Post("/work-schedules", h.SaveWorkSchedule)

		r.Route("/holidays", func(r chi.Router) {
			r.Get("/", h.ListHolidays)
			r.Post("/", h.SaveHoliday)
			r.Put("/{id}/lock", h.LockHoliday)
			r.Delete("/{id}", h.DeleteHoliday)
		})
	})

	return r
}

// requestLogger logs one line per request with zap.
func requestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
				zap.String("remote_addr", r.RemoteAddr),
			)
		})
	}
}
