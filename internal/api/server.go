package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/SAMEO-jp/PMEDATAHUB-sub003/internal/session"
)

// Config configures the HTTP router.
type Config struct {
	CORSOrigins []string
	RateLimit   RateLimitConfig
	Logger      *slog.Logger
}

// Server serves one exploration session over HTTP.
type Server struct {
	sess   *session.Session
	logger *slog.Logger
}

// NewRouter builds the chi router for sess. ctx bounds background
// middleware work (rate-limiter cleanup).
//
// Routes:
//
//	GET    /healthz
//	POST   /v1/query                  raw query text
//	POST   /v1/search                 structured FilterSpec
//	POST   /v1/lint                   static advice, no execution
//	POST   /v1/explain                query plan, no execution
//	GET    /v1/tables
//	GET    /v1/tables/{table}/columns
//	GET    /v1/history                ?page=&page_size=
//	DELETE /v1/history
//	GET    /v1/history/{id}
//	POST   /v1/history/{id}/replay    returns the text; does not execute
func NewRouter(ctx context.Context, sess *session.Session, cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{sess: sess, logger: logger.With("component", "api")}

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(RequestLogger(s.logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)

	r.Route("/v1", func(r chi.Router) {
		if cfg.RateLimit.RequestsPerSecond > 0 && cfg.RateLimit.Burst > 0 {
			r.Use(RateLimiter(ctx, cfg.RateLimit))
		}

		r.Post("/query", s.handleQuery)
		r.Post("/search", s.handleSearch)
		r.Post("/lint", s.handleLint)
		r.Post("/explain", s.handleExplain)

		r.Get("/tables", s.handleTables)
		r.Get("/tables/{table}/columns", s.handleColumns)

		r.Get("/history", s.handleHistoryPage)
		r.Delete("/history", s.handleHistoryClear)
		r.Get("/history/{id}", s.handleHistoryEntry)
		r.Post("/history/{id}/replay", s.handleHistoryReplay)
	})

	return r
}

// NewHTTPServer wraps handler with the server timeouts used by serve.
// The write timeout leaves room for the longest query.
func NewHTTPServer(addr string, handler http.Handler, queryTimeout time.Duration) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      queryTimeout + 30*time.Second,
		IdleTimeout:       2 * time.Minute,
	}
}
