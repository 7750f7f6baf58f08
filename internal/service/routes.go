package service

import (
	"log/slog"
	"net/http"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/brainbox-app/brainbox/internal/auth"
	"github.com/brainbox-app/brainbox/internal/changefeed"
	"github.com/brainbox-app/brainbox/internal/metrics"
	"github.com/brainbox-app/brainbox/internal/middleware"
	"github.com/brainbox-app/brainbox/internal/storage"
	"github.com/brainbox-app/brainbox/pkg/authv1"
)

// Options are the dependencies of the HTTP surface.
type Options struct {
	Store  storage.Store
	JWT    *auth.JWTManager
	Hub    *changefeed.Hub
	Logger *slog.Logger

	// Metrics and Gatherer are optional; /metrics is only mounted with a Gatherer.
	Metrics  *metrics.HTTP
	Gatherer prometheus.Gatherer
}

// NewHandler mounts the REST API, the identity RPC service, the change feed
// and the health and metrics endpoints on one mux.
func NewHandler(opts Options) http.Handler {
	logger := opts.Logger
	mux := http.NewServeMux()

	requireAuth := middleware.RequireAuthHTTP(opts.JWT)
	route := func(pattern, name string, h http.Handler) {
		if opts.Metrics != nil {
			h = middleware.Metrics(opts.Metrics, name)(h)
		}
		mux.Handle(pattern, h)
	}

	var publisher Publisher
	if opts.Hub != nil {
		publisher = opts.Hub
	}
	entities := NewEntityService(opts.Store, publisher, logger)

	route("GET /api/v1/feed", "feed", requireAuth(http.HandlerFunc(entities.Feed)))
	route("GET /api/v1/users/{owner}/{kind}", "list", requireAuth(http.HandlerFunc(entities.List)))
	route("POST /api/v1/users/{owner}/{kind}", "create", requireAuth(http.HandlerFunc(entities.Create)))
	route("PATCH /api/v1/users/{owner}/{kind}/{id}", "update", requireAuth(http.HandlerFunc(entities.Update)))
	route("DELETE /api/v1/users/{owner}/{kind}/{id}", "delete", requireAuth(http.HandlerFunc(entities.Delete)))
	route("PUT /api/v1/posts/{id}/like", "like", requireAuth(http.HandlerFunc(entities.Like)))

	if opts.Hub != nil {
		feed := opts.Hub.Handler(func(r *http.Request) string {
			return middleware.GetEmail(r.Context())
		})
		route("GET /api/v1/changes", "changes", requireAuth(feed))
	}

	authSvc := NewAuthService(auth.NewPasswordAuthenticator(opts.Store), opts.Store, opts.JWT, logger)
	authPath, authHandler := authv1.NewAuthServiceHandler(authSvc, connect.WithInterceptors(
		middleware.RequireAuth(opts.JWT, authv1.PublicProcedures),
		middleware.LoggingInterceptor(logger),
	))
	route(authPath, "auth", authHandler)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if opts.Gatherer != nil {
		mux.Handle("GET /metrics", metrics.Handler(opts.Gatherer))
	}

	return middleware.Logging(logger)(middleware.CORS(mux))
}
