package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/storepilot/storepilot/internal/adapter/api/handler"
	"github.com/storepilot/storepilot/internal/adapter/api/middleware"
	"github.com/storepilot/storepilot/internal/health"
	"github.com/storepilot/storepilot/internal/usecase"
)

// NewRouter wires the control plane's HTTP surface. The /metrics endpoints
// are admin-only; /health and /auth/* are public; everything else requires a
// valid identity token.
func NewRouter(
	logger *slog.Logger,
	authService *usecase.AuthService,
	storeService *usecase.StoreService,
	monitor *health.Monitor,
	startedAt time.Time,
) http.Handler {
	mux := http.NewServeMux()

	authHandler := handler.NewAuthHandler(authService, logger)
	storeHandler := handler.NewStoreHandler(storeService, logger)
	systemHandler := handler.NewSystemHandler(monitor, startedAt, logger)

	auth := middleware.Auth(authService, logger)
	admin := func(h http.Handler) http.Handler { return auth(middleware.RequireAdmin(h)) }

	mux.HandleFunc("POST /auth/register", authHandler.Register)
	mux.HandleFunc("POST /auth/login", authHandler.Login)

	mux.Handle("POST /stores", auth(http.HandlerFunc(storeHandler.Create)))
	mux.Handle("GET /stores", auth(http.HandlerFunc(storeHandler.List)))
	mux.Handle("GET /stores/{id}", auth(http.HandlerFunc(storeHandler.Get)))
	mux.Handle("GET /stores/{id}/logs", auth(http.HandlerFunc(storeHandler.Logs)))
	mux.Handle("DELETE /stores/{id}", auth(http.HandlerFunc(storeHandler.Delete)))
	mux.Handle("POST /stores/{id}/retry", auth(http.HandlerFunc(storeHandler.Retry)))

	mux.HandleFunc("GET /health", systemHandler.Health)

	mux.Handle("GET /metrics", admin(promhttp.Handler()))
	mux.Handle("GET /metrics/json", admin(http.HandlerFunc(systemHandler.MetricsJSON)))

	// Unknown routes get the structured envelope, not the stdlib 404 page.
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		handler.WriteError(w, http.StatusNotFound, "NOT_FOUND", "route not found")
	})

	return middleware.Logging(logger)(mux)
}
