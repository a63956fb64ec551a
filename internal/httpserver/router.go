package httpserver

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"nkelo-gateway/internal/handlers"
	"nkelo-gateway/internal/metrics"
	"nkelo-gateway/internal/middleware"
)

func SetupRouter(r *chi.Mux, baseLogger *zap.Logger, assistHandler *handlers.AssistHandler) {

	r.Use(metrics.Middleware)

	// base middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)

	// CORS first among the custom middleware so preflight short-circuits
	// before logging/timeout wrap the request.
	r.Use(middleware.CORS())
	r.Use(middleware.LoggingContext(baseLogger))
	r.Use(middleware.Recoverer())
	r.Use(middleware.Timeout(60 * time.Second)) // generation is seconds-scale
	r.Use(middleware.MaxBodySize(512 * 1024))   // 512 KB max body

	// routes
	r.Route("/v1", func(r chi.Router) {
		r.Post("/ai", assistHandler.Assist)
	})

	// health check
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Handle("/metrics", metrics.Handler())
}
