// Package server assembles the HTTP surface of the service.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"bookshelf/internal/apperr"
	"bookshelf/internal/auth"
	"bookshelf/internal/catalog"
	"bookshelf/internal/httpx"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Logger      *slog.Logger
	Catalog     catalog.Service
	Auth        auth.Service
	Tokens      *auth.Tokens
	Store       Pinger
	CORSOrigins []string
	AuthLimiter *httpx.RateLimiter
}

var errNotReady = apperr.New(apperr.KindInternal, "NOT_READY", "store unavailable")

func NewRouter(d Deps) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer)
	r.Use(httpx.AccessLog(d.Logger))
	r.Use(httpx.CORS(d.CORSOrigins))
	r.Use(httpx.LimitBody(1 << 20))
	r.Use(middleware.Timeout(15 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := d.Store.Ping(ctx); err != nil {
			d.Logger.WarnContext(ctx, "readiness check failed", "error", err)
			httpx.JSON(w, http.StatusServiceUnavailable, httpx.ErrorResponse{Error: httpx.ErrorBody{
				Code:    errNotReady.Code,
				Message: errNotReady.Message,
			}})
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ready"})
	})

	r.Route("/auth", func(r chi.Router) {
		if d.AuthLimiter != nil {
			r.Use(d.AuthLimiter.Middleware)
		}
		auth.NewHandler(d.Auth).Routes(r)
	})

	catalog.NewHandler(d.Catalog).Routes(r, auth.Authenticate(d.Tokens))
	return r
}
