package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattfryer/bookstack-addon/internal/http/handlers"
)

// NewRouter builds the HTTP routing tree for the read and action API.
func NewRouter(api *handlers.API) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RecoverJSON(api))
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(StripIngressPrefix)
	r.Use(RequestLogger(api))

	r.Get("/healthz", api.Health)
	r.Route("/api", func(apiRouter chi.Router) {
		apiRouter.Get("/instances", api.ListInstances)
		apiRouter.Get("/instances/{id}/state", func(w http.ResponseWriter, r *http.Request) {
			api.GetState(w, r, chi.URLParam(r, "id"))
		})
		apiRouter.Post("/instances/{id}/refresh", func(w http.ResponseWriter, r *http.Request) {
			api.Refresh(w, r, chi.URLParam(r, "id"))
		})
		apiRouter.Get("/instances/{id}/diagnostics", func(w http.ResponseWriter, r *http.Request) {
			api.Diagnostics(w, r, chi.URLParam(r, "id"))
		})
		apiRouter.Delete("/instances/{id}/orphans/{bookId}", func(w http.ResponseWriter, r *http.Request) {
			api.ResolveOrphan(w, r, chi.URLParam(r, "id"), chi.URLParam(r, "bookId"))
		})

		apiRouter.Post("/actions/create_book", api.CreateBook)
		apiRouter.Post("/actions/create_page", api.CreatePage)
		apiRouter.Post("/actions/append_page", api.AppendPage)
	})
	return r
}

// RunServer starts and gracefully stops HTTP server with context cancellation.
func RunServer(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil {
			logger.Error("http server failed", "err", err)
			return err
		}
		return nil
	}
}
