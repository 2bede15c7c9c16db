package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/segmentio/encoding/json"

	"github.com/mattfryer/bookstack-addon/internal/bookstack"
	"github.com/mattfryer/bookstack-addon/internal/coordinator"
	"github.com/mattfryer/bookstack-addon/internal/diagnostics"
	"github.com/mattfryer/bookstack-addon/internal/service"
	"github.com/mattfryer/bookstack-addon/internal/storage"
)

// Instances is the session registry the handlers drive.
type Instances interface {
	ListInstances() []service.InstanceStatus
	State(id string) (service.InstanceState, error)
	TriggerRefresh(id string) error
	Diagnostics(ctx context.Context, id string) (diagnostics.Report, error)
	ResolveOrphan(ctx context.Context, id string, bookID int) error
	CreateBook(ctx context.Context, id string, in coordinator.CreateBookInput) (bookstack.Book, error)
	CreatePage(ctx context.Context, id string, in coordinator.CreatePageInput) (bookstack.Page, error)
	AppendPage(ctx context.Context, id string, in coordinator.AppendPageInput) (bookstack.Page, error)
}

// ConfigProvider reports whether any instance is configured.
type ConfigProvider interface {
	Configured() bool
}

// API groups HTTP handlers and dependencies.
type API struct {
	instances Instances
	config    ConfigProvider
	logger    *slog.Logger
}

func New(instances Instances, config ConfigProvider, logger *slog.Logger) *API {
	return &API{instances: instances, config: config, logger: logger}
}

// Logger returns request logger used by HTTP middleware.
func (a *API) Logger() *slog.Logger {
	return a.logger
}

// Health reports liveness and whether options are configured.
func (a *API) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "configured": a.config.Configured()})
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code string, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}

// writeServiceError maps registry, validation and upstream failures to
// status codes. Upstream BookStack failures are reported as 502.
func (a *API) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case bookstack.IsValidation(err):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, service.ErrSessionAmbiguous):
		writeError(w, http.StatusBadRequest, "instance_ambiguous", err.Error())
	case errors.Is(err, service.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, "instance_not_found", err.Error())
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, service.ErrNotConfigured):
		writeError(w, http.StatusConflict, "integration_not_configured", "Integration not configured")
	case bookstack.IsAuthError(err):
		writeError(w, http.StatusBadGateway, "auth_failed", err.Error())
	case bookstack.IsConnectionError(err):
		writeError(w, http.StatusBadGateway, "connection_failed", err.Error())
	case bookstack.IsUnexpectedStatus(err):
		writeError(w, http.StatusBadGateway, "unexpected_status", err.Error())
	default:
		a.logger.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}
