package handlers

import (
	"net/http"

	"github.com/mattfryer/bookstack-addon/internal/coordinator"
)

// Action requests carry the action fields plus an optional target instance.
type createBookRequest struct {
	ConfigEntryID string `json:"config_entry_id"`
	coordinator.CreateBookInput
}

type createPageRequest struct {
	ConfigEntryID string `json:"config_entry_id"`
	coordinator.CreatePageInput
}

type appendPageRequest struct {
	ConfigEntryID string `json:"config_entry_id"`
	coordinator.AppendPageInput
}

// CreateBook creates a book on an existing shelf and returns it.
func (a *API) CreateBook(w http.ResponseWriter, r *http.Request) {
	var payload createBookRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid JSON payload")
		return
	}
	book, err := a.instances.CreateBook(r.Context(), payload.ConfigEntryID, payload.CreateBookInput)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// CreatePage creates a page from either html or markdown content.
func (a *API) CreatePage(w http.ResponseWriter, r *http.Request) {
	var payload createPageRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid JSON payload")
		return
	}
	page, err := a.instances.CreatePage(r.Context(), payload.ConfigEntryID, payload.CreatePageInput)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// AppendPage appends content and tags to an existing page.
func (a *API) AppendPage(w http.ResponseWriter, r *http.Request) {
	var payload appendPageRequest
	if err := decodeJSON(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_payload", "Invalid JSON payload")
		return
	}
	page, err := a.instances.AppendPage(r.Context(), payload.ConfigEntryID, payload.AppendPageInput)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}
