package handlers

import (
	"net/http"
	"strconv"
)

// ListInstances returns every running session with its availability.
func (a *API) ListInstances(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": a.instances.ListInstances()})
}

// GetState returns the last published snapshot of one instance.
func (a *API) GetState(w http.ResponseWriter, _ *http.Request, id string) {
	state, err := a.instances.State(id)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

// Refresh wakes the instance poller. The cycle runs asynchronously.
func (a *API) Refresh(w http.ResponseWriter, _ *http.Request, id string) {
	if err := a.instances.TriggerRefresh(id); err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

func (a *API) Diagnostics(w http.ResponseWriter, r *http.Request, id string) {
	report, err := a.instances.Diagnostics(r.Context(), id)
	if err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// ResolveOrphan closes an orphaned-book entry once the book was shelved by
// hand.
func (a *API) ResolveOrphan(w http.ResponseWriter, r *http.Request, id, rawBookID string) {
	bookID, err := strconv.Atoi(rawBookID)
	if err != nil || bookID < 1 {
		writeError(w, http.StatusBadRequest, "invalid_book_id", "book_id must be a positive integer")
		return
	}
	if err := a.instances.ResolveOrphan(r.Context(), id, bookID); err != nil {
		a.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}
