// internal/handlers/history.go
package handlers

import (
	"net/http"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/openholdem/poker-service/internal/cache"
)

// HistoryHandler serves recent betting actions for a table.
type HistoryHandler struct {
	Logger  *logrus.Logger
	History *cache.History
}

// Recent handles GET /api/tables/{id}/history?limit=n.
func (h *HistoryHandler) Recent(w http.ResponseWriter, r *http.Request) {
	if h.History == nil {
		writeError(w, http.StatusServiceUnavailable, "action history is disabled")
		return
	}
	tableID := r.PathValue("id")
	if tableID == "" {
		writeError(w, http.StatusBadRequest, "missing table id")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	records, err := h.History.Recent(r.Context(), tableID, limit)
	if err != nil {
		h.Logger.Errorf("failed to read history for table %s: %v", tableID, err)
		writeError(w, http.StatusInternalServerError, "could not read history")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"actions": records})
}
