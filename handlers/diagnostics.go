package handlers

import (
	"net/http"

	"github.com/camden-git/facetrack/database"
	"github.com/camden-git/facetrack/logger"
	"github.com/camden-git/facetrack/services"
)

// WriterStats reports how many history rows were written or lost.
type WriterStats interface {
	Stats() (written, failed uint64)
}

type DiagnosticsHandler struct {
	DatabasePath string
	Index        *services.IdentityIndex
	Writer       WriterStats
	Clients      func() int
}

type diagnosticsResponse struct {
	database.Diagnostics
	IndexSize      int    `json:"index_size"`
	HistoryWritten uint64 `json:"history_written"`
	HistoryFailed  uint64 `json:"history_failed"`
	Clients        int    `json:"clients"`
}

// GetDiagnostics reports the store location, its tables with row counts
// and the state of the in-memory index.
func (h *DiagnosticsHandler) GetDiagnostics(w http.ResponseWriter, r *http.Request) {
	diag, err := database.Diagnose(r.Context(), h.DatabasePath)
	if err != nil {
		logger.Named("http").Errorf("store diagnostic failed: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Store diagnostic failed: "+err.Error())
		return
	}

	resp := diagnosticsResponse{Diagnostics: diag}
	if h.Index != nil {
		resp.IndexSize = h.Index.Len()
	}
	if h.Writer != nil {
		resp.HistoryWritten, resp.HistoryFailed = h.Writer.Stats()
	}
	if h.Clients != nil {
		resp.Clients = h.Clients()
	}
	writeJSON(w, http.StatusOK, resp)
}
