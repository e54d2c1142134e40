package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/camden-git/facetrack/logger"
	"github.com/camden-git/facetrack/repository"
)

type DetectionHandler struct {
	Detections repository.DetectionRepositoryInterface
}

// ListDetections returns the emotion history, newest first.
// Query parameters: person_id, since (unix milliseconds), limit.
func (h *DetectionHandler) ListDetections(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter repository.HistoryFilter

	if raw := q.Get("person_id"); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid person_id")
			return
		}
		personID := uint(id)
		filter.PersonID = &personID
	}
	if raw := q.Get("since"); raw != "" {
		ms, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || ms < 0 {
			WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid since")
			return
		}
		filter.Since = time.UnixMilli(ms)
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || limit == 0 {
			WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid limit")
			return
		}
		filter.Limit = limit
	}

	records, err := h.Detections.History(r.Context(), filter)
	if err != nil {
		logger.Named("http").Errorf("error reading detection history: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to retrieve detections")
		return
	}
	writeJSON(w, http.StatusOK, records)
}
