package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/camden-git/facetrack/logger"
	"github.com/camden-git/facetrack/services"
)

// SessionController is the part of services.DetectionSession the console drives.
type SessionController interface {
	Start(ctx context.Context) (string, error)
	Stop()
	Status() services.SessionStatus
}

type SessionHandler struct {
	Session SessionController
	// the session outlives the request that starts it
	BaseContext context.Context
}

func (h *SessionHandler) baseContext() context.Context {
	if h.BaseContext != nil {
		return h.BaseContext
	}
	return context.Background()
}

func (h *SessionHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	id, err := h.Session.Start(h.baseContext())
	if err != nil {
		if errors.Is(err, services.ErrSessionRunning) {
			writeAPIErrorDetail(w, http.StatusConflict, APIErrorDetail{Code: CodeConflict, Detail: "Detection session " + id + " is already running"})
			return
		}
		logger.Named("http").Errorf("error starting detection session: %v", err)
		WriteAPIError(w, http.StatusServiceUnavailable, CodeUnavailable, "Could not start the camera: "+err.Error())
		return
	}
	logger.Named("http").Infof("detection session %s started from %s", id, r.RemoteAddr)
	writeJSON(w, http.StatusCreated, h.Session.Status())
}

func (h *SessionHandler) StopSession(w http.ResponseWriter, r *http.Request) {
	h.Session.Stop()
	writeJSON(w, http.StatusOK, h.Session.Status())
}

func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Session.Status())
}
