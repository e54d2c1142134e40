package handlers

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/camden-git/facetrack/logger"
)

const (
	operatorUser   = "operator"
	operatorCookie = "facetrack_operator"
)

// OperatorAuth protects the console with a single operator password.
// Requests that pass basic auth receive a session cookie. Browsers cannot
// set an Authorization header on a WebSocket handshake, so the realtime
// socket accepts that cookie instead.
type OperatorAuth struct {
	hash  []byte
	token string
}

// NewOperatorAuth takes a bcrypt hash; an empty hash disables the checks.
// The session token lives as long as the process.
func NewOperatorAuth(passwordHash string) *OperatorAuth {
	return &OperatorAuth{hash: []byte(passwordHash), token: uuid.NewString()}
}

func (a *OperatorAuth) enabled() bool {
	return len(a.hash) > 0
}

func (a *OperatorAuth) checkBasic(r *http.Request) bool {
	user, password, ok := r.BasicAuth()
	if !ok || user != operatorUser {
		return false
	}
	if err := bcrypt.CompareHashAndPassword(a.hash, []byte(password)); err != nil {
		logger.Named("http").Warnf("rejected console login from %s: %v", r.RemoteAddr, err)
		return false
	}
	return true
}

func (a *OperatorAuth) checkCookie(r *http.Request) bool {
	c, err := r.Cookie(operatorCookie)
	if err != nil {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(c.Value), []byte(a.token)) == 1
}

// Basic requires operator credentials and refreshes the session cookie.
func (a *OperatorAuth) Basic(next http.Handler) http.Handler {
	if !a.enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.checkBasic(r) {
			unauthorized(w)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     operatorCookie,
			Value:    a.token,
			Path:     "/",
			HttpOnly: true,
			Secure:   r.TLS != nil,
			SameSite: http.SameSiteStrictMode,
		})
		next.ServeHTTP(w, r)
	})
}

// Socket admits the session cookie or operator credentials.
func (a *OperatorAuth) Socket(next http.Handler) http.Handler {
	if !a.enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !a.checkCookie(r) && !a.checkBasic(r) {
			unauthorized(w)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="facetrack", charset="UTF-8"`)
	WriteAPIError(w, http.StatusUnauthorized, CodeUnauthorized, "operator credentials required")
}

// RequestLogger logs every request through zap once it completes.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			logger.Named("http").Infow("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}
