package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

// RouterDeps carries everything the console routes call into.
type RouterDeps struct {
	People      *PeopleHandler
	Recognize   *RecognizeHandler
	Session     *SessionHandler
	Detections  *DetectionHandler
	Diagnostics *DiagnosticsHandler
	Realtime    http.HandlerFunc

	AllowedOrigins       []string
	OperatorPasswordHash string
}

func NewRouter(deps RouterDeps) chi.Router {
	r := chi.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   deps.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(corsHandler.Handler)

	auth := NewOperatorAuth(deps.OperatorPasswordHash)

	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Basic)
		r.Use(middleware.Timeout(60 * time.Second))

		r.Route("/people", func(r chi.Router) {
			r.Post("/", deps.People.CreatePerson)
			r.Get("/", deps.People.ListPeople)
			r.Delete("/{person_id}", deps.People.DeletePerson)
		})

		r.Post("/recognize", deps.Recognize.Recognize)

		r.Route("/session", func(r chi.Router) {
			r.Get("/", deps.Session.GetSession)
			r.Post("/start", deps.Session.StartSession)
			r.Post("/stop", deps.Session.StopSession)
		})

		r.Get("/detections", deps.Detections.ListDetections)
		r.Get("/diagnostics", deps.Diagnostics.GetDiagnostics)
	})

	if deps.Realtime != nil {
		r.With(auth.Socket).Get("/ws", deps.Realtime)
	}

	return r
}
