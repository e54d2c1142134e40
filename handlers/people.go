package handlers

import (
	"errors"
	"image"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/facette/natsort"
	"github.com/go-chi/chi/v5"

	"github.com/camden-git/facetrack/logger"
	"github.com/camden-git/facetrack/models"
	"github.com/camden-git/facetrack/repository"
	"github.com/camden-git/facetrack/services"
	"github.com/camden-git/facetrack/utils"
)

type PeopleHandler struct {
	Enrollment *services.EnrollmentService
	People     repository.PersonRepositoryInterface
	Detections repository.DetectionRepositoryInterface
	// captures are shrunk so neither side exceeds this
	MaxCaptureSide int
}

type personView struct {
	models.Person
	DisplayName string `json:"display_name"`
	Detections  int64  `json:"detections"`
}

var enrollStatus = map[services.FailureKind]int{
	services.FailureInvalidInput:   http.StatusBadRequest,
	services.FailureDuplicateEmail: http.StatusConflict,
	services.FailureNoFaceDetected: http.StatusUnprocessableEntity,
	services.FailureStore:          http.StatusInternalServerError,
}

// CreatePerson enrolls a person from a multipart form with the fields
// nombre, apellido, email and a capture image.
func (h *PeopleHandler) CreatePerson(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, utils.MaxCaptureBytes+1<<20)
	if err := r.ParseMultipartForm(utils.MaxCaptureBytes); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid multipart form: "+err.Error())
		return
	}

	req := services.EnrollRequest{
		GivenName:  r.FormValue("nombre"),
		FamilyName: r.FormValue("apellido"),
		Email:      r.FormValue("email"),
	}

	var capture image.Image
	file, header, err := r.FormFile("capture")
	switch {
	case err == nil:
		defer file.Close()
		if !utils.IsRasterImage(header.Filename) {
			WriteAPIError(w, http.StatusBadRequest, CodeInvalidCapture, "Unsupported capture file type: "+header.Filename)
			return
		}
		capture, _, err = utils.DecodeCapture(file, h.MaxCaptureSide)
		if err != nil {
			WriteAPIError(w, http.StatusBadRequest, CodeInvalidCapture, err.Error())
			return
		}
	case errors.Is(err, http.ErrMissingFile):
		// enrollment reports the missing capture after validating the form
	default:
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid capture upload: "+err.Error())
		return
	}

	res := h.Enrollment.Enroll(r.Context(), req, capture)
	if !res.OK() {
		status, ok := enrollStatus[res.Failure]
		if !ok {
			status = http.StatusInternalServerError
		}
		writeAPIErrorDetail(w, status, APIErrorDetail{Code: string(res.Failure), Detail: res.Message, Fields: res.Fields})
		return
	}

	writeJSON(w, http.StatusCreated, res)
}

// ListPeople returns every enrolled person in natural display-name order.
func (h *PeopleHandler) ListPeople(w http.ResponseWriter, r *http.Request) {
	people, err := h.People.ListAll(r.Context())
	if err != nil {
		logger.Named("http").Errorf("error listing people: %v", err)
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to retrieve people")
		return
	}

	views := make([]personView, 0, len(people))
	for _, p := range people {
		view := personView{Person: p, DisplayName: p.DisplayName()}
		if h.Detections != nil {
			count, err := h.Detections.CountByPerson(r.Context(), p.ID)
			if err != nil {
				logger.Named("http").Warnf("error counting detections for person %d: %v", p.ID, err)
			}
			view.Detections = count
		}
		views = append(views, view)
	}

	sort.SliceStable(views, func(i, j int) bool {
		a, b := strings.ToLower(views[i].DisplayName), strings.ToLower(views[j].DisplayName)
		if a == b {
			return views[i].ID < views[j].ID
		}
		return natsort.Compare(a, b)
	})

	writeJSON(w, http.StatusOK, views)
}

// DeletePerson removes a person with their descriptors and history.
func (h *PeopleHandler) DeletePerson(w http.ResponseWriter, r *http.Request) {
	personID, ok := parseIDParam(w, r, "person_id")
	if !ok {
		return
	}

	name, err := h.Enrollment.Unenroll(r.Context(), personID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			WriteAPIError(w, http.StatusNotFound, CodeNotFound, "Person not found")
			return
		}
		logger.Named("http").Errorf("error deleting person %d: %v", personID, err)
		WriteAPIError(w, http.StatusInternalServerError, CodeInternal, "Failed to delete person")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": name + " deleted",
		"id":      personID,
	})
}

func parseIDParam(w http.ResponseWriter, r *http.Request, name string) (uint, bool) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid "+name+" format")
		return 0, false
	}
	return uint(id), true
}
