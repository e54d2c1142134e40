package services

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/camden-git/facetrack/faces"
	"github.com/camden-git/facetrack/logger"
	"github.com/camden-git/facetrack/models"
	"github.com/camden-git/facetrack/repository"
)

// FailureKind classifies why an enrollment did not go through.
type FailureKind string

const (
	FailureNone           FailureKind = ""
	FailureInvalidInput   FailureKind = "InvalidInput"
	FailureDuplicateEmail FailureKind = "DuplicateEmail"
	FailureNoFaceDetected FailureKind = "NoFaceDetected"
	FailureStore          FailureKind = "StoreFailure"
)

// EnrollRequest is the operator's registration form.
type EnrollRequest struct {
	GivenName  string `json:"nombre" validate:"required,max=100"`
	FamilyName string `json:"apellido" validate:"required,max=100"`
	Email      string `json:"email" validate:"required,email,max=254"`
}

func (r EnrollRequest) normalized() EnrollRequest {
	return EnrollRequest{
		GivenName:  strings.TrimSpace(r.GivenName),
		FamilyName: strings.TrimSpace(r.FamilyName),
		Email:      strings.ToLower(strings.TrimSpace(r.Email)),
	}
}

// EnrollResult is the classified outcome of Enroll. Failure is FailureNone on
// success; Message is always suitable for showing to the operator.
type EnrollResult struct {
	Failure FailureKind    `json:"failure,omitempty"`
	Message string         `json:"message"`
	Person  *models.Person `json:"person,omitempty"`
	Source  faces.Source   `json:"source,omitempty"`
	Fields  []string       `json:"fields,omitempty"`
}

func (r EnrollResult) OK() bool {
	return r.Failure == FailureNone
}

func failed(kind FailureKind, format string, args ...interface{}) EnrollResult {
	return EnrollResult{Failure: kind, Message: fmt.Sprintf(format, args...)}
}

// EnrollmentService registers new identities and removes existing ones,
// keeping the identity index in step with the store.
type EnrollmentService struct {
	people   repository.PersonRepositoryInterface
	strategy faces.Strategy
	index    *IdentityIndex
	validate *validator.Validate
}

func NewEnrollmentService(people repository.PersonRepositoryInterface, strategy faces.Strategy, index *IdentityIndex) *EnrollmentService {
	return &EnrollmentService{
		people:   people,
		strategy: strategy,
		index:    index,
		validate: validator.New(),
	}
}

// Enroll validates the form, rejects known emails, extracts a descriptor from
// the first face in capture and stores identity and descriptor together.
// Nothing is written unless every check passes.
func (s *EnrollmentService) Enroll(ctx context.Context, req EnrollRequest, capture image.Image) EnrollResult {
	log := logger.Named("enrollment")
	req = req.normalized()

	if err := s.validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		res := failed(FailureInvalidInput, "all fields are required and the email must be valid")
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				res.Fields = append(res.Fields, fe.Field())
			}
		}
		return res
	}

	exists, err := s.people.EmailExists(ctx, req.Email)
	if err != nil {
		log.Errorf("email check for %s failed: %v", req.Email, err)
		return failed(FailureStore, "could not check the email against the store")
	}
	if exists {
		return failed(FailureDuplicateEmail, "a person with email %s is already registered", req.Email)
	}

	if capture == nil || capture.Bounds().Empty() {
		return failed(FailureNoFaceDetected, "no capture was provided")
	}
	regions := s.strategy.DetectFaces(capture)
	if len(regions) == 0 {
		return failed(FailureNoFaceDetected, "no face was detected in the capture")
	}
	ex := s.strategy.Extract(capture, regions[0])
	if !ex.Found() {
		return failed(FailureNoFaceDetected, "the detected face could not be described (%s)", ex.Reason)
	}

	person := &models.Person{GivenName: req.GivenName, FamilyName: req.FamilyName, Email: req.Email}
	if err := s.people.CreateWithEmbedding(ctx, person, ex.Descriptor); err != nil {
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return failed(FailureDuplicateEmail, "a person with email %s is already registered", req.Email)
		}
		log.Errorf("storing %s failed: %v", req.Email, err)
		return failed(FailureStore, "the person could not be saved")
	}

	if _, err := s.index.Reload(ctx); err != nil {
		log.Warnf("person %d stored but index reload failed: %v", person.ID, err)
	}

	log.Infof("enrolled %s (person %d, %s descriptor via %s)", person.DisplayName(), person.ID, ex.Descriptor.Kind, ex.Source)
	return EnrollResult{
		Message: fmt.Sprintf("%s registered successfully", person.DisplayName()),
		Person:  person,
		Source:  ex.Source,
	}
}

// Unenroll deletes a person with their descriptors and detection history,
// then reloads the index. It returns the removed person's display name.
func (s *EnrollmentService) Unenroll(ctx context.Context, personID uint) (string, error) {
	name, err := s.people.Delete(ctx, personID)
	if err != nil {
		return "", err
	}
	if _, err := s.index.Reload(ctx); err != nil {
		logger.Named("enrollment").Warnf("person %d deleted but index reload failed: %v", personID, err)
	}
	return name, nil
}
