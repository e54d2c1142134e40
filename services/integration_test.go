package services

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"gorm.io/gorm"

	"github.com/camden-git/facetrack/database"
	"github.com/camden-git/facetrack/faces"
	"github.com/camden-git/facetrack/models"
	"github.com/camden-git/facetrack/repository"
)

type storeFixture struct {
	db         *gorm.DB
	people     *repository.PersonRepository
	detections *repository.DetectionRepository
	index      *IdentityIndex
	enrollment *EnrollmentService
	recognizer *Recognizer
}

func newStoreFixture(t *testing.T, strategy faces.Strategy) *storeFixture {
	t.Helper()
	db, err := database.InitGormDB(filepath.Join(t.TempDir(), "facetrack.db"))
	if err != nil {
		t.Fatalf("InitGormDB failed: %v", err)
	}
	if err := database.AutoMigrateModels(db); err != nil {
		t.Fatalf("AutoMigrateModels failed: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	people := repository.NewPersonRepository(db)
	index := NewIdentityIndex(people)
	return &storeFixture{
		db:         db,
		people:     people,
		detections: repository.NewDetectionRepository(db),
		index:      index,
		enrollment: NewEnrollmentService(people, strategy, index),
		recognizer: NewRecognizer(strategy, index),
	}
}

func TestStore_EnrollThenRecognizeSameImage(t *testing.T) {
	f := newStoreFixture(t, faces.NewClassicalStrategy(nil))
	ctx := context.Background()
	capture := patternImage(7)

	res := f.enrollment.Enroll(ctx, validRequest(), capture)
	if !res.OK() {
		t.Fatalf("enrollment failed: %s", res.Message)
	}
	other := EnrollRequest{GivenName: "Luis", FamilyName: "Mora", Email: "luis@example.com"}
	if res := f.enrollment.Enroll(ctx, other, patternImage(13)); !res.OK() {
		t.Fatalf("second enrollment failed: %s", res.Message)
	}

	rec := f.recognizer.Recognize(capture, capture.Bounds())
	if rec.Outcome != OutcomeMatched {
		t.Fatalf("expected a match, got %+v", rec)
	}
	if rec.PersonID != res.Person.ID || rec.Similarity <= 0.6 {
		t.Errorf("expected person %d above 0.6, got %+v", res.Person.ID, rec)
	}
}

func TestStore_DuplicateEmailKeepsIndexSize(t *testing.T) {
	f := newStoreFixture(t, faces.NewClassicalStrategy(nil))
	ctx := context.Background()

	if res := f.enrollment.Enroll(ctx, validRequest(), patternImage(7)); !res.OK() {
		t.Fatalf("enrollment failed: %s", res.Message)
	}
	before := f.index.Len()

	res := f.enrollment.Enroll(ctx, validRequest(), patternImage(11))
	if res.Failure != FailureDuplicateEmail {
		t.Fatalf("expected DuplicateEmail, got %q", res.Failure)
	}
	if f.index.Len() != before {
		t.Errorf("index size changed from %d to %d", before, f.index.Len())
	}

	var count int64
	f.db.Model(&models.Person{}).Count(&count)
	if count != 1 {
		t.Errorf("expected 1 stored person, got %d", count)
	}
}

func TestStore_UnenrollCascades(t *testing.T) {
	f := newStoreFixture(t, faces.NewClassicalStrategy(nil))
	ctx := context.Background()

	res := f.enrollment.Enroll(ctx, validRequest(), patternImage(7))
	if !res.OK() {
		t.Fatalf("enrollment failed: %s", res.Message)
	}
	id := res.Person.ID
	for i := 0; i < 3; i++ {
		if err := f.detections.Append(ctx, &models.EmotionDetection{PersonID: &id, Emotion: "Neutral", Confidence: 0.6}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	if _, err := f.enrollment.Unenroll(ctx, id); err != nil {
		t.Fatalf("Unenroll failed: %v", err)
	}

	var embeddings, detections int64
	f.db.Model(&models.Embedding{}).Where("persona_id = ?", id).Count(&embeddings)
	f.db.Model(&models.EmotionDetection{}).Where("persona_id = ?", id).Count(&detections)
	if embeddings != 0 || detections != 0 {
		t.Errorf("expected cascade, found %d embeddings and %d detections", embeddings, detections)
	}
	if !f.index.IsEmpty() {
		t.Error("expected index to be empty after unenroll")
	}
}

func TestStore_CorruptDescriptorDoesNotBlockReload(t *testing.T) {
	f := newStoreFixture(t, faces.NewClassicalStrategy(nil))
	ctx := context.Background()

	first := f.enrollment.Enroll(ctx, validRequest(), patternImage(7))
	second := f.enrollment.Enroll(ctx, EnrollRequest{GivenName: "Luis", FamilyName: "Mora", Email: "luis@example.com"}, patternImage(13))
	if !first.OK() || !second.OK() {
		t.Fatalf("enrollments failed: %s / %s", first.Message, second.Message)
	}

	err := f.db.Model(&models.Embedding{}).
		Where("persona_id = ?", first.Person.ID).
		Update("embedding", "{not json").Error
	if err != nil {
		t.Fatalf("corrupting row failed: %v", err)
	}

	n, err := f.index.Reload(ctx)
	if err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 valid entry, got %d", n)
	}
	if f.index.Entries()[0].PersonID != second.Person.ID {
		t.Errorf("expected the intact descriptor to survive")
	}
}

func TestStore_EmptyIndexRecognition(t *testing.T) {
	f := newStoreFixture(t, faces.NewClassicalStrategy(nil))
	if _, err := f.index.Reload(context.Background()); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	img := patternImage(2)
	for _, res := range f.recognizer.RecognizeFrame(img) {
		if res.Reason != ReasonNoIdentities {
			t.Errorf("expected %q, got %+v", ReasonNoIdentities, res)
		}
	}
}

func TestStore_NonFiniteEmbeddingEnrollsWithClassicalFallback(t *testing.T) {
	strategy := faces.NewLearnedStrategy(nil, fixedLocator{}, fixedEmbedder{values: []float32{float32(math.NaN()), 1, 2}})
	f := newStoreFixture(t, strategy)
	ctx := context.Background()
	capture := patternImage(7)

	res := f.enrollment.Enroll(ctx, validRequest(), capture)
	if !res.OK() {
		t.Fatalf("expected a fallback enrollment, got %s: %s", res.Failure, res.Message)
	}
	if res.Source != faces.SourceFallback {
		t.Errorf("expected source %s, got %s", faces.SourceFallback, res.Source)
	}

	rec := f.recognizer.Recognize(capture, capture.Bounds())
	if rec.Outcome != OutcomeMatched || rec.PersonID != res.Person.ID {
		t.Errorf("expected the fallback enrollment to be recognized, got %+v", rec)
	}
}
