// Package emotion classifies the expression on a cropped face. A model-backed
// classifier is used when an emotion model is available; otherwise a
// brightness/mouth-variance heuristic stands in.
package emotion

import (
	"errors"
	"image"

	"github.com/camden-git/facetrack/logger"
)

const (
	Anger     = "Enojo"
	Disgust   = "Desagrado"
	Fear      = "Miedo"
	Happiness = "Felicidad"
	Sadness   = "Tristeza"
	Surprise  = "Sorpresa"
	Neutral   = "Neutral"

	// Error is reported when classification fails.
	Error = "Error"
	// Undetectable is reported when the face could not be prepared for the model.
	Undetectable = "No detectable"
)

// Labels is the model's output order.
var Labels = []string{Anger, Disgust, Fear, Happiness, Sadness, Surprise, Neutral}

// InputSize is the side of the grayscale square the model consumes.
const InputSize = 48

// MinConfidence is the bar below which a model prediction is reported as Neutral.
const MinConfidence = 0.6

// Classifier predicts an emotion label and its confidence for a face crop.
// Implementations wrapped by Safe may panic; Safe never does.
type Classifier interface {
	Predict(face image.Image) (string, float64)
}

// Model produces one probability per entry of Labels.
type Model interface {
	Probabilities(face image.Image) ([]float32, error)
}

// ErrPreprocess marks failures to prepare the input, as opposed to inference
// failures.
var ErrPreprocess = errors.New("face could not be preprocessed")

// ModelClassifier turns a Model's probabilities into a label.
type ModelClassifier struct {
	Model Model
}

func (c ModelClassifier) Predict(face image.Image) (string, float64) {
	if c.Model == nil {
		return Error, 0.0
	}
	if face == nil || face.Bounds().Empty() {
		return Undetectable, 0.0
	}

	probs, err := c.Model.Probabilities(face)
	if err != nil {
		if errors.Is(err, ErrPreprocess) {
			return Undetectable, 0.0
		}
		logger.Named("emotion").Warnf("emotion model failed: %v", err)
		return Error, 0.0
	}
	if len(probs) != len(Labels) {
		logger.Named("emotion").Warnf("emotion model returned %d scores, expected %d", len(probs), len(Labels))
		return Error, 0.0
	}

	best := 0
	for i := 1; i < len(probs); i++ {
		if probs[i] > probs[best] {
			best = i
		}
	}
	confidence := float64(probs[best])
	if confidence < MinConfidence {
		return Neutral, confidence
	}
	return Labels[best], confidence
}

type safeClassifier struct {
	inner Classifier
}

// Safe wraps c so that a nil classifier or a panic yields ("Error", 0.0) and
// confidences are clamped to [0, 1].
func Safe(c Classifier) Classifier {
	if s, ok := c.(safeClassifier); ok {
		return s
	}
	return safeClassifier{inner: c}
}

func (s safeClassifier) Predict(face image.Image) (label string, confidence float64) {
	defer func() {
		if r := recover(); r != nil {
			logger.Named("emotion").Errorf("emotion classifier panicked: %v", r)
			label, confidence = Error, 0.0
		}
	}()

	if s.inner == nil {
		return Error, 0.0
	}
	label, confidence = s.inner.Predict(face)
	if confidence != confidence || confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}
	return label, confidence
}
