package services

import (
	"fmt"
	"image"
	"math"

	"github.com/camden-git/facetrack/faces"
	"github.com/camden-git/facetrack/logger"
)

// Outcome is the decision reached for one face region.
type Outcome string

const (
	OutcomeUnmatched Outcome = "unmatched"
	OutcomeTentative Outcome = "tentative"
	OutcomeMatched   Outcome = "matched"
)

const (
	ReasonNoDescriptor  = "no face descriptor"
	ReasonNoIdentities  = "no identities registered"
	ReasonNotRegistered = "not registered"
	ReasonError         = "recognition error"
)

// TentativePrefix is put in front of the display name of a tentative match.
const TentativePrefix = "Possibly "

// Recognition is the result for one region. Matched and tentative results
// carry the identity; unmatched ones carry a reason and a similarity of 0.
type Recognition struct {
	Outcome     Outcome         `json:"outcome"`
	PersonID    uint            `json:"person_id,omitempty"`
	DisplayName string          `json:"display_name,omitempty"`
	Similarity  float64         `json:"similarity"`
	Reason      string          `json:"reason,omitempty"`
	Region      image.Rectangle `json:"region"`
	Source      faces.Source    `json:"source"`
}

func unmatched(region image.Rectangle, reason string) Recognition {
	return Recognition{Outcome: OutcomeUnmatched, Reason: reason, Region: region, Similarity: 0.0}
}

func (r Recognition) Matched() bool {
	return r.Outcome == OutcomeMatched
}

// Recognizer matches face regions against the identity index using one
// strategy. It never writes to the store and never fails: every call ends in
// a Recognition.
type Recognizer struct {
	strategy faces.Strategy
	index    *IdentityIndex
}

func NewRecognizer(strategy faces.Strategy, index *IdentityIndex) *Recognizer {
	return &Recognizer{strategy: strategy, index: index}
}

func (r *Recognizer) Strategy() faces.Strategy {
	return r.strategy
}

// Recognize decides who, if anyone, is in region of img.
func (r *Recognizer) Recognize(img image.Image, region image.Rectangle) (result Recognition) {
	log := logger.Named("recognizer")
	defer func() {
		if p := recover(); p != nil {
			log.Errorf("recognition panicked for region %v: %v", region, p)
			result = unmatched(region, ReasonError)
		}
	}()

	if r == nil || r.strategy == nil || r.index == nil {
		return unmatched(region, ReasonError)
	}

	// nothing to compare against, whatever the input
	entries := r.index.Entries()
	if len(entries) == 0 {
		return unmatched(region, ReasonNoIdentities)
	}

	ex := r.strategy.Extract(img, region)
	if !ex.Found() {
		res := unmatched(region, ReasonNoDescriptor)
		res.Source = ex.Source
		return res
	}

	query := ex.Descriptor
	best := -1
	bestScore := math.Inf(-1)
	for i, entry := range entries {
		if entry.Descriptor.Kind != query.Kind {
			continue
		}
		s := r.strategy.Score(query, entry.Descriptor)
		if s > bestScore {
			best, bestScore = i, s
		}
	}

	if best < 0 {
		log.Debugf("no %s descriptors enrolled to compare against", query.Kind)
		res := unmatched(region, ReasonNotRegistered)
		res.Source = ex.Source
		return res
	}

	entry := entries[best]
	switch r.strategy.Thresholds(query.Kind).Classify(bestScore) {
	case faces.BandMatch:
		return Recognition{
			Outcome:     OutcomeMatched,
			PersonID:    entry.PersonID,
			DisplayName: entry.DisplayName,
			Similarity:  bestScore,
			Region:      region,
			Source:      ex.Source,
		}
	case faces.BandTentative:
		return Recognition{
			Outcome:     OutcomeTentative,
			PersonID:    entry.PersonID,
			DisplayName: TentativePrefix + entry.DisplayName,
			Similarity:  bestScore,
			Region:      region,
			Source:      ex.Source,
		}
	default:
		log.Debugf("best candidate %s scored %.4f, below threshold", entry.DisplayName, bestScore)
		res := unmatched(region, ReasonNotRegistered)
		res.Source = ex.Source
		return res
	}
}

// RecognizeFrame detects the face regions of a frame with the strategy's
// detector and recognizes each of them in detection order.
func (r *Recognizer) RecognizeFrame(img image.Image) []Recognition {
	regions, err := r.detect(img)
	if err != nil {
		logger.Named("recognizer").Errorf("face detection failed: %v", err)
		if img == nil {
			return []Recognition{unmatched(image.Rectangle{}, ReasonError)}
		}
		return []Recognition{unmatched(img.Bounds(), ReasonError)}
	}

	results := make([]Recognition, 0, len(regions))
	for _, region := range regions {
		results = append(results, r.Recognize(img, region))
	}
	return results
}

func (r *Recognizer) detect(img image.Image) (regions []image.Rectangle, err error) {
	defer func() {
		if p := recover(); p != nil {
			regions, err = nil, fmt.Errorf("detector panicked: %v", p)
		}
	}()
	if r == nil || r.strategy == nil {
		return nil, fmt.Errorf("recognizer has no strategy")
	}
	return r.strategy.DetectFaces(img), nil
}
