package faces

import "image"

// Band is the outcome of applying a threshold table to a similarity.
type Band int

const (
	BandNone Band = iota
	BandTentative
	BandMatch
)

func (b Band) String() string {
	switch b {
	case BandMatch:
		return "match"
	case BandTentative:
		return "tentative"
	default:
		return "none"
	}
}

// Thresholds is a strategy's decision table. Similarities strictly above
// Match confirm an identity; with Tentative set, those strictly above
// TentativeFloor and at most Match are a tentative match.
type Thresholds struct {
	Match          float64
	Tentative      bool
	TentativeFloor float64
}

var (
	ClassicalThresholds = Thresholds{Match: 0.6}
	LearnedThresholds   = Thresholds{Match: 0.6, Tentative: true, TentativeFloor: 0.4}
)

func (t Thresholds) Classify(similarity float64) Band {
	switch {
	case similarity > t.Match:
		return BandMatch
	case t.Tentative && similarity > t.TentativeFloor:
		return BandTentative
	default:
		return BandNone
	}
}

// ThresholdsFor returns the table belonging to a descriptor kind. A learned
// strategy that fell back to classical extraction decides with the
// classical table, since the descriptor is classical.
func ThresholdsFor(kind Kind) Thresholds {
	if kind == KindLearned {
		return LearnedThresholds
	}
	return ClassicalThresholds
}

// Detector locates candidate face regions in a full frame.
type Detector interface {
	DetectFaces(img image.Image) []image.Rectangle
}

// Strategy bundles a detector, an extractor, and the scorer and thresholds
// that match the descriptors it produces. It is either a ClassicalStrategy
// or a LearnedStrategy.
type Strategy interface {
	Kind() Kind
	DetectFaces(img image.Image) []image.Rectangle
	Extract(img image.Image, region image.Rectangle) Extraction
	Score(a, b Descriptor) float64
	Thresholds(kind Kind) Thresholds

	isStrategy()
}

// detectWith runs d, or treats the whole frame as one region when no
// detector is configured (pre-cropped captures).
func detectWith(d Detector, img image.Image) []image.Rectangle {
	if img == nil || img.Bounds().Empty() {
		return nil
	}
	if d == nil {
		return []image.Rectangle{img.Bounds()}
	}
	return d.DetectFaces(img)
}

func score(a, b Descriptor) float64 {
	if a.Kind != b.Kind {
		return 0.0
	}
	return ScorerFor(a.Kind)(a, b)
}

type ClassicalStrategy struct {
	Detector  Detector
	Extractor ClassicalExtractor
}

func NewClassicalStrategy(detector Detector) *ClassicalStrategy {
	return &ClassicalStrategy{Detector: detector, Extractor: ClassicalExtractor{Size: ClassicalSize}}
}

func (s *ClassicalStrategy) Kind() Kind { return KindClassical }

func (s *ClassicalStrategy) DetectFaces(img image.Image) []image.Rectangle {
	return detectWith(s.Detector, img)
}

func (s *ClassicalStrategy) Extract(img image.Image, region image.Rectangle) Extraction {
	return s.Extractor.Extract(img, region)
}

func (s *ClassicalStrategy) Score(a, b Descriptor) float64 { return score(a, b) }

func (s *ClassicalStrategy) Thresholds(kind Kind) Thresholds { return ThresholdsFor(kind) }

func (s *ClassicalStrategy) isStrategy() {}

type LearnedStrategy struct {
	Detector  Detector
	Extractor LearnedExtractor
}

func NewLearnedStrategy(detector Detector, locator Locator, embedder Embedder) *LearnedStrategy {
	return &LearnedStrategy{
		Detector: detector,
		Extractor: LearnedExtractor{
			Locator:  locator,
			Embedder: embedder,
			Fallback: ClassicalExtractor{Size: ClassicalSize},
		},
	}
}

func (s *LearnedStrategy) Kind() Kind { return KindLearned }

func (s *LearnedStrategy) DetectFaces(img image.Image) []image.Rectangle {
	return detectWith(s.Detector, img)
}

func (s *LearnedStrategy) Extract(img image.Image, region image.Rectangle) Extraction {
	return s.Extractor.Extract(img, region)
}

func (s *LearnedStrategy) Score(a, b Descriptor) float64 { return score(a, b) }

func (s *LearnedStrategy) Thresholds(kind Kind) Thresholds { return ThresholdsFor(kind) }

func (s *LearnedStrategy) isStrategy() {}
