package faces

import (
	"image"
	"testing"
)

func TestThresholds_Classify(t *testing.T) {
	tests := []struct {
		name       string
		thresholds Thresholds
		similarity float64
		want       Band
	}{
		{"classical above", ClassicalThresholds, 0.61, BandMatch},
		{"classical at boundary", ClassicalThresholds, 0.6, BandNone},
		{"classical middle", ClassicalThresholds, 0.5, BandNone},
		{"learned above", LearnedThresholds, 0.95, BandMatch},
		{"learned at match boundary", LearnedThresholds, 0.6, BandTentative},
		{"learned tentative", LearnedThresholds, 0.5, BandTentative},
		{"learned at floor", LearnedThresholds, 0.4, BandNone},
		{"learned negative", LearnedThresholds, -0.3, BandNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.thresholds.Classify(tt.similarity); got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.similarity, got, tt.want)
			}
		})
	}
}

func TestThresholdsFor(t *testing.T) {
	if ThresholdsFor(KindLearned) != LearnedThresholds {
		t.Error("expected learned thresholds for learned descriptors")
	}
	if ThresholdsFor(KindClassical) != ClassicalThresholds {
		t.Error("expected classical thresholds for classical descriptors")
	}
}

type fixedDetector []image.Rectangle

func (d fixedDetector) DetectFaces(image.Image) []image.Rectangle { return d }

func TestStrategy_DetectFaces(t *testing.T) {
	img := gradientImage(80, 60)

	s := NewClassicalStrategy(nil)
	regions := s.DetectFaces(img)
	if len(regions) != 1 || regions[0] != img.Bounds() {
		t.Errorf("expected whole frame as the only region, got %v", regions)
	}

	box := image.Rect(5, 5, 30, 30)
	l := NewLearnedStrategy(fixedDetector{box}, nil, nil)
	regions = l.DetectFaces(img)
	if len(regions) != 1 || regions[0] != box {
		t.Errorf("expected detector regions, got %v", regions)
	}

	if got := s.DetectFaces(nil); got != nil {
		t.Errorf("expected no regions for nil image, got %v", got)
	}
}

func TestStrategy_ScoreNeverMixesKinds(t *testing.T) {
	learned := Descriptor{Kind: KindLearned, Values: []float32{1, 2, 3}}
	classical := Descriptor{Kind: KindClassical, Values: []float32{1, 2, 3}}

	for _, s := range []Strategy{NewClassicalStrategy(nil), NewLearnedStrategy(nil, nil, nil)} {
		if got := s.Score(learned, classical); got != 0 {
			t.Errorf("%s: expected 0 across kinds, got %v", s.Kind(), got)
		}
		if got := s.Score(classical, classical); got != 1.0 {
			t.Errorf("%s: expected 1.0 for identical classical, got %v", s.Kind(), got)
		}
		if got := s.Score(learned, learned); got < 0.999999 {
			t.Errorf("%s: expected ~1.0 for identical learned, got %v", s.Kind(), got)
		}
	}
}

func TestLearnedStrategy_FallbackDescriptorUsesClassicalTable(t *testing.T) {
	img := gradientImage(60, 60)
	s := NewLearnedStrategy(nil, nil, nil)

	ex := s.Extract(img, img.Bounds())
	if ex.Source != SourceFallback {
		t.Fatalf("expected fallback extraction, got %s", ex.Source)
	}
	if s.Thresholds(ex.Descriptor.Kind).Tentative {
		t.Error("fallback descriptors must be decided with the classical table")
	}
}
