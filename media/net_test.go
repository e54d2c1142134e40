package media

import (
	"math"
	"testing"
)

func TestL2Normalize(t *testing.T) {
	got := l2Normalize([]float32{3, 4})
	if math.Abs(float64(got[0])-0.6) > 1e-6 || math.Abs(float64(got[1])-0.8) > 1e-6 {
		t.Errorf("expected [0.6 0.8], got %v", got)
	}

	zero := []float32{0, 0, 0}
	if out := l2Normalize(zero); len(out) != 3 || out[0] != 0 {
		t.Errorf("zero vector should be returned unchanged, got %v", out)
	}
}

func TestMatFromImage_Empty(t *testing.T) {
	if _, err := matFromImage(nil); err == nil {
		t.Error("expected an error for a nil image")
	}
}
