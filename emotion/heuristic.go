package emotion

import (
	"image"

	"github.com/disintegration/imaging"
)

// HeuristicClassifier guesses an emotion from mean brightness and the
// intensity variance of the mouth band (rows 60-80%, columns 25-75%). It is
// used when no emotion model is installed.
type HeuristicClassifier struct{}

func (HeuristicClassifier) Predict(face image.Image) (string, float64) {
	if face == nil || face.Bounds().Empty() {
		return Undetectable, 0.0
	}

	gray := imaging.Grayscale(face)
	w, h := gray.Bounds().Dx(), gray.Bounds().Dy()

	brightness := meanIntensity(gray, image.Rect(0, 0, w, h))
	mouth := image.Rect(w*25/100, h*60/100, w*75/100, h*80/100)
	variance := intensityVariance(gray, mouth)

	switch {
	case variance > 500 && brightness > 80:
		return Happiness, 0.85
	case brightness < 60:
		return Sadness, 0.7
	case variance > 400:
		return Surprise, 0.75
	default:
		return Neutral, 0.6
	}
}

// gray.Pix holds identical R, G and B bytes after imaging.Grayscale.
func intensityAt(gray *image.NRGBA, x, y int) float64 {
	return float64(gray.Pix[y*gray.Stride+x*4])
}

func meanIntensity(gray *image.NRGBA, r image.Rectangle) float64 {
	if r.Empty() {
		return 0
	}
	var sum float64
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			sum += intensityAt(gray, x, y)
		}
	}
	return sum / float64(r.Dx()*r.Dy())
}

func intensityVariance(gray *image.NRGBA, r image.Rectangle) float64 {
	if r.Empty() {
		return 0
	}
	mean := meanIntensity(gray, r)
	var sum float64
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			d := intensityAt(gray, x, y) - mean
			sum += d * d
		}
	}
	return sum / float64(r.Dx()*r.Dy())
}
