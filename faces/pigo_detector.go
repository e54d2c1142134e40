package faces

import (
	"fmt"
	"image"
	"os"
	"sort"
	"sync"

	pigo "github.com/esimov/pigo/core"

	"github.com/camden-git/facetrack/logger"
)

// PigoParams holds the cascade search parameters.
type PigoParams struct {
	MinSize          int
	MaxSize          int
	ShiftFactor      float64
	ScaleFactor      float64
	QualityThreshold float32
	IoUThreshold     float64
}

var DefaultPigoParams = PigoParams{
	MinSize:          30,
	MaxSize:          1000,
	ShiftFactor:      0.1,
	ScaleFactor:      1.1,
	QualityThreshold: 5.0,
	IoUThreshold:     0.2,
}

// PigoDetector is the classical, model-free face detector.
type PigoDetector struct {
	classifier *pigo.Pigo
	params     PigoParams
	mu         sync.Mutex
}

// NewPigoDetector unpacks a pigo cascade file (e.g. "facefinder").
func NewPigoDetector(cascadePath string, params PigoParams) (*PigoDetector, error) {
	cascadeFile, err := os.ReadFile(cascadePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read pigo cascade file %s: %w", cascadePath, err)
	}

	classifier, err := pigo.NewPigo().Unpack(cascadeFile)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack pigo cascade: %w", err)
	}

	logger.Named("detection").Infof("detection(pigo): loaded cascade %s", cascadePath)
	return &PigoDetector{classifier: classifier, params: params}, nil
}

// grayscalePixels converts img to the row-major intensity buffer pigo expects
func grayscalePixels(img image.Image) ([]uint8, int, int) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	pixels := make([]uint8, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			pixels[y*width+x] = uint8((r*299 + g*587 + b*114) / 1000 / 256)
		}
	}
	return pixels, width, height
}

// DetectFaces returns face boxes in image coordinates, most confident first.
func (d *PigoDetector) DetectFaces(img image.Image) []image.Rectangle {
	if d == nil || d.classifier == nil || img == nil || img.Bounds().Empty() {
		return nil
	}

	pixels, width, height := grayscalePixels(img)
	cParams := pigo.CascadeParams{
		MinSize:     d.params.MinSize,
		MaxSize:     d.params.MaxSize,
		ShiftFactor: d.params.ShiftFactor,
		ScaleFactor: d.params.ScaleFactor,
		ImageParams: pigo.ImageParams{
			Pixels: pixels,
			Rows:   height,
			Cols:   width,
			Dim:    width,
		},
	}

	d.mu.Lock()
	dets := d.classifier.RunCascade(cParams, 0.0)
	dets = d.classifier.ClusterDetections(dets, d.params.IoUThreshold)
	d.mu.Unlock()

	sort.SliceStable(dets, func(i, j int) bool { return dets[i].Q > dets[j].Q })

	origin := img.Bounds().Min
	faces := make([]image.Rectangle, 0, len(dets))
	for _, det := range dets {
		if det.Q <= d.params.QualityThreshold {
			continue
		}
		x := det.Col - det.Scale/2
		y := det.Row - det.Scale/2
		rect := image.Rect(x, y, x+det.Scale, y+det.Scale).Add(origin).Intersect(img.Bounds())
		if !rect.Empty() {
			faces = append(faces, rect)
		}
	}
	return faces
}
