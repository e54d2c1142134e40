package media

import (
	"errors"
	"image"
	"sort"
	"sync"

	"gocv.io/x/gocv"

	"github.com/camden-git/facetrack/logger"
)

var ErrNoFace = errors.New("no face found")

// DNNDetector runs the SSD face detection network. It serves as the
// learned strategy's frame detector and as its per-region face locator.
type DNNDetector struct {
	net    gocv.Net
	mu     sync.Mutex
	closed bool

	InputSizeW    int
	InputSizeH    int
	ScaleFactor   float64
	MeanVal       gocv.Scalar
	ConfThreshold float32
}

type detection struct {
	rect       image.Rectangle
	confidence float32
}

func NewDNNDetector(configPath, modelPath string) (*DNNDetector, error) {
	net, err := readNet("detection", modelPath, configPath)
	if err != nil {
		return nil, err
	}
	return &DNNDetector{
		net:           net,
		InputSizeW:    300,
		InputSizeH:    300,
		ScaleFactor:   1.0,
		MeanVal:       gocv.NewScalar(104.0, 177.0, 123.0, 0),
		ConfThreshold: 0.5,
	}, nil
}

func (d *DNNDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	err := d.net.Close()
	return err
}

// DetectFaces returns face boxes in image coordinates, most confident first.
func (d *DNNDetector) DetectFaces(img image.Image) []image.Rectangle {
	dets, err := d.detect(img)
	if err != nil {
		logger.Named("detection").Warnf("dnn detection failed: %v", err)
		return nil
	}
	faces := make([]image.Rectangle, len(dets))
	for i, det := range dets {
		faces[i] = det.rect
	}
	return faces
}

// Locate returns the most confident face box inside img.
func (d *DNNDetector) Locate(img image.Image) (image.Rectangle, error) {
	dets, err := d.detect(img)
	if err != nil {
		return image.Rectangle{}, err
	}
	if len(dets) == 0 {
		return image.Rectangle{}, ErrNoFace
	}
	return dets[0].rect, nil
}

func (d *DNNDetector) detect(img image.Image) ([]detection, error) {
	mat, err := matFromImage(img)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	imgWidth := float32(mat.Cols())
	imgHeight := float32(mat.Rows())

	blob := gocv.BlobFromImage(mat, d.ScaleFactor, image.Pt(d.InputSizeW, d.InputSizeH), d.MeanVal, false, false)
	defer blob.Close()

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, errors.New("detector closed")
	}
	d.net.SetInput(blob, "")
	out := d.net.Forward("")
	d.mu.Unlock()
	defer out.Close()

	// SSD output is [1, 1, N, 7]: image id, class, confidence, box
	sizes := out.Size()
	if len(sizes) != 4 || sizes[3] != 7 {
		return nil, errors.New("unexpected detector output shape")
	}
	numDetections := sizes[2]
	if numDetections == 0 {
		return nil, nil
	}

	rows := out.Reshape(1, numDetections)
	defer rows.Close()

	origin := img.Bounds().Min
	var results []detection
	for i := 0; i < numDetections; i++ {
		confidence := rows.GetFloatAt(i, 2)
		if confidence <= d.ConfThreshold {
			continue
		}

		xMin := max(0, rows.GetFloatAt(i, 3)*imgWidth)
		yMin := max(0, rows.GetFloatAt(i, 4)*imgHeight)
		xMax := min(imgWidth, rows.GetFloatAt(i, 5)*imgWidth)
		yMax := min(imgHeight, rows.GetFloatAt(i, 6)*imgHeight)
		if xMax <= xMin || yMax <= yMin {
			continue
		}

		results = append(results, detection{
			rect:       image.Rect(int(xMin), int(yMin), int(xMax), int(yMax)).Add(origin),
			confidence: confidence,
		})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].confidence > results[j].confidence })
	return results, nil
}
