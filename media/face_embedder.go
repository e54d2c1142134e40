package media

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// FaceEmbedder extracts an identity embedding from a cropped face with an
// ArcFace or FaceNet style network.
type FaceEmbedder struct {
	net    gocv.Net
	mu     sync.Mutex
	closed bool

	ModelName  string
	InputSizeW int
	InputSizeH int
}

func NewFaceEmbedder(modelPath, modelName string) (*FaceEmbedder, error) {
	net, err := readNet("embedding", modelPath, "")
	if err != nil {
		return nil, err
	}

	e := &FaceEmbedder{net: net, ModelName: modelName, InputSizeW: 112, InputSizeH: 112}
	if modelName == "facenet" {
		e.InputSizeW, e.InputSizeH = 160, 160
	}
	return e, nil
}

func (e *FaceEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	err := e.net.Close()
	return err
}

// Embed returns the L2-normalized embedding of face.
func (e *FaceEmbedder) Embed(face image.Image) ([]float32, error) {
	mat, err := matFromImage(face)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	// networks expect RGB
	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(mat, &rgb, gocv.ColorBGRToRGB)

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(rgb, &resized, image.Pt(e.InputSizeW, e.InputSizeH), 0, 0, gocv.InterpolationLinear)

	blob := gocv.BlobFromImage(resized, 1.0/255.0, image.Pt(e.InputSizeW, e.InputSizeH), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil, errors.New("embedder closed")
	}
	e.net.SetInput(blob, "")
	out := e.net.Forward("")
	e.mu.Unlock()
	defer out.Close()

	values := flatten(out)
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned an empty embedding", e.ModelName)
	}
	return l2Normalize(values), nil
}
