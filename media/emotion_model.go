package media

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/camden-git/facetrack/emotion"
)

// EmotionNet runs a 48x48 grayscale emotion classification network and
// returns one probability per emotion.Labels entry.
type EmotionNet struct {
	net    gocv.Net
	mu     sync.Mutex
	closed bool
}

func NewEmotionNet(modelPath string) (*EmotionNet, error) {
	net, err := readNet("emotion", modelPath, "")
	if err != nil {
		return nil, err
	}
	return &EmotionNet{net: net}, nil
}

func (m *EmotionNet) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	err := m.net.Close()
	return err
}

func (m *EmotionNet) Probabilities(face image.Image) ([]float32, error) {
	mat, err := matFromImage(face)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", emotion.ErrPreprocess, err)
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	size := image.Pt(emotion.InputSize, emotion.InputSize)
	blob := gocv.BlobFromImage(gray, 1.0/255.0, size, gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, errors.New("emotion model closed")
	}
	m.net.SetInput(blob, "")
	out := m.net.Forward("")
	m.mu.Unlock()
	defer out.Close()

	return flatten(out), nil
}
