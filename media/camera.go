package media

import (
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/camden-git/facetrack/logger"
)

// Camera is an open capture device.
type Camera struct {
	capture *gocv.VideoCapture
	frame   gocv.Mat
	index   int
	mu      sync.Mutex
	closed  bool
}

// OpenCamera opens device index, trying index+1 when the first one is not
// available, and requests width x height frames.
func OpenCamera(index, width, height int) (*Camera, error) {
	log := logger.Named("camera")

	var firstErr error
	for _, id := range []int{index, index + 1} {
		capture, err := gocv.OpenVideoCapture(id)
		if err == nil && capture.IsOpened() {
			capture.Set(gocv.VideoCaptureFrameWidth, float64(width))
			capture.Set(gocv.VideoCaptureFrameHeight, float64(height))
			log.Infof("opened camera %d (%dx%d requested)", id, width, height)
			return &Camera{capture: capture, frame: gocv.NewMat(), index: id}, nil
		}
		if capture != nil {
			capture.Close()
		}
		if err == nil {
			err = fmt.Errorf("device %d did not open", id)
		}
		if firstErr == nil {
			firstErr = err
		}
		log.Warnf("camera %d unavailable: %v", id, err)
	}
	return nil, fmt.Errorf("no camera available: %w", firstErr)
}

func (c *Camera) Index() int { return c.index }

// NextFrame reads one frame; false means the device produced nothing usable.
func (c *Camera) NextFrame() (image.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, false
	}
	if ok := c.capture.Read(&c.frame); !ok || c.frame.Empty() {
		return nil, false
	}
	img, err := c.frame.ToImage()
	if err != nil {
		logger.Named("camera").Debugf("frame conversion failed: %v", err)
		return nil, false
	}
	return img, true
}

func (c *Camera) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.frame.Close()
	return c.capture.Close()
}
