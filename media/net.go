package media

import (
	"fmt"
	"image"
	"math"
	"os"

	"gocv.io/x/gocv"

	"github.com/camden-git/facetrack/logger"
)

// readNet loads a network and prefers CUDA, dropping back to the CPU when
// the backend or target is not available.
func readNet(component, modelPath, configPath string) (gocv.Net, error) {
	log := logger.Named(component)

	if modelPath == "" {
		return gocv.Net{}, fmt.Errorf("%s: model path is empty", component)
	}
	if _, err := os.Stat(modelPath); err != nil {
		return gocv.Net{}, fmt.Errorf("%s: model file %s: %w", component, modelPath, err)
	}

	net := gocv.ReadNet(modelPath, configPath)
	if net.Empty() {
		return gocv.Net{}, fmt.Errorf("%s: ReadNet returned an empty network for %s", component, modelPath)
	}

	cudaBackendErr := net.SetPreferableBackend(gocv.NetBackendCUDA)
	cudaTargetErr := net.SetPreferableTarget(gocv.NetTargetCUDA)
	if cudaBackendErr == nil && cudaTargetErr == nil {
		log.Infof("loaded %s on CUDA", modelPath)
		return net, nil
	}

	log.Debugf("CUDA not available (backend: %v, target: %v)", cudaBackendErr, cudaTargetErr)
	_ = net.SetPreferableBackend(gocv.NetBackendDefault)
	_ = net.SetPreferableTarget(gocv.NetTargetCPU)
	log.Infof("loaded %s on CPU", modelPath)
	return net, nil
}

// matFromImage converts img to a 3-channel BGR Mat; the caller closes it.
func matFromImage(img image.Image) (gocv.Mat, error) {
	if img == nil || img.Bounds().Empty() {
		return gocv.Mat{}, fmt.Errorf("empty image")
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("convert image to mat: %w", err)
	}
	if mat.Empty() {
		mat.Close()
		return gocv.Mat{}, fmt.Errorf("convert image to mat: empty result")
	}
	return mat, nil
}

// flatten copies every float of a network output into a slice
func flatten(output gocv.Mat) []float32 {
	if output.Empty() {
		return nil
	}
	flat := output.Reshape(1, 1)
	defer flat.Close()

	values := make([]float32, flat.Cols())
	for i := range values {
		values[i] = flat.GetFloatAt(0, i)
	}
	return values
}

func l2Normalize(values []float32) []float32 {
	var norm float64
	for _, v := range values {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return values
	}

	normalized := make([]float32, len(values))
	for i, v := range values {
		normalized[i] = float32(float64(v) / norm)
	}
	return normalized
}
