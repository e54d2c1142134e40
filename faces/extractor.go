package faces

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"

	"github.com/camden-git/facetrack/logger"
)

// ClassicalSize is the side of the square the classical strategy samples.
const ClassicalSize = 100

// Source records which path produced an extraction.
type Source string

const (
	SourceNone      Source = "none"
	SourceClassical Source = "classical"
	SourceLearned   Source = "learned"
	SourceFallback  Source = "fallback"
)

// Extraction is the outcome of running an extractor over a region: either a
// descriptor or a definite "no descriptor".
type Extraction struct {
	Descriptor Descriptor
	Source     Source
	Reason     string
}

// Found reports whether a descriptor was produced.
func (e Extraction) Found() bool {
	return e.Source != SourceNone && !e.Descriptor.Empty()
}

func noDescriptor(reason string) Extraction {
	return Extraction{Source: SourceNone, Reason: reason}
}

// usableRegion clips region to the image and rejects empty results
func usableRegion(img image.Image, region image.Rectangle) (image.Rectangle, bool) {
	if img == nil {
		return image.Rectangle{}, false
	}
	clipped := region.Intersect(img.Bounds())
	if clipped.Empty() {
		return image.Rectangle{}, false
	}
	return clipped, true
}

// ClassicalExtractor resizes a region to a small square, converts it to
// intensity and flattens it into values in [0, 1].
type ClassicalExtractor struct {
	Size int
}

func (c ClassicalExtractor) size() int {
	if c.Size <= 0 {
		return ClassicalSize
	}
	return c.Size
}

// Extract never panics; failures produce no descriptor.
func (c ClassicalExtractor) Extract(img image.Image, region image.Rectangle) (ex Extraction) {
	rect, ok := usableRegion(img, region)
	if !ok {
		return noDescriptor("empty region")
	}

	defer func() {
		if r := recover(); r != nil {
			logger.Named("extractor").Warnf("classical extraction failed: %v", r)
			ex = noDescriptor(fmt.Sprintf("classical extraction failed: %v", r))
		}
	}()

	size := c.size()
	face := imaging.Crop(img, rect)
	resized := imaging.Resize(face, size, size, imaging.Linear)
	gray := imaging.Grayscale(resized)

	values := make([]float32, 0, size*size)
	for y := 0; y < size; y++ {
		row := gray.Pix[y*gray.Stride : y*gray.Stride+size*4]
		for x := 0; x < size; x++ {
			values = append(values, float32(row[x*4])/255.0)
		}
	}

	return Extraction{
		Descriptor: Descriptor{Kind: KindClassical, Values: values},
		Source:     SourceClassical,
	}
}

// Locator finds the face box inside an image with a dedicated detector model.
type Locator interface {
	Locate(img image.Image) (image.Rectangle, error)
}

// Embedder runs an embedding model over a cropped face.
type Embedder interface {
	Embed(face image.Image) ([]float32, error)
}

// LearnedExtractor locates the face inside the region, embeds the crop and
// falls back to the classical extractor whenever any of that fails.
type LearnedExtractor struct {
	Locator  Locator
	Embedder Embedder
	Fallback ClassicalExtractor
}

func (l LearnedExtractor) Extract(img image.Image, region image.Rectangle) Extraction {
	rect, ok := usableRegion(img, region)
	if !ok {
		return noDescriptor("empty region")
	}

	values, err := l.embed(img, rect)
	if err != nil {
		logger.Named("extractor").Infof("learned extraction failed, using classical fallback: %v", err)
		ex := l.Fallback.Extract(img, rect)
		if ex.Found() {
			ex.Source = SourceFallback
			ex.Reason = err.Error()
		}
		return ex
	}

	return Extraction{
		Descriptor: Descriptor{Kind: KindLearned, Values: values},
		Source:     SourceLearned,
	}
}

func (l LearnedExtractor) embed(img image.Image, rect image.Rectangle) (values []float32, err error) {
	defer func() {
		if r := recover(); r != nil {
			values = nil
			err = fmt.Errorf("learned model panicked: %v", r)
		}
	}()

	if l.Locator == nil || l.Embedder == nil {
		return nil, fmt.Errorf("learned models not loaded")
	}

	region := imaging.Crop(img, rect)
	box, err := l.Locator.Locate(region)
	if err != nil {
		return nil, fmt.Errorf("face detector failed: %w", err)
	}
	box = box.Intersect(region.Bounds())
	if box.Empty() {
		return nil, fmt.Errorf("no face found by detector model")
	}

	values, err = l.Embedder.Embed(imaging.Crop(region, box))
	if err != nil {
		return nil, fmt.Errorf("embedding model failed: %w", err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("embedding model returned no values")
	}
	if err := checkEmbedding(values); err != nil {
		return nil, err
	}
	return values, nil
}

// checkEmbedding rejects vectors no scorer or encoder can use
func checkEmbedding(values []float32) error {
	var norm float64
	for i, v := range values {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return fmt.Errorf("embedding value %d is not finite", i)
		}
		norm += f * f
	}
	if norm == 0 {
		return fmt.Errorf("embedding has zero norm")
	}
	return nil
}
