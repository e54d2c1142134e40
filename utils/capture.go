package utils

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"path/filepath"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"

	"github.com/camden-git/facetrack/logger"
)

// MaxCaptureBytes bounds uploaded captures and frames.
const MaxCaptureBytes = 16 << 20

var supportedImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
}

var ErrEmptyCapture = errors.New("capture is empty")

// IsRasterImage checks if the filename has an extension DecodeCapture understands
func IsRasterImage(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return supportedImageExtensions[ext]
}

// CaptureInfo is what DecodeCapture learned about the upload besides pixels.
type CaptureInfo struct {
	Format      string  `json:"format"`
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	Orientation int     `json:"orientation,omitempty"`
	CameraMake  *string `json:"camera_make,omitempty"`
	CameraModel *string `json:"camera_model,omitempty"`
	TakenAt     *int64  `json:"taken_at,omitempty"`
}

// DecodeCapture decodes an uploaded image, applies its EXIF orientation and
// shrinks it so neither side exceeds maxSide (0 keeps the original size).
func DecodeCapture(r io.Reader, maxSide int) (image.Image, CaptureInfo, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxCaptureBytes+1))
	if err != nil {
		return nil, CaptureInfo{}, fmt.Errorf("capture: failed to read upload: %w", err)
	}
	if len(data) == 0 {
		return nil, CaptureInfo{}, ErrEmptyCapture
	}
	if len(data) > MaxCaptureBytes {
		return nil, CaptureInfo{}, fmt.Errorf("capture: upload exceeds %d bytes", MaxCaptureBytes)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, CaptureInfo{}, fmt.Errorf("capture: failed to decode image: %w", err)
	}

	info := CaptureInfo{Format: format}
	if exifData, err := exif.Decode(bytes.NewReader(data)); err == nil {
		info.Orientation = orientation(exifData)
		info.CameraMake = getString(exifData, exif.Make)
		info.CameraModel = getString(exifData, exif.Model)
		if dt, err := exifData.DateTime(); err == nil {
			ts := dt.Unix()
			info.TakenAt = &ts
		}
	} else if format == "jpeg" {
		// not necessarily an error, webcams rarely write EXIF
		logger.Named("capture").Debugf("no EXIF data in capture: %v", err)
	}

	img = ApplyOrientation(img, info.Orientation)
	if maxSide > 0 {
		b := img.Bounds()
		if b.Dx() > maxSide || b.Dy() > maxSide {
			img = imaging.Fit(img, maxSide, maxSide, imaging.Lanczos)
		}
	}

	info.Width, info.Height = img.Bounds().Dx(), img.Bounds().Dy()
	return img, info, nil
}

func orientation(exifData *exif.Exif) int {
	tag, err := exifData.Get(exif.Orientation)
	if err != nil || tag == nil {
		return 0
	}
	val, err := tag.Int(0)
	if err != nil {
		return 0
	}
	return val
}

// helper to safely get a string tag, trimming null terminators and quotes
func getString(exifData *exif.Exif, tagName exif.FieldName) *string {
	tag, err := exifData.Get(tagName)
	if err != nil || tag == nil {
		return nil
	}
	val, err := tag.StringVal()
	if err != nil {
		return nil
	}
	val = strings.TrimRight(val, "\x00")
	if val == "" {
		return nil
	}
	return &val
}

// ApplyOrientation rotates or flips img so that EXIF orientation o becomes 1.
func ApplyOrientation(img image.Image, o int) image.Image {
	switch o {
	case 2:
		return imaging.FlipH(img)
	case 3:
		return imaging.Rotate180(img)
	case 4:
		return imaging.FlipV(img)
	case 5:
		return imaging.Transpose(img)
	case 6:
		return imaging.Rotate270(img)
	case 7:
		return imaging.Transverse(img)
	case 8:
		return imaging.Rotate90(img)
	default:
		return img
	}
}
