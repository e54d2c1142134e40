package handlers

import (
	"net/http"

	"github.com/disintegration/imaging"

	"github.com/camden-git/facetrack/emotion"
	"github.com/camden-git/facetrack/services"
	"github.com/camden-git/facetrack/utils"
)

type RecognizeHandler struct {
	Recognizer     *services.Recognizer
	Index          *services.IdentityIndex
	Emotions       emotion.Classifier
	MaxCaptureSide int
}

type recognizedFace struct {
	services.Recognition
	Emotion           string  `json:"emotion,omitempty"`
	EmotionConfidence float64 `json:"emotion_confidence,omitempty"`
}

type recognizeResponse struct {
	Strategy  string            `json:"strategy"`
	IndexSize int               `json:"index_size"`
	Capture   utils.CaptureInfo `json:"capture"`
	Faces     []recognizedFace  `json:"faces"`
}

// Recognize runs the recognizer over a single uploaded frame. It reads and
// writes nothing in the store.
func (h *RecognizeHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, utils.MaxCaptureBytes+1<<20)
	if err := r.ParseMultipartForm(utils.MaxCaptureBytes); err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidRequest, "Invalid multipart form: "+err.Error())
		return
	}
	file, header, err := r.FormFile("frame")
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidCapture, "Missing frame upload")
		return
	}
	defer file.Close()
	if !utils.IsRasterImage(header.Filename) {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidCapture, "Unsupported frame file type: "+header.Filename)
		return
	}

	frame, info, err := utils.DecodeCapture(file, h.MaxCaptureSide)
	if err != nil {
		WriteAPIError(w, http.StatusBadRequest, CodeInvalidCapture, err.Error())
		return
	}

	var classifier emotion.Classifier
	if h.Emotions != nil {
		classifier = emotion.Safe(h.Emotions)
	}

	results := h.Recognizer.RecognizeFrame(frame)
	resp := recognizeResponse{
		Strategy:  string(h.Recognizer.Strategy().Kind()),
		IndexSize: h.Index.Len(),
		Capture:   info,
		Faces:     make([]recognizedFace, 0, len(results)),
	}
	for _, res := range results {
		face := recognizedFace{Recognition: res}
		if classifier != nil && !res.Region.Empty() {
			face.Emotion, face.EmotionConfidence = classifier.Predict(imaging.Crop(frame, res.Region))
		}
		resp.Faces = append(resp.Faces, face)
	}

	writeJSON(w, http.StatusOK, resp)
}
