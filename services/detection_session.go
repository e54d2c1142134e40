package services

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/camden-git/facetrack/emotion"
	"github.com/camden-git/facetrack/logger"
	"github.com/camden-git/facetrack/models"
	"github.com/camden-git/facetrack/realtime"
)

// FrameSource yields camera frames in acquisition order.
type FrameSource interface {
	NextFrame() (image.Image, bool)
	Close() error
}

// FrameSourceOpener acquires the camera for one session.
type FrameSourceOpener func() (FrameSource, error)

// HistorySink persists detections in the order they are handed over.
type HistorySink interface {
	Enqueue(detection models.EmotionDetection) bool
}

// EventPublisher pushes session events to connected consoles.
type EventPublisher interface {
	Broadcast(event realtime.Event)
}

const (
	EventFrame          = "frame"
	EventSessionStarted = "session_started"
	EventSessionStopped = "session_stopped"
	EventIndexEmpty     = "index_empty"
)

var ErrSessionRunning = errors.New("detection session already running")

type SessionConfig struct {
	Interval             time.Duration
	HistoryMinConfidence float64
}

// FaceReport is the per-face part of a FrameReport.
type FaceReport struct {
	Recognition
	Emotion           string  `json:"emotion"`
	EmotionConfidence float64 `json:"emotion_confidence"`
	Persisted         bool    `json:"persisted"`
}

// FrameReport is what the session publishes for every processed frame.
type FrameReport struct {
	Frame uint64       `json:"frame"`
	Faces []FaceReport `json:"faces"`
}

type SessionStatus struct {
	ID           string     `json:"id,omitempty"`
	Running      bool       `json:"running"`
	Starting     bool       `json:"starting,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	Strategy     string     `json:"strategy"`
	IndexSize    int        `json:"index_size"`
	Frames       uint64     `json:"frames"`
	MissedFrames uint64     `json:"missed_frames"`
	Faces        uint64     `json:"faces"`
	Persisted    uint64     `json:"persisted"`
}

// DetectionSession hosts the recognition loop for one camera: every tick it
// reads one frame, recognizes each face, classifies its emotion, publishes
// the result and hands confident matches to the history sink.
type DetectionSession struct {
	open       FrameSourceOpener
	recognizer *Recognizer
	emotions   emotion.Classifier
	publisher  EventPublisher
	sink       HistorySink
	cfg        SessionConfig

	mu        sync.Mutex
	id        string
	running   bool
	starting  bool
	startedAt time.Time
	cancel    context.CancelFunc
	done      chan struct{}

	frames    atomic.Uint64
	missed    atomic.Uint64
	faces     atomic.Uint64
	persisted atomic.Uint64
}

func NewDetectionSession(
	open FrameSourceOpener,
	recognizer *Recognizer,
	emotions emotion.Classifier,
	publisher EventPublisher,
	sink HistorySink,
	cfg SessionConfig,
) *DetectionSession {
	if cfg.Interval <= 0 {
		cfg.Interval = 100 * time.Millisecond
	}
	return &DetectionSession{
		open:       open,
		recognizer: recognizer,
		emotions:   emotion.Safe(emotions),
		publisher:  publisher,
		sink:       sink,
		cfg:        cfg,
	}
}

// Start acquires the frame source and starts the tick loop. The loop runs
// until Stop is called or ctx is done. The source is opened without holding
// the session lock, so Status stays responsive while the camera warms up.
func (s *DetectionSession) Start(ctx context.Context) (string, error) {
	log := logger.Named("session")

	s.mu.Lock()
	if s.running || s.starting {
		id := s.id
		s.mu.Unlock()
		return id, ErrSessionRunning
	}
	s.starting = true
	s.mu.Unlock()

	source, err := s.open()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.starting = false
	if err != nil {
		return "", fmt.Errorf("failed to open frame source: %w", err)
	}

	s.id = uuid.NewString()
	s.running = true
	s.startedAt = time.Now()
	s.frames.Store(0)
	s.missed.Store(0)
	s.faces.Store(0)
	s.persisted.Store(0)

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	log.Infof("detection session %s started (%s strategy, tick %s)", s.id, s.recognizer.Strategy().Kind(), s.cfg.Interval)
	s.publish(EventSessionStarted, s.id, nil)
	if s.recognizer.index.IsEmpty() {
		log.Warnf("no identities registered; every face will be reported as unregistered")
		s.publish(EventIndexEmpty, s.id, map[string]string{"message": ReasonNoIdentities})
	}

	go s.run(loopCtx, s.id, source, s.done)
	return s.id, nil
}

// Stop halts the loop and releases the frame source. Stopping a session that
// is not running does nothing.
func (s *DetectionSession) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	<-done
}

func (s *DetectionSession) run(ctx context.Context, id string, source FrameSource, done chan struct{}) {
	log := logger.Named("session")
	ticker := time.NewTicker(s.cfg.Interval)

	defer func() {
		ticker.Stop()
		if err := source.Close(); err != nil {
			log.Warnf("failed to release frame source: %v", err)
		}

		s.mu.Lock()
		if s.done == done {
			s.running = false
			s.cancel = nil
		}
		s.mu.Unlock()

		log.Infof("detection session %s stopped after %d frames", id, s.frames.Load())
		s.publish(EventSessionStopped, id, nil)
		close(done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame, ok := nextFrame(source)
			if !ok {
				s.missed.Add(1)
				continue
			}
			report := s.ProcessFrame(frame)
			s.publish(EventFrame, id, report)
		}
	}
}

func nextFrame(source FrameSource) (frame image.Image, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Named("session").Errorf("frame source panicked: %v", r)
			frame, ok = nil, false
		}
	}()
	frame, ok = source.NextFrame()
	if ok && (frame == nil || frame.Bounds().Empty()) {
		return nil, false
	}
	return frame, ok
}

// ProcessFrame recognizes and classifies every face in frame and queues the
// matches that clear the history bar. Faces are handled in detection order.
func (s *DetectionSession) ProcessFrame(frame image.Image) FrameReport {
	n := s.frames.Add(1)
	results := s.recognizer.RecognizeFrame(frame)
	report := FrameReport{Frame: n, Faces: make([]FaceReport, 0, len(results))}

	for _, res := range results {
		fr := FaceReport{Recognition: res}
		fr.Emotion, fr.EmotionConfidence = s.classify(frame, res.Region)

		if s.shouldPersist(res, fr.Emotion) {
			personID := res.PersonID
			fr.Persisted = s.sink.Enqueue(models.EmotionDetection{
				PersonID:   &personID,
				Emotion:    fr.Emotion,
				Confidence: fr.EmotionConfidence,
				Timestamp:  time.Now().UnixMilli(),
			})
			if fr.Persisted {
				s.persisted.Add(1)
			}
		}
		report.Faces = append(report.Faces, fr)
	}
	s.faces.Add(uint64(len(results)))
	return report
}

func (s *DetectionSession) shouldPersist(res Recognition, label string) bool {
	return s.sink != nil &&
		res.Matched() &&
		res.Similarity > s.cfg.HistoryMinConfidence &&
		label != emotion.Error
}

func (s *DetectionSession) classify(frame image.Image, region image.Rectangle) (string, float64) {
	region = region.Intersect(frame.Bounds())
	if region.Empty() {
		return emotion.Undetectable, 0.0
	}
	return s.emotions.Predict(imaging.Crop(frame, region))
}

func (s *DetectionSession) publish(kind, id string, data interface{}) {
	if s.publisher == nil {
		return
	}
	s.publisher.Broadcast(realtime.Event{
		Type:      kind,
		SessionID: id,
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	})
}

func (s *DetectionSession) Status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := SessionStatus{
		Running:      s.running,
		Starting:     s.starting,
		Strategy:     string(s.recognizer.Strategy().Kind()),
		IndexSize:    s.recognizer.index.Len(),
		Frames:       s.frames.Load(),
		MissedFrames: s.missed.Load(),
		Faces:        s.faces.Load(),
		Persisted:    s.persisted.Load(),
	}
	if s.id != "" {
		status.ID = s.id
		startedAt := s.startedAt
		status.StartedAt = &startedAt
	}
	return status
}
