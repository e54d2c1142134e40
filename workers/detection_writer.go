package workers

import (
	"context"
	"sync"
	"time"

	"github.com/camden-git/facetrack/logger"
	"github.com/camden-git/facetrack/models"
)

// DetectionAppender is the store operation the writer drains into.
type DetectionAppender interface {
	Append(ctx context.Context, detection *models.EmotionDetection) error
}

// DetectionWriter persists detections off the recognition loop. A single
// worker drains the queue so rows are appended in the order they were queued.
type DetectionWriter struct {
	JobQueue       chan models.EmotionDetection
	Store          DetectionAppender
	Timeout        time.Duration
	EnqueueTimeout time.Duration // wait for room in a full queue
	Wg             sync.WaitGroup
	StopChan       chan struct{}

	// held for reading by Enqueue, for writing by Stop
	stopMu  sync.RWMutex
	stopped bool

	mu      sync.Mutex
	written uint64
	failed  uint64
	dropped uint64
}

func NewDetectionWriter(store DetectionAppender, queueSize int) *DetectionWriter {
	if queueSize <= 0 {
		queueSize = 64
	}
	w := &DetectionWriter{
		JobQueue:       make(chan models.EmotionDetection, queueSize),
		Store:          store,
		Timeout:        5 * time.Second,
		EnqueueTimeout: time.Second,
		StopChan:       make(chan struct{}),
	}
	w.Wg.Add(1)
	go w.worker()
	logger.Named("writer").Infof("Started detection writer with queue size %d", queueSize)
	return w
}

func (w *DetectionWriter) worker() {
	defer w.Wg.Done()
	log := logger.Named("writer")

	for {
		select {
		case job := <-w.JobQueue:
			w.write(job)
		case <-w.StopChan:
			// flush what was queued before Stop, still in order
			for {
				select {
				case job := <-w.JobQueue:
					w.write(job)
				default:
					log.Info("Detection writer stopping: Stop signal received")
					return
				}
			}
		}
	}
}

func (w *DetectionWriter) write(job models.EmotionDetection) {
	ctx, cancel := context.WithTimeout(context.Background(), w.Timeout)
	defer cancel()

	err := w.Store.Append(ctx, &job)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.failed++
		logger.Named("writer").Errorf("ERROR appending detection %s for person %v: %v", job.Emotion, personLabel(job.PersonID), err)
		return
	}
	w.written++
}

func personLabel(id *uint) interface{} {
	if id == nil {
		return "unknown"
	}
	return *id
}

// Enqueue queues a detection. When the queue is full it waits up to
// EnqueueTimeout for the worker to make room; a detection still not queued
// after that is counted as dropped. It reports false when the writer is
// stopped or the detection was dropped.
func (w *DetectionWriter) Enqueue(detection models.EmotionDetection) bool {
	w.stopMu.RLock()
	defer w.stopMu.RUnlock()
	if w.stopped {
		return false
	}

	select {
	case w.JobQueue <- detection:
		return true
	default:
	}

	timer := time.NewTimer(w.EnqueueTimeout)
	defer timer.Stop()
	select {
	case w.JobQueue <- detection:
		return true
	case <-timer.C:
		w.mu.Lock()
		w.dropped++
		w.mu.Unlock()
		logger.Named("writer").Errorf("ERROR: detection queue full for %s, dropping %s detection for person %v", w.EnqueueTimeout, detection.Emotion, personLabel(detection.PersonID))
		return false
	}
}

// Stats returns how many detections were written and how many were lost,
// either to a failed append or to a full queue.
func (w *DetectionWriter) Stats() (written, failed uint64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written, w.failed + w.dropped
}

// Dropped is the number of detections rejected by a full queue.
func (w *DetectionWriter) Dropped() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}

// Stop flushes the queue and waits for the worker. It is safe to call twice.
func (w *DetectionWriter) Stop() {
	w.stopMu.Lock()
	if w.stopped {
		w.stopMu.Unlock()
		return
	}
	w.stopped = true
	w.stopMu.Unlock()

	logger.Named("writer").Info("Stopping detection writer...")
	close(w.StopChan)
	w.Wg.Wait()
}
