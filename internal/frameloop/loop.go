// Package frameloop drives per-frame detection, rendering and gesture
// resolution for one initialized session.
package frameloop

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/geometry"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/lifecycle"
	"github.com/ayusman/mudra/internal/logger"
	"github.com/ayusman/mudra/internal/metrics"
	"github.com/ayusman/mudra/internal/render"
)

// Result describes how a single iteration ended.
type Result int

const (
	// Skipped means no usable frame or surface; nothing was drawn.
	Skipped Result = iota
	// Processed means overlays were drawn and the transform updated.
	Processed
	// Failed means a detector call returned an error.
	Failed
	// Discarded means the session ended while detection was in flight.
	Discarded
)

func (r Result) String() string {
	switch r {
	case Skipped:
		return "skipped"
	case Processed:
		return "processed"
	case Failed:
		return "failed"
	case Discarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// Publisher receives each processed frame and the surface drawn for it. It
// runs on the loop goroutine and must not retain frame.
type Publisher interface {
	Publish(frame *gocv.Mat, surface render.Surface)
}

// Loop is the per-frame driver. Tracking toggles may be flipped from any
// goroutine; each iteration reads them once at its start.
type Loop struct {
	surface    render.Surface
	renderer   *render.Renderer
	controller *gesture.Controller
	metrics    *metrics.Manager

	faceEnabled atomic.Bool
	handEnabled atomic.Bool

	mu        sync.RWMutex
	publisher Publisher
}

// New returns a Loop with both detectors enabled.
func New(surface render.Surface, renderer *render.Renderer, controller *gesture.Controller, m *metrics.Manager) *Loop {
	l := &Loop{
		surface:    surface,
		renderer:   renderer,
		controller: controller,
		metrics:    m,
	}
	l.faceEnabled.Store(true)
	l.handEnabled.Store(true)
	return l
}

func (l *Loop) SetFaceTracking(enabled bool) { l.faceEnabled.Store(enabled) }
func (l *Loop) SetHandTracking(enabled bool) { l.handEnabled.Store(enabled) }
func (l *Loop) FaceTracking() bool           { return l.faceEnabled.Load() }
func (l *Loop) HandTracking() bool           { return l.handEnabled.Load() }

// SetPublisher installs p, replacing any previous publisher. nil removes it.
func (l *Loop) SetPublisher(p Publisher) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.publisher = p
}

// Run iterates once per scheduler tick until ctx ends or the session is torn
// down. Iteration errors are logged and never stop the loop.
func (l *Loop) Run(ctx context.Context, h *lifecycle.Handles, s Scheduler) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(h.Context(), cancel)
	defer stop()

	log := logger.Logger.With("session", h.SessionID)
	log.Infow("Frame loop started")

	for {
		if err := s.Next(ctx); err != nil {
			log.Infow("Frame loop stopped")
			return nil
		}
		if _, err := l.Step(ctx, h); err != nil {
			log.Warnw("Frame processing failed", "error", err)
		}
	}
}

// Step runs one iteration against the current frame of h.
func (l *Loop) Step(ctx context.Context, h *lifecycle.Handles) (Result, error) {
	faceOn := l.faceEnabled.Load()
	handOn := l.handEnabled.Load()

	if l.surface == nil {
		l.metrics.FrameSkipped(metrics.SkipNoSurface)
		return Skipped, nil
	}

	frame, err := h.Stream.ReadFrame()
	if err != nil || frame == nil {
		l.metrics.FrameSkipped(metrics.SkipNoFrame)
		return Skipped, nil
	}
	defer frame.Close()

	width, height := frame.Cols(), frame.Rows()
	if width == 0 || height == 0 {
		l.metrics.FrameSkipped(metrics.SkipZeroSize)
		return Skipped, nil
	}

	l.surface.Resize(width, height)
	l.surface.Clear()

	var faces []detector.FaceResult
	if faceOn {
		start := time.Now()
		faces, err = h.Face.EstimateFaces(ctx, frame, detector.VideoOptions)
		l.metrics.ObserveDetection("face", time.Since(start))
		if err != nil {
			l.metrics.DetectionError("face")
			return Failed, errors.Wrap(err, "estimate faces")
		}
		if !live(ctx, h) {
			return Discarded, nil
		}
	}

	var hands []detector.HandResult
	if handOn {
		start := time.Now()
		hands, err = h.Hand.EstimateHands(ctx, frame, detector.VideoOptions)
		l.metrics.ObserveDetection("hand", time.Since(start))
		if err != nil {
			l.metrics.DetectionError("hand")
			return Failed, errors.Wrap(err, "estimate hands")
		}
		if !live(ctx, h) {
			return Discarded, nil
		}
	}

	w := float64(width)
	l.renderer.Draw(l.surface, geometry.MapFaces(faces, w), geometry.MapHands(hands, w))

	t := l.controller.Update(hands, w, float64(height))
	l.metrics.HandPresent(t != nil)

	l.mu.RLock()
	p := l.publisher
	l.mu.RUnlock()
	if p != nil {
		p.Publish(frame, l.surface)
	}

	l.metrics.FrameProcessed()
	return Processed, nil
}

func live(ctx context.Context, h *lifecycle.Handles) bool {
	return ctx.Err() == nil && h.Alive()
}
