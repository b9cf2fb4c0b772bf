package lifecycle

import (
	"context"
	"sync"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/logger"
)

// Handles is one initialized session: the camera stream and both detectors.
// It is read-only to the frame loop and released by the Lifecycle.
type Handles struct {
	Face       detector.FaceDetector
	Hand       detector.HandDetector
	Stream     capture.Stream
	SessionID  string
	Generation uint64

	ctx         context.Context
	cancel      context.CancelFunc
	releaseOnce sync.Once
}

// NewHandles builds a live session outside a Lifecycle, for callers that
// supply their own stream and detectors. It ends when ctx does.
func NewHandles(ctx context.Context, face detector.FaceDetector, hand detector.HandDetector, stream capture.Stream) *Handles {
	h := &Handles{Face: face, Hand: hand, Stream: stream}
	h.ctx, h.cancel = context.WithCancel(ctx)
	return h
}

// Context is cancelled when the session is torn down.
func (h *Handles) Context() context.Context {
	if h.ctx == nil {
		return context.Background()
	}
	return h.ctx
}

// Alive reports whether the session has not been torn down.
func (h *Handles) Alive() bool {
	return h.ctx != nil && h.ctx.Err() == nil
}

// release cancels the session, stops the stream and closes both detectors.
// Errors are logged, never returned.
func (h *Handles) release() {
	if h == nil {
		return
	}
	h.releaseOnce.Do(func() {
		if h.cancel != nil {
			h.cancel()
		}
		if h.Stream != nil {
			if err := h.Stream.Stop(); err != nil {
				logger.Logger.Warnw("Failed to stop camera stream", "session", h.SessionID, "error", err)
			}
		}
		if h.Face != nil {
			if err := h.Face.Close(); err != nil {
				logger.Logger.Warnw("Failed to close face detector", "session", h.SessionID, "error", err)
			}
		}
		if h.Hand != nil {
			if err := h.Hand.Close(); err != nil {
				logger.Logger.Warnw("Failed to close hand detector", "session", h.SessionID, "error", err)
			}
		}
	})
}
