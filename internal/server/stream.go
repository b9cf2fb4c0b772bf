package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"

	"gocv.io/x/gocv"
	"golang.org/x/time/rate"

	"github.com/ayusman/mudra/internal/logger"
	"github.com/ayusman/mudra/internal/render"
)

// DefaultPreviewFPS caps how often the preview is re-encoded.
const DefaultPreviewFPS = 15

// jpegEncoder composites its overlay over a frame and encodes the result.
type jpegEncoder interface {
	EncodeJPEG(frame *gocv.Mat) ([]byte, error)
}

// StreamHandler serves MJPEG frames of the mirrored video with the overlay
// drawn on top. It receives frames from the frame loop as a Publisher and
// only encodes while someone is watching.
type StreamHandler struct {
	viewers atomic.Int32
	limiter *rate.Limiter

	mu      sync.Mutex
	latest  []byte
	updated chan struct{}
}

// NewStreamHandler creates a StreamHandler encoding at most fps frames per
// second.
func NewStreamHandler(fps float64) *StreamHandler {
	if fps <= 0 {
		fps = DefaultPreviewFPS
	}
	return &StreamHandler{
		limiter: rate.NewLimiter(rate.Limit(fps), 1),
		updated: make(chan struct{}),
	}
}

// Publish implements frameloop.Publisher.
func (h *StreamHandler) Publish(frame *gocv.Mat, surface render.Surface) {
	if h.viewers.Load() == 0 || !h.limiter.Allow() {
		return
	}

	buf, err := encodePreview(frame, surface)
	if err != nil {
		logger.Logger.Debugw("Preview encode failed", "error", err)
		return
	}

	h.mu.Lock()
	h.latest = buf
	close(h.updated)
	h.updated = make(chan struct{})
	h.mu.Unlock()
}

// encodePreview falls back to the mirrored frame alone when the surface
// cannot composite.
func encodePreview(frame *gocv.Mat, surface render.Surface) ([]byte, error) {
	if enc, ok := surface.(jpegEncoder); ok {
		return enc.EncodeJPEG(frame)
	}

	mirrored := gocv.NewMat()
	defer mirrored.Close()
	gocv.Flip(*frame, &mirrored, 1)

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mirrored)
	if err != nil {
		return nil, err
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// next blocks until a frame newer than the call is published.
func (h *StreamHandler) next(ctx context.Context) ([]byte, error) {
	h.mu.Lock()
	ch := h.updated
	h.mu.Unlock()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-ch:
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	return h.latest, nil
}

// Viewers returns the number of connected stream clients.
func (h *StreamHandler) Viewers() int {
	return int(h.viewers.Load())
}

// ServeHTTP streams MJPEG frames to connected clients.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}

	h.viewers.Add(1)
	defer h.viewers.Add(-1)

	for {
		buf, err := h.next(r.Context())
		if err != nil {
			return
		}

		// Write MJPEG frame
		fmt.Fprintf(w, "--frame\r\n")
		fmt.Fprintf(w, "Content-Type: image/jpeg\r\n")
		fmt.Fprintf(w, "Content-Length: %d\r\n\r\n", len(buf))
		if _, err := w.Write(buf); err != nil {
			return
		}
		fmt.Fprintf(w, "\r\n")

		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
	}
}
