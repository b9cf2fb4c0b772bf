// Package capture provides the user-facing camera stream using GoCV (OpenCV).
package capture

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"gocv.io/x/gocv"
)

// Requested camera settings. The device may deliver a different size.
const (
	DefaultWidth      = 1280
	DefaultHeight     = 720
	DefaultFacingMode = "user"
)

var (
	// ErrCameraUnavailable is returned when no stream can be acquired.
	ErrCameraUnavailable = errors.New("camera unavailable")
	// ErrStreamStopped is returned when reading from a stopped stream.
	ErrStreamStopped = errors.New("stream is stopped")
	// ErrFrameNotReady is returned while the device has not produced a frame.
	ErrFrameNotReady = errors.New("frame not ready")
)

// Constraints describe the stream requested from a Provider.
type Constraints struct {
	DeviceID   int
	Width      int
	Height     int
	FacingMode string
}

// DefaultConstraints requests a 1280x720 front-facing stream on device 0.
func DefaultConstraints() Constraints {
	return Constraints{
		Width:      DefaultWidth,
		Height:     DefaultHeight,
		FacingMode: DefaultFacingMode,
	}
}

// Stream is a live video source. Frames are raw, never mirrored.
type Stream interface {
	// ReadFrame returns the current frame. The caller closes the Mat.
	ReadFrame() (*gocv.Mat, error)
	// Stop releases the device. It is safe to call more than once.
	Stop() error
	Active() bool
}

// Provider acquires camera streams.
type Provider interface {
	GetStream(ctx context.Context, c Constraints) (Stream, error)
}

// GoCVProvider opens local capture devices.
type GoCVProvider struct{}

// NewProvider returns a Provider backed by OpenCV video capture.
func NewProvider() *GoCVProvider {
	return &GoCVProvider{}
}

// GetStream opens the device named by c. Opening can block on some
// platforms, so it runs in a goroutine and the device is released if ctx
// ends first.
func (p *GoCVProvider) GetStream(ctx context.Context, c Constraints) (Stream, error) {
	type result struct {
		vc  *gocv.VideoCapture
		err error
	}
	done := make(chan result, 1)

	go func() {
		vc, err := gocv.OpenVideoCapture(c.DeviceID)
		done <- result{vc, err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if r := <-done; r.vc != nil {
				r.vc.Close()
			}
		}()
		return nil, ctx.Err()
	case r := <-done:
		if r.err != nil {
			return nil, errors.WithHint(
				errors.Mark(errors.Wrapf(r.err, "open camera %d", c.DeviceID), ErrCameraUnavailable),
				"check that a camera is connected and not in use by another application",
			)
		}
		if !r.vc.IsOpened() {
			r.vc.Close()
			return nil, errors.Wrapf(ErrCameraUnavailable, "camera %d did not open", c.DeviceID)
		}
		if c.Width > 0 && c.Height > 0 {
			r.vc.Set(gocv.VideoCaptureFrameWidth, float64(c.Width))
			r.vc.Set(gocv.VideoCaptureFrameHeight, float64(c.Height))
		}
		return &deviceStream{capture: r.vc, running: true}, nil
	}
}

// deviceStream manages video capture from a camera device.
type deviceStream struct {
	mu      sync.Mutex
	capture *gocv.VideoCapture
	running bool
}

// ReadFrame reads a single frame from the camera.
func (s *deviceStream) ReadFrame() (*gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.capture == nil {
		return nil, ErrStreamStopped
	}

	mat := gocv.NewMat()
	if ok := s.capture.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return nil, ErrFrameNotReady
	}

	return &mat, nil
}

// Stop closes the device and releases resources.
func (s *deviceStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.capture == nil {
		s.running = false
		return nil
	}

	err := s.capture.Close()
	s.capture = nil
	s.running = false

	return err
}

func (s *deviceStream) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}
