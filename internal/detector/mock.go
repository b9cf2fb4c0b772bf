package detector

import (
	"context"
	"sync"

	"gocv.io/x/gocv"
)

// MockFaceDetector is a test implementation of FaceDetector.
// It allows tests to control the estimation results.
type MockFaceDetector struct {
	mu     sync.Mutex
	faces  []FaceResult
	errs   []error
	calls  int
	closed bool
	hook   func()
}

// NewMockFaceDetector creates a new MockFaceDetector instance.
func NewMockFaceDetector() *MockFaceDetector {
	return &MockFaceDetector{}
}

// SetFaces sets the faces returned by EstimateFaces.
func (m *MockFaceDetector) SetFaces(faces []FaceResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faces = faces
}

// FailNext queues errors returned by the next calls, one per call.
func (m *MockFaceDetector) FailNext(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, errs...)
}

// EstimateFaces returns the next queued error or the configured faces.
func (m *MockFaceDetector) EstimateFaces(ctx context.Context, frame *gocv.Mat, opts EstimateOptions) ([]FaceResult, error) {
	m.mu.Lock()
	m.calls++
	hook := m.hook
	var err error
	if len(m.errs) > 0 {
		err = m.errs[0]
		m.errs = m.errs[1:]
	}
	faces := m.faces
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	return faces, nil
}

// SetHook installs fn to run inside every call, after it is counted and
// without the lock held. Tests use it to block a call mid-flight.
func (m *MockFaceDetector) SetHook(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hook = fn
}

// Calls returns how many times EstimateFaces was invoked.
func (m *MockFaceDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close marks the detector closed.
func (m *MockFaceDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockFaceDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// MockHandDetector is a test implementation of HandDetector.
type MockHandDetector struct {
	mu     sync.Mutex
	hands  []HandResult
	errs   []error
	calls  int
	closed bool
	hook   func()
}

// NewMockHandDetector creates a new MockHandDetector instance.
func NewMockHandDetector() *MockHandDetector {
	return &MockHandDetector{}
}

// SetHands sets the hands returned by EstimateHands.
func (m *MockHandDetector) SetHands(hands []HandResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hands = hands
}

// FailNext queues errors returned by the next calls, one per call.
func (m *MockHandDetector) FailNext(errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs = append(m.errs, errs...)
}

// EstimateHands returns the next queued error or the configured hands.
func (m *MockHandDetector) EstimateHands(ctx context.Context, frame *gocv.Mat, opts EstimateOptions) ([]HandResult, error) {
	m.mu.Lock()
	m.calls++
	hook := m.hook
	var err error
	if len(m.errs) > 0 {
		err = m.errs[0]
		m.errs = m.errs[1:]
	}
	hands := m.hands
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	return hands, nil
}

// SetHook installs fn to run inside every call, after it is counted and
// without the lock held. Tests use it to block a call mid-flight.
func (m *MockHandDetector) SetHook(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hook = fn
}

// Calls returns how many times EstimateHands was invoked.
func (m *MockHandDetector) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Close marks the detector closed.
func (m *MockHandDetector) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockHandDetector) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// HandAt returns an open palm hand translated so its wrist sits at (wx, wy)
// in pixel space. The palm spans roughly 200 pixels upward from the wrist.
func HandAt(handedness Handedness, wx, wy float64) HandResult {
	// Offsets of an open palm relative to the wrist, in pixels.
	offsets := [NumLandmarks][2]float64{
		Wrist:     {0, 0},
		ThumbCMC:  {25, -25},
		ThumbMCP:  {60, -50},
		ThumbIP:   {90, -75},
		ThumbTip:  {115, -100},
		IndexMCP:  {25, -60},
		IndexPIP:  {35, -125},
		IndexDIP:  {40, -175},
		IndexTip:  {40, -225},
		MiddleMCP: {0, -70},
		MiddlePIP: {0, -140},
		MiddleDIP: {0, -200},
		MiddleTip: {0, -260},
		RingMCP:   {-25, -60},
		RingPIP:   {-35, -125},
		RingDIP:   {-40, -175},
		RingTip:   {-40, -225},
		PinkyMCP:  {-50, -50},
		PinkyPIP:  {-65, -100},
		PinkyDIP:  {-75, -150},
		PinkyTip:  {-80, -190},
	}

	hand := HandResult{
		Keypoints:  make([]Landmark, NumLandmarks),
		Handedness: handedness,
		Score:      0.95,
	}
	for i, o := range offsets {
		hand.Keypoints[i] = Landmark{X: wx + o[0], Y: wy + o[1]}
	}
	return hand
}

// FaceAt returns a coarse face mesh of n points laid out on a grid centred
// at (cx, cy).
func FaceAt(cx, cy float64, n int) FaceResult {
	face := FaceResult{Keypoints: make([]Landmark, n), Score: 0.9}
	cols := 20
	for i := 0; i < n; i++ {
		face.Keypoints[i] = Landmark{
			X: cx - 50 + float64(i%cols)*5,
			Y: cy - 60 + float64(i/cols)*5,
		}
	}
	return face
}
