package capture

import (
	"context"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// MockStream plays back frames for testing. With loop set it repeats the
// sequence forever; otherwise ReadFrame reports ErrFrameNotReady once the
// frames run out.
type MockStream struct {
	mu      sync.Mutex
	frames  []*gocv.Mat
	index   int
	loop    bool
	running bool
	stops   int
}

func NewMockStream(frames []*gocv.Mat, loop bool) *MockStream {
	return &MockStream{
		frames:  frames,
		loop:    loop,
		running: true,
	}
}

func (s *MockStream) ReadFrame() (*gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil, ErrStreamStopped
	}

	if s.index >= len(s.frames) {
		if !s.loop || len(s.frames) == 0 {
			return nil, ErrFrameNotReady
		}
		s.index = 0
	}

	// Clone so the caller can close the frame
	frame := s.frames[s.index].Clone()
	s.index++

	return &frame, nil
}

func (s *MockStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.stops++
	return nil
}

func (s *MockStream) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Stops reports how many times Stop was called.
func (s *MockStream) Stops() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stops
}

// SetFrames replaces the frame sequence and restarts playback.
func (s *MockStream) SetFrames(frames []*gocv.Mat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = frames
	s.index = 0
}

// MockProvider hands out MockStreams and records every request.
type MockProvider struct {
	mu          sync.Mutex
	frames      []*gocv.Mat
	err         error
	delay       time.Duration
	streams     []*MockStream
	constraints []Constraints
}

func NewMockProvider(frames ...*gocv.Mat) *MockProvider {
	return &MockProvider{frames: frames}
}

// SetError makes subsequent GetStream calls fail with err.
func (p *MockProvider) SetError(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

// SetDelay makes GetStream wait before returning.
func (p *MockProvider) SetDelay(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.delay = d
}

// GetStream ignores ctx cancellation during the delay so tests can observe
// a stream that arrives after its caller gave up.
func (p *MockProvider) GetStream(ctx context.Context, c Constraints) (Stream, error) {
	p.mu.Lock()
	delay, err := p.delay, p.err
	p.constraints = append(p.constraints, c)
	p.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}

	s := NewMockStream(p.frames, true)
	p.mu.Lock()
	p.streams = append(p.streams, s)
	p.mu.Unlock()

	return s, nil
}

// Streams returns every stream handed out so far.
func (p *MockProvider) Streams() []*MockStream {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*MockStream(nil), p.streams...)
}

// Requests returns the constraints of every GetStream call.
func (p *MockProvider) Requests() []Constraints {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Constraints(nil), p.constraints...)
}
