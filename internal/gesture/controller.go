package gesture

import (
	"sync"

	"github.com/ayusman/mudra/internal/detector"
)

// Smoother blends successive transforms with an exponential moving average.
// Alpha is the weight of the newest sample; 0 or 1 disables smoothing.
type Smoother struct {
	Alpha float64
	prev  *Transform
}

// Apply returns the smoothed transform. A nil input resets the state so a
// reappearing hand starts from its raw position.
func (s *Smoother) Apply(t *Transform) *Transform {
	if t == nil {
		s.prev = nil
		return nil
	}
	if s.Alpha <= 0 || s.Alpha >= 1 || s.prev == nil {
		cp := *t
		s.prev = &cp
		return t
	}

	a := s.Alpha
	blend := func(prev, next float64) float64 { return prev + a*(next-prev) }
	out := &Transform{
		X:         blend(s.prev.X, t.X),
		Y:         blend(s.prev.Y, t.Y),
		Z:         blend(s.prev.Z, t.Z),
		RotationX: blend(s.prev.RotationX, t.RotationX),
		RotationY: blend(s.prev.RotationY, t.RotationY),
	}
	cp := *out
	s.prev = &cp
	return out
}

// Controller keeps the latest transform and fans it out to subscribers.
type Controller struct {
	mu          sync.RWMutex
	smoother    Smoother
	latest      *Transform
	subscribers []func(*Transform)
}

// NewController creates a Controller. alpha configures the optional
// smoothing stage; pass 0 for raw output.
func NewController(alpha float64) *Controller {
	return &Controller{smoother: Smoother{Alpha: alpha}}
}

// Update resolves this frame's transform from unmirrored hands and stores it.
func (c *Controller) Update(hands []detector.HandResult, frameWidth, frameHeight float64) *Transform {
	raw := ResolveGesture(hands, frameWidth, frameHeight)

	c.mu.Lock()
	t := c.smoother.Apply(raw)
	c.latest = t
	subs := c.subscribers
	c.mu.Unlock()

	for _, fn := range subs {
		fn(t)
	}
	return t
}

// Reset clears the latest transform, e.g. when the session is torn down.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.smoother.prev = nil
	c.latest = nil
	subs := c.subscribers
	c.mu.Unlock()

	for _, fn := range subs {
		fn(nil)
	}
}

// Latest returns a copy of the most recent transform, or nil when no hand
// qualified on the last processed frame.
func (c *Controller) Latest() *Transform {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.latest == nil {
		return nil
	}
	cp := *c.latest
	return &cp
}

// Subscribe registers fn to be called after every update. fn runs on the
// frame loop goroutine and must not block.
func (c *Controller) Subscribe(fn func(*Transform)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subscribers = append(c.subscribers, fn)
}
