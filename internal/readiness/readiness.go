// Package readiness tracks whether the camera and both landmark models are
// ready. It is the single source of truth for the loading and error display.
package readiness

import (
	"sync"
)

// State is the UI state derived from a snapshot.
type State string

const (
	Loading State = "loading"
	Running State = "running"
	Failed  State = "failed"
)

// Loading messages, in the order a waiting user sees them.
const (
	MsgLoadingFaceModel = "Loading face model..."
	MsgLoadingHandModel = "Loading hand model..."
	MsgAccessingCamera  = "Accessing camera..."
)

// Snapshot is an immutable view of readiness.
type Snapshot struct {
	CameraReady    bool   `json:"cameraReady"`
	FaceModelReady bool   `json:"faceModelReady"`
	HandModelReady bool   `json:"handModelReady"`
	Error          string `json:"error,omitempty"`
	SessionID      string `json:"sessionId,omitempty"`
	Generation     uint64 `json:"generation"`
}

// State derives exactly one of Loading, Running or Failed.
func (s Snapshot) State() State {
	switch {
	case s.Error != "":
		return Failed
	case s.CameraReady && s.FaceModelReady && s.HandModelReady:
		return Running
	default:
		return Loading
	}
}

// Message is the loading text for the current snapshot, or the error when
// failed. It is empty when running.
func (s Snapshot) Message() string {
	switch s.State() {
	case Failed:
		return s.Error
	case Running:
		return ""
	}
	switch {
	case !s.FaceModelReady:
		return MsgLoadingFaceModel
	case !s.HandModelReady:
		return MsgLoadingHandModel
	default:
		return MsgAccessingCamera
	}
}

// Machine holds the current snapshot. Every write carries the generation
// of the initialization that produced it; writes from an older generation,
// and any write after a failure, are dropped.
type Machine struct {
	mu          sync.RWMutex
	snap        Snapshot
	subscribers []func(Snapshot)
}

// New returns a Machine in the initial loading state at generation 0.
func New() *Machine {
	return &Machine{}
}

// Snapshot returns the current readiness.
func (m *Machine) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap
}

// Subscribe registers fn to receive every accepted change. fn must not block.
func (m *Machine) Subscribe(fn func(Snapshot)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscribers = append(m.subscribers, fn)
}

// Begin starts a new generation in the loading state with nothing ready.
// Generations must increase; an older or equal generation is ignored.
func (m *Machine) Begin(gen uint64, sessionID string) bool {
	return m.update(func(s *Snapshot) bool {
		if gen <= s.Generation {
			return false
		}
		*s = Snapshot{Generation: gen, SessionID: sessionID}
		return true
	})
}

// MarkCamera records that the camera stream is bound.
func (m *Machine) MarkCamera(gen uint64) bool {
	return m.apply(gen, func(s *Snapshot) { s.CameraReady = true })
}

// MarkFaceModel records that the face detector loaded.
func (m *Machine) MarkFaceModel(gen uint64) bool {
	return m.apply(gen, func(s *Snapshot) { s.FaceModelReady = true })
}

// MarkHandModel records that the hand detector loaded.
func (m *Machine) MarkHandModel(gen uint64) bool {
	return m.apply(gen, func(s *Snapshot) { s.HandModelReady = true })
}

// Fail moves the generation to the terminal failed state. The ready flags
// are cleared so nothing reads as usable.
func (m *Machine) Fail(gen uint64, msg string) bool {
	if msg == "" {
		msg = "initialization failed"
	}
	return m.apply(gen, func(s *Snapshot) {
		s.CameraReady = false
		s.FaceModelReady = false
		s.HandModelReady = false
		s.Error = msg
	})
}

func (m *Machine) apply(gen uint64, fn func(*Snapshot)) bool {
	return m.update(func(s *Snapshot) bool {
		if gen != s.Generation || s.Error != "" {
			return false
		}
		fn(s)
		return true
	})
}

func (m *Machine) update(fn func(*Snapshot) bool) bool {
	m.mu.Lock()
	if !fn(&m.snap) {
		m.mu.Unlock()
		return false
	}
	snap := m.snap
	subs := m.subscribers
	m.mu.Unlock()

	for _, sub := range subs {
		sub(snap)
	}
	return true
}
