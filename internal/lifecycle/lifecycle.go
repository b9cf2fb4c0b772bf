// Package lifecycle acquires the camera and loads the face and hand
// detectors, racing the whole initialization against a timeout.
//
// Every initialization runs under a generation number. Readiness writes and
// results from an initialization that has since timed out, been torn down or
// been superseded carry a stale generation and are discarded; any resources
// such an initialization acquired are released.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/logger"
	"github.com/ayusman/mudra/internal/metrics"
	"github.com/ayusman/mudra/internal/readiness"
)

// DefaultTimeout bounds a whole initialization.
const DefaultTimeout = 30 * time.Second

var (
	// ErrInitTimeout is returned when initialization does not finish in time.
	ErrInitTimeout = errors.New("timed out loading models")
	// ErrSuperseded is returned when a teardown or a newer initialization
	// overtook this one.
	ErrSuperseded = errors.New("initialization superseded")
)

// Config controls what is acquired and how long it may take.
type Config struct {
	Camera    capture.Constraints
	FaceModel detector.ModelConfig
	HandModel detector.ModelConfig
	Timeout   time.Duration
}

// DefaultConfig returns the stock camera constraints and model variants.
func DefaultConfig() Config {
	return Config{
		Camera:    capture.DefaultConstraints(),
		FaceModel: detector.DefaultFaceConfig(),
		HandModel: detector.DefaultHandConfig(),
		Timeout:   DefaultTimeout,
	}
}

// Deps are the collaborators a Lifecycle drives. Metrics may be nil.
type Deps struct {
	Camera    capture.Provider
	Faces     detector.FaceFactory
	Hands     detector.HandFactory
	Readiness *readiness.Machine
	Metrics   *metrics.Manager
}

// Lifecycle owns the camera stream and both detectors. At most one session
// is live at a time.
type Lifecycle struct {
	cfg  Config
	deps Deps

	mu         sync.Mutex
	gen        uint64
	current    *Handles
	cancelInit context.CancelFunc
}

// New creates a Lifecycle. A zero Timeout means DefaultTimeout.
func New(cfg Config, deps Deps) *Lifecycle {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if deps.Readiness == nil {
		deps.Readiness = readiness.New()
	}
	return &Lifecycle{cfg: cfg, deps: deps}
}

// Readiness returns the machine this lifecycle reports to.
func (l *Lifecycle) Readiness() *readiness.Machine {
	return l.deps.Readiness
}

// Current returns the live session, or nil.
func (l *Lifecycle) Current() *Handles {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

type initResult struct {
	handles *Handles
	err     error
}

// Initialize tears down any previous session, then acquires the camera and
// loads the face and hand detectors in that order. It blocks until the
// session is running, initialization fails, the timeout fires or ctx ends.
// The returned Handles stay valid until Teardown or the next Initialize.
func (l *Lifecycle) Initialize(ctx context.Context) (*Handles, error) {
	l.Teardown()

	initCtx, cancel := context.WithCancel(ctx)

	l.mu.Lock()
	l.gen++
	gen := l.gen
	l.cancelInit = cancel
	l.mu.Unlock()

	sessionID := uuid.NewString()
	log := logger.Logger.With("session", sessionID, "generation", gen)
	l.deps.Readiness.Begin(gen, sessionID)
	log.Infow("Initializing", "timeout", l.cfg.Timeout)

	done := make(chan initResult, 1)
	go func() {
		h, err := l.acquire(initCtx, gen)
		done <- initResult{handles: h, err: err}
	}()

	timer := time.NewTimer(l.cfg.Timeout)
	defer timer.Stop()

	select {
	case r := <-done:
		return l.commit(ctx, gen, sessionID, cancel, r)

	case <-timer.C:
		l.abandon(gen, cancel, done)
		l.deps.Readiness.Fail(gen, ErrInitTimeout.Error())
		l.deps.Metrics.Initialization("timeout")
		log.Errorw("Initialization timed out", "timeout", l.cfg.Timeout)
		return nil, errors.WithDetailf(ErrInitTimeout, "after %s", l.cfg.Timeout)

	case <-ctx.Done():
		l.abandon(gen, cancel, done)
		l.deps.Readiness.Fail(gen, "initialization cancelled")
		l.deps.Metrics.Initialization("cancelled")
		return nil, ctx.Err()
	}
}

// commit accepts a finished initialization unless it has gone stale.
func (l *Lifecycle) commit(ctx context.Context, gen uint64, sessionID string, cancel context.CancelFunc, r initResult) (*Handles, error) {
	defer cancel()

	l.mu.Lock()
	if l.gen != gen {
		l.mu.Unlock()
		r.handles.release()
		l.deps.Metrics.Initialization("superseded")
		return nil, ErrSuperseded
	}
	l.cancelInit = nil
	if r.err != nil {
		l.mu.Unlock()
		l.deps.Readiness.Fail(gen, "failed to initialize: "+r.err.Error())
		l.deps.Metrics.Initialization("failed")
		logger.Logger.Errorw("Initialization failed", "session", sessionID, "error", r.err)
		return nil, r.err
	}

	h := r.handles
	h.SessionID = sessionID
	h.Generation = gen
	h.ctx, h.cancel = context.WithCancel(ctx)
	l.current = h
	l.mu.Unlock()

	l.deps.Readiness.MarkHandModel(gen)
	l.deps.Metrics.Initialization("ok")
	logger.Logger.Infow("Initialized", "session", sessionID, "generation", gen)
	return h, nil
}

// abandon cancels an in-flight initialization and releases whatever it
// eventually produces.
func (l *Lifecycle) abandon(gen uint64, cancel context.CancelFunc, done <-chan initResult) {
	l.mu.Lock()
	if l.gen == gen {
		l.cancelInit = nil
	}
	l.mu.Unlock()
	cancel()

	go func() {
		r := <-done
		if r.handles != nil {
			logger.Logger.Warnw("Discarding late initialization", "generation", gen)
			r.handles.release()
		}
	}()
}

// acquire runs the initialization sequence. On error every resource it
// acquired is released before returning. The hand model readiness flag is
// left to commit so the session cannot read as running once abandoned.
func (l *Lifecycle) acquire(ctx context.Context, gen uint64) (*Handles, error) {
	h := &Handles{}

	stream, err := l.deps.Camera.GetStream(ctx, l.cfg.Camera)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Mark(errors.Wrap(err, "acquire camera"), capture.ErrCameraUnavailable)
	}
	h.Stream = stream
	if err := ctx.Err(); err != nil {
		h.release()
		return nil, err
	}
	l.deps.Readiness.MarkCamera(gen)

	face, err := load(ctx, l.deps.Metrics, l.cfg.FaceModel.Model, func(ctx context.Context) (detector.FaceDetector, error) {
		return l.deps.Faces(ctx, l.cfg.FaceModel)
	})
	if err != nil {
		h.release()
		return nil, err
	}
	h.Face = face
	if err := ctx.Err(); err != nil {
		h.release()
		return nil, err
	}
	l.deps.Readiness.MarkFaceModel(gen)

	hand, err := load(ctx, l.deps.Metrics, l.cfg.HandModel.Model, func(ctx context.Context) (detector.HandDetector, error) {
		return l.deps.Hands(ctx, l.cfg.HandModel)
	})
	if err != nil {
		h.release()
		return nil, err
	}
	h.Hand = hand
	if err := ctx.Err(); err != nil {
		h.release()
		return nil, err
	}

	return h, nil
}

// load calls fn, retrying exactly once when the first attempt fails with an
// asset conflict.
func load[T any](ctx context.Context, m *metrics.Manager, model string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 1; ; attempt++ {
		d, err := fn(ctx)
		if err == nil {
			m.ModelLoad(model, "ok")
			logger.Logger.Infow("Model loaded", "model", model, "attempt", attempt)
			return d, nil
		}

		if detector.IsAssetConflict(err) && attempt == 1 && ctx.Err() == nil {
			m.ModelLoad(model, "conflict")
			logger.Logger.Warnw("Model assets busy, retrying", "model", model, "error", err)
			continue
		}

		m.ModelLoad(model, "failed")
		return zero, errors.Wrapf(err, "load %s", model)
	}
}

// Teardown ends the live session and cancels any initialization in flight.
// Readiness moves back to loading under a new generation, so a torn down
// session never reads as running. It is safe to call at any time, any
// number of times.
func (l *Lifecycle) Teardown() {
	l.mu.Lock()
	l.gen++
	gen := l.gen
	cancelInit := l.cancelInit
	l.cancelInit = nil
	h := l.current
	l.current = nil
	l.mu.Unlock()

	if h != nil || cancelInit != nil {
		l.deps.Readiness.Begin(gen, "")
	}
	if cancelInit != nil {
		cancelInit()
	}
	if h != nil {
		logger.Logger.Infow("Tearing down session", "session", h.SessionID)
		h.release()
	}
}
