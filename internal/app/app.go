// Package app composes the detector lifecycle, frame loop and gesture
// controller into the running overlay application.
package app

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/frameloop"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/lifecycle"
	"github.com/ayusman/mudra/internal/logger"
	"github.com/ayusman/mudra/internal/metrics"
	"github.com/ayusman/mudra/internal/readiness"
	"github.com/ayusman/mudra/internal/render"
)

// ErrNotStarted is returned by Retry before Start.
var ErrNotStarted = errors.New("app not started")

// Config holds configuration options for the application.
type Config struct {
	Lifecycle      lifecycle.Config
	FrameInterval  time.Duration
	SmoothingAlpha float64
	FaceTracking   bool
	HandTracking   bool

	Camera  capture.Provider
	Faces   detector.FaceFactory
	Hands   detector.HandFactory
	Metrics *metrics.Manager

	// NewScheduler overrides the frame loop pacing. Tests use it to step
	// the loop by hand.
	NewScheduler func() frameloop.Scheduler
}

// App owns one session at a time: initialization runs in the background
// and, once it succeeds, the frame loop runs until the next Retry or Stop.
type App struct {
	config     Config
	readiness  *readiness.Machine
	lifecycle  *lifecycle.Lifecycle
	controller *gesture.Controller
	surface    *render.MatSurface
	loop       *frameloop.Loop

	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	loopDone chan struct{}
	wg       sync.WaitGroup

	trackingMu   sync.Mutex
	trackingSubs []func(face, hand bool)
}

// New creates a new App instance with the given configuration.
func New(config Config) *App {
	ready := readiness.New()
	controller := gesture.NewController(config.SmoothingAlpha)
	surface := render.NewMatSurface()

	a := &App{
		config:    config,
		readiness: ready,
		lifecycle: lifecycle.New(config.Lifecycle, lifecycle.Deps{
			Camera:    config.Camera,
			Faces:     config.Faces,
			Hands:     config.Hands,
			Readiness: ready,
			Metrics:   config.Metrics,
		}),
		controller: controller,
		surface:    surface,
		loop:       frameloop.New(surface, render.New(render.DefaultStyle()), controller, config.Metrics),
	}
	a.loop.SetFaceTracking(config.FaceTracking)
	a.loop.SetHandTracking(config.HandTracking)

	return a
}

// Start begins initialization in the background and returns immediately.
// Progress is reported through Readiness.
func (a *App) Start(ctx context.Context) error {
	a.mu.Lock()
	if a.ctx != nil {
		a.mu.Unlock()
		return nil
	}
	a.ctx, a.cancel = context.WithCancel(ctx)
	a.mu.Unlock()

	a.spawn()
	return nil
}

// Retry tears down the current session and initializes a new one. It is
// the recovery path out of a failed readiness state.
func (a *App) Retry() error {
	a.mu.Lock()
	started := a.ctx != nil && a.ctx.Err() == nil
	a.mu.Unlock()
	if !started {
		return ErrNotStarted
	}

	logger.Logger.Infow("Retrying initialization")
	a.spawn()
	return nil
}

// spawn starts a session goroutine. A session only starts its loop after
// the previous session's loop has exited, so one loop owns the surface at
// a time.
func (a *App) spawn() {
	a.mu.Lock()
	ctx := a.ctx
	prev := a.loopDone
	done := make(chan struct{})
	a.loopDone = done
	a.wg.Add(1)
	a.mu.Unlock()

	go func() {
		defer a.wg.Done()
		defer close(done)
		a.session(ctx, prev)
	}()
}

func (a *App) session(ctx context.Context, prev <-chan struct{}) {
	h, err := a.lifecycle.Initialize(ctx)
	if err != nil {
		if !errors.Is(err, lifecycle.ErrSuperseded) && ctx.Err() == nil {
			logger.Logger.Errorw("Session failed to start", "error", err)
		}
		return
	}

	if prev != nil {
		<-prev
	}
	a.controller.Reset()

	sched := a.newScheduler()
	if t, ok := sched.(*frameloop.TickerScheduler); ok {
		defer t.Stop()
	}
	if err := a.loop.Run(ctx, h, sched); err != nil {
		logger.Logger.Errorw("Frame loop exited", "session", h.SessionID, "error", err)
	}
}

func (a *App) newScheduler() frameloop.Scheduler {
	if a.config.NewScheduler != nil {
		return a.config.NewScheduler()
	}
	return frameloop.NewTickerScheduler(a.config.FrameInterval)
}

// Stop halts the pipeline and releases the camera and detectors. It waits
// for the session goroutines to exit.
func (a *App) Stop() {
	a.mu.Lock()
	cancel := a.cancel
	a.mu.Unlock()

	a.lifecycle.Teardown()
	if cancel != nil {
		cancel()
	}
	a.wg.Wait()

	a.controller.Reset()
	a.surface.Close()
	logger.Logger.Infow("Pipeline stopped")
}

// SetTracking enables or disables each detector from the next frame on.
func (a *App) SetTracking(face, hand bool) {
	a.loop.SetFaceTracking(face)
	a.loop.SetHandTracking(hand)
	a.notifyTracking()
}

// SetFaceTracking changes the face toggle and leaves the hand toggle alone.
func (a *App) SetFaceTracking(enabled bool) {
	a.loop.SetFaceTracking(enabled)
	a.notifyTracking()
}

// SetHandTracking changes the hand toggle and leaves the face toggle alone.
func (a *App) SetHandTracking(enabled bool) {
	a.loop.SetHandTracking(enabled)
	a.notifyTracking()
}

// SubscribeTracking registers fn to be called with both toggles after
// any of them changes.
func (a *App) SubscribeTracking(fn func(face, hand bool)) {
	a.trackingMu.Lock()
	defer a.trackingMu.Unlock()
	a.trackingSubs = append(a.trackingSubs, fn)
}

func (a *App) notifyTracking() {
	a.trackingMu.Lock()
	subs := append([]func(face, hand bool)(nil), a.trackingSubs...)
	a.trackingMu.Unlock()

	face, hand := a.Tracking()
	for _, fn := range subs {
		fn(face, hand)
	}
}

// Tracking reports the face and hand toggles.
func (a *App) Tracking() (face, hand bool) {
	return a.loop.FaceTracking(), a.loop.HandTracking()
}

// SetPublisher receives every processed frame with its overlay.
func (a *App) SetPublisher(p frameloop.Publisher) {
	a.loop.SetPublisher(p)
}

func (a *App) Readiness() *readiness.Machine {
	return a.readiness
}

func (a *App) Controller() *gesture.Controller {
	return a.controller
}
