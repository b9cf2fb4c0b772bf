package frameloop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"

	"github.com/ayusman/mudra/internal/capture"
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/geometry"
	"github.com/ayusman/mudra/internal/gesture"
	"github.com/ayusman/mudra/internal/lifecycle"
	"github.com/ayusman/mudra/internal/metrics"
	"github.com/ayusman/mudra/internal/render"
)

type harness struct {
	frame   gocv.Mat
	stream  *capture.MockStream
	face    *detector.MockFaceDetector
	hand    *detector.MockHandDetector
	handles *lifecycle.Handles
	cancel  context.CancelFunc
	surface *render.RecordingSurface
	ctrl    *gesture.Controller
	loop    *Loop
	style   render.Style
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		frame:   gocv.NewMatWithSize(480, 640, gocv.MatTypeCV8UC3),
		face:    detector.NewMockFaceDetector(),
		hand:    detector.NewMockHandDetector(),
		surface: render.NewRecordingSurface(),
		ctrl:    gesture.NewController(0),
		style:   render.DefaultStyle(),
	}
	t.Cleanup(func() { h.frame.Close() })

	h.stream = capture.NewMockStream([]*gocv.Mat{&h.frame}, true)
	h.face.SetFaces([]detector.FaceResult{detector.FaceAt(320, 240, 10)})
	h.hand.SetHands([]detector.HandResult{detector.HandAt(detector.Left, 100, 200)})

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h.cancel = cancel
	h.handles = lifecycle.NewHandles(ctx, h.face, h.hand, h.stream)
	h.loop = New(h.surface, render.New(h.style), h.ctrl, metrics.NewManager())

	return h
}

func (h *harness) step(t *testing.T) Result {
	t.Helper()
	res, err := h.loop.Step(context.Background(), h.handles)
	require.NoError(t, err)
	return res
}

func TestStep_Processes(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, Processed, h.step(t))

	w, ht := h.surface.Size()
	assert.Equal(t, 640, w)
	assert.Equal(t, 480, ht)
	assert.Equal(t, 10, h.surface.Count("circle", h.style.FaceColor))
	assert.Equal(t, detector.NumLandmarks, h.surface.Count("circle", h.style.HandColor))
	assert.Equal(t, 1, h.face.Calls())
	assert.Equal(t, 1, h.hand.Calls())

	got := h.ctrl.Latest()
	require.NotNil(t, got)
	assert.InDelta(t, 540.0/640*100, got.X, 1e-9)
	assert.InDelta(t, 100.0/640*360, got.RotationY, 1e-9)
}

func TestStep_MirrorsRenderedPoints(t *testing.T) {
	h := newHarness(t)
	h.loop.SetFaceTracking(false)

	h.step(t)

	var circles []render.Op
	for _, op := range h.surface.Ops() {
		if op.Kind == "circle" {
			circles = append(circles, op)
		}
	}
	require.Len(t, circles, detector.NumLandmarks)
	assert.Equal(t, geometry.Point{X: 540, Y: 200}, circles[0].From)
}

func TestStep_FaceToggle(t *testing.T) {
	h := newHarness(t)
	h.loop.SetFaceTracking(false)

	h.step(t)
	h.step(t)

	assert.False(t, h.loop.FaceTracking())
	assert.Zero(t, h.face.Calls())
	assert.Zero(t, h.surface.Count("circle", h.style.FaceColor))
	assert.Equal(t, 2, h.hand.Calls())

	h.loop.SetFaceTracking(true)
	h.step(t)

	assert.Equal(t, 1, h.face.Calls())
	assert.Equal(t, 10, h.surface.Count("circle", h.style.FaceColor))
}

func TestStep_HandToggle(t *testing.T) {
	h := newHarness(t)
	h.step(t)
	require.NotNil(t, h.ctrl.Latest())

	h.loop.SetHandTracking(false)
	h.step(t)

	assert.Equal(t, 1, h.hand.Calls())
	assert.Zero(t, h.surface.Count("circle", h.style.HandColor))
	assert.Nil(t, h.ctrl.Latest())
}

func TestStep_ToggleReadOncePerIteration(t *testing.T) {
	h := newHarness(t)
	// Disabling hand tracking while the face call is in flight does not
	// affect the current iteration.
	h.face.SetHook(func() { h.loop.SetHandTracking(false) })

	h.step(t)
	assert.Equal(t, 1, h.hand.Calls())

	h.step(t)
	assert.Equal(t, 1, h.hand.Calls())
}

func TestStep_DetectorErrorDoesNotStick(t *testing.T) {
	h := newHarness(t)
	h.hand.FailNext(errors.New("inference failed"))

	res, err := h.loop.Step(context.Background(), h.handles)

	assert.Equal(t, Failed, res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "estimate hands")

	assert.Equal(t, Processed, h.step(t))
	assert.Equal(t, detector.NumLandmarks, h.surface.Count("circle", h.style.HandColor))
	assert.NotNil(t, h.ctrl.Latest())
}

func TestStep_Skips(t *testing.T) {
	t.Run("no frame", func(t *testing.T) {
		h := newHarness(t)
		h.stream.SetFrames(nil)

		assert.Equal(t, Skipped, h.step(t))
		assert.Zero(t, h.face.Calls())
		assert.Zero(t, h.surface.Clears())
	})

	t.Run("zero size", func(t *testing.T) {
		h := newHarness(t)
		empty := gocv.NewMat()
		defer empty.Close()
		h.stream.SetFrames([]*gocv.Mat{&empty})

		assert.Equal(t, Skipped, h.step(t))
		assert.Zero(t, h.hand.Calls())
	})

	t.Run("no surface", func(t *testing.T) {
		h := newHarness(t)
		l := New(nil, render.New(h.style), h.ctrl, nil)

		res, err := l.Step(context.Background(), h.handles)

		require.NoError(t, err)
		assert.Equal(t, Skipped, res)
		assert.Zero(t, h.face.Calls())
	})
}

func TestStep_ResizesToEachFrame(t *testing.T) {
	h := newHarness(t)
	small := gocv.NewMatWithSize(240, 320, gocv.MatTypeCV8UC3)
	defer small.Close()

	h.step(t)
	h.stream.SetFrames([]*gocv.Mat{&small})
	h.step(t)

	w, ht := h.surface.Size()
	assert.Equal(t, 320, w)
	assert.Equal(t, 240, ht)
}

func TestStep_DiscardsAfterTeardown(t *testing.T) {
	h := newHarness(t)
	pub := &recordingPublisher{}
	h.loop.SetPublisher(pub)
	h.hand.SetHook(h.cancel)

	res, err := h.loop.Step(context.Background(), h.handles)

	require.NoError(t, err)
	assert.Equal(t, Discarded, res)
	assert.Nil(t, h.ctrl.Latest())
	assert.Zero(t, h.surface.Count("circle", h.style.HandColor))
	assert.Zero(t, pub.count())
}

func TestStep_Publishes(t *testing.T) {
	h := newHarness(t)
	pub := &recordingPublisher{}
	h.loop.SetPublisher(pub)

	h.step(t)
	h.loop.SetPublisher(nil)
	h.step(t)

	assert.Equal(t, 1, pub.count())
}

func TestRun(t *testing.T) {
	h := newHarness(t)
	sched := NewManualScheduler()
	h.face.FailNext(errors.New("transient"))

	done := make(chan error, 1)
	go func() { done <- h.loop.Run(context.Background(), h.handles, sched) }()

	for i := 0; i < 4; i++ {
		require.True(t, sched.Tick(), "tick %d", i)
	}

	h.cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after teardown")
	}

	// The first face call failed; the loop kept going regardless.
	assert.Equal(t, 4, h.face.Calls())
	assert.GreaterOrEqual(t, h.hand.Calls(), 2)
	assert.NotNil(t, h.ctrl.Latest())
	assert.False(t, sched.Tick())
}

func TestRun_StopsWithContext(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- h.loop.Run(ctx, h.handles, NewTickerScheduler(time.Millisecond)) }()

	require.Eventually(t, func() bool { return h.face.Calls() > 0 }, time.Second, time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	assert.True(t, h.handles.Alive())
}

func TestTickerScheduler(t *testing.T) {
	s := NewTickerScheduler(0)
	defer s.Stop()

	require.NoError(t, s.Next(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, s.Next(ctx))
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "processed", Processed.String())
	assert.Equal(t, "discarded", Discarded.String())
	assert.Equal(t, "unknown", Result(42).String())
}

type recordingPublisher struct {
	mu sync.Mutex
	n  int
}

func (p *recordingPublisher) Publish(frame *gocv.Mat, surface render.Surface) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.n++
}

func (p *recordingPublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.n
}
