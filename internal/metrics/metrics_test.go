package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilManagerIsNoop(t *testing.T) {
	var m *Manager

	assert.NotPanics(t, func() {
		m.FrameProcessed()
		m.FrameSkipped(SkipNoFrame)
		m.DetectionError("face")
		m.ObserveDetection("hand", time.Millisecond)
		m.ModelLoad("MediaPipeHands", "ok")
		m.Initialization("timeout")
		m.HandPresent(true)
	})
}

func TestManager_Counters(t *testing.T) {
	m := NewManager()

	m.FrameProcessed()
	m.FrameProcessed()
	m.FrameSkipped(SkipZeroSize)
	m.DetectionError("face")
	m.ModelLoad("MediaPipeFaceMesh", "conflict")
	m.HandPresent(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.framesProcessed))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.framesSkipped.WithLabelValues(SkipZeroSize)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.detectionErrors.WithLabelValues("face")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.modelLoads.WithLabelValues("MediaPipeFaceMesh", "conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.handPresent))

	m.HandPresent(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.handPresent))
}

func TestManager_Handler(t *testing.T) {
	m := NewManager()
	m.FrameProcessed()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mudra_frameloop_frames_processed_total 1")
}
