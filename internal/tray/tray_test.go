package tray

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ayusman/mudra/internal/readiness"
)

func TestStatusText(t *testing.T) {
	assert.Equal(t, "○ "+readiness.MsgLoadingFaceModel, StatusText(readiness.Snapshot{}))
	assert.Equal(t, "○ "+readiness.MsgLoadingHandModel, StatusText(readiness.Snapshot{FaceModelReady: true}))
	assert.Equal(t, "● Tracking", StatusText(readiness.Snapshot{CameraReady: true, FaceModelReady: true, HandModelReady: true}))
	assert.Equal(t, "✕ timed out loading models", StatusText(readiness.Snapshot{Error: "timed out loading models"}))
}

func TestTray_Toggle(t *testing.T) {
	tr := New()

	var faceCalls, handCalls []bool
	tr.OnFaceTracking(func(enabled bool) { faceCalls = append(faceCalls, enabled) })
	tr.OnHandTracking(func(enabled bool) { handCalls = append(handCalls, enabled) })

	tr.toggle(true)
	assert.Equal(t, []bool{false}, faceCalls)
	assert.Empty(t, handCalls)

	tr.toggle(false)
	assert.Equal(t, []bool{false}, faceCalls)
	assert.Equal(t, []bool{false}, handCalls)

	face, hand := tr.Tracking()
	assert.False(t, face)
	assert.False(t, hand)
}

// toggles stands in for the app: it owns both flags and pushes every
// change back to the tray.
type toggles struct {
	face, hand bool
	tray       *Tray
}

func (s *toggles) setFace(enabled bool) { s.face = enabled; s.tray.SetTracking(s.face, s.hand) }
func (s *toggles) setHand(enabled bool) { s.hand = enabled; s.tray.SetTracking(s.face, s.hand) }

func TestTray_ClickAfterExternalChange(t *testing.T) {
	tr := New()
	state := &toggles{face: true, hand: true, tray: tr}
	tr.OnFaceTracking(state.setFace)
	tr.OnHandTracking(state.setHand)

	// Hand tracking turned off through the HTTP API.
	state.setHand(false)

	tr.toggle(true)
	assert.False(t, state.face)
	assert.False(t, state.hand, "face click must not re-enable hand tracking")

	face, hand := tr.Tracking()
	assert.False(t, face)
	assert.False(t, hand)

	tr.toggle(false)
	assert.True(t, state.hand)
	assert.False(t, state.face)
}

func TestTray_SetState(t *testing.T) {
	tr := New()
	assert.Equal(t, readiness.MsgLoadingFaceModel, tr.Status())

	tr.SetReadiness(readiness.Snapshot{Error: "camera unavailable"})
	assert.Equal(t, "✕ camera unavailable", tr.Status())

	tr.SetTracking(false, true)
	face, hand := tr.Tracking()
	assert.False(t, face)
	assert.True(t, hand)
}
