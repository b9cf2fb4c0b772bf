// Package gesture derives the controlled object's transform from one tracked hand.
package gesture

import (
	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/geometry"
)

// ControlHand is the detector label of the hand that drives the object.
// The detector sees the unmirrored frame, so its "Left" is the user's right
// hand as seen in the mirrored display.
const ControlHand = detector.Left

// Transform places and orients the controlled object. X and Y are
// percentages of the container, rotations are degrees. Values are not
// clamped: a wrist outside the frame yields values outside 0-100 / 0-360.
type Transform struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
	RotationX float64 `json:"rotationX"`
	RotationY float64 `json:"rotationY"`
}

// SelectHand returns the first hand labelled ControlHand, or nil.
func SelectHand(hands []detector.HandResult) *detector.HandResult {
	for i := range hands {
		if hands[i].Handedness == ControlHand {
			return &hands[i]
		}
	}
	return nil
}

// ResolveGesture maps the control hand's wrist to a Transform. hands must be
// in unmirrored detector space. It returns nil when no hand qualifies, when
// the wrist is missing, or when the frame has no area.
func ResolveGesture(hands []detector.HandResult, frameWidth, frameHeight float64) *Transform {
	if frameWidth <= 0 || frameHeight <= 0 {
		return nil
	}

	hand := SelectHand(hands)
	if hand == nil {
		return nil
	}
	wrist, ok := hand.Wrist()
	if !ok {
		return nil
	}

	normalizedX := wrist.X / frameWidth
	normalizedY := wrist.Y / frameHeight

	// Translation follows the mirrored view; rotation uses raw coordinates.
	movementX := geometry.MirrorX(wrist.X, frameWidth) / frameWidth
	movementY := 1 - normalizedY

	return &Transform{
		X:         movementX * 100,
		Y:         movementY * 100,
		Z:         0,
		RotationX: normalizedY * 360,
		RotationY: normalizedX * 360,
	}
}
