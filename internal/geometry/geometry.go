// Package geometry maps detector landmarks into the mirrored screen space
// used by the overlay. Everything here is pure.
package geometry

import "github.com/ayusman/mudra/internal/detector"

// Point is a landmark after mirroring, in surface coordinates.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// MirrorX reflects x across the vertical centre line of a frame of the given
// width. The displayed video is mirrored while the drawing surface is not, so
// every rendered x goes through this exactly once.
func MirrorX(x, frameWidth float64) float64 {
	return frameWidth - x
}

// Mirror maps a single landmark. Y passes through unchanged.
func Mirror(l detector.Landmark, frameWidth float64) Point {
	return Point{X: MirrorX(l.X, frameWidth), Y: l.Y}
}

// MapLandmarks mirrors every landmark of one result.
func MapLandmarks(landmarks []detector.Landmark, frameWidth float64) []Point {
	out := make([]Point, len(landmarks))
	for i, l := range landmarks {
		out[i] = Mirror(l, frameWidth)
	}
	return out
}

// MapFaces mirrors every face, preserving order.
func MapFaces(faces []detector.FaceResult, frameWidth float64) [][]Point {
	out := make([][]Point, len(faces))
	for i, f := range faces {
		out[i] = MapLandmarks(f.Keypoints, frameWidth)
	}
	return out
}

// MapHands mirrors every hand, preserving order.
func MapHands(hands []detector.HandResult, frameWidth float64) [][]Point {
	out := make([][]Point, len(hands))
	for i, h := range hands {
		out[i] = MapLandmarks(h.Keypoints, frameWidth)
	}
	return out
}
