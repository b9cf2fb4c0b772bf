package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/mudra/internal/detector"
)

func TestMirrorX(t *testing.T) {
	tests := []struct {
		name string
		x, w float64
		want float64
	}{
		{name: "left edge", x: 0, w: 640, want: 640},
		{name: "right edge", x: 640, w: 640, want: 0},
		{name: "centre", x: 320, w: 640, want: 320},
		{name: "outside frame", x: 700, w: 640, want: -60},
		{name: "negative input", x: -10, w: 640, want: 650},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MirrorX(tt.x, tt.w))
		})
	}
}

func TestMirrorX_Involution(t *testing.T) {
	widths := []float64{1, 480, 640, 1280, 1920.5}
	xs := []float64{-100, 0, 0.25, 13, 319.5, 640, 5000}

	for _, w := range widths {
		for _, x := range xs {
			assert.InDelta(t, x, MirrorX(MirrorX(x, w), w), 1e-9, "x=%v w=%v", x, w)
		}
	}
}

func TestMirror_PassesYThrough(t *testing.T) {
	p := Mirror(detector.Landmark{X: 100, Y: 77, Z: -3}, 640)

	assert.Equal(t, Point{X: 540, Y: 77}, p)
}

func TestMapHands(t *testing.T) {
	hands := []detector.HandResult{
		detector.HandAt(detector.Left, 100, 400),
		detector.HandAt(detector.Right, 500, 400),
	}

	mapped := MapHands(hands, 640)

	require.Len(t, mapped, 2)
	for i, h := range hands {
		require.Len(t, mapped[i], len(h.Keypoints))
		for j, l := range h.Keypoints {
			assert.Equal(t, 640-l.X, mapped[i][j].X)
			assert.Equal(t, l.Y, mapped[i][j].Y)
		}
	}
}

func TestMapFaces_Empty(t *testing.T) {
	assert.Empty(t, MapFaces(nil, 640))
	assert.Empty(t, MapHands([]detector.HandResult{}, 640))
}
