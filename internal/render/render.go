// Package render draws mapped landmarks onto a 2D surface.
package render

import (
	"image/color"

	"github.com/ayusman/mudra/internal/detector"
	"github.com/ayusman/mudra/internal/geometry"
)

// Surface is a drawing target sized to the current video frame.
type Surface interface {
	Size() (width, height int)
	Resize(width, height int)
	Clear()
	Circle(center geometry.Point, radius int, c color.RGBA)
	Line(from, to geometry.Point, c color.RGBA, thickness int)
}

// Style controls how landmarks are drawn.
type Style struct {
	FaceColor      color.RGBA
	FaceRadius     int
	HandColor      color.RGBA
	HandRadius     int
	ConnectorColor color.RGBA
	ConnectorWidth int
}

// DefaultStyle draws small aqua dots for the face mesh and red joints joined
// by white connectors for hands.
func DefaultStyle() Style {
	return Style{
		FaceColor:      color.RGBA{R: 0, G: 255, B: 255, A: 255},
		FaceRadius:     1,
		HandColor:      color.RGBA{R: 255, G: 0, B: 0, A: 255},
		HandRadius:     5,
		ConnectorColor: color.RGBA{R: 255, G: 255, B: 255, A: 255},
		ConnectorWidth: 2,
	}
}

// Renderer draws mapped face and hand point sets. It keeps no per-frame
// state; the caller resizes and clears the surface.
type Renderer struct {
	style Style
}

func New(style Style) *Renderer {
	return &Renderer{style: style}
}

// Draw renders faces first so hand joints sit on top.
func (r *Renderer) Draw(s Surface, faces, hands [][]geometry.Point) {
	r.DrawFaces(s, faces)
	r.DrawHands(s, hands)
}

func (r *Renderer) DrawFaces(s Surface, faces [][]geometry.Point) {
	for _, face := range faces {
		for _, p := range face {
			s.Circle(p, r.style.FaceRadius, r.style.FaceColor)
		}
	}
}

// DrawHands draws the skeleton connectors, then every joint. Connectors whose
// endpoints are missing from a partial hand are skipped.
func (r *Renderer) DrawHands(s Surface, hands [][]geometry.Point) {
	for _, hand := range hands {
		for _, c := range detector.HandConnections {
			if c[0] >= len(hand) || c[1] >= len(hand) {
				continue
			}
			s.Line(hand[c[0]], hand[c[1]], r.style.ConnectorColor, r.style.ConnectorWidth)
		}
		for _, p := range hand {
			s.Circle(p, r.style.HandRadius, r.style.HandColor)
		}
	}
}
