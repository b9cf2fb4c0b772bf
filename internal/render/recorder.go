package render

import (
	"image/color"
	"sync"

	"github.com/ayusman/mudra/internal/geometry"
)

// Op is one recorded drawing call.
type Op struct {
	Kind   string
	From   geometry.Point
	To     geometry.Point
	Radius int
	Color  color.RGBA
}

// RecordingSurface records drawing calls instead of rasterising them. It is
// used by tests that assert on what was drawn.
type RecordingSurface struct {
	mu      sync.Mutex
	width   int
	height  int
	ops     []Op
	resizes int
	clears  int
}

func NewRecordingSurface() *RecordingSurface {
	return &RecordingSurface{}
}

func (r *RecordingSurface) Size() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.width, r.height
}

func (r *RecordingSurface) Resize(width, height int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.width, r.height = width, height
	r.resizes++
}

// Clear drops every recorded op, like clearing a canvas.
func (r *RecordingSurface) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = nil
	r.clears++
}

func (r *RecordingSurface) Circle(center geometry.Point, radius int, c color.RGBA) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, Op{Kind: "circle", From: center, Radius: radius, Color: c})
}

func (r *RecordingSurface) Line(from, to geometry.Point, c color.RGBA, thickness int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, Op{Kind: "line", From: from, To: to, Radius: thickness, Color: c})
}

// Ops returns the calls since the last Clear.
func (r *RecordingSurface) Ops() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Op(nil), r.ops...)
}

// Count returns how many ops of kind drawn in color c were recorded.
func (r *RecordingSurface) Count(kind string, c color.RGBA) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, op := range r.ops {
		if op.Kind == kind && op.Color == c {
			n++
		}
	}
	return n
}

func (r *RecordingSurface) Clears() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clears
}
