package shape

import (
	"cmp"
	"image"
	"image/color"
	"slices"

	"github.com/gogpu/ggtile"
)

// Built-in type tags.
const (
	TypePen   = "pen"
	TypeBox   = "box"
	TypeText  = "text"
	TypeImage = "image"
	TypeClear = "clear"
)

// Shape is one element of a document.
type Shape struct {
	ID      string
	LayerID string

	// ZIndex orders shapes within a layer. It compares lexicographically,
	// so fractional indexes such as "a0", "a0V", "a1" sort as intended.
	ZIndex string

	// Type selects the painter.
	Type string

	Points []ggtile.Point
	Rect   ggtile.Rect
	Text   string
	Size   float64
	Color  color.Color
	Width  float64
	Image  image.Image
}

// Clone returns a copy of s that shares no slices with it.
// Image is shared; images are treated as immutable.
func (s *Shape) Clone() *Shape {
	c := *s
	c.Points = slices.Clone(s.Points)
	return &c
}

// Compare orders shapes by ZIndex, then by ID so that equal indexes
// produced by concurrent edits still yield one order.
func Compare(a, b *Shape) int {
	if c := cmp.Compare(a.ZIndex, b.ZIndex); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// Sort sorts shapes in paint order.
func Sort(shapes []*Shape) {
	slices.SortFunc(shapes, Compare)
}

// Source is the authoritative shape collection the engine renders from.
type Source interface {
	// OrderedShapesForLayer returns the shapes of a layer in paint order.
	OrderedShapesForLayer(layerID string) []*Shape

	// Shapes returns every shape keyed by ID. Callers must not modify it.
	Shapes() map[string]*Shape
}

// MapSource is a Source backed by a plain map.
type MapSource map[string]*Shape

// OrderedShapesForLayer implements Source.
func (m MapSource) OrderedShapesForLayer(layerID string) []*Shape {
	var out []*Shape
	for _, s := range m {
		if s.LayerID == layerID {
			out = append(out, s)
		}
	}
	Sort(out)
	return out
}

// Shapes implements Source.
func (m MapSource) Shapes() map[string]*Shape {
	return m
}

// Put adds or replaces shapes.
func (m MapSource) Put(shapes ...*Shape) {
	for _, s := range shapes {
		m[s.ID] = s
	}
}
