package shape

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gogpu/ggtile"
	"github.com/gogpu/ggtile/surface"
)

// BoundsFunc returns the document-space bounds of s. It returns false when
// s cannot be bounded cheaply.
type BoundsFunc func(s *Shape) (ggtile.Rect, bool)

// PaintFunc paints s onto ctx.
type PaintFunc func(ctx *surface.Context, s *Shape) error

// Painter is the capability pair registered for one shape type.
// A nil Bounds marks the type as unbounded.
type Painter struct {
	Bounds BoundsFunc
	Paint  PaintFunc
}

// Registry maps type tags to painters.
//
// Thread safety: Registry is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	painters map[string]Painter
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{painters: make(map[string]Painter)}
}

// NewDefaultRegistry returns a registry holding the built-in painters.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(TypePen, Painter{Bounds: penBounds, Paint: paintPen})
	r.Register(TypeBox, Painter{Bounds: boxBounds, Paint: paintBox})
	r.Register(TypeText, Painter{Bounds: textBounds, Paint: paintText})
	r.Register(TypeImage, Painter{Bounds: imageBounds, Paint: paintImage})
	r.Register(TypeClear, Painter{Paint: paintClear})
	return r
}

// Register adds a painter for tag.
//
// Register panics if Paint is nil or tag is already registered, so that
// conflicting registrations surface at startup.
func (r *Registry) Register(tag string, p Painter) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p.Paint == nil {
		panic("shape: Register paint func is nil")
	}
	if _, dup := r.painters[tag]; dup {
		panic("shape: Register called twice for " + tag)
	}
	r.painters[tag] = p
}

// Unregister removes the painter for tag. Unknown tags are a no-op.
func (r *Registry) Unregister(tag string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.painters, tag)
}

// Lookup returns the painter for tag.
func (r *Registry) Lookup(tag string) (Painter, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.painters[tag]
	return p, ok
}

// Has reports whether tag has a painter.
func (r *Registry) Has(tag string) bool {
	_, ok := r.Lookup(tag)
	return ok
}

// Types returns the registered tags, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tags := make([]string, 0, len(r.painters))
	for tag := range r.painters {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Bounds returns the bounds of s. It returns false for nil shapes, unknown
// types, unbounded types, and shapes whose bounds are empty.
func (r *Registry) Bounds(s *Shape) (ggtile.Rect, bool) {
	if s == nil {
		return ggtile.Rect{}, false
	}
	p, ok := r.Lookup(s.Type)
	if !ok || p.Bounds == nil {
		return ggtile.Rect{}, false
	}
	b, ok := p.Bounds(s)
	if !ok || b.Empty() {
		return ggtile.Rect{}, false
	}
	return b, true
}

// Paint paints s onto ctx. Shapes of unknown type are skipped and reported
// with painted == false.
func (r *Registry) Paint(ctx *surface.Context, s *Shape) (painted bool, err error) {
	p, ok := r.Lookup(s.Type)
	if !ok {
		return false, nil
	}
	if err := p.Paint(ctx, s); err != nil {
		return true, fmt.Errorf("shape %s (%s): %w", s.ID, s.Type, err)
	}
	return true, nil
}
