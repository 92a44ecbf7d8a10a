// Package diff turns a structural document diff into tile invalidations.
//
// For every changed shape the router decides whether a per-shape region
// update is enough or its layer must be invalidated as a whole. Shapes that
// cannot be bounded, and layers whose z-order changed, escalate. Planning
// is a pure function of the diff; Apply hands the result to a Target.
package diff

import (
	"github.com/gogpu/ggtile"
	"github.com/gogpu/ggtile/shape"
)

// RegionChange is the footprint change of one shape on one layer.
// A nil Prev means the shape was not on the layer before, a nil Next that
// it is not there after.
type RegionChange struct {
	ShapeID string
	Prev    *ggtile.Rect
	Next    *ggtile.Rect
}

// ShapeLookup is a document state. shape.Source satisfies it.
type ShapeLookup interface {
	Shapes() map[string]*shape.Shape
}

// BoundsFunc bounds a shape; false means unbounded. (*shape.Registry).Bounds
// has this signature.
type BoundsFunc func(s *shape.Shape) (ggtile.Rect, bool)

// Input is a structural diff between two document states.
type Input struct {
	Prev, Next ShapeLookup

	Added   []string
	Removed []string
	Changed []string

	// ZOrderChangedLayers lists layers whose shape order changed.
	ZOrderChangedLayers []string

	// RequiresFullInvalidation skips planning and invalidates everything.
	RequiresFullInvalidation bool

	// LayerTopologyChanged reports that layers were added, removed or
	// reordered. The caller applies the new layer list before routing.
	LayerTopologyChanged bool
}

// Target receives routed invalidations.
type Target interface {
	InvalidateAll()
	InvalidateLayer(layerID string)
	RouteRegionChanges(layerID string, changes []RegionChange)
	RouteRects(layerID string, rects []ggtile.Rect)
}

// LayerRegions is the region changes routed to one layer.
type LayerRegions struct {
	LayerID string
	Changes []RegionChange
}

// LayerRects is the fallback rectangles routed to one layer.
type LayerRects struct {
	LayerID string
	Rects   []ggtile.Rect
}

// Plan is the routing decision for one Input.
type Plan struct {
	// Full means every layer is invalidated and nothing else is routed.
	Full bool

	// Escalated lists layers invalidated as a whole, each once, in the
	// order they were escalated.
	Escalated []string

	// Regions holds the per-shape region changes, grouped by layer in
	// first-seen order. Escalated layers never appear.
	Regions []LayerRegions

	// Fallback holds bounds-only invalidations for shapes whose other side
	// could not be expressed as a region change. Escalated layers never
	// appear.
	Fallback []LayerRects

	LayerTopologyChanged bool
}

// Empty reports whether the plan invalidates nothing.
func (p Plan) Empty() bool {
	return !p.Full && len(p.Escalated) == 0 && len(p.Regions) == 0 && len(p.Fallback) == 0
}
