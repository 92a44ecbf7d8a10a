// Package layers composes one raster backend per document layer.
//
// Drawing layers are tiled (package tile); image layers are rendered on a
// single viewport-sized canvas. The Stack keeps the backends in z-order,
// places the hot overlay directly above the active layer and exposes one
// invalidation API that the diff router and the dirty-shape path share.
// All bakes run through one bake.Queue.
package layers

import (
	"cmp"
	"slices"
)

// Kind selects a layer's backend.
type Kind int

const (
	// KindDrawing layers are tiled.
	KindDrawing Kind = iota
	// KindImage layers are rendered on one canvas.
	KindImage
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindDrawing:
		return "drawing"
	case KindImage:
		return "image"
	default:
		return "unknown"
	}
}

// HotSlot is the entry PlanOrder inserts for the hot overlay.
const HotSlot = "\x00hot"

// Layer describes one document layer.
type Layer struct {
	ID      string
	Kind    Kind
	ZIndex  string
	Visible bool
}

// tiled reports whether the layer uses the tiled backend.
func (l Layer) tiled() bool {
	return l.Kind != KindImage
}

// sortLayers orders layers by ZIndex, then ID.
func sortLayers(ls []Layer) {
	slices.SortStableFunc(ls, func(a, b Layer) int {
		if c := cmp.Compare(a.ZIndex, b.ZIndex); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// PlanOrder returns ids, bottom to top, with HotSlot inserted directly
// after active. With no active layer among ids the overlay goes on top.
func PlanOrder(ids []string, active string) []string {
	out := make([]string, 0, len(ids)+1)
	placed := false
	for _, id := range ids {
		out = append(out, id)
		if !placed && id == active {
			out = append(out, HotSlot)
			placed = true
		}
	}
	if !placed {
		out = append(out, HotSlot)
	}
	return out
}
