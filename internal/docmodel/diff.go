package docmodel

import (
	"image/color"
	"maps"
	"slices"

	"github.com/gogpu/ggtile/diff"
	"github.com/gogpu/ggtile/shape"
)

// Diff compares two document states. A nil prev means nothing was rendered
// yet and asks for a full invalidation.
func Diff(prev, next diff.ShapeLookup) diff.Input {
	in := diff.Input{Prev: prev, Next: next}
	if prev == nil {
		in.RequiresFullInvalidation = true
		in.LayerTopologyChanged = true
		return in
	}
	p, n := prev.Shapes(), next.Shapes()

	for _, id := range slices.Sorted(maps.Keys(n)) {
		old, ok := p[id]
		switch {
		case !ok:
			in.Added = append(in.Added, id)
		case !Equal(old, n[id]):
			in.Changed = append(in.Changed, id)
		}
	}
	for _, id := range slices.Sorted(maps.Keys(p)) {
		if _, ok := n[id]; !ok {
			in.Removed = append(in.Removed, id)
		}
	}

	in.ZOrderChangedLayers = zOrderChanged(p, n)
	in.LayerTopologyChanged = !slices.Equal(layerIDs(p), layerIDs(n))
	return in
}

// zOrderChanged lists layers where shapes present before and after on the
// same layer are painted in a different relative order.
func zOrderChanged(p, n map[string]*shape.Shape) []string {
	kept := func(m, other map[string]*shape.Shape) map[string][]*shape.Shape {
		out := make(map[string][]*shape.Shape)
		for id, s := range m {
			if o, ok := other[id]; ok && o.LayerID == s.LayerID {
				out[s.LayerID] = append(out[s.LayerID], s)
			}
		}
		return out
	}
	before, after := kept(p, n), kept(n, p)

	var layers []string
	for _, layerID := range slices.Sorted(maps.Keys(before)) {
		a, b := before[layerID], after[layerID]
		shape.Sort(a)
		shape.Sort(b)
		if !slices.EqualFunc(a, b, func(x, y *shape.Shape) bool { return x.ID == y.ID }) {
			layers = append(layers, layerID)
		}
	}
	return layers
}

func layerIDs(m map[string]*shape.Shape) []string {
	set := make(map[string]struct{})
	for _, s := range m {
		set[s.LayerID] = struct{}{}
	}
	return slices.Sorted(maps.Keys(set))
}

// Equal reports whether two shapes render identically. Images compare by
// identity.
func Equal(a, b *shape.Shape) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a.ID == b.ID &&
		a.LayerID == b.LayerID &&
		a.ZIndex == b.ZIndex &&
		a.Type == b.Type &&
		slices.Equal(a.Points, b.Points) &&
		a.Rect == b.Rect &&
		a.Text == b.Text &&
		a.Size == b.Size &&
		colorEqual(a.Color, b.Color) &&
		a.Width == b.Width &&
		a.Image == b.Image
}

func colorEqual(a, b color.Color) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ar, ag, ab, aa := a.RGBA()
	br, bg, bb, ba := b.RGBA()
	return ar == br && ag == bg && ab == bb && aa == ba
}
