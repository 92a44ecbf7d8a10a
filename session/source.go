package session

import (
	"cmp"
	"slices"

	"github.com/gogpu/ggtile/shape"
)

// flatSource presents every shape of a document as one layer. Shapes are
// grouped by the rank of their layer in order, then sorted by z-index.
// Layers missing from order paint above the listed ones, by id. With an
// empty order only z-indexes count.
type flatSource struct {
	shape.Source
	rank map[string]int
}

func newFlatSource(src shape.Source, order []string) flatSource {
	rank := make(map[string]int, len(order))
	for i, id := range order {
		if _, ok := rank[id]; !ok {
			rank[id] = i
		}
	}
	return flatSource{Source: src, rank: rank}
}

func (f flatSource) OrderedShapesForLayer(string) []*shape.Shape {
	all := f.Shapes()
	out := make([]*shape.Shape, 0, len(all))
	for _, s := range all {
		out = append(out, s)
	}
	slices.SortFunc(out, f.compare)
	return out
}

func (f flatSource) compare(a, b *shape.Shape) int {
	if len(f.rank) > 0 && a.LayerID != b.LayerID {
		ra, oka := f.rank[a.LayerID]
		rb, okb := f.rank[b.LayerID]
		switch {
		case oka && okb:
			return cmp.Compare(ra, rb)
		case oka:
			return -1
		case okb:
			return 1
		default:
			return cmp.Compare(a.LayerID, b.LayerID)
		}
	}
	return shape.Compare(a, b)
}
