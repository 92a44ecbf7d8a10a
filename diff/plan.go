package diff

import (
	"slices"

	"github.com/gogpu/ggtile"
	"github.com/gogpu/ggtile/shape"
)

// planner accumulates a Plan.
type planner struct {
	bounds    BoundsFunc
	escalated map[string]bool
	plan      Plan
}

func (p *planner) escalate(layerID string) {
	if p.escalated[layerID] {
		return
	}
	p.escalated[layerID] = true
	p.plan.Escalated = append(p.plan.Escalated, layerID)
}

func (p *planner) region(layerID string, c RegionChange) {
	for i := range p.plan.Regions {
		if p.plan.Regions[i].LayerID == layerID {
			p.plan.Regions[i].Changes = append(p.plan.Regions[i].Changes, c)
			return
		}
	}
	p.plan.Regions = append(p.plan.Regions, LayerRegions{LayerID: layerID, Changes: []RegionChange{c}})
}

func (p *planner) fallback(layerID string, r ggtile.Rect) {
	for i := range p.plan.Fallback {
		if p.plan.Fallback[i].LayerID == layerID {
			p.plan.Fallback[i].Rects = append(p.plan.Fallback[i].Rects, r)
			return
		}
	}
	p.plan.Fallback = append(p.plan.Fallback, LayerRects{LayerID: layerID, Rects: []ggtile.Rect{r}})
}

func (p *planner) boundsOf(s *shape.Shape) (*ggtile.Rect, bool) {
	b, ok := p.bounds(s)
	if !ok {
		return nil, false
	}
	return &b, true
}

// added routes a shape that exists only in the next state.
func (p *planner) added(s *shape.Shape) {
	b, ok := p.boundsOf(s)
	if !ok {
		p.escalate(s.LayerID)
		return
	}
	p.region(s.LayerID, RegionChange{ShapeID: s.ID, Next: b})
}

// removed routes a shape that exists only in the previous state.
func (p *planner) removed(s *shape.Shape) {
	b, ok := p.boundsOf(s)
	if !ok {
		p.escalate(s.LayerID)
		return
	}
	p.region(s.LayerID, RegionChange{ShapeID: s.ID, Prev: b})
}

// changed routes a shape present in both states.
func (p *planner) changed(prev, next *shape.Shape) {
	pb, pok := p.boundsOf(prev)
	nb, nok := p.boundsOf(next)

	if prev.LayerID == next.LayerID {
		if !pok || !nok {
			p.escalate(prev.LayerID)
			return
		}
		p.region(prev.LayerID, RegionChange{ShapeID: next.ID, Prev: pb, Next: nb})
		return
	}

	// Moved between layers: a removal on the old layer, an addition on the
	// new one. A side whose counterpart is unbounded cannot be paired and
	// falls back to its bounds.
	switch {
	case pok && nok:
		p.region(prev.LayerID, RegionChange{ShapeID: prev.ID, Prev: pb})
		p.region(next.LayerID, RegionChange{ShapeID: next.ID, Next: nb})
	case pok:
		p.fallback(prev.LayerID, *pb)
		p.escalate(next.LayerID)
	case nok:
		p.escalate(prev.LayerID)
		p.fallback(next.LayerID, *nb)
	default:
		p.escalate(prev.LayerID)
		p.escalate(next.LayerID)
	}
}

// NewPlan computes the routing for in. It never fails: anything that
// cannot be bounded escalates.
func NewPlan(in Input, bounds BoundsFunc) Plan {
	if in.RequiresFullInvalidation {
		return Plan{Full: true, LayerTopologyChanged: in.LayerTopologyChanged}
	}

	p := &planner{
		bounds:    bounds,
		escalated: make(map[string]bool),
		plan:      Plan{LayerTopologyChanged: in.LayerTopologyChanged},
	}
	for _, id := range in.ZOrderChangedLayers {
		p.escalate(id)
	}

	prev, next := shapesOf(in.Prev), shapesOf(in.Next)

	for _, id := range in.Added {
		if s, ok := next[id]; ok {
			p.added(s)
		}
	}
	for _, id := range in.Removed {
		if s, ok := prev[id]; ok {
			p.removed(s)
		}
	}
	for _, id := range in.Changed {
		ps, pok := prev[id]
		ns, nok := next[id]
		switch {
		case pok && nok:
			p.changed(ps, ns)
		case nok:
			p.added(ns)
		case pok:
			p.removed(ps)
		}
	}

	p.dropEscalated()
	return p.plan
}

// dropEscalated removes routing that an escalation already covers.
func (p *planner) dropEscalated() {
	p.plan.Regions = slices.DeleteFunc(p.plan.Regions, func(r LayerRegions) bool {
		return p.escalated[r.LayerID]
	})
	p.plan.Fallback = slices.DeleteFunc(p.plan.Fallback, func(r LayerRects) bool {
		return p.escalated[r.LayerID]
	})
}

func shapesOf(l ShapeLookup) map[string]*shape.Shape {
	if l == nil {
		return nil
	}
	return l.Shapes()
}

// Apply dispatches plan to target: full invalidation stops everything
// else; otherwise escalations, then shape region changes, then fallback
// rectangles.
func Apply(plan Plan, target Target) {
	if plan.Full {
		target.InvalidateAll()
		return
	}
	for _, id := range plan.Escalated {
		target.InvalidateLayer(id)
	}
	for _, r := range plan.Regions {
		target.RouteRegionChanges(r.LayerID, r.Changes)
	}
	for _, r := range plan.Fallback {
		target.RouteRects(r.LayerID, r.Rects)
	}
}

// Route plans in and applies it to target.
func Route(in Input, bounds BoundsFunc, target Target) Plan {
	plan := NewPlan(in, bounds)
	Apply(plan, target)
	return plan
}
