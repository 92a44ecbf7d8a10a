package diff

import (
	"fmt"
	"testing"

	"github.com/tdewolff/test"

	"github.com/gogpu/ggtile"
	"github.com/gogpu/ggtile/shape"
)

// recordingTarget logs every call it receives.
type recordingTarget struct {
	calls []string
}

func (r *recordingTarget) InvalidateAll() { r.calls = append(r.calls, "all") }

func (r *recordingTarget) InvalidateLayer(id string) {
	r.calls = append(r.calls, "layer "+id)
}

func (r *recordingTarget) RouteRegionChanges(id string, changes []RegionChange) {
	for _, c := range changes {
		r.calls = append(r.calls, fmt.Sprintf("region %s %s %s %s", id, c.ShapeID, rectString(c.Prev), rectString(c.Next)))
	}
}

func (r *recordingTarget) RouteRects(id string, rects []ggtile.Rect) {
	for _, rect := range rects {
		r.calls = append(r.calls, fmt.Sprintf("rect %s %s", id, rect))
	}
}

func rectString(r *ggtile.Rect) string {
	if r == nil {
		return "nil"
	}
	return r.String()
}

var bounds = shape.NewDefaultRegistry().Bounds

func boxOn(id, layer string, x float64) *shape.Shape {
	return &shape.Shape{ID: id, LayerID: layer, Type: shape.TypeBox, Rect: ggtile.R(x, 0, x+10, 10)}
}

func doc(shapes ...*shape.Shape) shape.MapSource {
	m := shape.MapSource{}
	m.Put(shapes...)
	return m
}

func TestRouteFullInvalidation(t *testing.T) {
	tgt := &recordingTarget{}
	plan := Route(Input{
		Prev:                     doc(),
		Next:                     doc(boxOn("a", "L1", 0)),
		Added:                    []string{"a"},
		ZOrderChangedLayers:      []string{"L1"},
		RequiresFullInvalidation: true,
	}, bounds, tgt)
	test.That(t, plan.Full)
	test.T(t, tgt.calls, []string{"all"})
}

func TestRouteAddedRemovedChanged(t *testing.T) {
	tgt := &recordingTarget{}
	Route(Input{
		Prev:    doc(boxOn("r", "L1", 0), boxOn("c", "L2", 0)),
		Next:    doc(boxOn("a", "L1", 20), boxOn("c", "L2", 40)),
		Added:   []string{"a"},
		Removed: []string{"r"},
		Changed: []string{"c"},
	}, bounds, tgt)
	test.T(t, tgt.calls, []string{
		"region L1 a nil [20,0]-[30,10]",
		"region L1 r [0,0]-[10,10] nil",
		"region L2 c [0,0]-[10,10] [40,0]-[50,10]",
	})
}

func TestRouteZOrderEscalatesAndDropsRegions(t *testing.T) {
	tgt := &recordingTarget{}
	plan := Route(Input{
		Prev:                doc(),
		Next:                doc(boxOn("a", "L1", 0), boxOn("b", "L2", 0)),
		Added:               []string{"a", "b"},
		ZOrderChangedLayers: []string{"L1"},
	}, bounds, tgt)
	test.T(t, plan.Escalated, []string{"L1"})
	test.T(t, tgt.calls, []string{"layer L1", "region L2 b nil [0,0]-[10,10]"})
}

func TestRouteUnboundedAddEscalates(t *testing.T) {
	tgt := &recordingTarget{}
	Route(Input{
		Prev:  doc(),
		Next:  doc(&shape.Shape{ID: "x", LayerID: "L1", Type: "sticky"}, boxOn("a", "L1", 0)),
		Added: []string{"a", "x"},
	}, bounds, tgt)
	// The escalation arrives after the region change was planned and still
	// removes it.
	test.T(t, tgt.calls, []string{"layer L1"})
}

func TestRouteUnboundedMoveBetweenLayers(t *testing.T) {
	prev := doc(&shape.Shape{ID: "s", LayerID: "L1", Type: "sticky"})
	next := doc(boxOn("s", "L2", 300))

	tgt := &recordingTarget{}
	plan := Route(Input{Prev: prev, Next: next, Changed: []string{"s"}}, bounds, tgt)

	test.T(t, plan.Escalated, []string{"L1"})
	test.T(t, len(plan.Regions), 0)
	test.T(t, tgt.calls, []string{"layer L1", "rect L2 [300,0]-[310,10]"})
}

func TestRouteBoundedMoveBetweenLayers(t *testing.T) {
	tgt := &recordingTarget{}
	Route(Input{
		Prev:    doc(boxOn("s", "L1", 0)),
		Next:    doc(boxOn("s", "L2", 100)),
		Changed: []string{"s"},
	}, bounds, tgt)
	test.T(t, tgt.calls, []string{
		"region L1 s [0,0]-[10,10] nil",
		"region L2 s nil [100,0]-[110,10]",
	})
}

func TestRouteSharedLayerEscalatesOnce(t *testing.T) {
	tgt := &recordingTarget{}
	plan := Route(Input{
		Prev:    doc(boxOn("a", "L1", 0), &shape.Shape{ID: "b", LayerID: "L1", Type: shape.TypeClear}),
		Next:    doc(&shape.Shape{ID: "a", LayerID: "L1", Type: "sticky"}, &shape.Shape{ID: "b", LayerID: "L1", Type: shape.TypeClear}),
		Changed: []string{"a", "b"},
	}, bounds, tgt)
	test.T(t, plan.Escalated, []string{"L1"})
	test.T(t, tgt.calls, []string{"layer L1"})
}

func TestRouteChangedMissingSide(t *testing.T) {
	tgt := &recordingTarget{}
	Route(Input{
		Prev:    doc(boxOn("gone", "L1", 0)),
		Next:    doc(boxOn("new", "L1", 50)),
		Changed: []string{"gone", "new", "unknown"},
	}, bounds, tgt)
	test.T(t, tgt.calls, []string{
		"region L1 gone [0,0]-[10,10] nil",
		"region L1 new nil [50,0]-[60,10]",
	})
}

func TestPlanEmpty(t *testing.T) {
	plan := NewPlan(Input{Prev: doc(), Next: doc(), LayerTopologyChanged: true}, bounds)
	test.That(t, plan.Empty())
	test.That(t, plan.LayerTopologyChanged)
	test.That(t, !NewPlan(Input{RequiresFullInvalidation: true}, bounds).Empty())
}
