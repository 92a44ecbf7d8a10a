// Package docmodel is a small replicated shape document used by the demo
// and the tests.
//
// Every shape is a last-writer-wins register stamped with a Lamport clock.
// Deletes leave tombstones, so merging two replicas in either order yields
// the same document.
package docmodel

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/gogpu/ggtile/shape"
)

// Stamp is a Lamport timestamp. Equal counters are ordered by replica id.
type Stamp struct {
	Counter uint64
	Replica string
}

// Compare orders stamps.
func (s Stamp) Compare(o Stamp) int {
	if c := cmp.Compare(s.Counter, o.Counter); c != 0 {
		return c
	}
	return cmp.Compare(s.Replica, o.Replica)
}

func (s Stamp) String() string {
	return fmt.Sprintf("%d@%s", s.Counter, s.Replica)
}

// OpType identifies an edit.
type OpType uint8

// Edit kinds.
const (
	OpPut OpType = iota + 1
	OpDelete
)

func (t OpType) String() string {
	switch t {
	case OpPut:
		return "put"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("OpType(%d)", uint8(t))
	}
}

// Op is one edit of one shape.
type Op struct {
	Type    OpType
	Stamp   Stamp
	ShapeID string
	// Shape is set for OpPut.
	Shape *shape.Shape
}

type register struct {
	stamp Stamp
	shape *shape.Shape // nil for a tombstone
}

// Document is one replica.
//
// Thread safety: Document is safe for concurrent use. Shapes handed out are
// shared with the document and must not be modified.
type Document struct {
	mu      sync.RWMutex
	replica string
	clock   uint64
	regs    map[string]register
	live    int
}

// New creates an empty replica.
func New(replica string) *Document {
	return &Document{
		replica: replica,
		regs:    make(map[string]register),
	}
}

// Replica returns the replica id.
func (d *Document) Replica() string {
	return d.replica
}

// Put stores a copy of s and returns the edit for other replicas.
func (d *Document) Put(s *shape.Shape) Op {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clock++
	op := Op{Type: OpPut, Stamp: Stamp{d.clock, d.replica}, ShapeID: s.ID, Shape: s.Clone()}
	d.applyLocked(op)
	return op
}

// Delete removes a shape and returns the edit for other replicas.
func (d *Document) Delete(id string) Op {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clock++
	op := Op{Type: OpDelete, Stamp: Stamp{d.clock, d.replica}, ShapeID: id}
	d.applyLocked(op)
	return op
}

// Apply merges edits from any replica. Edits older than the stored state
// of their shape are ignored, so Apply is idempotent and commutative.
func (d *Document) Apply(ops ...Op) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, op := range ops {
		d.applyLocked(op)
	}
}

func (d *Document) applyLocked(op Op) {
	d.clock = max(d.clock, op.Stamp.Counter)
	cur, ok := d.regs[op.ShapeID]
	if ok && cur.stamp.Compare(op.Stamp) >= 0 {
		return
	}
	var next *shape.Shape
	if op.Type == OpPut && op.Shape != nil {
		next = op.Shape.Clone()
		next.ID = op.ShapeID
	}
	if ok && cur.shape != nil {
		d.live--
	}
	if next != nil {
		d.live++
	}
	d.regs[op.ShapeID] = register{stamp: op.Stamp, shape: next}
}

// State returns the document as edits, tombstones included, ordered by
// shape id. Applying them to another replica merges this one into it.
func (d *Document) State() []Op {
	d.mu.RLock()
	defer d.mu.RUnlock()
	ids := slices.Sorted(maps.Keys(d.regs))
	ops := make([]Op, 0, len(ids))
	for _, id := range ids {
		r := d.regs[id]
		op := Op{Type: OpDelete, Stamp: r.stamp, ShapeID: id}
		if r.shape != nil {
			op.Type = OpPut
			op.Shape = r.shape
		}
		ops = append(ops, op)
	}
	return ops
}

// Merge merges other into d.
func (d *Document) Merge(other *Document) {
	d.Apply(other.State()...)
}

// Len returns the number of live shapes.
func (d *Document) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.live
}

// Get returns a live shape.
func (d *Document) Get(id string) (*shape.Shape, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.regs[id]
	if !ok || r.shape == nil {
		return nil, false
	}
	return r.shape, true
}

// Shapes implements shape.Source. The map is a fresh copy, so it can be
// kept as the previous state for Diff.
func (d *Document) Shapes() map[string]*shape.Shape {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]*shape.Shape, d.live)
	for id, r := range d.regs {
		if r.shape != nil {
			out[id] = r.shape
		}
	}
	return out
}

// OrderedShapesForLayer implements shape.Source.
func (d *Document) OrderedShapesForLayer(layerID string) []*shape.Shape {
	d.mu.RLock()
	defer d.mu.RUnlock()
	var out []*shape.Shape
	for _, r := range d.regs {
		if r.shape != nil && r.shape.LayerID == layerID {
			out = append(out, r.shape)
		}
	}
	shape.Sort(out)
	return out
}

// Snapshot returns the live shapes as a standalone source.
func (d *Document) Snapshot() shape.MapSource {
	return shape.MapSource(d.Shapes())
}

var _ shape.Source = (*Document)(nil)
