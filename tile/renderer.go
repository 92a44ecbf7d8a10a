package tile

import (
	"errors"
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"sync"

	"github.com/gogpu/ggtile"
	"github.com/gogpu/ggtile/shape"
	"github.com/gogpu/ggtile/snapshot"
	"github.com/gogpu/ggtile/surface"
	"github.com/gogpu/ggtile/tileindex"
)

// ErrNilSource is returned by New when no shape source is given.
var ErrNilSource = errors.New("tile: nil shape source")

// entry is one visible tile.
type entry struct {
	coord tileindex.Coord
	surf  surface.Surface

	// valid is set once the surface holds baked or restored pixels.
	valid bool
}

// Renderer is the tiled backend of one layer.
//
// Thread safety: Renderer is safe for concurrent use. A bake holds the
// renderer lock for its full duration, so mutations issued while a bake
// runs are applied after it.
type Renderer struct {
	mu sync.Mutex

	layerID  string
	source   shape.Source
	registry *shape.Registry
	provider surface.Provider

	tileSize   float64
	pixelRatio float64
	background color.Color
	adapter    surface.SnapshotAdapter
	store      *snapshot.Store
	identity   ggtile.RenderIdentity
	// fingerprint is identity.String(), the snapshot namespace.
	fingerprint string

	observer ggtile.Observer
	log      *slog.Logger

	viewport    ggtile.Rect
	hasViewport bool
	tiles       map[string]*entry
	// order lists visible keys in row-major order.
	order []string

	pending *tileindex.KeySet
	full    bool

	touched map[string]*tileindex.KeySet
	last    map[string][]string
	// unbounded holds shapes last seen without bounds.
	unbounded map[string]bool

	hidden bool
	closed bool

	identityBackground bool
}

// New creates the tiled backend for layerID. A nil registry selects the
// built-in painters and a nil provider the best provider registered with
// surface.Register.
func New(layerID string, source shape.Source, registry *shape.Registry, provider surface.Provider, opts ...Option) (*Renderer, error) {
	if source == nil {
		return nil, ErrNilSource
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if registry == nil {
		registry = shape.NewDefaultRegistry()
	}
	if provider == nil {
		p, err := surface.OpenProvider("")
		if err != nil {
			return nil, fmt.Errorf("tile: %w", err)
		}
		provider = p
	}
	if o.store == nil {
		o.store = snapshot.NewStore()
	}

	r := &Renderer{
		layerID:    layerID,
		source:     source,
		registry:   registry,
		provider:   provider,
		tileSize:   o.tileSize,
		pixelRatio: o.pixelRatio,
		background: o.background,
		adapter:    o.adapter,
		store:      o.store,
		observer:   o.observer,
		log:        ggtile.LoggerOr(o.log).With("layer", layerID),
		tiles:      make(map[string]*entry),
		pending:    tileindex.NewKeySet(),
		touched:    make(map[string]*tileindex.KeySet),
		last:       make(map[string][]string),
		unbounded:  make(map[string]bool),

		identityBackground: o.identityBackground,
	}
	if o.hasIdentity {
		if err := r.applyIdentity(o.identity); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// LayerID returns the layer the renderer paints.
func (r *Renderer) LayerID() string {
	return r.layerID
}

// TileSize returns the tile edge length in document units.
func (r *Renderer) TileSize() float64 {
	return r.tileSize
}

// Store returns the snapshot store.
func (r *Renderer) Store() *snapshot.Store {
	return r.store
}

// Viewport returns the current viewport and whether one was set.
func (r *Renderer) Viewport() (ggtile.Rect, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.viewport, r.hasViewport
}

// Visible returns the visible tile coordinates in row-major order.
func (r *Renderer) Visible() []tileindex.Coord {
	r.mu.Lock()
	defer r.mu.Unlock()

	coords := make([]tileindex.Coord, len(r.order))
	for i, key := range r.order {
		coords[i] = r.tiles[key].coord
	}
	return coords
}

// Pending returns the keys awaiting a bake, in scheduling order.
func (r *Renderer) Pending() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pending.Keys()
}

// FullInvalidationPending reports whether the next bake repaints every
// visible tile.
func (r *Renderer) FullInvalidationPending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.full
}

// NeedsBake reports whether a bake pass would repaint anything.
func (r *Renderer) NeedsBake() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.full {
		return len(r.order) > 0
	}
	for _, key := range r.pending.Keys() {
		if _, ok := r.tiles[key]; ok {
			return true
		}
	}
	return false
}

// SetHidden hides or shows the layer's live tiles in composited frames.
func (r *Renderer) SetHidden(hidden bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hidden = hidden
}

// Hidden reports whether the live tiles are hidden.
func (r *Renderer) Hidden() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hidden
}

// UpdateViewport makes the tiles overlapping viewport visible.
//
// Newly visible tiles get a surface from the provider. When a snapshot for
// the current identity exists and the tile is not awaiting a bake, it is
// restored and consumed; otherwise the tile is scheduled for a bake and
// stays blank until then. Tiles leaving the view are handed back to the
// provider, after their pixels were captured if the tile was clean.
func (r *Renderer) UpdateViewport(viewport ggtile.Rect) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.viewport = viewport
	r.hasViewport = true

	coords := tileindex.VisibleTiles(viewport, r.tileSize)
	next := make(map[string]*entry, len(coords))
	order := make([]string, 0, len(coords))
	var errs []error

	for _, c := range coords {
		key := c.Key()
		if e, ok := r.tiles[key]; ok {
			next[key] = e
			order = append(order, key)
			continue
		}
		e, err := r.acquire(c)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		r.restore(key, e)
		next[key] = e
		order = append(order, key)
	}

	for _, key := range r.order {
		if _, ok := next[key]; ok {
			continue
		}
		e := r.tiles[key]
		r.captureOnExit(key, e)
		r.provider.Release(e.coord, e.surf)
	}

	r.tiles = next
	r.order = order
	r.log.Debug("tile: viewport updated", "viewport", viewport, "tiles", len(order))
	return errors.Join(errs...)
}

// acquire gets a blank surface for c.
func (r *Renderer) acquire(c tileindex.Coord) (*entry, error) {
	px := r.pixelSize()
	s, err := r.provider.Acquire(c, px, px)
	if err != nil {
		return nil, fmt.Errorf("tile: acquire %s: %w", c.Key(), err)
	}
	if s == nil || s.Target() == nil {
		if s != nil {
			r.provider.Release(c, s)
		}
		return nil, fmt.Errorf("tile: acquire %s: %w", c.Key(), surface.ErrNoContext)
	}
	return &entry{coord: c, surf: s}, nil
}

// restore serves a newly visible tile from the snapshot store, or
// schedules it for a bake.
func (r *Renderer) restore(key string, e *entry) {
	if r.full || r.pending.Has(key) {
		return
	}
	if r.adapter != nil {
		snap, ok := r.store.Take(r.snapshotKey(key))
		if ok {
			err := r.adapter.Apply(e.surf, snap)
			if err == nil {
				e.valid = true
				return
			}
			r.log.Warn("tile: snapshot restore failed", "tile", key, "err", err)
		}
	}
	r.pending.Add(key)
}

// captureOnExit keeps the pixels of a clean tile so that it can be
// restored when it scrolls back into view.
func (r *Renderer) captureOnExit(key string, e *entry) {
	if r.adapter == nil || !e.valid || r.full || r.pending.Has(key) {
		return
	}
	sk := r.snapshotKey(key)
	if r.store.Has(sk) {
		return
	}
	snap, err := r.adapter.Capture(e.surf)
	if err != nil {
		r.log.Warn("tile: snapshot capture failed", "tile", key, "err", err)
		return
	}
	r.store.Put(sk, snap)
}

// UpdateTouchedTilesForShape records the tile footprint of s. The shape's
// touched set becomes the union of its previous and current footprint, so
// a moved shape invalidates both where it was and where it is.
//
// It returns false when s cannot be bounded now or could not be bounded
// when last seen; the caller must then escalate to ScheduleBakeForClear.
func (r *Renderer) UpdateTouchedTilesForShape(s *shape.Shape) bool {
	b, bounded := r.registry.Bounds(s)
	var keys []string
	if bounded {
		keys = tileindex.Keys(b, r.tileSize)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	wasUnbounded := r.unbounded[s.ID]
	set := r.touchedSet(s.ID)
	set.AddAll(r.last[s.ID])
	set.AddAll(keys)
	if len(keys) > 0 {
		r.last[s.ID] = keys
	} else {
		delete(r.last, s.ID)
	}
	if bounded {
		delete(r.unbounded, s.ID)
	} else {
		r.unbounded[s.ID] = true
	}
	return bounded && !wasUnbounded
}

// ForgetShape drops the diffing memory of a deleted shape. Its last known
// footprint is moved into the touched set so that the next
// ScheduleBakeForShape repaints where it was.
//
// It returns false when the shape was last seen without bounds; the caller
// must then escalate to ScheduleBakeForClear.
func (r *Renderer) ForgetShape(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if keys, ok := r.last[id]; ok {
		r.touchedSet(id).AddAll(keys)
		delete(r.last, id)
	}
	wasUnbounded := r.unbounded[id]
	delete(r.unbounded, id)
	return !wasUnbounded
}

// Knows reports whether the renderer remembers a footprint for shape id,
// from routing or from a bake that found it on the layer.
func (r *Renderer) Knows(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.last[id]
	return ok || r.unbounded[id]
}

// learn records the footprint of shapes the renderer has not tracked yet,
// so that deleting a shape that was never touched still repaints it.
func (r *Renderer) learn(shapes []*shape.Shape) {
	for _, s := range shapes {
		if _, ok := r.last[s.ID]; ok || r.unbounded[s.ID] {
			continue
		}
		b, ok := r.registry.Bounds(s)
		if !ok {
			r.unbounded[s.ID] = true
			continue
		}
		if keys := tileindex.Keys(b, r.tileSize); len(keys) > 0 {
			r.last[s.ID] = keys
		}
	}
}

func (r *Renderer) touchedSet(id string) *tileindex.KeySet {
	set, ok := r.touched[id]
	if !ok {
		set = tileindex.NewKeySet()
		r.touched[id] = set
	}
	return set
}

// ScheduleBakeForShape moves the touched tiles of a shape into the pending
// set and drops their snapshots. It is a no-op for untouched shapes.
func (r *Renderer) ScheduleBakeForShape(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduleShape(id)
}

// ScheduleBakeForShapes is ScheduleBakeForShape for several shapes.
func (r *Renderer) ScheduleBakeForShapes(ids []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range ids {
		r.scheduleShape(id)
	}
}

func (r *Renderer) scheduleShape(id string) {
	set, ok := r.touched[id]
	if !ok {
		return
	}
	delete(r.touched, id)
	r.scheduleKeys(set.Keys())
}

// ScheduleBakeForRect schedules every tile overlapping rect.
func (r *Renderer) ScheduleBakeForRect(rect ggtile.Rect) {
	keys := tileindex.Keys(rect, r.tileSize)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduleKeys(keys)
}

func (r *Renderer) scheduleKeys(keys []string) {
	for _, key := range keys {
		r.pending.Add(key)
		r.store.DeleteTile(key)
	}
}

// ScheduleBakeForClear marks every tile for a bake. Pending tiles are
// superseded and every snapshot is dropped. A bake already running is not
// affected; the flag applies to the next pass.
func (r *Renderer) ScheduleBakeForClear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scheduleClear()
}

func (r *Renderer) scheduleClear() {
	r.full = true
	r.pending.Clear()
	r.store.Clear()
}

// Identity returns the current render identity.
func (r *Renderer) Identity() ggtile.RenderIdentity {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.identity
}

// SetRenderIdentity switches to a new render identity. It is a no-op if
// the fingerprint is unchanged. Otherwise every snapshot is dropped, every
// visible tile is re-acquired and the next bake repaints all of them.
func (r *Renderer) SetRenderIdentity(id ggtile.RenderIdentity) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id.String() == r.fingerprint {
		return nil
	}
	if err := r.applyIdentity(id); err != nil {
		return err
	}
	r.scheduleClear()

	var errs []error
	order := r.order[:0]
	for _, key := range r.order {
		e := r.tiles[key]
		r.provider.Release(e.coord, e.surf)
		fresh, err := r.acquire(e.coord)
		if err != nil {
			delete(r.tiles, key)
			errs = append(errs, err)
			continue
		}
		r.tiles[key] = fresh
		order = append(order, key)
	}
	r.order = order
	r.log.Info("tile: render identity changed", "identity", r.fingerprint)
	return errors.Join(errs...)
}

// applyIdentity adopts id and the pixel ratio and background it carries.
func (r *Renderer) applyIdentity(id ggtile.RenderIdentity) error {
	if r.identityBackground && id.Background != "" {
		bg, err := surface.ParseColor(id.Background)
		if err != nil {
			return fmt.Errorf("tile: render identity background: %w", err)
		}
		r.background = bg
	}
	if id.PixelRatio > 0 {
		r.pixelRatio = id.PixelRatio
	}
	r.identity = id
	r.fingerprint = id.String()
	return nil
}

// Close releases every tile surface. The renderer must not be used
// afterwards.
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true
	for _, key := range r.order {
		e := r.tiles[key]
		r.provider.Release(e.coord, e.surf)
	}
	r.tiles = map[string]*entry{}
	r.order = nil
	r.pending.Clear()
	r.store.Clear()
	return nil
}

func (r *Renderer) snapshotKey(tileKey string) snapshot.Key {
	return snapshot.Key{Identity: r.fingerprint, Tile: tileKey}
}

// pixelSize returns the edge length of a tile surface in pixels.
func (r *Renderer) pixelSize() int {
	return max(1, int(math.Ceil(r.tileSize*r.pixelRatio)))
}
