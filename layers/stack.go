package layers

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/gogpu/ggtile"
	"github.com/gogpu/ggtile/bake"
	"github.com/gogpu/ggtile/diff"
	"github.com/gogpu/ggtile/hot"
	"github.com/gogpu/ggtile/shape"
	"github.com/gogpu/ggtile/surface"
	"github.com/gogpu/ggtile/tile"
	"github.com/gogpu/ggtile/tileindex"
)

// ErrUnknownLayer is returned for operations on a layer the stack does not hold.
var ErrUnknownLayer = errors.New("layers: unknown layer")

// Option configures a Stack.
type Option func(*options)

type options struct {
	tileSize    float64
	adapter     surface.SnapshotAdapter
	identity    ggtile.RenderIdentity
	observer    ggtile.Observer
	log         *slog.Logger
	onBakeError func(error)
	queue       *bake.Queue
}

// WithTileSize sets the tile edge length of drawing layers.
func WithTileSize(size float64) Option {
	return func(o *options) {
		if size > 0 {
			o.tileSize = size
		}
	}
}

// WithSnapshotAdapter sets the tile snapshot adapter. The default is
// surface.RGBAAdapter; nil disables tile snapshots.
func WithSnapshotAdapter(a surface.SnapshotAdapter) Option {
	return func(o *options) {
		o.adapter = a
	}
}

// WithRenderIdentity sets the initial render identity.
func WithRenderIdentity(id ggtile.RenderIdentity) Option {
	return func(o *options) {
		o.identity = id
	}
}

// WithObserver sets the observer passed to every backend.
func WithObserver(obs ggtile.Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithLogger sets the stack logger. The shared ggtile logger is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithBakeErrorHandler sets the function that receives bake failures.
// It is ignored when WithQueue supplies the queue.
func WithBakeErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.onBakeError = fn
	}
}

// WithQueue makes the stack enqueue its bakes on q instead of a private
// queue. The stack does not close q.
func WithQueue(q *bake.Queue) Option {
	return func(o *options) {
		o.queue = q
	}
}

// Stack holds one backend per layer plus the hot overlay.
//
// Thread safety: Stack is safe for concurrent use. Bakes run on the bake
// queue worker.
type Stack struct {
	mu sync.Mutex

	source   shape.Source
	registry *shape.Registry
	provider surface.Provider

	tileSize float64
	adapter  surface.SnapshotAdapter
	identity ggtile.RenderIdentity
	observer ggtile.Observer
	log      *slog.Logger

	queue     *bake.Queue
	ownsQueue bool

	layers   []Layer
	backends map[string]Backend
	active   string

	// shapeLayer remembers the layer of every routed shape, since a
	// deleted shape has no document entry to ask. Shapes that were baked
	// but never routed are found through Backend.Knows.
	shapeLayer map[string]string

	viewport    ggtile.Rect
	hasViewport bool
	scale       float64
	background  color.Color

	overlay   *hot.Layer
	drafting  bool
	hotActive bool
}

// New creates an empty stack. A nil registry selects the built-in painters
// and a nil provider the best registered surface provider, shared by all
// layers.
func New(source shape.Source, registry *shape.Registry, provider surface.Provider, opts ...Option) (*Stack, error) {
	if source == nil {
		return nil, tile.ErrNilSource
	}
	o := options{
		tileSize: tileindex.DefaultTileSize,
		adapter:  surface.RGBAAdapter{},
		observer: ggtile.NopObserver{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if registry == nil {
		registry = shape.NewDefaultRegistry()
	}
	if provider == nil {
		p, err := surface.OpenProvider("")
		if err != nil {
			return nil, fmt.Errorf("layers: %w", err)
		}
		provider = p
	}

	s := &Stack{
		source:     source,
		registry:   registry,
		provider:   provider,
		tileSize:   o.tileSize,
		adapter:    o.adapter,
		observer:   o.observer,
		log:        ggtile.LoggerOr(o.log),
		backends:   make(map[string]Backend),
		shapeLayer: make(map[string]string),
		scale:      1,
	}
	if err := s.applyIdentity(o.identity); err != nil {
		return nil, err
	}
	s.overlay = hot.New(registry, 1, 1, hot.WithLogger(s.log))

	s.queue = o.queue
	if s.queue == nil {
		s.queue = bake.NewQueue(bake.WithErrorHandler(o.onBakeError), bake.WithLogger(s.log))
		s.ownsQueue = true
	}
	return s, nil
}

// Queue returns the bake queue.
func (s *Stack) Queue() *bake.Queue {
	return s.queue
}

// Hot returns the hot overlay.
func (s *Stack) Hot() *hot.Layer {
	return s.overlay
}

// SetLayers replaces the layer list. Backends of removed layers are
// closed. A layer whose kind is unchanged keeps its backend; one whose kind
// changed gets a new backend, which is fully invalidated.
func (s *Stack) SetLayers(layers []Layer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]Layer, len(layers))
	copy(next, layers)
	sortLayers(next)

	keep := make(map[string]Layer, len(next))
	for _, l := range next {
		keep[l.ID] = l
	}
	var errs []error
	for id, b := range s.backends {
		l, ok := keep[id]
		if ok && l.tiled() == (b.Kind() == KindDrawing) {
			continue
		}
		if err := b.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(s.backends, id)
	}

	for _, l := range next {
		b, ok := s.backends[l.ID]
		if !ok {
			nb, err := s.newBackend(l)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			s.backends[l.ID] = nb
			b = nb
			s.log.Info("layers: backend created", "layer", l.ID, "kind", l.Kind)
		}
		b.SetHidden(s.hiddenLocked(l))
	}
	s.layers = next
	return errors.Join(errs...)
}

func (s *Stack) newBackend(l Layer) (Backend, error) {
	var b Backend
	if l.tiled() {
		r, err := tile.New(l.ID, s.source, s.registry, s.provider,
			tile.WithTileSize(s.tileSize),
			tile.WithSnapshotAdapter(s.adapter),
			tile.WithRenderIdentity(s.identity),
			tile.WithIdentityBackground(false),
			tile.WithObserver(s.observer),
			tile.WithLogger(s.log),
		)
		if err != nil {
			return nil, fmt.Errorf("layers: layer %s: %w", l.ID, err)
		}
		b = tileBackend{r}
	} else {
		c, err := NewCanvasBackend(l.ID, s.source, s.registry, s.provider)
		if err != nil {
			return nil, err
		}
		c.observer = s.observer
		c.log = s.log.With("layer", l.ID)
		b = c
	}
	if s.hasViewport {
		if err := b.UpdateViewport(s.viewport, s.scale); err != nil {
			_ = b.Close()
			return nil, err
		}
	}
	b.Invalidate()
	return b, nil
}

func (s *Stack) hiddenLocked(l Layer) bool {
	return !l.Visible || (s.drafting && l.ID == s.active)
}

// SetActiveLayer selects the layer the hot overlay sits above.
func (s *Stack) SetActiveLayer(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = id
}

// ActiveLayer returns the active layer id.
func (s *Stack) ActiveLayer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Layers returns the layers in z-order.
func (s *Stack) Layers() []Layer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Layer, len(s.layers))
	copy(out, s.layers)
	return out
}

// Backend returns the backend of a layer.
func (s *Stack) Backend(id string) (Backend, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.backends[id]
	return b, ok
}

// Order returns the compositing order, bottom to top, including HotSlot.
func (s *Stack) Order() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orderLocked()
}

func (s *Stack) orderLocked() []string {
	ids := make([]string, 0, len(s.layers))
	for _, l := range s.layers {
		if _, ok := s.backends[l.ID]; ok {
			ids = append(ids, l.ID)
		}
	}
	return PlanOrder(ids, s.active)
}

// UpdateViewport moves every backend and the overlay to viewport.
func (s *Stack) UpdateViewport(viewport ggtile.Rect) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.viewport = viewport
	s.hasViewport = true
	s.overlay.Resize(s.pixelSize())
	s.overlay.SetViewport(viewport, s.scale)

	var errs []error
	for _, l := range s.layers {
		if b, ok := s.backends[l.ID]; ok {
			if err := b.UpdateViewport(viewport, s.scale); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// SetRenderIdentity passes a new identity to every backend.
func (s *Stack) SetRenderIdentity(id ggtile.RenderIdentity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id.String() == s.identity.String() {
		return nil
	}
	if err := s.applyIdentity(id); err != nil {
		return err
	}
	var errs []error
	for _, l := range s.layers {
		b, ok := s.backends[l.ID]
		if !ok {
			continue
		}
		if err := b.SetRenderIdentity(id); err != nil {
			errs = append(errs, err)
		}
		if s.hasViewport {
			if err := b.UpdateViewport(s.viewport, s.scale); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if s.hasViewport {
		s.overlay.Resize(s.pixelSize())
		s.overlay.SetViewport(s.viewport, s.scale)
	}
	return errors.Join(errs...)
}

func (s *Stack) applyIdentity(id ggtile.RenderIdentity) error {
	bg, err := surface.ParseColor(id.Background)
	if err != nil {
		return fmt.Errorf("layers: render identity background: %w", err)
	}
	s.identity = id
	s.background = bg
	if id.PixelRatio > 0 {
		s.scale = id.PixelRatio
	}
	return nil
}

func (s *Stack) pixelSize() (int, int) {
	w := max(1, int(math.Ceil(s.viewport.Width()*s.scale)))
	h := max(1, int(math.Ceil(s.viewport.Height()*s.scale)))
	return w, h
}

// RouteDirtyShapes invalidates dirty and deleted shapes on the layers they
// belong to, then enqueues a bake. A shape that moved between layers is
// treated as deleted from its previous layer.
//
// The previous layer of a shape is the one it was last routed to or, for a
// shape never routed, the backend that painted it in a bake. A deleted
// shape no backend knows repaints every layer.
func (s *Stack) RouteDirtyShapes(dirty, deleted []string) *bake.Job {
	s.mu.Lock()
	docShapes := s.source.Shapes()

	type bucket struct {
		dirty   []*shape.Shape
		deleted []string
	}
	buckets := make(map[string]*bucket)
	var order []string
	at := func(layerID string) *bucket {
		b, ok := buckets[layerID]
		if !ok {
			b = &bucket{}
			buckets[layerID] = b
			order = append(order, layerID)
		}
		return b
	}
	var lost []string
	drop := func(id string) {
		layerID, ok := s.ownerLocked(id, "")
		if !ok {
			lost = append(lost, id)
			return
		}
		at(layerID).deleted = append(at(layerID).deleted, id)
		delete(s.shapeLayer, id)
	}

	for _, id := range dirty {
		sh, ok := docShapes[id]
		if !ok {
			drop(id)
			continue
		}
		if prev, ok := s.ownerLocked(id, sh.LayerID); ok && prev != sh.LayerID {
			at(prev).deleted = append(at(prev).deleted, id)
		}
		s.shapeLayer[id] = sh.LayerID
		at(sh.LayerID).dirty = append(at(sh.LayerID).dirty, sh)
	}
	for _, id := range deleted {
		drop(id)
	}

	for _, layerID := range order {
		b, ok := s.backends[layerID]
		if !ok {
			continue
		}
		bk := buckets[layerID]
		b.RouteShapes(bk.dirty, bk.deleted)
	}
	if len(lost) > 0 {
		s.log.Debug("layers: deleted shapes of unknown layer, repainting all", "shapes", lost)
		for _, b := range s.backends {
			b.Invalidate()
		}
	}
	s.mu.Unlock()

	return s.Bake()
}

// ownerLocked returns the layer shape id was last routed to. Failing that
// it asks the backends, bottom to top, skipping layer skip.
func (s *Stack) ownerLocked(id, skip string) (string, bool) {
	if layerID, ok := s.shapeLayer[id]; ok {
		return layerID, true
	}
	for _, l := range s.layers {
		if l.ID == skip {
			continue
		}
		if b, ok := s.backends[l.ID]; ok && b.Knows(id) {
			return l.ID, true
		}
	}
	return "", false
}

// InvalidateLayer marks a whole layer for a bake.
func (s *Stack) InvalidateLayer(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.backends[id]; ok {
		b.Invalidate()
	}
}

// InvalidateAll marks every layer for a bake.
func (s *Stack) InvalidateAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range s.backends {
		b.Invalidate()
	}
}

// RouteRegionChanges invalidates the previous and next footprint of each
// change on layerID.
func (s *Stack) RouteRegionChanges(layerID string, changes []diff.RegionChange) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.backends[layerID]
	for _, c := range changes {
		if c.Next != nil {
			s.shapeLayer[c.ShapeID] = layerID
		} else if s.shapeLayer[c.ShapeID] == layerID {
			delete(s.shapeLayer, c.ShapeID)
		}
		if !ok {
			continue
		}
		if c.Prev != nil {
			b.InvalidateRect(*c.Prev)
		}
		if c.Next != nil {
			b.InvalidateRect(*c.Next)
		}
	}
}

// RouteRects invalidates document regions on layerID.
func (s *Stack) RouteRects(layerID string, rects []ggtile.Rect) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.backends[layerID]
	if !ok {
		return
	}
	for _, r := range rects {
		b.InvalidateRect(r)
	}
}

// Route plans a document diff and applies it to the stack.
func (s *Stack) Route(in diff.Input) diff.Plan {
	return diff.Route(in, s.registry.Bounds, s)
}

// Bake enqueues a pass that bakes every backend in z-order.
func (s *Stack) Bake() *bake.Job {
	return s.queue.Enqueue("layers", func(ctx context.Context) error {
		s.mu.Lock()
		backends := make([]Backend, 0, len(s.layers))
		for _, l := range s.layers {
			if b, ok := s.backends[l.ID]; ok {
				backends = append(backends, b)
			}
		}
		s.mu.Unlock()

		var errs []error
		for _, b := range backends {
			if err := b.Bake(ctx); err != nil {
				errs = append(errs, fmt.Errorf("layer %s: %w", b.LayerID(), err))
			}
		}
		return errors.Join(errs...)
	})
}

// BeginActiveLayerDraftSession hides the active layer, waits for queued
// bakes, and captures the active layer alone as the overlay backdrop. The
// overlay shows the backdrop from then on, so a Compose before the first
// RenderDrafts still shows the active layer.
//
// If ctx ends before the capture lands the session is abandoned and the
// active layer shown again. A capture error leaves the session open with
// whatever was captured; the caller ends it with EndActiveLayerDraftSession.
func (s *Stack) BeginActiveLayerDraftSession(ctx context.Context) (*image.RGBA, error) {
	s.mu.Lock()
	b, ok := s.backends[s.active]
	if !ok {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %q", ErrUnknownLayer, s.active)
	}
	s.drafting = true
	b.SetHidden(true)
	scale := s.scale
	s.mu.Unlock()

	var backdrop *image.RGBA
	job := s.queue.Enqueue("backdrop", func(ctx context.Context) error {
		start := time.Now()
		img, err := b.Capture(ctx, scale)
		backdrop = img
		s.observer.BackdropCaptured(b.LayerID(), time.Since(start))
		return err
	})
	err := job.Wait(ctx)
	select {
	case <-job.Done():
	default:
		// ctx ended first; the job still owns backdrop.
		s.EndActiveLayerDraftSession()
		return nil, err
	}

	s.overlay.SetBackdrop(backdrop)
	renderErr := s.overlay.RenderDrafts(nil)
	s.mu.Lock()
	s.hotActive = true
	s.mu.Unlock()
	return backdrop, errors.Join(err, renderErr)
}

// EndActiveLayerDraftSession shows the active layer again and discards the
// backdrop.
func (s *Stack) EndActiveLayerDraftSession() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.drafting = false
	s.hotActive = false
	for _, l := range s.layers {
		if b, ok := s.backends[l.ID]; ok {
			b.SetHidden(s.hiddenLocked(l))
		}
	}
	s.overlay.SetBackdrop(nil)
}

// Drafting reports whether a draft session is open.
func (s *Stack) Drafting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drafting
}

// RenderDrafts repaints the overlay with drafts.
func (s *Stack) RenderDrafts(drafts []*shape.Shape) error {
	s.mu.Lock()
	s.hotActive = len(drafts) > 0 || s.drafting
	s.mu.Unlock()
	return s.overlay.RenderDrafts(drafts)
}

// Compose waits for queued bakes, then draws the background, every visible
// layer and the overlay into dst in compositing order. dst covers the
// viewport at the identity pixel ratio.
func (s *Stack) Compose(ctx context.Context, dst draw.Image) error {
	if err := s.queue.Wait(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var src image.Image = image.Transparent
	if s.background != nil {
		src = image.NewUniform(s.background)
	}
	draw.Draw(dst, dst.Bounds(), src, image.Point{}, draw.Src)

	for _, id := range s.orderLocked() {
		if id == HotSlot {
			if s.hotActive {
				s.overlay.Composite(dst)
			}
			continue
		}
		s.backends[id].Composite(dst, s.viewport, s.scale)
	}
	return nil
}

// Close stops the private bake queue and releases every backend.
func (s *Stack) Close() error {
	var errs []error
	if s.ownsQueue {
		errs = append(errs, s.queue.Close())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, b := range s.backends {
		errs = append(errs, b.Close())
		delete(s.backends, id)
	}
	return errors.Join(errs...)
}

var _ diff.Target = (*Stack)(nil)
