package session

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"log/slog"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/ggtile"
	"github.com/gogpu/ggtile/bake"
	"github.com/gogpu/ggtile/hot"
	"github.com/gogpu/ggtile/shape"
	"github.com/gogpu/ggtile/surface"
	"github.com/gogpu/ggtile/tile"
)

// State is the drafting state of a Session.
type State int

const (
	// Idle means no drafts are shown; tiles are composited directly.
	Idle State = iota
	// CapturingBackdrop means drafts arrived and the tile backdrop is
	// being captured. Nothing new is drawn until it lands.
	CapturingBackdrop
	// Drafting means the overlay paints drafts over the backdrop.
	Drafting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case CapturingBackdrop:
		return "capturing-backdrop"
	case Drafting:
		return "drafting"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// DirtyState lists the shape ids that changed or disappeared since the
// previous frame.
type DirtyState struct {
	Dirty   map[string]struct{}
	Deleted map[string]struct{}
}

// NewDirtyState builds a DirtyState from id lists.
func NewDirtyState(dirty, deleted []string) DirtyState {
	d := DirtyState{
		Dirty:   make(map[string]struct{}, len(dirty)),
		Deleted: make(map[string]struct{}, len(deleted)),
	}
	for _, id := range dirty {
		d.Dirty[id] = struct{}{}
	}
	for _, id := range deleted {
		d.Deleted[id] = struct{}{}
	}
	return d
}

// Empty reports whether nothing changed.
func (d DirtyState) Empty() bool {
	return len(d.Dirty) == 0 && len(d.Deleted) == 0
}

// Frame is the input of one Render call.
type Frame struct {
	// Drafts are the in-progress shapes painted on the overlay.
	Drafts []*shape.Shape
	// Diff lists the settled shapes that changed.
	Diff DirtyState
	// ShapeCount is the number of settled shapes in the document.
	ShapeCount int
}

// Session drives one tile renderer and one hot overlay.
//
// Thread safety: Session is safe for concurrent use. Bakes and backdrop
// captures run on the queue worker.
type Session struct {
	mu sync.Mutex

	source   shape.Source
	renderer *tile.Renderer
	overlay  *hot.Layer
	observer ggtile.Observer
	log      *slog.Logger

	queue     *bake.Queue
	ownsQueue bool

	state    State
	drafts   []*shape.Shape
	backdrop *image.RGBA
	// gen is bumped when drafting ends so a capture landing afterwards is
	// discarded.
	gen uint64

	// kinds remembers shape types so a deleted clear shape is recognized.
	kinds     map[string]string
	lastCount int

	viewport    ggtile.Rect
	hasViewport bool

	capturing atomic.Bool
	captures  atomic.Int64
}

// New creates a session over source. A nil registry selects the built-in
// painters and a nil provider the best registered surface provider.
func New(source shape.Source, registry *shape.Registry, provider surface.Provider, opts ...Option) (*Session, error) {
	if source == nil {
		return nil, tile.ErrNilSource
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if registry == nil {
		registry = shape.NewDefaultRegistry()
	}
	log := ggtile.LoggerOr(o.log)

	var layerSource shape.Source = source
	if o.layerID == "" {
		layerSource = newFlatSource(source, o.layerOrder)
	}
	r, err := tile.New(o.layerID, layerSource, registry, provider,
		tile.WithTileSize(o.tileSize),
		tile.WithSnapshotAdapter(o.adapter),
		tile.WithRenderIdentity(o.identity),
		tile.WithObserver(o.observer),
		tile.WithLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	s := &Session{
		source:   source,
		renderer: r,
		overlay:  hot.New(registry, 1, 1, hot.WithLogger(log)),
		observer: o.observer,
		log:      log,
		kinds:    make(map[string]string),
	}
	s.queue = o.queue
	if s.queue == nil {
		s.queue = bake.NewQueue(bake.WithErrorHandler(o.onBakeError), bake.WithLogger(log))
		s.ownsQueue = true
	}
	return s, nil
}

// Renderer returns the tile renderer.
func (s *Session) Renderer() *tile.Renderer {
	return s.renderer
}

// Hot returns the overlay.
func (s *Session) Hot() *hot.Layer {
	return s.overlay
}

// Queue returns the queue bakes and captures run on.
func (s *Session) Queue() *bake.Queue {
	return s.queue
}

// State returns the drafting state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CaptureCount returns how many backdrop captures have run.
func (s *Session) CaptureCount() int {
	return int(s.captures.Load())
}

// UpdateViewport moves the renderer and the overlay to viewport.
func (s *Session) UpdateViewport(viewport ggtile.Rect) error {
	if err := s.renderer.UpdateViewport(viewport); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewport = viewport
	s.hasViewport = true
	s.resizeOverlay()
	return nil
}

// SetRenderIdentity passes a new identity to the renderer. The overlay
// follows the identity pixel ratio.
func (s *Session) SetRenderIdentity(id ggtile.RenderIdentity) error {
	if err := s.renderer.SetRenderIdentity(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resizeOverlay()
	return nil
}

func (s *Session) resizeOverlay() {
	if !s.hasViewport {
		return
	}
	ratio := s.pixelRatio()
	w := max(1, int(math.Ceil(s.viewport.Width()*ratio)))
	h := max(1, int(math.Ceil(s.viewport.Height()*ratio)))
	s.overlay.Resize(w, h)
	s.overlay.SetViewport(s.viewport, ratio)
}

func (s *Session) pixelRatio() float64 {
	if r := s.renderer.Identity().PixelRatio; r > 0 {
		return r
	}
	return 1
}

// Render processes one frame.
//
// Changed shapes are scheduled for a bake, which is enqueued. A clear shape
// among the changed or deleted ones, or a document that just became empty,
// schedules a full repaint instead of per-shape regions. A shape whose
// footprint cannot be computed does the same.
//
// When drafts appear the first time, a backdrop capture is enqueued and the
// frame draws nothing new; further frames are coalesced until the capture
// lands. While drafting every frame repaints the overlay. When the drafts
// disappear the backdrop is dropped and the tiles show again.
func (s *Session) Render(ctx context.Context, f Frame) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.route(f.Diff, f.ShapeCount)
	if s.renderer.NeedsBake() {
		s.queue.Enqueue("bake", s.renderer.BakePendingTiles)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(f.Drafts) == 0 {
		if s.state != Idle {
			s.endDraftingLocked()
		}
		return nil
	}
	s.drafts = slices.Clone(f.Drafts)

	switch s.state {
	case Idle:
		s.startCaptureLocked()
		return nil
	case CapturingBackdrop:
		return nil
	default:
		return s.overlay.RenderDrafts(s.drafts)
	}
}

// route schedules bakes for one frame's changes.
func (s *Session) route(d DirtyState, count int) {
	docShapes := s.source.Shapes()

	s.mu.Lock()
	escalate := s.lastCount > 0 && count == 0
	s.lastCount = count

	dirty := sortedKeys(d.Dirty)
	deleted := sortedKeys(d.Deleted)
	shapes := make([]*shape.Shape, 0, len(dirty))
	for _, id := range dirty {
		sh, ok := docShapes[id]
		if !ok {
			deleted = append(deleted, id)
			continue
		}
		if sh.Type == shape.TypeClear || s.kinds[id] == shape.TypeClear {
			escalate = true
		}
		s.kinds[id] = sh.Type
		shapes = append(shapes, sh)
	}
	for _, id := range deleted {
		if s.kinds[id] == shape.TypeClear {
			escalate = true
		}
		delete(s.kinds, id)
	}
	s.mu.Unlock()

	if len(shapes)+len(deleted) == 0 && !escalate {
		return
	}

	ids := make([]string, 0, len(shapes)+len(deleted))
	for _, sh := range shapes {
		if !s.renderer.UpdateTouchedTilesForShape(sh) {
			escalate = true
		}
		ids = append(ids, sh.ID)
	}
	for _, id := range deleted {
		if !s.renderer.ForgetShape(id) {
			escalate = true
		}
		ids = append(ids, id)
	}

	if escalate {
		// Drain the touched sets; the full repaint covers them.
		s.renderer.ScheduleBakeForShapes(ids)
		s.renderer.ScheduleBakeForClear()
		s.log.Debug("session: full repaint scheduled", "shapes", len(ids))
		return
	}
	s.renderer.ScheduleBakeForShapes(ids)
}

// startCaptureLocked enqueues a backdrop capture unless one is in flight.
func (s *Session) startCaptureLocked() {
	s.state = CapturingBackdrop
	if !s.capturing.CompareAndSwap(false, true) {
		return
	}
	gen := s.gen
	job := s.queue.Enqueue("backdrop", func(ctx context.Context) error {
		start := time.Now()
		img, err := s.renderer.CaptureViewportSnapshot(ctx, 0)
		s.captures.Add(1)
		s.observer.BackdropCaptured(s.renderer.LayerID(), time.Since(start))

		s.mu.Lock()
		defer s.mu.Unlock()
		s.capturing.Store(false)
		if gen != s.gen {
			s.log.Debug("session: stale backdrop dropped")
			if s.state == CapturingBackdrop {
				// A new draft session started while this one was in flight.
				s.startCaptureLocked()
			}
			return err
		}
		s.backdrop = img
		s.overlay.SetBackdrop(img)
		s.renderer.SetHidden(true)
		s.state = Drafting
		return errors.Join(err, s.overlay.RenderDrafts(s.drafts))
	})
	select {
	case <-job.Done():
		// The queue is closed; the job never ran.
		s.capturing.Store(false)
	default:
	}
}

func (s *Session) endDraftingLocked() {
	s.gen++
	s.state = Idle
	s.drafts = nil
	s.backdrop = nil
	s.overlay.SetBackdrop(nil)
	s.renderer.SetHidden(false)
}

// Wait blocks until every queued bake and capture has finished.
func (s *Session) Wait(ctx context.Context) error {
	for {
		if err := s.queue.Wait(ctx); err != nil {
			return err
		}
		// A capture landing stale may have queued its successor.
		if !s.capturing.Load() {
			return nil
		}
	}
}

// Compose waits for queued work, then draws the tiles and, while drafting,
// the overlay into dst. dst covers the viewport at the identity pixel ratio.
func (s *Session) Compose(ctx context.Context, dst draw.Image) error {
	if err := s.Wait(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	draw.Draw(dst, dst.Bounds(), image.Transparent, image.Point{}, draw.Src)
	if s.hasViewport {
		s.renderer.Composite(dst, s.viewport, s.pixelRatio())
	}
	if s.state == Drafting {
		s.overlay.Composite(dst)
	}
	return nil
}

// Close stops the private queue and releases the tiles.
func (s *Session) Close() error {
	var errs []error
	if s.ownsQueue {
		errs = append(errs, s.queue.Close())
	}
	errs = append(errs, s.renderer.Close())
	return errors.Join(errs...)
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}
