package session

import (
	"log/slog"
	"slices"

	"github.com/gogpu/ggtile"
	"github.com/gogpu/ggtile/bake"
	"github.com/gogpu/ggtile/surface"
	"github.com/gogpu/ggtile/tileindex"
)

// Option configures a Session.
type Option func(*options)

type options struct {
	layerID     string
	layerOrder  []string
	tileSize    float64
	adapter     surface.SnapshotAdapter
	identity    ggtile.RenderIdentity
	observer    ggtile.Observer
	log         *slog.Logger
	onBakeError func(error)
	queue       *bake.Queue
}

func defaultOptions() options {
	return options{
		tileSize: tileindex.DefaultTileSize,
		adapter:  surface.RGBAAdapter{},
		observer: ggtile.NopObserver{},
	}
}

// WithLayer restricts the session to the shapes of one layer. By default
// every shape of the document is painted, ordered by z-index alone unless
// WithLayerOrder is given.
func WithLayer(id string) Option {
	return func(o *options) {
		o.layerID = id
	}
}

// WithLayerOrder sets the layer z-order, bottom first, used when the session
// paints every layer. Shapes then paint layer by layer and by z-index within
// a layer; layers not listed paint on top. It has no effect with WithLayer.
func WithLayerOrder(ids ...string) Option {
	return func(o *options) {
		o.layerOrder = slices.Clone(ids)
	}
}

// WithTileSize sets the tile edge length in document units.
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

// WithObserver sets the observer that receives bake and backdrop timings.
func WithObserver(obs ggtile.Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithLogger sets the session logger. The shared ggtile logger is used
// otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithBakeErrorHandler sets the function that receives bake and backdrop
// failures. The queue keeps running after a failure either way.
func WithBakeErrorHandler(fn func(error)) Option {
	return func(o *options) {
		o.onBakeError = fn
	}
}

// WithQueue makes the session enqueue its work on q instead of a private
// queue. The session does not close q, and WithBakeErrorHandler is ignored.
func WithQueue(q *bake.Queue) Option {
	return func(o *options) {
		o.queue = q
	}
}
