package tile

import (
	"image/color"
	"log/slog"

	"github.com/gogpu/ggtile"
	"github.com/gogpu/ggtile/snapshot"
	"github.com/gogpu/ggtile/surface"
	"github.com/gogpu/ggtile/tileindex"
)

// Option configures a Renderer during creation.
type Option func(*options)

type options struct {
	tileSize    float64
	background  color.Color
	pixelRatio  float64
	adapter     surface.SnapshotAdapter
	store       *snapshot.Store
	identity    ggtile.RenderIdentity
	hasIdentity bool
	observer    ggtile.Observer
	log         *slog.Logger

	identityBackground bool
}

func defaultOptions() options {
	return options{
		tileSize:   tileindex.DefaultTileSize,
		pixelRatio: 1,
		observer:   ggtile.NopObserver{},

		identityBackground: true,
	}
}

// WithTileSize sets the tile edge length in document units.
// Non-positive sizes are ignored.
func WithTileSize(size float64) Option {
	return func(o *options) {
		if size > 0 {
			o.tileSize = size
		}
	}
}

// WithBackground sets the color every tile is cleared to before a bake.
// The default is transparent. A render identity with a non-empty
// Background overrides it.
func WithBackground(c color.Color) Option {
	return func(o *options) {
		o.background = c
	}
}

// WithIdentityBackground controls whether a render identity's Background
// becomes the tile clear color. Layers stacked over others disable it and
// leave the background to the compositor.
func WithIdentityBackground(enabled bool) Option {
	return func(o *options) {
		o.identityBackground = enabled
	}
}

// WithPixelRatio sets the number of surface pixels per document unit.
// A render identity with a positive PixelRatio overrides it.
func WithPixelRatio(ratio float64) Option {
	return func(o *options) {
		if ratio > 0 {
			o.pixelRatio = ratio
		}
	}
}

// WithSnapshotAdapter enables snapshot capture after bakes and restore on
// re-entry into view. Without an adapter every newly visible tile is baked.
func WithSnapshotAdapter(a surface.SnapshotAdapter) Option {
	return func(o *options) {
		o.adapter = a
	}
}

// WithSnapshotStore sets the store snapshots are kept in. The store is
// owned by the renderer afterwards and must not be shared with another one.
func WithSnapshotStore(s *snapshot.Store) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithRenderIdentity sets the initial render identity.
func WithRenderIdentity(id ggtile.RenderIdentity) Option {
	return func(o *options) {
		o.identity = id
		o.hasIdentity = true
	}
}

// WithObserver sets the observer notified after every bake pass.
func WithObserver(obs ggtile.Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observer = obs
		}
	}
}

// WithLogger sets the renderer logger. The shared ggtile logger is used otherwise.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}
