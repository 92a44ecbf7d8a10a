// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package present

import (
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"

	"github.com/gogpu/ggtile"
)

// Common errors returned by Presenter operations.
var (
	// ErrClosed is returned when operations are attempted on a closed presenter.
	ErrClosed = errors.New("present: presenter is closed")

	// ErrNilProvider is returned when a nil DeviceProvider is passed.
	ErrNilProvider = errors.New("present: nil DeviceProvider")

	// ErrNoFrame is returned when drawing before any frame was uploaded.
	ErrNoFrame = errors.New("present: no frame uploaded")

	// ErrUnsupportedFormat is returned for texture formats other than
	// 8-bit RGBA and BGRA.
	ErrUnsupportedFormat = errors.New("present: unsupported texture format")

	// ErrNoTextureCreator is returned when the draw context cannot create
	// textures.
	ErrNoTextureCreator = errors.New("present: draw context has no texture creator")

	// ErrNotTexture is returned when the created texture is not drawable.
	ErrNotTexture = errors.New("present: created texture is not a gpucontext.Texture")
)

// Option configures a Presenter.
type Option func(*Presenter)

// WithFormat sets the byte layout handed to the host's texture creator.
// The default is RGBA8, which is what gpucontext.TextureCreator takes
// regardless of the swapchain format. BGRA8 is only for hosts whose creator
// expects BGRA bytes.
func WithFormat(f gputypes.TextureFormat) Option {
	return func(p *Presenter) {
		p.format = f
	}
}

// WithLogger sets the presenter logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Presenter) {
		p.log = l
	}
}

// textureDestroyer matches the Destroy method of host textures.
type textureDestroyer interface {
	Destroy()
}

// target is the part of the host draw context a Presenter uses.
type target interface {
	create(width, height int, data []byte) (any, error)
	update(tex any, data []byte) error
	draw(tex any, x, y float32) error
}

// Presenter moves composed frames to the GPU.
type Presenter struct {
	provider gpucontext.DeviceProvider
	format   gputypes.TextureFormat
	log      *slog.Logger

	texture    any
	oldTexture any // replaced texture, destroyed after the next creation

	data          []byte
	width, height int
	uploaded      bool
	dirty         bool
	sizeChanged   bool
	closed        bool
}

// New creates a presenter for provider. The provider's surface format does
// not affect uploads; the host converts RGBA textures when it draws them.
func New(provider gpucontext.DeviceProvider, opts ...Option) (*Presenter, error) {
	if provider == nil {
		return nil, ErrNilProvider
	}
	p := &Presenter{
		provider: provider,
		format:   gputypes.TextureFormatRGBA8Unorm,
	}
	for _, opt := range opts {
		opt(p)
	}
	if !supported(p.format) {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, p.format)
	}
	p.log = ggtile.LoggerOr(p.log)
	return p, nil
}

func supported(f gputypes.TextureFormat) bool {
	switch f {
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatBGRA8Unorm:
		return true
	}
	return false
}

func swapsRB(f gputypes.TextureFormat) bool {
	return f == gputypes.TextureFormatBGRA8Unorm
}

// Format returns the texture layout frames are converted to.
func (p *Presenter) Format() gputypes.TextureFormat {
	return p.format
}

// Size returns the size of the last uploaded frame.
func (p *Presenter) Size() (width, height int) {
	return p.width, p.height
}

// IsDirty reports whether an uploaded frame has not reached the GPU yet.
func (p *Presenter) IsDirty() bool {
	return p.dirty
}

// Texture returns the current host texture, or nil before the first draw.
func (p *Presenter) Texture() any {
	return p.texture
}

// Upload copies img into the staging buffer in the texture layout. A size
// change makes the next draw create a new texture.
func (p *Presenter) Upload(img *image.RGBA) error {
	if p.closed {
		return ErrClosed
	}
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w != p.width || h != p.height {
		p.width, p.height = w, h
		p.sizeChanged = p.texture != nil
	}
	n := w * h * 4
	if cap(p.data) < n {
		p.data = make([]byte, n)
	}
	p.data = p.data[:n]
	convert(p.data, img, swapsRB(p.format))
	p.uploaded = true
	p.dirty = true
	return nil
}

// convert packs img rows into dst, swapping red and blue when swap is set.
func convert(dst []byte, img *image.RGBA, swap bool) {
	b := img.Bounds()
	row := b.Dx() * 4
	for y := 0; y < b.Dy(); y++ {
		src := img.Pix[img.PixOffset(b.Min.X, b.Min.Y+y):][:row]
		out := dst[y*row:][:row]
		if !swap {
			copy(out, src)
			continue
		}
		for i := 0; i < row; i += 4 {
			out[i+0] = src[i+2]
			out[i+1] = src[i+1]
			out[i+2] = src[i+0]
			out[i+3] = src[i+3]
		}
	}
}

// RenderTo draws the last uploaded frame at the origin of dc.
func (p *Presenter) RenderTo(dc gpucontext.TextureDrawer) error {
	return p.RenderToPosition(dc, 0, 0)
}

// RenderToPosition draws the last uploaded frame at (x, y).
func (p *Presenter) RenderToPosition(dc gpucontext.TextureDrawer, x, y float32) error {
	return p.render(drawerTarget{dc}, x, y)
}

func (p *Presenter) render(t target, x, y float32) error {
	if p.closed {
		return ErrClosed
	}
	if !p.uploaded {
		return ErrNoFrame
	}

	if p.sizeChanged {
		destroy(p.oldTexture)
		p.oldTexture = p.texture
		p.texture = nil
		p.sizeChanged = false
	}

	switch {
	case p.texture == nil:
		tex, err := t.create(p.width, p.height, p.data)
		if err != nil {
			return fmt.Errorf("present: texture creation failed: %w", err)
		}
		// image.RGBA pixels are premultiplied.
		if pt, ok := tex.(interface{ SetPremultiplied(bool) }); ok {
			pt.SetPremultiplied(true)
		}
		p.texture = tex
		destroy(p.oldTexture)
		p.oldTexture = nil
		p.log.Debug("present: texture created", "width", p.width, "height", p.height, "format", p.format)
	case p.dirty:
		if err := t.update(p.texture, p.data); err != nil {
			return fmt.Errorf("present: texture update failed: %w", err)
		}
	}
	p.dirty = false
	return t.draw(p.texture, x, y)
}

// Close destroys the textures. Close is idempotent.
func (p *Presenter) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	destroy(p.oldTexture)
	destroy(p.texture)
	p.oldTexture, p.texture = nil, nil
	p.data = nil
	p.provider = nil
	return nil
}

func destroy(tex any) {
	if d, ok := tex.(textureDestroyer); ok {
		d.Destroy()
	}
}

// drawerTarget adapts a gpucontext.TextureDrawer.
type drawerTarget struct {
	dc gpucontext.TextureDrawer
}

func (t drawerTarget) create(width, height int, data []byte) (any, error) {
	creator := t.dc.TextureCreator()
	if creator == nil {
		return nil, ErrNoTextureCreator
	}
	tex, err := creator.NewTextureFromRGBA(width, height, data)
	if err != nil {
		return nil, err
	}
	return tex, nil
}

func (t drawerTarget) update(tex any, data []byte) error {
	u, ok := tex.(gpucontext.TextureUpdater)
	if !ok {
		return nil
	}
	return u.UpdateData(data)
}

func (t drawerTarget) draw(tex any, x, y float32) error {
	gt, ok := tex.(gpucontext.Texture)
	if !ok {
		return ErrNotTexture
	}
	return t.dc.DrawTexture(gt, x, y)
}
