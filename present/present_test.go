// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package present

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// fakeProvider implements gpucontext.DeviceProvider for testing.
type fakeProvider struct {
	format gputypes.TextureFormat
}

func (fakeProvider) Device() gpucontext.Device               { return nil }
func (fakeProvider) Queue() gpucontext.Queue                 { return nil }
func (fakeProvider) Adapter() gpucontext.Adapter             { return nil }
func (p fakeProvider) SurfaceFormat() gputypes.TextureFormat { return p.format }
func (fakeProvider) AdapterInfo() gpucontext.AdapterInfo     { return gpucontext.AdapterInfo{} }

type fakeTexture struct {
	width, height int
	data          []byte
	updates       int
	destroyed     bool
	premultiplied bool
}

func (t *fakeTexture) Destroy()                  { t.destroyed = true }
func (t *fakeTexture) SetPremultiplied(v bool)   { t.premultiplied = v }
func (t *fakeTexture) set(data []byte)           { t.data = append(t.data[:0], data...) }
func (t *fakeTexture) size() (width, height int) { return t.width, t.height }
func (t *fakeTexture) pixel(i int) (r, g, b, a byte) {
	return t.data[i], t.data[i+1], t.data[i+2], t.data[i+3]
}

// fakeTarget records texture traffic.
type fakeTarget struct {
	created  []*fakeTexture
	draws    int
	lastX    float32
	lastY    float32
	failNext bool
}

func (f *fakeTarget) create(width, height int, data []byte) (any, error) {
	if f.failNext {
		f.failNext = false
		return nil, errors.New("create failed")
	}
	tex := &fakeTexture{width: width, height: height}
	tex.set(data)
	f.created = append(f.created, tex)
	return tex, nil
}

func (f *fakeTarget) update(tex any, data []byte) error {
	t := tex.(*fakeTexture)
	t.set(data)
	t.updates++
	return nil
}

func (f *fakeTarget) draw(_ any, x, y float32) error {
	f.draws++
	f.lastX, f.lastY = x, y
	return nil
}

func frame(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		provider gpucontext.DeviceProvider
		opts     []Option
		want     gputypes.TextureFormat
		wantErr  error
	}{
		{"nil provider", nil, nil, 0, ErrNilProvider},
		{"default", fakeProvider{gputypes.TextureFormatUndefined}, nil, gputypes.TextureFormatRGBA8Unorm, nil},
		{"surface format ignored", fakeProvider{gputypes.TextureFormatBGRA8Unorm}, nil, gputypes.TextureFormatRGBA8Unorm, nil},
		{"explicit bgra", fakeProvider{gputypes.TextureFormatRGBA8Unorm}, []Option{WithFormat(gputypes.TextureFormatBGRA8Unorm)}, gputypes.TextureFormatBGRA8Unorm, nil},
		{"unsupported", fakeProvider{gputypes.TextureFormatBGRA8Unorm}, []Option{WithFormat(gputypes.TextureFormatDepth24PlusStencil8)}, 0, ErrUnsupportedFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.provider, tt.opts...)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("New() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("New() unexpected error: %v", err)
			}
			if p.Format() != tt.want {
				t.Errorf("Format() = %v, want %v", p.Format(), tt.want)
			}
		})
	}
}

func TestRenderBeforeUpload(t *testing.T) {
	p, _ := New(fakeProvider{gputypes.TextureFormatUndefined})
	if err := p.render(&fakeTarget{}, 0, 0); !errors.Is(err, ErrNoFrame) {
		t.Errorf("render() error = %v, want ErrNoFrame", err)
	}
}

func TestUploadConvertsLayout(t *testing.T) {
	c := color.RGBA{R: 10, G: 20, B: 30, A: 255}
	tests := []struct {
		name       string
		surface    gputypes.TextureFormat
		opts       []Option
		r, g, b, a byte
	}{
		{"rgba surface", gputypes.TextureFormatRGBA8Unorm, nil, 10, 20, 30, 255},
		// Texture creation takes RGBA whatever the swapchain uses.
		{"bgra surface", gputypes.TextureFormatBGRA8Unorm, nil, 10, 20, 30, 255},
		{"explicit bgra", gputypes.TextureFormatRGBA8Unorm, []Option{WithFormat(gputypes.TextureFormatBGRA8Unorm)}, 30, 20, 10, 255},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(fakeProvider{tt.surface}, tt.opts...)
			if err != nil {
				t.Fatal(err)
			}
			if err := p.Upload(frame(2, 2, c)); err != nil {
				t.Fatal(err)
			}
			ft := &fakeTarget{}
			if err := p.render(ft, 0, 0); err != nil {
				t.Fatal(err)
			}
			r, g, b, a := ft.created[0].pixel(12)
			if r != tt.r || g != tt.g || b != tt.b || a != tt.a {
				t.Errorf("pixel = %d,%d,%d,%d, want %d,%d,%d,%d", r, g, b, a, tt.r, tt.g, tt.b, tt.a)
			}

			// In-place updates use the same layout.
			if err := p.Upload(frame(2, 2, c)); err != nil {
				t.Fatal(err)
			}
			if err := p.render(ft, 0, 0); err != nil {
				t.Fatal(err)
			}
			if r, _, b, _ := ft.created[0].pixel(0); r != tt.r || b != tt.b {
				t.Errorf("updated pixel r,b = %d,%d, want %d,%d", r, b, tt.r, tt.b)
			}
		})
	}
}

func TestUploadSubImage(t *testing.T) {
	img := frame(4, 4, color.RGBA{A: 255})
	img.SetRGBA(2, 2, color.RGBA{R: 255, A: 255})
	sub := img.SubImage(image.Rect(2, 2, 4, 4)).(*image.RGBA)

	p, _ := New(fakeProvider{gputypes.TextureFormatRGBA8Unorm})
	if err := p.Upload(sub); err != nil {
		t.Fatal(err)
	}
	if w, h := p.Size(); w != 2 || h != 2 {
		t.Fatalf("Size() = %d,%d, want 2,2", w, h)
	}
	ft := &fakeTarget{}
	if err := p.render(ft, 0, 0); err != nil {
		t.Fatal(err)
	}
	if r, _, _, _ := ft.created[0].pixel(0); r != 255 {
		t.Errorf("first pixel red = %d, want 255", r)
	}
	if len(ft.created[0].data) != 16 {
		t.Errorf("data length = %d, want 16", len(ft.created[0].data))
	}
}

func TestTextureLifecycle(t *testing.T) {
	p, _ := New(fakeProvider{gputypes.TextureFormatRGBA8Unorm})
	ft := &fakeTarget{}

	_ = p.Upload(frame(4, 4, color.RGBA{A: 255}))
	if err := p.render(ft, 5, 6); err != nil {
		t.Fatal(err)
	}
	if len(ft.created) != 1 || !ft.created[0].premultiplied {
		t.Fatalf("want one premultiplied texture, got %d", len(ft.created))
	}
	if ft.lastX != 5 || ft.lastY != 6 {
		t.Errorf("drawn at %v,%v, want 5,6", ft.lastX, ft.lastY)
	}
	if p.IsDirty() {
		t.Error("IsDirty() = true after render")
	}

	// A clean frame draws without touching the texture.
	if err := p.render(ft, 0, 0); err != nil {
		t.Fatal(err)
	}
	if ft.created[0].updates != 0 {
		t.Errorf("updates = %d, want 0", ft.created[0].updates)
	}

	// Same size: update in place.
	_ = p.Upload(frame(4, 4, color.RGBA{G: 255, A: 255}))
	if err := p.render(ft, 0, 0); err != nil {
		t.Fatal(err)
	}
	if len(ft.created) != 1 || ft.created[0].updates != 1 {
		t.Fatalf("created = %d, updates = %d, want 1, 1", len(ft.created), ft.created[0].updates)
	}

	// New size: new texture, old one destroyed after the creation.
	_ = p.Upload(frame(8, 2, color.RGBA{A: 255}))
	if err := p.render(ft, 0, 0); err != nil {
		t.Fatal(err)
	}
	if len(ft.created) != 2 {
		t.Fatalf("created = %d, want 2", len(ft.created))
	}
	if w, h := ft.created[1].size(); w != 8 || h != 2 {
		t.Errorf("new texture size = %d,%d, want 8,2", w, h)
	}
	if !ft.created[0].destroyed {
		t.Error("old texture not destroyed")
	}
	if ft.draws != 4 {
		t.Errorf("draws = %d, want 4", ft.draws)
	}

	if err := p.Close(); err != nil {
		t.Fatal(err)
	}
	if !ft.created[1].destroyed {
		t.Error("Close did not destroy the texture")
	}
	if err := p.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if err := p.Upload(frame(1, 1, color.RGBA{})); !errors.Is(err, ErrClosed) {
		t.Errorf("Upload after Close error = %v, want ErrClosed", err)
	}
}

func TestCreateFailureRetries(t *testing.T) {
	p, _ := New(fakeProvider{gputypes.TextureFormatRGBA8Unorm})
	ft := &fakeTarget{failNext: true}
	_ = p.Upload(frame(2, 2, color.RGBA{A: 255}))
	if err := p.render(ft, 0, 0); err == nil {
		t.Fatal("render() error = nil, want creation failure")
	}
	if p.Texture() != nil {
		t.Error("Texture() != nil after failed creation")
	}
	if err := p.render(ft, 0, 0); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if len(ft.created) != 1 {
		t.Errorf("created = %d, want 1", len(ft.created))
	}
}
