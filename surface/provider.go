// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package surface

import (
	"sync"
	"sync/atomic"

	"github.com/gogpu/ggtile/tileindex"
)

// Provider creates and disposes of surfaces on behalf of a renderer.
//
// A surface returned by Acquire is exclusively owned by the caller until it
// is passed back to Release. Whether Release frees or pools the surface is
// up to the provider.
type Provider interface {
	// Acquire returns a blank surface of the given pixel size for coord.
	Acquire(coord tileindex.Coord, width, height int) (Surface, error)

	// Release hands a surface back to the provider.
	Release(coord tileindex.Coord, s Surface)
}

// ProviderFuncs adapts a pair of functions to the Provider interface.
type ProviderFuncs struct {
	AcquireFunc func(coord tileindex.Coord, width, height int) (Surface, error)
	ReleaseFunc func(coord tileindex.Coord, s Surface)
}

// Acquire implements Provider.
func (p ProviderFuncs) Acquire(coord tileindex.Coord, width, height int) (Surface, error) {
	return p.AcquireFunc(coord, width, height)
}

// Release implements Provider. A nil ReleaseFunc closes the surface.
func (p ProviderFuncs) Release(coord tileindex.Coord, s Surface) {
	if p.ReleaseFunc == nil {
		_ = s.Close()
		return
	}
	p.ReleaseFunc(coord, s)
}

// Pool is a Provider that reuses ImageSurface buffers via sync.Pool.
//
// The pool reduces GC pressure while the viewport scrolls: a released tile
// buffer is cleared and handed to the next tile that becomes visible.
//
// Thread safety: Pool is safe for concurrent use.
type Pool struct {
	// pools holds separate sync.Pool instances for each surface size.
	// Key format: (width << 16) | height
	pools sync.Map

	live     atomic.Int64
	acquired atomic.Uint64
	released atomic.Uint64
}

// NewPool creates an empty surface pool.
func NewPool() *Pool {
	return &Pool{}
}

// Acquire implements Provider.
func (p *Pool) Acquire(_ tileindex.Coord, width, height int) (Surface, error) {
	if width <= 0 {
		width = 1
	}
	if height <= 0 {
		height = 1
	}
	s := p.poolFor(width, height).Get().(*ImageSurface)
	s.reset()
	p.live.Add(1)
	p.acquired.Add(1)
	return s, nil
}

// Release implements Provider. Surfaces not created by a Pool are closed.
func (p *Pool) Release(_ tileindex.Coord, s Surface) {
	is, ok := s.(*ImageSurface)
	if !ok {
		if s != nil {
			_ = s.Close()
		}
		return
	}
	p.live.Add(-1)
	p.released.Add(1)
	_ = is.Close()
	if pool, ok := p.pools.Load(poolKey(is.width, is.height)); ok {
		pool.(*sync.Pool).Put(is)
	}
}

// Live returns the number of surfaces currently acquired.
func (p *Pool) Live() int {
	return int(p.live.Load())
}

// Counts returns the total number of Acquire and Release calls.
func (p *Pool) Counts() (acquired, released uint64) {
	return p.acquired.Load(), p.released.Load()
}

func (p *Pool) poolFor(width, height int) *sync.Pool {
	key := poolKey(width, height)
	if pool, ok := p.pools.Load(key); ok {
		return pool.(*sync.Pool)
	}

	newPool := &sync.Pool{
		New: func() any {
			return NewImageSurface(width, height)
		},
	}

	// Try to store; if another goroutine beat us, use theirs
	actual, _ := p.pools.LoadOrStore(key, newPool)
	return actual.(*sync.Pool)
}

// poolKey creates a unique key for a surface size.
// Width and height are clamped to 16-bit values to prevent overflow.
func poolKey(width, height int) uint32 {
	w := min(width, 0xFFFF)
	h := min(height, 0xFFFF)
	return uint32(w)<<16 | uint32(h) //nolint:gosec // values are clamped above
}
