// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package surface

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/gogpu/ggtile/tileindex"
)

// Registry errors.
var (
	ErrNoProviderAvailable = errors.New("surface: no provider available")
	ErrProviderNotFound    = errors.New("surface: provider not found")
	ErrProviderUnavailable = errors.New("surface: provider unavailable")
)

// ProviderFactory creates a Provider.
type ProviderFactory func() (Provider, error)

// Registration describes a named provider.
type Registration struct {
	Name string
	// Priority orders automatic selection, highest first.
	Priority int
	Factory  ProviderFactory
	// Available reports whether the provider works on this system.
	// Nil means always.
	Available func() bool
}

func (r Registration) available() bool {
	return r.Available == nil || r.Available()
}

// Registry holds named providers ordered by priority, then name.
type Registry struct {
	mu   sync.RWMutex
	regs []Registration
}

// NewRegistry returns an empty registry. Most code uses the package-level
// registry through Register and OpenProvider.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds reg, replacing a registration of the same name.
func (r *Registry) Register(reg Registration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.regs = slices.DeleteFunc(r.regs, func(e Registration) bool { return e.Name == reg.Name })
	r.regs = append(r.regs, reg)
	slices.SortStableFunc(r.regs, func(a, b Registration) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		return cmp.Compare(a.Name, b.Name)
	})
}

// Names lists every registration, preferred first.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.regs))
	for i, reg := range r.regs {
		names[i] = reg.Name
	}
	return names
}

// Open creates a provider from the named registration. An empty name picks
// the highest priority available registration whose factory succeeds.
func (r *Registry) Open(name string) (Provider, error) {
	r.mu.RLock()
	regs := slices.Clone(r.regs)
	r.mu.RUnlock()

	if name != "" {
		i := slices.IndexFunc(regs, func(e Registration) bool { return e.Name == name })
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
		}
		if !regs[i].available() {
			return nil, fmt.Errorf("%w: %s", ErrProviderUnavailable, name)
		}
		return regs[i].Factory()
	}

	errs := []error{ErrNoProviderAvailable}
	for _, reg := range regs {
		if !reg.available() {
			continue
		}
		p, err := reg.Factory()
		if err == nil {
			return p, nil
		}
		errs = append(errs, fmt.Errorf("%s: %w", reg.Name, err))
	}
	return nil, errors.Join(errs...)
}

var providers = NewRegistry()

// Register adds reg to the package-level registry.
func Register(reg Registration) {
	providers.Register(reg)
}

// ProviderNames lists the package-level registrations, preferred first.
func ProviderNames() []string {
	return providers.Names()
}

// OpenProvider opens a provider from the package-level registry. An empty
// name selects the best available one, which is "pool" unless something
// with a higher priority was registered.
func OpenProvider(name string) (Provider, error) {
	return providers.Open(name)
}

func init() {
	Register(Registration{
		Name:     "pool",
		Priority: 10,
		Factory:  func() (Provider, error) { return NewPool(), nil },
	})
	// "image" allocates a fresh surface per tile and never reuses one.
	Register(Registration{
		Name:     "image",
		Priority: 5,
		Factory: func() (Provider, error) {
			return ProviderFuncs{
				AcquireFunc: func(_ tileindex.Coord, w, h int) (Surface, error) {
					return NewImageSurface(w, h), nil
				},
			}, nil
		},
	})
}
