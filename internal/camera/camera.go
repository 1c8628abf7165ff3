// Package camera provides frame sources for live recognition streams.
package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
)

// ErrDeviceUnavailable means the capture device cannot be opened or was
// disconnected. Stream loops render a placeholder frame instead of failing.
var ErrDeviceUnavailable = errors.New("capture device unavailable")

// Source yields frames from a single capture device. The registry hands
// the same source to every viewer of a device, so implementations must
// serialize ReadFrame; concurrent readers split the frames between them.
type Source interface {
	ReadFrame(ctx context.Context) (image.Image, error)
	Close() error
}

// OpenFunc opens the capture device behind an index.
type OpenFunc func(ctx context.Context, index int) (Source, error)

// Registry hands out capture devices by index. A device is an exclusive
// resource: acquiring an index that is already open reuses the existing
// handle instead of opening a duplicate. Release drops the handle after a
// read failure so the next acquire reopens the device.
type Registry struct {
	open OpenFunc

	mu      sync.Mutex
	sources map[int]Source
}

func NewRegistry(open OpenFunc) *Registry {
	return &Registry{
		open:    open,
		sources: make(map[int]Source),
	}
}

// Acquire returns the open source for index, opening the device on first
// use.
func (r *Registry) Acquire(ctx context.Context, index int) (Source, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if src, ok := r.sources[index]; ok {
		return src, nil
	}
	src, err := r.open(ctx, index)
	if err != nil {
		return nil, fmt.Errorf("open camera %d: %w", index, err)
	}
	r.sources[index] = src
	return src, nil
}

// Release closes and forgets the source for index. Safe to call for an
// index that is not open.
func (r *Registry) Release(index int) {
	r.mu.Lock()
	src, ok := r.sources[index]
	delete(r.sources, index)
	r.mu.Unlock()

	if ok {
		src.Close()
	}
}

// Close releases every open device.
func (r *Registry) Close() {
	r.mu.Lock()
	sources := r.sources
	r.sources = make(map[int]Source)
	r.mu.Unlock()

	for _, src := range sources {
		src.Close()
	}
}

// IsOpen reports whether a device is currently held open.
func (r *Registry) IsOpen(index int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.sources[index]
	return ok
}

// OpenCount reports how many devices are currently held open.
func (r *Registry) OpenCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sources)
}
