package vision

import (
	"context"
	"image"
	"sync"
)

// FakeDetector is a deterministic Detector for tests: it returns a fixed
// sequence of box sets, repeating the last one when exhausted.
type FakeDetector struct {
	mu      sync.Mutex
	Batches [][]Box
	Err     error
	calls   int
}

func (f *FakeDetector) Detect(ctx context.Context, frame image.Image) ([]Box, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	if len(f.Batches) == 0 {
		return nil, nil
	}
	i := f.calls
	if i >= len(f.Batches) {
		i = len(f.Batches) - 1
	}
	f.calls++
	return f.Batches[i], nil
}

// Calls returns how many times Detect ran.
func (f *FakeDetector) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// FakeEmbedder is a deterministic Embedder for tests. It returns Fixed
// when set, otherwise an embedding derived from the crop dimensions so
// distinct regions map to distinct vectors.
type FakeEmbedder struct {
	mu    sync.Mutex
	Fixed []float32
	Err   error
	calls int
}

func (f *FakeEmbedder) Embed(ctx context.Context, face image.Image) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.Err != nil {
		return nil, f.Err
	}
	if f.Fixed != nil {
		return f.Fixed, nil
	}
	bounds := face.Bounds()
	return []float32{float32(bounds.Dx()), float32(bounds.Dy()), 1}, nil
}

// Calls returns how many times Embed ran.
func (f *FakeEmbedder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}
