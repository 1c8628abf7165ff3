// Package vision defines the face detection and embedding collaborators.
// Both models run in an external service; this package only knows their
// contracts and talks to them over HTTP.
package vision

import (
	"context"
	"image"
)

// Box is a detected face region in pixel coordinates, y-down, x-right,
// within frame bounds. Score is the detector confidence, already
// filtered above the service's configured threshold.
type Box struct {
	X1, Y1, X2, Y2 int
	Score          float64
}

// Rect converts the box to an image.Rectangle.
func (b Box) Rect() image.Rectangle {
	return image.Rect(b.X1, b.Y1, b.X2, b.Y2)
}

// Detector locates face regions in a frame.
type Detector interface {
	Detect(ctx context.Context, frame image.Image) ([]Box, error)
}

// Embedder converts one face image into a fixed-length embedding.
// An error means the crop could not be embedded; callers treat it as a
// per-face failure, never a reason to stop processing a frame.
type Embedder interface {
	Embed(ctx context.Context, face image.Image) ([]float32, error)
}
