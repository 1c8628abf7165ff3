package session

import (
	"context"
	"errors"
	"image"

	"github.com/kozaktomas/face-attendance/internal/camera"
	"github.com/kozaktomas/face-attendance/internal/imaging"
)

// Fallback frame size for the placeholder when the device dies before
// delivering a single frame.
const (
	placeholderWidth  = 640
	placeholderHeight = 480
)

// Run processes frames from src until ctx ends or the device fails. Every
// annotated frame goes through emit; when emit returns an error the viewer
// is gone and the loop stops cleanly.
//
// On device loss the loop emits a placeholder frame so the viewer sees what
// happened, then returns the device error. Releasing the camera handle is
// the caller's job, paired with wherever it was acquired.
func (c *Controller) Run(ctx context.Context, src camera.Source, emit func(image.Image) error) error {
	width, height := placeholderWidth, placeholderHeight

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, err := src.ReadFrame(ctx)
		if err != nil {
			if errors.Is(err, camera.ErrDeviceUnavailable) {
				c.logger.Printf("session: camera lost: %v", err)
				emit(imaging.ErrorFrame(width, height, "camera unavailable"))
				return err
			}
			// Transient decode problems just skip the frame.
			c.logger.Printf("session: frame read failed: %v", err)
			continue
		}
		width, height = frame.Bounds().Dx(), frame.Bounds().Dy()

		result, err := c.ProcessFrame(ctx, frame)
		if err != nil {
			c.logger.Printf("session: frame processing failed: %v", err)
			continue
		}

		if err := emit(result.Annotated); err != nil {
			return nil
		}
	}
}
