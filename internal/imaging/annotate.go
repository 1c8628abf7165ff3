package imaging

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Annotation is a labeled bounding box drawn onto a frame.
type Annotation struct {
	Rect  image.Rectangle
	Label string
}

var (
	boxColor  = color.RGBA{G: 255, A: 255}
	textColor = color.RGBA{G: 255, A: 255}
	fillColor = color.RGBA{A: 255}
)

const boxThickness = 2

// Annotate draws bounding boxes and labels onto a copy of the frame.
// The input frame is never modified.
func Annotate(frame image.Image, annotations []Annotation) *image.RGBA {
	bounds := frame.Bounds()
	out := image.NewRGBA(bounds)
	draw.Draw(out, bounds, frame, bounds.Min, draw.Src)

	for _, a := range annotations {
		rect := a.Rect.Intersect(bounds)
		if rect.Empty() {
			continue
		}
		drawRect(out, rect)
		if a.Label != "" {
			drawLabel(out, a.Label, rect.Min.X, rect.Min.Y-4)
		}
	}
	return out
}

// drawRect draws a hollow rectangle with boxThickness-pixel edges.
func drawRect(img *image.RGBA, rect image.Rectangle) {
	for t := 0; t < boxThickness; t++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			img.Set(x, rect.Min.Y+t, boxColor)
			img.Set(x, rect.Max.Y-1-t, boxColor)
		}
		for y := rect.Min.Y; y < rect.Max.Y; y++ {
			img.Set(rect.Min.X+t, y, boxColor)
			img.Set(rect.Max.X-1-t, y, boxColor)
		}
	}
}

// drawLabel renders text with its baseline at (x, y), clamped so labels
// of faces near the top edge stay visible.
func drawLabel(img *image.RGBA, text string, x, y int) {
	face := basicfont.Face7x13
	if y < face.Height {
		y = face.Height
	}
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(textColor),
		Face: face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

// ErrorFrame builds a black placeholder frame carrying a message,
// emitted when a capture device is unavailable.
func ErrorFrame(width, height int, message string) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(fillColor), image.Point{}, draw.Src)
	drawLabel(img, message, 20, height/2)
	return img
}
