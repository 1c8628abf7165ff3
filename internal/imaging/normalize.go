package imaging

import (
	"image"
	"image/color"
)

// histBins is the number of luminance levels used for equalization.
const histBins = 256

// clipFactor limits how far any histogram bin may exceed the mean bin
// height before the excess is redistributed. Keeps flat regions from
// being blown out the way plain equalization does.
const clipFactor = 3.0

// NormalizeLighting applies contrast-limited histogram equalization to the
// luminance channel of an image, leaving chrominance untouched. Used to
// produce the lighting-normalized enrollment/recognition variant: the raw
// and normalized crops are embedded independently so a match only needs
// one of them to line up with a stored sample.
func NormalizeLighting(img image.Image) image.Image {
	bounds := img.Bounds()
	if bounds.Empty() {
		return img
	}

	// Histogram of the Y channel.
	var hist [histBins]int
	total := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			luma, _, _ := color.RGBToYCbCr(uint8(r>>8), uint8(g>>8), uint8(b>>8))
			hist[luma]++
			total++
		}
	}
	if total == 0 {
		return img
	}

	lut := buildEqualizationLUT(hist, total)

	out := image.NewRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			luma, cb, cr := color.RGBToYCbCr(uint8(r>>8), uint8(g>>8), uint8(b>>8))
			nr, ng, nb := color.YCbCrToRGB(lut[luma], cb, cr)
			out.Set(x, y, color.RGBA{R: nr, G: ng, B: nb, A: uint8(a >> 8)})
		}
	}
	return out
}

// buildEqualizationLUT clips the histogram, redistributes the excess
// uniformly, and maps levels through the cumulative distribution.
func buildEqualizationLUT(hist [histBins]int, total int) [histBins]uint8 {
	clipLimit := int(clipFactor * float64(total) / histBins)
	if clipLimit < 1 {
		clipLimit = 1
	}

	clipped := hist
	excess := 0
	for i := range clipped {
		if clipped[i] > clipLimit {
			excess += clipped[i] - clipLimit
			clipped[i] = clipLimit
		}
	}
	share := excess / histBins
	remainder := excess % histBins
	for i := range clipped {
		clipped[i] += share
		if i < remainder {
			clipped[i]++
		}
	}

	var lut [histBins]uint8
	cum := 0
	for i := range clipped {
		cum += clipped[i]
		v := (cum*(histBins-1) + total/2) / total
		if v > histBins-1 {
			v = histBins - 1
		}
		lut[i] = uint8(v)
	}
	return lut
}
