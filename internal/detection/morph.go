package detection

import (
	"image"

	"github.com/ironsheep/form-segment/internal/imaging"
)

// MorphConfig parameterizes the morphological line detector.
type MorphConfig struct {
	// Threshold is the grayscale level (0-255); darker pixels are ink.
	Threshold uint8

	// KernelWidthRatio sizes the horizontal structuring element as a fraction
	// of image width. Strokes shorter than the kernel vanish in the opening.
	KernelWidthRatio float64

	// MinWidthRatio is the fraction of image width a surviving component must
	// exceed to count as a rule line.
	MinWidthRatio float64

	// MaxThickness is the exclusive upper bound on component height in pixels;
	// thicker components are printed text blocks, not rules.
	MaxThickness int

	// MaxLines caps the number of reported lines.
	MaxLines int

	// Policy applies when fewer than two lines survive.
	Policy Policy

	// FallbackFractions are the estimated rule positions used by PolicyEstimate.
	FallbackFractions []float64
}

// DefaultMorphConfig returns the settings tuned for the target form family.
func DefaultMorphConfig() MorphConfig {
	return MorphConfig{
		Threshold:         200,
		KernelWidthRatio:  0.5,
		MinWidthRatio:     0.4,
		MaxThickness:      10,
		MaxLines:          DefaultMaxLines,
		Policy:            PolicyEstimate,
		FallbackFractions: DefaultFallbackFractions,
	}
}

// MorphDetector finds near-full-width rule lines with a horizontal opening.
//
// With PolicyEstimate it is total: every image at least two rows tall yields
// two or three ascending coordinates, falling back to proportional estimates
// when the scan is too degraded to show its rules.
type MorphDetector struct {
	Config MorphConfig

	// Debug, when set, receives every result. It has no effect on the result.
	Debug DebugHook
}

// NewMorphDetector creates a morphological detector with default settings.
func NewMorphDetector() *MorphDetector {
	return &MorphDetector{Config: DefaultMorphConfig()}
}

// Detect returns the y-centers of the thin, wide horizontal strokes in img.
//
// # Algorithm
//
//  1. Binarize: grayscale below Threshold is foreground ink.
//  2. Open with a (width*KernelWidthRatio)x1 element, erasing everything but
//     long horizontal runs. Handwriting and printed glyphs disappear here.
//  3. Label 8-connected components; keep those wider than
//     MinWidthRatio*width and thinner than MaxThickness.
//  4. Take each survivor's center row, dedupe, sort, and truncate to MaxLines.
//  5. Apply Policy when fewer than two lines remain.
func (d *MorphDetector) Detect(img image.Image) (*Result, error) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	mask := imaging.Binarize(img, d.Config.Threshold)

	kernel := int(float64(width) * d.Config.KernelWidthRatio)
	if kernel < 1 {
		kernel = 1
	}
	opened := openHorizontal(mask, kernel)

	minWidth := d.Config.MinWidthRatio * float64(width)
	ys := make([]int, 0)
	for _, c := range findComponents(opened) {
		w, h := c.bounds.Dx(), c.bounds.Dy()
		if float64(w) > minWidth && h < d.Config.MaxThickness {
			ys = append(ys, c.bounds.Min.Y+h/2)
		}
	}

	result, err := finalize(ys, height, 0, d.Config.MaxLines, d.Config.Policy, d.Config.FallbackFractions)
	if d.Debug != nil && result != nil {
		d.Debug(img, result.Lines, result.Estimated)
	}
	return result, err
}

// openHorizontal erodes then dilates every row of mask with a 1-pixel-tall
// structuring element of the given width, anchored at its center.
//
// Pixels beyond the left and right edges neither erode nor dilate, so a rule
// that runs off the page edge survives. The opening is always a subset of the
// input mask. Row sums make each pass linear in the row width.
func openHorizontal(mask *imaging.Mask, kernel int) *imaging.Mask {
	out := imaging.NewMask(mask.Width, mask.Height)
	w := mask.Width
	anchor := kernel / 2

	prefix := make([]int, w+1)
	eroded := make([]bool, w)
	erodedPrefix := make([]int, w+1)

	for y := 0; y < mask.Height; y++ {
		row := mask.Row(y)

		for x := 0; x < w; x++ {
			prefix[x+1] = prefix[x]
			if row[x] {
				prefix[x+1]++
			}
		}
		if prefix[w] == 0 {
			continue
		}

		// Erosion: every in-range pixel under the element must be set.
		for x := 0; x < w; x++ {
			lo, hi := clampRange(x-anchor, x-anchor+kernel-1, w)
			eroded[x] = prefix[hi+1]-prefix[lo] == hi-lo+1
		}

		for x := 0; x < w; x++ {
			erodedPrefix[x+1] = erodedPrefix[x]
			if eroded[x] {
				erodedPrefix[x+1]++
			}
		}

		// Dilation with the reflected element.
		dst := out.Row(y)
		for x := 0; x < w; x++ {
			lo, hi := clampRange(x-(kernel-1-anchor), x+anchor, w)
			dst[x] = erodedPrefix[hi+1]-erodedPrefix[lo] > 0
		}
	}

	return out
}

// clampRange intersects the inclusive range [lo, hi] with [0, n).
func clampRange(lo, hi, n int) (int, int) {
	if lo < 0 {
		lo = 0
	}
	if hi > n-1 {
		hi = n - 1
	}
	return lo, hi
}
