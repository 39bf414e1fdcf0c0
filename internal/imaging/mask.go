package imaging

import (
	"image"

	"github.com/anthonynsimon/bild/effect"
	"github.com/anthonynsimon/bild/segment"
)

// Mask is a binary raster with the same geometry as the image it was derived from.
//
// Coordinates are 0-based relative to the source image origin. Reads outside the
// mask return false, which lets neighborhood walks skip explicit bounds checks.
type Mask struct {
	Width  int
	Height int
	Pix    []bool
}

// NewMask allocates an all-false mask.
func NewMask(width, height int) *Mask {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Mask{
		Width:  width,
		Height: height,
		Pix:    make([]bool, width*height),
	}
}

// At reports whether (x, y) is set. Out-of-range coordinates are unset.
func (m *Mask) At(x, y int) bool {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return false
	}
	return m.Pix[y*m.Width+x]
}

// Set assigns (x, y). Out-of-range coordinates are ignored.
func (m *Mask) Set(x, y int, v bool) {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return
	}
	m.Pix[y*m.Width+x] = v
}

// Row returns the backing slice for row y.
func (m *Mask) Row(y int) []bool {
	return m.Pix[y*m.Width : (y+1)*m.Width]
}

// Count returns the number of set pixels.
func (m *Mask) Count() int {
	n := 0
	for _, v := range m.Pix {
		if v {
			n++
		}
	}
	return n
}

// Binarize marks as foreground every pixel whose grayscale intensity is strictly
// below threshold, isolating dark ink against a light page.
//
// The source image is never modified: bild's grayscale and threshold passes each
// allocate their own buffers.
func Binarize(img image.Image, threshold uint8) *Mask {
	// segment.Threshold paints values below the level black and the rest white.
	bin := segment.Threshold(effect.Grayscale(img), threshold)
	b := bin.Bounds()

	mask := NewMask(b.Dx(), b.Dy())
	for y := 0; y < mask.Height; y++ {
		row := mask.Row(y)
		for x := 0; x < mask.Width; x++ {
			row[x] = bin.GrayAt(b.Min.X+x, b.Min.Y+y).Y == 0
		}
	}
	return mask
}

// EdgeMap thresholds the Sobel gradient magnitude of img's luminance.
//
// Pixels whose magnitude (0-255) is at least threshold are marked as edges.
func EdgeMap(img image.Image, threshold uint8) *Mask {
	var sobel image.Image = effect.Sobel(effect.Grayscale(img))
	b := sobel.Bounds()

	mask := NewMask(b.Dx(), b.Dy())
	for y := 0; y < mask.Height; y++ {
		row := mask.Row(y)
		for x := 0; x < mask.Width; x++ {
			r, _, _, _ := sobel.At(b.Min.X+x, b.Min.Y+y).RGBA()
			row[x] = uint8(r>>8) >= threshold
		}
	}
	return mask
}
