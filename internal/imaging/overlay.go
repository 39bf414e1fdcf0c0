package imaging

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"

	colorful "github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Overlay palette, hex so it reads the same as the debug legend.
const (
	DetectedLineHex  = "#FF0000"
	EstimatedLineHex = "#FFFF00"
)

// OverlayLine is one horizontal rule to draw on a debug overlay.
type OverlayLine struct {
	Y        int
	ColorHex string
	Label    string
}

// DrawHorizontalLines copies img and paints each line across its full width,
// two pixels thick, with an optional label at the left margin.
//
// The source image is left untouched. Lines outside the image are clipped.
func DrawHorizontalLines(img image.Image, lines []OverlayLine) *image.RGBA {
	bounds := img.Bounds()
	result := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(result, result.Bounds(), img, bounds.Min, draw.Src)

	width := bounds.Dx()
	height := bounds.Dy()

	for _, line := range lines {
		c := parseOverlayColor(line.ColorHex)
		for t := 0; t < 2; t++ {
			y := line.Y + t
			if y < 0 || y >= height {
				continue
			}
			for x := 0; x < width; x++ {
				result.Set(x, y, c)
			}
		}
		if line.Label != "" {
			drawLabel(result, 4, line.Y-3, line.Label, c)
		}
	}

	return result
}

// parseOverlayColor falls back to opaque red for malformed hex strings.
func parseOverlayColor(hex string) color.Color {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.RGBA{255, 0, 0, 255}
	}
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{r, g, b, 255}
}

// drawLabel renders text with its baseline at (x, y) using the 7x13 basic font.
func drawLabel(img *image.RGBA, x, y int, text string, c color.Color) {
	if y < 13 {
		y = 13 + 2
	}
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

// LineLabel formats the legend text for a rule at row y.
func LineLabel(y int, estimated bool) string {
	if estimated {
		return fmt.Sprintf("est y=%d", y)
	}
	return fmt.Sprintf("y=%d", y)
}
