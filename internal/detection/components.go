package detection

import (
	"image"

	"github.com/ironsheep/form-segment/internal/imaging"
)

// Point represents a 2D coordinate in pixel space.
type Point struct {
	X int `json:"x"` // Horizontal position (0 = leftmost)
	Y int `json:"y"` // Vertical position (0 = topmost)
}

// component is one 8-connected blob of set mask pixels.
type component struct {
	// bounds is the bounding box, Max exclusive.
	bounds image.Rectangle
	pixels int
}

// findComponents labels the 8-connected components of mask.
//
// Components are returned in raster order of their first pixel, which keeps
// downstream results deterministic.
func findComponents(mask *imaging.Mask) []component {
	visited := make([]bool, len(mask.Pix))
	components := make([]component, 0)

	for y := 0; y < mask.Height; y++ {
		for x := 0; x < mask.Width; x++ {
			i := y*mask.Width + x
			if mask.Pix[i] && !visited[i] {
				components = append(components, floodFill(mask, visited, x, y))
			}
		}
	}

	return components
}

// floodFill performs iterative flood-fill from a starting point.
//
// Uses a stack-based approach (not recursive) to avoid stack overflow on long
// rule lines, which can span thousands of pixels.
func floodFill(mask *imaging.Mask, visited []bool, startX, startY int) component {
	minX, minY := startX, startY
	maxX, maxY := startX, startY
	pixels := 0

	stack := []Point{{X: startX, Y: startY}}
	visited[startY*mask.Width+startX] = true

	for len(stack) > 0 {
		p := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		pixels++

		if p.X < minX {
			minX = p.X
		}
		if p.X > maxX {
			maxX = p.X
		}
		if p.Y < minY {
			minY = p.Y
		}
		if p.Y > maxY {
			maxY = p.Y
		}

		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				if dx == 0 && dy == 0 {
					continue
				}
				nx, ny := p.X+dx, p.Y+dy
				if !mask.At(nx, ny) {
					continue
				}
				ni := ny*mask.Width + nx
				if visited[ni] {
					continue
				}
				visited[ni] = true
				stack = append(stack, Point{X: nx, Y: ny})
			}
		}
	}

	return component{
		bounds: image.Rect(minX, minY, maxX+1, maxY+1),
		pixels: pixels,
	}
}
