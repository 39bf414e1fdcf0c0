package detection

import (
	"image"
	"math"
	"sort"

	"github.com/ironsheep/form-segment/internal/imaging"
)

// HoughConfig parameterizes the edge/Hough line detector.
type HoughConfig struct {
	// MinLineLength is the shortest segment, in pixels, that counts as a line.
	MinLineLength int

	// MaxLineGap is the largest run of missing edge pixels bridged when joining
	// collinear pieces into one segment.
	MaxLineGap int

	// EdgeThreshold is the Sobel magnitude (0-255) at which a pixel is an edge.
	EdgeThreshold uint8

	// VoteThreshold is the minimum accumulator count for a candidate line.
	VoteThreshold int

	// HorizontalTolerance is the exclusive bound on |y2-y1| for a segment to be
	// classified horizontal.
	HorizontalTolerance int

	// MergeTolerance collapses line rows closer than this many pixels. Both
	// edges of a thick rule land within a few rows of each other.
	MergeTolerance int

	// MaxLines caps the number of reported lines.
	MaxLines int

	// Policy applies when fewer than two lines survive.
	Policy Policy

	// FallbackFractions are the estimated rule positions used by PolicyEstimate.
	FallbackFractions []float64
}

// DefaultHoughConfig returns the settings tuned for the target form family.
func DefaultHoughConfig() HoughConfig {
	return HoughConfig{
		MinLineLength:       400,
		MaxLineGap:          10,
		EdgeThreshold:       128,
		VoteThreshold:       100,
		HorizontalTolerance: 10,
		MergeTolerance:      4,
		MaxLines:            DefaultMaxLines,
		Policy:              PolicyFail,
		FallbackFractions:   DefaultFallbackFractions,
	}
}

// maxPeaks bounds how many accumulator peaks are traced back into segments.
const maxPeaks = 100

// Segment is a line segment recovered from the edge map.
type Segment struct {
	Start Point `json:"start"`
	End   Point `json:"end"`
}

// Length returns the Euclidean length of the segment.
func (s Segment) Length() float64 {
	return math.Hypot(float64(s.End.X-s.Start.X), float64(s.End.Y-s.Start.Y))
}

// HoughDetector finds horizontal rules from edge evidence. Unlike MorphDetector
// its default policy is PolicyFail: an inconclusive scan is an error.
type HoughDetector struct {
	Config HoughConfig
}

// NewHoughDetector creates an edge/Hough detector with default settings.
func NewHoughDetector() *HoughDetector {
	return &HoughDetector{Config: DefaultHoughConfig()}
}

// Detect returns the midpoint rows of horizontal segments in img.
//
// With PolicyFail, fewer than two lines yields formerr.ErrInsufficientLines
// together with whatever lines were found.
func (d *HoughDetector) Detect(img image.Image) (*Result, error) {
	height := img.Bounds().Dy()
	edges := imaging.EdgeMap(img, d.Config.EdgeThreshold)

	ys := make([]int, 0)
	for _, seg := range d.Segments(edges) {
		dy := seg.End.Y - seg.Start.Y
		if dy < 0 {
			dy = -dy
		}
		if dy < d.Config.HorizontalTolerance {
			ys = append(ys, (seg.Start.Y+seg.End.Y)/2)
		}
	}

	return finalize(ys, height, d.Config.MergeTolerance, d.Config.MaxLines, d.Config.Policy, d.Config.FallbackFractions)
}

// Segments runs the Hough vote over edges and traces each accumulator peak back
// through the edge map into gap-bridged segments of at least MinLineLength.
//
// # Algorithm
//
//  1. Every edge pixel votes for all (rho, theta) lines through it, theta in
//     1-degree steps.
//  2. Cells at or above VoteThreshold that are maxima of their 5x5
//     neighborhood become peaks, strongest first.
//  3. Each peak's line is walked across the image; edge hits within one pixel
//     of the line extend the current segment, and more than MaxLineGap
//     consecutive misses close it.
//
// Unlike OpenCV's probabilistic variant there is no random sampling, so the
// output is a pure function of the edge map.
func (d *HoughDetector) Segments(edges *imaging.Mask) []Segment {
	width, height := edges.Width, edges.Height
	if width == 0 || height == 0 {
		return nil
	}

	const numAngles = 180
	maxDist := int(math.Ceil(math.Hypot(float64(width), float64(height))))
	numRho := 2*maxDist + 1

	cosT := make([]float64, numAngles)
	sinT := make([]float64, numAngles)
	for t := 0; t < numAngles; t++ {
		angle := float64(t) * math.Pi / 180.0
		cosT[t] = math.Cos(angle)
		sinT[t] = math.Sin(angle)
	}

	accumulator := make([]int, numRho*numAngles)
	for y := 0; y < height; y++ {
		row := edges.Row(y)
		for x := 0; x < width; x++ {
			if !row[x] {
				continue
			}
			for t := 0; t < numAngles; t++ {
				rho := int(math.Round(float64(x)*cosT[t]+float64(y)*sinT[t])) + maxDist
				accumulator[rho*numAngles+t]++
			}
		}
	}

	type peak struct {
		rho   int
		theta int
		votes int
	}
	peaks := make([]peak, 0)

	for r := 0; r < numRho; r++ {
		for t := 0; t < numAngles; t++ {
			votes := accumulator[r*numAngles+t]
			if votes < d.Config.VoteThreshold {
				continue
			}
			isMax := true
			for dr := -2; dr <= 2 && isMax; dr++ {
				for dt := -2; dt <= 2 && isMax; dt++ {
					if dr == 0 && dt == 0 {
						continue
					}
					nr := r + dr
					nt := (t + dt + numAngles) % numAngles
					if nr >= 0 && nr < numRho && accumulator[nr*numAngles+nt] > votes {
						isMax = false
					}
				}
			}
			if isMax {
				peaks = append(peaks, peak{rho: r - maxDist, theta: t, votes: votes})
			}
		}
	}

	sort.SliceStable(peaks, func(i, j int) bool {
		return peaks[i].votes > peaks[j].votes
	})
	if len(peaks) > maxPeaks {
		peaks = peaks[:maxPeaks]
	}

	segments := make([]Segment, 0)
	for _, p := range peaks {
		segments = append(segments, d.walkLine(edges, float64(p.rho), cosT[p.theta], sinT[p.theta])...)
	}
	return segments
}

// walkLine follows x*cos + y*sin = rho across the image, one pixel per step
// along its dominant axis, and returns the segments it finds.
func (d *HoughDetector) walkLine(edges *imaging.Mask, rho, cosA, sinA float64) []Segment {
	width, height := edges.Width, edges.Height
	segments := make([]Segment, 0)

	var start, last Point
	open := false
	gap := 0

	closeSegment := func() {
		if !open {
			return
		}
		seg := Segment{Start: start, End: last}
		if seg.Length() >= float64(d.Config.MinLineLength) {
			segments = append(segments, seg)
		}
		open = false
	}

	step := func(p Point, hit bool) {
		if hit {
			if !open {
				start = p
				open = true
			}
			last = p
			gap = 0
			return
		}
		if open {
			gap++
			if gap > d.Config.MaxLineGap {
				closeSegment()
			}
		}
	}

	if math.Abs(sinA) >= math.Abs(cosA) {
		// Mostly horizontal: one sample per column.
		for x := 0; x < width; x++ {
			y := int(math.Round((rho - float64(x)*cosA) / sinA))
			if y < 0 || y >= height {
				step(Point{}, false)
				continue
			}
			hit := edges.At(x, y) || edges.At(x, y-1) || edges.At(x, y+1)
			step(Point{X: x, Y: y}, hit)
		}
	} else {
		for y := 0; y < height; y++ {
			x := int(math.Round((rho - float64(y)*sinA) / cosA))
			if x < 0 || x >= width {
				step(Point{}, false)
				continue
			}
			hit := edges.At(x, y) || edges.At(x-1, y) || edges.At(x+1, y)
			step(Point{X: x, Y: y}, hit)
		}
	}
	closeSegment()

	return segments
}
