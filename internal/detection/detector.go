package detection

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/ironsheep/form-segment/internal/formerr"
)

// Detector finds the horizontal rule lines that delimit the regions of a form.
//
// Implementations are stateless: calling Detect twice on the same unmodified
// image yields identical results, and the input image is never written to.
type Detector interface {
	Detect(img image.Image) (*Result, error)
}

// Result is the split coordinate set produced by a detector.
type Result struct {
	// Lines holds ascending, duplicate-free row indices in [0, height).
	Lines []int `json:"lines" yaml:"lines"`

	// Estimated is true when Lines came from the proportional fallback rather
	// than from pixel evidence.
	Estimated bool `json:"estimated" yaml:"estimated"`
}

// Policy selects what a detector does when fewer than two lines survive.
type Policy string

const (
	// PolicyFail reports formerr.ErrInsufficientLines.
	PolicyFail Policy = "fail"

	// PolicyEstimate substitutes the proportional fallback positions.
	PolicyEstimate Policy = "estimate"
)

// ParsePolicy validates a policy name from configuration.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyFail, PolicyEstimate:
		return Policy(s), nil
	}
	return "", fmt.Errorf("unknown insufficient-lines policy %q (want %q or %q)", s, PolicyFail, PolicyEstimate)
}

// DefaultFallbackFractions are the typical rule positions of the target form
// family, as fractions of image height.
var DefaultFallbackFractions = []float64{0.08, 0.19, 0.75}

// DefaultMaxLines caps the number of reported lines: label top, label bottom,
// and the optional signature rule.
const DefaultMaxLines = 3

// Estimate converts fallback fractions into row indices for an image of the
// given height.
//
// Each row is floor(height*fraction), clamped into [0, height). Rows are forced
// strictly ascending so tiny images still get distinct coordinates where
// possible; rows that would fall off the bottom are dropped.
func Estimate(height int, fractions []float64) []int {
	if height <= 0 {
		return nil
	}

	sorted := append([]float64(nil), fractions...)
	sort.Float64s(sorted)

	rows := make([]int, 0, len(sorted))
	for _, f := range sorted {
		y := int(math.Floor(float64(height) * f))
		if y < 0 {
			y = 0
		}
		if y > height-1 {
			y = height - 1
		}
		if n := len(rows); n > 0 && y <= rows[n-1] {
			y = rows[n-1] + 1
		}
		if y > height-1 {
			break
		}
		rows = append(rows, y)
	}
	return rows
}

// mergeLines sorts ys and collapses values within tolerance of the previously
// kept value. A tolerance of 0 removes exact duplicates only.
func mergeLines(ys []int, tolerance int) []int {
	if len(ys) == 0 {
		return []int{}
	}

	sorted := append([]int(nil), ys...)
	sort.Ints(sorted)

	merged := []int{sorted[0]}
	for _, y := range sorted[1:] {
		if y-merged[len(merged)-1] > tolerance {
			merged = append(merged, y)
		}
	}
	return merged
}

// finalize applies the shared tail of every line detector: merge, range check,
// truncation to maxLines, and the insufficient-lines policy.
func finalize(ys []int, height, tolerance, maxLines int, policy Policy, fractions []float64) (*Result, error) {
	if maxLines <= 0 {
		maxLines = DefaultMaxLines
	}

	lines := make([]int, 0, len(ys))
	for _, y := range mergeLines(ys, tolerance) {
		if y >= 0 && y < height {
			lines = append(lines, y)
		}
	}
	if len(lines) > maxLines {
		lines = lines[:maxLines]
	}

	if len(lines) >= 2 {
		return &Result{Lines: lines}, nil
	}

	if policy == PolicyEstimate {
		if fractions == nil {
			fractions = DefaultFallbackFractions
		}
		est := Estimate(height, fractions)
		if len(est) > maxLines {
			est = est[:maxLines]
		}
		if len(est) >= 2 {
			return &Result{Lines: est, Estimated: true}, nil
		}
		return &Result{Lines: est, Estimated: true},
			fmt.Errorf("%w: image height %d too small for fallback estimate", formerr.ErrInsufficientLines, height)
	}

	return &Result{Lines: lines}, fmt.Errorf("%w: found %d", formerr.ErrInsufficientLines, len(lines))
}

// Config selects and parameterizes a line detector.
type Config struct {
	// Variant is "morph" (default) or "hough".
	Variant string
	Morph   MorphConfig
	Hough   HoughConfig
}

// DefaultConfig returns the tuned defaults for the target form family.
func DefaultConfig() Config {
	return Config{
		Variant: VariantMorph,
		Morph:   DefaultMorphConfig(),
		Hough:   DefaultHoughConfig(),
	}
}

// Detector variant names.
const (
	VariantMorph = "morph"
	VariantHough = "hough"
)

// NewDetector creates a detector for the configured variant. debug may be nil;
// only the morphological variant emits debug overlays.
func NewDetector(cfg Config, debug DebugHook) (Detector, error) {
	switch cfg.Variant {
	case VariantMorph, "":
		return &MorphDetector{Config: cfg.Morph, Debug: debug}, nil
	case VariantHough:
		return &HoughDetector{Config: cfg.Hough}, nil
	default:
		return nil, fmt.Errorf("unknown detector variant: %s", cfg.Variant)
	}
}
