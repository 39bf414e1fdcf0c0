package segment

import (
	"fmt"
	"image"

	"github.com/ironsheep/form-segment/internal/formerr"
	"github.com/ironsheep/form-segment/internal/imaging"
)

// Role names the part of the form a band holds.
type Role string

const (
	RoleHeader          Role = "header"
	RoleComputerWritten Role = "computer_written"
	RoleHandWritten     Role = "hand_written"
	RoleBottom          Role = "bottom"
)

// Dir returns the output subdirectory for the role.
func (r Role) Dir() string {
	if r == RoleHandWritten {
		return "handwritten"
	}
	return string(r)
}

// Band is a full-width crop of rows [Top, Bottom).
type Band struct {
	Role   Role        `json:"role" yaml:"role"`
	Top    int         `json:"top" yaml:"top"`
	Bottom int         `json:"bottom" yaml:"bottom"`
	Image  image.Image `json:"-" yaml:"-"`
}

// Height returns the number of rows in the band.
func (b *Band) Height() int {
	return b.Bottom - b.Top
}

// Empty reports a zero-height band. Empty bands are still returned so callers
// decide whether to persist them.
func (b *Band) Empty() bool {
	return b.Height() == 0
}

// Regions is the outcome of slicing one form. Header and Bottom are nil when the
// convention in use does not produce them.
type Regions struct {
	Header          *Band `json:"header,omitempty" yaml:"header,omitempty"`
	ComputerWritten *Band `json:"computer_written" yaml:"computer_written"`
	HandWritten     *Band `json:"hand_written" yaml:"hand_written"`
	Bottom          *Band `json:"bottom,omitempty" yaml:"bottom,omitempty"`

	// Lines are the split rows the regions were cut at.
	Lines []int `json:"lines" yaml:"lines"`
}

// Bands returns the non-nil bands top to bottom.
func (r *Regions) Bands() []*Band {
	bands := make([]*Band, 0, 4)
	for _, b := range []*Band{r.Header, r.ComputerWritten, r.HandWritten, r.Bottom} {
		if b != nil {
			bands = append(bands, b)
		}
	}
	return bands
}

// SliceBySingleBoundary splits img at row y into the printed part [0, y) and the
// handwritten part [y, height).
func SliceBySingleBoundary(img image.Image, y int) (*Regions, error) {
	height := img.Bounds().Dy()
	if y < 0 || y > height {
		return nil, fmt.Errorf("%w: boundary %d outside [0,%d]", formerr.ErrInvalidSplitGeometry, y, height)
	}

	top, err := cut(img, RoleComputerWritten, 0, y)
	if err != nil {
		return nil, err
	}
	bottom, err := cut(img, RoleHandWritten, y, height)
	if err != nil {
		return nil, err
	}

	return &Regions{
		ComputerWritten: top,
		HandWritten:     bottom,
		Lines:           []int{y},
	}, nil
}

// SliceByBandBoundaries treats splits as rule lines: the printed label band
// lies between the first two, the handwriting below the second, and a third
// split, when present, starts the bottom band.
//
// The strip above the first split is returned as Header so that the bands
// always cover every row of the image exactly once.
func SliceByBandBoundaries(img image.Image, splits []int) (*Regions, error) {
	height := img.Bounds().Dy()
	if err := validateSplits(splits, height); err != nil {
		return nil, err
	}

	bounds := append(append([]int{0}, splits...), height)
	roles := []Role{RoleHeader, RoleComputerWritten, RoleHandWritten, RoleBottom}

	regions := &Regions{Lines: append([]int(nil), splits...)}
	for i := 0; i+1 < len(bounds); i++ {
		band, err := cut(img, roles[i], bounds[i], bounds[i+1])
		if err != nil {
			return nil, err
		}
		switch roles[i] {
		case RoleHeader:
			regions.Header = band
		case RoleComputerWritten:
			regions.ComputerWritten = band
		case RoleHandWritten:
			regions.HandWritten = band
		case RoleBottom:
			regions.Bottom = band
		}
	}

	return regions, nil
}

func validateSplits(splits []int, height int) error {
	if len(splits) < 2 {
		return fmt.Errorf("%w: got %d splits, need 2 or 3", formerr.ErrInsufficientLines, len(splits))
	}
	if len(splits) > 3 {
		return fmt.Errorf("%w: got %d splits, at most 3 allowed", formerr.ErrInvalidSplitGeometry, len(splits))
	}
	for i, y := range splits {
		if y < 0 || y > height {
			return fmt.Errorf("%w: split %d outside [0,%d]", formerr.ErrInvalidSplitGeometry, y, height)
		}
		if i > 0 && y < splits[i-1] {
			return fmt.Errorf("%w: splits %v not ascending", formerr.ErrInvalidSplitGeometry, splits)
		}
	}
	return nil
}

func cut(img image.Image, role Role, top, bottom int) (*Band, error) {
	crop, err := imaging.CropRows(img, top, bottom)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", formerr.ErrInvalidSplitGeometry, err)
	}
	return &Band{Role: role, Top: top, Bottom: bottom, Image: crop}, nil
}
