package annotation

import (
	"fmt"
	"image"

	"github.com/ironsheep/form-segment/internal/formerr"
)

// DefaultMargin is the buffer kept above the first handwritten ascender.
const DefaultMargin = 20

// Detector derives the single print/handwriting boundary of a form from the
// boxes of its handwritten words.
type Detector struct {
	// Margin is subtracted from the topmost box row.
	Margin int

	// Status is the only record status trusted for the split.
	Status string

	// MinFields is the shortest record accepted.
	MinFields int
}

// NewDetector returns a detector with the IAM defaults.
func NewDetector() *Detector {
	return &Detector{
		Margin:    DefaultMargin,
		Status:    StatusOK,
		MinFields: DefaultMinFields,
	}
}

// Records parses lines and keeps only the trusted ones.
func (d *Detector) Records(lines []string) []Record {
	records := make([]Record, 0, len(lines))
	for _, line := range lines {
		rec, ok := ParseLine(line, d.MinFields)
		if !ok || rec.Status != d.Status {
			continue
		}
		records = append(records, rec)
	}
	return records
}

// Detect returns max(0, min(y) - Margin) over the trusted records of lines,
// clamped to the image height.
//
// When no record passes the filters it returns formerr.ErrNoValidAnnotations;
// callers skip the form.
func (d *Detector) Detect(img image.Image, lines []string) (int, error) {
	return d.Split(img.Bounds().Dy(), lines)
}

// Split is Detect for callers that know the image height without decoding it.
func (d *Detector) Split(height int, lines []string) (int, error) {
	records := d.Records(lines)
	if len(records) == 0 {
		return 0, fmt.Errorf("%w: %d lines, none usable", formerr.ErrNoValidAnnotations, len(lines))
	}

	top := records[0].Y
	for _, rec := range records[1:] {
		if rec.Y < top {
			top = rec.Y
		}
	}

	split := top - d.Margin
	if split < 0 {
		split = 0
	}
	if split > height {
		split = height
	}
	return split, nil
}
