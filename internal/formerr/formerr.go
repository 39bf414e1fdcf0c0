// Package formerr defines the per-form failure taxonomy shared by the detectors,
// the slicer and the batch runner.
//
// Every error in this package is recoverable at form granularity: a batch run
// logs the form identifier with Reason(err) and moves on to the next form.
// Callers wrap these sentinels with fmt.Errorf("...: %w", ...) and match them
// with errors.Is.
package formerr

import "errors"

var (
	// ErrNoValidAnnotations is returned when no word annotation for a form
	// passes the status and field-count filter.
	ErrNoValidAnnotations = errors.New("no valid handwritten word annotations")

	// ErrInsufficientLines is returned when fewer than two horizontal lines are
	// available for band slicing.
	ErrInsufficientLines = errors.New("fewer than two horizontal lines detected")

	// ErrInvalidSplitGeometry is returned for split coordinates that are out of
	// order, out of range, or too many.
	ErrInvalidSplitGeometry = errors.New("invalid split geometry")

	// ErrImageLoad is returned when a form image is missing or cannot be decoded.
	ErrImageLoad = errors.New("image load failure")
)

// Reason maps an error to a short, stable name suitable for log attributes and
// run reports. Unknown errors map to "error".
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoValidAnnotations):
		return "no_valid_annotations"
	case errors.Is(err, ErrInsufficientLines):
		return "insufficient_lines"
	case errors.Is(err, ErrInvalidSplitGeometry):
		return "invalid_split_geometry"
	case errors.Is(err, ErrImageLoad):
		return "image_load_failure"
	default:
		return "error"
	}
}
