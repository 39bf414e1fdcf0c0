// Package detection finds the horizontal rule lines that split a scanned form
// into its label, handwriting and signature bands.
//
// Two interchangeable detectors implement the Detector interface:
//
//   - MorphDetector: binarize, horizontal morphological opening, connected
//     components filtered by width and thickness.
//   - HoughDetector: Sobel edge map, Hough voting, and gap-bridged segment
//     tracing filtered to near-horizontal segments.
//
// Both return a Result holding at most MaxLines ascending, duplicate-free row
// indices in [0, height). NewDetector picks one by variant name.
//
// # Insufficient Lines
//
// What happens when fewer than two lines survive is an explicit Policy rather
// than a property of the algorithm:
//
//   - PolicyEstimate substitutes floor(height*f) for each fallback fraction
//     (0.08, 0.19, 0.75 by default) and marks the Result as Estimated.
//   - PolicyFail returns formerr.ErrInsufficientLines alongside the lines found.
//
// MorphDetector defaults to PolicyEstimate and HoughDetector to PolicyFail.
//
// # Coordinate System
//
// All coordinates use the standard image convention:
//   - Origin (0, 0) at top-left corner
//   - X increases rightward
//   - Y increases downward
//   - Rows are relative to the image origin, not Bounds().Min
//
// # Diagnostics
//
// MorphDetector accepts an optional DebugHook. DebugFile renders detected lines
// in red and estimates in yellow and writes the overlay to one fixed path.
// The hook sees the final result and cannot alter it.
//
// # Limitations
//
// Both detectors assume an upright, single-column form. Skewed scans smear rules
// across rows and may drop below the thickness or horizontality limits.
package detection
