// Package segment carves a form image into full-width row bands.
//
// Split rows mean different things depending on where they came from, so
// each meaning has its own entry point:
//
//   - SliceBySingleBoundary: one annotation-derived row divides the whole
//     image into computer_written [0,y) and hand_written [y,h).
//   - SliceByBandBoundaries: two or three detected rule lines delimit the
//     label band [y1,y2), the handwriting [y2,y3 or h) and the optional
//     bottom band [y3,h). Rows above y1 are the header.
//
// Bands of zero height are returned, never dropped.
package segment
