// Package annotation reads IAM-style word annotations and turns the boxes of a
// form's handwritten words into a single split row.
//
// A words.txt line carries a word id, a segmentation status and the word's
// bounding box:
//
//	a01-000u-00-00 ok 154 408 768 27 51 AT A
//
// Only records whose status is "ok" are trusted. The split sits Margin pixels
// above the highest trusted box and never leaves [0, height].
package annotation
