// Package ocr produces word annotations for forms that have none.
//
// Tesseract (via gosseract/v2) finds word boxes; Records turns them into
// IAM-style words.txt records so the annotation-driven split can run on any
// scan. Words below the confidence floor are written with status "er" and are
// ignored by the split.
//
// # Prerequisites
//
// Tesseract and its language data must be installed on the system:
//   - Ubuntu/Debian: apt-get install tesseract-ocr tesseract-ocr-eng
//   - macOS: brew install tesseract
//
// Printed text is recognized far more reliably than handwriting, so generated
// annotations place the split above the first confidently read word. Review
// them before using them as ground truth.
package ocr
