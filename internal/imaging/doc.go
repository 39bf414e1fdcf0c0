// Package imaging provides the raster plumbing around form segmentation.
//
// It loads scans (PNG, JPEG, GIF, TIFF, BMP), derives binary masks for the
// detectors, cuts full-width row bands, renders debug overlays, and saves crops.
// All operations work with standard Go image.Image types and use a coordinate
// system where (0,0) is at the top-left corner, X increases rightward, and Y
// increases downward.
//
// # Coordinate System
//
// Row bands are half-open: [top, bottom). Row indices are relative to the image
// origin, so callers never need to know an image's Bounds().Min.
//
// # Ownership
//
// Nothing in this package mutates its input. Binarize and EdgeMap allocate
// fresh masks, CropRows returns a copy, and DrawHorizontalLines paints on a copy.
// This lets detectors run concurrently over images owned by different workers.
//
// # Error Handling
//
// Load and ImageCache.Load wrap every failure with formerr.ErrImageLoad so batch
// callers can treat unreadable scans as a per-form skip.
package imaging
