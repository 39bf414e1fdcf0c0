// Package source enumerates and decodes the forms of a batch.
//
// A raster file is one form named after the file. A PDF contributes one form
// per page, named <base>-p001, <base>-p002 and so on, rendered with MuPDF.
// Loader adds fixed-delay retries around any Source.
package source
