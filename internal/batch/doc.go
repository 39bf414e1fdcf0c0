// Package batch runs form segmentation over a whole source.
//
// A Runner lists the forms of a source.Source, segments them on a bounded
// worker pool and writes each non-empty band to
//
//	<output>/computer_written/<id>.png
//	<output>/handwritten/<id>.png
//	<output>/bottom/<id>.png
//
// A form that cannot be loaded, annotated, detected or sliced is logged with
// its id and reason and counted as skipped; the run always completes. The
// Summary can be written as a YAML report.
//
// A Watcher applies the same per-form pipeline to files as they appear in an
// inbox directory.
package batch
