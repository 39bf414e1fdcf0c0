// Package server implements the MCP (Model Context Protocol) server for form
// segmentation.
//
// It exposes line detection, annotation splits and region cropping as MCP
// tools so an assistant can inspect a scanned form, check where its rules were
// found, and cut it into regions without a batch run.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
//   - form_dimensions: Get width, height and format
//   - form_detect_lines: Find the rule lines (variant and policy overridable)
//   - form_annotation_split: Print/handwriting boundary from words.txt lines
//   - form_segment: Write region crops to an output directory
//   - form_debug_overlay: Base64 PNG with the detected rules drawn in
//
// Tool arguments are validated against the tool's inputSchema before the
// handler runs. A mismatch is reported as -32602 (invalid params).
//
// # Image Caching
//
// Images are cached by path for the lifetime of the process, so repeated
// calls on the same form decode it once. form_segment reads through the batch
// runner and bypasses the cache.
//
// # Error Handling
//
// Tool failures are JSON-RPC errors with code -32000. The data string starts
// with a stable reason (insufficient_lines, no_valid_annotations,
// invalid_split_geometry, image_load_failure) followed by the Go error text.
//
// # Usage
//
//	srv, err := server.New(server.DefaultOptions())
//	if err != nil {
//	    return err
//	}
//	return srv.Run(ctx, os.Stdin, os.Stdout)
package server
