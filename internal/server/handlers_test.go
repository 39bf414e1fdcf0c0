package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ironsheep/form-segment/internal/batch"
)

// writeRuledForm writes a white PNG with full-width 2px black rules starting
// at each row in rules and returns its path.
func writeRuledForm(t *testing.T, dir, name string, width, height int, rules ...int) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	for _, y := range rules {
		for dy := 0; dy < 2; dy++ {
			for x := 0; x < width; x++ {
				img.Set(x, y+dy, color.Black)
			}
		}
	}

	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

// callTool sends a tools/call request and returns the response.
func callTool(t *testing.T, s *Server, name string, args interface{}) *MCPResponse {
	t.Helper()

	paramsJSON, err := json.Marshal(map[string]interface{}{
		"name":      name,
		"arguments": args,
	})
	if err != nil {
		t.Fatalf("failed to marshal params: %v", err)
	}

	resp := s.handleRequest(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  "tools/call",
		Params:  paramsJSON,
	})
	if resp == nil {
		t.Fatal("handleRequest returned nil")
	}
	return resp
}

// decodeResult unpacks the JSON text content of a successful tool call.
func decodeResult(t *testing.T, resp *MCPResponse, v interface{}) {
	t.Helper()

	if resp.Error != nil {
		t.Fatalf("Unexpected error: %+v", resp.Error)
	}
	content := resp.Result.(map[string]interface{})["content"].([]map[string]interface{})
	if len(content) != 1 || content[0]["type"] != "text" {
		t.Fatalf("unexpected content: %v", content)
	}
	if err := json.Unmarshal([]byte(content[0]["text"].(string)), v); err != nil {
		t.Fatalf("failed to decode tool result: %v", err)
	}
}

// expectError asserts a JSON-RPC error with code and, if non-empty, a data
// prefix.
func expectError(t *testing.T, resp *MCPResponse, code int, prefix string) {
	t.Helper()

	if resp.Error == nil {
		t.Fatalf("expected error %d, got result %v", code, resp.Result)
	}
	if resp.Error.Code != code {
		t.Errorf("error code: got %d, want %d (%v)", resp.Error.Code, code, resp.Error.Data)
	}
	if prefix != "" {
		data, _ := resp.Error.Data.(string)
		if !strings.HasPrefix(data, prefix) {
			t.Errorf("error data: got %q, want prefix %q", data, prefix)
		}
	}
}

func TestHandleToolsCall_FormDimensions(t *testing.T) {
	s := newTestServer(t)
	path := writeRuledForm(t, t.TempDir(), "dims.png", 200, 150)

	var dims struct {
		Width  int    `json:"width"`
		Height int    `json:"height"`
		Format string `json:"format"`
	}
	decodeResult(t, callTool(t, s, "form_dimensions", map[string]interface{}{"path": path}), &dims)

	if dims.Width != 200 || dims.Height != 150 || dims.Format != "png" {
		t.Errorf("dimensions: got %+v", dims)
	}
}

func TestHandleToolsCall_NonExistentFile(t *testing.T) {
	s := newTestServer(t)
	resp := callTool(t, s, "form_dimensions", map[string]interface{}{"path": "/nonexistent/form.png"})
	expectError(t, resp, -32000, "image_load_failure")
}

func TestHandleToolsCall_InvalidTool(t *testing.T) {
	s := newTestServer(t)
	resp := callTool(t, s, "image_crop", map[string]interface{}{})
	expectError(t, resp, -32000, "unknown tool")
}

func TestHandleToolsCall_InvalidParams(t *testing.T) {
	s := newTestServer(t)
	resp := s.handleToolsCall(context.Background(), &MCPRequest{
		JSONRPC: "2.0",
		ID:      1,
		Params:  json.RawMessage(`"not an object"`),
	})
	expectError(t, resp, -32602, "")
}

func TestHandleToolsCall_SchemaValidation(t *testing.T) {
	s := newTestServer(t)
	path := writeRuledForm(t, t.TempDir(), "form.png", 50, 50)

	tests := []struct {
		name string
		tool string
		args interface{}
	}{
		{"missing path", "form_dimensions", map[string]interface{}{}},
		{"null arguments", "form_detect_lines", nil},
		{"path wrong type", "form_dimensions", map[string]interface{}{"path": 7}},
		{"unknown variant", "form_detect_lines", map[string]interface{}{"path": path, "variant": "grid"}},
		{"unknown policy", "form_debug_overlay", map[string]interface{}{"path": path, "policy": "guess"}},
		{"missing words", "form_annotation_split", map[string]interface{}{"path": path}},
		{"negative margin", "form_annotation_split", map[string]interface{}{"path": path, "words": []string{}, "margin": -1}},
		{"fractional margin", "form_annotation_split", map[string]interface{}{"path": path, "words": []string{}, "margin": 2.5}},
		{"missing output_dir", "form_segment", map[string]interface{}{"path": path}},
		{"unknown mode", "form_segment", map[string]interface{}{"path": path, "output_dir": "/tmp", "mode": "both"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expectError(t, callTool(t, s, tt.tool, tt.args), -32602, "arguments")
		})
	}
}

func TestHandleToolsCall_DetectLines(t *testing.T) {
	s := newTestServer(t)
	path := writeRuledForm(t, t.TempDir(), "ruled.png", 400, 500, 50, 100, 400)

	var result DetectLinesResult
	decodeResult(t, callTool(t, s, "form_detect_lines", map[string]interface{}{"path": path}), &result)

	if want := []int{51, 101, 401}; !equalInts(result.Lines, want) {
		t.Errorf("lines: got %v, want %v", result.Lines, want)
	}
	if result.Estimated {
		t.Error("ruled form should not be estimated")
	}
	if result.Width != 400 || result.Height != 500 {
		t.Errorf("size: got %dx%d", result.Width, result.Height)
	}
}

func TestHandleToolsCall_DetectLines_BlankForm(t *testing.T) {
	s := newTestServer(t)
	path := writeRuledForm(t, t.TempDir(), "blank.png", 400, 500)

	var result DetectLinesResult
	decodeResult(t, callTool(t, s, "form_detect_lines", map[string]interface{}{"path": path}), &result)
	if !result.Estimated || !equalInts(result.Lines, []int{40, 95, 375}) {
		t.Errorf("default morph policy should estimate: got %+v", result)
	}

	resp := callTool(t, s, "form_detect_lines", map[string]interface{}{"path": path, "policy": "fail"})
	expectError(t, resp, -32000, "insufficient_lines")
}

func TestHandleToolsCall_DetectLines_HoughPolicy(t *testing.T) {
	s := newTestServer(t)
	path := writeRuledForm(t, t.TempDir(), "blank.png", 400, 500)

	resp := callTool(t, s, "form_detect_lines", map[string]interface{}{"path": path, "variant": "hough"})
	expectError(t, resp, -32000, "insufficient_lines")

	var result DetectLinesResult
	decodeResult(t, callTool(t, s, "form_detect_lines", map[string]interface{}{
		"path":    path,
		"variant": "hough",
		"policy":  "estimate",
	}), &result)
	if !result.Estimated || !equalInts(result.Lines, []int{40, 95, 375}) {
		t.Errorf("hough with estimate policy: got %+v", result)
	}
}

func TestHandleToolsCall_AnnotationSplit(t *testing.T) {
	s := newTestServer(t)
	path := writeRuledForm(t, t.TempDir(), "a01-000u.png", 500, 600)
	words := []string{
		"a01-000u-00-00 ok 154 40 300 90 40 NN first",
		"a01-000u-00-01 er 154 40 100 90 40 NN smudge",
		"a01-000u-01-00 ok 154 40 420 90 40 NN second",
	}

	var result AnnotationSplitResult
	decodeResult(t, callTool(t, s, "form_annotation_split", map[string]interface{}{
		"path":  path,
		"words": words,
	}), &result)

	if result.Split != 280 || result.Height != 600 {
		t.Errorf("split: got %+v", result)
	}
	if len(result.Bands) != 2 || result.Bands[0].Bottom != 280 || result.Bands[1].Top != 280 || result.Bands[1].Bottom != 600 {
		t.Errorf("bands: got %+v", result.Bands)
	}

	decodeResult(t, callTool(t, s, "form_annotation_split", map[string]interface{}{
		"path":   path,
		"words":  words,
		"margin": 0,
	}), &result)
	if result.Split != 300 {
		t.Errorf("zero margin split: got %d, want 300", result.Split)
	}
}

func TestHandleToolsCall_AnnotationSplit_NoValidWords(t *testing.T) {
	s := newTestServer(t)
	path := writeRuledForm(t, t.TempDir(), "a01-002.png", 500, 600)

	resp := callTool(t, s, "form_annotation_split", map[string]interface{}{
		"path":  path,
		"words": []string{"a01-002-00-00 er 154 40 300 90 40 NN bad", "# comment"},
	})
	expectError(t, resp, -32000, "no_valid_annotations")
}

func TestHandleToolsCall_Segment_Lines(t *testing.T) {
	s := newTestServer(t)
	path := writeRuledForm(t, t.TempDir(), "ruled.png", 400, 500, 50, 100, 400)
	outDir := t.TempDir()

	var result SegmentResult
	decodeResult(t, callTool(t, s, "form_segment", map[string]interface{}{
		"path":        path,
		"output_dir":  outDir,
		"save_header": true,
	}), &result)

	if len(result.Forms) != 1 {
		t.Fatalf("expected 1 form, got %d", len(result.Forms))
	}
	form := result.Forms[0]
	if form.ID != "ruled" || form.Status != batch.StatusOK {
		t.Errorf("form result: %+v", form)
	}
	if !equalInts(form.Lines, []int{51, 101, 401}) {
		t.Errorf("lines: got %v", form.Lines)
	}
	if len(form.Written) != 4 {
		t.Errorf("expected 4 files with header, got %v", form.Written)
	}
	for _, dir := range []string{"header", "computer_written", "handwritten", "bottom"} {
		if _, err := os.Stat(filepath.Join(outDir, dir, "ruled.png")); err != nil {
			t.Errorf("missing %s crop: %v", dir, err)
		}
	}
}

func TestHandleToolsCall_Segment_Annotations(t *testing.T) {
	s := newTestServer(t)
	path := writeRuledForm(t, t.TempDir(), "a01-000u.png", 500, 600)
	outDir := t.TempDir()

	resp := callTool(t, s, "form_segment", map[string]interface{}{
		"path":       path,
		"output_dir": outDir,
		"mode":       "annotations",
	})
	expectError(t, resp, -32000, "annotations mode requires words")

	var result SegmentResult
	decodeResult(t, callTool(t, s, "form_segment", map[string]interface{}{
		"path":       path,
		"output_dir": outDir,
		"mode":       "annotations",
		"words":      []string{"a01-000u-00-00 ok 154 40 300 90 40 NN first"},
	}), &result)

	if len(result.Forms) != 1 || !equalInts(result.Forms[0].Lines, []int{280}) {
		t.Fatalf("annotation segment: got %+v", result.Forms)
	}
	if _, err := os.Stat(filepath.Join(outDir, "handwritten", "a01-000u.png")); err != nil {
		t.Errorf("missing handwritten crop: %v", err)
	}
}

func TestHandleToolsCall_Segment_SkippedForm(t *testing.T) {
	s := newTestServer(t)
	path := writeRuledForm(t, t.TempDir(), "single.png", 1000, 800, 300)
	outDir := t.TempDir()

	var result SegmentResult
	decodeResult(t, callTool(t, s, "form_segment", map[string]interface{}{
		"path":       path,
		"output_dir": outDir,
		"variant":    "hough",
	}), &result)

	if len(result.Forms) != 1 {
		t.Fatalf("expected 1 form, got %d", len(result.Forms))
	}
	if result.Forms[0].Status != batch.StatusSkipped || result.Forms[0].Reason != "insufficient_lines" {
		t.Errorf("form result: %+v", result.Forms[0])
	}
	entries, _ := os.ReadDir(outDir)
	if len(entries) != 0 {
		t.Errorf("skipped form should write nothing, found %d entries", len(entries))
	}
}

func TestHandleToolsCall_Segment_UnsupportedFile(t *testing.T) {
	s := newTestServer(t)
	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	resp := callTool(t, s, "form_segment", map[string]interface{}{"path": path, "output_dir": t.TempDir()})
	expectError(t, resp, -32000, "image_load_failure")
}

func TestHandleToolsCall_DebugOverlay(t *testing.T) {
	s := newTestServer(t)
	path := writeRuledForm(t, t.TempDir(), "ruled.png", 400, 500, 50, 100, 400)

	var result DebugOverlayResult
	decodeResult(t, callTool(t, s, "form_debug_overlay", map[string]interface{}{"path": path}), &result)

	if result.Reason != "" || result.Estimated {
		t.Errorf("unexpected reason/estimate: %+v", result)
	}
	if result.MimeType != "image/png" || result.Width != 400 || result.Height != 500 {
		t.Errorf("encoded image header: %+v", result.EncodedImage)
	}

	raw, err := base64.StdEncoding.DecodeString(result.ImageBase64)
	if err != nil {
		t.Fatalf("bad base64: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("bad PNG: %v", err)
	}
	r, g, b, _ := img.At(200, 51).RGBA()
	if r>>8 != 255 || g>>8 != 0 || b>>8 != 0 {
		t.Errorf("detected rule should be red, got (%d,%d,%d)", r>>8, g>>8, b>>8)
	}
}

func TestHandleToolsCall_DebugOverlay_PartialDetection(t *testing.T) {
	s := newTestServer(t)
	path := writeRuledForm(t, t.TempDir(), "single.png", 1000, 800, 300)

	var result DebugOverlayResult
	decodeResult(t, callTool(t, s, "form_debug_overlay", map[string]interface{}{
		"path":    path,
		"variant": "hough",
	}), &result)

	if result.Reason != "insufficient_lines" {
		t.Errorf("reason: got %q", result.Reason)
	}
	if len(result.Lines) != 1 {
		t.Errorf("the single rule should still be drawn, got %v", result.Lines)
	}
	if result.ImageBase64 == "" {
		t.Error("overlay should be returned with a failure reason")
	}
}

func TestExecuteTool_UsesCache(t *testing.T) {
	s := newTestServer(t)
	path := writeRuledForm(t, t.TempDir(), "cached.png", 60, 40)

	if _, err := s.executeTool(context.Background(), "form_dimensions", json.RawMessage(`{"path":"`+path+`"}`)); err != nil {
		t.Fatalf("first call failed: %v", err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if _, err := s.executeTool(context.Background(), "form_dimensions", json.RawMessage(`{"path":"`+path+`"}`)); err != nil {
		t.Errorf("cached image should survive file removal: %v", err)
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
