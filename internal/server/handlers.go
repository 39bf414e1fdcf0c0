package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/ironsheep/form-segment/internal/batch"
	"github.com/ironsheep/form-segment/internal/detection"
	"github.com/ironsheep/form-segment/internal/formerr"
	"github.com/ironsheep/form-segment/internal/imaging"
	"github.com/ironsheep/form-segment/internal/segment"
	"github.com/ironsheep/form-segment/internal/source"
)

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "form_detect_lines").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// Arguments are checked against the tool's inputSchema first; a mismatch is an
// invalid-params error (-32602). The response wraps the tool result in MCP's
// content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000. The
// error data starts with the failure reason, e.g. "insufficient_lines: ...".
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	if err := s.validateArguments(params.Name, params.Arguments); err != nil {
		return s.errorResponse(req.ID, -32602, "Invalid params", err.Error())
	}

	result, err := s.executeTool(ctx, params.Name, params.Arguments)
	if err != nil {
		s.logger.Warn("tool failed", "tool", params.Name, "reason", formerr.Reason(err), "error", err)
		return s.errorResponse(req.ID, -32000, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// validateArguments checks args against the named tool's schema. Unknown tools
// pass through so executeTool can report them.
func (s *Server) validateArguments(name string, args json.RawMessage) error {
	schema, ok := s.schemas[name]
	if !ok {
		return nil
	}

	var doc interface{} = map[string]interface{}{}
	if len(args) > 0 && string(args) != "null" {
		if err := json.Unmarshal(args, &doc); err != nil {
			return fmt.Errorf("arguments are not valid JSON: %w", err)
		}
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("arguments do not match %s schema: %w", name, err)
	}
	return nil
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(ctx context.Context, name string, args json.RawMessage) (interface{}, error) {
	switch name {
	case "form_dimensions":
		return s.handleFormDimensions(args)
	case "form_detect_lines":
		return s.handleFormDetectLines(args)
	case "form_annotation_split":
		return s.handleFormAnnotationSplit(args)
	case "form_segment":
		return s.handleFormSegment(ctx, args)
	case "form_debug_overlay":
		return s.handleFormDebugOverlay(args)
	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// errorResponse creates a JSON-RPC error response with the given details.
func (s *Server) errorResponse(id interface{}, code int, message, data string) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &MCPError{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// toolError prefixes err with its reason so clients can branch on it.
func toolError(err error) error {
	return fmt.Errorf("%s: %w", formerr.Reason(err), err)
}

// detectorArgs are the detection overrides shared by several tools.
type detectorArgs struct {
	Variant string `json:"variant"`
	Policy  string `json:"policy"`
}

// detector builds a detector from the server configuration with the call's
// overrides applied. The policy override targets the selected variant only.
func (s *Server) detector(args detectorArgs) (detection.Detector, error) {
	cfg := s.opts.Detection
	if args.Variant != "" {
		cfg.Variant = args.Variant
	}
	if args.Policy != "" {
		policy, err := detection.ParsePolicy(args.Policy)
		if err != nil {
			return nil, err
		}
		cfg.Morph.Policy = policy
		cfg.Hough.Policy = policy
	}
	return detection.NewDetector(cfg, nil)
}

// === Form Information ===

type pathArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleFormDimensions(args json.RawMessage) (interface{}, error) {
	var p pathArgs
	if err := json.Unmarshal(args, &p); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	dims, err := imaging.GetDimensions(s.cache, p.Path)
	if err != nil {
		return nil, toolError(err)
	}
	return dims, nil
}

// === Split Detection ===

// DetectLinesResult is returned by form_detect_lines.
type DetectLinesResult struct {
	Lines     []int `json:"lines"`
	Estimated bool  `json:"estimated"`
	Width     int   `json:"width"`
	Height    int   `json:"height"`
}

func (s *Server) handleFormDetectLines(args json.RawMessage) (interface{}, error) {
	var p struct {
		pathArgs
		detectorArgs
	}
	if err := json.Unmarshal(args, &p); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	img, err := s.cache.Load(p.Path)
	if err != nil {
		return nil, toolError(err)
	}
	det, err := s.detector(p.detectorArgs)
	if err != nil {
		return nil, err
	}
	result, err := det.Detect(img)
	if err != nil {
		return nil, toolError(err)
	}

	return &DetectLinesResult{
		Lines:     result.Lines,
		Estimated: result.Estimated,
		Width:     img.Bounds().Dx(),
		Height:    img.Bounds().Dy(),
	}, nil
}

// BandRange is a half-open row interval of a form.
type BandRange struct {
	Role   segment.Role `json:"role"`
	Top    int          `json:"top"`
	Bottom int          `json:"bottom"`
}

// AnnotationSplitResult is returned by form_annotation_split.
type AnnotationSplitResult struct {
	Split  int         `json:"split"`
	Height int         `json:"height"`
	Bands  []BandRange `json:"bands"`
}

func (s *Server) handleFormAnnotationSplit(args json.RawMessage) (interface{}, error) {
	var p struct {
		Path   string   `json:"path"`
		Words  []string `json:"words"`
		Margin *int     `json:"margin"`
	}
	if err := json.Unmarshal(args, &p); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	img, err := s.cache.Load(p.Path)
	if err != nil {
		return nil, toolError(err)
	}

	det := *s.opts.Annotations
	if p.Margin != nil {
		det.Margin = *p.Margin
	}
	split, err := det.Detect(img, p.Words)
	if err != nil {
		return nil, toolError(err)
	}

	height := img.Bounds().Dy()
	return &AnnotationSplitResult{
		Split:  split,
		Height: height,
		Bands: []BandRange{
			{Role: segment.RoleComputerWritten, Top: 0, Bottom: split},
			{Role: segment.RoleHandWritten, Top: split, Bottom: height},
		},
	}, nil
}

// === Segmentation ===

// SegmentResult is returned by form_segment. A PDF yields one entry per page.
type SegmentResult struct {
	Forms []batch.FormResult `json:"forms"`
}

func (s *Server) handleFormSegment(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var p struct {
		pathArgs
		detectorArgs
		OutputDir  string   `json:"output_dir"`
		Mode       string   `json:"mode"`
		Words      []string `json:"words"`
		SaveHeader *bool    `json:"save_header"`
	}
	if err := json.Unmarshal(args, &p); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}
	if p.Mode == "" {
		p.Mode = string(batch.ModeLines)
	}
	mode, err := batch.ParseMode(p.Mode)
	if err != nil {
		return nil, err
	}
	if mode == batch.ModeAnnotations && len(p.Words) == 0 {
		return nil, errors.New("annotations mode requires words")
	}

	forms, err := source.FormsForFile(p.Path)
	if err != nil {
		return nil, toolError(err)
	}
	if len(forms) == 0 {
		return nil, toolError(fmt.Errorf("%w: unsupported file type %s", formerr.ErrImageLoad, filepath.Ext(p.Path)))
	}

	det, err := s.detector(p.detectorArgs)
	if err != nil {
		return nil, err
	}

	saveHeader := s.opts.SaveHeader
	if p.SaveHeader != nil {
		saveHeader = *p.SaveHeader
	}

	runner := &batch.Runner{
		Source:      source.NewDirSource(filepath.Dir(p.Path), s.opts.DPI),
		Detector:    det,
		Annotations: s.opts.Annotations,
		Options: batch.Options{
			Mode:       mode,
			OutputDir:  p.OutputDir,
			Workers:    1,
			SaveHeader: saveHeader,
		},
		Logger: s.logger,
	}
	if mode == batch.ModeAnnotations {
		runner.Words = make(map[string][]string, len(forms))
		for _, form := range forms {
			runner.Words[form.ID] = p.Words
		}
	}

	result := &SegmentResult{Forms: make([]batch.FormResult, 0, len(forms))}
	for _, form := range forms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result.Forms = append(result.Forms, runner.ProcessForm(ctx, form))
	}
	return result, nil
}

// === Debugging ===

// DebugOverlayResult is returned by form_debug_overlay. Reason is set when
// detection failed; the overlay then shows whatever lines were found.
type DebugOverlayResult struct {
	imaging.EncodedImage
	Lines     []int  `json:"lines"`
	Estimated bool   `json:"estimated"`
	Reason    string `json:"reason,omitempty"`
}

func (s *Server) handleFormDebugOverlay(args json.RawMessage) (interface{}, error) {
	var p struct {
		pathArgs
		detectorArgs
	}
	if err := json.Unmarshal(args, &p); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	img, err := s.cache.Load(p.Path)
	if err != nil {
		return nil, toolError(err)
	}
	det, err := s.detector(p.detectorArgs)
	if err != nil {
		return nil, err
	}

	out := &DebugOverlayResult{}
	result, err := det.Detect(img)
	if err != nil {
		if result == nil {
			return nil, toolError(err)
		}
		out.Reason = formerr.Reason(err)
	}
	out.Lines = result.Lines
	out.Estimated = result.Estimated

	encoded, err := imaging.EncodePNG(detection.Overlay(img, result.Lines, result.Estimated))
	if err != nil {
		return nil, err
	}
	out.EncodedImage = *encoded
	return out, nil
}
