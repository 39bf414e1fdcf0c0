package server

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

var pathProperty = map[string]interface{}{
	"type":        "string",
	"minLength":   1,
	"description": "Absolute path to the form image (PNG, JPEG, TIFF, BMP, GIF)",
}

var variantProperty = map[string]interface{}{
	"type":        "string",
	"enum":        []string{"morph", "hough"},
	"description": "Line detector: morphological opening (default) or edge/Hough transform",
}

var policyProperty = map[string]interface{}{
	"type":        "string",
	"enum":        []string{"fail", "estimate"},
	"description": "What to do when fewer than two rule lines are found: report an error, or fall back to estimated positions",
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		{
			Name:        "form_dimensions",
			Description: "Get the width and height of a form image.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
				},
				"required": []string{"path"},
			},
		},

		// Split detection
		{
			Name:        "form_detect_lines",
			Description: "Detect the horizontal rule lines that separate the header, printed, handwritten and signature regions of a form. Returns ascending row indices.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":    pathProperty,
					"variant": variantProperty,
					"policy":  policyProperty,
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "form_annotation_split",
			Description: "Compute the boundary between printed and handwritten text from words.txt annotation lines for this form. The split sits a margin above the topmost trusted word.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
					"words": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string"},
						"description": "Annotation lines in words.txt format: word_id status graylevel x y w h tag text",
					},
					"margin": map[string]interface{}{
						"type":        "integer",
						"minimum":     0,
						"description": "Pixels kept above the topmost word. Default 20",
						"default":     20,
					},
				},
				"required": []string{"path", "words"},
			},
		},

		// Segmentation
		{
			Name:        "form_segment",
			Description: "Split a form into region images and write them under output_dir/<region>/<form id>.png. PDF inputs are split page by page.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty,
					"output_dir": map[string]interface{}{
						"type":        "string",
						"minLength":   1,
						"description": "Directory receiving the region subdirectories",
					},
					"mode": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"lines", "annotations"},
						"description": "lines splits on detected rules; annotations splits once using the words argument. Default lines",
						"default":     "lines",
					},
					"variant": variantProperty,
					"policy":  policyProperty,
					"words": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string"},
						"description": "Annotation lines, required in annotations mode",
					},
					"save_header": map[string]interface{}{
						"type":        "boolean",
						"description": "Also write the band above the first rule",
					},
				},
				"required": []string{"path", "output_dir"},
			},
		},

		// Debugging
		{
			Name:        "form_debug_overlay",
			Description: "Run line detection and return the form as base64-encoded PNG with detected rules drawn in red and estimated ones in yellow.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":    pathProperty,
					"variant": variantProperty,
					"policy":  policyProperty,
				},
				"required": []string{"path"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
