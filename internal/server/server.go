package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ironsheep/form-segment/internal/annotation"
	"github.com/ironsheep/form-segment/internal/detection"
	"github.com/ironsheep/form-segment/internal/imaging"
	"github.com/ironsheep/form-segment/internal/source"
)

// ProtocolVersion is the MCP revision the server speaks.
const ProtocolVersion = "2024-11-05"

// Options configures a Server.
type Options struct {
	// Name and Version are reported in serverInfo.
	Name    string
	Version string

	// Detection is the base detector configuration. Tool arguments may
	// override the variant and policy per call.
	Detection detection.Config

	// Annotations is the template for annotation splits.
	Annotations *annotation.Detector

	// DPI renders PDF pages for form_segment.
	DPI float64

	// SaveHeader makes form_segment also write the header band.
	SaveHeader bool

	Logger *slog.Logger
}

// DefaultOptions returns options built from the package defaults.
func DefaultOptions() Options {
	return Options{
		Name:        "form-segment",
		Version:     "dev",
		Detection:   detection.DefaultConfig(),
		Annotations: annotation.NewDetector(),
		DPI:         source.DefaultDPI,
	}
}

// Server handles MCP protocol communication
type Server struct {
	cache   *imaging.ImageCache
	opts    Options
	logger  *slog.Logger
	schemas map[string]*jsonschema.Schema
}

// MCPRequest represents an incoming JSON-RPC request
type MCPRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      interface{}     `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// MCPResponse represents an outgoing JSON-RPC response
type MCPResponse struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Result  interface{} `json:"result,omitempty"`
	Error   *MCPError   `json:"error,omitempty"`
}

// MCPError represents a JSON-RPC error
type MCPError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// MCPNotification represents an outgoing notification (no ID)
type MCPNotification struct {
	JSONRPC string      `json:"jsonrpc"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params,omitempty"`
}

// New creates a server and compiles the input schema of every tool.
func New(opts Options) (*Server, error) {
	if opts.Name == "" {
		opts.Name = "form-segment"
	}
	if opts.Annotations == nil {
		opts.Annotations = annotation.NewDetector()
	}
	if opts.DPI <= 0 {
		opts.DPI = source.DefaultDPI
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	schemas, err := compileSchemas(GetToolDefinitions())
	if err != nil {
		return nil, err
	}

	return &Server{
		cache:   imaging.NewImageCache(),
		opts:    opts,
		logger:  logger,
		schemas: schemas,
	}, nil
}

// compileSchemas compiles each tool's inputSchema on its own compiler so tool
// names never collide as resource URLs.
func compileSchemas(tools []Tool) (map[string]*jsonschema.Schema, error) {
	schemas := make(map[string]*jsonschema.Schema, len(tools))
	for _, tool := range tools {
		raw, err := json.Marshal(tool.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("failed to encode schema for %s: %w", tool.Name, err)
		}

		url := tool.Name + ".json"
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(url, bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("failed to load schema for %s: %w", tool.Name, err)
		}
		schema, err := compiler.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema for %s: %w", tool.Name, err)
		}
		schemas[tool.Name] = schema
	}
	return schemas, nil
}

// Run serves newline-delimited JSON-RPC requests from in, writing responses to
// out, until in is exhausted or ctx is canceled.
func (s *Server) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	// Increase buffer size for large requests
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 1024*1024)

	encoder := json.NewEncoder(out)

	s.logger.Info("mcp server ready", "name", s.opts.Name, "version", s.opts.Version)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req MCPRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.logger.Warn("failed to parse request", "error", err)
			continue
		}

		resp := s.handleRequest(ctx, &req)
		if resp != nil {
			if err := encoder.Encode(resp); err != nil {
				s.logger.Error("failed to encode response", "method", req.Method, "error", err)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	return nil
}

// handleRequest routes requests to appropriate handlers
func (s *Server) handleRequest(ctx context.Context, req *MCPRequest) *MCPResponse {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(req)
	case "notifications/initialized":
		// Client acknowledgment, no response needed
		return nil
	case "tools/list":
		return s.handleToolsList(req)
	case "tools/call":
		return s.handleToolsCall(ctx, req)
	case "ping":
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Result:  map[string]interface{}{},
		}
	default:
		return &MCPResponse{
			JSONRPC: "2.0",
			ID:      req.ID,
			Error: &MCPError{
				Code:    -32601,
				Message: fmt.Sprintf("Method not found: %s", req.Method),
			},
		}
	}
}

// handleInitialize responds to the initialize request
func (s *Server) handleInitialize(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"protocolVersion": ProtocolVersion,
			"capabilities": map[string]interface{}{
				"tools": map[string]interface{}{},
			},
			"serverInfo": map[string]interface{}{
				"name":    s.opts.Name,
				"version": s.opts.Version,
			},
		},
	}
}
