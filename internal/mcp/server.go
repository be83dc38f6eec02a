package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagiedev/scripthost-go/internal/protocol"
	"github.com/wagiedev/scripthost-go/internal/session"
)

// Tool names.
const (
	RunScriptTool = "run_script"
	ResetHostTool = "reset_host"
)

// Runner runs scripts on a host selected by command line.
type Runner interface {
	Run(ctx context.Context, argv []string, script string, opts ...session.RunOption) (*protocol.Result, error)
	Evict(command string, args ...string) bool
}

// Config configures the tool server.
type Config struct {
	Name    string
	Version string

	// Command is the host command line every tool call runs against.
	Command []string

	Logger *slog.Logger
}

// RunScriptInput is the argument object of the run_script tool.
type RunScriptInput struct {
	Script           string `json:"script"`
	TimeoutMS        int64  `json:"timeout_ms,omitempty"`        //nolint:tagliatelle // MCP tools use snake_case
	WorkingDirectory string `json:"working_directory,omitempty"` //nolint:tagliatelle // MCP tools use snake_case
}

// runScriptSchema is the input schema of the run_script tool.
var runScriptSchema = &jsonschema.Schema{
	Type: "object",
	Properties: map[string]*jsonschema.Schema{
		"script": {
			Type:        "string",
			Description: "Script text to run in the persistent host session.",
		},
		"timeout_ms": {
			Type:        "integer",
			Description: "Timeout in milliseconds. Defaults to the server's configured timeout.",
		},
		"working_directory": {
			Type:        "string",
			Description: "Directory to run this script in. Later calls start in the host's startup directory again.",
		},
	},
	Required: []string{"script"},
}

// NewServer creates an MCP server exposing runner as tools.
func NewServer(cfg *Config, runner Runner) *mcp.Server {
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	log = log.With("component", "mcp_server")

	server := mcp.NewServer(&mcp.Implementation{Name: cfg.Name, Version: cfg.Version}, nil)

	server.AddTool(
		NewTool(RunScriptTool, "Run a script in a persistent script host and return its stdout, stderr and exit code.", runScriptSchema),
		func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			var in RunScriptInput
			if err := decodeArguments(req, &in); err != nil {
				return ErrorResult(err.Error()), nil
			}

			if in.Script == "" {
				return ErrorResult("script is required"), nil
			}

			var opts []session.RunOption
			if in.TimeoutMS > 0 {
				opts = append(opts, session.WithTimeout(time.Duration(in.TimeoutMS)*time.Millisecond))
			}

			if in.WorkingDirectory != "" {
				opts = append(opts, session.WithWorkingDirectory(in.WorkingDirectory))
			}

			log.Debug("Running script", "script_len", len(in.Script), "timeout_ms", in.TimeoutMS)

			res, err := runner.Run(ctx, cfg.Command, in.Script, opts...)
			if err != nil {
				log.Error("Script host unavailable", "error", err)

				return ErrorResult("script host unavailable: " + err.Error()), nil
			}

			return ResultContent(res)
		},
	)

	server.AddTool(
		NewTool(ResetHostTool, "Terminate the script host. The next run_script call starts a fresh one.", &jsonschema.Schema{Type: "object"}),
		func(context.Context, *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			if len(cfg.Command) == 0 || !runner.Evict(cfg.Command[0], cfg.Command[1:]...) {
				return TextResult("no script host running"), nil
			}

			log.Info("Script host reset")

			return TextResult("script host terminated"), nil
		},
	)

	return server
}

// Serve runs server over stdin/stdout until the client disconnects or ctx
// is done.
func Serve(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

// ResultContent renders a script Result as a tool result. Host failures
// (ErrorMessage set or a dead session) are flagged as tool errors; a script
// exiting non-zero is not.
func ResultContent(res *protocol.Result) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(res)
	if err != nil {
		return nil, fmt.Errorf("marshal result: %w", err)
	}

	out := TextResult(string(data))
	out.StructuredContent = res
	out.IsError = res.ErrorMessage != "" || res.ExitCode < 0

	return out, nil
}

// TextResult creates a CallToolResult with text content.
func TextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

// ErrorResult creates a CallToolResult indicating an error.
func ErrorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: message},
		},
		IsError: true,
	}
}

// NewTool creates an mcp.Tool with the given parameters.
func NewTool(name, description string, inputSchema *jsonschema.Schema) *mcp.Tool {
	return &mcp.Tool{
		Name:        name,
		Description: description,
		InputSchema: inputSchema,
	}
}

// decodeArguments unmarshals the request arguments into v.
func decodeArguments(req *mcp.CallToolRequest, v any) error {
	if req == nil || req.Params == nil || len(req.Params.Arguments) == 0 {
		return nil
	}

	if err := json.Unmarshal(req.Params.Arguments, v); err != nil {
		return fmt.Errorf("failed to unmarshal arguments: %w", err)
	}

	return nil
}
