package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/michaelbrown/mentor/internal/app"
	"github.com/michaelbrown/mentor/internal/config"
	"github.com/michaelbrown/mentor/internal/sandbox"
	"github.com/michaelbrown/mentor/internal/suggest"
)

const maxOutput = 4000

type runner struct {
	mentor *app.Mentor
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Printf("config: %v (using defaults)", err)
		cfg = &config.Config{}
	}
	m, err := app.New(cfg, app.Options{})
	if err != nil {
		log.Fatalf("setting up: %v", err)
	}
	r := &runner{mentor: m}

	s := server.NewMCPServer("mentor-script-runner", "0.1.0")

	s.AddTool(mcp.Tool{
		Name:        "script_run",
		Description: "Run JavaScript in an isolated sandbox. Only console, timers and core builtins are available; there is no filesystem, network or module loading.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "JavaScript source to execute",
				},
			},
			Required: []string{"code"},
		},
	}, r.handleScriptRun)

	s.AddTool(mcp.Tool{
		Name:        "script_hints",
		Description: "Get up to four beginner-friendly hints for a JavaScript script. Hints point in the right direction without giving a full solution.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]any{
				"code": map[string]any{
					"type":        "string",
					"description": "JavaScript source to analyze",
				},
				"errors": map[string]any{
					"type":        "array",
					"items":       map[string]any{"type": "string"},
					"description": "Errors from a previous run (optional; the script is run when omitted)",
				},
				"policy": map[string]any{
					"type":        "string",
					"description": "auto, remote or heuristic (optional)",
				},
			},
			Required: []string{"code"},
		},
	}, r.handleScriptHints)

	if err := server.ServeStdio(s); err != nil {
		fmt.Printf("server error: %v\n", err)
	}
}

func (r *runner) handleScriptRun(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]any)
	if args == nil {
		return errResult("error: invalid arguments"), nil
	}

	code, _ := args["code"].(string)
	if code == "" {
		return errResult("error: 'code' is required"), nil
	}

	res, err := r.mentor.Engine.Exec(ctx, sandbox.ExecOpts{Code: code})
	if err != nil {
		return errResult(fmt.Sprintf("error: %v", err)), nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: formatResult(*res)}},
		IsError: !res.OK(),
	}, nil
}

func (r *runner) handleScriptHints(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]any)
	if args == nil {
		return errResult("error: invalid arguments"), nil
	}

	code, _ := args["code"].(string)
	if code == "" {
		return errResult("error: 'code' is required"), nil
	}

	var policy suggest.Policy
	if name, _ := args["policy"].(string); name != "" {
		p, err := suggest.ParsePolicy(name)
		if err != nil {
			return errResult(fmt.Sprintf("error: %v", err)), nil
		}
		policy = p
	}

	var errs []string
	if raw, ok := args["errors"].([]any); ok {
		for _, e := range raw {
			if s, ok := e.(string); ok {
				errs = append(errs, s)
			}
		}
	} else {
		errs = r.mentor.Engine.Execute(code).Errors
	}

	list, err := r.mentor.Suggest(ctx, policy, code, errs)
	if err != nil {
		return errResult(fmt.Sprintf("error: %v", err)), nil
	}

	data, err := json.MarshalIndent(list, "", "  ")
	if err != nil {
		return errResult(fmt.Sprintf("error: %v", err)), nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: string(data)}},
	}, nil
}

func formatResult(res sandbox.Result) string {
	var output strings.Builder
	if len(res.Output) > 0 {
		output.WriteString(strings.Join(res.Output, "\n"))
	}
	if len(res.Errors) > 0 {
		if output.Len() > 0 {
			output.WriteString("\n")
		}
		output.WriteString("ERRORS:\n" + strings.Join(res.Errors, "\n"))
	}
	if output.Len() == 0 {
		output.WriteString("(no output)")
	}
	output.WriteString(fmt.Sprintf("\nexecution time: %dms", res.ExecutionTimeMs))

	text := output.String()
	if len(text) > maxOutput {
		text = text[:maxOutput] + "\n... (output truncated)"
	}
	return text
}

func errResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
		IsError: true,
	}
}
