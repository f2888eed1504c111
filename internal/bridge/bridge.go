// Package bridge exposes the control plane's methods as MCP tools over
// stdio, for use by agent frontends that speak the Model Context Protocol.
package bridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hostpeek/hostpeek/internal/client"
	"github.com/hostpeek/hostpeek/internal/version"
)

// NewServer creates the MCP server with every tool registered against the
// given control plane client.
func NewServer(c *client.Client) *server.MCPServer {
	s := server.NewMCPServer(
		"hostpeek-mcp",
		version.Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	register(s, c)
	return s
}

// ServeStdio runs the MCP server on stdin/stdout until EOF
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func register(s *server.MCPServer, c *client.Client) {
	s.AddTool(
		mcp.NewTool("run_main_scene",
			mcp.WithDescription("Run the workspace's main scene"),
			mcp.WithNumber("timeout_seconds",
				mcp.Description("Automatically stop the scene after this many seconds (0 = run until stopped)"),
			),
		),
		makeRunMainScene(c),
	)

	s.AddTool(
		mcp.NewTool("run_scene",
			mcp.WithDescription("Run a specific scene file"),
			mcp.WithString("scene_path",
				mcp.Required(),
				mcp.Description("Path to the scene file, e.g. res://scenes/game.tscn"),
			),
			mcp.WithNumber("timeout_seconds",
				mcp.Description("Automatically stop the scene after this many seconds (0 = run until stopped)"),
			),
		),
		makeRunScene(c),
	)

	s.AddTool(
		mcp.NewTool("run_current_scene",
			mcp.WithDescription("Run the scene currently open in the host"),
			mcp.WithNumber("timeout_seconds",
				mcp.Description("Automatically stop the scene after this many seconds (0 = run until stopped)"),
			),
		),
		makeRunCurrentScene(c),
	)

	s.AddTool(
		mcp.NewTool("stop_scene",
			mcp.WithDescription("Stop the currently running scene"),
		),
		makeStopScene(c),
	)

	s.AddTool(
		mcp.NewTool("get_output",
			mcp.WithDescription("Get output text from the host (print statements, errors, warnings)"),
			mcp.WithBoolean("new_only",
				mcp.Description("Only return output added since the last clear"),
			),
			mcp.WithBoolean("clear",
				mcp.Description("Mark the current position so later new_only calls start from it"),
			),
		),
		makeGetOutput(c),
	)

	s.AddTool(
		mcp.NewTool("get_remote_scene_tree",
			mcp.WithDescription("Get the instantiated node tree of the running program"),
		),
		makeGetRemoteSceneTree(c),
	)

	s.AddTool(
		mcp.NewTool("get_remote_node_properties",
			mcp.WithDescription("Get the properties of a node in the running program"),
			mcp.WithString("node_path",
				mcp.Required(),
				mcp.Description("Node path, e.g. /root/Main/Player"),
			),
		),
		makeGetRemoteNodeProperties(c),
	)

	s.AddTool(
		mcp.NewTool("set_breakpoint",
			mcp.WithDescription("Set or remove a breakpoint. Breakpoints persist across debug sessions and are reapplied when a new session starts."),
			mcp.WithString("path",
				mcp.Required(),
				mcp.Description("Source file path, e.g. res://player.gd"),
			),
			mcp.WithNumber("line",
				mcp.Required(),
				mcp.Description("1-based line number"),
			),
			mcp.WithBoolean("enabled",
				mcp.Description("Set false to remove the breakpoint (default true)"),
			),
		),
		makeSetBreakpoint(c),
	)

	s.AddTool(
		mcp.NewTool("clear_breakpoints",
			mcp.WithDescription("Remove all breakpoints"),
		),
		makeClearBreakpoints(c),
	)

	s.AddTool(
		mcp.NewTool("get_debugger_state",
			mcp.WithDescription("Get debugger state: whether a session is active, paused, and accepting debug commands"),
		),
		makeGetDebuggerState(c),
	)

	s.AddTool(
		mcp.NewTool("debug_continue",
			mcp.WithDescription("Resume execution when paused at a breakpoint"),
		),
		makeDebugContinue(c),
	)

	s.AddTool(
		mcp.NewTool("debug_break",
			mcp.WithDescription("Pause the running session"),
		),
		makeDebugBreak(c),
	)

	s.AddTool(
		mcp.NewTool("debug_step",
			mcp.WithDescription("Step the paused session"),
			mcp.WithString("mode",
				mcp.Description("Step mode: into, over, or out (default over)"),
			),
		),
		makeDebugStep(c),
	)
}

func makeRunMainScene(c *client.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if !c.IsConnected() {
			return mcp.NewToolResultError("not connected to the control plane"), nil
		}
		timeout := req.GetFloat("timeout_seconds", 0)
		if _, err := c.RunMainScene(ctx, timeout); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to run main scene: %v", err)), nil
		}
		return mcp.NewToolResultText("Main scene started"), nil
	}
}

func makeRunScene(c *client.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if !c.IsConnected() {
			return mcp.NewToolResultError("not connected to the control plane"), nil
		}
		scenePath, err := req.RequireString("scene_path")
		if err != nil {
			return mcp.NewToolResultError("missing required parameter: scene_path"), nil
		}
		timeout := req.GetFloat("timeout_seconds", 0)
		if _, err := c.RunScene(ctx, scenePath, timeout); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to run scene: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Scene started: %s", scenePath)), nil
	}
}

func makeRunCurrentScene(c *client.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if !c.IsConnected() {
			return mcp.NewToolResultError("not connected to the control plane"), nil
		}
		timeout := req.GetFloat("timeout_seconds", 0)
		if _, err := c.RunCurrentScene(ctx, timeout); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to run current scene: %v", err)), nil
		}
		return mcp.NewToolResultText("Current scene started"), nil
	}
}

func makeStopScene(c *client.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if !c.IsConnected() {
			return mcp.NewToolResultError("not connected to the control plane"), nil
		}
		if err := c.StopScene(ctx); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to stop scene: %v", err)), nil
		}
		return mcp.NewToolResultText("Scene stopped"), nil
	}
}

func makeGetOutput(c *client.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if !c.IsConnected() {
			return mcp.NewToolResultError("not connected to the control plane"), nil
		}
		newOnly := req.GetBool("new_only", false)
		clear := req.GetBool("clear", false)

		result, err := c.GetOutput(ctx, newOnly, clear)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to get output: %v", err)), nil
		}
		if result.Length == 0 {
			return mcp.NewToolResultText("No output captured"), nil
		}
		return mcp.NewToolResultText(result.Output), nil
	}
}

func makeGetRemoteSceneTree(c *client.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if !c.IsConnected() {
			return mcp.NewToolResultError("not connected to the control plane"), nil
		}
		result, err := c.GetRemoteSceneTree(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to get scene tree: %v", err)), nil
		}
		if result.Length == 0 {
			return mcp.NewToolResultText("Scene tree is empty"), nil
		}
		return mcp.NewToolResultText(result.Tree), nil
	}
}

func makeGetRemoteNodeProperties(c *client.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if !c.IsConnected() {
			return mcp.NewToolResultError("not connected to the control plane"), nil
		}
		nodePath, err := req.RequireString("node_path")
		if err != nil {
			return mcp.NewToolResultError("missing required parameter: node_path"), nil
		}
		result, err := c.GetRemoteNodeProperties(ctx, nodePath)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to get node properties: %v", err)), nil
		}
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("%s (%d properties)\n", result.NodePath, result.Count))
		for _, p := range result.Properties {
			sb.WriteString(fmt.Sprintf("  %s = %s (%s)\n", p.Name, p.Value, p.Type))
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

func makeSetBreakpoint(c *client.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if !c.IsConnected() {
			return mcp.NewToolResultError("not connected to the control plane"), nil
		}
		path, err := req.RequireString("path")
		if err != nil {
			return mcp.NewToolResultError("missing required parameter: path"), nil
		}
		line, err := req.RequireFloat("line")
		if err != nil {
			return mcp.NewToolResultError("missing required parameter: line"), nil
		}
		enabled := req.GetBool("enabled", true)

		result, err := c.SetBreakpoint(ctx, path, int(line), enabled)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to set breakpoint: %v", err)), nil
		}
		verb := "set"
		if !result.Enabled {
			verb = "removed"
		}
		return mcp.NewToolResultText(fmt.Sprintf("Breakpoint %s at %s:%d", verb, result.Path, result.Line)), nil
	}
}

func makeClearBreakpoints(c *client.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if !c.IsConnected() {
			return mcp.NewToolResultError("not connected to the control plane"), nil
		}
		if err := c.ClearBreakpoints(ctx); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to clear breakpoints: %v", err)), nil
		}
		return mcp.NewToolResultText("All breakpoints cleared"), nil
	}
}

func makeGetDebuggerState(c *client.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if !c.IsConnected() {
			return mcp.NewToolResultError("not connected to the control plane"), nil
		}
		state, err := c.GetDebuggerState(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to get debugger state: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf(
			"active: %v\npaused: %v\ndebuggable: %v",
			state.Active, state.Paused, state.Debuggable)), nil
	}
}

func makeDebugContinue(c *client.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if !c.IsConnected() {
			return mcp.NewToolResultError("not connected to the control plane"), nil
		}
		if err := c.DebugContinue(ctx); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to continue: %v", err)), nil
		}
		return mcp.NewToolResultText("Execution resumed"), nil
	}
}

func makeDebugBreak(c *client.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if !c.IsConnected() {
			return mcp.NewToolResultError("not connected to the control plane"), nil
		}
		if err := c.DebugBreak(ctx); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to break: %v", err)), nil
		}
		return mcp.NewToolResultText("Break requested"), nil
	}
}

func makeDebugStep(c *client.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if !c.IsConnected() {
			return mcp.NewToolResultError("not connected to the control plane"), nil
		}
		mode := req.GetString("mode", "over")
		result, err := c.DebugStep(ctx, mode)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to step: %v", err)), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Stepped (%s)", result.Mode)), nil
	}
}
