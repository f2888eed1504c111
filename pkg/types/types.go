// Package types defines the wire protocol shared by the control plane and
// its clients.
//
// The protocol is newline-delimited JSON over a local stream socket. Each
// request is one JSON object terminated by '\n'; each response is one JSON
// object terminated by '\n'. A response carries exactly one of result or
// error, never both.
package types

import "encoding/json"

// Request is a JSON-RPC style request sent to the control plane.
type Request struct {
	ID     int64       `json:"id"`
	Method string      `json:"method"`
	Params interface{} `json:"params,omitempty"`
}

// Response is a JSON-RPC style response from the control plane.
type Response struct {
	ID     int64            `json:"id"`
	Result *json.RawMessage `json:"result,omitempty"`
	Error  *ResponseError   `json:"error,omitempty"`
}

// ResponseError is the error member of a response envelope.
type ResponseError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// PingResult from ping
type PingResult struct {
	Status string `json:"status"`
}

// SetBreakpointParams for set_breakpoint
type SetBreakpointParams struct {
	Path    string `json:"path"`
	Line    int    `json:"line"`
	Enabled *bool  `json:"enabled,omitempty"`
}

// BreakpointResult from set_breakpoint
type BreakpointResult struct {
	Success bool   `json:"success"`
	Path    string `json:"path"`
	Line    int    `json:"line"`
	Enabled bool   `json:"enabled"`
}

// SuccessResult for methods that only report success
type SuccessResult struct {
	Success bool `json:"success"`
}

// DebuggerStateResult from get_debugger_state
type DebuggerStateResult struct {
	Paused     bool `json:"paused"`
	Active     bool `json:"active"`
	Debuggable bool `json:"debuggable"`
}

// StepParams for debug_step
type StepParams struct {
	Mode string `json:"mode,omitempty"`
}

// StepResult from debug_step
type StepResult struct {
	Success bool   `json:"success"`
	Mode    string `json:"mode"`
}

// RunSceneParams for run_scene
type RunSceneParams struct {
	ScenePath      string  `json:"scene_path"`
	TimeoutSeconds float64 `json:"timeout_seconds,omitempty"`
}

// RunParams for run_main_scene / run_current_scene
type RunParams struct {
	TimeoutSeconds float64 `json:"timeout_seconds,omitempty"`
}

// SceneResult from the scene control methods
type SceneResult struct {
	Success   bool   `json:"success"`
	Action    string `json:"action"`
	ScenePath string `json:"scene_path,omitempty"`
}

// SceneTreeResult from get_remote_scene_tree
type SceneTreeResult struct {
	Tree   string `json:"tree"`
	Length int    `json:"length"`
}

// GetNodePropertiesParams for get_remote_node_properties
type GetNodePropertiesParams struct {
	NodePath string `json:"node_path"`
}

// NodeProperty is one property of a remote node
type NodeProperty struct {
	Name  string `json:"name"`
	Value string `json:"value"`
	Type  string `json:"type"`
}

// NodePropertiesResult from get_remote_node_properties
type NodePropertiesResult struct {
	NodePath   string         `json:"node_path"`
	Properties []NodeProperty `json:"properties"`
	Count      int            `json:"count"`
}

// GetOutputParams for get_output
type GetOutputParams struct {
	NewOnly bool `json:"new_only"`
	Clear   bool `json:"clear"`
}

// OutputResult from get_output
type OutputResult struct {
	Output      string `json:"output"`
	Length      int    `json:"length"`
	TotalLength int    `json:"total_length"`
}
