// Package rpc implements the line protocol spoken over the control socket:
// one JSON-RPC style request per line in, one response per line out.
//
// Envelope handling is deliberately lenient where the wire allows it
// (fractional ids are truncated, a missing id becomes 0, params may be
// absent) and strict where it matters (method must be a string, required
// params must be present with the right type). A handler panic is converted
// into a runtime error envelope so one bad request cannot take down the
// poll loop.
package rpc

import (
	"encoding/json"
	"log"

	"github.com/tidwall/gjson"

	"github.com/hostpeek/hostpeek/internal/debug"
	"github.com/hostpeek/hostpeek/internal/host"
	"github.com/hostpeek/hostpeek/internal/nodepath"
	"github.com/hostpeek/hostpeek/pkg/types"
)

// Dispatcher routes request lines to their handlers. The debug controller
// is required; scene and output collaborators are optional and methods
// touching them report a runtime error while unset.
type Dispatcher struct {
	ctrl      *debug.Controller
	scenes    host.SceneRunner
	output    host.OutputSource
	inspector host.RemoteInspector
}

// NewDispatcher creates a dispatcher bound to the given controller
func NewDispatcher(ctrl *debug.Controller) *Dispatcher {
	return &Dispatcher{ctrl: ctrl}
}

// SetSceneRunner wires the scene playback collaborator
func (d *Dispatcher) SetSceneRunner(r host.SceneRunner) {
	d.scenes = r
}

// SetOutputSource wires the output text collaborator
func (d *Dispatcher) SetOutputSource(o host.OutputSource) {
	d.output = o
}

// SetRemoteInspector wires the remote scene tree collaborator
func (d *Dispatcher) SetRemoteInspector(i host.RemoteInspector) {
	d.inspector = i
}

// Handle processes one request line and returns the response line (without
// the trailing newline). It never returns an empty string and never panics.
func (d *Dispatcher) Handle(line string) (out string) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[rpc] handler panic: %v", r)
			out = fail(0, Internalf("internal error: %v", r))
		}
	}()

	// Valid non-object JSON (a bare number, say) is not a parse error; it
	// falls through to the missing-method check below.
	if !gjson.Valid(line) {
		return fail(0, ParseError())
	}
	req := gjson.Parse(line)

	id := requestID(req)

	method := req.Get("method")
	if method.Type != gjson.String {
		return fail(id, InvalidRequest("missing method"))
	}

	params := req.Get("params")

	switch method.String() {
	case "ping":
		return respond(id, types.PingResult{Status: "ok"})
	case "set_breakpoint":
		return d.handleSetBreakpoint(id, params)
	case "clear_breakpoints":
		return d.handleClearBreakpoints(id)
	case "get_debugger_state":
		return d.handleDebuggerState(id)
	case "debug_continue":
		return d.handleContinue(id)
	case "debug_step":
		return d.handleStep(id, params)
	case "debug_break":
		return d.handleBreak(id)
	case "run_main_scene":
		return d.handleRunMainScene(id, params)
	case "run_scene":
		return d.handleRunScene(id, params)
	case "run_current_scene":
		return d.handleRunCurrentScene(id, params)
	case "stop_scene":
		return d.handleStopScene(id)
	case "get_output":
		return d.handleGetOutput(id, params)
	case "get_remote_scene_tree":
		return d.handleRemoteSceneTree(id)
	case "get_remote_node_properties":
		return d.handleRemoteNodeProperties(id, params)
	default:
		return fail(id, MethodNotFound(method.String()))
	}
}

// requestID coerces the id member to int64: integral or fractional numbers
// truncate, anything else (including absence) is 0.
func requestID(req gjson.Result) int64 {
	id := req.Get("id")
	if id.Type == gjson.Number {
		return int64(id.Float())
	}
	return 0
}

func (d *Dispatcher) handleSetBreakpoint(id int64, params gjson.Result) string {
	path := params.Get("path")
	if path.Type != gjson.String {
		return fail(id, MissingParam("path"))
	}
	line := params.Get("line")
	if line.Type != gjson.Number {
		return fail(id, MissingParam("line"))
	}
	enabled := true
	if e := params.Get("enabled"); e.IsBool() {
		enabled = e.Bool()
	}

	if err := d.ctrl.SetBreakpoint(path.String(), int(line.Int()), enabled); err != nil {
		return fail(id, BackendError(err))
	}
	return respond(id, types.BreakpointResult{
		Success: true,
		Path:    path.String(),
		Line:    int(line.Int()),
		Enabled: enabled,
	})
}

func (d *Dispatcher) handleClearBreakpoints(id int64) string {
	d.ctrl.ClearAll()
	return respond(id, types.SuccessResult{Success: true})
}

func (d *Dispatcher) handleDebuggerState(id int64) string {
	return respond(id, types.DebuggerStateResult{
		Paused:     d.ctrl.Paused(),
		Active:     d.ctrl.Active(),
		Debuggable: d.ctrl.Debuggable(),
	})
}

func (d *Dispatcher) handleContinue(id int64) string {
	if err := d.ctrl.Continue(); err != nil {
		return fail(id, BackendError(err))
	}
	return respond(id, types.SuccessResult{Success: true})
}

func (d *Dispatcher) handleBreak(id int64) string {
	if err := d.ctrl.Break(); err != nil {
		return fail(id, BackendError(err))
	}
	return respond(id, types.SuccessResult{Success: true})
}

func (d *Dispatcher) handleStep(id int64, params gjson.Result) string {
	mode := debug.StepOver
	if m := params.Get("mode"); m.Type == gjson.String {
		mode = m.String()
	}
	switch mode {
	case debug.StepInto, debug.StepOver, debug.StepOut:
	default:
		return fail(id, InvalidParam("mode", mode, "into, over, out"))
	}

	mode, err := d.ctrl.Step(mode)
	if err != nil {
		return fail(id, BackendError(err))
	}
	return respond(id, types.StepResult{Success: true, Mode: mode})
}

func (d *Dispatcher) handleRunMainScene(id int64, params gjson.Result) string {
	if d.scenes == nil {
		return fail(id, BackendUnavailable("Scene runner"))
	}
	if err := d.scenes.PlayMainScene(timeoutSeconds(params)); err != nil {
		return fail(id, BackendError(err))
	}
	return respond(id, types.SceneResult{Success: true, Action: "run_main_scene"})
}

func (d *Dispatcher) handleRunScene(id int64, params gjson.Result) string {
	scenePath := params.Get("scene_path")
	if scenePath.Type != gjson.String {
		return fail(id, MissingParam("scene_path"))
	}
	if d.scenes == nil {
		return fail(id, BackendUnavailable("Scene runner"))
	}
	if err := d.scenes.PlayScene(scenePath.String(), timeoutSeconds(params)); err != nil {
		return fail(id, BackendError(err))
	}
	return respond(id, types.SceneResult{
		Success:   true,
		Action:    "run_scene",
		ScenePath: scenePath.String(),
	})
}

func (d *Dispatcher) handleRunCurrentScene(id int64, params gjson.Result) string {
	if d.scenes == nil {
		return fail(id, BackendUnavailable("Scene runner"))
	}
	if err := d.scenes.PlayCurrentScene(timeoutSeconds(params)); err != nil {
		return fail(id, BackendError(err))
	}
	return respond(id, types.SceneResult{Success: true, Action: "run_current_scene"})
}

func (d *Dispatcher) handleStopScene(id int64) string {
	if d.scenes == nil {
		return fail(id, BackendUnavailable("Scene runner"))
	}
	if err := d.scenes.StopScene(); err != nil {
		return fail(id, BackendError(err))
	}
	return respond(id, types.SceneResult{Success: true, Action: "stop_scene"})
}

func (d *Dispatcher) handleGetOutput(id int64, params gjson.Result) string {
	if d.output == nil {
		return fail(id, BackendUnavailable("Output source"))
	}
	newOnly := params.Get("new_only").Bool()
	clear := params.Get("clear").Bool()

	text, total := d.output.Output(newOnly, clear)
	return respond(id, types.OutputResult{
		Output:      text,
		Length:      len(text),
		TotalLength: total,
	})
}

func (d *Dispatcher) handleRemoteSceneTree(id int64) string {
	if d.inspector == nil {
		return fail(id, BackendUnavailable("Remote inspector"))
	}
	tree, err := d.inspector.SceneTree()
	if err != nil {
		return fail(id, BackendError(err))
	}
	return respond(id, types.SceneTreeResult{Tree: tree, Length: len(tree)})
}

func (d *Dispatcher) handleRemoteNodeProperties(id int64, params gjson.Result) string {
	nodePath := params.Get("node_path")
	if nodePath.Type != gjson.String {
		return fail(id, MissingParam("node_path"))
	}
	if d.inspector == nil {
		return fail(id, BackendUnavailable("Remote inspector"))
	}
	props, err := d.inspector.NodeProperties(nodepath.Split(nodePath.String()))
	if err != nil {
		return fail(id, BackendError(err))
	}
	if props == nil {
		props = []types.NodeProperty{}
	}
	return respond(id, types.NodePropertiesResult{
		NodePath:   nodePath.String(),
		Properties: props,
		Count:      len(props),
	})
}

func timeoutSeconds(params gjson.Result) float64 {
	if t := params.Get("timeout_seconds"); t.Type == gjson.Number {
		return t.Float()
	}
	return 0
}

// respond marshals a success envelope
func respond(id int64, result interface{}) string {
	raw, err := json.Marshal(result)
	if err != nil {
		return fail(id, Internalf("encode result: %v", err))
	}
	msg := json.RawMessage(raw)
	out, err := json.Marshal(types.Response{ID: id, Result: &msg})
	if err != nil {
		return fail(id, Internalf("encode response: %v", err))
	}
	return string(out)
}

// fail marshals an error envelope
func fail(id int64, e *Error) string {
	out, err := json.Marshal(types.Response{
		ID:    id,
		Error: &types.ResponseError{Code: e.Code, Message: e.Message},
	})
	if err != nil {
		// Response marshaling cannot fail for these field types; keep a
		// hand-built envelope as the absolute fallback.
		return `{"id":0,"error":{"code":-32000,"message":"encode error"}}`
	}
	return string(out)
}
