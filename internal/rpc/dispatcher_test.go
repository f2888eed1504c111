package rpc

import (
	"encoding/json"
	"testing"

	"github.com/hostpeek/hostpeek/internal/debug"
	"github.com/hostpeek/hostpeek/pkg/types"
)

// fakeHandle is a controllable debug session for dispatcher tests
type fakeHandle struct {
	paused     bool
	commands   []string
	setCalls   []string
	failNext   bool
	debuggable bool
}

func (f *fakeHandle) IsPaused() bool     { return f.paused }
func (f *fakeHandle) IsActive() bool     { return true }
func (f *fakeHandle) IsDebuggable() bool { return f.debuggable }

func (f *fakeHandle) SendCommand(name string) error {
	f.commands = append(f.commands, name)
	return nil
}

func (f *fakeHandle) SetBreakpoint(path string, line int, enabled bool) error {
	f.setCalls = append(f.setCalls, path)
	return nil
}

type fakeProvider struct {
	handle *fakeHandle
	id     string
}

func (f *fakeProvider) Session(id string) debug.SessionHandle {
	if f.handle == nil || id != f.id {
		return nil
	}
	return f.handle
}

func newTestDispatcher() (*Dispatcher, *fakeProvider) {
	provider := &fakeProvider{}
	ctrl := debug.NewController(provider, nil)
	return NewDispatcher(ctrl), provider
}

func newActiveDispatcher(t *testing.T) (*Dispatcher, *fakeHandle) {
	t.Helper()
	provider := &fakeProvider{handle: &fakeHandle{paused: true, debuggable: true}, id: "s1"}
	ctrl := debug.NewController(provider, nil)
	ctrl.OnSessionStarted("s1")
	return NewDispatcher(ctrl), provider.handle
}

func decode(t *testing.T, line string) types.Response {
	t.Helper()
	var resp types.Response
	if err := json.Unmarshal([]byte(line), &resp); err != nil {
		t.Fatalf("response is not valid JSON: %v\n%s", err, line)
	}
	return resp
}

// --- envelope handling ---

func TestHandle_ParseError(t *testing.T) {
	d, _ := newTestDispatcher()
	out := d.Handle("{broken json")

	resp := decode(t, out)
	if resp.Error == nil || resp.Error.Code != -32700 {
		t.Fatalf("expected -32700, got %+v", resp.Error)
	}
	if resp.Error.Message != "Parse error" {
		t.Errorf("expected 'Parse error', got %q", resp.Error.Message)
	}
	if resp.ID != 0 {
		t.Errorf("parse errors should carry id=0, got %d", resp.ID)
	}
}

func TestHandle_MissingMethod(t *testing.T) {
	d, _ := newTestDispatcher()

	for _, line := range []string{
		`{"id":3}`,
		`{"id":3,"method":42}`,
		`5`,
		`[1,2,3]`,
	} {
		resp := decode(t, d.Handle(line))
		if resp.Error == nil || resp.Error.Code != -32600 {
			t.Errorf("%s: expected -32600, got %+v", line, resp.Error)
			continue
		}
		if resp.Error.Message != "Invalid request: missing method" {
			t.Errorf("%s: unexpected message %q", line, resp.Error.Message)
		}
	}
}

func TestHandle_MethodNotFound(t *testing.T) {
	d, _ := newTestDispatcher()
	out := d.Handle(`{"id":1,"method":"nope"}`)

	want := `{"id":1,"error":{"code":-32601,"message":"Method not found: nope"}}`
	if out != want {
		t.Errorf("exact response mismatch:\n got %s\nwant %s", out, want)
	}
}

func TestHandle_IDCoercion(t *testing.T) {
	d, _ := newTestDispatcher()

	cases := []struct {
		line string
		want int64
	}{
		{`{"id":5,"method":"ping"}`, 5},
		{`{"id":5.9,"method":"ping"}`, 5},
		{`{"id":"abc","method":"ping"}`, 0},
		{`{"method":"ping"}`, 0},
		{`{"id":null,"method":"ping"}`, 0},
	}
	for _, tc := range cases {
		resp := decode(t, d.Handle(tc.line))
		if resp.ID != tc.want {
			t.Errorf("%s: expected id=%d, got %d", tc.line, tc.want, resp.ID)
		}
	}
}

func TestHandle_ResultXorError(t *testing.T) {
	d, _ := newTestDispatcher()

	lines := []string{
		`{"id":1,"method":"ping"}`,
		`{"id":2,"method":"nope"}`,
		`{"id":3,"method":"set_breakpoint","params":{"path":"res://a.gd","line":1}}`,
		`{"id":4,"method":"debug_continue"}`,
		`{"id":5,"method":"get_output"}`,
		`not json`,
	}
	for _, line := range lines {
		resp := decode(t, d.Handle(line))
		hasResult := resp.Result != nil
		hasError := resp.Error != nil
		if hasResult == hasError {
			t.Errorf("%s: response must carry exactly one of result/error: %s", line, d.Handle(line))
		}
	}
}

func TestHandle_Ping(t *testing.T) {
	d, _ := newTestDispatcher()
	out := d.Handle(`{"id":9,"method":"ping"}`)

	want := `{"id":9,"result":{"status":"ok"}}`
	if out != want {
		t.Errorf("got %s, want %s", out, want)
	}
}

// --- breakpoints ---

func TestHandle_SetBreakpoint(t *testing.T) {
	d, _ := newTestDispatcher()
	out := d.Handle(`{"id":5,"method":"set_breakpoint","params":{"path":"res://a.gd","line":10}}`)

	want := `{"id":5,"result":{"success":true,"path":"res://a.gd","line":10,"enabled":true}}`
	if out != want {
		t.Errorf("got %s, want %s", out, want)
	}
}

func TestHandle_SetBreakpointDisabled(t *testing.T) {
	d, _ := newTestDispatcher()
	out := d.Handle(`{"id":1,"method":"set_breakpoint","params":{"path":"res://a.gd","line":10,"enabled":false}}`)

	resp := decode(t, out)
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	var result types.BreakpointResult
	if err := json.Unmarshal(*resp.Result, &result); err != nil {
		t.Fatal(err)
	}
	if result.Enabled {
		t.Error("expected enabled=false echoed back")
	}
}

func TestHandle_SetBreakpointMissingParams(t *testing.T) {
	d, _ := newTestDispatcher()

	cases := []struct {
		line    string
		message string
	}{
		{`{"id":1,"method":"set_breakpoint","params":{"line":10}}`, "Missing required param: path"},
		{`{"id":1,"method":"set_breakpoint","params":{"path":"res://a.gd"}}`, "Missing required param: line"},
		{`{"id":1,"method":"set_breakpoint","params":{"path":"res://a.gd","line":"ten"}}`, "Missing required param: line"},
		{`{"id":1,"method":"set_breakpoint"}`, "Missing required param: path"},
	}
	for _, tc := range cases {
		resp := decode(t, d.Handle(tc.line))
		if resp.Error == nil || resp.Error.Code != -32602 {
			t.Errorf("%s: expected -32602, got %+v", tc.line, resp.Error)
			continue
		}
		if resp.Error.Message != tc.message {
			t.Errorf("%s: got %q, want %q", tc.line, resp.Error.Message, tc.message)
		}
	}
}

func TestHandle_ClearBreakpoints(t *testing.T) {
	d, _ := newTestDispatcher()
	d.Handle(`{"id":1,"method":"set_breakpoint","params":{"path":"res://a.gd","line":1}}`)
	d.Handle(`{"id":2,"method":"set_breakpoint","params":{"path":"res://b.gd","line":2}}`)

	out := d.Handle(`{"id":3,"method":"clear_breakpoints"}`)
	want := `{"id":3,"result":{"success":true}}`
	if out != want {
		t.Errorf("got %s, want %s", out, want)
	}
}

// --- debugger control ---

func TestHandle_DebuggerStateNoSession(t *testing.T) {
	d, _ := newTestDispatcher()
	out := d.Handle(`{"id":1,"method":"get_debugger_state"}`)

	want := `{"id":1,"result":{"paused":false,"active":false,"debuggable":false}}`
	if out != want {
		t.Errorf("got %s, want %s", out, want)
	}
}

func TestHandle_DebuggerStateActive(t *testing.T) {
	d, _ := newActiveDispatcher(t)
	resp := decode(t, d.Handle(`{"id":1,"method":"get_debugger_state"}`))

	var result types.DebuggerStateResult
	if err := json.Unmarshal(*resp.Result, &result); err != nil {
		t.Fatal(err)
	}
	if !result.Active || !result.Paused || !result.Debuggable {
		t.Errorf("expected all flags set, got %+v", result)
	}
}

func TestHandle_ContinueWithoutSessionNoops(t *testing.T) {
	d, _ := newTestDispatcher()
	out := d.Handle(`{"id":1,"method":"debug_continue"}`)

	want := `{"id":1,"result":{"success":true}}`
	if out != want {
		t.Errorf("got %s, want %s", out, want)
	}
}

func TestHandle_ContinueSendsCommand(t *testing.T) {
	d, h := newActiveDispatcher(t)
	out := d.Handle(`{"id":2,"method":"debug_continue"}`)

	want := `{"id":2,"result":{"success":true}}`
	if out != want {
		t.Errorf("got %s, want %s", out, want)
	}
	if len(h.commands) != 1 || h.commands[0] != "continue" {
		t.Errorf("expected [continue], got %v", h.commands)
	}
}

func TestHandle_StepDefaultsToOver(t *testing.T) {
	d, h := newActiveDispatcher(t)
	out := d.Handle(`{"id":1,"method":"debug_step"}`)

	want := `{"id":1,"result":{"success":true,"mode":"over"}}`
	if out != want {
		t.Errorf("got %s, want %s", out, want)
	}
	if len(h.commands) != 1 || h.commands[0] != "next" {
		t.Errorf("expected [next], got %v", h.commands)
	}
}

func TestHandle_StepModes(t *testing.T) {
	cases := []struct {
		mode    string
		command string
	}{
		{"into", "step"},
		{"over", "next"},
		{"out", "out"},
	}
	for _, tc := range cases {
		d, h := newActiveDispatcher(t)
		resp := decode(t, d.Handle(`{"id":1,"method":"debug_step","params":{"mode":"`+tc.mode+`"}}`))
		if resp.Error != nil {
			t.Errorf("mode %s: unexpected error %+v", tc.mode, resp.Error)
			continue
		}
		if len(h.commands) != 1 || h.commands[0] != tc.command {
			t.Errorf("mode %s: expected [%s], got %v", tc.mode, tc.command, h.commands)
		}
	}
}

func TestHandle_StepInvalidMode(t *testing.T) {
	d, _ := newActiveDispatcher(t)
	resp := decode(t, d.Handle(`{"id":1,"method":"debug_step","params":{"mode":"sideways"}}`))

	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Fatalf("expected -32602, got %+v", resp.Error)
	}
	want := "Invalid mode: sideways (expected: into, over, out)"
	if resp.Error.Message != want {
		t.Errorf("got %q, want %q", resp.Error.Message, want)
	}
}

func TestHandle_StepWithoutSessionNoops(t *testing.T) {
	d, _ := newTestDispatcher()
	out := d.Handle(`{"id":1,"method":"debug_step","params":{"mode":"into"}}`)

	want := `{"id":1,"result":{"success":true,"mode":"into"}}`
	if out != want {
		t.Errorf("got %s, want %s", out, want)
	}
}

func TestHandle_BreakSendsCommand(t *testing.T) {
	d, h := newActiveDispatcher(t)
	out := d.Handle(`{"id":1,"method":"debug_break"}`)

	want := `{"id":1,"result":{"success":true}}`
	if out != want {
		t.Errorf("got %s, want %s", out, want)
	}
	if len(h.commands) != 1 || h.commands[0] != "break" {
		t.Errorf("expected [break], got %v", h.commands)
	}
}

// --- optional collaborators ---

func TestHandle_SceneMethodsWithoutRunner(t *testing.T) {
	d, _ := newTestDispatcher()

	for _, method := range []string{"run_main_scene", "run_current_scene", "stop_scene"} {
		resp := decode(t, d.Handle(`{"id":1,"method":"`+method+`"}`))
		if resp.Error == nil || resp.Error.Code != -32000 {
			t.Errorf("%s: expected -32000, got %+v", method, resp.Error)
		}
	}
}

func TestHandle_RunSceneValidatesPathFirst(t *testing.T) {
	// scene_path validation comes before the collaborator check
	d, _ := newTestDispatcher()
	resp := decode(t, d.Handle(`{"id":1,"method":"run_scene"}`))
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Fatalf("expected -32602, got %+v", resp.Error)
	}
}

func TestHandle_GetOutputWithoutSource(t *testing.T) {
	d, _ := newTestDispatcher()
	resp := decode(t, d.Handle(`{"id":1,"method":"get_output"}`))
	if resp.Error == nil || resp.Error.Code != -32000 {
		t.Fatalf("expected -32000, got %+v", resp.Error)
	}
}

type fakeScenes struct {
	played  []string
	stopped bool
	playing bool
}

func (f *fakeScenes) PlayMainScene(timeout float64) error {
	f.played = append(f.played, "main")
	f.playing = true
	return nil
}

func (f *fakeScenes) PlayScene(path string, timeout float64) error {
	f.played = append(f.played, path)
	f.playing = true
	return nil
}

func (f *fakeScenes) PlayCurrentScene(timeout float64) error {
	f.played = append(f.played, "current")
	f.playing = true
	return nil
}

func (f *fakeScenes) StopScene() error {
	f.stopped = true
	f.playing = false
	return nil
}

func (f *fakeScenes) IsPlaying() bool { return f.playing }

func TestHandle_RunScene(t *testing.T) {
	d, _ := newTestDispatcher()
	scenes := &fakeScenes{}
	d.SetSceneRunner(scenes)

	out := d.Handle(`{"id":4,"method":"run_scene","params":{"scene_path":"res://game.tscn"}}`)
	want := `{"id":4,"result":{"success":true,"action":"run_scene","scene_path":"res://game.tscn"}}`
	if out != want {
		t.Errorf("got %s, want %s", out, want)
	}
	if len(scenes.played) != 1 || scenes.played[0] != "res://game.tscn" {
		t.Errorf("unexpected plays: %v", scenes.played)
	}
}

func TestHandle_StopScene(t *testing.T) {
	d, _ := newTestDispatcher()
	scenes := &fakeScenes{playing: true}
	d.SetSceneRunner(scenes)

	out := d.Handle(`{"id":1,"method":"stop_scene"}`)
	want := `{"id":1,"result":{"success":true,"action":"stop_scene"}}`
	if out != want {
		t.Errorf("got %s, want %s", out, want)
	}
	if !scenes.stopped {
		t.Error("expected StopScene to be called")
	}
}

type fakeOutput struct {
	text  string
	total int
}

func (f *fakeOutput) Output(newOnly, clear bool) (string, int) {
	return f.text, f.total
}

func TestHandle_GetOutput(t *testing.T) {
	d, _ := newTestDispatcher()
	d.SetOutputSource(&fakeOutput{text: "hello", total: 12})

	out := d.Handle(`{"id":1,"method":"get_output","params":{"new_only":true}}`)
	want := `{"id":1,"result":{"output":"hello","length":5,"total_length":12}}`
	if out != want {
		t.Errorf("got %s, want %s", out, want)
	}
}

type fakeInspector struct {
	tree  string
	parts []string
	props []types.NodeProperty
}

func (f *fakeInspector) SceneTree() (string, error) { return f.tree, nil }

func (f *fakeInspector) NodeProperties(parts []string) ([]types.NodeProperty, error) {
	f.parts = parts
	return f.props, nil
}

func TestHandle_RemoteSceneTree(t *testing.T) {
	d, _ := newTestDispatcher()

	// unwired inspector is a runtime error
	resp := decode(t, d.Handle(`{"id":1,"method":"get_remote_scene_tree"}`))
	if resp.Error == nil || resp.Error.Code != -32000 {
		t.Fatalf("expected -32000, got %+v", resp.Error)
	}

	d.SetRemoteInspector(&fakeInspector{tree: "root\n  Main\n"})
	out := d.Handle(`{"id":2,"method":"get_remote_scene_tree"}`)
	want := `{"id":2,"result":{"tree":"root\n  Main\n","length":12}}`
	if out != want {
		t.Errorf("got %s, want %s", out, want)
	}
}

func TestHandle_RemoteNodeProperties(t *testing.T) {
	d, _ := newTestDispatcher()
	insp := &fakeInspector{props: []types.NodeProperty{{Name: "position", Value: "(0, 0)", Type: "Vector2"}}}
	d.SetRemoteInspector(insp)

	resp := decode(t, d.Handle(`{"id":1,"method":"get_remote_node_properties","params":{"node_path":"/root/Main/Player"}}`))
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}

	// path components are split before they reach the inspector
	if len(insp.parts) != 3 || insp.parts[0] != "root" || insp.parts[2] != "Player" {
		t.Errorf("unexpected split: %v", insp.parts)
	}

	var result types.NodePropertiesResult
	if err := json.Unmarshal(*resp.Result, &result); err != nil {
		t.Fatal(err)
	}
	if result.Count != 1 || result.Properties[0].Name != "position" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestHandle_RemoteNodePropertiesMissingPath(t *testing.T) {
	d, _ := newTestDispatcher()
	d.SetRemoteInspector(&fakeInspector{})

	resp := decode(t, d.Handle(`{"id":1,"method":"get_remote_node_properties"}`))
	if resp.Error == nil || resp.Error.Code != -32602 {
		t.Fatalf("expected -32602, got %+v", resp.Error)
	}
	if resp.Error.Message != "Missing required param: node_path" {
		t.Errorf("unexpected message: %q", resp.Error.Message)
	}
}

// --- panic isolation ---

type panicOutput struct{}

func (panicOutput) Output(newOnly, clear bool) (string, int) {
	panic("boom")
}

func TestHandle_PanicBecomesError(t *testing.T) {
	d, _ := newTestDispatcher()
	d.SetOutputSource(panicOutput{})

	resp := decode(t, d.Handle(`{"id":1,"method":"get_output"}`))
	if resp.Error == nil || resp.Error.Code != -32000 {
		t.Fatalf("expected -32000 from panicking handler, got %+v", resp.Error)
	}
}
