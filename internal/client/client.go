// Package client implements the caller side of the control socket: it
// dials the endpoint, correlates responses to requests by id, and offers
// typed wrappers for each method.
package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hostpeek/hostpeek/pkg/types"
)

const requestTimeout = 30 * time.Second

var requestID atomic.Int64

func nextID() int64 {
	return requestID.Add(1)
}

// Client manages the unix socket connection to the control plane
type Client struct {
	socketPath string

	mu        sync.RWMutex
	conn      net.Conn
	connected bool

	pending   map[int64]chan *types.Response
	pendingMu sync.Mutex

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a client for the given socket path
func New(socketPath string) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		socketPath: socketPath,
		pending:    make(map[int64]chan *types.Response),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Connect establishes the connection and starts the response reader
func (c *Client) Connect(ctx context.Context) error {
	conn, err := net.Dial("unix", c.socketPath)
	if err != nil {
		return fmt.Errorf("dial unix socket: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readLoop(conn)

	log.Printf("[client] connected to %s", c.socketPath)
	return nil
}

// IsConnected returns current connection state
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// Close shuts down the client
func (c *Client) Close() error {
	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) readLoop(conn net.Conn) {
	defer func() {
		c.mu.Lock()
		c.connected = false
		c.mu.Unlock()
	}()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		data := scanner.Bytes()
		if len(data) == 0 {
			continue
		}

		var resp types.Response
		if err := json.Unmarshal(data, &resp); err != nil {
			log.Printf("[client] bad response line: %v", err)
			continue
		}

		c.pendingMu.Lock()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.pendingMu.Unlock()

		if ok {
			ch <- &resp
		} else {
			log.Printf("[client] no pending request for id=%d", resp.ID)
		}
	}
	if err := scanner.Err(); err != nil && c.ctx.Err() == nil {
		log.Printf("[client] read error: %v", err)
	}
}

// Call sends one request and waits for its response
func (c *Client) Call(ctx context.Context, method string, params interface{}) (*types.Response, error) {
	c.mu.RLock()
	conn := c.conn
	connected := c.connected
	c.mu.RUnlock()

	if !connected || conn == nil {
		return nil, fmt.Errorf("not connected")
	}

	id := nextID()
	data, err := json.Marshal(types.Request{ID: id, Method: method, Params: params})
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	data = append(data, '\n')

	respCh := make(chan *types.Response, 1)
	c.pendingMu.Lock()
	c.pending[id] = respCh
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	if _, err := conn.Write(data); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}

	select {
	case resp := <-respCh:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(requestTimeout):
		return nil, fmt.Errorf("request timed out")
	}
}

// call sends a request and decodes the result member into out
func (c *Client) call(ctx context.Context, method string, params, out interface{}) error {
	resp, err := c.Call(ctx, method, params)
	if err != nil {
		return err
	}
	if resp.Error != nil {
		return fmt.Errorf("remote error: %s", resp.Error.Message)
	}
	if out != nil && resp.Result != nil {
		if err := json.Unmarshal(*resp.Result, out); err != nil {
			return fmt.Errorf("unmarshal result: %w", err)
		}
	}
	return nil
}

// Ping checks the endpoint is alive
func (c *Client) Ping(ctx context.Context) error {
	var result types.PingResult
	if err := c.call(ctx, "ping", nil, &result); err != nil {
		return err
	}
	if result.Status != "ok" {
		return fmt.Errorf("unexpected ping status: %s", result.Status)
	}
	return nil
}

// SetBreakpoint sets or removes a breakpoint
func (c *Client) SetBreakpoint(ctx context.Context, path string, line int, enabled bool) (*types.BreakpointResult, error) {
	var result types.BreakpointResult
	params := types.SetBreakpointParams{Path: path, Line: line, Enabled: &enabled}
	if err := c.call(ctx, "set_breakpoint", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ClearBreakpoints removes all breakpoints
func (c *Client) ClearBreakpoints(ctx context.Context) error {
	return c.call(ctx, "clear_breakpoints", nil, nil)
}

// GetDebuggerState fetches the paused/active/debuggable flags
func (c *Client) GetDebuggerState(ctx context.Context) (*types.DebuggerStateResult, error) {
	var result types.DebuggerStateResult
	if err := c.call(ctx, "get_debugger_state", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// DebugContinue resumes a paused session
func (c *Client) DebugContinue(ctx context.Context) error {
	return c.call(ctx, "debug_continue", nil, nil)
}

// DebugBreak pauses a running session
func (c *Client) DebugBreak(ctx context.Context) error {
	return c.call(ctx, "debug_break", nil, nil)
}

// DebugStep steps in the given mode ("into", "over", "out")
func (c *Client) DebugStep(ctx context.Context, mode string) (*types.StepResult, error) {
	var result types.StepResult
	if err := c.call(ctx, "debug_step", types.StepParams{Mode: mode}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RunMainScene starts the workspace's main scene
func (c *Client) RunMainScene(ctx context.Context, timeout float64) (*types.SceneResult, error) {
	var result types.SceneResult
	params := types.RunParams{TimeoutSeconds: timeout}
	if err := c.call(ctx, "run_main_scene", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RunScene starts a specific scene
func (c *Client) RunScene(ctx context.Context, scenePath string, timeout float64) (*types.SceneResult, error) {
	var result types.SceneResult
	params := types.RunSceneParams{ScenePath: scenePath, TimeoutSeconds: timeout}
	if err := c.call(ctx, "run_scene", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// RunCurrentScene starts the scene open in the host
func (c *Client) RunCurrentScene(ctx context.Context, timeout float64) (*types.SceneResult, error) {
	var result types.SceneResult
	params := types.RunParams{TimeoutSeconds: timeout}
	if err := c.call(ctx, "run_current_scene", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// StopScene stops the running scene
func (c *Client) StopScene(ctx context.Context) error {
	return c.call(ctx, "stop_scene", nil, nil)
}

// GetRemoteSceneTree fetches the live node tree of the running program
func (c *Client) GetRemoteSceneTree(ctx context.Context) (*types.SceneTreeResult, error) {
	var result types.SceneTreeResult
	if err := c.call(ctx, "get_remote_scene_tree", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetRemoteNodeProperties fetches the properties of one remote node
func (c *Client) GetRemoteNodeProperties(ctx context.Context, nodePath string) (*types.NodePropertiesResult, error) {
	var result types.NodePropertiesResult
	params := types.GetNodePropertiesParams{NodePath: nodePath}
	if err := c.call(ctx, "get_remote_node_properties", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetOutput fetches host output text
func (c *Client) GetOutput(ctx context.Context, newOnly, clear bool) (*types.OutputResult, error) {
	var result types.OutputResult
	params := types.GetOutputParams{NewOnly: newOnly, Clear: clear}
	if err := c.call(ctx, "get_output", params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
