package debug

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/go-dap"
	"github.com/google/uuid"
)

const requestTimeout = 10 * time.Second

// Backend runs one DAP-speaking debug adapter connection and exposes it as
// a SessionProvider. It tracks at most one session at a time: the session
// becomes live after the initialize/launch handshake and dies when the
// adapter reports termination or the transport drops.
//
// Lifecycle notifications go out through OnStarted/OnEnded, which the host
// wires to the controller before Connect.
type Backend struct {
	OnStarted func(id string)
	OnEnded   func()

	mu        sync.Mutex
	transport *transport
	pending   map[int]chan dap.Message
	session   *dapSession

	initialized chan struct{}
	initOnce    sync.Once

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBackend creates a disconnected backend
func NewBackend() *Backend {
	ctx, cancel := context.WithCancel(context.Background())
	return &Backend{
		pending:     make(map[int]chan dap.Message),
		initialized: make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Session implements SessionProvider
func (b *Backend) Session(id string) SessionHandle {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session == nil || b.session.id != id {
		return nil
	}
	return b.session
}

// Connect dials the adapter and runs the initialize/launch handshake for
// the given program. On success the new session's id has already been
// announced through OnStarted.
func (b *Backend) Connect(address, program string) error {
	t, err := dialTransport(address)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.transport = t
	b.mu.Unlock()

	b.wg.Add(1)
	go b.readLoop()

	initReq := &dap.InitializeRequest{
		Request: dap.Request{
			ProtocolMessage: dap.ProtocolMessage{Type: "request"},
			Command:         "initialize",
		},
		Arguments: dap.InitializeRequestArguments{
			ClientID:        "hostpeek",
			ClientName:      "hostpeek",
			AdapterID:       "hostpeek",
			Locale:          "en-US",
			LinesStartAt1:   true,
			ColumnsStartAt1: true,
			PathFormat:      "path",
		},
	}
	if _, err := b.sendRequest(initReq); err != nil {
		return fmt.Errorf("initialize: %w", err)
	}

	launchArgs := fmt.Sprintf(`{"request":"launch","mode":"debug","program":%q}`, program)
	launchReq := &dap.LaunchRequest{
		Request: dap.Request{
			ProtocolMessage: dap.ProtocolMessage{Type: "request"},
			Command:         "launch",
		},
		Arguments: []byte(launchArgs),
	}
	if _, err := b.sendRequest(launchReq); err != nil {
		return fmt.Errorf("launch: %w", err)
	}

	select {
	case <-b.initialized:
	case <-time.After(requestTimeout):
		return fmt.Errorf("timeout waiting for initialized event")
	}

	doneReq := &dap.ConfigurationDoneRequest{
		Request: dap.Request{
			ProtocolMessage: dap.ProtocolMessage{Type: "request"},
			Command:         "configurationDone",
		},
	}
	if _, err := b.sendRequest(doneReq); err != nil {
		return fmt.Errorf("configurationDone: %w", err)
	}

	s := &dapSession{
		id:          uuid.NewString(),
		backend:     b,
		breakpoints: make(map[string][]int),
	}
	b.mu.Lock()
	b.session = s
	b.mu.Unlock()

	log.Printf("[debug] session %s started", s.id[:8])
	if b.OnStarted != nil {
		b.OnStarted(s.id)
	}
	return nil
}

// Close tears down the adapter connection and ends any session
func (b *Backend) Close() {
	b.cancel()
	b.mu.Lock()
	t := b.transport
	b.transport = nil
	b.mu.Unlock()
	if t != nil {
		t.close()
	}
	b.wg.Wait()
	b.endSession()
}

func (b *Backend) readLoop() {
	defer b.wg.Done()

	for {
		b.mu.Lock()
		t := b.transport
		b.mu.Unlock()
		if t == nil {
			return
		}

		msg, err := t.receive()
		if err != nil {
			select {
			case <-b.ctx.Done():
			default:
				log.Printf("[debug] transport closed: %v", err)
				b.endSession()
			}
			return
		}
		b.handleMessage(msg)
	}
}

func (b *Backend) handleMessage(msg dap.Message) {
	switch m := msg.(type) {
	case *dap.InitializedEvent:
		b.initOnce.Do(func() { close(b.initialized) })
		return
	case *dap.StoppedEvent:
		b.mu.Lock()
		if b.session != nil {
			b.session.setStopped(m.Body.ThreadId)
		}
		b.mu.Unlock()
		return
	case *dap.ContinuedEvent:
		b.mu.Lock()
		if b.session != nil {
			b.session.setRunning()
		}
		b.mu.Unlock()
		return
	case *dap.TerminatedEvent, *dap.ExitedEvent:
		b.endSession()
		return
	}

	if seq, ok := responseSeq(msg); ok {
		b.mu.Lock()
		if ch, found := b.pending[seq]; found {
			ch <- msg
			delete(b.pending, seq)
		}
		b.mu.Unlock()
	}
}

func responseSeq(msg dap.Message) (int, bool) {
	switch m := msg.(type) {
	case *dap.InitializeResponse:
		return m.RequestSeq, true
	case *dap.LaunchResponse:
		return m.RequestSeq, true
	case *dap.DisconnectResponse:
		return m.RequestSeq, true
	case *dap.ConfigurationDoneResponse:
		return m.RequestSeq, true
	case *dap.SetBreakpointsResponse:
		return m.RequestSeq, true
	case *dap.ContinueResponse:
		return m.RequestSeq, true
	case *dap.NextResponse:
		return m.RequestSeq, true
	case *dap.StepInResponse:
		return m.RequestSeq, true
	case *dap.StepOutResponse:
		return m.RequestSeq, true
	case *dap.PauseResponse:
		return m.RequestSeq, true
	case *dap.ErrorResponse:
		return m.RequestSeq, true
	}
	return 0, false
}

func (b *Backend) endSession() {
	b.mu.Lock()
	had := b.session != nil
	if had {
		log.Printf("[debug] session %s ended", b.session.id[:8])
	}
	b.session = nil
	b.mu.Unlock()

	if had && b.OnEnded != nil {
		b.OnEnded()
	}
}

// sendRequest stamps the sequence number, sends, and waits for the matching
// response. An ErrorResponse is surfaced as an error.
func (b *Backend) sendRequest(req dap.RequestMessage) (dap.Message, error) {
	b.mu.Lock()
	t := b.transport
	b.mu.Unlock()
	if t == nil {
		return nil, fmt.Errorf("not connected to debug adapter")
	}

	seq := t.nextSeq()
	switch r := req.(type) {
	case *dap.InitializeRequest:
		r.Seq = seq
	case *dap.LaunchRequest:
		r.Seq = seq
	case *dap.DisconnectRequest:
		r.Seq = seq
	case *dap.ConfigurationDoneRequest:
		r.Seq = seq
	case *dap.SetBreakpointsRequest:
		r.Seq = seq
	case *dap.ContinueRequest:
		r.Seq = seq
	case *dap.NextRequest:
		r.Seq = seq
	case *dap.StepInRequest:
		r.Seq = seq
	case *dap.StepOutRequest:
		r.Seq = seq
	case *dap.PauseRequest:
		r.Seq = seq
	}

	respCh := make(chan dap.Message, 1)
	b.mu.Lock()
	b.pending[seq] = respCh
	b.mu.Unlock()

	if err := t.send(req); err != nil {
		b.mu.Lock()
		delete(b.pending, seq)
		b.mu.Unlock()
		return nil, err
	}

	select {
	case resp := <-respCh:
		if er, ok := resp.(*dap.ErrorResponse); ok {
			return nil, fmt.Errorf("adapter error: %s", er.Message)
		}
		return resp, nil
	case <-time.After(requestTimeout):
		b.mu.Lock()
		delete(b.pending, seq)
		b.mu.Unlock()
		return nil, fmt.Errorf("request timeout")
	case <-b.ctx.Done():
		return nil, b.ctx.Err()
	}
}

// dapSession is the live adapter session exposed to the controller
type dapSession struct {
	id      string
	backend *Backend

	mu       sync.Mutex
	paused   bool
	threadID int

	// full line set per source path, resent wholesale on every change
	breakpoints map[string][]int
}

func (s *dapSession) setStopped(threadID int) {
	s.mu.Lock()
	s.paused = true
	s.threadID = threadID
	s.mu.Unlock()
}

func (s *dapSession) setRunning() {
	s.mu.Lock()
	s.paused = false
	s.mu.Unlock()
}

// IsPaused implements SessionHandle
func (s *dapSession) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// IsActive implements SessionHandle
func (s *dapSession) IsActive() bool {
	return true
}

// IsDebuggable implements SessionHandle
func (s *dapSession) IsDebuggable() bool {
	return true
}

// SendCommand implements SessionHandle. Command names follow the host
// debugger's vocabulary: step (into), next (over), out, continue, break.
func (s *dapSession) SendCommand(name string) error {
	s.mu.Lock()
	threadID := s.threadID
	s.mu.Unlock()

	var req dap.RequestMessage
	switch name {
	case "continue":
		req = &dap.ContinueRequest{
			Request:   newRequest("continue"),
			Arguments: dap.ContinueArguments{ThreadId: threadID},
		}
	case "break":
		req = &dap.PauseRequest{
			Request:   newRequest("pause"),
			Arguments: dap.PauseArguments{ThreadId: threadID},
		}
	case "step":
		req = &dap.StepInRequest{
			Request:   newRequest("stepIn"),
			Arguments: dap.StepInArguments{ThreadId: threadID},
		}
	case "next":
		req = &dap.NextRequest{
			Request:   newRequest("next"),
			Arguments: dap.NextArguments{ThreadId: threadID},
		}
	case "out":
		req = &dap.StepOutRequest{
			Request:   newRequest("stepOut"),
			Arguments: dap.StepOutArguments{ThreadId: threadID},
		}
	default:
		return fmt.Errorf("unknown debugger command: %s", name)
	}

	if _, err := s.backend.sendRequest(req); err != nil {
		return err
	}

	// Resume-style commands leave the paused state; the stopped event
	// flips it back.
	if name != "break" {
		s.setRunning()
	}
	return nil
}

// SetBreakpoint implements SessionHandle. DAP replaces the whole
// breakpoint set for a source on every setBreakpoints request, so the
// session keeps the per-path line set and resends it.
func (s *dapSession) SetBreakpoint(path string, line int, enabled bool) error {
	s.mu.Lock()
	lines := s.breakpoints[path]
	idx := -1
	for i, l := range lines {
		if l == line {
			idx = i
			break
		}
	}
	if enabled && idx < 0 {
		lines = append(lines, line)
	} else if !enabled && idx >= 0 {
		lines = append(lines[:idx], lines[idx+1:]...)
	}
	s.breakpoints[path] = lines
	s.mu.Unlock()

	sourceBps := make([]dap.SourceBreakpoint, len(lines))
	for i, l := range lines {
		sourceBps[i] = dap.SourceBreakpoint{Line: l}
	}
	req := &dap.SetBreakpointsRequest{
		Request: newRequest("setBreakpoints"),
		Arguments: dap.SetBreakpointsArguments{
			Source:      dap.Source{Path: path},
			Breakpoints: sourceBps,
		},
	}
	_, err := s.backend.sendRequest(req)
	return err
}

func newRequest(command string) dap.Request {
	return dap.Request{
		ProtocolMessage: dap.ProtocolMessage{Type: "request"},
		Command:         command,
	}
}
