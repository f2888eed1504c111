// Package debug implements the breakpoint cache and the session controller
// that together track the host's debug state across session lifetimes.
//
// The controller is a two-state machine: no session, or one active session
// identified by the id the provider announced. Session handles are never
// held across calls; every operation re-fetches the handle from the
// provider so a session that ended between calls is observed as gone
// instead of dereferenced.
package debug

import (
	"fmt"
	"log"
	"sync"

	"github.com/hostpeek/hostpeek/internal/host"
)

// Step modes accepted by Step. "over" is the default when the caller omits
// the mode.
const (
	StepInto = "into"
	StepOver = "over"
	StepOut  = "out"
)

// SessionHandle is one live debug session as seen by the controller.
type SessionHandle interface {
	IsPaused() bool
	IsActive() bool
	IsDebuggable() bool
	SendCommand(name string) error
	SetBreakpoint(path string, line int, enabled bool) error
}

// SessionProvider resolves a session id to its handle. Session returns nil
// when the id no longer names a live session.
type SessionProvider interface {
	Session(id string) SessionHandle
}

// Controller owns the breakpoint cache and the current-session state.
// All methods are safe for concurrent use.
type Controller struct {
	mu       sync.Mutex
	provider SessionProvider
	display  host.BreakpointDisplay
	cache    *BreakpointCache

	sessionID string
	active    bool
}

// NewController creates a controller with an empty breakpoint cache.
// The display is optional.
func NewController(provider SessionProvider, display host.BreakpointDisplay) *Controller {
	return &Controller{
		provider: provider,
		display:  display,
		cache:    NewBreakpointCache(),
	}
}

// SetProvider replaces the session provider. Used when the debug backend
// comes up after the controller.
func (c *Controller) SetProvider(p SessionProvider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.provider = p
}

// OnSessionStarted records the new session and reapplies every cached
// breakpoint to it in insertion order. A second start while a session is
// active replaces the tracked id.
func (c *Controller) OnSessionStarted(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sessionID = id
	c.active = true

	h := c.sessionLocked()
	if h == nil {
		return
	}
	for _, bp := range c.cache.All() {
		if err := h.SetBreakpoint(bp.Path, bp.Line, true); err != nil {
			log.Printf("[debug] reapply breakpoint %s:%d: %v", bp.Path, bp.Line, err)
		}
	}
}

// OnSessionEnded drops the tracked session. The breakpoint cache survives
// so the next session starts with the same breakpoints.
func (c *Controller) OnSessionEnded() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessionID = ""
	c.active = false
}

// SetBreakpoint updates the cache and, when a session is live, forwards the
// change to it. Gutter display sync is best-effort.
func (c *Controller) SetBreakpoint(path string, line int, enabled bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Set(path, line, enabled)

	if c.display != nil {
		if err := c.display.SetGutterBreakpoint(path, line, enabled); err != nil {
			log.Printf("[debug] gutter update %s:%d: %v", path, line, err)
		}
	}

	if h := c.sessionLocked(); h != nil {
		return h.SetBreakpoint(path, line, enabled)
	}
	return nil
}

// ClearAll empties the cache, removing each breakpoint from the live
// session and the gutter first. Display failures do not abort the clear.
func (c *Controller) ClearAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries := c.cache.All()
	h := c.sessionLocked()
	for _, bp := range entries {
		if h != nil {
			if err := h.SetBreakpoint(bp.Path, bp.Line, false); err != nil {
				log.Printf("[debug] remove breakpoint %s:%d: %v", bp.Path, bp.Line, err)
			}
		}
		if c.display != nil {
			if err := c.display.SetGutterBreakpoint(bp.Path, bp.Line, false); err != nil {
				log.Printf("[debug] gutter clear %s:%d: %v", bp.Path, bp.Line, err)
			}
		}
	}
	c.cache.Clear()
	return len(entries)
}

// Breakpoints returns the cached breakpoints in insertion order
func (c *Controller) Breakpoints() []Breakpoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache.All()
}

// Continue resumes execution
func (c *Controller) Continue() error {
	return c.command("continue")
}

// Break requests a pause
func (c *Controller) Break() error {
	return c.command("break")
}

// Step performs one step in the given mode ("into", "over", "out"); the
// empty mode means "over".
func (c *Controller) Step(mode string) (string, error) {
	if mode == "" {
		mode = StepOver
	}
	var cmd string
	switch mode {
	case StepInto:
		cmd = "step"
	case StepOver:
		cmd = "next"
	case StepOut:
		cmd = "out"
	default:
		return mode, fmt.Errorf("invalid step mode %q", mode)
	}
	return mode, c.command(cmd)
}

// command forwards a named debugger command to the live session. Commands
// are fire-and-forget: with no session attached they succeed as a no-op.
func (c *Controller) command(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := c.sessionLocked()
	if h == nil {
		return nil
	}
	return h.SendCommand(name)
}

// Paused reports whether the current session is paused at a breakpoint
func (c *Controller) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h := c.sessionLocked(); h != nil {
		return h.IsPaused()
	}
	return false
}

// Active reports whether a debug session is live
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionLocked() != nil
}

// Debuggable reports whether the session can accept debug commands
func (c *Controller) Debuggable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if h := c.sessionLocked(); h != nil {
		return h.IsDebuggable()
	}
	return false
}

// sessionLocked resolves the tracked id through the provider. Returns nil
// when no session is tracked, the provider is absent, or the provider no
// longer knows the id (in which case the tracked state is dropped too).
func (c *Controller) sessionLocked() SessionHandle {
	if !c.active || c.provider == nil {
		return nil
	}
	h := c.provider.Session(c.sessionID)
	if h == nil {
		c.sessionID = ""
		c.active = false
	}
	return h
}
