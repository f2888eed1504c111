// Package host declares the interfaces the control plane consumes from the
// embedding application. The control plane never reaches into host
// internals directly; everything backend-specific (scene playback, output
// panel text, breakpoint gutter markers) arrives through these
// collaborators, injected at construction time.
//
// All collaborators are optional. A method routed to an absent collaborator
// produces a runtime error envelope, not a crash.
package host

import "github.com/hostpeek/hostpeek/pkg/types"

// SceneRunner drives scene playback in the host. The timeout argument is an
// auto-stop hint in seconds; zero means run until stopped. Scheduling the
// auto-stop timer is the host's concern.
type SceneRunner interface {
	PlayMainScene(timeoutSeconds float64) error
	PlayScene(scenePath string, timeoutSeconds float64) error
	PlayCurrentScene(timeoutSeconds float64) error
	StopScene() error
	IsPlaying() bool
}

// OutputSource exposes the host's console/output text. When newOnly is set,
// only text appended since the last clear is returned. When clear is set,
// the current position is marked so later newOnly calls start from it.
// totalLength is the full length of the underlying buffer.
type OutputSource interface {
	Output(newOnly, clear bool) (text string, totalLength int)
}

// RemoteInspector reads the live scene tree of the running program. Node
// lookup takes the already-split path components ("/root/Main/Player"
// arrives as ["root", "Main", "Player"]).
type RemoteInspector interface {
	SceneTree() (string, error)
	NodeProperties(parts []string) ([]types.NodeProperty, error)
}

// BreakpointDisplay mirrors breakpoint state into the host's editor gutter.
// Purely cosmetic: callers treat failures as non-fatal and never depend on
// it for breakpoint correctness.
type BreakpointDisplay interface {
	SetGutterBreakpoint(path string, line int, enabled bool) error
}
