package debug

// Breakpoint is one cached source breakpoint. Only enabled breakpoints are
// ever cached; disabling one removes it.
type Breakpoint struct {
	Path string
	Line int
}

// BreakpointCache holds the breakpoints that should be applied to a debug
// session. Entries are kept in insertion order so reapplying them on a new
// session replays the caller's original sequence.
//
// The cache is not safe for concurrent use; the controller serializes access.
type BreakpointCache struct {
	entries []Breakpoint
}

// NewBreakpointCache creates an empty cache
func NewBreakpointCache() *BreakpointCache {
	return &BreakpointCache{}
}

// Set records or removes a breakpoint. Enabled adds (path, line) if absent;
// disabled removes it if present. Setting an already-cached breakpoint is a
// no-op that keeps its original position.
func (c *BreakpointCache) Set(path string, line int, enabled bool) {
	idx := c.find(path, line)
	if enabled {
		if idx < 0 {
			c.entries = append(c.entries, Breakpoint{Path: path, Line: line})
		}
		return
	}
	if idx >= 0 {
		c.entries = append(c.entries[:idx], c.entries[idx+1:]...)
	}
}

// Clear empties the cache
func (c *BreakpointCache) Clear() {
	c.entries = nil
}

// All returns the cached breakpoints in insertion order. The returned slice
// is a copy.
func (c *BreakpointCache) All() []Breakpoint {
	out := make([]Breakpoint, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len returns the number of cached breakpoints
func (c *BreakpointCache) Len() int {
	return len(c.entries)
}

func (c *BreakpointCache) find(path string, line int) int {
	for i, bp := range c.entries {
		if bp.Path == path && bp.Line == line {
			return i
		}
	}
	return -1
}
