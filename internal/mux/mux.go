// Package mux owns the unix socket endpoint and multiplexes its clients.
//
// The multiplexer never blocks: Poll is called once per host tick and uses
// immediate deadlines on the listener and every connection, so each call
// accepts whatever clients are waiting, drains whatever bytes have arrived,
// and returns. Partial lines stay buffered per connection until the
// terminating newline shows up; bytes from one client never mix with
// another's.
package mux

import (
	"bytes"
	"io"
	"log"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// probeTimeout bounds the liveness probe dial against an existing socket
// file. A live owner accepts within this window; a dead one leaves ECONNREFUSED.
const probeTimeout = 250 * time.Millisecond

const readChunk = 4096

// Handler processes one complete request line (newline stripped) and
// returns the response line (newline appended by the multiplexer).
type Handler func(line string) string

type client struct {
	conn net.Conn
	buf  []byte
}

// Multiplexer is the non-blocking multi-client endpoint. Start, Poll and
// Stop are expected on the same goroutine (the host tick); the state
// accessors are safe from anywhere.
type Multiplexer struct {
	path string

	mu      sync.Mutex
	ln      *net.UnixListener
	clients map[string]*client
	order   []string
	running bool
	owns    bool
}

// New creates a multiplexer for the given socket path. No socket is
// touched until Start.
func New(path string) *Multiplexer {
	return &Multiplexer{
		path:    path,
		clients: make(map[string]*client),
	}
}

// Start claims the endpoint. When a socket file already exists it is
// probed first: if something is accepting on it, another live owner holds
// the endpoint and Start returns false without touching the file. A dead
// leftover file is removed and replaced.
func (m *Multiplexer) Start() (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return true, nil
	}

	if _, err := os.Stat(m.path); err == nil {
		if conn, err := net.DialTimeout("unix", m.path, probeTimeout); err == nil {
			conn.Close()
			log.Printf("[mux] endpoint %s has a live owner, not starting", m.path)
			return false, nil
		}
		log.Printf("[mux] removing stale socket %s", m.path)
		if err := os.Remove(m.path); err != nil {
			return false, err
		}
	}

	ln, err := net.Listen("unix", m.path)
	if err != nil {
		return false, err
	}
	m.ln = ln.(*net.UnixListener)
	m.owns = true
	m.running = true
	log.Printf("[mux] listening on %s", m.path)
	return true, nil
}

// Poll runs one non-blocking service pass: accept pending clients, drain
// each connection's pending bytes, dispatch every complete line through
// handler, and write the responses. Disconnected clients are dropped.
func (m *Multiplexer) Poll(handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}

	m.acceptPending()

	for _, id := range append([]string(nil), m.order...) {
		c, ok := m.clients[id]
		if !ok {
			continue
		}
		if !m.service(id, c, handler) {
			m.dropLocked(id)
		}
	}
}

// acceptPending accepts every client already waiting on the listener
func (m *Multiplexer) acceptPending() {
	for {
		m.ln.SetDeadline(time.Now())
		conn, err := m.ln.Accept()
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				return
			}
			log.Printf("[mux] accept: %v", err)
			return
		}
		id := uuid.NewString()
		m.clients[id] = &client{conn: conn}
		m.order = append(m.order, id)
		log.Printf("[mux] client %s connected", id[:8])
	}
}

// service drains one connection and handles its complete lines. Returns
// false when the client should be dropped.
func (m *Multiplexer) service(id string, c *client, handler Handler) bool {
	chunk := make([]byte, readChunk)
	for {
		c.conn.SetReadDeadline(time.Now())
		n, err := c.conn.Read(chunk)
		if n > 0 {
			c.buf = append(c.buf, chunk[:n]...)
		}
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				break
			}
			if err != io.EOF {
				log.Printf("[mux] client %s read: %v", id[:8], err)
			}
			// Handle what already arrived, then drop.
			m.flush(id, c, handler)
			return false
		}
	}
	return m.flush(id, c, handler)
}

// flush dispatches every complete line buffered for the client. Returns
// false when a response write fails.
func (m *Multiplexer) flush(id string, c *client, handler Handler) bool {
	for {
		nl := bytes.IndexByte(c.buf, '\n')
		if nl < 0 {
			return true
		}
		line := string(c.buf[:nl])
		c.buf = c.buf[nl+1:]
		if line == "" {
			continue
		}
		resp := handler(line)
		c.conn.SetWriteDeadline(time.Now().Add(time.Second))
		if _, err := c.conn.Write([]byte(resp + "\n")); err != nil {
			log.Printf("[mux] client %s write: %v", id[:8], err)
			return false
		}
	}
}

// Stop closes every client, the listener, and (when this process created
// it) the socket file. Safe to call when not running.
func (m *Multiplexer) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	for id := range m.clients {
		m.clients[id].conn.Close()
	}
	m.clients = make(map[string]*client)
	m.order = nil

	m.ln.Close()
	m.ln = nil
	m.running = false

	if m.owns {
		if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
			log.Printf("[mux] remove socket: %v", err)
		}
		m.owns = false
	}
	log.Printf("[mux] stopped")
}

// IsRunning reports whether the endpoint is live
func (m *Multiplexer) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// ClientCount returns the number of connected clients
func (m *Multiplexer) ClientCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

// Path returns the endpoint's socket path
func (m *Multiplexer) Path() string {
	return m.path
}

func (m *Multiplexer) dropLocked(id string) {
	c, ok := m.clients[id]
	if !ok {
		return
	}
	c.conn.Close()
	delete(m.clients, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	log.Printf("[mux] client %s disconnected", id[:8])
}
