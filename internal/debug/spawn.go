package debug

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"time"
)

// AdapterSpawner starts a debug adapter process and returns the TCP
// address it listens on.
type AdapterSpawner interface {
	Spawn(ctx context.Context) (address string, cmd *exec.Cmd, err error)
}

// DelveSpawner spawns a Delve adapter in DAP mode
type DelveSpawner struct {
	DlvPath    string
	BuildFlags string
}

// Spawn implements AdapterSpawner
func (d *DelveSpawner) Spawn(ctx context.Context) (string, *exec.Cmd, error) {
	port := findAvailablePort()
	address := fmt.Sprintf("127.0.0.1:%d", port)

	dlvArgs := []string{
		"dap",
		"--listen", address,
	}
	if d.BuildFlags != "" {
		dlvArgs = append(dlvArgs, "--build-flags", d.BuildFlags)
	}

	cmd := exec.CommandContext(ctx, d.DlvPath, dlvArgs...)
	cmd.Env = os.Environ()

	if err := cmd.Start(); err != nil {
		return "", nil, fmt.Errorf("failed to start dlv: %w", err)
	}

	// Give the adapter a moment to bind its listener
	time.Sleep(500 * time.Millisecond)

	return address, cmd, nil
}

// findAvailablePort finds a free TCP port by binding to port 0
func findAvailablePort() int {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 38000
	}
	defer listener.Close()
	addr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		return 38000
	}
	return addr.Port
}
