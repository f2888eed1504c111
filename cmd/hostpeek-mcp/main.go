package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/hostpeek/hostpeek/internal/bridge"
	"github.com/hostpeek/hostpeek/internal/client"
	"github.com/hostpeek/hostpeek/internal/mux"
)

func main() {
	// All logging goes to stderr; stdout carries the MCP protocol.
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ltime | log.Lshortfile)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(ctx context.Context) error {
	// Socket path resolution: explicit env override first, then the
	// workspace-derived name from the current directory.
	socketPath := os.Getenv("HOSTPEEK_SOCKET")
	if socketPath == "" {
		dir, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("resolve workspace: %w", err)
		}
		socketPath = mux.SocketPath(os.TempDir(), filepath.Base(dir))
	}

	c := client.New(socketPath)
	if err := connectWithRetry(ctx, c, 3); err != nil {
		return fmt.Errorf("failed to connect to control plane: %w", err)
	}
	defer c.Close()

	log.Printf("starting MCP server (connected to %s)", socketPath)
	return bridge.ServeStdio(bridge.NewServer(c))
}

func connectWithRetry(ctx context.Context, c *client.Client, maxRetries int) error {
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		if i > 0 {
			log.Printf("retrying connection (%d/%d)...", i+1, maxRetries)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(i) * time.Second):
			}
		}

		err := c.Connect(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		log.Printf("connection attempt failed: %v", err)
	}
	return lastErr
}
