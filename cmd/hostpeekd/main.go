package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hostpeek/hostpeek/internal/config"
	"github.com/hostpeek/hostpeek/internal/debug"
	"github.com/hostpeek/hostpeek/internal/mux"
	"github.com/hostpeek/hostpeek/internal/rpc"
	"github.com/hostpeek/hostpeek/internal/version"
)

func main() {
	configPath := flag.String("config", "", "Path to configuration file (JSON)")
	socketPath := flag.String("socket", "", "Socket path (overrides config)")
	workspace := flag.String("workspace", "", "Workspace name (overrides config)")
	showVersion := flag.Bool("version", false, "Show version and exit")
	help := flag.Bool("help", false, "Show help and exit")

	flag.Parse()

	if *showVersion {
		fmt.Printf("hostpeekd version %s\n", version.Version)
		os.Exit(0)
	}
	if *help {
		printHelp()
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *workspace != "" {
		cfg.Workspace = *workspace
	}
	if *socketPath != "" {
		cfg.SocketPath = *socketPath
	}

	if err := run(cfg); err != nil {
		log.Fatalf("Fatal: %v", err)
	}
}

func run(cfg *config.Config) error {
	ctrl := debug.NewController(nil, nil)
	dispatcher := rpc.NewDispatcher(ctrl)

	m := mux.New(cfg.ResolveSocketPath())
	started, err := m.Start()
	if err != nil {
		return fmt.Errorf("start endpoint: %w", err)
	}
	if !started {
		return fmt.Errorf("endpoint %s is owned by another process", m.Path())
	}
	defer m.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var backend *debug.Backend
	if cfg.Adapter.Enabled {
		backend = debug.NewBackend()
		backend.OnStarted = ctrl.OnSessionStarted
		backend.OnEnded = ctrl.OnSessionEnded
		ctrl.SetProvider(backend)

		spawner := &debug.DelveSpawner{
			DlvPath:    cfg.Adapter.DlvPath,
			BuildFlags: cfg.Adapter.BuildFlags,
		}
		address, _, err := spawner.Spawn(ctx)
		if err != nil {
			return fmt.Errorf("spawn debug adapter: %w", err)
		}
		if err := backend.Connect(address, cfg.Adapter.Program); err != nil {
			return fmt.Errorf("connect debug adapter: %w", err)
		}
		defer backend.Close()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.TickInterval)
	defer ticker.Stop()

	log.Printf("hostpeekd %s serving %s", version.Version, m.Path())
	for {
		select {
		case <-ticker.C:
			m.Poll(dispatcher.Handle)
		case sig := <-sigCh:
			log.Printf("received %v, shutting down", sig)
			return nil
		}
	}
}

func printHelp() {
	fmt.Println(`hostpeekd: control plane daemon for a visual development host

Serves a newline-delimited JSON-RPC protocol over a unix socket, giving
external tools scene control, output capture, and debugger control for
the workspace.

USAGE:
    hostpeekd [OPTIONS]

OPTIONS:
    -config <path>      Path to configuration file (JSON)
    -socket <path>      Socket path (overrides config and workspace naming)
    -workspace <name>   Workspace name used to derive the socket path
    -version            Show version and exit
    -help               Show this help message

CONFIGURATION:
    {
        "workspace": "my-game",
        "socketDir": "/tmp",
        "tickInterval": 50000000,
        "adapter": {
            "enabled": false,
            "dlvPath": "dlv",
            "program": "./cmd/game"
        }
    }

    The HOSTPEEK_SOCKET environment variable overrides the socket path.

METHODS:
    ping                 Liveness check
    set_breakpoint       Set or remove a breakpoint
    clear_breakpoints    Remove all breakpoints
    get_debugger_state   Paused / active / debuggable flags
    debug_continue       Resume a paused session
    debug_break          Pause a running session
    debug_step           Step (into, over, out)
    run_main_scene       Run the workspace's main scene
    run_scene            Run a specific scene
    run_current_scene    Run the open scene
    stop_scene           Stop the running scene
    get_output           Fetch host output text
    get_remote_scene_tree       Node tree of the running program
    get_remote_node_properties  Properties of one remote node`)
}
