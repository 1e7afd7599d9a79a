// ana serves the research-canvas session manager: durable multi-session
// storage, an active-session tracker, and bidirectional state sync with a
// remote research agent.
//
// Configuration (environment):
//
//	ANA_ADDR       listen address (default ":8080")
//	ANA_DATA_DIR   storage directory (default "./data")
//	ANA_STORE      storage backend: "file", "sqlite", or "memory" (default "file")
//	ANA_AGENT_URL  websocket URL of the agent's state endpoint; empty runs local-only
package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ana-research/canvas/pkg/agent"
	"github.com/ana-research/canvas/pkg/agent/ws"
	"github.com/ana-research/canvas/pkg/controller"
	"github.com/ana-research/canvas/pkg/server"
	"github.com/ana-research/canvas/pkg/session"
	"github.com/ana-research/canvas/pkg/storage"
	"github.com/ana-research/canvas/pkg/storage/file"
	"github.com/ana-research/canvas/pkg/storage/memory"
	"github.com/ana-research/canvas/pkg/storage/sqlite"
)

func main() {
	// Setup logger.
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
	slog.SetDefault(logger)

	// Config.
	addr := envOr("ANA_ADDR", ":8080")
	dataDir := envOr("ANA_DATA_DIR", "data")
	backend := envOr("ANA_STORE", "file")
	agentURL := os.Getenv("ANA_AGENT_URL")

	ctx := context.Background()

	// Initialize store.
	var (
		store storage.Store
		err   error
	)
	switch backend {
	case "file":
		store, err = file.New(dataDir)
	case "sqlite":
		os.MkdirAll(dataDir, 0755)
		store, err = sqlite.New(filepath.Join(dataDir, "canvas.db"))
	case "memory":
		store = memory.New()
	default:
		slog.Error("Unknown ANA_STORE backend", "backend", backend)
		os.Exit(1)
	}
	if err != nil {
		slog.Error("Failed to initialize store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	// Initialize session manager.
	sessions, err := session.NewManager(ctx, store)
	if err != nil {
		slog.Error("Failed to initialize session manager", "error", err)
		os.Exit(1)
	}
	defer sessions.Close(ctx)

	// Connect to the agent, or run local-only.
	var conn agent.Connection
	if agentURL != "" {
		conn, err = ws.Dial(ctx, agentURL)
		if err != nil {
			slog.Warn("Agent unreachable, running local-only", "url", agentURL, "error", err)
			conn = agent.NewOffline()
		}
	} else {
		conn = agent.NewOffline()
	}
	defer conn.Close()

	// Start the sync controller in the background.
	ctrl := controller.New(sessions, conn)
	go func() {
		if err := ctrl.Start(ctx); err != nil && ctx.Err() == nil {
			slog.Error("Sync controller stopped unexpectedly", "error", err)
		}
	}()

	// Start server.
	srv := server.New(ctrl)
	if err := srv.Start(addr); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
