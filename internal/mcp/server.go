// Package mcp provides an MCP (Model Context Protocol) server for lifnet.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/nvandessel/lifnet/internal/config"
	"github.com/nvandessel/lifnet/internal/constants"
	"github.com/nvandessel/lifnet/internal/logging"
	"github.com/nvandessel/lifnet/internal/ratelimit"
	"github.com/nvandessel/lifnet/internal/simulation"
	"github.com/nvandessel/lifnet/internal/store"
)

// Server wraps the MCP SDK server and exposes lifnet simulations as tools.
type Server struct {
	server   *sdk.Server
	store    store.RunStore
	root     string
	defaults *config.LifnetConfig
	runner   *simulation.Runner
	limiters ratelimit.ToolLimiters
	audit    *AuditLogger
	events   *logging.EventLogger
	logger   *slog.Logger

	// simMu serialises simulations; each run is CPU-bound and single-threaded.
	simMu     sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

// Config holds server configuration.
type Config struct {
	Name    string // Server name (e.g., "lifnet")
	Version string // Server version
	Root    string // Project root directory

	// Lifnet supplies defaults for simulate requests. Nil uses config.Default().
	Lifnet *config.LifnetConfig

	// Store overrides the project run database. The server closes it.
	Store store.RunStore

	Logger *slog.Logger
}

// NewServer creates a new MCP server with lifnet tools.
func NewServer(cfg *Config) (*Server, error) {
	defaults := cfg.Lifnet
	if defaults == nil {
		defaults = config.Default()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	runStore := cfg.Store
	if runStore == nil {
		s, err := store.NewSQLiteRunStore(cfg.Root)
		if err != nil {
			return nil, fmt.Errorf("failed to create run store: %w", err)
		}
		runStore = s
	}

	lifnetDir := filepath.Join(cfg.Root, constants.DirName)
	events := logging.NewEventLogger(lifnetDir, defaults.Logging.Level)

	mcpServer := sdk.NewServer(&sdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	s := &Server{
		server:   mcpServer,
		store:    runStore,
		root:     cfg.Root,
		defaults: defaults,
		runner:   &simulation.Runner{Store: runStore, Events: events, Logger: logger},
		limiters: ratelimit.NewToolLimiters(),
		audit:    NewAuditLogger(lifnetDir),
		events:   events,
		logger:   logger,
	}

	s.registerTools()
	return s, nil
}

// Run starts the MCP server over stdio transport.
// This blocks until the client disconnects or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)

	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	err := s.server.Run(ctx, &sdk.StdioTransport{})

	s.Close()

	return err
}

// Close releases the store and log files. It is safe to call more than once.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.store.Close()
		s.events.Close()
		if err := s.audit.Close(); err != nil && s.closeErr == nil {
			s.closeErr = err
		}
	})
	return s.closeErr
}
