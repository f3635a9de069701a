// Package main provides the CLI entry point for the webagent tool server.
//
// webagent drives a headless browser behind five tools: create a session,
// step it one action at a time, snapshot its state, stop it, and replay a
// recorded trace. It serves the tools over stdio JSON-RPC by default, or
// over a small REST surface.
//
// # Basic Usage
//
// Serve on stdio (the default):
//
//	webagent serve
//
// Serve over REST:
//
//	webagent serve --transport rest --port 8377
//
// # Environment Variables
//
//   - WEBAGENT_TRANSPORT: stdio (default) or rest
//   - WEBAGENT_HOST / WEBAGENT_PORT: rest bind address
//   - WEBAGENT_MAX_SESSIONS: session pool size (default 4)
//   - WEBAGENT_HEADLESS: launch browsers headless (default true)
//   - WEBAGENT_ALLOWLIST / WEBAGENT_DENYLIST: comma-separated host lists
//   - WEBAGENT_SESSION_MAX_AGE_MS: idle GC cutoff (default 30 minutes)
//   - WEBAGENT_LOG_LEVEL / WEBAGENT_LOG_FORMAT: logger settings
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/webagent/internal/config"
	"github.com/haasonsaas/webagent/internal/observability"
	"github.com/haasonsaas/webagent/internal/replay"
	"github.com/haasonsaas/webagent/internal/server"
	"github.com/haasonsaas/webagent/internal/session"
	"github.com/haasonsaas/webagent/internal/tools"
)

// Build information - populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "webagent",
		Short: "Browser session tool server",
		Long:  "webagent serves browser control tools: session create, step, snapshot, stop, and replay.",
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("webagent %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

func newServeCmd() *cobra.Command {
	var (
		transport string
		host      string
		port      int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web agent tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.FromEnv()
			if transport != "" {
				cfg.Transport = transport
			}
			if host != "" {
				cfg.Host = host
			}
			if port != 0 {
				cfg.Port = port
			}
			return serve(cfg)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", "", "transport: stdio or rest (default from env)")
	cmd.Flags().StringVar(&host, "host", "", "rest bind host")
	cmd.Flags().IntVar(&port, "port", 0, "rest bind port")
	return cmd
}

func serve(cfg *config.Config) error {
	// stdout carries the stdio protocol, so logs always go to stderr.
	logger := observability.NewLogger(observability.LogConfig{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: os.Stderr,
	})
	metrics := observability.NewMetrics()

	store := replay.NewStore(cfg.TracesRoot)
	manager := session.NewManager(cfg, store, logger, metrics)
	registry := tools.NewRegistry(manager, cfg, logger, metrics)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go manager.Run(ctx)
	defer manager.StopAll()

	logger.Info("webagent starting",
		"version", version,
		"transport", cfg.Transport,
		"max_sessions", cfg.MaxSessions,
		"traces_root", cfg.TracesRoot)

	switch cfg.Transport {
	case config.TransportREST:
		httpServer := server.NewHTTPServer(registry, fmt.Sprintf("%s:%d", cfg.Host, cfg.Port), logger)
		if err := httpServer.Start(); err != nil {
			return err
		}
		<-ctx.Done()
		httpServer.Shutdown(nil)
		return nil

	default:
		stdio := server.NewStdioServer(registry, logger, os.Stdin, os.Stdout)
		return stdio.Run(ctx)
	}
}
