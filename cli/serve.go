package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/spf13/cobra"

	aurora "github.com/KotDath/aurora-mcp"
	"github.com/KotDath/aurora-mcp/servers/demo"
	"github.com/KotDath/aurora-mcp/servers/filesystem"
	"github.com/KotDath/aurora-mcp/servers/memory"
)

const (
	serverName    = "aurora-mcp"
	serverVersion = "0.1.0"

	// shutdownGrace bounds how long in-flight requests may run after an
	// interrupt before remaining sessions are force-closed.
	shutdownGrace = 10 * time.Second

	exitRuntime = 2
)

// NewServeCmd creates the "serve" subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the tool server",
		RunE:  runServe,
	}

	cmd.Flags().StringP("transport", "t", "stdio", "Transport to serve on: stdio, http, or sse")
	cmd.Flags().StringP("host", "H", "127.0.0.1", "Listen host (http and sse)")
	cmd.Flags().IntP("port", "p", 3000, "Listen port (http and sse)")
	cmd.Flags().Bool("cors", false, "Allow cross-origin requests")
	cmd.Flags().StringP("log-level", "l", "info", "Log level: debug, info, warn, or error")
	cmd.Flags().Int("request-timeout", 30, "Per-request timeout in seconds")
	cmd.Flags().Int("idle-timeout", 300, "Idle session timeout in seconds")
	cmd.Flags().String("config", "", "Path to YAML config file")
	cmd.Flags().StringSlice("tools", []string{"demo"}, "Tool suites to expose: demo, filesystem, memory")
	cmd.Flags().String("root", ".", "Root directory for the filesystem suite")
	cmd.Flags().String("memory-file", "memory.json", "Persistence file for the memory suite")

	return cmd
}

// registerSuites sets up each requested tool suite and registers its tools.
func registerSuites(cmd *cobra.Command, registry *aurora.ToolRegistry, info aurora.Info, logger *slog.Logger) error {
	suites, _ := cmd.Flags().GetStringSlice("tools")

	for _, name := range suites {
		switch name {
		case "demo":
			if err := demo.NewSuite(info, logger).RegisterAll(registry); err != nil {
				return fmt.Errorf("failed to register demo tools: %w", err)
			}
		case "filesystem":
			root, _ := cmd.Flags().GetString("root")
			suite, err := filesystem.NewSuite(root, logger)
			if err != nil {
				return fmt.Errorf("failed to set up filesystem tools: %w", err)
			}
			if err := suite.RegisterAll(registry); err != nil {
				return fmt.Errorf("failed to register filesystem tools: %w", err)
			}
		case "memory":
			path, _ := cmd.Flags().GetString("memory-file")
			suite, err := memory.NewSuite(path, logger)
			if err != nil {
				return fmt.Errorf("failed to set up memory tools: %w", err)
			}
			if err := suite.RegisterAll(registry); err != nil {
				return fmt.Errorf("failed to register memory tools: %w", err)
			}
		default:
			return fmt.Errorf("unknown tool suite %q, have demo, filesystem, and memory", name)
		}
	}
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	level, _ := cfg.slogLevel()
	// Logs go to stderr; on the stdio transport stdout belongs to the
	// protocol.
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	registry := aurora.NewToolRegistry()
	info := aurora.Info{Name: serverName, Version: serverVersion}

	if err := registerSuites(cmd, registry, info, logger); err != nil {
		return err
	}

	srv := aurora.NewServer(info, registry,
		aurora.WithLogger(logger),
		aurora.WithRequestTimeout(cfg.RequestTimeout),
		aurora.WithIdleTimeout(cfg.IdleTimeout),
	)
	srv.Start()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Transport == "stdio" {
		return serveStdio(ctx, srv, logger)
	}
	return serveHTTP(ctx, srv, cfg, logger)
}

func serveStdio(ctx context.Context, srv *aurora.Server, logger *slog.Logger) error {
	stdio := aurora.NewStdIO(srv, os.Stdin, os.Stdout)
	err := stdio.Listen(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if sErr := srv.Shutdown(shutdownCtx); sErr != nil {
		logger.Warn("shutdown did not finish cleanly", slog.String("err", sErr.Error()))
	}

	if err != nil {
		return exitError(exitRuntime, "stdio transport failed: %v", err)
	}
	return nil
}

// serveHTTP runs the http and sse transports; both ride one chi router with
// a shared health endpoint.
func serveHTTP(ctx context.Context, srv *aurora.Server, cfg Config, logger *slog.Logger) error {
	router := chi.NewRouter()
	if cfg.CORS {
		router.Use(cors.New(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type", aurora.SessionHeader},
			ExposedHeaders: []string{aurora.SessionHeader},
			MaxAge:         300,
		}).Handler)
	}

	transport := aurora.TransportKind(cfg.Transport)
	httpAdapter := aurora.NewHTTPServer(srv)
	router.Method(http.MethodGet, "/health", httpAdapter.HandleHealth(transport))

	switch transport {
	case aurora.TransportHTTP:
		router.Method(http.MethodPost, "/rpc", httpAdapter.HandleRPC())
	case aurora.TransportSSE:
		sseAdapter := aurora.NewSSEServer(srv, "/events")
		router.Method(http.MethodGet, "/events", sseAdapter.HandleEvents())
		router.Method(http.MethodPost, "/events/{session}", sseAdapter.HandleMessage())
	}

	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	httpServer := &http.Server{
		Addr:    addr,
		Handler: router,
		// No read or write timeout: SSE streams stay open indefinitely.
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening",
			slog.String("addr", addr),
			slog.String("transport", cfg.Transport))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return exitError(exitRuntime, "failed to serve on %s: %v", addr, err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	// Drain the protocol server first so open event streams close and their
	// handlers return, then let the HTTP server finish those handlers.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown did not finish cleanly", slog.String("err", err.Error()))
	}
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return exitError(exitRuntime, "shutdown error: %v", err)
	}
	return nil
}
