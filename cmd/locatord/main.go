// Command locatord serves the element locator over HTTP and MCP.
//
// Usage:
//
//	locatord -config locatord.yaml     # HTTP API on /api, MCP on /mcp
//	locatord -mcp-stdio                # MCP over stdin/stdout
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/domlocator/locator"
	"github.com/hazyhaar/domlocator/shield"
	"github.com/hazyhaar/domlocator/snapshot"
)

const version = "0.1.0"

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	addr := flag.String("addr", "", "listen address (overrides server.addr)")
	stdio := flag.Bool("mcp-stdio", false, "serve MCP over stdin/stdout instead of HTTP")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	// stdout belongs to the MCP stdio transport.
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *configPath, *addr, *stdio); err != nil {
		logger.Error("locatord: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath, addr string, stdio bool) error {
	cfg := locator.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = locator.LoadConfigFile(configPath); err != nil {
			return err
		}
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	cfg.Browser.Logger = logger

	reg, err := locator.New(locator.WithConfig(cfg), locator.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("registry: %w", err)
	}
	capturer := snapshot.NewCapturer(cfg.Browser)
	defer func() {
		if err := capturer.Close(); err != nil {
			logger.Warn("locatord: close browser", "error", err)
		}
	}()
	svc := locator.NewService(reg, cfg, capturer, logger)

	mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "domlocator", Version: version}, nil)
	svc.RegisterMCP(mcpSrv)

	if stdio {
		logger.Info("locatord: serving MCP on stdio", "engines", len(reg.Names()))
		return mcpSrv.Run(ctx, &mcp.StdioTransport{})
	}

	r := chi.NewRouter()
	for _, mw := range shield.DefaultStack(cfg.Server.Config) {
		r.Use(mw)
	}
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})
	r.Route("/api", svc.Routes)
	r.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return mcpSrv }, nil))

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("locatord: shutdown", "error", err)
		}
	}()

	logger.Info("locatord: listening", "addr", cfg.Server.Addr, "engines", len(reg.Names()))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen: %w", err)
	}
	return nil
}
