// inboxd receives signed message webhooks and serves them back over HTTP.
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

	"github.com/goliatone/go-command"
	inbox "github.com/goliatone/go-inbox"
	"github.com/goliatone/go-inbox/adapters/gocommand"
	"github.com/goliatone/go-inbox/adapters/gologger"
	inboxprom "github.com/goliatone/go-inbox/adapters/prometheus"
	"github.com/goliatone/go-inbox/httpapi"
	sqlstore "github.com/goliatone/go-inbox/store/sql"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	host := flag.String("host", "", "Listen host (overrides HOST)")
	port := flag.Int("port", 0, "Listen port (overrides PORT)")
	databaseURL := flag.String("database-url", "", "Database URL (overrides DATABASE_URL)")
	logLevel := flag.String("log-level", "", "Log level (overrides LOG_LEVEL)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("inboxd %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", buildDate)
		os.Exit(0)
	}

	runtime := inbox.Config{
		Host:        *host,
		Port:        *port,
		DatabaseURL: *databaseURL,
		LogLevel:    *logLevel,
	}
	if err := run(runtime); err != nil {
		fmt.Fprintf(os.Stderr, "inboxd: %v\n", err)
		os.Exit(1)
	}
}

func run(runtime inbox.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := inbox.LoadConfig(ctx, runtime)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	root := gologger.NewJSON(os.Stdout, cfg.LogLevel)
	slog.SetDefault(root.Slog())
	provider := gologger.NewProvider(root)
	logger := provider.GetLogger("inboxd")

	recorder, err := inboxprom.NewRecorder()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	client, err := sqlstore.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer client.Close()

	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client,
		sqlstore.WithStatsCacheTTL(cfg.StatsCacheTTL()),
	)
	if err != nil {
		return fmt.Errorf("build stores: %w", err)
	}

	facade, err := inbox.NewFacade(cfg, factory.Store(),
		inbox.WithLoggerProvider(provider),
		inbox.WithMetricsRecorder(recorder),
	)
	if err != nil {
		return fmt.Errorf("build facade: %w", err)
	}

	registry := gocommand.NewRegistryAdapter(command.NewRegistry())
	api, err := httpapi.New(facade,
		httpapi.WithRegistry(registry),
		httpapi.WithLoggerProvider(provider),
		httpapi.WithMetricsRecorder(recorder),
		httpapi.WithMetricsHandler(recorder.Handler()),
		httpapi.WithMaxBodyBytes(cfg.MaxBodyBytes),
	)
	if err != nil {
		return fmt.Errorf("build http api: %w", err)
	}
	defer api.Close()
	if err := registry.Initialize(); err != nil {
		return fmt.Errorf("initialize registry: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("inboxd starting",
			"addr", srv.Addr,
			"version", version,
			"secret_configured", cfg.SecretConfigured(),
		)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
