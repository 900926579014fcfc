// Command hubgate runs the smart-home hub gateway: a REST surface that
// lets automation agents discover and control devices managed by the hub
// without holding the hub's own credentials.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/HerbHall/hubgate/internal/audit"
	"github.com/HerbHall/hubgate/internal/catalog"
	"github.com/HerbHall/hubgate/internal/config"
	"github.com/HerbHall/hubgate/internal/control"
	"github.com/HerbHall/hubgate/internal/hub"
	"github.com/HerbHall/hubgate/internal/secrets"
	"github.com/HerbHall/hubgate/internal/server"
	"github.com/HerbHall/hubgate/internal/token"
	"github.com/HerbHall/hubgate/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to hubgate.yaml")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Info())
		return
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(*configPath, logger); err != nil {
		logger.Fatal("hubgate exited", zap.Error(err))
	}
}

func run(configPath string, logger *zap.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	storagePath := cfg.GetString("storage.path")
	reader := secrets.NewReader(
		filepath.Join(storagePath, cfg.GetString("storage.secrets_file")),
		filepath.Join(storagePath, cfg.GetString("storage.users_file")),
		logger.Named("secrets"),
	)

	resolver := token.NewResolver(
		filepath.Join(storagePath, cfg.GetString("storage.token_file")),
		reader,
		logger.Named("token"),
	)
	apiToken := resolver.Resolve(cfg.GetString("gateway.api_token"))

	bridge := hub.New(
		cfg.GetString("hub.url"),
		reader,
		cfg.GetString("hub.username"),
		cfg.GetString("hub.password"),
		cfg.GetDuration("hub.timeout"),
		logger.Named("hub"),
	)

	var auditStore *audit.Store
	if path := cfg.GetString("audit.path"); path != "" {
		auditStore, err = audit.Open(path)
		if err != nil {
			return fmt.Errorf("open audit store: %w", err)
		}
		defer auditStore.Close()
		if err := auditStore.Migrate(context.Background()); err != nil {
			return fmt.Errorf("migrate audit store: %w", err)
		}
	}

	srv := server.New(server.Config{
		Addr:       cfg.GetString("server.addr"),
		APIToken:   apiToken,
		Reader:     bridge,
		Catalog:    catalog.New(cfg.GetString("gateway.name")),
		Dispatcher: control.NewDispatcher(bridge, auditStore, logger.Named("control")),
		Audit:      auditStore,
		RateLimit:  rate.Limit(cfg.GetFloat64("server.rate_limit")),
		RateBurst:  cfg.GetInt("server.rate_burst"),
	}, logger.Named("server"))

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
