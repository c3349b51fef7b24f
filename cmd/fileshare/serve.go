package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/MahdiBaghbani/fileshare-go/internal/platform/config"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/deps"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/http/server"
)

const shutdownTimeout = 30 * time.Second

// serveFlags holds the string form of every config override flag. Empty
// values leave the loaded config untouched.
type serveFlags struct {
	listenAddr            string
	publicOrigin          string
	tlsMode               string
	adminUsername         string
	adminPassword         string
	storeDriver           string
	dataDir               string
	blobDriver            string
	cacheDriver           string
	loggingLevel          string
	loggingAllowSensitive string
	allowRegistration     string
}

func (f *serveFlags) overrides() config.FlagOverrides {
	return config.FlagOverrides{
		ListenAddr:            &f.listenAddr,
		PublicOrigin:          &f.publicOrigin,
		TLSMode:               &f.tlsMode,
		AdminUsername:         &f.adminUsername,
		AdminPassword:         &f.adminPassword,
		StoreDriver:           &f.storeDriver,
		DataDir:               &f.dataDir,
		BlobDriver:            &f.blobDriver,
		CacheDriver:           &f.cacheDriver,
		LoggingLevel:          &f.loggingLevel,
		LoggingAllowSensitive: &f.loggingAllowSensitive,
		AllowRegistration:     &f.allowRegistration,
	}
}

func newServeCmd(g *globalFlags) *cobra.Command {
	var f serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), g, &f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.listenAddr, "listen", "", "Listen address (overrides config)")
	fl.StringVar(&f.publicOrigin, "public-origin", "", "Public origin used in download links (overrides config)")
	fl.StringVar(&f.tlsMode, "tls-mode", "", "TLS mode: off, static or selfsigned (overrides config)")
	fl.StringVar(&f.adminUsername, "admin-username", "", "Bootstrap admin username (overrides config)")
	fl.StringVar(&f.adminPassword, "admin-password", "", "Bootstrap admin password (overrides config)")
	fl.StringVar(&f.storeDriver, "store-driver", "", "Store driver: sqlite or mirror (overrides config)")
	fl.StringVar(&f.dataDir, "data-dir", "", "Data directory (overrides config)")
	fl.StringVar(&f.blobDriver, "blob-driver", "", "Blob driver: local or s3 (overrides config)")
	fl.StringVar(&f.cacheDriver, "cache-driver", "", "Cache driver: memory or redis (overrides config)")
	fl.StringVar(&f.loggingLevel, "logging-level", "", "Log level: trace, debug, info, warn, error (overrides config)")
	fl.StringVar(&f.loggingAllowSensitive, "logging-allow-sensitive", "", "Allow tokens in logs: true or false (overrides config)")
	fl.StringVar(&f.allowRegistration, "allow-registration", "", "Enable self-service registration: true or false (overrides config)")
	return cmd
}

func runServe(ctx context.Context, g *globalFlags, f *serveFlags) error {
	cfg, logger, err := loadConfig(g, f.overrides())
	if err != nil {
		return err
	}
	logger.Info("effective configuration", "config", cfg.Redacted())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	d, cleanup, err := bootstrap(ctx, cfg, logger)
	if err != nil {
		logger.Error("bootstrap failed", "error", err)
		return err
	}
	defer cleanup()
	deps.SetDeps(d)

	services, err := buildServices(cfg, logger)
	if err != nil {
		logger.Error("failed to build services", "error", err)
		return err
	}

	srv, err := server.New(cfg, logger, services)
	if err != nil {
		logger.Error("failed to create server", "error", err)
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()
	logger.Info("server started, press Ctrl+C to stop")

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			return err
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		return err
	}

	logger.Info("server stopped")
	return nil
}
