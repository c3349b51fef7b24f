package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/MahdiBaghbani/fileshare-go/internal/components/gateway"
	"github.com/MahdiBaghbani/fileshare-go/internal/components/identity"
	"github.com/MahdiBaghbani/fileshare-go/internal/components/shares"
	"github.com/MahdiBaghbani/fileshare-go/internal/frameworks/service"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/blob"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/cache"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/config"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/deps"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/http/realip"
	"github.com/MahdiBaghbani/fileshare-go/internal/platform/store"

	// Driver and service registration
	_ "github.com/MahdiBaghbani/fileshare-go/internal/interceptors/ratelimit"
	_ "github.com/MahdiBaghbani/fileshare-go/internal/platform/blob/loader"
	_ "github.com/MahdiBaghbani/fileshare-go/internal/platform/cache/loader"
	_ "github.com/MahdiBaghbani/fileshare-go/internal/platform/store/loader"
	_ "github.com/MahdiBaghbani/fileshare-go/internal/services/loader"
)

// openStore builds the configured store driver and migrates its schema.
func openStore(ctx context.Context, cfg *config.Config, log *slog.Logger) (store.Driver, error) {
	drv, err := store.New(&store.Config{
		Driver:  cfg.Store.Driver,
		DataDir: cfg.Store.DataDir,
		Mirror:  store.MirrorConfig{IncludeSecrets: cfg.Store.Mirror.IncludeSecrets},
		Log:     log,
	})
	if err != nil {
		return nil, err
	}
	if err := drv.Init(ctx); err != nil {
		return nil, fmt.Errorf("init %s store: %w", drv.Name(), err)
	}
	return drv, nil
}

// blobDriverConfigs returns the [blob.drivers] table with the local root
// defaulted to <data_dir>/blobs.
func blobDriverConfigs(cfg *config.Config) map[string]any {
	out := make(map[string]any, len(cfg.Blob.Drivers)+1)
	for k, v := range cfg.Blob.Drivers {
		out[k] = v
	}

	local := map[string]any{}
	if existing, ok := out["local"].(map[string]any); ok {
		for k, v := range existing {
			local[k] = v
		}
	}
	if root, _ := local["root"].(string); root == "" {
		local["root"] = filepath.Join(cfg.Store.DataDir, "blobs")
	}
	out["local"] = local
	return out
}

// bootstrap builds every shared dependency in start-up order: cache, store,
// blob store, identity, then the share manager and gateway. The returned
// cleanup closes what was opened, in reverse.
func bootstrap(ctx context.Context, cfg *config.Config, log *slog.Logger) (*deps.Deps, func(), error) {
	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				log.Warn("close failed", "error", err)
			}
		}
	}
	fail := func(err error) (*deps.Deps, func(), error) {
		cleanup()
		return nil, func() {}, err
	}

	c, err := cache.NewFromConfig(cfg.Cache.Driver, cfg.Cache.Drivers)
	if err != nil {
		return fail(fmt.Errorf("create cache: %w", err))
	}
	closers = append(closers, c.Close)

	drv, err := openStore(ctx, cfg, log)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, drv.Close)

	blobs, err := blob.New(cfg.Blob.Driver, blobDriverConfigs(cfg), log)
	if err != nil {
		return fail(fmt.Errorf("create blob store: %w", err))
	}
	closers = append(closers, blobs.Close)
	if p, ok := blobs.(blob.Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fail(fmt.Errorf("blob store %s unreachable: %w", blobs.Name(), err))
		}
	}

	userAuth := identity.NewUserAuth()
	parties := drv.Parties()
	boot := identity.NewBootstrap(parties, userAuth, log)
	admin := cfg.Server.BootstrapAdmin
	if err := boot.EnsureAdmin(ctx, admin.Username, admin.Password, admin.Password != ""); err != nil {
		return fail(fmt.Errorf("bootstrap admin: %w", err))
	}
	seeded := make([]identity.SeededUser, len(cfg.Server.SeededUsers))
	for i, u := range cfg.Server.SeededUsers {
		seeded[i] = identity.SeededUser{
			Username:    u.Username,
			Password:    u.Password,
			Email:       u.Email,
			DisplayName: u.DisplayName,
			Role:        identity.RoleUser,
		}
	}
	if n, err := boot.Run(ctx, seeded); err != nil {
		return fail(fmt.Errorf("seed users: %w", err))
	} else if n > 0 {
		log.Info("seeded users created", "count", n)
	}

	tp, invalid := realip.NewTrustedProxies(cfg.Server.TrustedProxies)
	if len(invalid) > 0 {
		log.Warn("ignoring invalid trusted proxy entries", "entries", invalid)
	}

	mgr := shares.NewManager(drv.Shares(), blobs, cfg.Uploads.MaxBytes, log)

	d := &deps.Deps{
		PartyRepo:   parties,
		SessionRepo: identity.NewCacheSessionRepo(c),
		UserAuth:    userAuth,
		Store:       drv,
		Blob:        blobs,
		Shares:      mgr,
		Gateway:     gateway.New(mgr, cfg.Logging.AllowSensitive, log),
		Config:      cfg,
		Cache:       c,
		RealIP:      tp,
	}

	log.Info("dependencies ready",
		"store", drv.Name(),
		"blob", blobs.Name(),
		"cache", cfg.Cache.Driver,
	)
	return d, cleanup, nil
}

// buildServices constructs every core service from its config section.
// Shared deps must be set first.
func buildServices(cfg *config.Config, log *slog.Logger) (map[string]service.Service, error) {
	services := make(map[string]service.Service, len(service.CoreServices))
	var errs []error
	for _, name := range service.CoreServices {
		newFn := service.Get(name)
		if newFn == nil {
			errs = append(errs, fmt.Errorf("service %q not registered", name))
			continue
		}

		conf := cfg.BuildServiceConfig(name)
		if name == "api" {
			conf = cfg.BuildAPIServiceConfig()
		}

		svc, err := newFn(conf, log.With("service", name))
		if err != nil {
			errs = append(errs, fmt.Errorf("service %q: %w", name, err))
			continue
		}
		services[name] = svc
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return services, nil
}
