package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"storefront_go/internal/api"
	"storefront_go/internal/infra"
	"storefront_go/internal/realtime"
	"storefront_go/internal/storage"
	"storefront_go/internal/syncx"
)

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config  *infra.Config
	KV      storage.KeyValue
	Client  *api.Client
	Channel *realtime.Channel

	Orders    *syncx.OrdersStore
	Addresses *syncx.AddressStore
	Cart      *syncx.CartStore
	Wishlist  *syncx.WishlistStore

	unlock func()
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization (config, cache db, stores).
func (b *Bootstrap) Initialize() error {
	slog.Info("🚀 Bootstrapping Storefront Sync...")

	// 1. Load Config (Dynamic Path Resolution)
	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	infra.PrintBanner(cfg)

	// 3. Workspace layout. Data Isolation: _workspace/data/{backend}/cache.db
	// so a local run never clobbers the hosted cache and vice versa.
	workDir := infra.GetWorkspaceDir()
	dataDir := filepath.Join(workDir, "data", cfg.Backend)
	if err := infra.EnsureDir(dataDir); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	// 3.1 Singleton Instance Lock. Two processes sharing one cache db would
	// race on the per-domain envelope keys.
	unlock, err := infra.CreateLockFile(workDir)
	if err != nil {
		return err
	}
	b.unlock = unlock

	// 4. Key-value store backend
	kv, err := openKV(cfg, dataDir)
	if err != nil {
		return err
	}
	b.KV = kv
	slog.Info("✅ Cache store ready", slog.String("backend", cfg.Sync.KVBackend))

	// 4.1 Seed the auth token from the secret file when one exists. A later
	// login overwrites it; absence just means unauthenticated start.
	b.seedAuthToken(context.Background())

	// 5. API client against the selected backend
	b.Client = api.NewClient(api.Options{
		BaseURL:       cfg.ResolveAPIBase(),
		Timeout:       cfg.APITimeout(),
		HealthTimeout: cfg.HealthTimeout(),
		HealthCheck:   cfg.API.HealthCheck,
		RateBurst:     cfg.API.RateLimitBurst,
		RatePerSecond: cfg.API.RatePerSecond,
	}, kv)

	// 6. Domain stores, one per synchronized collection
	window := cfg.FreshnessWindow()
	b.Orders = syncx.NewOrdersStore(b.Client, kv, window)
	b.Addresses = syncx.NewAddressStore(b.Client, kv, window)
	b.Cart = syncx.NewCartStore(b.Client, kv, window)
	b.Wishlist = syncx.NewWishlistStore(b.Client, kv, window)

	slog.Info("✅ Domain stores initialized",
		slog.String("api", cfg.ResolveAPIBase()),
		slog.Duration("freshness", window))

	return nil
}

// openKV selects the cache backend. SQLite is the default single-machine
// store; redis serves setups where several devices share one cache.
func openKV(cfg *infra.Config, dataDir string) (storage.KeyValue, error) {
	switch cfg.Sync.KVBackend {
	case "redis":
		return storage.NewRedisStore(cfg.Sync.RedisAddr), nil
	default:
		dbPath := filepath.Join(dataDir, "cache.db")
		store, err := storage.NewSQLiteStore(dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open cache db: %w", err)
		}
		slog.Info("✅ Cache db opened (WAL-mode)", slog.String("path", dbPath))
		return store, nil
	}
}

// seedAuthToken loads secrets/{backend}.yaml if present and stores the token.
func (b *Bootstrap) seedAuthToken(ctx context.Context) {
	path := filepath.Join("secrets", b.Config.Backend+".yaml")
	sec, err := infra.LoadSecretConfig(path)
	if err != nil {
		slog.Debug("No secret config, starting unauthenticated", slog.String("path", path))
		return
	}
	if sec.Auth.Token == "" {
		return
	}
	if err := b.KV.Set(ctx, storage.KeyAuthToken, sec.Auth.Token); err != nil {
		slog.Warn("Failed to store auth token", slog.Any("error", err))
		return
	}
	slog.Info("🔑 Auth token seeded", slog.String("account", sec.Auth.Email))
}

// SyncAll hydrates every domain store, cache first then network. Domains are
// independent; one failing does not block the others.
func (b *Bootstrap) SyncAll(ctx context.Context) {
	slog.Info("🔄 Starting domain synchronization...")

	inits := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"orders", b.Orders.Init},
		{"addresses", b.Addresses.Init},
		{"cart", b.Cart.Init},
		{"wishlist", b.Wishlist.Init},
	}

	var wg sync.WaitGroup
	for _, in := range inits {
		wg.Add(1)
		go func(name string, fn func(context.Context) error) {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				slog.Warn("Domain sync failed", slog.String("domain", name), slog.Any("error", err))
			}
		}(in.name, in.fn)
	}
	wg.Wait()

	slog.Info("✨ Domain synchronization completed",
		slog.Int("orders", len(b.Orders.Items())),
		slog.Int("addresses", len(b.Addresses.Items())),
		slog.Int("cart", len(b.Cart.Items())),
		slog.Int("wishlist", len(b.Wishlist.Items())))
}

// Refresh re-fetches every domain that has fallen out of its freshness
// window. Fresh domains are cheap no-ops.
func (b *Bootstrap) Refresh(ctx context.Context) {
	fetches := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"orders", b.Orders.FetchAll},
		{"addresses", b.Addresses.FetchAll},
		{"cart", b.Cart.FetchAll},
		{"wishlist", b.Wishlist.FetchAll},
	}

	var wg sync.WaitGroup
	for _, f := range fetches {
		wg.Add(1)
		go func(name string, fn func(context.Context) error) {
			defer wg.Done()
			if err := fn(ctx); err != nil {
				slog.Warn("Domain refresh failed", slog.String("domain", name), slog.Any("error", err))
			}
		}(f.name, f.fn)
	}
	wg.Wait()
}

// ConnectRealtime starts the update channel and binds every store to its
// cross-session hints. No-op when realtime is disabled.
func (b *Bootstrap) ConnectRealtime(ctx context.Context) {
	if !b.Config.Realtime.Enabled {
		slog.Info("Realtime channel disabled")
		return
	}

	url := b.Config.ResolveWSBase() + api.EndpointWS
	b.Channel = realtime.NewChannel(url, b.Config.Sync.UserID,
		realtime.SyncDomains{Cart: true, Wishlist: true, Profile: true},
		b.Config.ReconnectDelay())

	b.Orders.Bind(ctx, b.Channel, syncx.ActionOrderUpdated, syncx.ActionOrderPlaced, syncx.ActionOrderUpdated)
	b.Addresses.Bind(ctx, b.Channel, syncx.ActionAddressChanged, syncx.ActionAddressChanged)
	b.Cart.Bind(ctx, b.Channel, syncx.ActionCartChanged, syncx.ActionCartChanged)
	b.Wishlist.Bind(ctx, b.Channel, syncx.ActionWishlistChanged, syncx.ActionWishlistChanged)

	b.Channel.Start(ctx)
	slog.Info("✅ Realtime channel started", slog.String("url", url))
}

// Shutdown releases every resource acquired during Initialize.
func (b *Bootstrap) Shutdown() {
	if b.Channel != nil {
		b.Orders.Unbind()
		b.Addresses.Unbind()
		b.Cart.Unbind()
		b.Wishlist.Unbind()
		b.Channel.Stop()
	}
	if b.KV != nil {
		if err := b.KV.Close(); err != nil {
			slog.Warn("Cache store close failed", slog.Any("error", err))
		}
	}
	if b.unlock != nil {
		b.unlock()
	}
}
