package app

import (
	"fmt"
	"log/slog"
	"time"

	"booklend/internal/config"
	"booklend/pkg/catalog"
	"booklend/pkg/clock"
	"booklend/pkg/imaging"
	"booklend/pkg/ledger"
	"booklend/pkg/metadata"
	"booklend/pkg/storage"
	"booklend/pkg/store"
)

// Config holds runtime dependencies for the core application. Store, Objects
// and Resolver may be pre-wired (tests do this); otherwise they are built
// from File.
type Config struct {
	File     config.FileConfig
	Store    store.Store
	Objects  storage.ObjectStore
	Resolver *metadata.Resolver
	Clock    clock.Clock
	Log      *slog.Logger
}

// App wires storage, the loan ledger, catalog rules and metadata enrichment.
type App struct {
	store      store.Store
	objects    storage.ObjectStore
	resolver   *metadata.Resolver
	ledger     *ledger.Ledger
	catalog    *catalog.Catalog
	normalizer imaging.Normalizer
	clock      clock.Clock
	log        *slog.Logger
	refreshPar int
}

// New constructs the application.
func New(cfg Config) (*App, error) {
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.System{}
	}

	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.File.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.File.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}

	objects := cfg.Objects
	if objects == nil {
		var err error
		objects, err = storage.NewMinioStore(
			cfg.File.MinioEndpoint,
			cfg.File.MinioAccessKey,
			cfg.File.MinioSecretKey,
			cfg.File.MinioBucket,
			cfg.File.MinioUseSSL,
		)
		if err != nil {
			return nil, fmt.Errorf("init object store: %w", err)
		}
	}

	resolver := cfg.Resolver
	if resolver == nil {
		resolver = buildResolver(cfg.File, log)
	}

	refreshPar := cfg.File.RefreshConcurrency
	if refreshPar <= 0 {
		refreshPar = 4
	}

	return &App{
		store:      dataStore,
		objects:    objects,
		resolver:   resolver,
		ledger:     ledger.New(dataStore, clk, log),
		catalog:    catalog.New(dataStore, clk, log),
		normalizer: imaging.NewNormalizer(cfg.File.CoverMaxWidth, cfg.File.CoverMaxHeight, cfg.File.CoverQuality),
		clock:      clk,
		log:        log,
		refreshPar: refreshPar,
	}, nil
}

func buildResolver(fc config.FileConfig, log *slog.Logger) *metadata.Resolver {
	timeout := time.Duration(fc.ProviderTimeoutSeconds) * time.Second
	providers := []metadata.Provider{
		metadata.NewGoogleBooks(fc.GoogleBooksURL, timeout),
		metadata.NewOpenLibrary(fc.OpenLibraryURL, timeout),
	}
	normalizer := imaging.NewNormalizer(fc.CoverMaxWidth, fc.CoverMaxHeight, fc.CoverQuality)
	opts := []metadata.ResolverOption{}
	if fc.RedisAddr != "" {
		ttl := time.Duration(fc.CacheTTLHours) * time.Hour
		opts = append(opts, metadata.WithCache(metadata.NewRedisCache(fc.RedisAddr, fc.RedisPassword, ttl)))
	}
	return metadata.NewResolver(providers, normalizer, log, opts...)
}

// Ledger exposes loan lifecycle operations.
func (a *App) Ledger() *ledger.Ledger { return a.ledger }

// Catalog exposes ownership and duplicate rules.
func (a *App) Catalog() *catalog.Catalog { return a.catalog }
