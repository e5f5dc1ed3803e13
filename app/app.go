package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"deadbears-gallery/app/controller"
	"deadbears-gallery/app/router"
	"deadbears-gallery/config"
	"deadbears-gallery/db"
	"deadbears-gallery/logger"
	"deadbears-gallery/models"
	"deadbears-gallery/repository"
	"deadbears-gallery/service"
)

// App holds the wired components of the service
type App struct {
	Config  *config.Config
	Handler http.Handler
	Catalog *repository.CatalogRepository
	Loader  *service.MetadataLoader

	done chan struct{}
}

// NewLoader builds the metadata loader for cfg
func NewLoader(cfg *config.Config, client *http.Client) *service.MetadataLoader {
	return service.NewMetadataLoader(client, service.NewGatewayRotator(cfg.Collection.Gateways), service.LoaderOptions{
		Supply:         cfg.Collection.TotalSupply,
		BatchSize:      cfg.Loader.BatchSize,
		BatchDelay:     cfg.Loader.BatchDelay,
		MaxRetries:     cfg.Loader.MaxRetries,
		RetryDelay:     cfg.Loader.RetryDelay,
		RequestTimeout: cfg.Loader.RequestTimeout,
		MetadataHash:   cfg.Collection.MetadataHash,
		ImageHash:      cfg.Collection.ImageHash,
		OneOfOneIDs:    cfg.Collection.OneOfOneIDs,
	})
}

// NewImageOptimizer builds the image optimizer for cfg and creates its cache directory
func NewImageOptimizer(cfg *config.Config, client *http.Client) (*service.ImageOptimizer, error) {
	images := service.NewImageOptimizer(client, service.NewGatewayRotator(cfg.Collection.Gateways), service.ImageOptions{
		ImageHash:      cfg.Collection.ImageHash,
		CacheDir:       cfg.Images.CacheDir,
		MaxRetries:     cfg.Loader.MaxRetries,
		RetryDelay:     cfg.Loader.RetryDelay,
		RequestTimeout: cfg.Loader.RequestTimeout,
	})
	if err := images.EnsureCacheDir(); err != nil {
		return nil, err
	}
	return images, nil
}

// Initialize initializes the application: database, services, controllers and routes
func Initialize(ctx context.Context, cfg *config.Config) (*App, error) {
	// Initialize database connection (optional)
	if err := db.InitDB(ctx, cfg.DatabaseDSN()); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	var ledger repository.RewardRepositoryInterface
	if db.DB != nil {
		ledger = repository.NewRewardRepository(db.DB)
	}

	client := &http.Client{}

	// Initialize repository and services
	catalog := repository.NewCatalogRepository(cfg.Collection.TotalSupply)
	loader := NewLoader(cfg, client)

	images, err := NewImageOptimizer(cfg, client)
	if err != nil {
		return nil, err
	}
	sheets := service.NewSheetService(cfg.Server.BaseURL, cfg.Images.ChromePath)

	rewards := service.NewRewardService(cfg.Rewards.Tiers, cfg.Rewards.CodePrefix, ledger, nil)
	terminal := service.NewTerminalService(rewards, cfg.Rewards.SessionTTL, cfg.Rewards.MaxSessions, nil)
	go terminal.RunSweeper(ctx, max(cfg.Rewards.SessionTTL/2, time.Second))

	// Create controllers
	controllers := &router.Controllers{
		Gallery: controller.NewGalleryController(catalog, loader, images, sheets,
			cfg.Collection.TraitTypes, cfg.View.InitialWindow, cfg.View.WindowStep, cfg.Server.AdminToken),
		Reward:   controller.NewRewardController(rewards, cfg.Server.AdminToken),
		Terminal: controller.NewTerminalController(terminal),
		Download: controller.NewDownloadController(service.NewDownloadService(images), catalog, cfg.Server.AdminToken),
	}

	// Setup routes using standard http router
	mux := http.NewServeMux()
	router.SetupRoutes(mux, controllers)

	return &App{
		Config:  cfg,
		Handler: mux,
		Catalog: catalog,
		Loader:  loader,
		done:    make(chan struct{}),
	}, nil
}

// StartLoading loads the collection into the catalog in the background until ctx is cancelled
func (a *App) StartLoading(ctx context.Context) {
	go func() {
		defer close(a.done)
		err := a.Loader.LoadAll(ctx, a.Publish)
		switch {
		case errors.Is(err, context.Canceled):
			logger.Info("⚠️  Metadata load cancelled")
		case err != nil:
			logger.Warn("⚠️  Metadata load finished with errors: %v", err)
		}
	}()
}

// Publish adds a loaded batch to the catalog
func (a *App) Publish(items []models.NFT) {
	if _, err := a.Catalog.Add(items...); err != nil {
		logger.Warn("⚠️  Some items were not added to the catalog: %v", err)
	}
}

// Wait blocks until background loading started by StartLoading has returned
func (a *App) Wait() {
	<-a.done
}

// Close releases the application's resources
func (a *App) Close() error {
	return db.CloseDB()
}
