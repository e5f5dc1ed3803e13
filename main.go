package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"deadbears-gallery/app"
	"deadbears-gallery/config"
	"deadbears-gallery/logger"
	"deadbears-gallery/models"
	"deadbears-gallery/service"
)

var (
	configPath string
	debug      bool
	warmSize   string
)

var rootCmd = &cobra.Command{
	Use:   "deadbears",
	Short: "Dead Bears gallery and ritual terminal server",
	// Running without a subcommand starts the server
	RunE:          runServe,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Init(debug); err != nil {
			return err
		}
		// Load .env file in development; in production variables are set directly
		config.LoadDotEnv()
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server and load the collection in the background",
	RunE:  runServe,
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load the whole collection once and print the load status as JSON",
	Long: `Runs the metadata loader against the configured IPFS gateways without starting the server.
Useful to warm a gateway or check that the collection is reachable.

Examples:
  deadbears load
  deadbears load --warm thumb
  BATCH_SIZE=10 deadbears load --debug`,
	RunE: runLoad,
}

func init() {
	defaultConfig := os.Getenv("CONFIG_PATH")
	if defaultConfig == "" {
		defaultConfig = "config.yaml"
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfig, "path to the YAML config file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	loadCmd.Flags().StringVar(&warmSize, "warm", "", "after loading, download and cache every image at this size (thumb or medium)")
	rootCmd.AddCommand(serveCmd, loadCmd)
}

func main() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration and applies its debug setting unless --debug was given
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if !cmd.Flags().Changed("debug") {
		logger.SetDebug(cfg.Server.Debug)
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize application
	application, err := app.Initialize(ctx, cfg)
	if err != nil {
		return err
	}
	defer application.Close()

	application.StartLoading(ctx)

	// Listen on 0.0.0.0 to accept connections from all interfaces (required for Docker/Render)
	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           application.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("🚀 Server starting on %s", cfg.Addr())
		logger.Info("🐻 Gallery endpoint: GET http://localhost:%s/api/gallery", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed to start: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("🛑 Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("❌ Server shutdown: %v", err)
	}
	application.Wait()
	return nil
}

func runLoad(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := &http.Client{}
	loader := app.NewLoader(cfg, client)
	var ids []int
	loadErr := loader.LoadAll(ctx, func(items []models.NFT) {
		for _, item := range items {
			ids = append(ids, item.ID)
		}
		logger.Debug("📦 %d/%d loaded", len(ids), cfg.Collection.TotalSupply)
	})

	output := struct {
		Status models.LoadStatus   `json:"status"`
		Warm   *models.WarmReport `json:"warm,omitempty"`
	}{Status: loader.Status()}

	if warmSize != "" && ctx.Err() == nil {
		images, err := app.NewImageOptimizer(cfg, client)
		if err != nil {
			return err
		}
		report, err := service.NewDownloadService(images).DownloadAllImages(ctx, ids, warmSize)
		if err != nil {
			return err
		}
		output.Warm = &report
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(output); err != nil {
		return err
	}
	return loadErr
}
