package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"deadbears-gallery/logger"
)

// RewardTier is one entry of the weighted reward table
type RewardTier struct {
	Name   string  `yaml:"name"`
	Weight float64 `yaml:"weight"`
}

// Config holds every tunable of the service. Zero values are replaced by Defaults().
type Config struct {
	Server struct {
		Port    string `yaml:"port"`
		BaseURL string `yaml:"base_url"`
		Debug   bool   `yaml:"debug"`

		// AdminToken guards refresh, cache warm-up and redeem. Empty disables those endpoints.
		AdminToken string `yaml:"admin_token"`
	} `yaml:"server"`

	Database struct {
		URL      string `yaml:"url"`
		Host     string `yaml:"host"`
		Port     string `yaml:"port"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
		Name     string `yaml:"name"`
		SSLMode  string `yaml:"sslmode"`
	} `yaml:"database"`

	Collection struct {
		TotalSupply  int      `yaml:"total_supply"`
		Gateways     []string `yaml:"gateways"`
		MetadataHash string   `yaml:"metadata_hash"`
		ImageHash    string   `yaml:"image_hash"`
		OneOfOneIDs  []int    `yaml:"one_of_one_ids"`
		TraitTypes   []string `yaml:"trait_types"`
	} `yaml:"collection"`

	Loader struct {
		BatchSize      int           `yaml:"batch_size"`
		BatchDelay     time.Duration `yaml:"batch_delay"`
		MaxRetries     int           `yaml:"max_retries"`
		RetryDelay     time.Duration `yaml:"retry_delay"`
		RequestTimeout time.Duration `yaml:"request_timeout"`
	} `yaml:"loader"`

	View struct {
		InitialWindow int `yaml:"initial_window"`
		WindowStep    int `yaml:"window_step"`
	} `yaml:"view"`

	Rewards struct {
		Tiers       []RewardTier  `yaml:"tiers"`
		CodePrefix  string        `yaml:"code_prefix"`
		SessionTTL  time.Duration `yaml:"session_ttl"`
		MaxSessions int           `yaml:"max_sessions"`
	} `yaml:"rewards"`

	Images struct {
		CacheDir   string `yaml:"cache_dir"`
		ChromePath string `yaml:"chrome_path"`
	} `yaml:"images"`
}

// Defaults returns the canonical configuration of the collection
func Defaults() *Config {
	cfg := &Config{}
	cfg.Server.Port = "8080"
	cfg.Server.BaseURL = "http://localhost:8080"

	cfg.Database.Port = "5432"
	cfg.Database.SSLMode = "disable"

	cfg.Collection.TotalSupply = 2222
	cfg.Collection.Gateways = []string{
		"https://gateway.pinata.cloud/ipfs",
		"https://ipfs.io/ipfs",
		"https://cloudflare-ipfs.com/ipfs",
	}
	cfg.Collection.MetadataHash = "bafybeifspz7rgzbrwvuoqsa5jepafex5p5x7lt4uyn2kfbkigptg4ebqgy"
	cfg.Collection.ImageHash = "bafybeih7353uke62onbpb2mac4fvko4iipd6puelmzk7etzamkbx3yzavq"
	cfg.Collection.OneOfOneIDs = []int{2054, 1876, 1597, 1140, 1231, 1044, 424, 1647}
	cfg.Collection.TraitTypes = []string{"Background", "Fur", "Clothes", "Mouth", "Eyes", "Hat"}

	cfg.Loader.BatchSize = 50
	cfg.Loader.BatchDelay = 250 * time.Millisecond
	cfg.Loader.MaxRetries = 3
	cfg.Loader.RetryDelay = 500 * time.Millisecond
	cfg.Loader.RequestTimeout = 5 * time.Second

	cfg.View.InitialWindow = 50
	cfg.View.WindowStep = 50

	cfg.Rewards.Tiers = []RewardTier{
		{Name: "OG", Weight: 10},
		{Name: "WL", Weight: 90},
	}
	cfg.Rewards.CodePrefix = "RITUAL"
	cfg.Rewards.SessionTTL = 30 * time.Minute
	cfg.Rewards.MaxSessions = 10000

	cfg.Images.CacheDir = "cache/images"
	return cfg
}

// LoadDotEnv loads .env outside production. Values in .env override the process environment.
func LoadDotEnv() {
	if os.Getenv("ENV") == "production" {
		return
	}

	envPath := ".env"
	if err := godotenv.Overload(envPath); err != nil {
		logger.Debug("⚠️  .env file not found at %s, using system environment variables", envPath)
		return
	}
	logger.Info("✓ Loaded environment variables from %s (overriding system variables)", envPath)
}

// Load builds the configuration: defaults, then the YAML file at path (if present), then environment.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
			logger.Info("✓ Loaded config file %s", path)
		case os.IsNotExist(err):
			logger.Debug("Config file %s not found, using defaults and environment", path)
		default:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		// PORT from hosting platforms sometimes carries a leading colon
		c.Server.Port = strings.TrimPrefix(v, ":")
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		c.Server.BaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("DEBUG"); v != "" {
		c.Server.Debug = v == "true" || v == "1"
	}
	setString(&c.Server.AdminToken, "ADMIN_TOKEN")

	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	setString(&c.Database.Host, "DB_HOST")
	setString(&c.Database.Port, "DB_PORT")
	setString(&c.Database.User, "DB_USER")
	setString(&c.Database.Password, "DB_PASSWORD")
	setString(&c.Database.Name, "DB_NAME")
	setString(&c.Database.SSLMode, "DB_SSLMODE")

	if v := os.Getenv("IPFS_GATEWAYS"); v != "" {
		var gateways []string
		for _, g := range strings.Split(v, ",") {
			if g = strings.TrimRight(strings.TrimSpace(g), "/"); g != "" {
				gateways = append(gateways, g)
			}
		}
		c.Collection.Gateways = gateways
	}
	setString(&c.Collection.MetadataHash, "METADATA_HASH")
	setString(&c.Collection.ImageHash, "IMAGE_HASH")
	setString(&c.Images.CacheDir, "IMAGE_CACHE_DIR")
	setString(&c.Images.ChromePath, "CHROME_PATH")

	if err := setInt(&c.Collection.TotalSupply, "TOTAL_SUPPLY"); err != nil {
		return err
	}
	if err := setInt(&c.Loader.BatchSize, "BATCH_SIZE"); err != nil {
		return err
	}
	if err := setInt(&c.Loader.MaxRetries, "MAX_RETRIES"); err != nil {
		return err
	}
	if err := setInt(&c.Rewards.MaxSessions, "TERMINAL_MAX_SESSIONS"); err != nil {
		return err
	}
	if err := setDuration(&c.Loader.BatchDelay, "BATCH_DELAY"); err != nil {
		return err
	}
	if err := setDuration(&c.Loader.RetryDelay, "RETRY_DELAY"); err != nil {
		return err
	}
	if err := setDuration(&c.Rewards.SessionTTL, "TERMINAL_SESSION_TTL"); err != nil {
		return err
	}
	if err := setDuration(&c.Loader.RequestTimeout, "REQUEST_TIMEOUT"); err != nil {
		return err
	}
	return nil
}

// Validate rejects configurations the loader and view model cannot run with
func (c *Config) Validate() error {
	if c.Collection.TotalSupply <= 0 {
		return fmt.Errorf("total supply must be greater than 0, got %d", c.Collection.TotalSupply)
	}
	if len(c.Collection.Gateways) == 0 {
		return fmt.Errorf("at least one IPFS gateway is required")
	}
	if c.Collection.MetadataHash == "" || c.Collection.ImageHash == "" {
		return fmt.Errorf("metadata and image content hashes are required")
	}
	if c.Loader.BatchSize <= 0 {
		return fmt.Errorf("batch size must be greater than 0, got %d", c.Loader.BatchSize)
	}
	if c.Loader.MaxRetries <= 0 {
		return fmt.Errorf("max retries must be greater than 0, got %d", c.Loader.MaxRetries)
	}
	if c.Loader.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}
	if c.View.InitialWindow <= 0 || c.View.WindowStep <= 0 {
		return fmt.Errorf("window sizes must be greater than 0")
	}
	if c.Rewards.SessionTTL <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}
	if c.Rewards.MaxSessions <= 0 {
		return fmt.Errorf("max sessions must be greater than 0, got %d", c.Rewards.MaxSessions)
	}
	var total float64
	for _, t := range c.Rewards.Tiers {
		if t.Name == "" || t.Weight < 0 {
			return fmt.Errorf("invalid reward tier %+v", t)
		}
		total += t.Weight
	}
	if total <= 0 {
		return fmt.Errorf("reward tiers must have a positive total weight")
	}
	return nil
}

// DatabaseDSN returns the connection string, or "" when no database is configured
func (c *Config) DatabaseDSN() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	if c.Database.Host == "" || c.Database.User == "" || c.Database.Name == "" {
		return ""
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host, c.Database.Port, c.Database.User, c.Database.Password, c.Database.Name, c.Database.SSLMode)
}

// Addr is the listen address. 0.0.0.0 so containers accept outside connections.
func (c *Config) Addr() string {
	return "0.0.0.0:" + c.Server.Port
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = d
	return nil
}
