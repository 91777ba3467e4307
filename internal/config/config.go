package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"investorradar/domain/catalog"
	"investorradar/internal/errors"
)

// Config represents the complete application configuration
type Config struct {
	Database  DatabaseConfig `validate:"required"`
	Server    ServerConfig   `validate:"required"`
	Catalog   CatalogConfig
	Discovery DiscoveryConfig
	Sync      SyncConfig
	Auth      AuthConfig
	Broker    BrokerConfig
	Scheduler SchedulerConfig
	Cache     CacheConfig
	Export    ExportConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	URL      string `validate:"required"`
	User     string
	Password string
	Name     string
	Host     string
	Port     int
	SSLMode  string
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Port    string `validate:"required"`
	GinMode string
	OpsPort string
}

// CatalogConfig holds open-data portal connection settings.
// An empty BaseURL leaves the catalog client unconfigured: discovery
// then reports an empty result instead of failing.
type CatalogConfig struct {
	BaseURL        string
	SearchPath     string
	BrowsePath     string
	LoadMorePath   string
	DatasetPath    string
	UserAgent      string
	RequestTimeout time.Duration
	RatePerMinute  int
	RespectRobots  bool
	DebugDir       string
}

// DiscoveryConfig holds identifier discovery settings
type DiscoveryConfig struct {
	Policy     catalog.TerminationPolicy
	PageSize   int
	ProbeTerms []string
	Categories []string
}

// SyncConfig holds dataset synchronization settings
type SyncConfig struct {
	Workers         int
	DetailTimeout   time.Duration
	SnapshotWindow  int
	BackfillBatch   int
	SignalWindow    int
	SpikeThreshold  float64
	TrendMinSlope   float64
	MinObservations int
}

// AuthConfig holds account and token settings
type AuthConfig struct {
	AdminEmail    string
	AdminPassword string
	TokenTTL      time.Duration
}

// BrokerConfig holds message broker settings.
// An empty URL disables event publishing.
type BrokerConfig struct {
	URL      string
	Exchange string
}

// SchedulerConfig holds background run settings
type SchedulerConfig struct {
	Enabled           bool
	DiscoveryInterval time.Duration
	SyncInterval      time.Duration
	RunTimeout        time.Duration
}

// CacheConfig holds read-side cache settings
type CacheConfig struct {
	SummaryTTL time.Duration
	Size       int
}

// ExportConfig holds spreadsheet export settings
type ExportConfig struct {
	Dir string
}

// Load reads configuration from environment variables, applies the
// optional sources file overlay, and validates the result
func Load() (*Config, error) {
	config := &Config{}

	// Load database configuration
	dbConfig, err := loadDatabaseConfig()
	if err != nil {
		return nil, errors.Wrap(err, "failed to load database configuration")
	}
	config.Database = *dbConfig

	// Load server configuration
	serverConfig := loadServerConfig()
	config.Server = *serverConfig

	// Load catalog configuration
	catalogConfig := loadCatalogConfig()
	config.Catalog = *catalogConfig

	// Load discovery configuration
	discoveryConfig := loadDiscoveryConfig()
	config.Discovery = *discoveryConfig

	// Load sync configuration
	syncConfig := loadSyncConfig()
	config.Sync = *syncConfig

	// Load auth configuration
	authConfig := loadAuthConfig()
	config.Auth = *authConfig

	// Load broker configuration
	brokerConfig := loadBrokerConfig()
	config.Broker = *brokerConfig

	// Load scheduler configuration
	schedulerConfig := loadSchedulerConfig()
	config.Scheduler = *schedulerConfig

	// Load cache configuration
	cacheConfig := loadCacheConfig()
	config.Cache = *cacheConfig

	// Load export configuration
	exportConfig := loadExportConfig()
	config.Export = *exportConfig

	// Overlay catalog sources file when present
	if path := os.Getenv("CATALOG_SOURCES_FILE"); path != "" {
		if err := applySourcesFile(config, path); err != nil {
			return nil, errors.Wrap(err, "failed to load catalog sources file")
		}
	}

	// Validate required fields
	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadDatabaseConfig() (*DatabaseConfig, error) {
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		return nil, errors.ConfigInvalid("DATABASE_URL is required")
	}

	return &DatabaseConfig{
		URL:      url,
		User:     getEnvOrDefault("DB_USER", ""),
		Password: getEnvOrDefault("DB_PASS", ""),
		Name:     getEnvOrDefault("DB_NAME", ""),
		Host:     getEnvOrDefault("DB_HOST", ""),
		Port:     getEnvIntOrDefault("DB_PORT", 5432),
		SSLMode:  getEnvOrDefault("SSL_MODE", "disable"),
	}, nil
}

func loadServerConfig() *ServerConfig {
	return &ServerConfig{
		Port:    getEnvOrDefault("PORT", "8080"),
		GinMode: getEnvOrDefault("GIN_MODE", "debug"),
		OpsPort: getEnvOrDefault("OPS_PORT", "9090"),
	}
}

func loadCatalogConfig() *CatalogConfig {
	return &CatalogConfig{
		BaseURL:        getEnvOrDefault("CATALOG_BASE_URL", ""),
		SearchPath:     getEnvOrDefault("CATALOG_SEARCH_PATH", "/api/datasets/search"),
		BrowsePath:     getEnvOrDefault("CATALOG_BROWSE_PATH", "/datasets"),
		LoadMorePath:   getEnvOrDefault("CATALOG_LOAD_MORE_PATH", "/api/datasets"),
		DatasetPath:    getEnvOrDefault("CATALOG_DATASET_PATH", "/api/datasets/%s"),
		UserAgent:      getEnvOrDefault("CATALOG_USER_AGENT", "investor-radar/1.0"),
		RequestTimeout: getEnvDurationOrDefault("CATALOG_REQUEST_TIMEOUT", 30*time.Second),
		RatePerMinute:  getEnvIntOrDefault("CATALOG_RATE_PER_MINUTE", 60),
		RespectRobots:  getEnvBoolOrDefault("CATALOG_RESPECT_ROBOTS", true),
		DebugDir:       getEnvOrDefault("CATALOG_DEBUG_DIR", ""),
	}
}

func loadDiscoveryConfig() *DiscoveryConfig {
	def := catalog.DefaultTerminationPolicy()
	policy := catalog.TerminationPolicy{
		MaxSteps:          getEnvIntOrDefault("DISCOVERY_MAX_STEPS", def.MaxSteps),
		NoNewResultStreak: getEnvIntOrDefault("DISCOVERY_NO_NEW_STREAK", def.NoNewResultStreak),
	}

	return &DiscoveryConfig{
		Policy:     policy.Normalize(),
		PageSize:   getEnvIntOrDefault("DISCOVERY_PAGE_SIZE", 50),
		ProbeTerms: getEnvListOrDefault("DISCOVERY_PROBE_TERMS", []string{"a", "e", "i", "o", "u", "1"}),
		Categories: getEnvListOrDefault("DISCOVERY_CATEGORIES", defaultCategories()),
	}
}

func loadSyncConfig() *SyncConfig {
	return &SyncConfig{
		Workers:         getEnvIntOrDefault("SYNC_WORKERS", 4),
		DetailTimeout:   getEnvDurationOrDefault("SYNC_DETAIL_TIMEOUT", 20*time.Second),
		SnapshotWindow:  getEnvIntOrDefault("SNAPSHOT_WINDOW_DAYS", 90),
		BackfillBatch:   getEnvIntOrDefault("BACKFILL_BATCH", 25),
		SignalWindow:    getEnvIntOrDefault("SIGNAL_WINDOW_DAYS", 30),
		SpikeThreshold:  getEnvFloatOrDefault("SIGNAL_SPIKE_ZSCORE", 2.0),
		TrendMinSlope:   getEnvFloatOrDefault("SIGNAL_TREND_MIN_SLOPE", 0.5),
		MinObservations: getEnvIntOrDefault("SIGNAL_MIN_OBSERVATIONS", 5),
	}
}

func loadAuthConfig() *AuthConfig {
	return &AuthConfig{
		AdminEmail:    getEnvOrDefault("ADMIN_EMAIL", ""),
		AdminPassword: getEnvOrDefault("ADMIN_PASSWORD", ""),
		TokenTTL:      getEnvDurationOrDefault("TOKEN_TTL", 720*time.Hour),
	}
}

func loadBrokerConfig() *BrokerConfig {
	return &BrokerConfig{
		URL:      getEnvOrDefault("RABBITMQ_URL", ""),
		Exchange: getEnvOrDefault("RABBITMQ_EXCHANGE", "radar.events"),
	}
}

func loadSchedulerConfig() *SchedulerConfig {
	return &SchedulerConfig{
		Enabled:           getEnvBoolOrDefault("SCHEDULER_ENABLED", false),
		DiscoveryInterval: getEnvDurationOrDefault("SCHEDULER_DISCOVERY_INTERVAL", 12*time.Hour),
		SyncInterval:      getEnvDurationOrDefault("SCHEDULER_SYNC_INTERVAL", 6*time.Hour),
		RunTimeout:        getEnvDurationOrDefault("SCHEDULER_RUN_TIMEOUT", 30*time.Minute),
	}
}

func loadCacheConfig() *CacheConfig {
	return &CacheConfig{
		SummaryTTL: getEnvDurationOrDefault("CACHE_SUMMARY_TTL", time.Minute),
		Size:       getEnvIntOrDefault("CACHE_SIZE", 128),
	}
}

func loadExportConfig() *ExportConfig {
	return &ExportConfig{
		Dir: getEnvOrDefault("EXPORT_DIR", os.TempDir()),
	}
}

func defaultCategories() []string {
	return []string{
		"economy-and-finance",
		"health",
		"education",
		"transportation",
		"energy",
		"environment",
		"tourism",
		"population",
		"agriculture",
		"trade",
	}
}

// sourcesFile mirrors the optional YAML overlay for portal settings.
// Environment references like ${CATALOG_BASE_URL} are expanded before
// parsing.
type sourcesFile struct {
	Catalog struct {
		BaseURL      string `yaml:"base_url"`
		SearchPath   string `yaml:"search_path"`
		BrowsePath   string `yaml:"browse_path"`
		LoadMorePath string `yaml:"load_more_path"`
		DatasetPath  string `yaml:"dataset_path"`
		UserAgent    string `yaml:"user_agent"`
	} `yaml:"catalog"`
	Discovery struct {
		Categories []string                   `yaml:"categories"`
		ProbeTerms []string                   `yaml:"probe_terms"`
		Policy     *catalog.TerminationPolicy `yaml:"policy"`
	} `yaml:"discovery"`
}

func applySourcesFile(config *Config, path string) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}

	var file sourcesFile
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(raw))), &file); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	if file.Catalog.BaseURL != "" {
		config.Catalog.BaseURL = file.Catalog.BaseURL
	}
	if file.Catalog.SearchPath != "" {
		config.Catalog.SearchPath = file.Catalog.SearchPath
	}
	if file.Catalog.BrowsePath != "" {
		config.Catalog.BrowsePath = file.Catalog.BrowsePath
	}
	if file.Catalog.LoadMorePath != "" {
		config.Catalog.LoadMorePath = file.Catalog.LoadMorePath
	}
	if file.Catalog.DatasetPath != "" {
		config.Catalog.DatasetPath = file.Catalog.DatasetPath
	}
	if file.Catalog.UserAgent != "" {
		config.Catalog.UserAgent = file.Catalog.UserAgent
	}
	if len(file.Discovery.Categories) > 0 {
		config.Discovery.Categories = file.Discovery.Categories
	}
	if len(file.Discovery.ProbeTerms) > 0 {
		config.Discovery.ProbeTerms = file.Discovery.ProbeTerms
	}
	if file.Discovery.Policy != nil {
		config.Discovery.Policy = file.Discovery.Policy.Normalize()
	}

	return nil
}

func validateConfig(config *Config) error {
	if config.Database.URL == "" {
		return errors.ConfigInvalid("database URL is required")
	}
	if config.Server.Port == "" {
		return errors.ConfigInvalid("server port is required")
	}
	if config.Discovery.PageSize <= 0 {
		return errors.ConfigInvalid("discovery page size must be positive")
	}
	if config.Sync.Workers <= 0 {
		return errors.ConfigInvalid("sync worker count must be positive")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvListOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
