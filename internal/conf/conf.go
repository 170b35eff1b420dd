package conf

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/devricklin/feishu-request-relay/internal/biz/usecase"
)

// Config represents application configuration
type Config struct {
	// Feishu configuration
	Feishu FeishuConfig

	// Link store configuration
	Store StoreConfig

	// Relay engine tuning
	Relay RelayConfig

	// Relevance filter (optional)
	Filter FilterConfig

	// HTTP API configuration
	API APIConfig

	// Keyword→tag table (loaded from YAML)
	Tags *TagsConfig

	LogLevel string

	// Debug mode
	Debug bool
}

// FeishuConfig contains Feishu configuration
type FeishuConfig struct {
	AppID       string
	AppSecret   string
	StaffChatID string // Group chat that receives forwarded requests
}

// StoreConfig selects the Link Store backend
type StoreConfig struct {
	Driver string // sqlite or postgres
	DBPath string // sqlite file
	DSN    string // postgres connection string
}

// RelayConfig contains the relay engine parameters
type RelayConfig struct {
	MinInterval     time.Duration
	DedupWindow     time.Duration
	DedupMaxEntries int
	AlbumDebounce   time.Duration
	AlbumMaxParts   int
	TextLimit       int
	MaxTags         int
	SweepInterval   time.Duration

	// RequireBudget rejects requests without a budget instead of forwarding them
	RequireBudget bool
}

// FilterConfig configures the OpenAI-compatible relevance filter
type FilterConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

// APIConfig contains HTTP API settings
type APIConfig struct {
	Addr string
	// URL the MCP binary uses to reach the API
	URL string
}

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() *Config {
	// Link DB path
	dbPath := os.Getenv("LINK_DB_PATH")
	if dbPath == "" {
		homeDir, _ := os.UserHomeDir()
		dbPath = filepath.Join(homeDir, ".feishu-relay", "links.db")
	}

	driver := strings.ToLower(os.Getenv("LINK_DB_DRIVER"))
	if driver == "" {
		driver = DriverSQLite
	}

	apiAddr := getEnv("API_ADDR", "127.0.0.1:9876")

	relay := RelayConfig{
		MinInterval:     getEnvDuration("RATE_MIN_INTERVAL", 3*time.Second),
		DedupWindow:     getEnvDuration("DEDUP_WINDOW", 10*time.Minute),
		DedupMaxEntries: getEnvInt("DEDUP_MAX_ENTRIES", 64),
		AlbumDebounce:   getEnvDuration("ALBUM_DEBOUNCE", 1500*time.Millisecond),
		AlbumMaxParts:   getEnvInt("ALBUM_MAX_PARTS", 10),
		TextLimit:       getEnvInt("FINGERPRINT_TEXT_LIMIT", 4096),
		MaxTags:         getEnvInt("MAX_TAGS", 0),
		SweepInterval:   getEnvDuration("SWEEP_INTERVAL", time.Minute),
		RequireBudget:   os.Getenv("RELAY_REQUIRE_BUDGET") == "true",
	}

	// Load keyword→tag table from YAML
	tags, _ := LoadTagsConfig(os.Getenv("TAGS_CONFIG_PATH"))
	if relay.MaxTags == 0 {
		relay.MaxTags = tags.MaxTags
	}

	return &Config{
		Feishu: FeishuConfig{
			AppID:       os.Getenv("FEISHU_APP_ID"),
			AppSecret:   os.Getenv("FEISHU_APP_SECRET"),
			StaffChatID: os.Getenv("STAFF_CHAT_ID"),
		},
		Store: StoreConfig{
			Driver: driver,
			DBPath: dbPath,
			DSN:    os.Getenv("LINK_DB_DSN"),
		},
		Relay: relay,
		Filter: FilterConfig{
			APIKey:  os.Getenv("FILTER_API_KEY"),
			Model:   os.Getenv("FILTER_MODEL"),
			BaseURL: os.Getenv("FILTER_BASE_URL"),
		},
		API: APIConfig{
			Addr: apiAddr,
			URL:  getEnv("RELAY_API_URL", "http://"+apiAddr),
		},
		Tags:     tags,
		LogLevel: os.Getenv("LOG_LEVEL"),
		Debug:    os.Getenv("DEBUG") == "true",
	}
}

// Validate validates the configuration needed by the relay service
func (c *Config) Validate() error {
	if c.Feishu.AppID == "" || c.Feishu.AppSecret == "" {
		return &ConfigError{Field: "FEISHU_APP_ID/FEISHU_APP_SECRET", Message: "required"}
	}
	if c.Feishu.StaffChatID == "" {
		return &ConfigError{Field: "STAFF_CHAT_ID", Message: "required"}
	}
	if err := c.ValidateStore(); err != nil {
		return err
	}
	if c.Relay.MinInterval < 0 {
		return &ConfigError{Field: "RATE_MIN_INTERVAL", Message: "must not be negative"}
	}
	if c.Relay.DedupWindow <= 0 {
		return &ConfigError{Field: "DEDUP_WINDOW", Message: "must be positive"}
	}
	if c.Relay.AlbumDebounce <= 0 {
		return &ConfigError{Field: "ALBUM_DEBOUNCE", Message: "must be positive"}
	}
	if c.Relay.AlbumMaxParts < 1 {
		return &ConfigError{Field: "ALBUM_MAX_PARTS", Message: "must be at least 1"}
	}
	return nil
}

// ValidateStore validates only the Link Store settings
func (c *Config) ValidateStore() error {
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.DBPath == "" {
			return &ConfigError{Field: "LINK_DB_PATH", Message: "required for sqlite"}
		}
	case DriverPostgres:
		if c.Store.DSN == "" {
			return &ConfigError{Field: "LINK_DB_DSN", Message: "required for postgres"}
		}
	default:
		return &ConfigError{Field: "LINK_DB_DRIVER", Message: "unsupported driver " + strconv.Quote(c.Store.Driver)}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}

func getEnv(key, defaultValue string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration accepts Go duration strings ("1.5s") or plain milliseconds
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(val); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(val); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}

// ToAlbumConfig converts to the aggregator configuration
func (c *RelayConfig) ToAlbumConfig() usecase.AlbumConfig {
	return usecase.AlbumConfig{
		Debounce: c.AlbumDebounce,
		MaxParts: c.AlbumMaxParts,
	}
}
