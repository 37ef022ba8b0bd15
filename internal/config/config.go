package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// CurrentVersion is the config schema version written by Save.
const CurrentVersion = 1

// Config represents the complete taxhist configuration
type Config struct {
	Version  int    `json:"version" mapstructure:"version"`
	RepoRoot string `json:"repoRoot" mapstructure:"repoRoot"`

	Backend BackendConfig `json:"backend" mapstructure:"backend"`
	Catalog CatalogConfig `json:"catalog" mapstructure:"catalog"`
	History HistoryConfig `json:"history" mapstructure:"history"`
	Cache   CacheConfig   `json:"cache" mapstructure:"cache"`
	Server  ServerConfig  `json:"server" mapstructure:"server"`
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// BackendConfig selects how revision history is read
type BackendConfig struct {
	// Kind is "gogit" (in-process) or "exec" (shells out to git)
	Kind      string `json:"kind" mapstructure:"kind"`
	TimeoutMs int    `json:"timeoutMs" mapstructure:"timeoutMs"`
}

// CatalogConfig describes where the catalog lives inside the repository
type CatalogConfig struct {
	ConsolidatedPath string   `json:"consolidatedPath" mapstructure:"consolidatedPath"`
	FragmentPrefix   string   `json:"fragmentPrefix" mapstructure:"fragmentPrefix"`
	FragmentSuffix   string   `json:"fragmentSuffix" mapstructure:"fragmentSuffix"`
	TrackedPaths     []string `json:"trackedPaths" mapstructure:"trackedPaths"`
}

// HistoryConfig tunes the diff pipeline
type HistoryConfig struct {
	NoiseWindow      int `json:"noiseWindow" mapstructure:"noiseWindow"`
	FetchConcurrency int `json:"fetchConcurrency" mapstructure:"fetchConcurrency"`
}

// CacheConfig contains history cache configuration
type CacheConfig struct {
	TtlSeconds             int     `json:"ttlSeconds" mapstructure:"ttlSeconds"`
	EarlyRefreshRatio      float64 `json:"earlyRefreshRatio" mapstructure:"earlyRefreshRatio"`
	RefreshIntervalSeconds int     `json:"refreshIntervalSeconds" mapstructure:"refreshIntervalSeconds"`
	// Store is "file" or "sqlite"
	Store    string `json:"store" mapstructure:"store"`
	Path     string `json:"path" mapstructure:"path"`
	Compress bool   `json:"compress" mapstructure:"compress"`
}

// ServerConfig contains HTTP API settings
type ServerConfig struct {
	Host string `json:"host" mapstructure:"host"`
	Port int    `json:"port" mapstructure:"port"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Version:  CurrentVersion,
		RepoRoot: ".",
		Backend: BackendConfig{
			Kind:      "gogit",
			TimeoutMs: 30000,
		},
		Catalog: CatalogConfig{
			ConsolidatedPath: "MeasurandTaxonomyCatalog.xml",
			FragmentPrefix:   "source/",
			FragmentSuffix:   ".xml",
			TrackedPaths: []string{
				"MeasurandTaxonomyCatalog.xml",
				"source/**.xml",
				"**.xsd",
				"**.xsl",
			},
		},
		History: HistoryConfig{
			NoiseWindow:      2,
			FetchConcurrency: 8,
		},
		Cache: CacheConfig{
			TtlSeconds:             1800,
			EarlyRefreshRatio:      0.8,
			RefreshIntervalSeconds: 1800,
			Store:                  "file",
			Path:                   "",
			Compress:               false,
		},
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// setDefaults mirrors DefaultConfig into viper so partial files are filled in.
func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("version", d.Version)
	v.SetDefault("repoRoot", d.RepoRoot)
	v.SetDefault("backend.kind", d.Backend.Kind)
	v.SetDefault("backend.timeoutMs", d.Backend.TimeoutMs)
	v.SetDefault("catalog.consolidatedPath", d.Catalog.ConsolidatedPath)
	v.SetDefault("catalog.fragmentPrefix", d.Catalog.FragmentPrefix)
	v.SetDefault("catalog.fragmentSuffix", d.Catalog.FragmentSuffix)
	v.SetDefault("catalog.trackedPaths", d.Catalog.TrackedPaths)
	v.SetDefault("history.noiseWindow", d.History.NoiseWindow)
	v.SetDefault("history.fetchConcurrency", d.History.FetchConcurrency)
	v.SetDefault("cache.ttlSeconds", d.Cache.TtlSeconds)
	v.SetDefault("cache.earlyRefreshRatio", d.Cache.EarlyRefreshRatio)
	v.SetDefault("cache.refreshIntervalSeconds", d.Cache.RefreshIntervalSeconds)
	v.SetDefault("cache.store", d.Cache.Store)
	v.SetDefault("cache.path", d.Cache.Path)
	v.SetDefault("cache.compress", d.Cache.Compress)
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("logging.level", d.Logging.Level)
}

// LoadConfig loads configuration from .taxhist/config.json under repoRoot.
// A missing file yields DefaultConfig with repoRoot applied.
func LoadConfig(repoRoot string) (*Config, error) {
	return load(repoRoot, "")
}

// LoadConfigFile loads configuration from an explicit file. The format is
// taken from the extension (json, yaml, toml).
func LoadConfigFile(repoRoot, path string) (*Config, error) {
	return load(repoRoot, path)
}

func load(repoRoot, explicit string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TAXHIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if explicit != "" {
		v.SetConfigFile(explicit)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("json")
		v.AddConfigPath(filepath.Join(repoRoot, ".taxhist"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || explicit != "" {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.RepoRoot == "" || cfg.RepoRoot == "." {
		cfg.RepoRoot = repoRoot
	}

	return &cfg, nil
}

// Save writes the configuration to .taxhist/config.json
func (c *Config) Save(repoRoot string) error {
	dir := filepath.Join(repoRoot, ".taxhist")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(dir, "config.json"), data, 0644)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	switch c.Backend.Kind {
	case "gogit", "exec":
	default:
		return &ConfigError{Field: "backend.kind", Message: "must be 'gogit' or 'exec'"}
	}
	switch c.Cache.Store {
	case "file", "sqlite":
	default:
		return &ConfigError{Field: "cache.store", Message: "must be 'file' or 'sqlite'"}
	}
	if c.Catalog.ConsolidatedPath == "" {
		return &ConfigError{Field: "catalog.consolidatedPath", Message: "must not be empty"}
	}
	if len(c.Catalog.TrackedPaths) == 0 {
		return &ConfigError{Field: "catalog.trackedPaths", Message: "at least one path is required"}
	}
	if c.History.NoiseWindow < 0 {
		return &ConfigError{Field: "history.noiseWindow", Message: "must not be negative"}
	}
	if c.Cache.TtlSeconds <= 0 {
		return &ConfigError{Field: "cache.ttlSeconds", Message: "must be positive"}
	}
	if c.Cache.EarlyRefreshRatio <= 0 || c.Cache.EarlyRefreshRatio > 1 {
		return &ConfigError{Field: "cache.earlyRefreshRatio", Message: "must be in (0, 1]"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
