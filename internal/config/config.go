package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvPrefix is prepended to every environment variable read by the loader.
const EnvPrefix = "HR_INSIGHT_"

// Config represents the application configuration
type Config struct {
	Database DatabaseConfig `json:"database"`
	LLM      LLMConfig      `json:"llm"`
	Cache    CacheConfig    `json:"cache"`
	Logging  LoggingConfig  `json:"logging"`
	Tracing  TracingConfig  `json:"tracing"`
	Debug    DebugConfig    `json:"debug"`
}

// DatabaseConfig describes the read-only analytics store
type DatabaseConfig struct {
	Driver           string `json:"driver"             env:"DB_DRIVER"             envDefault:"duckdb"` // duckdb, sqlite, postgres
	Path             string `json:"path"               env:"DB_PATH"               envDefault:"~/.config/hr-insight/hr.duckdb"`
	MaxConnections   int    `json:"max_connections"    env:"DB_MAX_CONNECTIONS"    envDefault:"4"`
	MaxIdleConns     int    `json:"max_idle_conns"     env:"DB_MAX_IDLE_CONNS"     envDefault:"2"`
	ConnMaxLifetime  string `json:"conn_max_lifetime"  env:"DB_CONN_MAX_LIFETIME"  envDefault:"30m"`
	QueryTimeout     string `json:"query_timeout"      env:"DB_QUERY_TIMEOUT"      envDefault:"15s"`
	MaxRows          int    `json:"max_rows"           env:"DB_MAX_ROWS"           envDefault:"1000"`
	VerifyWithParser bool   `json:"verify_with_parser" env:"DB_VERIFY_WITH_PARSER" envDefault:"true"`
}

// LLMConfig configures the completion service used for query generation
type LLMConfig struct {
	Provider           string  `json:"provider"             env:"LLM_PROVIDER"             envDefault:"openai"` // openai, anthropic, ollama
	Model              string  `json:"model"                env:"LLM_MODEL"                envDefault:"gpt-4o-mini"`
	APIKey             string  `json:"api_key"              env:"LLM_API_KEY"`
	BaseURL            string  `json:"base_url"             env:"LLM_BASE_URL"`
	Timeout            string  `json:"timeout"              env:"LLM_TIMEOUT"              envDefault:"30s"`
	Temperature        float64 `json:"temperature"          env:"LLM_TEMPERATURE"          envDefault:"0.1"`
	MaxTokens          int     `json:"max_tokens"           env:"LLM_MAX_TOKENS"           envDefault:"1024"`
	MaxHistoryMessages int     `json:"max_history_messages" env:"LLM_MAX_HISTORY_MESSAGES" envDefault:"6"`
}

// CacheConfig represents response caching configuration
type CacheConfig struct {
	Backend       string `json:"backend"           env:"CACHE_BACKEND"        envDefault:"file"` // memory, file, redis, none
	Directory     string `json:"directory"         env:"CACHE_DIR"            envDefault:"~/.cache/hr-insight"`
	TTL           string `json:"ttl"               env:"CACHE_TTL"            envDefault:"30m"`
	CleanupFreq   string `json:"cleanup_frequency" env:"CACHE_CLEANUP_FREQ"   envDefault:"5m"`
	MaxSizeMB     int    `json:"max_size_mb"       env:"CACHE_MAX_SIZE_MB"    envDefault:"50"`
	RedisAddr     string `json:"redis_addr"        env:"CACHE_REDIS_ADDR"     envDefault:"localhost:6379"`
	RedisPassword string `json:"redis_password"    env:"CACHE_REDIS_PASSWORD"`
	RedisDB       int    `json:"redis_db"          env:"CACHE_REDIS_DB"       envDefault:"0"`
	KeyPrefix     string `json:"key_prefix"        env:"CACHE_KEY_PREFIX"     envDefault:"hr-insight:"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string `json:"level"        env:"LOG_LEVEL"        envDefault:"info"`                             // debug, info, warn, error
	Format     string `json:"format"       env:"LOG_FORMAT"       envDefault:"text"`                             // text, json
	Output     string `json:"output"       env:"LOG_OUTPUT"       envDefault:"stderr"`                           // stdout, stderr, file
	File       string `json:"file"         env:"LOG_FILE"         envDefault:"~/.config/hr-insight/logs/app.log"` // log file path when output is file
	MaxSizeMB  int    `json:"max_size_mb"  env:"LOG_MAX_SIZE_MB"  envDefault:"10"`
	MaxBackups int    `json:"max_backups"  env:"LOG_MAX_BACKUPS"  envDefault:"5"`
	MaxAgeDays int    `json:"max_age_days" env:"LOG_MAX_AGE_DAYS" envDefault:"30"`
	AddSource  bool   `json:"add_source"   env:"LOG_ADD_SOURCE"   envDefault:"false"`
}

// TracingConfig controls OTLP span export
type TracingConfig struct {
	Enabled     bool    `json:"enabled"      env:"TRACING_ENABLED"      envDefault:"false"`
	Endpoint    string  `json:"endpoint"     env:"TRACING_ENDPOINT"     envDefault:"localhost:4318"`
	Insecure    bool    `json:"insecure"     env:"TRACING_INSECURE"     envDefault:"true"`
	ServiceName string  `json:"service_name" env:"TRACING_SERVICE_NAME" envDefault:"hr-insight"`
	SampleRatio float64 `json:"sample_ratio" env:"TRACING_SAMPLE_RATIO" envDefault:"1"`
}

// DebugConfig represents debug configuration
type DebugConfig struct {
	Enabled bool `json:"enabled" env:"DEBUG"   envDefault:"false"`
	Verbose bool `json:"verbose" env:"VERBOSE" envDefault:"false"`
}

// DefaultConfig returns the configuration built from struct defaults only
func DefaultConfig() *Config {
	config := &Config{}
	// An empty environment makes the parser apply envDefault values only
	_ = env.ParseWithOptions(config, env.Options{
		Prefix:      EnvPrefix,
		Environment: map[string]string{},
	})

	return config
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig() (*Config, error) {
	return LoadConfigWithOverrides(nil)
}

// LoadConfigWithOverrides loads configuration with optional command-line flag overrides.
// Precedence is defaults, then config file, then environment, then flags.
func LoadConfigWithOverrides(flagOverrides map[string]interface{}) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	config := DefaultConfig()

	configPath := getConfigPath()
	if path, ok := flagOverrides["config"].(string); ok && path != "" {
		configPath = expandPath(path)
	}

	if _, err := os.Stat(configPath); err == nil {
		if err := loadConfigFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := applyEnvironmentOverrides(config); err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	applyProviderKeyFallback(config)

	if flagOverrides != nil {
		if err := applyFlagOverrides(config, flagOverrides); err != nil {
			return nil, fmt.Errorf("failed to apply flag overrides: %w", err)
		}
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	config.ExpandAllPaths()

	return config, nil
}

// loadConfigFromFile loads configuration from a JSON file
func loadConfigFromFile(config *Config, configPath string) error {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	// Decoding onto the populated struct keeps defaults for absent keys
	if err := json.Unmarshal(data, config); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// applyEnvironmentOverrides copies only variables that are actually present in
// the environment, so envDefault values never clobber the config file.
func applyEnvironmentOverrides(config *Config) error {
	present := make(map[string]bool)

	fromEnv := &Config{}
	if err := env.ParseWithOptions(fromEnv, env.Options{
		Prefix: EnvPrefix,
		OnSet: func(tag string, _ interface{}, isDefault bool) {
			if !isDefault {
				present[strings.TrimPrefix(tag, EnvPrefix)] = true
			}
		},
	}); err != nil {
		return err
	}

	overlayEnvFields(reflect.ValueOf(config).Elem(), reflect.ValueOf(fromEnv).Elem(), present)

	return nil
}

func overlayEnvFields(target, source reflect.Value, present map[string]bool) {
	for i := range source.NumField() {
		field := source.Type().Field(i)
		if field.Type.Kind() == reflect.Struct {
			overlayEnvFields(target.Field(i), source.Field(i), present)
			continue
		}

		key := field.Tag.Get("env")
		if key != "" && present[key] {
			target.Field(i).Set(source.Field(i))
		}
	}
}

// applyProviderKeyFallback reads the provider's conventional key variable when
// no explicit key was configured.
func applyProviderKeyFallback(config *Config) {
	if config.LLM.APIKey != "" {
		return
	}

	switch strings.ToLower(config.LLM.Provider) {
	case "openai":
		config.LLM.APIKey = os.Getenv("OPENAI_API_KEY")
	case "anthropic":
		config.LLM.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
}

// applyFlagOverrides applies command-line flag overrides to configuration
func applyFlagOverrides(config *Config, overrides map[string]interface{}) error {
	for key, value := range overrides {
		switch key {
		case "db":
			if str, ok := value.(string); ok && str != "" {
				config.Database.Path = str
			}
		case "driver":
			if str, ok := value.(string); ok && str != "" {
				config.Database.Driver = str
			}
		case "provider":
			if str, ok := value.(string); ok && str != "" {
				config.LLM.Provider = str
			}
		case "model":
			if str, ok := value.(string); ok && str != "" {
				config.LLM.Model = str
			}
		case "log-level":
			if str, ok := value.(string); ok && str != "" {
				config.Logging.Level = str
			}
		case "cache-backend":
			if str, ok := value.(string); ok && str != "" {
				config.Cache.Backend = str
			}
		case "verbose":
			if b, ok := value.(bool); ok && b {
				config.Debug.Verbose = true
			}
		case "debug":
			if b, ok := value.(bool); ok && b {
				config.Debug.Enabled = true
				config.Logging.Level = "debug"
			}
		case "config":
			// consumed by LoadConfigWithOverrides
		default:
			return fmt.Errorf("unknown override: %s", key)
		}
	}

	return nil
}

// validateConfig validates the configuration for common errors
func validateConfig(config *Config) error {
	if err := oneOf("database driver", config.Database.Driver, "duckdb", "sqlite", "postgres"); err != nil {
		return err
	}

	if err := oneOf("llm provider", config.LLM.Provider, "openai", "anthropic", "ollama"); err != nil {
		return err
	}

	if err := oneOf("cache backend", config.Cache.Backend, "memory", "file", "redis", "none"); err != nil {
		return err
	}

	if err := oneOf("log level", config.Logging.Level, "debug", "info", "warn", "error"); err != nil {
		return err
	}

	if err := oneOf("log format", config.Logging.Format, "text", "json"); err != nil {
		return err
	}

	if err := oneOf("log output", config.Logging.Output, "stdout", "stderr", "file"); err != nil {
		return err
	}

	durations := map[string]string{
		"database query timeout":  config.Database.QueryTimeout,
		"database conn lifetime":  config.Database.ConnMaxLifetime,
		"llm timeout":             config.LLM.Timeout,
		"cache ttl":               config.Cache.TTL,
		"cache cleanup frequency": config.Cache.CleanupFreq,
	}
	for name, value := range durations {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s: %s", name, value)
		}

		if d <= 0 {
			return fmt.Errorf("%s must be positive: %s", name, value)
		}
	}

	if config.Database.Path == "" {
		return fmt.Errorf("database path must not be empty")
	}

	if config.Database.MaxConnections <= 0 {
		return fmt.Errorf("database max connections must be positive: %d", config.Database.MaxConnections)
	}

	if config.Database.MaxRows <= 0 {
		return fmt.Errorf("database max rows must be positive: %d", config.Database.MaxRows)
	}

	if config.LLM.Model == "" {
		return fmt.Errorf("llm model must not be empty")
	}

	if config.LLM.MaxHistoryMessages < 0 {
		return fmt.Errorf("llm max history messages must not be negative: %d", config.LLM.MaxHistoryMessages)
	}

	if config.LLM.Temperature < 0 || config.LLM.Temperature > 2 {
		return fmt.Errorf("llm temperature out of range: %v", config.LLM.Temperature)
	}

	if config.Tracing.SampleRatio < 0 || config.Tracing.SampleRatio > 1 {
		return fmt.Errorf("tracing sample ratio out of range: %v", config.Tracing.SampleRatio)
	}

	return nil
}

func oneOf(name, value string, allowed ...string) error {
	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return nil
		}
	}

	return fmt.Errorf("invalid %s: %s (must be one of %s)", name, value, strings.Join(allowed, ", "))
}

// QueryTimeoutDuration returns the parsed statement timeout
func (c *DatabaseConfig) QueryTimeoutDuration() time.Duration {
	return mustDuration(c.QueryTimeout, 15*time.Second)
}

// ConnMaxLifetimeDuration returns the parsed connection lifetime
func (c *DatabaseConfig) ConnMaxLifetimeDuration() time.Duration {
	return mustDuration(c.ConnMaxLifetime, 30*time.Minute)
}

// TimeoutDuration returns the parsed completion timeout
func (c *LLMConfig) TimeoutDuration() time.Duration {
	return mustDuration(c.Timeout, 30*time.Second)
}

// TTLDuration returns the parsed cache entry lifetime
func (c *CacheConfig) TTLDuration() time.Duration {
	return mustDuration(c.TTL, 30*time.Minute)
}

// CleanupDuration returns the parsed cleanup ticker period
func (c *CacheConfig) CleanupDuration() time.Duration {
	return mustDuration(c.CleanupFreq, 5*time.Minute)
}

func mustDuration(value string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return fallback
	}

	return d
}

// Redacted returns a copy safe to print
func (c *Config) Redacted() *Config {
	clone := *c
	if clone.LLM.APIKey != "" {
		clone.LLM.APIKey = maskSecret(clone.LLM.APIKey)
	}

	if clone.Cache.RedisPassword != "" {
		clone.Cache.RedisPassword = "****"
	}

	return &clone
}

func maskSecret(secret string) string {
	if len(secret) <= 8 {
		return "****"
	}

	return secret[:4] + "****" + secret[len(secret)-4:]
}

// SaveConfig saves configuration to file
func SaveConfig(config *Config) error {
	configPath := getConfigPath()

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// getConfigPath returns the path to the configuration file
func getConfigPath() string {
	if configPath := os.Getenv(EnvPrefix + "CONFIG"); configPath != "" {
		return expandPath(configPath)
	}

	return filepath.Join(GetConfigDir(), "config.json")
}

// expandPath expands ~ to home directory in file paths
func expandPath(path string) string {
	if !strings.HasPrefix(path, "~") {
		return path
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	if path == "~" {
		return homeDir
	}

	if strings.HasPrefix(path, "~/") {
		return filepath.Join(homeDir, path[2:])
	}

	return path
}

// ExpandAllPaths expands all paths in the configuration
func (c *Config) ExpandAllPaths() {
	if !strings.EqualFold(c.Database.Driver, "postgres") {
		c.Database.Path = expandPath(c.Database.Path)
	}

	c.Cache.Directory = expandPath(c.Cache.Directory)
	c.Logging.File = expandPath(c.Logging.File)
}

// GetConfigDir returns the configuration directory
func GetConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".config/hr-insight"
	}

	return filepath.Join(homeDir, ".config", "hr-insight")
}

// EnsureDirectories creates necessary directories for the configuration
func (c *Config) EnsureDirectories() error {
	var dirs []string
	if !strings.EqualFold(c.Database.Driver, "postgres") {
		dirs = append(dirs, filepath.Dir(c.Database.Path))
	}

	if strings.EqualFold(c.Cache.Backend, "file") {
		dirs = append(dirs, c.Cache.Directory)
	}

	if strings.EqualFold(c.Logging.Output, "file") {
		dirs = append(dirs, filepath.Dir(c.Logging.File))
	}

	for _, dir := range dirs {
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", dir, err)
			}
		}
	}

	return nil
}
