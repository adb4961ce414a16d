// Package config loads the engine's configuration from a YAML file,
// overridden by environment variables, with .env support for local
// development. It never fails startup over a missing or malformed config
// file, mirroring the degrade-to-DefaultConfig behavior of the verifier
// service this module started from; it only fails on invalid values caught
// by struct-tag validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

func init() {
	_ = godotenv.Load()
}

// Config is the full configuration surface enumerated in SPEC_FULL.md §6.
type Config struct {
	EnableSMTPValidation bool          `yaml:"enable_smtp_validation"`
	HeloDomains          []string      `yaml:"helo_domains" validate:"required,min=1"`
	FromAddresses        []string      `yaml:"from_addresses" validate:"required,min=1,dive,email"`
	ConnectTimeout       time.Duration `yaml:"connect_timeout"`
	ReadTimeout          time.Duration `yaml:"read_timeout"`
	MaxRetries           int           `yaml:"max_retries" validate:"min=0"`
	STARTTLSPolicy       string        `yaml:"starttls_policy" validate:"oneof=on off auto"`

	EnableConnectionPooling bool          `yaml:"enable_connection_pooling"`
	ConnPoolMaxPerKey       int           `yaml:"conn_pool_max_per_key" validate:"min=1"`
	ConnPoolIdleTimeout     time.Duration `yaml:"conn_pool_idle_timeout"`

	PatternPlaceholderDomainsFile string `yaml:"pattern_placeholder_domains_file"`
	PatternSpamKeywordsFile       string `yaml:"pattern_spam_keywords_file"`
	PatternTypoDomainsFile        string `yaml:"pattern_typo_domains_file"`
	PatternDisposableDomainsFile  string `yaml:"pattern_disposable_domains_file"`
	PatternRoleAccountsFile       string `yaml:"pattern_role_accounts_file"`

	DisposableListRefreshEnabled  bool          `yaml:"disposable_list_refresh_enabled"`
	DisposableListRepoURL         string        `yaml:"disposable_list_repo_url"`
	DisposableListPullCooldown    time.Duration `yaml:"disposable_list_pull_cooldown"`
	DisposableListRefreshInterval time.Duration `yaml:"disposable_list_refresh_interval"`

	VerdictCacheSize  int           `yaml:"verdict_cache_size" validate:"min=1"`
	VerdictCacheTTL   time.Duration `yaml:"verdict_cache_ttl"`
	MXCacheSize       int           `yaml:"mx_cache_size" validate:"min=1"`
	MXCacheDefaultTTL time.Duration `yaml:"mx_cache_default_ttl_ms"`
	HashSalt          string        `yaml:"hash_salt"`

	RedisAddr    string `yaml:"redis_addr"`
	RedisEnabled bool   `yaml:"redis_enabled"`

	BatchSize int `yaml:"batch_size" validate:"min=1"`

	LogMode  string `yaml:"log_mode" validate:"oneof=dev prod"`
	LogLevel string `yaml:"log_level"`
}

// Default returns the configuration the engine runs with if no file is
// found and no environment overrides are set.
func Default() *Config {
	return &Config{
		EnableSMTPValidation: true,
		HeloDomains:          []string{"verify.example.com"},
		FromAddresses:        []string{"probe@verify.example.com"},
		ConnectTimeout:       15 * time.Second,
		ReadTimeout:          15 * time.Second,
		MaxRetries:           2,
		STARTTLSPolicy:       "auto",

		EnableConnectionPooling: true,
		ConnPoolMaxPerKey:       3,
		ConnPoolIdleTimeout:     60 * time.Second,

		PatternPlaceholderDomainsFile: "patterns/placeholder_domains.txt",
		PatternSpamKeywordsFile:       "patterns/spam_keywords.txt",
		PatternTypoDomainsFile:        "patterns/typo_domains.txt",
		PatternDisposableDomainsFile:  "patterns/disposable_domains.txt",
		PatternRoleAccountsFile:       "patterns/role_accounts.txt",

		DisposableListRefreshEnabled:  false,
		DisposableListPullCooldown:    30 * time.Minute,
		DisposableListRefreshInterval: 30 * time.Minute,

		VerdictCacheSize:  5000,
		VerdictCacheTTL:   24 * time.Hour,
		MXCacheSize:       2000,
		MXCacheDefaultTTL: 300 * time.Second,

		RedisEnabled: false,

		BatchSize: 10,

		LogMode:  "prod",
		LogLevel: "info",
	}
}

// Load reads path (YAML), falling back to Default() when the file is
// missing or unparsable, then applies environment overrides and validates
// the result. A logger is optional; pass nil to suppress warnings (e.g. in
// tests).
func Load(path string, log *zap.SugaredLogger) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			warn(log, "config file unavailable, using defaults", "path", path, "error", err)
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			warn(log, "config file could not be parsed, using defaults", "path", path, "error", err)
			cfg = Default()
		}
	}

	applyEnvOverrides(cfg)

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

func warn(log *zap.SugaredLogger, msg string, kv ...interface{}) {
	if log != nil {
		log.Warnw(msg, kv...)
	}
}

// applyEnvOverrides mirrors the MustGetEnv/GetEnv style of reading
// environment variables with typed fallbacks, adapted to mutate an
// already-populated Config rather than build one field at a time.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MAILVERIFY_ENABLE_SMTP_VALIDATION"); v != "" {
		cfg.EnableSMTPValidation = parseBool(v, cfg.EnableSMTPValidation)
	}
	if v := os.Getenv("MAILVERIFY_ENABLE_CONNECTION_POOLING"); v != "" {
		cfg.EnableConnectionPooling = parseBool(v, cfg.EnableConnectionPooling)
	}
	if v := os.Getenv("MAILVERIFY_CONNECT_TIMEOUT"); v != "" {
		cfg.ConnectTimeout = parseDuration(v, cfg.ConnectTimeout)
	}
	if v := os.Getenv("MAILVERIFY_READ_TIMEOUT"); v != "" {
		cfg.ReadTimeout = parseDuration(v, cfg.ReadTimeout)
	}
	if v := os.Getenv("MAILVERIFY_MAX_RETRIES"); v != "" {
		cfg.MaxRetries = parseInt(v, cfg.MaxRetries)
	}
	if v := os.Getenv("MAILVERIFY_STARTTLS_POLICY"); v != "" {
		cfg.STARTTLSPolicy = v
	}
	if v := os.Getenv("MAILVERIFY_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
		cfg.RedisEnabled = true
	}
	if v := os.Getenv("MAILVERIFY_BATCH_SIZE"); v != "" {
		cfg.BatchSize = parseInt(v, cfg.BatchSize)
	}
	if v := os.Getenv("MAILVERIFY_LOG_MODE"); v != "" {
		cfg.LogMode = v
	}
	if v := os.Getenv("MAILVERIFY_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("MAILVERIFY_HASH_SALT"); v != "" {
		cfg.HashSalt = v
	}
	if v := os.Getenv("MAILVERIFY_MX_CACHE_DEFAULT_TTL"); v != "" {
		cfg.MXCacheDefaultTTL = parseDuration(v, cfg.MXCacheDefaultTTL)
	}
	if v := os.Getenv("MAILVERIFY_DISPOSABLE_LIST_REFRESH_ENABLED"); v != "" {
		cfg.DisposableListRefreshEnabled = parseBool(v, cfg.DisposableListRefreshEnabled)
	}
	if v := os.Getenv("MAILVERIFY_DISPOSABLE_LIST_REPO_URL"); v != "" {
		cfg.DisposableListRepoURL = v
	}
	if v := os.Getenv("MAILVERIFY_DISPOSABLE_LIST_PULL_COOLDOWN"); v != "" {
		cfg.DisposableListPullCooldown = parseDuration(v, cfg.DisposableListPullCooldown)
	}
	if v := os.Getenv("MAILVERIFY_DISPOSABLE_LIST_REFRESH_INTERVAL"); v != "" {
		cfg.DisposableListRefreshInterval = parseDuration(v, cfg.DisposableListRefreshInterval)
	}
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func parseInt(v string, fallback int) int {
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func parseDuration(v string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
