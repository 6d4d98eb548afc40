// Package config defines the top-level configuration for the market
// resolution engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by MARKETD_* environment
// variables.
type Config struct {
	Market   MarketConfig   `toml:"market"`
	Fees     FeesConfig     `toml:"fees"`
	Token    TokenConfig    `toml:"token"`
	Oracle   OracleConfig   `toml:"oracle"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// PipelineConfig holds the report pipeline schedule.
type PipelineConfig struct {
	// ExportIntervalSec is how often the settlement digest exporter runs.
	ExportIntervalSec int `toml:"export_interval_sec"`

	// ExportWindowSec is the trailing window each digest covers.
	ExportWindowSec int `toml:"export_window_sec"`
}

// ExportInterval returns the digest export interval as a duration.
func (p PipelineConfig) ExportInterval() time.Duration {
	return time.Duration(p.ExportIntervalSec) * time.Second
}

// ExportWindow returns the digest window as a duration.
func (p PipelineConfig) ExportWindow() time.Duration {
	return time.Duration(p.ExportWindowSec) * time.Second
}

// NotifyConfig holds the operator alert channels. Empty values disable the
// corresponding sender.
type NotifyConfig struct {
	DiscordWebhook   string   `toml:"discord_webhook"`
	TelegramBotToken string   `toml:"telegram_bot_token"`
	TelegramChatID   string   `toml:"telegram_chat_id"`
	// Events filters which event names are forwarded; empty allows all.
	Events []string `toml:"events"`
}

// MarketConfig holds the market ledger parameters.
type MarketConfig struct {
	// MinStake is the minimum stake for a submission or bet, in base units.
	MinStake uint64 `toml:"min_stake"`

	// CutoffWindowSec is how long before a market's end time the betting
	// window closes, in seconds.
	CutoffWindowSec int `toml:"cutoff_window_sec"`
}

// CutoffWindow returns the betting cutoff window as a duration.
func (m MarketConfig) CutoffWindow() time.Duration {
	return time.Duration(m.CutoffWindowSec) * time.Second
}

// PoolConfig is one stakeholder pool row of the fee schedule.
type PoolConfig struct {
	Name      string `toml:"name"`
	Bps       uint64 `toml:"bps"`
	Recipient string `toml:"recipient"`
	TokenPool bool   `toml:"token_pool"`
}

// FeesConfig holds the immutable fee schedule. Pool weights must sum to
// TotalFeeBps; the deploy fails otherwise.
type FeesConfig struct {
	TotalFeeBps    uint64       `toml:"total_fee_bps"`
	ReserveAccount string       `toml:"reserve_account"`
	Pools          []PoolConfig `toml:"pools"`
}

// TokenConfig holds the ownership-token registry parameters.
type TokenConfig struct {
	MaxSupply  uint64 `toml:"max_supply"`
	BatchLimit uint64 `toml:"batch_limit"`
}

// OracleConfig holds resolver authorization and the local oracle identity
// used by tooling to sign resolution requests.
type OracleConfig struct {
	// Resolvers is the allow-list of addresses that may resolve markets.
	Resolvers []string `toml:"resolvers"`

	PrivateKey   string `toml:"private_key"`
	KeystorePath string `toml:"keystore_path"`
	KeyPassword  string `toml:"key_password"`
}

// PostgresConfig holds the journal/archive database connection parameters.
type PostgresConfig struct {
	DSN          string `toml:"dsn"`
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	Database     string `toml:"database"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	SSLMode      string `toml:"ssl_mode"`
	PoolMaxConns int    `toml:"pool_max_conns"`
	PoolMinConns int    `toml:"pool_min_conns"`
}

// RedisConfig holds the signal-bus and cache connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds the settlement-report object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds the HTTP API server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	// AdminAPIKey guards mint, finalize, and cancel endpoints.
	AdminAPIKey string `toml:"admin_api_key"`

	// RateLimit caps requests per client IP per RateLimitWindowSec. Zero
	// disables rate limiting.
	RateLimit          int `toml:"rate_limit"`
	RateLimitWindowSec int `toml:"rate_limit_window_sec"`
}

// RateLimitWindow returns the rate limit window as a duration.
func (s ServerConfig) RateLimitWindow() time.Duration {
	return time.Duration(s.RateLimitWindowSec) * time.Second
}

var validModes = map[string]bool{
	"serve":   true,
	"standby": true,
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Defaults returns the built-in configuration that Load merges the TOML file
// on top of.
func Defaults() Config {
	return Config{
		Market: MarketConfig{
			MinStake:        1,
			CutoffWindowSec: 3600,
		},
		Fees: FeesConfig{
			TotalFeeBps: 500,
		},
		Token: TokenConfig{
			MaxSupply:  100,
			BatchLimit: 50,
		},
		Postgres: PostgresConfig{
			Host:         "localhost",
			Port:         5432,
			Database:     "marketengine",
			User:         "postgres",
			SSLMode:      "disable",
			PoolMaxConns: 10,
			PoolMinConns: 2,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "marketengine-reports",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Port:               8080,
			RateLimit:          100,
			RateLimitWindowSec: 1,
		},
		Pipeline: PipelineConfig{
			ExportIntervalSec: 3600,
			ExportWindowSec:   86400,
		},
		Mode:     "serve",
		LogLevel: "info",
	}
}

// Validate checks cross-field invariants. It returns a single error listing
// every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, standby)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Market.CutoffWindowSec < 0 {
		errs = append(errs, "market: cutoff_window_sec must not be negative")
	}

	// The fee schedule is immutable after deployment, so a mismatched table
	// must fail here rather than at the first distribution.
	if c.Fees.TotalFeeBps == 0 || c.Fees.TotalFeeBps > 10_000 {
		errs = append(errs, fmt.Sprintf("fees: total_fee_bps must be in (0, 10000], got %d", c.Fees.TotalFeeBps))
	}
	var bpsSum uint64
	tokenPools := 0
	for i, p := range c.Fees.Pools {
		bpsSum += p.Bps
		if p.TokenPool {
			tokenPools++
			if p.Recipient != "" {
				errs = append(errs, fmt.Sprintf("fees: pool %q is the token pool and must not name a recipient", p.Name))
			}
		} else if p.Recipient == "" {
			errs = append(errs, fmt.Sprintf("fees: pool %d (%q) has no recipient", i, p.Name))
		}
	}
	if len(c.Fees.Pools) > 0 && bpsSum != c.Fees.TotalFeeBps {
		errs = append(errs, fmt.Sprintf("fees: pool weights sum to %d bps, want %d", bpsSum, c.Fees.TotalFeeBps))
	}
	if tokenPools > 1 {
		errs = append(errs, "fees: at most one pool may be the token pool")
	}
	if c.Fees.ReserveAccount == "" {
		errs = append(errs, "fees: reserve_account must be set")
	}

	if c.Token.MaxSupply == 0 {
		errs = append(errs, "token: max_supply must be positive")
	}
	if c.Token.BatchLimit == 0 || c.Token.BatchLimit > c.Token.MaxSupply {
		errs = append(errs, "token: batch_limit must be in [1, max_supply]")
	}

	if len(c.Oracle.Resolvers) == 0 {
		errs = append(errs, "oracle: at least one resolver address is required")
	}
	if c.Oracle.KeystorePath != "" && c.Oracle.KeyPassword == "" {
		errs = append(errs, "oracle: key_password is required when keystore_path is set")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: invalid port %d", c.Server.Port))
	}
	if c.Server.RateLimit > 0 && c.Server.RateLimitWindowSec <= 0 {
		errs = append(errs, "server: rate_limit_window_sec must be positive when rate_limit is set")
	}

	if c.Pipeline.ExportIntervalSec < 0 || c.Pipeline.ExportWindowSec < 0 {
		errs = append(errs, "pipeline: export intervals must not be negative")
	}
	if c.Notify.TelegramBotToken != "" && c.Notify.TelegramChatID == "" {
		errs = append(errs, "notify: telegram_chat_id is required when telegram_bot_token is set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}
