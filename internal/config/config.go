// Package config loads the proxy configuration from a YAML file layered with
// PASSAGE_-prefixed environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"

	"github.com/udisondev/passage/internal/adapter"
)

// Config holds all configuration for the proxy. One immutable instance is
// created on startup and shared among the components.
type Config struct {
	// Address is the TCP listen address.
	Address string `yaml:"address" env:"PASSAGE_ADDRESS"`

	// Timeout bounds the whole pre-transfer lifetime of a connection, seconds.
	Timeout int `yaml:"timeout" env:"PASSAGE_TIMEOUT"`

	// MaxPacketLength bounds inbound frames, bytes.
	MaxPacketLength int32 `yaml:"max_packet_length" env:"PASSAGE_MAX_PACKET_LENGTH"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" env:"PASSAGE_LOG_LEVEL"`

	ProxyProtocol ProxyProtocol `yaml:"proxy_protocol"`
	RateLimiter   RateLimiter   `yaml:"rate_limiter"`

	// AuthSecret seals authentication cookies. AuthSecretFile points at a
	// file holding the secret and takes precedence when set.
	AuthSecret     string `yaml:"auth_secret" env:"PASSAGE_AUTH_SECRET"`
	AuthSecretFile string `yaml:"auth_secret_file" env:"PASSAGE_AUTH_SECRET_FILE"`

	// AuthCookieExpirySecs is the trust window of an auth cookie.
	AuthCookieExpirySecs int `yaml:"auth_cookie_expiry_secs" env:"PASSAGE_AUTH_COOKIE_EXPIRY_SECS"`

	// SessionServer overrides the identity-provider base URL (tests, mocks).
	SessionServer string `yaml:"session_server" env:"PASSAGE_SESSION_SERVER"`

	Status          Status       `yaml:"status"`
	TargetDiscovery Discovery    `yaml:"target_discovery"`
	TargetStrategy  Strategy     `yaml:"target_strategy"`
	ResourcePack    ResourcePack `yaml:"resourcepack"`

	Redis        Redis        `yaml:"redis"`
	Localization Localization `yaml:"localization"`
}

// ProxyProtocol enables the L4 preamble parser.
type ProxyProtocol struct {
	Enabled bool `yaml:"enabled" env:"PASSAGE_PROXY_PROTOCOL_ENABLED"`
	AllowV1 bool `yaml:"allow_v1" env:"PASSAGE_PROXY_PROTOCOL_ALLOW_V1"`
	AllowV2 bool `yaml:"allow_v2" env:"PASSAGE_PROXY_PROTOCOL_ALLOW_V2"`
}

// RateLimiter configures the per-IP sliding window.
type RateLimiter struct {
	Enabled  bool `yaml:"enabled" env:"PASSAGE_RATE_LIMITER_ENABLED"`
	Duration int  `yaml:"duration" env:"PASSAGE_RATE_LIMITER_DURATION"` // seconds
	Size     int  `yaml:"size" env:"PASSAGE_RATE_LIMITER_SIZE"`
}

// Status selects and parameterizes the status supplier variant.
type Status struct {
	Adapter string `yaml:"adapter" env:"PASSAGE_STATUS_ADAPTER"`

	// fixed
	VersionName        string `yaml:"version_name"`
	PreferredVersion   int32  `yaml:"preferred_version"`
	MinVersion         int32  `yaml:"min_version"`
	MaxVersion         int32  `yaml:"max_version"`
	Description        string `yaml:"description"` // JSON chat component
	PlayersOnline      int    `yaml:"players_online"`
	PlayersMax         int    `yaml:"players_max"`
	Favicon            string `yaml:"favicon"`
	EnforcesSecureChat *bool  `yaml:"enforces_secure_chat"`

	// http
	URL       string `yaml:"url" env:"PASSAGE_STATUS_URL"`
	CacheSecs int    `yaml:"cache_secs" env:"PASSAGE_STATUS_CACHE_SECS"`

	// store
	StoreKey string `yaml:"store_key" env:"PASSAGE_STATUS_STORE_KEY"`
}

// Discovery selects and parameterizes the target discovery variant.
type Discovery struct {
	Adapter string `yaml:"adapter" env:"PASSAGE_TARGET_DISCOVERY_ADAPTER"`

	// fixed
	Targets []adapter.Target `yaml:"targets"`

	// dns
	Service string `yaml:"service" env:"PASSAGE_TARGET_DISCOVERY_SERVICE"`
	Name    string `yaml:"name" env:"PASSAGE_TARGET_DISCOVERY_NAME"`

	// store
	StoreKey string `yaml:"store_key" env:"PASSAGE_TARGET_DISCOVERY_STORE_KEY"`
}

// Strategy selects and parameterizes the target strategy variant.
type Strategy struct {
	Adapter string `yaml:"adapter" env:"PASSAGE_TARGET_STRATEGY_ADAPTER"`

	// player_fill
	Field         string                 `yaml:"field"`
	MaxPlayers    int                    `yaml:"max_players"`
	TargetFilters []adapter.TargetFilter `yaml:"target_filters"`
}

// ResourcePack selects and parameterizes the resource pack supplier variant.
type ResourcePack struct {
	Adapter string                 `yaml:"adapter" env:"PASSAGE_RESOURCEPACK_ADAPTER"`
	Packs   []adapter.ResourcePack `yaml:"packs"`
}

// Redis connects the store adapter variants.
type Redis struct {
	Addr     string `yaml:"addr" env:"PASSAGE_REDIS_ADDR"`
	Password string `yaml:"password" env:"PASSAGE_REDIS_PASSWORD"`
	DB       int    `yaml:"db" env:"PASSAGE_REDIS_DB"`
}

// Localization holds the disconnect message catalog.
type Localization struct {
	DefaultLocale string                       `yaml:"default_locale" env:"PASSAGE_LOCALIZATION_DEFAULT_LOCALE"`
	Messages      map[string]map[string]string `yaml:"messages"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Address:              "0.0.0.0:25565",
		Timeout:              120,
		MaxPacketLength:      10_000,
		LogLevel:             "info",
		ProxyProtocol:        ProxyProtocol{AllowV1: true, AllowV2: true},
		RateLimiter:          RateLimiter{Duration: 60, Size: 60},
		AuthCookieExpirySecs: 6 * 60 * 60,
		Status: Status{
			Adapter:          "fixed",
			VersionName:      "Passage",
			PreferredVersion: 769,
			MinVersion:       0,
			MaxVersion:       1 << 30,
			PlayersMax:       100,
			CacheSecs:        10,
		},
		TargetDiscovery: Discovery{Adapter: "none", Service: "minecraft"},
		TargetStrategy:  Strategy{Adapter: "any", Field: "players", MaxPlayers: 100},
		ResourcePack:    ResourcePack{Adapter: "none"},
		Redis:           Redis{Addr: "127.0.0.1:6379"},
		Localization: Localization{
			DefaultLocale: "en_US",
			Messages: map[string]map[string]string{
				"en": {
					"disconnect_timeout":             `{"text":"Connection timed out."}`,
					"disconnect_no_target":           `{"text":"No server is available for you right now."}`,
					"disconnect_failed_auth":         `{"text":"Authentication failed."}`,
					"disconnect_failed_resourcepack": `{"text":"The required resource pack could not be applied."}`,
					"resourcepack_impackable_prompt": `{"text":"This server requires a resource pack."}`,
				},
			},
		},
	}
}

// Load reads the YAML file at path (missing file keeps defaults), applies
// environment overrides, resolves the secret file and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}

	// env layer overrides everything from the file
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return cfg, fmt.Errorf("applying env overrides: %w", err)
	}

	if cfg.AuthSecretFile != "" {
		secret, err := os.ReadFile(cfg.AuthSecretFile)
		if err != nil {
			return cfg, fmt.Errorf("reading auth secret file: %w", err)
		}
		cfg.AuthSecret = strings.TrimSpace(string(secret))
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c *Config) Validate() error {
	if c.Address == "" {
		return errors.New("address must not be empty")
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if c.MaxPacketLength <= 0 {
		return errors.New("max_packet_length must be positive")
	}
	if c.RateLimiter.Enabled && (c.RateLimiter.Duration <= 0 || c.RateLimiter.Size <= 0) {
		return errors.New("rate_limiter duration and size must be positive")
	}
	switch c.Status.Adapter {
	case "fixed", "none", "http", "store":
	default:
		return fmt.Errorf("unknown status adapter %q", c.Status.Adapter)
	}
	switch c.TargetDiscovery.Adapter {
	case "fixed", "none", "dns", "store":
	default:
		return fmt.Errorf("unknown target discovery adapter %q", c.TargetDiscovery.Adapter)
	}
	switch c.TargetStrategy.Adapter {
	case "any", "player_fill":
	default:
		return fmt.Errorf("unknown target strategy adapter %q", c.TargetStrategy.Adapter)
	}
	switch c.ResourcePack.Adapter {
	case "none", "fixed":
	default:
		return fmt.Errorf("unknown resourcepack adapter %q", c.ResourcePack.Adapter)
	}
	if c.Status.Adapter == "http" && c.Status.URL == "" {
		return errors.New("status adapter http requires url")
	}
	return nil
}
