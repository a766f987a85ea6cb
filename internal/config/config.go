package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Rollout strategies understood by the daemon.
const (
	StrategyManaged = "managed"
	StrategyFixed   = "fixed"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	ServiceName         string        // managed API service name (may come from metadata)
	ServiceConfigID     string        // pinned config id, only meaningful with the fixed strategy
	RolloutStrategy     string        // "managed" enables the rollout manager
	FetchThrottleWindow time.Duration // minimum interval between fetch cycles
	DetectInterval      time.Duration // how often to poll for a new rollout id
	HTTPTimeout         time.Duration // outbound control plane request timeout

	ManagementBaseURL string // Service Management endpoint
	MetadataBaseURL   string // instance metadata server
	MetadataEnabled   bool   // false skips metadata discovery entirely
	MetadataTimeout   time.Duration
}

// serverConfig mirrors the recognized server-config file options. Fields
// the daemon does not consume are ignored on purpose.
type serverConfig struct {
	ServiceName             string `yaml:"service_name"`
	RolloutStrategy         string `yaml:"rollout_strategy"`
	ServiceManagementConfig struct {
		FetchThrottleWindowS int `yaml:"fetch_throttle_window_s"`
	} `yaml:"service_management_config"`
}

// Load builds the configuration from the optional server-config file named
// by ROLLOUTD_SERVER_CONFIG, with environment variables taking precedence
// over file values and file values over defaults.
func Load() *Config {
	file := loadServerConfig(getenv("ROLLOUTD_SERVER_CONFIG", ""))

	windowDefault := 5 * time.Minute
	if file.ServiceManagementConfig.FetchThrottleWindowS > 0 {
		windowDefault = time.Duration(file.ServiceManagementConfig.FetchThrottleWindowS) * time.Second
	}
	strategyDefault := file.RolloutStrategy
	if strategyDefault == "" {
		strategyDefault = StrategyManaged
	}

	cfg := &Config{
		// Server settings
		ListenPort:      getenv("ROLLOUTD_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("ROLLOUTD_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("ROLLOUTD_LOG_LEVEL", "info"),
		PrettyLog: mustBool("ROLLOUTD_PRETTY_LOG", false),

		// Rollout tracking
		ServiceName:         getenv("ROLLOUTD_SERVICE_NAME", file.ServiceName),
		ServiceConfigID:     getenv("ROLLOUTD_SERVICE_CONFIG_ID", ""),
		RolloutStrategy:     getenv("ROLLOUTD_ROLLOUT_STRATEGY", strategyDefault),
		FetchThrottleWindow: mustDuration("ROLLOUTD_FETCH_THROTTLE_WINDOW", windowDefault),
		DetectInterval:      mustDuration("ROLLOUTD_DETECT_INTERVAL", time.Minute),
		HTTPTimeout:         mustDuration("ROLLOUTD_HTTP_TIMEOUT", 30*time.Second),

		// Control plane endpoints
		ManagementBaseURL: getenv("ROLLOUTD_MANAGEMENT_URL", "https://servicemanagement.googleapis.com"),
		MetadataBaseURL:   getenv("ROLLOUTD_METADATA_URL", "http://169.254.169.254"),
		MetadataEnabled:   mustBool("ROLLOUTD_METADATA_ENABLED", true),
		MetadataTimeout:   mustDuration("ROLLOUTD_METADATA_TIMEOUT", 5*time.Second),
	}

	if cfg.RolloutStrategy != StrategyManaged && cfg.RolloutStrategy != StrategyFixed {
		panic(fmt.Sprintf("FATAL: unknown rollout strategy %q", cfg.RolloutStrategy))
	}

	return cfg
}

// loadServerConfig reads the optional YAML server config. A missing path is
// fine; an unreadable or malformed file is fatal, a half-applied server
// config is worse than none.
func loadServerConfig(path string) serverConfig {
	var sc serverConfig
	if path == "" {
		return sc
	}

	data, err := os.ReadFile(path)
	if err != nil {
		panic(fmt.Sprintf("FATAL: failed to read server config %s: %v", path, err))
	}
	if err := yaml.Unmarshal(data, &sc); err != nil {
		panic(fmt.Sprintf("FATAL: failed to parse server config %s: %v", path, err))
	}
	return sc
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
