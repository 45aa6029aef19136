package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type DatabaseType string

const (
	SQLite   DatabaseType = "sqlite"
	Postgres DatabaseType = "postgres"
)

type IntelProvider string

const (
	IntelMaxMind IntelProvider = "maxmind"
	IntelIPAPI   IntelProvider = "ipapi"
	IntelNone    IntelProvider = "none"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Intel     IntelConfig
	Throttle  ThrottleConfig
	Detection DetectionConfig
	LogLevel  string `validate:"oneof=trace debug info warn error"`
}

type ServerConfig struct {
	Addr           string `validate:"required"`
	GinMode        string `validate:"oneof=debug release test"`
	AllowedOrigins []string
	// Addresses or CIDRs whose X-Forwarded-For is believed. Empty trusts no proxy.
	TrustedProxies []string `validate:"dive,ip|cidr"`
	MetricsEnabled bool
}

type DatabaseConfig struct {
	Type         DatabaseType `validate:"oneof=sqlite postgres"`
	Path         string       `validate:"required_if=Type sqlite"`
	DSN          string       `validate:"required_if=Type postgres"`
	MaxOpenConns int          `validate:"gte=0"`
	MaxIdleConns int          `validate:"gte=0"`
	ConnMaxLife  time.Duration
}

type IntelConfig struct {
	Provider        IntelProvider `validate:"oneof=maxmind ipapi none"`
	GeoIPCityPath   string        `validate:"required_if=Provider maxmind"`
	GeoIPASNPath    string
	VPNListPath     string
	IPAPIURL        string        `validate:"required_if=Provider ipapi,omitempty,url"`
	IPAPIRatePerMin int           `validate:"gt=0"`
	Timeout         time.Duration `validate:"gt=0"`
	CacheTTL        time.Duration `validate:"gte=0"`
	CacheSize       int           `validate:"gte=0"`
}

type ThrottleConfig struct {
	PruneInterval   time.Duration `validate:"gte=0"`
	DefaultSeverity int           `validate:"min=1,max=5"`
	DefaultHours    int           `validate:"gt=0"`
}

type DetectionConfig struct {
	MinVelocityInterval time.Duration `validate:"gte=0"`
}

// Load reads an optional .env file followed by the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from environment variables only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:           getEnv("SERVER_ADDR", ":8080"),
			GinMode:        getEnv("GIN_MODE", "release"),
			AllowedOrigins: getEnvList("ALLOWED_ORIGINS"),
			TrustedProxies: getEnvList("TRUSTED_PROXIES"),
			MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
		},
		Database: DatabaseConfig{
			Type:         DatabaseType(strings.ToLower(getEnv("DB_TYPE", string(SQLite)))),
			Path:         getEnv("DB_PATH", "geowarden.db"),
			DSN:          getEnv("DB_DSN", ""),
			MaxOpenConns: getEnvInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns: getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLife:  getEnvDuration("DB_CONN_MAX_LIFE", time.Hour),
		},
		Intel: IntelConfig{
			Provider:        IntelProvider(strings.ToLower(getEnv("INTEL_PROVIDER", string(IntelNone)))),
			GeoIPCityPath:   getEnv("GEOIP_CITY_PATH", ""),
			GeoIPASNPath:    getEnv("GEOIP_ASN_PATH", ""),
			VPNListPath:     getEnv("VPN_LIST_PATH", ""),
			IPAPIURL:        getEnv("IPAPI_URL", "http://ip-api.com"),
			IPAPIRatePerMin: getEnvInt("IPAPI_RATE_PER_MINUTE", 45),
			Timeout:         getEnvDuration("INTEL_TIMEOUT", 2*time.Second),
			CacheTTL:        getEnvDuration("INTEL_CACHE_TTL", time.Hour),
			CacheSize:       getEnvInt("INTEL_CACHE_SIZE", 10000),
		},
		Throttle: ThrottleConfig{
			PruneInterval:   getEnvDuration("THROTTLE_PRUNE_INTERVAL", time.Hour),
			DefaultSeverity: getEnvInt("THROTTLE_DEFAULT_SEVERITY", 3),
			DefaultHours:    getEnvInt("THROTTLE_DEFAULT_HOURS", 72),
		},
		Detection: DetectionConfig{
			MinVelocityInterval: getEnvDuration("DETECTION_MIN_VELOCITY_INTERVAL", 0),
		},
		LogLevel: strings.ToLower(getEnv("LOG_LEVEL", "info")),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getEnvBool(key string, defaultValue bool) bool {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// getEnvDuration accepts Go duration strings ("90s", "2h") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}

func getEnvList(key string) []string {
	value := getEnv(key, "")
	if value == "" {
		return nil
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
