// Package config provides configuration management using Viper
package config

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// Environment types
const (
	Development = "development"
	Production  = "production"
	Test        = "test"
)

// LogLevel represents the logging level for the application
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// Config holds all configuration parameters for the application
type Config struct {
	AppName     string   `mapstructure:"appname"`
	AppPort     string   `mapstructure:"appport"`
	Environment string   `mapstructure:"environment"`
	LogLevel    LogLevel `mapstructure:"loglevel"`
	PrivateKey  string   `mapstructure:"privatekey"`
	APIKey      string   `mapstructure:"apikey"`

	DatabasePath          string `mapstructure:"storagepath"`
	DatabaseName          string `mapstructure:"-"`
	GeoDBPath             string `mapstructure:"geodbpath"`
	MaxMindLicenseKey     string `mapstructure:"maxmindlicensekey"`
	PublicDirectory       string `mapstructure:"publicdir"`
	PublicAssetsUrlPrefix string `mapstructure:"publicassetsurlprefix"`

	LogsDirectory    string `mapstructure:"logsdir"`
	LogsMaxSizeInMb  int    `mapstructure:"logsmaxsizeinmb"`
	LogsMaxBackups   int    `mapstructure:"logsmaxbackups"`
	LogsMaxAgeInDays int    `mapstructure:"logsmaxageindays"`

	DatabaseMaxOpenConns int `mapstructure:"dbmaxopenconns"`
	DatabaseMaxIdleConns int `mapstructure:"dbmaxidleconns"`

	// Session reconstruction and reporting
	IdleCeilingSeconds int `mapstructure:"idleceilingseconds"`
	FlowTopN           int `mapstructure:"flowtopn"`
	DefaultPageSize    int `mapstructure:"defaultpagesize"`
	MaxPageSize        int `mapstructure:"maxpagesize"`

	// Projection cache; empty RedisURL disables it
	RedisURL                  string `mapstructure:"redisurl"`
	ProjectionCacheTTLSeconds int    `mapstructure:"projectioncachettlseconds"`

	MetricsEnabled bool `mapstructure:"metricsenabled"`

	JobIntervalSeconds int `mapstructure:"jobintervalseconds"`
	EventRetentionDays int `mapstructure:"eventretentiondays"`
}

var (
	cfg  *Config
	once sync.Once
)

// GetConfig returns the application configuration
func GetConfig() *Config {
	once.Do(func() {
		v := viper.New()

		v.SetDefault("appname", "rankrent")
		v.SetDefault("appport", "3000")
		v.SetDefault("environment", Development)
		v.SetDefault("loglevel", string(LogLevelDebug))
		v.SetDefault("privatekey", "88888888888888888888888888888888")
		v.SetDefault("apikey", "")
		v.SetDefault("storagepath", "storage")
		v.SetDefault("geodbpath", "storage/GeoLite2-City.mmdb")
		v.SetDefault("maxmindlicensekey", "")
		v.SetDefault("publicdir", "web/dist/assets")
		v.SetDefault("publicassetsurlprefix", "/")
		v.SetDefault("logsdir", "logs")
		v.SetDefault("logsmaxsizeinmb", 20)
		v.SetDefault("logsmaxbackups", 10)
		v.SetDefault("logsmaxageindays", 30)
		v.SetDefault("dbmaxopenconns", 0)
		v.SetDefault("dbmaxidleconns", 0)
		v.SetDefault("idleceilingseconds", 1800)
		v.SetDefault("flowtopn", 5)
		v.SetDefault("defaultpagesize", 25)
		v.SetDefault("maxpagesize", 200)
		v.SetDefault("redisurl", "")
		v.SetDefault("projectioncachettlseconds", 300)
		v.SetDefault("metricsenabled", true)
		v.SetDefault("jobintervalseconds", 60)
		v.SetDefault("eventretentiondays", 395)

		v.BindEnv("appname", "RANKRENT_APP_NAME")
		v.BindEnv("appport", "RANKRENT_APP_PORT")
		v.BindEnv("environment", "RANKRENT_ENV")
		v.BindEnv("loglevel", "RANKRENT_LOG_LEVEL")
		v.BindEnv("privatekey", "RANKRENT_PRIVATE_KEY")
		v.BindEnv("apikey", "RANKRENT_API_KEY")
		v.BindEnv("storagepath", "RANKRENT_STORAGE_PATH")
		v.BindEnv("geodbpath", "RANKRENT_GEO_DB_PATH")
		v.BindEnv("maxmindlicensekey", "RANKRENT_MAXMIND_LICENSE_KEY")
		v.BindEnv("publicdir", "RANKRENT_PUBLIC_DIR")
		v.BindEnv("publicassetsurlprefix", "RANKRENT_PUBLIC_ASSETS_URL_PREFIX")
		v.BindEnv("logsdir", "RANKRENT_LOGS_DIR")
		v.BindEnv("logsmaxsizeinmb", "RANKRENT_LOGS_MAX_SIZE_IN_MB")
		v.BindEnv("logsmaxbackups", "RANKRENT_LOGS_MAX_BACKUPS")
		v.BindEnv("logsmaxageindays", "RANKRENT_LOGS_MAX_AGE_IN_DAYS")
		v.BindEnv("dbmaxopenconns", "RANKRENT_DB_MAX_OPEN_CONNS")
		v.BindEnv("dbmaxidleconns", "RANKRENT_DB_MAX_IDLE_CONNS")
		v.BindEnv("idleceilingseconds", "RANKRENT_IDLE_CEILING_SECONDS")
		v.BindEnv("flowtopn", "RANKRENT_FLOW_TOP_N")
		v.BindEnv("defaultpagesize", "RANKRENT_DEFAULT_PAGE_SIZE")
		v.BindEnv("maxpagesize", "RANKRENT_MAX_PAGE_SIZE")
		v.BindEnv("redisurl", "RANKRENT_REDIS_URL")
		v.BindEnv("projectioncachettlseconds", "RANKRENT_PROJECTION_CACHE_TTL_SECONDS")
		v.BindEnv("metricsenabled", "RANKRENT_METRICS_ENABLED")
		v.BindEnv("jobintervalseconds", "RANKRENT_JOB_INTERVAL_SECONDS")
		v.BindEnv("eventretentiondays", "RANKRENT_EVENT_RETENTION_DAYS")

		cfg = &Config{}
		if err := v.Unmarshal(cfg); err != nil {
			log.Fatalf("config: failed to unmarshal configuration: %v", err)
		}

		if err := cfg.validate(); err != nil {
			log.Fatalf("config: invalid configuration: %v", err)
		}

		cfg.DatabaseName = cfg.GetDatabasePath()

		defaultKey := "88888888888888888888888888888888"
		if cfg.PrivateKey == "" {
			log.Fatal("Private key is required")
		}
		if cfg.IsProduction() && cfg.PrivateKey == defaultKey {
			log.Fatal("Production requires a unique RANKRENT_PRIVATE_KEY (cannot use default)")
		}
		if cfg.IsProduction() && cfg.APIKey == "" {
			log.Fatal("Production requires RANKRENT_API_KEY for the dashboard API")
		}
	})
	return cfg
}

// validate checks the configuration for errors
func (c *Config) validate() error {
	validEnvs := map[string]bool{
		Development: true,
		Production:  true,
		Test:        true,
	}
	if !validEnvs[c.Environment] {
		return fmt.Errorf("invalid environment: %s", c.Environment)
	}
	if c.IdleCeilingSeconds <= 0 {
		return fmt.Errorf("idle ceiling must be positive, got %d", c.IdleCeilingSeconds)
	}
	if c.DefaultPageSize <= 0 || c.MaxPageSize < c.DefaultPageSize {
		return fmt.Errorf("invalid page sizes: default=%d max=%d", c.DefaultPageSize, c.MaxPageSize)
	}
	if c.FlowTopN <= 0 {
		return fmt.Errorf("flow top-N must be positive, got %d", c.FlowTopN)
	}
	return nil
}

// GetDatabasePath returns the appropriate database path based on environment
func (c *Config) GetDatabasePath() string {
	if c.DatabaseName == "" {
		c.DatabaseName = filepath.Join(c.DatabasePath,
			fmt.Sprintf("%s-%s.db", c.AppName, c.Environment))
	}
	return c.DatabaseName
}

func (c *Config) IsDevelopment() bool { return c.Environment == Development }
func (c *Config) IsProduction() bool  { return c.Environment == Production }
func (c *Config) IsTest() bool        { return c.Environment == Test }

// IdleCeiling is the maximum duration credited to a single visit.
// Gaps above it are capped, never split into a new session.
func (c *Config) IdleCeiling() time.Duration {
	return time.Duration(c.IdleCeilingSeconds) * time.Second
}

// ProjectionCacheTTL returns how long cached session projections live.
func (c *Config) ProjectionCacheTTL() time.Duration {
	return time.Duration(c.ProjectionCacheTTLSeconds) * time.Second
}

// GetPort returns the HTTP server port (implements cartridge.Config interface).
func (c *Config) GetPort() string {
	return c.AppPort
}

// GetPublicDirectory returns the path to public/static assets (implements cartridge.Config interface).
func (c *Config) GetPublicDirectory() string {
	return c.PublicDirectory
}

// GetAssetsPrefix returns the URL prefix for static assets (implements cartridge.Config interface).
func (c *Config) GetAssetsPrefix() string {
	return c.PublicAssetsUrlPrefix
}

// GetAppName returns the application name (implements cartridge.FactoryConfig interface).
func (c *Config) GetAppName() string {
	return c.AppName
}

// DatabaseDSN returns the database connection string (implements cartridge.FactoryConfig interface).
func (c *Config) DatabaseDSN() string {
	return c.GetDatabasePath()
}

// GetSessionSecret returns the cookie encryption key (implements cartridge.FactoryConfig interface).
func (c *Config) GetSessionSecret() string {
	return c.PrivateKey
}

// GetMaxOpenConns returns MaxOpenConns, defaulting to 1 in test and 10 otherwise.
func (c *Config) GetMaxOpenConns() int {
	if c.DatabaseMaxOpenConns > 0 {
		return c.DatabaseMaxOpenConns
	}
	if c.Environment == Test {
		return 1
	}
	return 10
}

// GetMaxIdleConns returns MaxIdleConns, defaulting to 1 in test and 5 otherwise.
func (c *Config) GetMaxIdleConns() int {
	if c.DatabaseMaxIdleConns > 0 {
		return c.DatabaseMaxIdleConns
	}
	if c.Environment == Test {
		return 1
	}
	return 5
}

// GetLogLevel returns the log level as a string (implements cartridge.LogConfigProvider).
func (c *Config) GetLogLevel() string {
	return string(c.LogLevel)
}

// GetLogDirectory returns the logs directory (implements cartridge.LogConfigProvider).
func (c *Config) GetLogDirectory() string {
	return c.LogsDirectory
}

// GetLogMaxSizeMB returns the max log file size in MB (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxSizeMB() int {
	return c.LogsMaxSizeInMb
}

// GetLogMaxBackups returns the max number of log backups (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxBackups() int {
	return c.LogsMaxBackups
}

// GetLogMaxAgeDays returns the max age in days for log files (implements cartridge.LogConfigProvider).
func (c *Config) GetLogMaxAgeDays() int {
	return c.LogsMaxAgeInDays
}

// Reset clears the cached configuration; intended for tests.
func Reset() {
	once = sync.Once{}
	cfg = nil
}
