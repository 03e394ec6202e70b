package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type MetricsConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	EnableProcess bool `mapstructure:"enable_process"`
}

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Metrics        MetricsConfig        `mapstructure:"metrics"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Ledger         LedgerConfig         `mapstructure:"ledger"`
	Threat         ThreatConfig         `mapstructure:"threat"`
	Challenge      ChallengeConfig      `mapstructure:"challenge"`
	Detector       DetectorConfig       `mapstructure:"detector"`
	Blocklist      BlocklistConfig      `mapstructure:"blocklist"`
	SecurityEvents SecurityEventsConfig `mapstructure:"security_events"`
	Telemetry      TelemetryConfig      `mapstructure:"telemetry"`
	GeoIP          GeoIPConfig          `mapstructure:"geoip"`
	Upstream       UpstreamConfig       `mapstructure:"upstream"`
	Stream         StreamConfig         `mapstructure:"stream"`
}

type ServerConfig struct {
	AdminPort   int    `mapstructure:"admin_port"`
	ProxyPort   int    `mapstructure:"proxy_port"`
	MetricsPort int    `mapstructure:"metrics_port"`
	Type        string `mapstructure:"type"`
	Host        string `mapstructure:"host"`
	SecretKey   string `mapstructure:"secret_key"`
	InstanceID  string `mapstructure:"instance_id"`
	SwaggerURL  string `mapstructure:"swagger_url"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	TLS      bool   `mapstructure:"tls"`
}

type LedgerConfig struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	Password          string        `mapstructure:"password"`
	DB                int           `mapstructure:"db"`
	TLS               bool          `mapstructure:"tls"`
	HMACKey           string        `mapstructure:"hmac_key"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout"`
	BlockCacheTTL     time.Duration `mapstructure:"block_cache_ttl"`
	SignatureCacheTTL time.Duration `mapstructure:"signature_cache_ttl"`
	BreakerTimeout    time.Duration `mapstructure:"breaker_timeout"`
	BreakerFailures   uint32        `mapstructure:"breaker_failures"`
}

type ThreatConfig struct {
	SkipPaths     []string `mapstructure:"skip_paths"`
	Whitelist     []string `mapstructure:"whitelist"`
	LoginPaths    []string `mapstructure:"login_paths"`
	IPHeaders     []string `mapstructure:"ip_headers"`
	SessionSecret string   `mapstructure:"session_secret"`
	// StoreBreakerTimeout controls how long the counter store stays on the local
	// fallback after Redis trips the breaker.
	StoreBreakerTimeout  time.Duration `mapstructure:"store_breaker_timeout"`
	StoreBreakerFailures uint32        `mapstructure:"store_breaker_failures"`
}

type ChallengeConfig struct {
	TTL               time.Duration `mapstructure:"ttl"`
	PassTTL           time.Duration `mapstructure:"pass_ttl"`
	MaxFailures       int64         `mapstructure:"max_failures"`
	FailureWindow     time.Duration `mapstructure:"failure_window"`
	BlockDuration     time.Duration `mapstructure:"block_duration"`
	IssueRatePerMin   float64       `mapstructure:"issue_rate_per_min"`
	IssueBurst        int           `mapstructure:"issue_burst"`
	ReliefRateCredits int64         `mapstructure:"relief_rate_credits"`
}

type DetectorConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Interval       time.Duration `mapstructure:"interval"`
	Window         time.Duration `mapstructure:"window"`
	MinSources     int           `mapstructure:"min_sources"`
	MaxSourcesScan int           `mapstructure:"max_sources_scan"`
}

type BlocklistConfig struct {
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	SyncInterval  time.Duration `mapstructure:"sync_interval"`
	SyncBatchSize int           `mapstructure:"sync_batch_size"`
	Workers       int           `mapstructure:"workers"`
}

type SecurityEventsConfig struct {
	Retention      time.Duration `mapstructure:"retention"`
	RetentionCheck time.Duration `mapstructure:"retention_check"`
	QueueSize      int           `mapstructure:"queue_size"`
	Workers        int           `mapstructure:"workers"`
}

type ExporterConfig struct {
	Name     string                 `mapstructure:"name"`
	Settings map[string]interface{} `mapstructure:"settings"`
}

type TelemetryConfig struct {
	Exporters []ExporterConfig `mapstructure:"exporters"`
}

type GeoIPConfig struct {
	DatabasePath string `mapstructure:"database_path"`
}

type UpstreamConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type StreamConfig struct {
	MaxSubscribers int           `mapstructure:"max_subscribers"`
	PingPeriod     time.Duration `mapstructure:"ping_period"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
}

var globalConfig Config

func Load(configPath string) error {
	if err := loadConfigFile(configPath, "config", &globalConfig); err != nil {
		return fmt.Errorf("could not load main config file: %w", err)
	}
	setDefaultValues(&globalConfig)
	return nil
}

func loadConfigFile(configPath, fileName string, out interface{}) error {
	viper.SetConfigName(fileName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configPath)
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			return fmt.Errorf("config file %s.yaml not found, using only environment variables", fileName)
		}
		return fmt.Errorf("error reading config file %s.yaml: %w", fileName, err)
	}

	if err := viper.Unmarshal(out); err != nil {
		return fmt.Errorf("failed to unmarshal %s config: %w", fileName, err)
	}

	return nil
}

func setDefaultValues(cfg *Config) {
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Server.ProxyPort == 0 {
		cfg.Server.ProxyPort = 8081
	}
	if cfg.Server.AdminPort == 0 {
		cfg.Server.AdminPort = 8080
	}
	if cfg.Server.MetricsPort == 0 {
		cfg.Server.MetricsPort = 9090
	}
	if cfg.Server.SwaggerURL == "" {
		cfg.Server.SwaggerURL = fmt.Sprintf("http://localhost:%d/swagger.json", cfg.Server.AdminPort)
	}
	if cfg.Server.InstanceID == "" {
		if host, err := os.Hostname(); err == nil {
			cfg.Server.InstanceID = host
		} else {
			cfg.Server.InstanceID = "threatgate"
		}
	}
	if cfg.Ledger.Host == "" {
		cfg.Ledger.Host = cfg.Redis.Host
		cfg.Ledger.Port = cfg.Redis.Port
		cfg.Ledger.Password = cfg.Redis.Password
	}
	if cfg.Ledger.ReadTimeout == 0 {
		cfg.Ledger.ReadTimeout = 500 * time.Millisecond
	}
	if cfg.Ledger.WriteTimeout == 0 {
		cfg.Ledger.WriteTimeout = 2 * time.Second
	}
	if cfg.Ledger.BlockCacheTTL == 0 {
		cfg.Ledger.BlockCacheTTL = 60 * time.Second
	}
	if cfg.Ledger.SignatureCacheTTL == 0 {
		cfg.Ledger.SignatureCacheTTL = 5 * time.Minute
	}
	if cfg.Ledger.BreakerTimeout == 0 {
		cfg.Ledger.BreakerTimeout = 30 * time.Second
	}
	if cfg.Ledger.BreakerFailures == 0 {
		cfg.Ledger.BreakerFailures = 5
	}
	if len(cfg.Threat.SkipPaths) == 0 {
		cfg.Threat.SkipPaths = []string{"/health", "/metrics", "/favicon.ico", "/static/", "/api/security/challenge"}
	}
	if len(cfg.Threat.IPHeaders) == 0 {
		cfg.Threat.IPHeaders = []string{"X-Forwarded-For", "X-Real-IP"}
	}
	if cfg.Threat.StoreBreakerTimeout == 0 {
		cfg.Threat.StoreBreakerTimeout = 10 * time.Second
	}
	if cfg.Threat.StoreBreakerFailures == 0 {
		cfg.Threat.StoreBreakerFailures = 3
	}
	if cfg.Challenge.TTL == 0 {
		cfg.Challenge.TTL = 300 * time.Second
	}
	if cfg.Challenge.PassTTL == 0 {
		cfg.Challenge.PassTTL = 120 * time.Second
	}
	if cfg.Challenge.MaxFailures == 0 {
		cfg.Challenge.MaxFailures = 3
	}
	if cfg.Challenge.FailureWindow == 0 {
		cfg.Challenge.FailureWindow = 900 * time.Second
	}
	if cfg.Challenge.BlockDuration == 0 {
		cfg.Challenge.BlockDuration = 15 * time.Minute
	}
	if cfg.Challenge.IssueRatePerMin == 0 {
		cfg.Challenge.IssueRatePerMin = 10
	}
	if cfg.Challenge.IssueBurst == 0 {
		cfg.Challenge.IssueBurst = 5
	}
	if cfg.Challenge.ReliefRateCredits == 0 {
		cfg.Challenge.ReliefRateCredits = 20
	}
	if cfg.Detector.Interval == 0 {
		cfg.Detector.Interval = time.Minute
	}
	if cfg.Detector.Window == 0 {
		cfg.Detector.Window = 5 * time.Minute
	}
	if cfg.Detector.MinSources == 0 {
		cfg.Detector.MinSources = 50
	}
	if cfg.Detector.MaxSourcesScan == 0 {
		cfg.Detector.MaxSourcesScan = 20000
	}
	if cfg.Blocklist.SweepInterval == 0 {
		cfg.Blocklist.SweepInterval = 5 * time.Minute
	}
	if cfg.Blocklist.SyncInterval == 0 {
		cfg.Blocklist.SyncInterval = time.Minute
	}
	if cfg.Blocklist.SyncBatchSize == 0 {
		cfg.Blocklist.SyncBatchSize = 100
	}
	if cfg.Blocklist.Workers == 0 {
		cfg.Blocklist.Workers = 4
	}
	if cfg.SecurityEvents.Retention == 0 {
		cfg.SecurityEvents.Retention = 30 * 24 * time.Hour
	}
	if cfg.SecurityEvents.RetentionCheck == 0 {
		cfg.SecurityEvents.RetentionCheck = time.Hour
	}
	if cfg.SecurityEvents.QueueSize == 0 {
		cfg.SecurityEvents.QueueSize = 1000
	}
	if cfg.SecurityEvents.Workers == 0 {
		cfg.SecurityEvents.Workers = 1
	}
	if cfg.Upstream.Timeout == 0 {
		cfg.Upstream.Timeout = 30 * time.Second
	}
	if cfg.Stream.MaxSubscribers == 0 {
		cfg.Stream.MaxSubscribers = 16
	}
	if cfg.Stream.PingPeriod == 0 {
		cfg.Stream.PingPeriod = 30 * time.Second
	}
	if cfg.Stream.PongWait == 0 {
		cfg.Stream.PongWait = 45 * time.Second
	}
}

func GetConfig() *Config {
	return &globalConfig
}
