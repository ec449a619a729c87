package initializers

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Port    string `mapstructure:"port"`
	BaseURL string `mapstructure:"base_url"`

	DBDriver string `mapstructure:"db_driver"`
	DBURL    string `mapstructure:"db_url"`

	StorageDriver string `mapstructure:"storage_driver"`
	StoragePath   string `mapstructure:"storage_path"`
	AWSRegion     string `mapstructure:"aws_region"`
	AWSBucket     string `mapstructure:"aws_bucket_name"`
	AWSEndpoint   string `mapstructure:"aws_endpoint"`

	JWTSecret   string   `mapstructure:"jwt_secret"`
	CORSOrigins []string `mapstructure:"cors_origins"`

	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`

	LogLevel      string `mapstructure:"log_level"`
	LogProduction bool   `mapstructure:"log_production"`

	CacheSize int           `mapstructure:"cache_size"`
	CacheTTL  time.Duration `mapstructure:"cache_ttl"`

	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	CleanupBatch    int           `mapstructure:"cleanup_batch"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

var defaults = map[string]any{
	"port":             "8080",
	"base_url":         "http://localhost:8080",
	"db_driver":        "postgres",
	"db_url":           "",
	"storage_driver":   "local",
	"storage_path":     "storage",
	"aws_region":       "",
	"aws_bucket_name":  "",
	"aws_endpoint":     "",
	"jwt_secret":       "",
	"cors_origins":     "http://localhost:3000",
	"rate_limit_rps":   1.0,
	"rate_limit_burst": 5,
	"log_level":        "info",
	"log_production":   false,
	"cache_size":       0,
	"cache_ttl":        "30s",
	"cleanup_interval": "1h",
	"cleanup_batch":    100,
	"shutdown_timeout": "10s",
}

// LoadConfig reads .env when present, then the environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	return loadConfig(viper.New())
}

func loadConfig(v *viper.Viper) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.DBDriver = strings.ToLower(cfg.DBDriver)
	cfg.StorageDriver = strings.ToLower(cfg.StorageDriver)
	for i, o := range cfg.CORSOrigins {
		cfg.CORSOrigins[i] = strings.TrimSpace(o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	switch c.DBDriver {
	case "postgres", "mysql":
		if c.DBURL == "" {
			errs = append(errs, errors.New("DB_URL is not set"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver))
	}
	switch c.StorageDriver {
	case "local":
		if c.StoragePath == "" {
			errs = append(errs, errors.New("STORAGE_PATH is not set"))
		}
	case "s3":
		if c.AWSBucket == "" || c.AWSRegion == "" {
			errs = append(errs, errors.New("AWS_REGION and AWS_BUCKET_NAME are required for s3 storage"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported STORAGE_DRIVER %q", c.StorageDriver))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is not set"))
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive"))
	}
	if c.CacheSize < 0 || c.CleanupInterval < 0 || c.CleanupBatch < 1 {
		errs = append(errs, errors.New("CACHE_SIZE, CLEANUP_INTERVAL and CLEANUP_BATCH are out of range"))
	}
	return errors.Join(errs...)
}
