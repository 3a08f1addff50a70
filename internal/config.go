package internal

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Env           string              `mapstructure:"env" envconfig:"APP_ENV" default:"development"`
	Server        ServerConfig        `mapstructure:"http_server" envconfig:"HTTP_SERVER"`
	Database      DatabaseConfig      `mapstructure:"database" envconfig:"DATABASE"`
	Security      SecurityConfig      `mapstructure:"security" envconfig:"SECURITY" validate:"required"`
	Observability ObservabilityConfig `mapstructure:"observability" envconfig:"OBSERVABILITY"`
	Audit         AuditConfig         `mapstructure:"audit" envconfig:"AUDIT"`
	Authz         AuthzConfig         `mapstructure:"authz" envconfig:"AUTHZ"`
}

type ServerConfig struct {
	Port              int           `mapstructure:"port" split_words:"true" default:"8080" validate:"required,min=1,max=65535"`
	BaseURL           string        `mapstructure:"base_url" split_words:"true"`
	AllowedOrigins    string        `mapstructure:"allowed_origins" split_words:"true"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" split_words:"true" default:"5s"`
	ReadTimeout       time.Duration `mapstructure:"read_timeout" split_words:"true" default:"15s"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout" split_words:"true" default:"60s"`
	WriteTimeout      time.Duration `mapstructure:"write_timeout" split_words:"true" default:"15s"`
}

type DatabaseConfig struct {
	MaxOpenConns    int           `mapstructure:"max_open_conns" split_words:"true" default:"20" validate:"required,min=1"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" split_words:"true" default:"5" validate:"required,min=1"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" split_words:"true" default:"30m" validate:"required,min=1m"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" split_words:"true" default:"5m" validate:"required,min=1m"`
	Source          string        `mapstructure:"source" split_words:"true" validate:"required"`
}

type SecurityConfig struct {
	AccessTokenSecret    string        `mapstructure:"access_token_secret" split_words:"true" validate:"required,min=32"`
	RefreshTokenSecret   string        `mapstructure:"refresh_token_secret" split_words:"true" validate:"required,min=32"`
	AccessTokenDuration  time.Duration `mapstructure:"access_token_duration" split_words:"true" default:"15m" validate:"required,min=1m,max=1h"`
	RefreshTokenDuration time.Duration `mapstructure:"refresh_token_duration" split_words:"true" default:"168h" validate:"required,min=1h"`
	BCryptCost           int           `mapstructure:"bcrypt_cost" envconfig:"BCRYPT_COST" default:"12" validate:"required,min=10,max=15"`
}

type ObservabilityConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics" envconfig:"METRICS"`
	Logging LoggingConfig `mapstructure:"logging" envconfig:"LOGGING"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" split_words:"true" default:"true"`
	Path    string `mapstructure:"path" split_words:"true" default:"/metrics" validate:"required_if=Enabled true"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" split_words:"true" default:"info" validate:"required,oneof=debug info warn error"`
	Format string `mapstructure:"format" split_words:"true" default:"json" validate:"required,oneof=json text"`
}

// AuditConfig controls change capture and the post-response API call summary.
type AuditConfig struct {
	ExcludedTables     []string      `mapstructure:"excluded_tables" split_words:"true"`
	APICallTimeout     time.Duration `mapstructure:"api_call_timeout" split_words:"true" default:"5s" validate:"min=0"`
	APICallMaxAttempts int           `mapstructure:"api_call_max_attempts" split_words:"true" default:"3" validate:"min=0,max=10"`
}

type AuthzConfig struct {
	BranchCacheSize int           `mapstructure:"branch_cache_size" split_words:"true" default:"1024" validate:"min=0"`
	BranchCacheTTL  time.Duration `mapstructure:"branch_cache_ttl" split_words:"true" default:"10m" validate:"min=0"`
	LoginRateLimit  int           `mapstructure:"login_rate_limit" split_words:"true" default:"10" validate:"min=0"`
}

// LoadConfigFromEnv reads the configuration from plain environment variables,
// used for container deployments where no config file is mounted. Leaf keys
// are always prefixed by their section (DATABASE_SOURCE, OBSERVABILITY_METRICS_PATH)
// so host variables such as PATH or PORT are never picked up.
func LoadConfigFromEnv() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c != nil && c.Env == "production"
}

// ----------------- VALIDATION -----------------

func (c *Config) Validate() error {
	var errs []string

	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Sprintf("%s failed on %s", fe.Namespace(), fe.Tag()))
			}
		} else {
			errs = append(errs, err.Error())
		}
	}

	if err := c.Server.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("server config: %v", err))
	}

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("database config: %v", err))
	}

	if err := c.Security.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("security config: %v", err))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

func (c *ServerConfig) Validate() error {
	if c.AllowedOrigins != "" {
		origins := strings.Split(c.AllowedOrigins, ",")
		for _, origin := range origins {
			origin = strings.TrimSpace(origin)
			if origin == "*" {
				continue
			}
			if _, err := url.Parse(origin); err != nil {
				return fmt.Errorf("invalid allowed origin %s: %w", origin, err)
			}
		}
	}
	if c.ReadTimeout < c.ReadHeaderTimeout {
		return errors.New("read_timeout must be >= read_header_timeout")
	}
	return nil
}

func (c *DatabaseConfig) Validate() error {
	if c.MaxIdleConns > c.MaxOpenConns {
		return errors.New("max_idle_conns cannot be greater than max_open_conns")
	}
	return nil
}

func (c *DatabaseConfig) GetDSN() string {
	return c.Source
}

func (c *SecurityConfig) Validate() error {
	if c.AccessTokenSecret != "" && c.AccessTokenSecret == c.RefreshTokenSecret {
		return errors.New("access and refresh token secrets must differ")
	}
	return nil
}
