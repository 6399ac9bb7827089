// Package config loads the marketplace configuration from flags, the
// environment (SKILLSMARKET_*), an optional config.yaml and, outside
// production, a .env file.
package config

import (
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/emergent/skillsmarket/pkg/db"
	"github.com/emergent/skillsmarket/pkg/github"
	"github.com/emergent/skillsmarket/pkg/telemetry"
)

// EnvPrefix is prepended to every environment variable viper reads.
const EnvPrefix = "SKILLSMARKET"

// Store backends.
const (
	BackendGitHub = "github"
	BackendLocal  = "local"
)

// EnvironmentProduction disables .env loading.
const EnvironmentProduction = "production"

var replacer = strings.NewReplacer(".", "_", "-", "_")

// StoreConfig selects where skill files live.
type StoreConfig struct {
	Backend   string `mapstructure:"backend"`
	LocalRoot string `mapstructure:"local_root"`
}

// Config is the complete service configuration.
type Config struct {
	Environment    string   `mapstructure:"environment"`
	Listen         string   `mapstructure:"listen"`
	PublicURL      string   `mapstructure:"public_url"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	LogLevel       string   `mapstructure:"log_level"`
	LogFormat      string   `mapstructure:"log_format"`

	DB      db.Config        `mapstructure:"db"`
	Store   StoreConfig      `mapstructure:"store"`
	GitHub  github.Config    `mapstructure:"github"`
	Tracing telemetry.Config `mapstructure:"tracing"`
}

// SetDefaults registers every key so that AutomaticEnv can override it.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("listen", "localhost:8787")
	v.SetDefault("public_url", "http://localhost:8787")
	v.SetDefault("allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "fmt")

	v.SetDefault("db.driver", db.DriverSQLite)
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 0)
	v.SetDefault("db.conn_max_lifetime", time.Duration(0))

	v.SetDefault("store.backend", BackendGitHub)
	v.SetDefault("store.local_root", "")

	v.SetDefault("github.token", "")
	v.SetDefault("github.owner", "")
	v.SetDefault("github.repo", "")
	v.SetDefault("github.branch", github.DefaultBranch)
	v.SetDefault("github.base_url", "")
	v.SetDefault("github.retry_attempts", 3)
	v.SetDefault("github.retry_delay", 500*time.Millisecond)

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "skillsmarket")
	v.SetDefault("tracing.service_version", "")
	v.SetDefault("tracing.sampler_type", "ratio")
	v.SetDefault("tracing.sampler_ratio", 1.0)
	v.SetDefault("tracing.endpoint", "")
}

// Init prepares v the way every command expects: defaults, environment
// binding and the optional config file.
func Init(v *viper.Viper) error {
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME/.skillsmarket")
	v.AddConfigPath(".")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return errors.Wrap(err, "failed to read config file")
		}
	}
	return nil
}

// LoadDotEnv loads .env files into the process environment unless
// SKILLSMARKET_ENVIRONMENT is production. Variables already set win, and
// missing files are ignored.
func LoadDotEnv(files ...string) error {
	if strings.EqualFold(os.Getenv(EnvPrefix+"_ENVIRONMENT"), EnvironmentProduction) {
		return nil
	}
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return errors.Wrapf(err, "failed to load %s", f)
		}
	}
	return nil
}

// Load decodes the settings held by v into a Config.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create config decoder")
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, errors.Wrap(err, "failed to decode configuration")
	}

	cfg.AllowedOrigins = trimAll(cfg.AllowedOrigins)
	if cfg.Store.Backend == BackendLocal && cfg.Store.LocalRoot == "" {
		root, err := DefaultLocalRoot()
		if err != nil {
			return nil, err
		}
		cfg.Store.LocalRoot = root
	}
	return &cfg, nil
}

// DefaultLocalRoot is where the local backend keeps files when
// store.local_root is unset.
func DefaultLocalRoot() (string, error) {
	if basePath := os.Getenv(EnvPrefix + "_BASE_PATH"); basePath != "" {
		return filepath.Join(basePath, "files"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.Wrap(err, "failed to get home directory")
	}
	return filepath.Join(home, ".skillsmarket", "files"), nil
}

// IsProduction reports whether the service runs in production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, EnvironmentProduction)
}

// HostPort splits Listen into its host and port.
func (c *Config) HostPort() (string, int, error) {
	host, portStr, err := net.SplitHostPort(c.Listen)
	if err != nil {
		return "", 0, errors.Wrapf(err, "invalid listen address %q", c.Listen)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, errors.Errorf("invalid port in listen address %q", c.Listen)
	}
	if host == "" {
		host = "0.0.0.0"
	}
	return host, port, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var result *multierror.Error

	if _, _, err := c.HostPort(); err != nil {
		result = multierror.Append(result, err)
	}

	switch c.DB.Driver {
	case "", db.DriverSQLite:
	case db.DriverMySQL:
		if c.DB.DSN == "" {
			result = multierror.Append(result, errors.New("db.dsn is required for the mysql driver"))
		}
	default:
		result = multierror.Append(result, errors.Errorf("unsupported db.driver %q", c.DB.Driver))
	}

	switch c.Store.Backend {
	case BackendGitHub:
		if err := c.GitHub.Validate(); err != nil {
			result = multierror.Append(result, err)
		}
	case BackendLocal:
	default:
		result = multierror.Append(result, errors.Errorf("unsupported store.backend %q (want github or local)", c.Store.Backend))
	}

	switch c.LogFormat {
	case "fmt", "json":
	default:
		result = multierror.Append(result, errors.Errorf("unsupported log_format %q (want fmt or json)", c.LogFormat))
	}

	return result.ErrorOrNil()
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
