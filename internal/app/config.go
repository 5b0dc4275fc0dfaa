package app

import (
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"

	"github.com/xenking/productos/internal/storage/postgres"
)

// DefaultFiles are the config files looked up when none are given.
var DefaultFiles = []string{"catalog.yaml", "/etc/catalog/catalog.yaml"}

// Config holds the complete application configuration, loadable from
// environment variables (CATALOG_ prefix), flags, or YAML config files.
type Config struct {
	Addr     string          `yaml:"addr" default:"0.0.0.0:8080" usage:"API server listen address"`
	Database postgres.Config `yaml:"database"`
	Graceful GracefulConfig  `yaml:"graceful"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `yaml:"readiness_delay" default:"1s" usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// ConfigurationError reports required settings that are missing.
type ConfigurationError struct {
	Missing []string
}

func (e *ConfigurationError) Error() string {
	return "missing required configuration: " + strings.Join(e.Missing, ", ")
}

// LoadOptions selects where configuration is read from.
type LoadOptions struct {
	// Files overrides DefaultFiles.
	Files []string
	// Args are parsed as flags. Flags are skipped when nil.
	Args []string
}

// LoadConfig loads configuration from YAML files, environment variables and
// optionally flags, fills unset database keys from the standard PG*
// variables, and fails when a required database key is missing.
func LoadConfig(opts LoadOptions) (*Config, error) {
	files := opts.Files
	if files == nil {
		files = DefaultFiles
	}

	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "CATALOG",
		SkipFlags: opts.Args == nil,
		Args:      opts.Args,
		Files:     files,
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
			".yml":  aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults fills unset database keys from the environment
// variables libpq clients understand.
func (c *Config) applyPlatformDefaults() {
	db := &c.Database
	if db.Host == "" {
		db.Host = os.Getenv("PGHOST")
	}
	if db.Port == 0 {
		if port, err := strconv.Atoi(os.Getenv("PGPORT")); err == nil {
			db.Port = port
		}
	}
	if db.Database == "" {
		db.Database = os.Getenv("PGDATABASE")
	}
	if db.User == "" {
		db.User = os.Getenv("PGUSER")
	}
	if db.Password == "" {
		db.Password = os.Getenv("PGPASSWORD")
	}
}

var configValidator = newConfigValidator()

func newConfigValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

func (c *Config) validate() error {
	err := configValidator.Struct(c.Database)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Wrap(err, "validate config")
	}
	missing := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		missing = append(missing, "database."+fe.Field())
	}
	return &ConfigurationError{Missing: missing}
}
