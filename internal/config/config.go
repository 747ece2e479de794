package config

import (
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-viper/mapstructure/v2"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"salmonrun-notifier/internal/logging"
)

// DefaultPath is where the notifier looks for its configuration file.
const DefaultPath = "config/salmon_config.toml"

//go:embed salmon_config_template.toml
var template []byte

var (
	// ErrTemplateWritten reports that no configuration existed and a template was written in its place.
	ErrTemplateWritten = errors.New("config: template written")
	// ErrInvalid wraps every validation failure.
	ErrInvalid = errors.New("config: invalid")
)

// Config materialises application configuration.
type Config struct {
	Settings SettingsConfig `mapstructure:"settings"`
	Logging  logging.Config `mapstructure:"logging"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Notify   NotifyConfig   `mapstructure:"notify"`
	Export   ExportConfig   `mapstructure:"export"`

	location *time.Location
}

// SettingsConfig carries the operator-facing notifier settings.
type SettingsConfig struct {
	LocalTimezone         string          `mapstructure:"local_timezone"`
	AlertQuietStart       int             `mapstructure:"alert_quiet_start"`
	AlertQuietEnd         int             `mapstructure:"alert_quiet_end"`
	Destinations          []string        `mapstructure:"destinations"`
	SchedulesAPI          string          `mapstructure:"schedules_api"`
	FailureThresholdHours decimal.Decimal `mapstructure:"failure_threshold_hours"`
}

// FetchConfig tunes origin access and the retry cadence after failures.
type FetchConfig struct {
	Timeout    time.Duration `mapstructure:"timeout"`
	UserAgent  string        `mapstructure:"user_agent"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// StorageConfig locates the cache and the alert ledger.
type StorageConfig struct {
	CachePath       string `mapstructure:"cache_path"`
	LedgerDriver    string `mapstructure:"ledger_driver"`
	LedgerPath      string `mapstructure:"ledger_path"`
	SQLitePath      string `mapstructure:"sqlite_path"`
	PostgresDSN     string `mapstructure:"postgres_dsn"`
	MaxConns        int    `mapstructure:"max_conns"`
	AdvisoryLockKey int64  `mapstructure:"advisory_lock_key"`
}

// Driver returns the canonical ledger driver name, folding the sqlite3 and
// postgresql aliases.
func (s StorageConfig) Driver() string {
	driver := strings.ToLower(strings.TrimSpace(s.LedgerDriver))
	switch driver {
	case "":
		return "file"
	case "sqlite3":
		return "sqlite"
	case "postgresql":
		return "postgres"
	}
	return driver
}

// NotifyConfig paces delivery across destinations.
type NotifyConfig struct {
	RatePerSec int           `mapstructure:"rate_per_sec"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxRotations int `mapstructure:"max_rotations"`
}

// Load builds configuration from file, environment, and defaults. A missing
// file is replaced by the embedded template and ErrTemplateWritten is returned.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := WriteTemplate(path); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w to %s", ErrTemplateWritten, path)
	}

	v := newViper(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("%w: read config: %v", ErrInvalid, err)
	}
	return decode(v)
}

// WriteTemplate copies the embedded template to path, creating parent directories.
func WriteTemplate(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, template, 0o644); err != nil {
		return fmt.Errorf("write config template: %w", err)
	}
	return nil
}

func newViper(path string) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("SALMONRUN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	v.SetConfigFile(path)
	if filepath.Ext(path) == "" {
		v.SetConfigType("toml")
	}
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("%w: unmarshal config: %v", ErrInvalid, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("settings.local_timezone", "UTC")
	v.SetDefault("settings.alert_quiet_start", 0)
	v.SetDefault("settings.alert_quiet_end", 0)
	v.SetDefault("settings.schedules_api", "https://splatoon3.ink/data/schedules.json")
	v.SetDefault("settings.failure_threshold_hours", "6")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")

	v.SetDefault("fetch.timeout", "10s")
	v.SetDefault("fetch.retry_delay", "60s")

	v.SetDefault("storage.cache_path", "config/cache.temp")
	v.SetDefault("storage.ledger_driver", "file")
	v.SetDefault("storage.ledger_path", "config/last.alert")
	v.SetDefault("storage.sqlite_path", "config/ledger.db")
	v.SetDefault("storage.max_conns", 2)
	v.SetDefault("storage.advisory_lock_key", int64(0x53414c4d))

	v.SetDefault("notify.rate_per_sec", 2)
	v.SetDefault("notify.timeout", "10s")

	v.SetDefault("export.max_rotations", 50)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			decimalHookFunc(),
		)
	}
}

// decimalHookFunc accepts TOML integers, floats and strings for decimal fields.
func decimalHookFunc() mapstructure.DecodeHookFuncType {
	decimalType := reflect.TypeOf(decimal.Decimal{})
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if to != decimalType {
			return data, nil
		}
		switch value := data.(type) {
		case string:
			return decimal.NewFromString(strings.TrimSpace(value))
		case int:
			return decimal.NewFromInt(int64(value)), nil
		case int64:
			return decimal.NewFromInt(value), nil
		case float64:
			return decimal.NewFromFloat(value), nil
		case decimal.Decimal:
			return value, nil
		default:
			return nil, fmt.Errorf("cannot decode %T as decimal", data)
		}
	}
}

// Validate performs sanity checks on the configuration values.
func (c *Config) Validate() error {
	loc, err := time.LoadLocation(c.Settings.LocalTimezone)
	if err != nil {
		return fmt.Errorf("%w: settings.local_timezone %q: %v", ErrInvalid, c.Settings.LocalTimezone, err)
	}
	c.location = loc

	if c.Settings.AlertQuietStart < 0 || c.Settings.AlertQuietStart > 23 {
		return fmt.Errorf("%w: settings.alert_quiet_start must be between 0 and 23", ErrInvalid)
	}
	if c.Settings.AlertQuietEnd < 0 || c.Settings.AlertQuietEnd > 23 {
		return fmt.Errorf("%w: settings.alert_quiet_end must be between 0 and 23", ErrInvalid)
	}
	if !c.Settings.FailureThresholdHours.IsPositive() {
		return fmt.Errorf("%w: settings.failure_threshold_hours must be greater than zero", ErrInvalid)
	}

	api, err := url.Parse(c.Settings.SchedulesAPI)
	if err != nil || api.Host == "" || (api.Scheme != "http" && api.Scheme != "https") {
		return fmt.Errorf("%w: settings.schedules_api must be an http(s) URL", ErrInvalid)
	}
	for i, dest := range c.Settings.Destinations {
		if strings.TrimSpace(dest) == "" {
			return fmt.Errorf("%w: settings.destinations[%d] is empty", ErrInvalid, i)
		}
	}

	switch c.Storage.Driver() {
	case "file":
		if c.Storage.LedgerPath == "" {
			return fmt.Errorf("%w: storage.ledger_path is required for the file driver", ErrInvalid)
		}
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("%w: storage.sqlite_path is required for the sqlite driver", ErrInvalid)
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("%w: storage.postgres_dsn is required for the postgres driver", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown storage.ledger_driver %q", ErrInvalid, c.Storage.LedgerDriver)
	}
	if c.Storage.CachePath == "" {
		return fmt.Errorf("%w: storage.cache_path is required", ErrInvalid)
	}

	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("%w: fetch.timeout must be greater than zero", ErrInvalid)
	}
	if c.Fetch.RetryDelay <= 0 {
		return fmt.Errorf("%w: fetch.retry_delay must be greater than zero", ErrInvalid)
	}
	if c.Export.MaxRotations <= 0 {
		return fmt.Errorf("%w: export.max_rotations must be greater than zero", ErrInvalid)
	}
	return nil
}

// Location returns the validated operator time zone.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// FailureThreshold converts the fractional hour setting to a duration.
func (c *Config) FailureThreshold() time.Duration {
	nanos := c.Settings.FailureThresholdHours.Mul(decimal.NewFromInt(int64(time.Hour)))
	return time.Duration(nanos.IntPart())
}

// ResolveMaxRotations returns either the CLI override or config default.
func (c *Config) ResolveMaxRotations(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxRotations
}
