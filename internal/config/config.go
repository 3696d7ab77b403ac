// Package config loads meetsync settings from defaults, an optional TOML
// file, a .env file and the environment, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabasePath string
	Logging      LoggingConfig
	Google       GoogleConfig
	ICloud       ICloudConfig
	Calendar     CalendarConfig
	Scheduling   SchedulingConfig
}

type LoggingConfig struct {
	Level  string
	Format string
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	TokenDir     string
	CalendarID   string
}

// Enabled reports whether a Google gateway can be built. Credentials may
// also come from credentials.json, so only the token directory matters.
func (g GoogleConfig) Enabled() bool {
	return g.TokenDir != ""
}

type ICloudConfig struct {
	Endpoint     string
	Username     string
	Password     string
	CalendarName string
}

func (c ICloudConfig) Enabled() bool {
	return c.Username != "" && c.Password != "" && c.CalendarName != ""
}

type CalendarConfig struct {
	Timeout             time.Duration
	ConflictConcurrency int
}

type SchedulingConfig struct {
	DefaultDurationMinutes int
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DatabasePath: "meetsync.db",
		Logging:      LoggingConfig{Level: "info", Format: "text"},
		Google:       GoogleConfig{TokenDir: ".", CalendarID: "primary"},
		ICloud:       ICloudConfig{Endpoint: "https://caldav.icloud.com/"},
		Calendar:     CalendarConfig{Timeout: 15 * time.Second, ConflictConcurrency: 8},
		Scheduling:   SchedulingConfig{DefaultDurationMinutes: 60},
	}
}

// fileConfig mirrors Config with pointer fields to detect presence.
type fileConfig struct {
	DatabasePath *string `toml:"database_path"`
	Logging      struct {
		Level  *string `toml:"level"`
		Format *string `toml:"format"`
	} `toml:"logging"`
	Google struct {
		ClientID     *string `toml:"client_id"`
		ClientSecret *string `toml:"client_secret"`
		TokenDir     *string `toml:"token_dir"`
		CalendarID   *string `toml:"calendar_id"`
	} `toml:"google"`
	ICloud struct {
		Endpoint     *string `toml:"endpoint"`
		Username     *string `toml:"username"`
		Password     *string `toml:"password"`
		CalendarName *string `toml:"calendar_name"`
	} `toml:"icloud"`
	Calendar struct {
		Timeout             *string `toml:"timeout"`
		ConflictConcurrency *int    `toml:"conflict_concurrency"`
	} `toml:"calendar"`
	Scheduling struct {
		DefaultDurationMinutes *int `toml:"default_duration_minutes"`
	} `toml:"scheduling"`
}

// Load builds the configuration. path may be empty; a missing .env file is
// not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fc fileConfig
	md, err := toml.Decode(string(data), &fc)
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("unknown config keys in %s: %s", path, strings.Join(keys, ", "))
	}

	setString(&c.DatabasePath, fc.DatabasePath)
	setString(&c.Logging.Level, fc.Logging.Level)
	setString(&c.Logging.Format, fc.Logging.Format)
	setString(&c.Google.ClientID, fc.Google.ClientID)
	setString(&c.Google.ClientSecret, fc.Google.ClientSecret)
	setString(&c.Google.TokenDir, fc.Google.TokenDir)
	setString(&c.Google.CalendarID, fc.Google.CalendarID)
	setString(&c.ICloud.Endpoint, fc.ICloud.Endpoint)
	setString(&c.ICloud.Username, fc.ICloud.Username)
	setString(&c.ICloud.Password, fc.ICloud.Password)
	setString(&c.ICloud.CalendarName, fc.ICloud.CalendarName)
	if fc.Calendar.Timeout != nil {
		d, err := time.ParseDuration(*fc.Calendar.Timeout)
		if err != nil {
			return fmt.Errorf("invalid calendar.timeout %q: %w", *fc.Calendar.Timeout, err)
		}
		c.Calendar.Timeout = d
	}
	if fc.Calendar.ConflictConcurrency != nil {
		c.Calendar.ConflictConcurrency = *fc.Calendar.ConflictConcurrency
	}
	if fc.Scheduling.DefaultDurationMinutes != nil {
		c.Scheduling.DefaultDurationMinutes = *fc.Scheduling.DefaultDurationMinutes
	}
	return nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"DATABASE_PATH":                &c.DatabasePath,
		"LOG_LEVEL":                    &c.Logging.Level,
		"LOG_FORMAT":                   &c.Logging.Format,
		"GOOGLE_CLIENT_ID":             &c.Google.ClientID,
		"GOOGLE_CLIENT_SECRET":         &c.Google.ClientSecret,
		"GOOGLE_TOKEN_DIR":             &c.Google.TokenDir,
		"GOOGLE_CALENDAR_ID":           &c.Google.CalendarID,
		"ICLOUD_USERNAME":              &c.ICloud.Username,
		"ICLOUD_APP_SPECIFIC_PASSWORD": &c.ICloud.Password,
		"ICLOUD_CALENDAR_NAME":         &c.ICloud.CalendarName,
		"CALDAV_ENDPOINT":              &c.ICloud.Endpoint,
	}
	for key, dst := range strs {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("CALENDAR_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid CALENDAR_TIMEOUT %q: %w", v, err)
		}
		c.Calendar.Timeout = d
	}
	ints := map[string]*int{
		"CONFLICT_CONCURRENCY":     &c.Calendar.ConflictConcurrency,
		"DEFAULT_DURATION_MINUTES": &c.Scheduling.DefaultDurationMinutes,
	}
	for key, dst := range ints {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", key, v, err)
			}
			*dst = n
		}
	}
	return nil
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.DatabasePath) == "" {
		errs = append(errs, errors.New("database path is required"))
	}
	if c.Calendar.Timeout <= 0 {
		errs = append(errs, errors.New("calendar timeout must be positive"))
	}
	if c.Calendar.ConflictConcurrency <= 0 {
		errs = append(errs, errors.New("conflict concurrency must be positive"))
	}
	if c.Scheduling.DefaultDurationMinutes <= 0 {
		errs = append(errs, errors.New("default duration must be positive"))
	}
	switch strings.ToLower(c.Logging.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log format %q must be text or json", c.Logging.Format))
	}
	return errors.Join(errs...)
}
