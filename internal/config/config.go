package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"pastelcal/internal/holiday"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverDisk     = "disk"
	DriverPostgres = "postgres"
)

// StorageConfig selects where events are persisted.
type StorageConfig struct {
	// Driver is one of "memory", "disk" (default) or "postgres".
	Driver string `yaml:"driver" json:"driver"`
	// DiskPath is the base directory of the disk store.
	DiskPath string `yaml:"disk_path" json:"disk_path"`
	// DSN is the PostgreSQL connection string for the postgres driver.
	DSN string `yaml:"dsn,omitempty" json:"-"`
}

// UserConfig is an account defined in the config file. PasswordHash is a
// bcrypt hash (see `pastelcal user hash`).
type UserConfig struct {
	Username     string `yaml:"username" json:"username"`
	PasswordHash string `yaml:"password_hash" json:"-"`
	Name         string `yaml:"name" json:"name"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" json:"-"`
	// TokenTTL is a Go duration string such as "24h".
	TokenTTL string       `yaml:"token_ttl" json:"token_ttl"`
	Users    []UserConfig `yaml:"users" json:"users"`
}

type HolidayConfig struct {
	// Refresh is a five-field cron schedule for re-reading holiday sources.
	Refresh  string         `yaml:"refresh" json:"refresh"`
	CacheDir string         `yaml:"cache_dir" json:"cache_dir"`
	ICS      []holiday.Feed `yaml:"ics" json:"ics"`
	// DataGoKrKey enables the data.go.kr special day API when set.
	DataGoKrKey string `yaml:"data_go_kr_key,omitempty" json:"-"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone used to decide "today" and holiday days.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is "sunday" (default) or "monday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	// LogLevel is DEBUG, INFO or ERROR.
	LogLevel string `yaml:"log_level" json:"log_level"`

	// DefaultTitle replaces blank event titles.
	DefaultTitle string `yaml:"default_title" json:"default_title"`

	// MaxRangeDays is the longest multi-day event that can be created.
	MaxRangeDays int `yaml:"max_range_days" json:"max_range_days"`

	Storage  StorageConfig `yaml:"storage" json:"storage"`
	Auth     AuthConfig    `yaml:"auth" json:"auth"`
	Holidays HolidayConfig `yaml:"holidays" json:"holidays"`
}

const (
	defaultListen   = "127.0.0.1:8080"
	defaultTimezone = "Asia/Seoul"
	defaultRefresh  = "0 3 * * *"
	defaultTokenTTL = "24h"

	defaultMaxRangeDays = 366
)

// DefaultConfig returns an in-memory default configuration with a freshly
// generated token secret.
func DefaultConfig() *Config {
	return &Config{
		Listen:       defaultListen,
		Timezone:     defaultTimezone,
		WeekStart:    "sunday",
		LogLevel:     "INFO",
		DefaultTitle: "Untitled",
		MaxRangeDays: defaultMaxRangeDays,
		Storage: StorageConfig{
			Driver:   DriverDisk,
			DiskPath: "./var/events",
		},
		Auth: AuthConfig{
			JWTSecret: randomSecret(),
			TokenTTL:  defaultTokenTTL,
			Users:     []UserConfig{},
		},
		Holidays: HolidayConfig{
			Refresh:  defaultRefresh,
			CacheDir: "./var/holiday-cache",
			ICS:      []holiday.Feed{},
		},
	}
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return ""
	}
	return hex.EncodeToString(b)
}

// Normalize fills in missing/zero values with defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	switch strings.ToLower(c.WeekStart) {
	case "monday":
		c.WeekStart = "monday"
	default:
		c.WeekStart = "sunday"
	}
	if c.LogLevel == "" {
		c.LogLevel = "INFO"
	}
	if strings.TrimSpace(c.DefaultTitle) == "" {
		c.DefaultTitle = "Untitled"
	}
	if c.MaxRangeDays <= 0 {
		c.MaxRangeDays = defaultMaxRangeDays
	}

	switch c.Storage.Driver {
	case DriverMemory, DriverDisk, DriverPostgres:
	default:
		c.Storage.Driver = DriverDisk
	}
	if c.Storage.DiskPath == "" {
		c.Storage.DiskPath = "./var/events"
	}

	if _, err := time.ParseDuration(c.Auth.TokenTTL); err != nil {
		c.Auth.TokenTTL = defaultTokenTTL
	}
	if c.Auth.Users == nil {
		c.Auth.Users = []UserConfig{}
	}

	if c.Holidays.Refresh == "" {
		c.Holidays.Refresh = defaultRefresh
	}
	if c.Holidays.CacheDir == "" {
		c.Holidays.CacheDir = "./var/holiday-cache"
	}
	if c.Holidays.ICS == nil {
		c.Holidays.ICS = []holiday.Feed{}
	}
}

// ApplyEnv overrides fields from PASTELCAL_* variables. getenv is usually
// os.Getenv; .env files are loaded into the environment beforehand.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv("PASTELCAL_LISTEN"); v != "" {
		c.Listen = v
	}
	if v := getenv("PASTELCAL_DSN"); v != "" {
		c.Storage.DSN = v
		c.Storage.Driver = DriverPostgres
	}
	if v := getenv("PASTELCAL_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	if v := getenv("PASTELCAL_HOLIDAY_API_KEY"); v != "" {
		c.Holidays.DataGoKrKey = v
	}
	if v := getenv("PASTELCAL_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// Location resolves Timezone, falling back to time.Local.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// TokenTTL is Auth.TokenTTL as a duration.
func (c *Config) TokenTTL() time.Duration {
	d, err := time.ParseDuration(c.Auth.TokenTTL)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (parent directories created as needed) and returned.
//   - Otherwise the YAML is read and normalized.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically via a temp file + rename and leaves
// the file with 0600 permissions.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".pastelcal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
