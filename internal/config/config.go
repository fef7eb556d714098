// Package config loads application configuration from defaults, an optional
// YAML file, an optional .env file and environment variables.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreNATS   = "nats"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Default message templates. The application layer owns the canonical copy;
// these are repeated here so config has no dependency on it.
const (
	defaultWarningMessage  = "This PR has been inactive for {{days}} days. It will be automatically closed in 7 days unless activity is detected."
	defaultClosingMessage  = "This PR has been closed due to {{days}} days of inactivity."
	defaultReprieveMessage = "This PR has been granted a temporary stay of execution."
)

// cronParser matches the scheduler: five fields plus descriptors.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Config holds the validated application configuration.
type Config struct {
	GitHubToken string // May be empty; the stored credential is used instead.

	Repositories           []string // Empty means every accessible repository.
	WarningThresholdDays   int
	ExecutionThresholdDays int
	ImmunityLabels         []string

	WarningMessage  string
	ClosingMessage  string
	ReprieveMessage string

	Store      string
	DBPath     string
	NATSURL    string
	NATSBucket string

	WarnSchedule    string
	ExecuteSchedule string

	ListenAddr string
	SecretKey  []byte // 32 bytes, or nil when REAPER_SECRET_KEY is unset.

	LogLevel  slog.Level
	LogFormat string
}

// HasGitHubToken reports whether a token was configured directly.
func (c *Config) HasGitHubToken() bool {
	return c.GitHubToken != ""
}

// fileConfig mirrors the YAML file. Pointers distinguish "absent" from an
// explicit zero value or empty list.
type fileConfig struct {
	GitHubToken            *string   `yaml:"github_token"`
	Repositories           *[]string `yaml:"repositories"`
	WarningThresholdDays   *int      `yaml:"warning_threshold_days"`
	ExecutionThresholdDays *int      `yaml:"execution_threshold_days"`
	ImmunityLabels         *[]string `yaml:"immunity_labels"`
	Messages               struct {
		Warning  *string `yaml:"warning"`
		Closing  *string `yaml:"closing"`
		Reprieve *string `yaml:"reprieve"`
	} `yaml:"messages"`
	Store  *string `yaml:"store"`
	DBPath *string `yaml:"db_path"`
	NATS   struct {
		URL    *string `yaml:"url"`
		Bucket *string `yaml:"bucket"`
	} `yaml:"nats"`
	Schedules struct {
		Warn    *string `yaml:"warn"`
		Execute *string `yaml:"execute"`
	} `yaml:"schedules"`
	ListenAddr *string `yaml:"listen_addr"`
	SecretKey  *string `yaml:"secret_key"`
	Log        struct {
		Level  *string `yaml:"level"`
		Format *string `yaml:"format"`
	} `yaml:"log"`
}

// Load builds a Config. Sources, lowest precedence first: built-in defaults,
// the YAML file named by REAPER_CONFIG_FILE, the .env file named by
// REAPER_ENV_FILE (default ".env"; it only fills variables that are unset),
// and the process environment.
func Load() (*Config, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	cfg := defaults()

	if path := os.Getenv("REAPER_CONFIG_FILE"); path != "" {
		if err := cfg.applyFile(path); err != nil {
			return nil, err
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Repositories:           []string{},
		WarningThresholdDays:   14,
		ExecutionThresholdDays: 7,
		ImmunityLabels:         []string{"do-not-close", "work-in-progress"},
		WarningMessage:         defaultWarningMessage,
		ClosingMessage:         defaultClosingMessage,
		ReprieveMessage:        defaultReprieveMessage,
		Store:                  StoreSQLite,
		DBPath:                 "prreaper.db",
		NATSURL:                "nats://localhost:4222",
		NATSBucket:             "prreaper-records",
		WarnSchedule:           "0 4 * * 1",
		ExecuteSchedule:        "30 4 * * 1",
		ListenAddr:             "127.0.0.1:8080",
		LogLevel:               slog.LevelInfo,
		LogFormat:              LogFormatText,
	}
}

// loadEnvFile reads the .env file into unset variables. A missing default
// file is ignored; a missing file named explicitly is an error.
func loadEnvFile() error {
	path, explicit := os.LookupEnv("REAPER_ENV_FILE")
	if !explicit {
		path = ".env"
	}
	if path == "" {
		return nil
	}

	err := godotenv.Load(path)
	if err == nil || (!explicit && errors.Is(err, fs.ErrNotExist)) {
		return nil
	}
	return fmt.Errorf("REAPER_ENV_FILE %q: %w", path, err)
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("REAPER_CONFIG_FILE: %w", err)
	}

	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("REAPER_CONFIG_FILE %q: %w", path, err)
	}

	setString(&c.GitHubToken, f.GitHubToken)
	if f.Repositories != nil {
		c.Repositories = trimList(*f.Repositories)
	}
	setInt(&c.WarningThresholdDays, f.WarningThresholdDays)
	setInt(&c.ExecutionThresholdDays, f.ExecutionThresholdDays)
	if f.ImmunityLabels != nil {
		c.ImmunityLabels = trimList(*f.ImmunityLabels)
	}
	setString(&c.WarningMessage, f.Messages.Warning)
	setString(&c.ClosingMessage, f.Messages.Closing)
	setString(&c.ReprieveMessage, f.Messages.Reprieve)
	setString(&c.Store, f.Store)
	setString(&c.DBPath, f.DBPath)
	setString(&c.NATSURL, f.NATS.URL)
	setString(&c.NATSBucket, f.NATS.Bucket)
	setString(&c.WarnSchedule, f.Schedules.Warn)
	setString(&c.ExecuteSchedule, f.Schedules.Execute)
	setString(&c.ListenAddr, f.ListenAddr)
	setString(&c.LogFormat, f.Log.Format)

	if f.SecretKey != nil {
		if c.SecretKey, err = parseSecretKey("secret_key", *f.SecretKey); err != nil {
			return err
		}
	}
	if f.Log.Level != nil {
		if err := c.LogLevel.UnmarshalText([]byte(*f.Log.Level)); err != nil {
			return fmt.Errorf("log.level has invalid value %q: %w", *f.Log.Level, err)
		}
	}

	return nil
}

func (c *Config) applyEnv() error {
	envString(&c.GitHubToken, "REAPER_GITHUB_TOKEN")
	if v, ok := os.LookupEnv("REAPER_REPOSITORIES"); ok {
		c.Repositories = splitList(v)
	}
	if err := envInt(&c.WarningThresholdDays, "REAPER_WARNING_THRESHOLD_DAYS"); err != nil {
		return err
	}
	if err := envInt(&c.ExecutionThresholdDays, "REAPER_EXECUTION_THRESHOLD_DAYS"); err != nil {
		return err
	}
	if v, ok := os.LookupEnv("REAPER_IMMUNITY_LABELS"); ok {
		c.ImmunityLabels = splitList(v)
	}
	envString(&c.WarningMessage, "REAPER_WARNING_MESSAGE")
	envString(&c.ClosingMessage, "REAPER_CLOSING_MESSAGE")
	envString(&c.ReprieveMessage, "REAPER_REPRIEVE_MESSAGE")
	envString(&c.Store, "REAPER_STORE")
	envString(&c.DBPath, "REAPER_DB_PATH")
	envString(&c.NATSURL, "REAPER_NATS_URL")
	envString(&c.NATSBucket, "REAPER_NATS_BUCKET")
	envString(&c.WarnSchedule, "REAPER_WARN_SCHEDULE")
	envString(&c.ExecuteSchedule, "REAPER_EXECUTE_SCHEDULE")
	envString(&c.ListenAddr, "REAPER_LISTEN_ADDR")
	envString(&c.LogFormat, "REAPER_LOG_FORMAT")

	if v, ok := os.LookupEnv("REAPER_SECRET_KEY"); ok && v != "" {
		key, err := parseSecretKey("REAPER_SECRET_KEY", v)
		if err != nil {
			return err
		}
		c.SecretKey = key
	}

	if v, ok := os.LookupEnv("REAPER_LOG_LEVEL"); ok && v != "" {
		if err := c.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return fmt.Errorf("REAPER_LOG_LEVEL has invalid value %q: %w", v, err)
		}
	}

	return nil
}

func (c *Config) validate() error {
	if c.WarningThresholdDays < 1 {
		return fmt.Errorf("warning threshold must be at least 1 day, got %d", c.WarningThresholdDays)
	}
	if c.ExecutionThresholdDays < 0 {
		return fmt.Errorf("execution threshold must not be negative, got %d", c.ExecutionThresholdDays)
	}

	for _, repo := range c.Repositories {
		owner, name, ok := strings.Cut(repo, "/")
		if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
			return fmt.Errorf("repository %q: expected owner/repo", repo)
		}
	}

	switch c.Store {
	case StoreSQLite, StoreNATS:
	default:
		return fmt.Errorf("unknown store %q: expected %q or %q", c.Store, StoreSQLite, StoreNATS)
	}

	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("unknown log format %q: expected %q or %q", c.LogFormat, LogFormatText, LogFormatJSON)
	}

	if _, err := cronParser.Parse(c.WarnSchedule); err != nil {
		return fmt.Errorf("warn schedule %q: %w", c.WarnSchedule, err)
	}
	if _, err := cronParser.Parse(c.ExecuteSchedule); err != nil {
		return fmt.Errorf("execute schedule %q: %w", c.ExecuteSchedule, err)
	}

	return nil
}

// parseSecretKey decodes a 64-character hex string into an AES-256 key.
func parseSecretKey(name, v string) ([]byte, error) {
	key, err := hex.DecodeString(v)
	if err != nil {
		return nil, fmt.Errorf("%s must be hex-encoded: %w", name, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("%s must decode to 32 bytes, got %d", name, len(key))
	}
	return key, nil
}

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func envString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func envInt(dst *int, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return fmt.Errorf("%s has invalid integer %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

// splitList parses a comma-separated list, dropping blanks.
func splitList(v string) []string {
	return trimList(strings.Split(v, ","))
}

func trimList(items []string) []string {
	out := []string{}
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
