// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Config is the client configuration.
type Config struct {
	// API locates the forum backend.
	API APIConfig `yaml:"api" json:"api"`

	// Session controls where the login session is persisted.
	Session SessionConfig `yaml:"session" json:"session"`

	// Cache configures the local response and draft store.
	Cache CacheConfig `yaml:"cache" json:"cache"`

	// UI holds terminal UI preferences.
	UI UIConfig `yaml:"ui" json:"ui"`

	// Log sets the default log level.
	Log LogConfig `yaml:"log" json:"log"`

	// Source is the file the configuration was read from, empty when
	// only defaults and environment variables apply.
	Source string `yaml:"-" json:"-"`
}

// APIConfig locates the backend.
type APIConfig struct {
	// URL is the HTTP base, without the /api suffix.
	URL string `yaml:"url" json:"url"`

	// WebSocketURL is the realtime base. Derived from URL when empty.
	WebSocketURL string `yaml:"websocket_url" json:"websocket_url"`

	// Timeout bounds each HTTP request.
	Timeout Duration `yaml:"timeout" json:"timeout"`
}

// SessionConfig controls session persistence.
type SessionConfig struct {
	// Path is the session file.
	Path string `yaml:"path" json:"path"`

	// AgeRecipient, when set, seals the stored cookies to this age
	// public key.
	AgeRecipient string `yaml:"age_recipient" json:"age_recipient"`

	// AgeIdentity is the age identity file that opens sealed cookies.
	AgeIdentity string `yaml:"age_identity" json:"age_identity"`
}

// CacheConfig configures the local cache database.
type CacheConfig struct {
	Enabled     bool     `yaml:"enabled" json:"enabled"`
	Path        string   `yaml:"path" json:"path"`
	TTL         Duration `yaml:"ttl" json:"ttl"`
	Compression string   `yaml:"compression" json:"compression"`
}

// UIConfig holds terminal UI preferences.
type UIConfig struct {
	Theme           string   `yaml:"theme" json:"theme"`
	PostPageSize    int      `yaml:"post_page_size" json:"post_page_size"`
	CommentPageSize int      `yaml:"comment_page_size" json:"comment_page_size"`
	MessagePageSize int      `yaml:"message_page_size" json:"message_page_size"`
	ScrollCooldown  Duration `yaml:"scroll_cooldown" json:"scroll_cooldown"`
	SearchDebounce  Duration `yaml:"search_debounce" json:"search_debounce"`
}

// LogConfig sets the default log level.
type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

// Duration is a time.Duration written as a Go duration string ("30s")
// in both YAML and JSON files.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) parse(text string) error {
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// UnmarshalYAML accepts a duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	return d.parse(node.Value)
}

// MarshalYAML writes the duration string.
func (d Duration) MarshalYAML() (any, error) { return d.String(), nil }

// UnmarshalJSON accepts a duration string.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	return d.parse(text)
}

// MarshalJSON writes the duration string.
func (d Duration) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }

// Environment variables read by Load.
const (
	EnvConfig      = "AGORA_CONFIG"
	EnvAPIURL      = "API_URL"
	EnvWSURL       = "WS_URL"
	EnvLogLevel    = "AGORA_LOG_LEVEL"
	EnvSessionFile = "AGORA_SESSION_FILE"
	EnvCacheDir    = "AGORA_CACHE_DIR"
)

// Default returns the built-in configuration. Paths keep their
// ${VAR:-default} form until Load expands them.
func Default() *Config {
	return &Config{
		API: APIConfig{
			URL:     "http://localhost:8000",
			Timeout: Duration(30 * time.Second),
		},
		Session: SessionConfig{
			Path: "${XDG_CONFIG_HOME:-${HOME}/.config}/agora/session.json",
		},
		Cache: CacheConfig{
			Enabled:     true,
			Path:        "${AGORA_CACHE_DIR:-${XDG_CACHE_HOME:-${HOME}/.cache}/agora}/cache.db",
			TTL:         Duration(7 * 24 * time.Hour),
			Compression: "zstd",
		},
		UI: UIConfig{
			Theme:           "dark",
			PostPageSize:    5,
			CommentPageSize: 10,
			MessagePageSize: 20,
			ScrollCooldown:  Duration(time.Second),
			SearchDebounce:  Duration(300 * time.Millisecond),
		},
		Log: LogConfig{Level: "warn"},
	}
}

// Options control Load.
type Options struct {
	// Path is an explicit config file (the --config flag). A missing
	// explicit file is an error.
	Path string

	// DotEnv is the .env file consulted for variables that are not
	// set in the process environment. Defaults to ".env"; a missing
	// file is ignored.
	DotEnv string
}

// Load builds the configuration: defaults, then the config file, then
// environment overrides, then variable expansion. The file is the
// explicit Path, else $AGORA_CONFIG, else
// $XDG_CONFIG_HOME/agora/config.yaml when it exists.
func Load(options Options) (*Config, error) {
	env, err := newEnvironment(options.DotEnv)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	path, required := options.Path, options.Path != ""
	if path == "" {
		if path = env.get(EnvConfig); path != "" {
			required = true
		} else {
			path = env.expand("${XDG_CONFIG_HOME:-${HOME}/.config}/agora/config.yaml")
		}
	}
	if err := cfg.loadFile(path); err != nil {
		if required || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	} else {
		cfg.Source = path
	}

	cfg.applyEnvironment(env)
	cfg.expandPaths(env)
	return cfg, nil
}

// loadFile merges a YAML or JSONC file into c. Files ending in .json
// or .jsonc may contain comments and trailing commas.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		decoder := json.NewDecoder(strings.NewReader(string(jsonc.ToJSON(data))))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(c); err != nil {
			return fmt.Errorf("config: parsing %s: %w", path, err)
		}
	default:
		decoder := yaml.NewDecoder(strings.NewReader(string(data)))
		decoder.KnownFields(true)
		if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
			return fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}
	return nil
}

func (c *Config) applyEnvironment(env environment) {
	if value := env.get(EnvAPIURL); value != "" {
		c.API.URL = value
	}
	if value := env.get(EnvWSURL); value != "" {
		c.API.WebSocketURL = value
	}
	if value := env.get(EnvLogLevel); value != "" {
		c.Log.Level = value
	}
	if value := env.get(EnvSessionFile); value != "" {
		c.Session.Path = value
	}
}

func (c *Config) expandPaths(env environment) {
	c.Session.Path = env.expand(c.Session.Path)
	c.Session.AgeIdentity = env.expand(c.Session.AgeIdentity)
	c.Cache.Path = env.expand(c.Cache.Path)
}

// Validate reports every problem at once.
func (c *Config) Validate() error {
	var errs []error

	if err := checkURL(c.API.URL, "http", "https"); err != nil {
		errs = append(errs, fmt.Errorf("api.url: %w", err))
	}
	if c.API.WebSocketURL != "" {
		if err := checkURL(c.API.WebSocketURL, "ws", "wss"); err != nil {
			errs = append(errs, fmt.Errorf("api.websocket_url: %w", err))
		}
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("api.timeout must be positive"))
	}
	if c.Session.Path == "" {
		errs = append(errs, errors.New("session.path is required"))
	}
	if (c.Session.AgeRecipient == "") != (c.Session.AgeIdentity == "") {
		errs = append(errs, errors.New("session.age_recipient and session.age_identity must be set together"))
	}
	if c.Cache.Enabled && c.Cache.Path == "" {
		errs = append(errs, errors.New("cache.path is required when the cache is enabled"))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, errors.New("cache.ttl must not be negative"))
	}
	if !slices.Contains([]string{"", "zstd", "lz4", "none"}, c.Cache.Compression) {
		errs = append(errs, fmt.Errorf("cache.compression must be zstd, lz4 or none, got %q", c.Cache.Compression))
	}
	if !slices.Contains([]string{"dark", "light"}, c.UI.Theme) {
		errs = append(errs, fmt.Errorf("ui.theme must be dark or light, got %q", c.UI.Theme))
	}
	for name, size := range map[string]int{
		"ui.post_page_size":    c.UI.PostPageSize,
		"ui.comment_page_size": c.UI.CommentPageSize,
		"ui.message_page_size": c.UI.MessagePageSize,
	} {
		if size < 1 || size > 100 {
			errs = append(errs, fmt.Errorf("%s must be between 1 and 100, got %d", name, size))
		}
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %q is not debug, info, warn or error", c.Log.Level)
	}
	return level, nil
}

func checkURL(raw string, schemes ...string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if !slices.Contains(schemes, parsed.Scheme) || parsed.Host == "" {
		return fmt.Errorf("%q must be an absolute %s URL", raw, strings.Join(schemes, " or "))
	}
	return nil
}

// environment resolves variables from the process first, then from
// the .env file.
type environment struct {
	dotenv map[string]string
}

func newEnvironment(path string) (environment, error) {
	if path == "" {
		path = ".env"
	}
	values, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return environment{}, nil
	}
	if err != nil {
		return environment{}, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return environment{dotenv: values}, nil
}

func (e environment) get(name string) string {
	if value, ok := os.LookupEnv(name); ok {
		return value
	}
	return e.dotenv[name]
}

var varPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-((?:[^{}]|\{[^{}]*\})*))?\}`)

// expand replaces ${VAR} and ${VAR:-default}. Defaults may themselves
// contain one level of ${...}; expansion repeats until nothing changes.
func (e environment) expand(s string) string {
	for range 4 {
		expanded := varPattern.ReplaceAllStringFunc(s, func(match string) string {
			parts := varPattern.FindStringSubmatch(match)
			if value := e.get(parts[1]); value != "" {
				return value
			}
			return parts[2]
		})
		if expanded == s {
			break
		}
		s = expanded
	}
	return s
}
