// Copyright 2026 The Agora Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// isolate points every variable Load reads at a temporary home so the
// developer's own configuration never leaks into a test.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("XDG_CACHE_HOME", "")
	for _, name := range []string{EnvConfig, EnvAPIURL, EnvWSURL, EnvLogLevel, EnvSessionFile, EnvCacheDir} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
	return home
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestDefaultsWithoutFile(t *testing.T) {
	home := isolate(t)
	cfg, err := Load(Options{DotEnv: filepath.Join(home, "missing.env")})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Source != "" {
		t.Errorf("Source = %q, want none", cfg.Source)
	}
	if cfg.API.URL != "http://localhost:8000" || cfg.API.Timeout.Std() != 30*time.Second {
		t.Errorf("api = %+v", cfg.API)
	}
	if want := filepath.Join(home, ".config/agora/session.json"); cfg.Session.Path != want {
		t.Errorf("session path = %q, want %q", cfg.Session.Path, want)
	}
	if want := filepath.Join(home, ".cache/agora/cache.db"); cfg.Cache.Path != want {
		t.Errorf("cache path = %q, want %q", cfg.Cache.Path, want)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults invalid: %v", err)
	}
}

func TestYAMLFile(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, ".config/agora/config.yaml")
	writeFile(t, path, `
api:
  url: https://forum.example.com
  timeout: 5s
cache:
  enabled: false
  compression: lz4
ui:
  theme: light
  post_page_size: 8
log:
  level: debug
`)
	cfg, err := Load(Options{DotEnv: filepath.Join(home, "none")})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Source != path {
		t.Errorf("Source = %q", cfg.Source)
	}
	if cfg.API.URL != "https://forum.example.com" || cfg.API.Timeout.Std() != 5*time.Second {
		t.Errorf("api = %+v", cfg.API)
	}
	if cfg.Cache.Enabled || cfg.Cache.Compression != "lz4" {
		t.Errorf("cache = %+v", cfg.Cache)
	}
	if cfg.UI.PostPageSize != 8 || cfg.UI.CommentPageSize != 10 {
		t.Errorf("ui = %+v", cfg.UI)
	}
	if level, err := cfg.LogLevel(); err != nil || level != slog.LevelDebug {
		t.Errorf("LogLevel = %v, %v", level, err)
	}
}

func TestJSONCFile(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "agora.jsonc")
	writeFile(t, path, `{
  // local backend
  "api": {"url": "http://127.0.0.1:9000", "timeout": "2s",},
  "ui": {"search_debounce": "150ms"},
}`)
	cfg, err := Load(Options{Path: path, DotEnv: filepath.Join(home, "none")})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.URL != "http://127.0.0.1:9000" || cfg.UI.SearchDebounce.Std() != 150*time.Millisecond {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestUnknownKeysRejected(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "agora.yaml")
	writeFile(t, path, "api:\n  uri: typo\n")
	if _, err := Load(Options{Path: path, DotEnv: filepath.Join(home, "none")}); err == nil {
		t.Error("unknown key accepted")
	}
}

func TestExplicitMissingFile(t *testing.T) {
	home := isolate(t)
	_, err := Load(Options{Path: filepath.Join(home, "nope.yaml"), DotEnv: filepath.Join(home, "none")})
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Load error = %v, want not-exist", err)
	}

	t.Setenv(EnvConfig, filepath.Join(home, "also-missing.yaml"))
	if _, err := Load(Options{DotEnv: filepath.Join(home, "none")}); err == nil {
		t.Error("missing AGORA_CONFIG file ignored")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "agora.yaml")
	writeFile(t, path, "api:\n  url: https://from-file.example\n")
	dotenv := filepath.Join(home, ".env")
	writeFile(t, dotenv, "WS_URL=wss://from-dotenv.example\nAPI_URL=https://dotenv-loses.example\n")

	t.Setenv(EnvAPIURL, "https://from-env.example")
	t.Setenv(EnvSessionFile, "${HOME}/custom-session.json")
	cfg, err := Load(Options{Path: path, DotEnv: dotenv})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.API.URL != "https://from-env.example" {
		t.Errorf("api.url = %q, want process env to win", cfg.API.URL)
	}
	if cfg.API.WebSocketURL != "wss://from-dotenv.example" {
		t.Errorf("websocket url = %q, want .env value", cfg.API.WebSocketURL)
	}
	if cfg.Session.Path != filepath.Join(home, "custom-session.json") {
		t.Errorf("session path = %q", cfg.Session.Path)
	}
}

func TestExpandNestedDefaults(t *testing.T) {
	isolate(t)
	env := environment{dotenv: map[string]string{"HOME": "/h"}}
	os.Unsetenv("HOME")
	tests := map[string]string{
		"${HOME}/x":                        "/h/x",
		"${UNSET:-fallback}":               "fallback",
		"${UNSET:-${HOME}/.cache}/agora":   "/h/.cache/agora",
		"${A:-${B:-${HOME}/deep}/mid}/top": "/h/deep/mid/top",
		"no variables":                     "no variables",
	}
	for input, want := range tests {
		if got := env.expand(input); got != want {
			t.Errorf("expand(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestValidateAggregates(t *testing.T) {
	cfg := Default()
	cfg.API.URL = "ftp://nope"
	cfg.API.WebSocketURL = "http://not-a-socket"
	cfg.Session.AgeRecipient = "age1xyz"
	cfg.Cache.Compression = "gzip"
	cfg.UI.Theme = "neon"
	cfg.UI.PostPageSize = 0
	cfg.Log.Level = "loud"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate accepted a broken config")
	}
	for _, fragment := range []string{"api.url", "api.websocket_url", "age_identity", "cache.compression", "ui.theme", "ui.post_page_size", "log.level"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Errorf("error does not mention %s:\n%v", fragment, err)
		}
	}
}
