// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// isolate points the config directory at a temp dir and clears overrides.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("COUNSELLOR_HOME", dir)
	for _, key := range []string{
		"COUNSELLOR_API_URL", "COUNSELLOR_TOKEN", "COUNSELLOR_TOKEN_FILE",
		"COUNSELLOR_USER_ID", "COUNSELLOR_DB", "COUNSELLOR_LOG_LEVEL", "COUNSELLOR_VOICE",
	} {
		t.Setenv(key, "")
	}
	return dir
}

// TestConfig_ConcurrentAccess tests that Global(), SetGlobal(), and
// ReloadGlobal() can be called concurrently.
// Run with: go test -race -v ./internal/config/
func TestConfig_ConcurrentAccess(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(3)

		go func() {
			defer wg.Done()
			SetGlobal(Default())
		}()

		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()

		go func() {
			defer wg.Done()
			_ = ReloadGlobal()
		}()
	}
	wg.Wait()
}

func TestConfig_SetGlobalOverwrites(t *testing.T) {
	isolate(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	_ = Global()
	cfg := Default()
	cfg.User.ID = "someone-else"
	SetGlobal(cfg)

	if got := Global().User.ID; got != "someone-else" {
		t.Errorf("Global().User.ID = %q, want someone-else", got)
	}
}

func TestConfig_Default(t *testing.T) {
	dir := isolate(t)
	cfg := Default()

	if cfg.API.BaseURL != "http://localhost:8000" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.API.ProbeTimeout() != 10*time.Second {
		t.Errorf("ProbeTimeout = %v, want 10s", cfg.API.ProbeTimeout())
	}
	if cfg.API.ProbeInterval() != 5*time.Second {
		t.Errorf("ProbeInterval = %v, want 5s", cfg.API.ProbeInterval())
	}
	if cfg.API.SendTimeout() != 120*time.Second {
		t.Errorf("SendTimeout = %v, want 120s", cfg.API.SendTimeout())
	}
	if cfg.UI.RevealTick() != 15*time.Millisecond {
		t.Errorf("RevealTick = %v, want 15ms", cfg.UI.RevealTick())
	}
	if cfg.Storage.Path != filepath.Join(dir, "counsellor.db") {
		t.Errorf("Storage.Path = %q", cfg.Storage.Path)
	}
	if cfg.User.ID == "" {
		t.Error("User.ID should default to the login name")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestConfig_LoadMissingFileUsesDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.API.SendTimeoutSecs != 120 {
		t.Errorf("SendTimeoutSecs = %d, want 120", cfg.API.SendTimeoutSecs)
	}
}

func TestConfig_SaveAndLoad(t *testing.T) {
	dir := isolate(t)

	cfg := Default()
	cfg.API.BaseURL = "https://counsellor.example.com/"
	cfg.User.ID = "student-42"
	cfg.UI.Plain = true
	cfg.Voice.Enabled = true
	if err := Save(cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	path := filepath.Join(dir, "config.toml")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("config permissions = %o, want 600", perm)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.API.BaseURL != "https://counsellor.example.com" {
		t.Errorf("BaseURL = %q, trailing slash should be trimmed", loaded.API.BaseURL)
	}
	if loaded.User.ID != "student-42" {
		t.Errorf("User.ID = %q", loaded.User.ID)
	}
	if !loaded.UI.Plain || !loaded.Voice.Enabled {
		t.Error("booleans were not round-tripped")
	}
}

func TestConfig_PartialFileFillsDefaults(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.toml")
	data := "[api]\nbase_url = \"http://10.0.0.5:9000\"\n\n[ui]\nreveal_tick_ms = 5\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath() error = %v", err)
	}
	if cfg.API.BaseURL != "http://10.0.0.5:9000" {
		t.Errorf("BaseURL = %q", cfg.API.BaseURL)
	}
	if cfg.UI.RevealTickMs != 5 {
		t.Errorf("RevealTickMs = %d, want 5", cfg.UI.RevealTickMs)
	}
	if cfg.API.ProbeIntervalSecs != 5 || cfg.UI.MarkdownWidth != 80 {
		t.Error("missing values should take defaults")
	}

	info, _ := os.Stat(path)
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("permissions should be tightened to 600, got %o", perm)
	}
}

func TestConfig_EnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("COUNSELLOR_API_URL", "https://api.example.com")
	t.Setenv("COUNSELLOR_TOKEN", "secret")
	t.Setenv("COUNSELLOR_USER_ID", "env-user")
	t.Setenv("COUNSELLOR_DB", "/tmp/env.db")
	t.Setenv("COUNSELLOR_LOG_LEVEL", "debug")
	t.Setenv("COUNSELLOR_VOICE", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"base_url", cfg.API.BaseURL, "https://api.example.com"},
		{"token", cfg.API.Token, "secret"},
		{"user", cfg.User.ID, "env-user"},
		{"db", cfg.Storage.Path, "/tmp/env.db"},
		{"level", cfg.Log.Level, "debug"},
		{"voice", cfg.Voice.Enabled, true},
	}
	for _, tc := range tests {
		if tc.got != tc.want {
			t.Errorf("%s = %v, want %v", tc.name, tc.got, tc.want)
		}
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		field   string
		wantErr bool
	}{
		{"valid", func(c *Config) {}, "", false},
		{"bad scheme", func(c *Config) { c.API.BaseURL = "ftp://host" }, "api.base_url", true},
		{"no host", func(c *Config) { c.API.BaseURL = "http://" }, "api.base_url", true},
		{"empty url", func(c *Config) { c.API.BaseURL = "" }, "api.base_url", true},
		{"probe timeout", func(c *Config) { c.API.ProbeTimeoutSecs = 0 }, "api.probe_timeout_secs", true},
		{"send timeout", func(c *Config) { c.API.SendTimeoutSecs = 601 }, "api.send_timeout_secs", true},
		{"reveal tick", func(c *Config) { c.UI.RevealTickMs = -1 }, "ui.reveal_tick_ms", true},
		{"width", func(c *Config) { c.UI.MarkdownWidth = 5 }, "ui.markdown_width", true},
		{"user", func(c *Config) { c.User.ID = "  " }, "user.id", true},
		{"level", func(c *Config) { c.Log.Level = "loud" }, "log.level", true},
		{"voice without recorder", func(c *Config) {
			c.Voice.Enabled = true
			c.Voice.RecordCommand = nil
		}, "voice.record_command", true},
		{"voice disabled ignores commands", func(c *Config) { c.Voice.PlayCommand = nil }, "", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tc.wantErr)
			}
			if !tc.wantErr {
				return
			}
			var verrs ValidateErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("error should be ValidateErrors, got %T", err)
			}
			if !strings.Contains(err.Error(), tc.field) {
				t.Errorf("error %q should mention %s", err, tc.field)
			}
		})
	}
}

func TestConfig_GetSet(t *testing.T) {
	cfg := Default()

	if err := cfg.Set("api.base_url", "https://example.org"); err != nil {
		t.Fatalf("Set(api.base_url) error = %v", err)
	}
	if err := cfg.Set("api.send_timeout_secs", "30"); err != nil {
		t.Fatalf("Set(api.send_timeout_secs) error = %v", err)
	}
	if err := cfg.Set("ui.plain", "yes"); err != nil {
		t.Fatalf("Set(ui.plain) error = %v", err)
	}
	if err := cfg.Set("voice.play_command", "mpv --no-video"); err != nil {
		t.Fatalf("Set(voice.play_command) error = %v", err)
	}

	v, err := cfg.Get("api.base_url")
	if err != nil || v != "https://example.org" {
		t.Errorf("Get(api.base_url) = %v, %v", v, err)
	}
	if cfg.API.SendTimeoutSecs != 30 {
		t.Errorf("SendTimeoutSecs = %d, want 30", cfg.API.SendTimeoutSecs)
	}
	if !cfg.UI.Plain {
		t.Error("ui.plain should be true")
	}
	if got := strings.Join(cfg.Voice.PlayCommand, " "); got != "mpv --no-video" {
		t.Errorf("PlayCommand = %q", got)
	}

	if _, err := cfg.Get("api.nope"); err == nil {
		t.Error("Get of unknown key should fail")
	}
	if err := cfg.Set("api.base_url.extra", "x"); err == nil {
		t.Error("Set through a non-struct should fail")
	}
	if err := cfg.Set("api.send_timeout_secs", "soon"); err == nil {
		t.Error("Set with a bad integer should fail")
	}

	for _, key := range GetAllKeys() {
		if _, err := cfg.Get(key); err != nil {
			t.Errorf("GetAllKeys lists %q but Get fails: %v", key, err)
		}
	}
}

func TestConfig_CloneAndString(t *testing.T) {
	cfg := Default()
	cfg.API.Token = "super-secret"

	clone := cfg.Clone()
	clone.Voice.RecordCommand[0] = "changed"
	if cfg.Voice.RecordCommand[0] == "changed" {
		t.Error("Clone should deep copy command slices")
	}

	s := cfg.String()
	if strings.Contains(s, "super-secret") {
		t.Error("String() must redact the token")
	}
	if !strings.Contains(s, "[REDACTED]") {
		t.Error("String() should mark the redacted token")
	}
	if cfg.API.Token != "super-secret" {
		t.Error("String() must not modify the original")
	}
}
