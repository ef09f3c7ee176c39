package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create test config file: %v", err)
	}
	return configPath
}

func TestLoadConfig_Success(t *testing.T) {
	configPath := writeConfig(t, `port: 9090
database:
  type: sqlite
  connectionString: ":memory:"
uploadDir: /tmp/uploads
recognition:
  blurThreshold: 120
  matchThreshold: 40
  borderlineThreshold: 20
  imagesPerItem: 5
extractor:
  name: orb
  maxFeatures: 800
  fastThreshold: 15
`)

	config, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if config.Port != 9090 {
		t.Errorf("Expected port to be 9090, got %d", config.Port)
	}
	if config.Database.ConnectionString != ":memory:" {
		t.Errorf("Expected connectionString ':memory:', got %q", config.Database.ConnectionString)
	}
	if config.Recognition.BlurThreshold != 120 || config.Recognition.ImagesPerItem != 5 {
		t.Errorf("recognition section not applied: %+v", config.Recognition)
	}
	if th := config.Thresholds(); th.Match != 40 || th.Borderline != 20 {
		t.Errorf("unexpected thresholds %+v", th)
	}
	// untouched keys keep their defaults
	if config.Recognition.MaxHammingDistance != 55 || config.Recognition.Matcher != "crosscheck" {
		t.Errorf("defaults lost: %+v", config.Recognition)
	}
	if config.Auth.MaxLoginTries != 5 || config.LockoutDuration() != 15*time.Minute {
		t.Errorf("auth defaults lost: %+v", config.Auth)
	}
	if config.Extractor.Name != "orb" || config.Extractor.Params["maxFeatures"] != 800 {
		t.Errorf("extractor params not inlined: %+v", config.Extractor)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, "port: 8081\n"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if config.MaxUploadBytes() != 10*1024*1024 {
		t.Errorf("MaxUploadBytes = %d", config.MaxUploadBytes())
	}
	if config.SessionLifetime() != 7*24*time.Hour {
		t.Errorf("SessionLifetime = %v", config.SessionLifetime())
	}
	if config.Recognition.BlurThreshold != 80 {
		t.Errorf("BlurThreshold = %v", config.Recognition.BlurThreshold)
	}
	if config.Session.Type != "memory" {
		t.Errorf("Session.Type = %q", config.Session.Type)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	config, err := LoadConfig("/path/that/does/not/exist/config.yaml")
	if err == nil {
		t.Fatal("Expected error for non-existent file, got nil")
	}
	if config != nil {
		t.Error("Expected config to be nil when file doesn't exist")
	}
}

func TestLoadConfigOrDefaults_MissingFile(t *testing.T) {
	t.Setenv("PORT", "7070")
	config, err := LoadConfigOrDefaults(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfigOrDefaults failed: %v", err)
	}
	if config.Port != 7070 {
		t.Errorf("Expected env port 7070, got %d", config.Port)
	}
}

func TestLoadConfigOrDefaults_InvalidFileStillFails(t *testing.T) {
	if _, err := LoadConfigOrDefaults(writeConfig(t, "port: [")); err == nil {
		t.Fatal("Expected parse error to propagate")
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("ALLOWED_USERNAME", "alice")
	t.Setenv("ALLOWED_PASSWORD", "s3cret")
	t.Setenv("SECRET_KEY", "key")
	t.Setenv("MAX_LOGIN_TRIES", "3")
	t.Setenv("LOCKOUT_MINUTES", "30")
	t.Setenv("UPLOAD_FOLDER", "/data/uploads")
	t.Setenv("DB_PATH", "/data/items.db")
	t.Setenv("MAX_CONTENT_LENGTH_MB", "25")
	t.Setenv("REDIS_ADDR", "redis:6379")

	config, err := LoadConfig(writeConfig(t, "port: 8080\nauth:\n  username: fromfile\n"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if config.Auth.Username != "alice" || config.Auth.Password != "s3cret" || config.Auth.SecretKey != "key" {
		t.Errorf("auth overrides not applied: %+v", config.Auth)
	}
	if config.Auth.MaxLoginTries != 3 || config.Auth.LockoutMinutes != 30 {
		t.Errorf("limit overrides not applied: %+v", config.Auth)
	}
	if config.UploadDir != "/data/uploads" || config.Database.ConnectionString != "/data/items.db" {
		t.Errorf("path overrides not applied: %q %q", config.UploadDir, config.Database.ConnectionString)
	}
	if config.MaxUploadSizeMB != 25 {
		t.Errorf("MaxUploadSizeMB = %d", config.MaxUploadSizeMB)
	}
	if config.Session.Type != "redis" || config.Session.Address != "redis:6379" {
		t.Errorf("REDIS_ADDR must select the redis store: %+v", config.Session)
	}
}

func TestLoadConfig_BadEnvInteger(t *testing.T) {
	t.Setenv("MAX_LOGIN_TRIES", "five")
	_, err := LoadConfig(writeConfig(t, "port: 8080\n"))
	if err == nil || !strings.Contains(err.Error(), "MAX_LOGIN_TRIES") {
		t.Fatalf("expected MAX_LOGIN_TRIES error, got %v", err)
	}
}

func TestServiceConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *ServiceConfig)
		wantErr string
	}{
		{"defaults", func(c *ServiceConfig) {}, ""},
		{"borderline above match", func(c *ServiceConfig) { c.Recognition.BorderlineThreshold = 31 }, "borderline"},
		{"zero match", func(c *ServiceConfig) { c.Recognition.MatchThreshold = 0 }, "positive"},
		{"zero blur", func(c *ServiceConfig) { c.Recognition.BlurThreshold = 0 }, "blurThreshold"},
		{"zero images per item", func(c *ServiceConfig) { c.Recognition.ImagesPerItem = 0 }, "imagesPerItem"},
		{"negative frame size", func(c *ServiceConfig) { c.Recognition.MaxFrameDimension = -1 }, "maxFrameDimension"},
		{"zero frame pixels", func(c *ServiceConfig) { c.Recognition.MaxFramePixels = 0 }, "maxFramePixels"},
		{"unknown extractor", func(c *ServiceConfig) { c.Extractor.Name = "sift" }, "unknown extractor"},
		{"unknown matcher", func(c *ServiceConfig) { c.Recognition.Matcher = "flann" }, "unknown matcher"},
		{"unknown session store", func(c *ServiceConfig) { c.Session.Type = "memcached" }, "session.type"},
		{"redis without address", func(c *ServiceConfig) { c.Session.Type = "redis" }, "session.address"},
		{"no upload dir", func(c *ServiceConfig) { c.UploadDir = "" }, "uploadDir"},
		{"zero login tries", func(c *ServiceConfig) { c.Auth.MaxLoginTries = 0 }, "maxLoginTries"},
		{"port out of range", func(c *ServiceConfig) { c.Port = 70000 }, "port"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}
