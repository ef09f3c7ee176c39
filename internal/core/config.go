package core

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/jo-hoe/itemlens/internal/backend/blur"
	"github.com/jo-hoe/itemlens/internal/backend/features"
	"github.com/jo-hoe/itemlens/internal/backend/frame"
	"github.com/jo-hoe/itemlens/internal/backend/matcher"
	"github.com/jo-hoe/itemlens/internal/backend/recognition"
	"gopkg.in/yaml.v3"
)

// ExtractorConfig selects a feature backend and carries its parameters inline
type ExtractorConfig struct {
	Name   string         `yaml:"name"`
	Params map[string]any `yaml:",inline"`
}

type Database struct {
	Type             string `yaml:"type"`
	ConnectionString string `yaml:"connectionString"`
}

type AuthConfig struct {
	Username             string `yaml:"username"`
	Password             string `yaml:"password"`
	MaxLoginTries        int    `yaml:"maxLoginTries"`
	LockoutMinutes       int    `yaml:"lockoutMinutes"`
	SessionLifetimeHours int    `yaml:"sessionLifetimeHours"`
	SecretKey            string `yaml:"secretKey"`
	SecureCookie         bool   `yaml:"secureCookie"`
}

type SessionConfig struct {
	Type      string `yaml:"type"`
	Address   string `yaml:"address"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	KeyPrefix string `yaml:"keyPrefix"`
}

type RecognitionConfig struct {
	BlurThreshold       float64 `yaml:"blurThreshold"`
	MatchThreshold      int     `yaml:"matchThreshold"`
	BorderlineThreshold int     `yaml:"borderlineThreshold"`
	MaxHammingDistance  int     `yaml:"maxHammingDistance"`
	ImagesPerItem       int     `yaml:"imagesPerItem"`
	// MaxFrameDimension downsizes larger frames before extraction; 0 disables
	MaxFrameDimension int `yaml:"maxFrameDimension"`
	// MaxFramePixels rejects frames whose header announces more pixels
	MaxFramePixels int    `yaml:"maxFramePixels"`
	Matcher        string `yaml:"matcher"`
}

type ServiceConfig struct {
	Port            int               `yaml:"port"`
	Database        Database          `yaml:"database"`
	UploadDir       string            `yaml:"uploadDir"`
	MaxUploadSizeMB int               `yaml:"maxUploadSizeMB"`
	Auth            AuthConfig        `yaml:"auth"`
	Session         SessionConfig     `yaml:"session"`
	Recognition     RecognitionConfig `yaml:"recognition"`
	Extractor       ExtractorConfig   `yaml:"extractor"`
}

// DefaultConfig returns the configuration used for every key the YAML file
// and the environment leave unset
func DefaultConfig() *ServiceConfig {
	return &ServiceConfig{
		Port: 8080,
		Database: Database{
			Type:             "sqlite",
			ConnectionString: "database/items.db",
		},
		UploadDir:       "static/uploads",
		MaxUploadSizeMB: 10,
		Auth: AuthConfig{
			Username:             "defaultuser",
			Password:             "defaultpass",
			MaxLoginTries:        5,
			LockoutMinutes:       15,
			SessionLifetimeHours: 7 * 24,
		},
		Session: SessionConfig{
			Type: "memory",
		},
		Recognition: RecognitionConfig{
			BlurThreshold:       blur.DefaultThreshold,
			MatchThreshold:      recognition.DefaultMatchThreshold,
			BorderlineThreshold: recognition.DefaultBorderlineThreshold,
			MaxHammingDistance:  matcher.DefaultMaxDistance,
			ImagesPerItem:       3,
			MaxFramePixels:      frame.DefaultMaxPixels,
			Matcher:             "crosscheck",
		},
		Extractor: ExtractorConfig{
			Name: "orb",
		},
	}
}

// LoadConfig loads configuration from the specified YAML file, applies
// environment overrides and validates the result
func LoadConfig(configPath string) (*ServiceConfig, error) {
	// Read the config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	// Parse YAML on top of the defaults
	config := DefaultConfig()
	err = yaml.Unmarshal(data, config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	return finishConfig(config)
}

// LoadConfigOrDefaults behaves like LoadConfig but falls back to defaults
// plus environment when the file does not exist
func LoadConfigOrDefaults(configPath string) (*ServiceConfig, error) {
	config, err := LoadConfig(configPath)
	if errors.Is(err, fs.ErrNotExist) {
		slog.Info("config file not found; using defaults and environment", "path", configPath)
		return finishConfig(DefaultConfig())
	}
	return config, err
}

func finishConfig(config *ServiceConfig) (*ServiceConfig, error) {
	if err := applyEnvOverrides(config); err != nil {
		return nil, fmt.Errorf("invalid environment override: %w", err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return config, nil
}

// applyEnvOverrides lets deployments keep secrets and limits out of the YAML file
func applyEnvOverrides(config *ServiceConfig) error {
	stringVars := map[string]*string{
		"ALLOWED_USERNAME": &config.Auth.Username,
		"ALLOWED_PASSWORD": &config.Auth.Password,
		"SECRET_KEY":       &config.Auth.SecretKey,
		"UPLOAD_FOLDER":    &config.UploadDir,
		"DB_PATH":          &config.Database.ConnectionString,
		"REDIS_ADDR":       &config.Session.Address,
	}
	for key, target := range stringVars {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*target = v
		}
	}

	intVars := map[string]*int{
		"MAX_LOGIN_TRIES":       &config.Auth.MaxLoginTries,
		"LOCKOUT_MINUTES":       &config.Auth.LockoutMinutes,
		"MAX_CONTENT_LENGTH_MB": &config.MaxUploadSizeMB,
		"PORT":                  &config.Port,
	}
	for key, target := range intVars {
		v, ok := os.LookupEnv(key)
		if !ok || v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s must be an integer, got %q", key, v)
		}
		*target = n
	}

	// a Redis address implies the Redis session store
	if _, ok := os.LookupEnv("REDIS_ADDR"); ok && config.Session.Address != "" {
		config.Session.Type = "redis"
	}
	return nil
}

// Validate checks ranges and that the named backends exist
func (c *ServiceConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if c.Database.Type == "" {
		return fmt.Errorf("database.type must be set")
	}
	if c.UploadDir == "" {
		return fmt.Errorf("uploadDir must be set")
	}
	if c.MaxUploadSizeMB <= 0 {
		return fmt.Errorf("maxUploadSizeMB must be positive, got %d", c.MaxUploadSizeMB)
	}

	if c.Auth.MaxLoginTries <= 0 {
		return fmt.Errorf("auth.maxLoginTries must be positive, got %d", c.Auth.MaxLoginTries)
	}
	if c.Auth.LockoutMinutes < 0 {
		return fmt.Errorf("auth.lockoutMinutes must not be negative, got %d", c.Auth.LockoutMinutes)
	}
	if c.Auth.SessionLifetimeHours <= 0 {
		return fmt.Errorf("auth.sessionLifetimeHours must be positive, got %d", c.Auth.SessionLifetimeHours)
	}
	if c.Session.Type != "memory" && c.Session.Type != "redis" {
		return fmt.Errorf("unknown session.type %q, available: [memory redis]", c.Session.Type)
	}
	if c.Session.Type == "redis" && c.Session.Address == "" {
		return fmt.Errorf("session.address must be set for the redis session store")
	}

	r := c.Recognition
	if r.BlurThreshold <= 0 {
		return fmt.Errorf("recognition.blurThreshold must be positive, got %v", r.BlurThreshold)
	}
	if err := c.Thresholds().Validate(); err != nil {
		return fmt.Errorf("recognition: %w", err)
	}
	if r.MaxHammingDistance <= 0 {
		return fmt.Errorf("recognition.maxHammingDistance must be positive, got %d", r.MaxHammingDistance)
	}
	if r.ImagesPerItem <= 0 {
		return fmt.Errorf("recognition.imagesPerItem must be positive, got %d", r.ImagesPerItem)
	}
	if r.MaxFrameDimension < 0 {
		return fmt.Errorf("recognition.maxFrameDimension must not be negative, got %d", r.MaxFrameDimension)
	}
	if r.MaxFramePixels <= 0 {
		return fmt.Errorf("recognition.maxFramePixels must be positive, got %d", r.MaxFramePixels)
	}
	if !matcher.DefaultRegistry.IsRegistered(r.Matcher) {
		return fmt.Errorf("unknown matcher %q, available: %v", r.Matcher, matcher.DefaultRegistry.GetRegisteredNames())
	}
	if !features.DefaultRegistry.IsRegistered(c.Extractor.Name) {
		return fmt.Errorf("unknown extractor %q, available: %v", c.Extractor.Name, features.DefaultRegistry.GetRegisteredNames())
	}
	return nil
}

// Thresholds returns the decision cut points
func (c *ServiceConfig) Thresholds() recognition.Thresholds {
	return recognition.Thresholds{
		Match:      c.Recognition.MatchThreshold,
		Borderline: c.Recognition.BorderlineThreshold,
	}
}

// MatcherParams returns the parameters passed to the matcher factory
func (c *ServiceConfig) MatcherParams() map[string]any {
	return map[string]any{"maxDistance": c.Recognition.MaxHammingDistance}
}

// LockoutDuration returns the login lockout as a duration
func (c *ServiceConfig) LockoutDuration() time.Duration {
	return time.Duration(c.Auth.LockoutMinutes) * time.Minute
}

// SessionLifetime returns how long an idle session is kept
func (c *ServiceConfig) SessionLifetime() time.Duration {
	return time.Duration(c.Auth.SessionLifetimeHours) * time.Hour
}

// MaxUploadBytes returns the request body limit in bytes
func (c *ServiceConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadSizeMB) * 1024 * 1024
}
