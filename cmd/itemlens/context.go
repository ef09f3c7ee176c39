package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jo-hoe/itemlens/internal/core"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *core.ServiceConfig
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) configPath() string {
	if c.configFlag != nil {
		if path := strings.TrimSpace(*c.configFlag); path != "" {
			return path
		}
	}
	if path := os.Getenv("CONFIG_PATH"); path != "" {
		return path
	}
	return filepath.Join(".", "config.yaml")
}

func (c *commandContext) ensureConfig() (*core.ServiceConfig, error) {
	c.configOnce.Do(func() {
		c.config, c.configErr = core.LoadConfigOrDefaults(c.configPath())
	})
	return c.config, c.configErr
}

// withService opens the catalog for the duration of fn
func (c *commandContext) withService(ctx context.Context, fn func(*core.CoreService) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	service, err := core.NewCoreService(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		_ = service.Close()
	}()
	return fn(service)
}
