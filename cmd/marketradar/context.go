package main

import (
	"log/slog"
	"strings"
	"sync"

	"MarketRadar/internal/config"
	"MarketRadar/internal/logging"
)

type commandContext struct {
	configFlag  *string
	envFileFlag *string

	configOnce sync.Once
	config     config.Config
}

func newCommandContext(configFlag, envFileFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag, envFileFlag: envFileFlag}
}

func (c *commandContext) ensureConfig() config.Config {
	c.configOnce.Do(func() {
		var opts config.Options
		if c.configFlag != nil {
			opts.ConfigPath = strings.TrimSpace(*c.configFlag)
		}
		if c.envFileFlag != nil {
			opts.EnvFile = strings.TrimSpace(*c.envFileFlag)
		}
		c.config = config.Load(opts)
	})
	return c.config
}

func (c *commandContext) logger() *slog.Logger {
	cfg := c.ensureConfig()
	return logging.New(cfg.Logging.Level, cfg.Logging.Format)
}
