// Package cli holds the portal's kong commands.
package cli

import (
	"context"
	"fmt"

	"github.com/Freeeeeet/advising_portal/internal/app"
	"github.com/Freeeeeet/advising_portal/internal/config"
	"go.uber.org/zap"
)

// Context is handed to every command's Run. Configuration and the store are
// loaded on first use so keyring commands work without a database.
type Context struct {
	Ctx context.Context

	cfg    *config.Config
	logger *zap.Logger
	app    *app.App
}

func NewContext(ctx context.Context) *Context {
	return &Context{Ctx: ctx}
}

func (c *Context) Config() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	c.cfg = cfg
	return cfg, nil
}

func (c *Context) Logger() *zap.Logger {
	if c.logger != nil {
		return c.logger
	}
	opts := app.LogOptions{Env: "development"}
	if c.cfg != nil {
		opts = app.LogOptions{Env: c.cfg.Environment, Debug: c.cfg.Debug, File: c.cfg.LogFile}
	}
	c.logger = app.NewLogger(opts)
	return c.logger
}

// App opens the store and wires services.
func (c *Context) App() (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	cfg, err := c.Config()
	if err != nil {
		return nil, err
	}
	a, err := app.New(c.Ctx, cfg, c.Logger())
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

// Close releases whatever App opened.
func (c *Context) Close() {
	if c.app != nil {
		c.app.Close()
	}
	if c.logger != nil {
		_ = c.logger.Sync()
	}
}
