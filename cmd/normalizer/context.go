package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"normalizer/internal/config"
	"normalizer/internal/logging"
)

type commandContext struct {
	configFlag *string
	verbose    *bool
	debug      *bool

	configOnce sync.Once
	config     *config.Config
	configPath string
	configSeen bool
	configErr  error
}

func newCommandContext(configFlag *string, verbose, debug *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		verbose:    verbose,
		debug:      debug,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.config, c.configPath, c.configSeen, c.configErr = config.Load(path)
	})
	return c.config, c.configErr
}

// logger builds the command logger. Output goes to the command's stderr so
// stdout carries only results.
func (c *commandContext) logger(cmd *cobra.Command) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.NewFromConfig(cfg, cmd.ErrOrStderr(), flagValue(c.verbose), flagValue(c.debug))
}

func flagValue(v *bool) bool {
	return v != nil && *v
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
