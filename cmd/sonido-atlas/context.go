package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/RyanBlaney/sonido-atlas/cache"
	"github.com/RyanBlaney/sonido-atlas/config"
	"github.com/RyanBlaney/sonido-atlas/logging"
	"github.com/RyanBlaney/sonido-atlas/pipeline"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// applyLogLevel prefers --log-level over the configured level.
func (c *commandContext) applyLogLevel(configured string) error {
	value := configured
	if c.logLevelFlag != nil && strings.TrimSpace(*c.logLevelFlag) != "" {
		value = *c.logLevelFlag
	}
	level, err := logging.ParseLevel(value)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	logging.SetLevel(level)
	return nil
}

// newPipeline builds a pipeline with the descriptor cache unless disabled.
// Records from other analysis settings are pruned from the cache. The
// returned closer releases the cache.
func (c *commandContext) newPipeline(ctx context.Context, cfg *config.Config, useCache bool, opts ...pipeline.Option) (*pipeline.Pipeline, func(), error) {
	closer := func() {}
	if useCache {
		store, err := cache.Open(cfg.DescriptorCachePath())
		if err != nil {
			return nil, nil, fmt.Errorf("open descriptor cache: %w", err)
		}
		closer = func() {
			_ = store.Close()
		}
		opts = append(opts, pipeline.WithCache(store))
	}

	p, err := pipeline.New(cfg, opts...)
	if err != nil {
		closer()
		return nil, nil, err
	}
	if _, _, err := p.PrepareCache(ctx); err != nil {
		closer()
		return nil, nil, fmt.Errorf("prepare descriptor cache: %w", err)
	}
	return p, closer, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
