package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"accountability/internal/application/port"
	"accountability/internal/infrastructure/config"
	"accountability/internal/infrastructure/container"
	"accountability/internal/infrastructure/logger"
	"accountability/internal/interfaces/console"
)

const (
	defaultConfigPath = "configs/config.toml"
	tokenEnv          = "ACCOUNTABILITY_TOKEN"
)

// rootConfig holds the persistent flags shared by every command.
type rootConfig struct {
	ConfigPath string
	Format     string

	out    io.Writer
	source port.PortfolioSource // nil uses the brokerage client
}

func newRootCmd(rc *rootConfig) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "accountability",
		Short:         "Portfolio return series from cached brokerage data",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.SetOut(rc.out)

	cmd.PersistentFlags().StringVar(&rc.ConfigPath, "config", defaultConfigPath, "path to config.toml")
	cmd.PersistentFlags().StringVar(&rc.Format, "format", console.FormatJSON, "output format: json or text")

	cmd.AddCommand(
		newHistoryCmd(rc),
		newYTDCmd(rc),
		newHealthCmd(rc),
	)
	return cmd
}

// loadConfig reads the config file. A missing file at the default path
// falls back to defaults; an explicit path must exist.
func (rc *rootConfig) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(rc.ConfigPath)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) || cmd.Flags().Changed("config") {
			return nil, fmt.Errorf("load config %s: %w", rc.ConfigPath, err)
		}
		cfg = config.Default()
	}
	if tok := strings.TrimSpace(os.Getenv(tokenEnv)); tok != "" {
		cfg.Brokerage.Token = tok
	}
	return cfg, nil
}

func (rc *rootConfig) sink() port.Sink {
	return console.NewSink(rc.out, rc.Format)
}

// open builds the container; callers must Close it.
func (rc *rootConfig) open(cmd *cobra.Command, needCredentials bool) (*container.Container, zerolog.Logger, error) {
	cfg, err := rc.loadConfig(cmd)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	if needCredentials && rc.source == nil {
		if err := cfg.ValidateCredentials(); err != nil {
			return nil, log, err
		}
	}

	var opts []container.Option
	if rc.source != nil {
		opts = append(opts, container.WithSource(rc.source))
	}
	c, err := container.New(cfg, log, opts...)
	if err != nil {
		return nil, log, err
	}
	return c, log, nil
}
