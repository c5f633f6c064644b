package main

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Skryldev/imageprep"
	"github.com/Skryldev/imageprep/config"
	"github.com/Skryldev/imageprep/hooks"
)

type globalFlags struct {
	configFile string
	envFile    string
	logLevel   string
	backend    string
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "imageprep",
		Short: "Validate, resize and re-encode images",
		Long: `imageprep checks uploaded images against a policy, fits them inside a
bounding box, re-encodes them as WebP, JPEG or PNG and serves short-lived
preview URLs.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&g.configFile, "config", "c", "", "YAML config file")
	root.PersistentFlags().StringVar(&g.envFile, "env-file", ".env", "dotenv file loaded before IMAGEPREP_* variables are read")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "debug, info, warn or error")
	root.PersistentFlags().StringVar(&g.backend, "backend", "", "codec backend: native or vips")

	root.AddCommand(
		newProbeCmd(g),
		newValidateCmd(g),
		newProcessCmd(g),
		newBatchCmd(g),
		newServeCmd(g),
	)
	return root
}

// loadConfig layers defaults, the config file, the environment and flags.
func (g *globalFlags) loadConfig() (config.Config, error) {
	if g.envFile != "" {
		if err := godotenv.Load(g.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return config.Config{}, err
		}
	}

	cfg := config.Default()
	if g.configFile != "" {
		var err error
		if cfg, err = config.Load(g.configFile); err != nil {
			return cfg, err
		}
	}
	if err := config.ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	if g.backend != "" {
		cfg.Backend = config.Backend(g.backend)
	}
	return cfg, config.Validate(cfg)
}

// newLogger returns a core.Logger writing through a charmbracelet handler.
func newLogger(level string) (*hooks.SlogLogger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	handler := log.NewWithOptions(os.Stderr, log.Options{
		Level:           lvl,
		ReportTimestamp: true,
		TimeFormat:      "15:04:05",
		Prefix:          "imageprep",
	})
	return hooks.NewSlogLogger(slog.New(handler)), nil
}

// open builds a pipeline from the layered configuration.  mutate runs after
// loading and before construction.
func (g *globalFlags) open(mutate func(*config.Config), opts ...imageprep.Option) (*imageprep.Pipeline, *hooks.SlogLogger, error) {
	cfg, err := g.loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if mutate != nil {
		mutate(&cfg)
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	p, err := imageprep.New(cfg, append([]imageprep.Option{imageprep.WithLogger(logger)}, opts...)...)
	if err != nil {
		return nil, nil, err
	}
	return p, logger, nil
}
