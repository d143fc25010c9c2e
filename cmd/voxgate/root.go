package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/MrWong99/voxgate/internal/config"
	"github.com/MrWong99/voxgate/pkg/vad"
)

// rootOptions carries the persistent flags shared by all subcommands.
type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "voxgate",
		Short:         "Energy-based voice activity detection for PCM streams and WAV files",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override the configured log level (debug, info, warn, error)")

	rootCmd.AddCommand(newAnalyzeCommand(opts))
	rootCmd.AddCommand(newStreamCommand(opts))
	rootCmd.AddCommand(newProfilesCommand(opts))
	rootCmd.AddCommand(newFramesCommand())
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// loadConfig reads the configured YAML file, or returns the built-in
// defaults when --config was not given.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	if o.configPath == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, describeConfigError(o.configPath, err)
	}
	return cfg, nil
}

// describeConfigError adds a getting-started hint when the config file is
// simply missing.
func describeConfigError(path string, err error) error {
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("config file %q not found, copy configs/example.yaml to get started", path)
	}
	return err
}

// installLogger sets the process-wide logger and returns the level var so
// config reloads can adjust verbosity at runtime. The --log-level flag wins
// over the configured level.
func (o *rootOptions) installLogger(cfg *config.Config) (*slog.LevelVar, error) {
	level := cfg.Server.LogLevel
	if o.logLevel != "" {
		level = config.LogLevel(o.logLevel)
		if !level.IsValid() {
			return nil, fmt.Errorf("invalid --log-level %q, valid values: debug, info, warn, error", o.logLevel)
		}
	}
	lvl := new(slog.LevelVar)
	lvl.Set(slogLevel(level))
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
	return lvl, nil
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// resolveProfile picks the detector tuning for a command: the named profile
// when --profile was given, the profile called "default" when one is
// configured, and the built-in defaults otherwise. Returns the tuning and
// the name it resolved to.
func resolveProfile(cfg *config.Config, name string, blockDuration time.Duration) (vad.Config, string, error) {
	if name != "" {
		p, ok := cfg.Profile(name)
		if !ok {
			names := cfg.ProfileNames()
			if len(names) == 0 {
				return vad.Config{}, "", fmt.Errorf("profile %q not found (no profiles configured)", name)
			}
			return vad.Config{}, "", fmt.Errorf("profile %q not found, configured profiles: %s", name, strings.Join(names, ", "))
		}
		return p.Detector(blockDuration), p.Name, nil
	}
	if p, ok := cfg.Profile(config.DefaultProfile); ok {
		return p.Detector(blockDuration), p.Name, nil
	}
	return vad.Config{}, "built-in", nil
}
