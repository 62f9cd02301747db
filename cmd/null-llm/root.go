package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/starhound/null-llm-go/config"
	"github.com/starhound/null-llm-go/registry"
	"github.com/starhound/null-llm-go/usage"
)

const (
	AppName = "null-llm"
	Version = "0.1.0"
)

var (
	configPath string
	provider   string
	model      string
	verbose    bool
)

// app holds what every subcommand needs.
type app struct {
	logger   *slog.Logger
	cfg      *config.Config
	registry *registry.Registry
}

var rootCmd = &cobra.Command{
	Use:           "null-llm",
	Short:         "Stream completions from local and hosted LLM providers",
	Long:          `null-llm routes prompts to Ollama, OpenAI-compatible services, Anthropic, Gemini, Bedrock, Cohere and more, with failover between them.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "settings file (default "+config.DefaultPath()+")")
	rootCmd.PersistentFlags().StringVarP(&provider, "provider", "p", "", "provider to use instead of the configured one")
	rootCmd.PersistentFlags().StringVarP(&model, "model", "m", "", "model to use with the selected provider")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(costCmd)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil && !errors.Is(err, context.Canceled) {
		color.New(color.FgRed).Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// setup loads the configuration, applies the command-line overrides and
// builds the registry. Callers must call close.
func setup() (*app, func(), error) {
	logger := newLogger()
	slog.SetDefault(logger)

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("configuration loaded", "path", cfg.Path(), "provider", cfg.ActiveProvider())

	if provider != "" {
		cfg.SetActiveProvider(provider)
	}
	if model != "" {
		cfg.SetModel(cfg.ActiveProvider(), model)
	}
	if file := cfg.Settings().ModelsFile; file != "" {
		if err := usage.LoadFromFile(file); err != nil {
			return nil, nil, err
		}
		logger.Debug("model table loaded", "path", file)
	}

	reg := registry.New(cfg, registry.WithLogger(logger))
	closeFn := func() {
		if err := reg.CloseAll(); err != nil {
			logger.Warn("closing providers", "error", err)
		}
	}
	return &app{logger: logger, cfg: cfg, registry: reg}, closeFn, nil
}

func printField(name string, value any) {
	fmt.Printf("  %-15s: %v\n", name, value)
}
