// Package main provides the blog command-line client for the article backend.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"blog/internal/api"
	"blog/internal/articles"
	"blog/internal/config"
	"blog/internal/fixture"
	"blog/internal/logger"
	"blog/internal/store"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	err := rootCMD().ExecuteContext(ctx)

	stop()

	if err != nil {
		os.Exit(1)
	}
}

// app holds what every subcommand needs once flags are parsed.
type app struct {
	cfg *config.Config
	log *logger.Logger
	svc *articles.Service

	cfgPath  string
	baseURL  string
	logLevel string
	fixture  string
}

func rootCMD() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:          "blog",
		Short:        "Client for the blog article backend",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}

	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "", "config file (YAML)")
	root.PersistentFlags().StringVar(&a.baseURL, "base-url", "", "backend base URL (overrides config)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")
	root.PersistentFlags().StringVar(&a.fixture, "fixture", "", "seed fixture path or URL (overrides config)")

	root.AddCommand(
		fetchCMD(a),
		listCMD(a),
		renderCMD(a),
		showCMD(a),
		createCMD(a),
		updateCMD(a),
		deleteCMD(a),
		truncateCMD(a),
		seedCMD(a),
		validateCMD(a),
		formatCMD(a),
	)

	return root
}

// setup loads configuration, applies flag overrides and wires the service.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.LoadConfig(a.cfgPath)
	if err != nil {
		return err
	}

	if a.baseURL != "" {
		cfg.API.BaseURL = a.baseURL
	}
	if a.logLevel != "" {
		cfg.Logging.Level = a.logLevel
	}
	if a.fixture != "" {
		cfg.Seed.Fixture = a.fixture
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log := logger.New(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
	log.Debug("Configuration loaded", "config", cfg.String())

	src, err := fixture.NewSource(cfg.Seed.Fixture, cfg.API.UserAgent, cfg.API.GetTimeout())
	if err != nil {
		return err
	}

	client := api.NewHTTPClient(cfg.API, cfg.Retry, log)

	a.cfg = cfg
	a.log = log
	a.svc = articles.NewService(client, store.NewCollection(), src, cfg, log)

	return nil
}
