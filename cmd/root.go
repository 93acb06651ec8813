// Package cmd implements the qaid CLI commands.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/theirongolddev/qaid/internal/config"
	"github.com/theirongolddev/qaid/internal/generation"
	"github.com/theirongolddev/qaid/internal/integration"
	"github.com/theirongolddev/qaid/internal/store"
	"github.com/theirongolddev/qaid/internal/telemetry"
	"github.com/theirongolddev/qaid/internal/tracker"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	flagDays       int
	flagProvider   string
	flagDataDir    string
	flagConfigFile string
	flagLogLevel   string
	flagLogFormat  string
)

// cfg is loaded once per invocation in PersistentPreRunE.
var cfg config.Config

var rootCmd = &cobra.Command{
	Use:               "qaid",
	Short:             "AI-assisted QA generation with usage metrics",
	Long:              "Generate test cases and bug reports with an AI provider and track cost, time saved and quality over time.",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	RunE:              runSummary,
}

// timeNow is replaced in tests.
var timeNow = time.Now

// Execute is the main entry point called from main.go. Interrupts cancel
// the command context so in-flight generations are abandoned cleanly.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		cancel()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().IntVarP(&flagDays, "days", "n", 0, "Time window in days (default from config, 30)")
	rootCmd.PersistentFlags().StringVarP(&flagProvider, "provider", "p", "", "AI provider (gemini, openai, anthropic, local)")
	rootCmd.PersistentFlags().StringVarP(&flagDataDir, "data-dir", "d", "", "Directory holding the event database")
	rootCmd.PersistentFlags().StringVarP(&flagConfigFile, "config", "c", "", "Config file (default "+config.ConfigPath()+")")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&flagLogFormat, "log-format", "console", "Log format (console, json)")
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	initLogging()

	var err error
	if flagConfigFile != "" {
		cfg, err = config.LoadFrom(flagConfigFile)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		log.Error().Err(err).Msg("failed to load configuration")
		return err
	}

	level := cfg.General.LogLevel
	if cmd.Flags().Changed("log-level") {
		level = flagLogLevel
	}
	lvl, err := parseLogLevel(level)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(lvl)

	if flagDays <= 0 {
		flagDays = cfg.General.DefaultDays
	}
	if flagDays <= 0 {
		flagDays = tracker.DefaultWindowDays
	}
	if flagDataDir != "" {
		cfg.General.DataDir = flagDataDir
	}
	if flagProvider != "" {
		cfg.Provider.Active = strings.ToLower(flagProvider)
	}

	log.Debug().
		Str("config_file", configFileUsed()).
		Str("data_dir", config.DataDir(cfg)).
		Str("provider", cfg.Provider.Active).
		Msg("qaid initialized")
	return nil
}

func initLogging() {
	if flagLogFormat == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.Kitchen,
	}).With().Timestamp().Logger()
}

func parseLogLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warn", "warning":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("invalid log level: %s", level)
	}
}

func configFileUsed() string {
	if flagConfigFile != "" {
		return flagConfigFile
	}
	return config.ConfigPath()
}

// app bundles the runtime dependencies shared by commands.
type app struct {
	store    *store.SQLite
	recorder telemetry.Recorder
	tracker  *tracker.Tracker
	facade   *integration.Service
}

// openApp opens the event store and wires the tracker and facade.
func openApp(ctx context.Context) (*app, error) {
	rates, err := config.NewRateTable(cfg.Pricing)
	if err != nil {
		return nil, err
	}
	st, err := store.Open(config.DatabasePath(cfg))
	if err != nil {
		return nil, err
	}

	var recorder telemetry.Recorder = telemetry.Noop{}
	if cfg.Telemetry.Enabled {
		exp, err := telemetry.New(ctx, cfg.Telemetry)
		if err != nil {
			log.Warn().Err(err).Msg("telemetry unavailable, continuing without it")
		} else {
			recorder = exp
		}
	}

	tr := tracker.New(st, tracker.WithRecorder(recorder), tracker.WithRates(rates))
	factory := generation.NewFactory(cfg, generation.WithClientLogger(log.Logger))
	facade := integration.New(factory, tr,
		integration.WithProvider(cfg.Provider.Active),
		integration.WithRequestDefaults(cfg.Provider.Temperature, cfg.Provider.MaxTokens),
		integration.WithInitTimeout(cfg.Provider.Timeout.Duration),
	)

	return &app{store: st, recorder: recorder, tracker: tr, facade: facade}, nil
}

func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.recorder.Close(ctx); err != nil {
		log.Warn().Err(err).Msg("flushing telemetry")
	}
	_ = a.store.Close()
}
