package main

import (
	"os"
	"time"

	"github.com/DomeLiquid/federation/config"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"
)

const programName = "federation"

type configKey struct{}

var (
	globalFlags = struct {
		debug   bool
		console bool
	}{}
	configFile string
)

func newLogger() *zerolog.Logger {
	level := zerolog.InfoLevel
	if globalFlags.debug {
		level = zerolog.DebugLevel
	}
	var logger zerolog.Logger
	if globalFlags.console {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	logger = logger.Level(level).With().Timestamp().Str("component", programName).Logger()
	return &logger
}

func commonRun() *zerolog.Logger {
	logger := newLogger()
	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, v ...any) {
		logger.Info().Msgf(format, v...)
	})); err != nil {
		logger.Fatal().Err(err).Msg("set maxprocs")
	}
	return logger
}

func configFromCommand(cmd *cobra.Command) *config.Config {
	cfg, _ := cmd.Context().Value(configKey{}).(*config.Config)
	return cfg
}

func main() {
	rootCmd := &cobra.Command{
		Use:          programName,
		Short:        "Mint game content as tokens and report confirmed holdings back to the game",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return errors.Wrap(err, "failed to load config")
			}
			cmd.SetContext(contextWithConfig(cmd, cfg))
			return nil
		},
	}

	rootCmd.PersistentFlags().
		BoolVarP(&globalFlags.debug, "debug", "D", false, "enable debug logging")
	rootCmd.PersistentFlags().
		BoolVar(&globalFlags.console, "console", false, "human readable log output")
	rootCmd.PersistentFlags().
		StringVar(&configFile, "config", "", "path to config file")

	rootCmd.AddCommand(serveCommand())
	rootCmd.AddCommand(purgeCommand())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
