// Package root contains the root command for the application
package root

import (
	"fmt"

	"fjacquet/bill-csv/internal/config"
	"fjacquet/bill-csv/internal/container"
	"fjacquet/bill-csv/internal/logging"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// CommonFlags represents the flags that are common to multiple commands
type CommonFlags struct {
	Input    []string
	Output   string
	Validate bool
}

var (
	// Log is the shared logger instance for commands
	Log = logging.GetLogger()

	// Cmd is the root command
	Cmd = &cobra.Command{
		Use:   "bill-csv",
		Short: "A CLI tool to extract structured fields from PDF bills into CSV.",
		Long: `bill-csv reads PDF bills, asks a language model for the invoice fields
(Invoice ID, DESCRIPTION, Issue Date, UNIT PRICE, AMOUNT, Bill For, From, Terms)
and writes one CSV row per bill, along with the average AMOUNT.`,
		SilenceUsage: true,
		Run: func(cmd *cobra.Command, args []string) {
			Log.Info("Welcome to bill-csv!")
			Log.Info("Use --help to see available commands")
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initialize()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if appContainer == nil {
				return
			}
			if err := appContainer.Close(); err != nil {
				Log.WithError(err).Warn("Failed to release resources")
			}
		},
	}

	// Common flags accessible to all commands
	SharedFlags = CommonFlags{}

	// ConfigFile is an explicit configuration file, overriding the search path
	ConfigFile string

	// LogLevel overrides log.level when set
	LogLevel string

	appConfig    *config.Config
	appContainer *container.Container
	logger       logging.Logger
)

// Init initializes the root command and all flags
func Init() {
	Cmd.PersistentFlags().StringVar(&ConfigFile, "config", "", "Config file (default: config.yaml in $HOME/.bill-csv, .bill-csv or .)")
	Cmd.PersistentFlags().StringVar(&LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	Cmd.PersistentFlags().StringSliceVarP(&SharedFlags.Input, "input", "i", nil, "Input PDF file or directory (repeatable)")
	Cmd.PersistentFlags().StringVarP(&SharedFlags.Output, "output", "o", "", "Output file")
	Cmd.PersistentFlags().BoolVarP(&SharedFlags.Validate, "validate", "v", false, "Validate inputs are readable PDFs before extraction")
}

func initialize() error {
	config.LoadEnv()

	cfg, err := config.Load(ConfigFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if LogLevel != "" {
		if _, err := logrus.ParseLevel(LogLevel); err != nil {
			return fmt.Errorf("invalid --log-level: %s", LogLevel)
		}
		cfg.Log.Level = LogLevel
	}

	Log = config.ConfigureLoggingFromConfig(cfg)
	logging.SetAllLogLevels(Log.GetLevel())
	adapter := logging.NewLogrusAdapterFromLogger(Log)

	c, err := container.NewContainer(cfg, container.WithLogger(adapter))
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	appConfig = cfg
	appContainer = c
	logger = adapter
	return nil
}

// GetContainer returns the container built for the running command.
func GetContainer() *container.Container {
	return appContainer
}

// GetConfig returns the configuration loaded for the running command.
func GetConfig() *config.Config {
	return appConfig
}

// GetLogger returns the structured logger of the running command.
func GetLogger() logging.Logger {
	if logger == nil {
		return logging.NewLogrusAdapterFromLogger(Log)
	}
	return logger
}
