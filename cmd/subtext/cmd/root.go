package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/subtext/internal/config"
	"github.com/MeKo-Tech/subtext/internal/version"
)

var (
	// Configuration loader of the running command.
	configLoader *config.Loader
	// Configuration resolved before the command runs.
	globalConfig *config.Config
	// Configuration file path.
	cfgFile string
)

// RootCmd represents the base command when called without any subcommands.
var RootCmd = &cobra.Command{
	Use:   "subtext",
	Short: "Screen text translation server",
	Long: `subtext receives screenshots over HTTP, finds the text in them with an OCR
engine, translates every text box and answers with positioned translations
that an overlay client can draw on top of the original screen.

Examples:
  subtext serve
  subtext serve --port 8888 --merge
  subtext translate screenshot.png
  subtext config init`,
	Version:       version.String(),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(cmd); err != nil {
			return err
		}
		setupLogging(globalConfig)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default is search in "+strings.Join(config.GetConfigSearchPaths(), ", ")+")")
	RootCmd.PersistentFlags().BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	RootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
}

// initConfig reads the config file, environment and bound flags.
func initConfig(cmd *cobra.Command) error {
	v := viper.New()
	if err := v.BindPFlag("verbose", cmd.Flags().Lookup("verbose")); err != nil {
		return err
	}
	if err := v.BindPFlag("log_level", cmd.Flags().Lookup("log-level")); err != nil {
		return err
	}

	configLoader = config.NewLoaderWithViper(v)

	var err error
	if cfgFile != "" {
		globalConfig, err = configLoader.LoadWithFile(cfgFile)
	} else {
		globalConfig, err = configLoader.Load()
	}
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}
	return nil
}

// setupLogging installs the JSON slog handler at the configured level.
func setupLogging(cfg *config.Config) {
	var logLevel slog.Level
	if cfg.Verbose {
		logLevel = slog.LevelDebug
	} else {
		switch strings.ToLower(cfg.LogLevel) {
		case "debug":
			logLevel = slog.LevelDebug
		case "warn":
			logLevel = slog.LevelWarn
		case "error":
			logLevel = slog.LevelError
		default:
			logLevel = slog.LevelInfo
		}
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
}

// GetConfig returns the configuration resolved for the running command.
func GetConfig() *config.Config {
	if globalConfig == nil {
		cfg := config.DefaultConfig()
		return &cfg
	}
	return globalConfig
}
