package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/subtext/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and generate configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init [file]",
	Short: "Write a configuration file with all defaults",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.ConfigFileName + ".yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.GenerateDefaultConfigFile(path); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the resolved configuration as YAML",
	Long:  "Print the configuration after files, environment and flags are applied. Secrets are masked.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := *GetConfig()
		maskSecrets(&cfg)

		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		if used := configLoader.GetConfigFileUsed(); used != "" {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "# source: %s\n", used)
		}
		_, err = cmd.OutOrStdout().Write(out)
		return err
	},
}

func init() {
	RootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd)
}

const masked = "********"

func maskSecrets(cfg *config.Config) {
	for _, s := range []*string{
		&cfg.Translate.Google.APIKey,
		&cfg.Translate.Gemini.APIKey,
		&cfg.Translate.Cache.RedisPassword,
		&cfg.Report.PostgresDSN,
	} {
		if *s != "" {
			*s = masked
		}
	}
}
