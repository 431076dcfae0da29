package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/regwatch/internal/model"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage RegWatch configuration",
	Long: `Manage RegWatch configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (REGWATCH_*, e.g. REGWATCH_NOTIFY_SLACK_WEBHOOK_URL)
3. Config file (~/.regwatch/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if configFile := viper.ConfigFileUsed(); configFile != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", configFile)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n\n")
		}

		out, err := yaml.Marshal(redact(*cfg))
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		fmt.Print(string(out))
		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a default configuration file",
	Long:  `Create a default configuration file at ~/.regwatch/config.yaml.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("error finding home directory: %w", err)
		}

		configPath := filepath.Join(home, ".regwatch", "config.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config file already exists: %s\nUse 'regwatch config show' to view it, or delete it first to recreate", configPath)
		}
		if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
			return fmt.Errorf("error creating config directory: %w", err)
		}

		body, err := yaml.Marshal(model.DefaultConfig())
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}

		header := "# RegWatch configuration\n" +
			"#\n" +
			"# Secrets are better set through the environment:\n" +
			"#   export REGWATCH_NOTIFY_SLACK_WEBHOOK_URL=https://hooks.slack.com/services/...\n" +
			"#   export REGWATCH_NOTIFY_TELEGRAM_TOKEN=123456:ABC...\n" +
			"#   export REGWATCH_NOTIFY_TELEGRAM_CHAT_ID=-100123456\n\n"

		if err := os.WriteFile(configPath, append([]byte(header), body...), 0o600); err != nil {
			return fmt.Errorf("error writing config: %w", err)
		}

		fmt.Printf("✓ Created default configuration: %s\n", configPath)
		return nil
	},
}

// redact hides secrets before display
func redact(cfg model.Config) model.Config {
	if cfg.Notify.SlackWebhookURL != "" {
		cfg.Notify.SlackWebhookURL = "<redacted>"
	}
	if cfg.Notify.TelegramToken != "" {
		cfg.Notify.TelegramToken = "<redacted>"
	}
	return cfg
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
