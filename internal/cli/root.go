package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/regwatch/internal/model"
)

// Version is set at build time
var Version = "dev"

var (
	cfgFile string
	verbose bool
	logJSON bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "regwatch",
	Short: "RegWatch - regulatory page change monitor",
	Long: `RegWatch watches official regulatory pages and PDFs for changes.

Each cycle fetches every active source, extracts its text, compares it with
the previous snapshot and records meaningful changes for human review.
Administrators are alerted about changes and about sources that stop
responding or suddenly lose most of their content.

RegWatch reports that text changed. It does not interpret what a change means.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("regwatch %s\n", Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.regwatch/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&logJSON, "log-json", false, "log JSON lines instead of console output")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path")

	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("storage.db_path", rootCmd.PersistentFlags().Lookup("db"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	setDefaults(model.DefaultConfig())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(filepath.Join(home, ".regwatch"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// REGWATCH_HTTP_TIMEOUT overrides http.timeout, and so on
	viper.SetEnvPrefix("REGWATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "Error reading config: %v\n", err)
		}
	}
}

// setDefaults registers every config key so env vars resolve through Unmarshal
func setDefaults(cfg *model.Config) {
	viper.SetDefault("http.timeout", cfg.HTTP.Timeout)
	viper.SetDefault("http.user_agent", cfg.HTTP.UserAgent)
	viper.SetDefault("http.max_body_bytes", cfg.HTTP.MaxBodyBytes)
	viper.SetDefault("http.max_redirects", cfg.HTTP.MaxRedirects)
	viper.SetDefault("http.respect_robots", cfg.HTTP.RespectRobots)
	viper.SetDefault("http.insecure_tls", cfg.HTTP.InsecureTLS)
	viper.SetDefault("http.http_proxy", cfg.HTTP.HTTPProxy)
	viper.SetDefault("http.https_proxy", cfg.HTTP.HTTPSProxy)
	viper.SetDefault("http.no_proxy", cfg.HTTP.NoProxy)

	viper.SetDefault("detect.change_threshold", cfg.Detect.ChangeThreshold)
	viper.SetDefault("detect.content_drop_threshold", cfg.Detect.ContentDropThreshold)

	viper.SetDefault("concurrency.workers", cfg.Concurrency.Workers)
	viper.SetDefault("rate_limiting.requests_per_second", cfg.RateLimiting.RequestsPerSecond)
	viper.SetDefault("rate_limiting.burst_size", cfg.RateLimiting.BurstSize)

	viper.SetDefault("storage.db_path", cfg.Storage.DBPath)
	viper.SetDefault("storage.archive_dir", cfg.Storage.ArchiveDir)

	viper.SetDefault("notify.slack_webhook_url", cfg.Notify.SlackWebhookURL)
	viper.SetDefault("notify.telegram_token", cfg.Notify.TelegramToken)
	viper.SetDefault("notify.telegram_chat_id", cfg.Notify.TelegramChatID)
	viper.SetDefault("notify.review_url", cfg.Notify.ReviewURL)
	viper.SetDefault("notify.preview_chars", cfg.Notify.PreviewChars)

	viper.SetDefault("schedule.cron", cfg.Schedule.Cron)
	viper.SetDefault("schedule.timezone", cfg.Schedule.Timezone)
	viper.SetDefault("cycle_timeout", cfg.CycleTimeout)
}

// loadConfig resolves the effective configuration (flags > env > file > defaults)
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// setupLogging configures the global zerolog logger
func setupLogging() {
	zerolog.TimeFieldFormat = time.RFC3339
	if logJSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	if verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}
