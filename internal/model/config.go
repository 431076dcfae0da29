package model

import "time"

// Config holds all runtime settings. Field tags serve both the YAML dump and
// viper's unmarshalling.
type Config struct {
	HTTP         HTTPConfig        `yaml:"http" mapstructure:"http"`
	Detect       DetectConfig      `yaml:"detect" mapstructure:"detect"`
	Concurrency  ConcurrencyConfig `yaml:"concurrency" mapstructure:"concurrency"`
	RateLimiting RateLimitConfig   `yaml:"rate_limiting" mapstructure:"rate_limiting"`
	Storage      StorageConfig     `yaml:"storage" mapstructure:"storage"`
	Notify       NotifyConfig      `yaml:"notify" mapstructure:"notify"`
	Schedule     ScheduleConfig    `yaml:"schedule" mapstructure:"schedule"`
	CycleTimeout time.Duration     `yaml:"cycle_timeout" mapstructure:"cycle_timeout"` // 0 means no deadline
}

// HTTPConfig controls the source fetcher
type HTTPConfig struct {
	Timeout       time.Duration `yaml:"timeout" mapstructure:"timeout"`
	UserAgent     string        `yaml:"user_agent" mapstructure:"user_agent"`
	MaxBodyBytes  int64         `yaml:"max_body_bytes" mapstructure:"max_body_bytes"`
	MaxRedirects  int           `yaml:"max_redirects" mapstructure:"max_redirects"`
	RespectRobots bool          `yaml:"respect_robots" mapstructure:"respect_robots"`
	InsecureTLS   bool          `yaml:"insecure_tls" mapstructure:"insecure_tls"`
	HTTPProxy     string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy    string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy       string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// DetectConfig holds the change classification thresholds
type DetectConfig struct {
	ChangeThreshold      float64 `yaml:"change_threshold" mapstructure:"change_threshold"`             // Minimum change ratio for a review item
	ContentDropThreshold float64 `yaml:"content_drop_threshold" mapstructure:"content_drop_threshold"` // Alert when new/old length falls below this
}

// ConcurrencyConfig bounds the per-cycle fan-out
type ConcurrencyConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// RateLimitConfig is applied per target host
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	BurstSize         int     `yaml:"burst_size" mapstructure:"burst_size"`
}

// StorageConfig locates the database and the raw-body archive
type StorageConfig struct {
	DBPath     string `yaml:"db_path" mapstructure:"db_path"`
	ArchiveDir string `yaml:"archive_dir" mapstructure:"archive_dir"`
}

// NotifyConfig configures admin notification channels. Empty values disable a channel.
type NotifyConfig struct {
	SlackWebhookURL string `yaml:"slack_webhook_url,omitempty" mapstructure:"slack_webhook_url"`
	TelegramToken   string `yaml:"telegram_token,omitempty" mapstructure:"telegram_token"`
	TelegramChatID  int64  `yaml:"telegram_chat_id,omitempty" mapstructure:"telegram_chat_id"`
	ReviewURL       string `yaml:"review_url,omitempty" mapstructure:"review_url"`
	PreviewChars    int    `yaml:"preview_chars" mapstructure:"preview_chars"`
}

// ScheduleConfig drives the long-running scheduler
type ScheduleConfig struct {
	Cron     string `yaml:"cron" mapstructure:"cron"`
	Timezone string `yaml:"timezone" mapstructure:"timezone"`
}

// DefaultUserAgent identifies monitor traffic to site operators
const DefaultUserAgent = "RegWatch/1.0 (compliance monitoring service)"

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:       30 * time.Second,
			UserAgent:     DefaultUserAgent,
			MaxBodyBytes:  20 << 20,
			MaxRedirects:  10,
			RespectRobots: false,
		},
		Detect: DetectConfig{
			ChangeThreshold:      0.005,
			ContentDropThreshold: 0.5,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 4,
		},
		RateLimiting: RateLimitConfig{
			RequestsPerSecond: 1,
			BurstSize:         2,
		},
		Storage: StorageConfig{
			DBPath:     "regwatch.db",
			ArchiveDir: "regwatch-archive",
		},
		Notify: NotifyConfig{
			PreviewChars: 1000,
		},
		Schedule: ScheduleConfig{
			Cron:     "0 */6 * * *",
			Timezone: "UTC",
		},
	}
}
