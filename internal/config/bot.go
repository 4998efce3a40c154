package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// BotConfig configures the Telegram bot process.
type BotConfig struct {
	Telegram        TelegramConfig
	APIBaseURL      string
	APITimeout      time.Duration
	PollInterval    time.Duration
	ErrorBackoff    time.Duration
	FetchLimit      int
	SubscribersFile string
	ProcessedTTL    time.Duration
	Alerting        AlertingConfig
	Logging         LoggingConfig
}

// DefaultBotAlerting returns the minute-scale tuning used by the bot.
func DefaultBotAlerting() AlertingConfig {
	a := DefaultAlerting()
	a.ErrorCooldown = 5 * time.Minute
	a.WarningCooldown = 10 * time.Minute
	a.InfoCooldown = 30 * time.Minute
	a.DebounceWindow = 10 * time.Second
	a.ValueChangeThreshold = 0.1
	return a
}

func LoadBot() (*BotConfig, error) {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	if err := validateRequired([]string{"TELEGRAM_BOT_TOKEN"}); err != nil {
		return nil, err
	}

	cfg := &BotConfig{
		Telegram:        loadTelegramConfig(),
		APIBaseURL:      strings.TrimRight(getEnv("FASTAPI_BASE_URL", "http://localhost:8000"), "/"),
		APITimeout:      getEnvAsDuration("API_TIMEOUT", "5s"),
		PollInterval:    getEnvAsDuration("BOT_POLL_INTERVAL", "5s"),
		ErrorBackoff:    getEnvAsDuration("BOT_ERROR_BACKOFF", "10s"),
		FetchLimit:      getEnvAsInt("BOT_FETCH_LIMIT", 10),
		SubscribersFile: getEnv("SUBSCRIBERS_FILE", "subscribers.json"),
		ProcessedTTL:    getEnvAsDuration("BOT_PROCESSED_TTL", "1h"),
		Alerting:        loadAlertingConfig(DefaultBotAlerting()),
		Logging:         loadLoggingConfig(),
	}

	return cfg, nil
}

func (c *BotConfig) Validate() error {
	var errors []string

	if c.PollInterval <= 0 {
		errors = append(errors, "BOT_POLL_INTERVAL must be positive")
	}
	if c.FetchLimit < 1 {
		errors = append(errors, "BOT_FETCH_LIMIT must be at least 1")
	}
	errors = append(errors, c.Alerting.problems()...)

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}
	return nil
}
