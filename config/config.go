package config

import (
	"fmt"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration
type Config struct {
	// Reddit configuration
	RedditClientID     string `env:"REDDIT_CLIENT_ID"`
	RedditClientSecret string `env:"REDDIT_CLIENT_SECRET"`
	RedditUsername     string `env:"REDDIT_USERNAME" envDefault:"lbryian"`
	RedditPassword     string `env:"REDDIT_PASSWORD"`
	UserAgent          string `env:"REDDIT_USER_AGENT" envDefault:"lbryian/1.0.0 golang (by /u/lbryian)"`

	// Database configuration
	DatabaseURL string `env:"DATABASE_URL"`

	// Coin daemon configuration
	DaemonRPCURL  string `env:"DAEMON_RPC_URL" envDefault:"http://localhost:9245"`
	DaemonAccount string `env:"DAEMON_ACCOUNT" envDefault:"tipbot"`
	TxFee         string `env:"DAEMON_TX_FEE" envDefault:"0.00002000"`

	// Rate service
	RateURL string `env:"RATE_URL" envDefault:"https://api.lbry.io/lbc/exchange_rate"`

	// Bot behavior
	GildPriceUSD          string `env:"GILD_PRICE_USD" envDefault:"2.50"`
	ConfirmationThreshold int    `env:"CONFIRMATION_THRESHOLD" envDefault:"3"`
	HowToUseURL           string `env:"HOW_TO_USE_URL" envDefault:"https://www.reddit.com/r/lbry/wiki/tipbot"`
	TemplatesDir          string `env:"TEMPLATES_DIR" envDefault:"templates"`

	// Poll cadence, cron spec format
	InboxSchedule    string `env:"INBOX_SCHEDULE" envDefault:"@every 1m"`
	DepositsSchedule string `env:"DEPOSITS_SCHEDULE" envDefault:"@every 1m"`

	// Environment: "development", "production" or "test"
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
}

// Fee returns the configured network fee as a decimal amount.
func (c *Config) Fee() decimal.Decimal {
	d, err := decimal.NewFromString(c.TxFee)
	if err != nil {
		panic(fmt.Sprintf("invalid DAEMON_TX_FEE %q: %v", c.TxFee, err))
	}
	return d
}

// GildPrice returns the fixed USD price of a gild as a decimal amount.
func (c *Config) GildPrice() decimal.Decimal {
	d, err := decimal.NewFromString(c.GildPriceUSD)
	if err != nil {
		panic(fmt.Sprintf("invalid GILD_PRICE_USD %q: %v", c.GildPriceUSD, err))
	}
	return d
}

var (
	instance *Config
	once     sync.Once
)

// Get returns the global configuration instance
func Get() *Config {
	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			panic(fmt.Sprintf("failed to load config: %v", err))
		}
	})
	return instance
}

// load loads configuration from environment variables
func load() (*Config, error) {
	var config Config
	if err := env.Parse(&config); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if config.Environment != "test" {
		// Validate required configuration
		if config.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
		if config.RedditClientID == "" || config.RedditClientSecret == "" {
			return nil, fmt.Errorf("REDDIT_CLIENT_ID and REDDIT_CLIENT_SECRET are required")
		}
		if config.RedditPassword == "" {
			return nil, fmt.Errorf("REDDIT_PASSWORD is required")
		}
	}

	return &config, nil
}
