package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config aggregates all runtime configuration for one storefront instance.
type Config struct {
	Port        string
	Environment string

	StoreID   string
	StoreName string

	Database DatabaseConfig
	Stripe   StripeConfig
	Checkout CheckoutConfig
	Auth     AuthConfig
	Mailer   MailerConfig

	HTTPTimeout time.Duration
}

// DatabaseConfig describes the Postgres connection.
type DatabaseConfig struct {
	Host           string
	Port           string
	User           string
	Password       string
	DBName         string
	SSLMode        string
	MigrationsPath string
}

// DSN renders the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

// StripeConfig carries the payment-provider credentials. SecretKey and
// WebhookSecret may legitimately be empty at startup; the checkout and
// webhook paths reject requests when they are missing.
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	AccountID     string
}

// CheckoutConfig groups the storefront-facing checkout behaviour knobs.
type CheckoutConfig struct {
	SuccessURL        string
	CancelURL         string
	LowStockThreshold int
	ShippingCountries []string
}

// AuthConfig configures optional customer bearer tokens.
type AuthConfig struct {
	CustomerTokenSecret string
}

// MailerConfig configures the transactional e-mail provider.
type MailerConfig struct {
	APIKey     string
	APIBaseURL string
	FromEmail  string
	OwnerEmail string
}

// Load reads configuration from the environment and an optional .env file.
func Load() (*Config, error) {
	viper.SetConfigType("env")
	viper.SetConfigName(".env")
	viper.AddConfigPath(".")
	viper.AddConfigPath("..")

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("ENVIRONMENT", "development")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_MIGRATIONS_PATH", "./migrations")
	viper.SetDefault("HTTP_TIMEOUT", "60s")
	viper.SetDefault("LOW_STOCK_THRESHOLD", 5)
	viper.SetDefault("SHIPPING_COUNTRIES", "US")
	viper.SetDefault("MAILER_API_BASE_URL", "https://api.resend.com")

	viper.AutomaticEnv()

	// The .env file is optional; environment variables alone are enough.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	timeout, err := time.ParseDuration(viper.GetString("HTTP_TIMEOUT"))
	if err != nil || timeout <= 0 {
		timeout = 60 * time.Second
	}

	cfg := &Config{
		Port:        viper.GetString("PORT"),
		Environment: viper.GetString("ENVIRONMENT"),
		StoreID:     viper.GetString("STORE_ID"),
		StoreName:   viper.GetString("STORE_NAME"),
		Database: DatabaseConfig{
			Host:           viper.GetString("DB_HOST"),
			Port:           viper.GetString("DB_PORT"),
			User:           viper.GetString("DB_USER"),
			Password:       viper.GetString("DB_PASSWORD"),
			DBName:         viper.GetString("DB_NAME"),
			SSLMode:        viper.GetString("DB_SSLMODE"),
			MigrationsPath: viper.GetString("DB_MIGRATIONS_PATH"),
		},
		Stripe: StripeConfig{
			SecretKey:     viper.GetString("STRIPE_SECRET_KEY"),
			WebhookSecret: viper.GetString("STRIPE_WEBHOOK_SECRET"),
			AccountID:     viper.GetString("STRIPE_ACCOUNT_ID"),
		},
		Checkout: CheckoutConfig{
			SuccessURL:        viper.GetString("CHECKOUT_SUCCESS_URL"),
			CancelURL:         viper.GetString("CHECKOUT_CANCEL_URL"),
			LowStockThreshold: viper.GetInt("LOW_STOCK_THRESHOLD"),
			ShippingCountries: splitList(viper.GetString("SHIPPING_COUNTRIES")),
		},
		Auth: AuthConfig{
			CustomerTokenSecret: viper.GetString("CUSTOMER_TOKEN_SECRET"),
		},
		Mailer: MailerConfig{
			APIKey:     viper.GetString("MAILER_API_KEY"),
			APIBaseURL: viper.GetString("MAILER_API_BASE_URL"),
			FromEmail:  viper.GetString("MAILER_FROM_EMAIL"),
			OwnerEmail: viper.GetString("STORE_OWNER_EMAIL"),
		},
		HTTPTimeout: timeout,
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.StoreID) == "" {
		return fmt.Errorf("config: STORE_ID is required")
	}
	if strings.TrimSpace(c.Database.Host) == "" {
		return fmt.Errorf("config: DB_HOST is required")
	}
	if strings.TrimSpace(c.Database.User) == "" {
		return fmt.Errorf("config: DB_USER is required")
	}
	if strings.TrimSpace(c.Database.DBName) == "" {
		return fmt.Errorf("config: DB_NAME is required")
	}
	if strings.TrimSpace(c.Checkout.SuccessURL) == "" || strings.TrimSpace(c.Checkout.CancelURL) == "" {
		return fmt.Errorf("config: CHECKOUT_SUCCESS_URL and CHECKOUT_CANCEL_URL are required")
	}
	return nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, strings.ToUpper(v))
		}
	}
	return out
}
