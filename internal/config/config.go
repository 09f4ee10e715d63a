/**
 * @description
 * This file handles configuration management for the billing-service. It
 * loads settings from environment variables, providing defaults for the
 * cron schedules and the Daraja sandbox endpoint.
 */
package config

import (
	"errors"

	"github.com/spf13/viper"
)

// Config holds all configuration for the billing service.
type Config struct {
	Port        string `mapstructure:"PORT"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	JWTSecret   string `mapstructure:"JWT_SECRET"`
	RedisURL    string `mapstructure:"REDIS_URL"`
	AMQPURL     string `mapstructure:"AMQP_URL"`

	DarajaBaseURL        string `mapstructure:"DARAJA_BASE_URL"`
	DarajaConsumerKey    string `mapstructure:"DARAJA_CONSUMER_KEY"`
	DarajaConsumerSecret string `mapstructure:"DARAJA_CONSUMER_SECRET"`
	DarajaShortCode      string `mapstructure:"DARAJA_SHORT_CODE"`
	DarajaPassKey        string `mapstructure:"DARAJA_PASS_KEY"`
	DarajaCallbackURL    string `mapstructure:"DARAJA_CALLBACK_URL"`

	BillingJobSchedule string `mapstructure:"BILLING_JOB_SCHEDULE"`
	RetryJobSchedule   string `mapstructure:"RETRY_JOB_SCHEDULE"`
}

// LoadConfig reads configuration from environment variables.
func LoadConfig() (*Config, error) {
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("DARAJA_BASE_URL", "https://sandbox.safaricom.co.ke")
	viper.SetDefault("BILLING_JOB_SCHEDULE", "0 6 * * *") // At 06:00 every day.
	viper.SetDefault("RETRY_JOB_SCHEDULE", "0 7 * * *")   // At 07:00 every day.
	viper.AutomaticEnv()

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("AMQP_URL")
	_ = viper.BindEnv("DARAJA_BASE_URL")
	_ = viper.BindEnv("DARAJA_CONSUMER_KEY")
	_ = viper.BindEnv("DARAJA_CONSUMER_SECRET")
	_ = viper.BindEnv("DARAJA_SHORT_CODE")
	_ = viper.BindEnv("DARAJA_PASS_KEY")
	_ = viper.BindEnv("DARAJA_CALLBACK_URL")
	_ = viper.BindEnv("BILLING_JOB_SCHEDULE")
	_ = viper.BindEnv("RETRY_JOB_SCHEDULE")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}

	return &config, nil
}
