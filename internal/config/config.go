package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
// The values are read by Viper from a config file or environment variables.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	S3        S3Config        `mapstructure:"s3"`
	JWT       JWTConfig       `mapstructure:"jwt"`
	Lifecycle LifecycleConfig `mapstructure:"lifecycle"`
	Email     EmailConfig     `mapstructure:"email"`
	Admin     AdminConfig     `mapstructure:"admin"`
}

type ServerConfig struct {
	Address string `mapstructure:"address"`
	Mode    string `mapstructure:"mode"` // gin mode: debug, release, test
}

type DatabaseConfig struct {
	URI  string `mapstructure:"uri"`
	Name string `mapstructure:"name"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	BucketName      string `mapstructure:"bucket_name"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

// JWTConfig defines JWT specific configuration
type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	Expiration time.Duration `mapstructure:"expiration"`
}

// LifecycleConfig carries the business constants of the client lifecycle.
// ExpiringThresholdDays is the single threshold used by every status computation.
type LifecycleConfig struct {
	ExpiringThresholdDays int           `mapstructure:"expiring_threshold_days"`
	CheckInCadenceDays    int           `mapstructure:"checkin_cadence_days"`
	CheckEditWindow       time.Duration `mapstructure:"check_edit_window"`
	Timezone              string        `mapstructure:"timezone"`
	FeedLimit             int           `mapstructure:"feed_limit"`
}

// Location resolves the configured timezone. Call Validate first.
func (l LifecycleConfig) Location() *time.Location {
	loc, err := time.LoadLocation(l.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

type EmailConfig struct {
	ResendAPIKey  string        `mapstructure:"resend_api_key"` // empty: emails are only logged
	From          string        `mapstructure:"from"`
	ReplyTo       string        `mapstructure:"reply_to"`
	AppBaseURL    string        `mapstructure:"app_base_url"`
	ResetTokenTTL time.Duration `mapstructure:"reset_token_ttl"`
}

// AdminConfig describes the coach account created on first start.
type AdminConfig struct {
	Name     string `mapstructure:"name"`
	Email    string `mapstructure:"email"`
	Password string `mapstructure:"password"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// server.address -> SERVER_ADDRESS, jwt.expiration -> JWT_EXPIRATION
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(`.`, `_`))

	setDefaults(v)

	err = v.ReadInConfig()
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		// Running on env vars and defaults only.
		err = nil
	} else if err != nil {
		return
	}

	if err = v.Unmarshal(&config); err != nil {
		return
	}

	if err = config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("database.uri", "mongodb://localhost:27017/?replicaSet=rs0")
	v.SetDefault("database.name", "pt_manager")
	v.SetDefault("s3.endpoint", "")
	v.SetDefault("s3.region", "eu-south-1")
	v.SetDefault("s3.access_key_id", "")
	v.SetDefault("s3.secret_access_key", "")
	v.SetDefault("s3.bucket_name", "pt-manager-photos")
	v.SetDefault("s3.use_ssl", true)
	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.expiration", "12h")
	v.SetDefault("lifecycle.expiring_threshold_days", 7)
	v.SetDefault("lifecycle.checkin_cadence_days", 7)
	v.SetDefault("lifecycle.check_edit_window", "2h")
	v.SetDefault("lifecycle.timezone", "Europe/Rome")
	v.SetDefault("lifecycle.feed_limit", 10)
	v.SetDefault("email.resend_api_key", "")
	v.SetDefault("email.from", "Coach <noreply@example.com>")
	v.SetDefault("email.reply_to", "")
	v.SetDefault("email.app_base_url", "http://localhost:5173")
	v.SetDefault("email.reset_token_ttl", "1h")
	v.SetDefault("admin.name", "Coach")
	v.SetDefault("admin.email", "")
	v.SetDefault("admin.password", "")
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret must be set")
	}
	if _, err := time.LoadLocation(c.Lifecycle.Timezone); err != nil {
		return fmt.Errorf("lifecycle.timezone: %w", err)
	}
	if c.Lifecycle.ExpiringThresholdDays < 0 {
		return errors.New("lifecycle.expiring_threshold_days must not be negative")
	}
	switch c.Server.Mode {
	case "", "debug", "release", "test":
	default:
		return fmt.Errorf("server.mode %q must be debug, release or test", c.Server.Mode)
	}
	if c.Lifecycle.CheckInCadenceDays <= 0 {
		return errors.New("lifecycle.checkin_cadence_days must be positive")
	}
	return nil
}
