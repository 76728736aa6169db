/**
 * @description
 * This package handles the configuration management for the verification-service.
 * It uses the Viper library to read settings from environment variables or a local
 * .env file, mirroring the rest of the CarePro Go services.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */
package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the verification-service.
type Config struct {
	ServerPort                 string `mapstructure:"SERVER_PORT"`
	DojahWebhookSecret         string `mapstructure:"DOJAH_WEBHOOK_SECRET"`
	BackendAPIBaseURL          string `mapstructure:"BACKEND_API_BASE_URL"`
	BackendVerificationPath    string `mapstructure:"BACKEND_VERIFICATION_PATH"`
	BackendVerificationMethod  string `mapstructure:"BACKEND_VERIFICATION_METHOD"`
	BackendServiceToken        string `mapstructure:"BACKEND_SERVICE_TOKEN"`
	BackendTimeoutSeconds      int    `mapstructure:"BACKEND_TIMEOUT_SECONDS"`
	JWTSecret                  string `mapstructure:"JWT_SECRET"`
	JWTIssuer                  string `mapstructure:"JWT_ISSUER"`
	JWTAudience                string `mapstructure:"JWT_AUDIENCE"`
	AdminRoles                 string `mapstructure:"ADMIN_ROLES"`
	CorrelationIDPrefix        string `mapstructure:"CORRELATION_ID_PREFIX"`
	StagedRecordTTLHours       int    `mapstructure:"STAGED_RECORD_TTL_HOURS"`
	SweepSchedule              string `mapstructure:"SWEEP_SCHEDULE"`
	AutoForward                bool   `mapstructure:"AUTO_FORWARD"`
	DeleteOnForwardSuccess     bool   `mapstructure:"DELETE_ON_FORWARD_SUCCESS"`
	RabbitMQURL                string `mapstructure:"RABBITMQ_URL"`
	VerificationEventsExchange string `mapstructure:"VERIFICATION_EVENTS_EXCHANGE"`
	CORSAllowedOrigins         string `mapstructure:"CORS_ALLOWED_ORIGINS"`
}

// LoadConfig reads configuration from environment variables and an optional
// .env file in the given path.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("BACKEND_VERIFICATION_PATH", "/users/{userId}/verification")
	viper.SetDefault("BACKEND_VERIFICATION_METHOD", "PATCH")
	viper.SetDefault("BACKEND_TIMEOUT_SECONDS", 30)
	viper.SetDefault("ADMIN_ROLES", "Admin")
	viper.SetDefault("STAGED_RECORD_TTL_HOURS", 12)
	viper.SetDefault("SWEEP_SCHEDULE", "@every 1h")
	viper.SetDefault("AUTO_FORWARD", true)
	viper.SetDefault("DELETE_ON_FORWARD_SUCCESS", false)
	viper.SetDefault("VERIFICATION_EVENTS_EXCHANGE", "verification_events")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "https://*,http://*")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("DOJAH_WEBHOOK_SECRET", "DOJAH_WEBHOOK_SECRET", "DOJAH_SECRET_KEY")
	_ = viper.BindEnv("BACKEND_API_BASE_URL", "BACKEND_API_BASE_URL", "API_URL")
	_ = viper.BindEnv("BACKEND_VERIFICATION_PATH")
	_ = viper.BindEnv("BACKEND_VERIFICATION_METHOD")
	_ = viper.BindEnv("BACKEND_SERVICE_TOKEN")
	_ = viper.BindEnv("BACKEND_TIMEOUT_SECONDS")
	_ = viper.BindEnv("JWT_SECRET")
	_ = viper.BindEnv("JWT_ISSUER")
	_ = viper.BindEnv("JWT_AUDIENCE")
	_ = viper.BindEnv("ADMIN_ROLES")
	_ = viper.BindEnv("CORRELATION_ID_PREFIX")
	_ = viper.BindEnv("STAGED_RECORD_TTL_HOURS")
	_ = viper.BindEnv("SWEEP_SCHEDULE")
	_ = viper.BindEnv("AUTO_FORWARD")
	_ = viper.BindEnv("DELETE_ON_FORWARD_SUCCESS")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("VERIFICATION_EVENTS_EXCHANGE")
	_ = viper.BindEnv("CORS_ALLOWED_ORIGINS")

	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
		err = nil
	}

	if err = viper.Unmarshal(&config); err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.DojahWebhookSecret = strings.TrimSpace(config.DojahWebhookSecret)
	config.BackendAPIBaseURL = strings.TrimRight(strings.TrimSpace(config.BackendAPIBaseURL), "/")
	config.BackendServiceToken = strings.TrimSpace(config.BackendServiceToken)
	config.RabbitMQURL = strings.TrimSpace(config.RabbitMQURL)

	if config.BackendTimeoutSeconds <= 0 {
		config.BackendTimeoutSeconds = 30
	}
	if config.StagedRecordTTLHours <= 0 {
		log.Printf("level=warn component=config msg=\"non-positive STAGED_RECORD_TTL_HOURS; using 12\" value=%d", config.StagedRecordTTLHours)
		config.StagedRecordTTLHours = 12
	}
	if strings.TrimSpace(config.SweepSchedule) == "" {
		config.SweepSchedule = "@every 1h"
	}

	return
}

// Validate rejects configurations the service cannot run safely with.
func (c Config) Validate() error {
	var errs []error
	if c.DojahWebhookSecret == "" {
		errs = append(errs, errors.New("DOJAH_WEBHOOK_SECRET is required; webhook signatures are always verified"))
	}
	if c.BackendAPIBaseURL == "" {
		errs = append(errs, errors.New("BACKEND_API_BASE_URL is required"))
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// BackendTimeout is the per-request timeout for backend calls.
func (c Config) BackendTimeout() time.Duration {
	return time.Duration(c.BackendTimeoutSeconds) * time.Second
}

// StagedRecordTTL is the lifetime of a staged webhook.
func (c Config) StagedRecordTTL() time.Duration {
	return time.Duration(c.StagedRecordTTLHours) * time.Hour
}

// AdminRoleList splits ADMIN_ROLES on commas.
func (c Config) AdminRoleList() []string {
	return splitList(c.AdminRoles)
}

// CORSOrigins splits CORS_ALLOWED_ORIGINS on commas.
func (c Config) CORSOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
