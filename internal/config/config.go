/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * Secrets (API keys, mail server credentials) are not configured here; they are
 * fetched from AWS Secrets Manager at startup by the secrets package. This
 * package only carries the knobs needed to reach them.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the webhook service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort string `mapstructure:"SERVER_PORT"`
	AWSRegion  string `mapstructure:"AWS_REGION"`
	SecretID   string `mapstructure:"SECRET_ID"`
	Platform   string `mapstructure:"PLATFORM"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`
	TestMode   bool   `mapstructure:"TEST_MODE"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("AWS_REGION", "ap-southeast-2")
	viper.SetDefault("SECRET_ID", "chargebee-secrets")
	viper.SetDefault("PLATFORM", "pc5")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("TEST_MODE", false)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("AWS_REGION")
	_ = viper.BindEnv("SECRET_ID")
	_ = viper.BindEnv("PLATFORM")
	_ = viper.BindEnv("LOG_LEVEL")
	_ = viper.BindEnv("TEST_MODE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.Platform = strings.TrimSpace(config.Platform)
	if config.Platform == "" {
		config.Platform = "pc5"
	}

	return
}
