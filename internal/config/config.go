package config

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {

	// JWT token configuration
	JWTConfig struct {
		ApiSecret        string `envconfig:"API_SECRET"`
		UserExpireHours  int    `envconfig:"USER_EXPIRE_HOURS" default:"24"`
		GuestExpireHours int    `envconfig:"GUEST_EXPIRE_HOURS" default:"2"`
	}

	// Application configuration
	AppConfig struct {
		Port           int      `envconfig:"TUKIO_PORT" default:"5000"`
		Address        string   `envconfig:"TUKIO_ADDRESS"`
		AllowedOrigins []string `envconfig:"TUKIO_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	}

	// Database configuration
	DatabaseConfig struct {
		DatabaseHost                      string `envconfig:"DB_HOST"`
		DatabaseDriver                    string `envconfig:"DB_DRIVER"`
		DatabaseUser                      string `envconfig:"DB_USER"`
		DatabasePassword                  string `envconfig:"DB_PASSWORD"`
		DatabaseName                      string `envconfig:"DB_NAME"`
		DatabasePort                      int32  `envconfig:"DB_PORT"`
		DatabasePoolMaxConnections        int32  `envconfig:"DB_MAX_CON"`
		DatabasePoolMinConnections        int32  `envconfig:"DB_POOL_MIN_CON"`
		DatabasePoolMaxConnectionLifetime int    `envconfig:"DB_POOL_MAX_LIFETIME"`
	}

	// RabbitMQ configuration
	RabbitMQConfig struct {
		RabbitMQUser    string `envconfig:"RABBITMQ_USER"`
		RabbitMQPass    string `envconfig:"RABBITMQ_PASSWORD"`
		RabbitMQAddress string `envconfig:"RABBITMQ_ADDRESS"`
		RabbitMQPort    int    `envconfig:"RABBITMQ_PORT"`
		Exchange        string `envconfig:"RABBITMQ_EXCHANGE"`
	}

	// Redis configuration
	RedisConfig struct {
		RedisAddress    string `envconfig:"REDIS_ADDRESS"`
		RedisPassword   string `envconfig:"REDIS_PASSWORD"`
		RedisDB         int    `envconfig:"REDIS_DB"`
		CacheTTLSeconds int    `envconfig:"REDIS_CACHE_TTL_SECONDS" default:"30"`
	}
}

// The LoadConfig function loads the env file specified and returns
// a valid configuration object ready for use
func LoadConfig() (*Config, error) {
	cfg := Config{}

	// 1. Attempt to load .env file.
	// We ignore the error so it doesn't crash if the file is missing.
	_ = godotenv.Load()

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("Failed to load environment variables: %v", err)
	}

	// The signing secret is loaded exactly once here and handed to the
	// token service through this config object. Nothing else reads it
	// from the environment.
	if cfg.JWTConfig.ApiSecret == "" {
		return nil, fmt.Errorf("API_SECRET must be set before starting the server")
	}

	return &cfg, nil
}
