package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	DBHost     string `env:"DATABASE_HOST" envDefault:"localhost"`
	DBPort     string `env:"DATABASE_PORT" envDefault:"5432"`
	DBUser     string `env:"DATABASE_USER" envDefault:"postgres"`
	DBPassword string `env:"DATABASE_PASSWORD" envDefault:"password"`
	DBName     string `env:"DATABASE_NAME" envDefault:"futuremove"`

	ServerPort string `env:"SERVER_PORT" envDefault:"8080"`
	JWTSecret  string `env:"JWT_SECRET" envDefault:"mysecret"`
}

func NewConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName)
}
