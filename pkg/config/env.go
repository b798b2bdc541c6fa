package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

const (
	EnvLocal       = "local"
	EnvDevelopment = "development"
)

// LoadEnv loads environment variables from .env.local if APP_ENV is "local"
func LoadEnv() string {
	appEnv := os.Getenv("APP_ENV")
	if appEnv == "" {
		appEnv = EnvDevelopment
		os.Setenv("APP_ENV", appEnv)
	}

	if appEnv != EnvLocal {
		return appEnv
	}
	if err := godotenv.Load(".env.local"); err != nil {
		log.Printf("Warning: .env.local not loaded (%v), relying on system environment variables.", err)
	}
	return appEnv
}
