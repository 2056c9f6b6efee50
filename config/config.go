package config

import (
	"errors"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config carries every runtime setting the server needs. It is built once
// in main and passed into the components that use it; nothing reads the
// environment after startup.
type Config struct {
	Port        string
	MongoURI    string
	MongoDB     string
	JWTSecret   string
	TokenTTL    time.Duration
	CORSOrigins []string
	ReleaseMode bool

	RateLimitRPS   float64
	RateLimitBurst int
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	// .env is optional; real deployments set env vars directly.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("MONGODB_URI", "mongodb://127.0.0.1:27017")
	v.SetDefault("MONGODB_NAME", "chronolink")
	v.SetDefault("TOKEN_TTL_HOURS", 24*30)
	v.SetDefault("CORS_ORIGINS", []string{"http://localhost:4200", "http://localhost:3000"})
	v.SetDefault("RATE_LIMIT_RPS", 10.0)
	v.SetDefault("RATE_LIMIT_BURST", 30)

	cfg := &Config{
		Port:           v.GetString("PORT"),
		MongoURI:       v.GetString("MONGODB_URI"),
		MongoDB:        v.GetString("MONGODB_NAME"),
		JWTSecret:      v.GetString("JWT_SECRET"),
		TokenTTL:       time.Duration(v.GetInt("TOKEN_TTL_HOURS")) * time.Hour,
		CORSOrigins:    v.GetStringSlice("CORS_ORIGINS"),
		ReleaseMode:    v.GetString("GIN_MODE") == "release",
		RateLimitRPS:   v.GetFloat64("RATE_LIMIT_RPS"),
		RateLimitBurst: v.GetInt("RATE_LIMIT_BURST"),
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET must be set")
	}

	return cfg, nil
}
