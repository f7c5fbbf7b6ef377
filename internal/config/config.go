package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName                string
	AppEnv                 string
	AppPort                string
	LogLevel               string
	DatabaseURL            string
	RedisURL               string
	NATSURL                string
	EventsChannel          string
	JWTSecret              string
	CloudinaryCloudName    string
	CloudinaryAPIKey       string
	CloudinaryAPISecret    string
	CloudinaryUploadFolder string
	CatalogCacheTTL        time.Duration
	UploadMaxSizeMB        int
	AllowOrigins           []string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("GEMA")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "GEMA Skills API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("events.channel", "gema:skills")
	v.SetDefault("cloudinary.folder", "gema/skills")
	v.SetDefault("catalog.cache_ttl", "10m")
	v.SetDefault("upload.max_size_mb", 10)
	v.SetDefault("cors.allow_origins", "*")

	ttl, err := time.ParseDuration(v.GetString("catalog.cache_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid catalog cache ttl: %w", err)
	}

	cfg := Config{
		AppName:                v.GetString("app.name"),
		AppEnv:                 v.GetString("app.env"),
		AppPort:                v.GetString("app.port"),
		LogLevel:               strings.ToLower(v.GetString("log.level")),
		DatabaseURL:            v.GetString("database.url"),
		RedisURL:               v.GetString("redis.url"),
		NATSURL:                v.GetString("nats.url"),
		EventsChannel:          v.GetString("events.channel"),
		JWTSecret:              v.GetString("jwt.secret"),
		CloudinaryCloudName:    v.GetString("cloudinary.cloud_name"),
		CloudinaryAPIKey:       v.GetString("cloudinary.api_key"),
		CloudinaryAPISecret:    v.GetString("cloudinary.api_secret"),
		CloudinaryUploadFolder: v.GetString("cloudinary.folder"),
		CatalogCacheTTL:        ttl,
		UploadMaxSizeMB:        v.GetInt("upload.max_size_mb"),
		AllowOrigins:           splitList(v.GetString("cors.allow_origins")),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("database url must be provided")
	}
	if cfg.UploadMaxSizeMB <= 0 {
		cfg.UploadMaxSizeMB = 10
	}

	return cfg, nil
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
