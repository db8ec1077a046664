package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the runtime configuration for the service.
type Config struct {
	App struct {
		Port string
		Env  string
	}
	Database struct {
		DSN string
	}
	MercadoPago struct {
		AccessToken string
		PublicKey   string
	}
	NewsAPI struct {
		Key string
	}
	Kafka struct {
		Brokers []string
	}
}

// Load reads configuration from the environment (and a local .env file
// outside production). Missing gateway, news-provider or store credentials
// are a fatal configuration error: the affected functions cannot run at all
// without them.
func Load() (*Config, error) {
	if os.Getenv("APP_ENV") != "production" {
		// A missing .env file is fine; env vars may be set directly.
		_ = godotenv.Load()
	}

	viper.AutomaticEnv()
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("APP_ENV", "development")

	cfg := &Config{}
	cfg.App.Port = viper.GetString("PORT")
	cfg.App.Env = viper.GetString("APP_ENV")
	cfg.Database.DSN = viper.GetString("DATABASE_DSN")
	cfg.MercadoPago.AccessToken = viper.GetString("MP_ACCESS_TOKEN")
	cfg.MercadoPago.PublicKey = viper.GetString("MP_PUBLIC_KEY")
	cfg.NewsAPI.Key = viper.GetString("NEWSAPI_KEY")

	if brokers := viper.GetString("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}

	required := []struct {
		name  string
		value string
	}{
		{"MP_ACCESS_TOKEN", cfg.MercadoPago.AccessToken},
		{"MP_PUBLIC_KEY", cfg.MercadoPago.PublicKey},
		{"NEWSAPI_KEY", cfg.NewsAPI.Key},
		{"DATABASE_DSN", cfg.Database.DSN},
	}
	for _, r := range required {
		if r.value == "" {
			return nil, fmt.Errorf("%s not configured", r.name)
		}
	}

	return cfg, nil
}
