package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	Port        string `mapstructure:"PORT"`
	Env         string `mapstructure:"ENV"`
	GinMode     string `mapstructure:"GIN_MODE"`
	LogLevel    string `mapstructure:"LOG_LEVEL"`
	FrontendURL string `mapstructure:"FRONTEND_URL"`

	// Comma separated CIDRs whose X-Forwarded-For is believed.
	TrustedProxies string `mapstructure:"TRUSTED_PROXIES"`

	// Postgres. DATABASE_URL wins over the individual DB_* values.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	DBHost      string `mapstructure:"DB_HOST"`
	DBPort      string `mapstructure:"DB_PORT"`
	DBUser      string `mapstructure:"DB_USER"`
	DBPassword  string `mapstructure:"DB_PASSWORD"`
	DBName      string `mapstructure:"DB_NAME"`
	DBSSLMode   string `mapstructure:"DB_SSLMODE"`

	// Amadeus inventory API.
	AmadeusEnv          string  `mapstructure:"AMADEUS_ENV"`
	AmadeusBaseURL      string  `mapstructure:"AMADEUS_BASE_URL"`
	AmadeusClientID     string  `mapstructure:"AMADEUS_CLIENT_ID"`
	AmadeusClientSecret string  `mapstructure:"AMADEUS_CLIENT_SECRET"`
	InventoryTimeoutSec int     `mapstructure:"INVENTORY_TIMEOUT_SECONDS"`
	InventoryRPS        float64 `mapstructure:"INVENTORY_RPS"`
	InventoryMaxRetries int     `mapstructure:"INVENTORY_MAX_RETRIES"`
	InventoryBackoffMs  int     `mapstructure:"INVENTORY_BACKOFF_MS"`
	InventoryPauseMs    int     `mapstructure:"INVENTORY_PAUSE_MS"`
	InventoryProbePath  string  `mapstructure:"INVENTORY_PROBE_PATH"`

	// Search tuning.
	FlightMaxOffers    int    `mapstructure:"FLIGHT_MAX_OFFERS"`
	MaxResults         int    `mapstructure:"MAX_RESULTS"`
	HotelMaxResults    int    `mapstructure:"HOTEL_MAX_RESULTS"`
	HotelMaxCandidates int    `mapstructure:"HOTEL_MAX_CANDIDATES"`
	HotelRetryAttempts int    `mapstructure:"HOTEL_RETRY_ATTEMPTS"`
	HotelRetryDelayMs  int    `mapstructure:"HOTEL_RETRY_DELAY_MS"`
	CabinPolicy        string `mapstructure:"CABIN_POLICY"`

	// Prompt interpretation.
	PromptStrategy string `mapstructure:"PROMPT_STRATEGY"`
	DateStrategy   string `mapstructure:"DATE_STRATEGY"`
	HFAPIKey       string `mapstructure:"HUGGINGFACE_API_KEY"`
	HFModel        string `mapstructure:"HF_MODEL"`
	OpenAIAPIKey   string `mapstructure:"OPENAI_API_KEY"`
	OpenAIModel    string `mapstructure:"OPENAI_MODEL"`

	// Redis, used as a shared location-code cache when REDIS_ADDR is set.
	RedisAddr             string `mapstructure:"REDIS_ADDR"`
	RedisPassword         string `mapstructure:"REDIS_PASSWORD"`
	RedisDB               int    `mapstructure:"REDIS_DB"`
	LocationCacheTTLHours int    `mapstructure:"LOCATION_CACHE_TTL_HOURS"`

	OfferCacheTTLMinutes  int `mapstructure:"OFFER_CACHE_TTL_MINUTES"`
	RequestTimeoutSeconds int `mapstructure:"REQUEST_TIMEOUT_SECONDS"`
	RateLimitPerMinute    int `mapstructure:"RATE_LIMIT_PER_MINUTE"`
}

var defaults = map[string]any{
	"PORT":                      "8080",
	"ENV":                       "development",
	"GIN_MODE":                  "",
	"LOG_LEVEL":                 "info",
	"FRONTEND_URL":              "",
	"TRUSTED_PROXIES":           "",
	"DATABASE_URL":              "",
	"DB_HOST":                   "localhost",
	"DB_PORT":                   "5432",
	"DB_USER":                   "postgres",
	"DB_PASSWORD":               "postgres",
	"DB_NAME":                   "travelagent",
	"DB_SSLMODE":                "disable",
	"AMADEUS_ENV":               "test",
	"AMADEUS_BASE_URL":          "",
	"AMADEUS_CLIENT_ID":         "",
	"AMADEUS_CLIENT_SECRET":     "",
	"INVENTORY_TIMEOUT_SECONDS": 30,
	"INVENTORY_RPS":             10.0,
	"INVENTORY_MAX_RETRIES":     3,
	"INVENTORY_BACKOFF_MS":      1000,
	"INVENTORY_PAUSE_MS":        500,
	"INVENTORY_PROBE_PATH":      "/v1/reference-data/airlines?airlineCodes=BA",
	"FLIGHT_MAX_OFFERS":         5,
	"MAX_RESULTS":               5,
	"HOTEL_MAX_RESULTS":         5,
	"HOTEL_MAX_CANDIDATES":      50,
	"HOTEL_RETRY_ATTEMPTS":      3,
	"HOTEL_RETRY_DELAY_MS":      2000,
	"CABIN_POLICY":              "filter",
	"PROMPT_STRATEGY":           "rules",
	"DATE_STRATEGY":             "pattern",
	"HUGGINGFACE_API_KEY":       "",
	"HF_MODEL":                  "mistralai/Mistral-7B-Instruct-v0.3",
	"OPENAI_API_KEY":            "",
	"OPENAI_MODEL":              "gpt-4o-mini",
	"REDIS_ADDR":                "",
	"REDIS_PASSWORD":            "",
	"REDIS_DB":                  0,
	"LOCATION_CACHE_TTL_HOURS":  24,
	"OFFER_CACHE_TTL_MINUTES":   30,
	"REQUEST_TIMEOUT_SECONDS":   60,
	"RATE_LIMIT_PER_MINUTE":     120,
}

// Load reads .env (if any), an optional config.yaml and the environment.
func Load() (Config, error) {
	// .env is optional; in production the variables are set directly.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

// IsProduction reports whether ENV is "production".
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// InventoryBaseURL picks the Amadeus host. An explicit AMADEUS_BASE_URL wins.
func (c Config) InventoryBaseURL() string {
	if c.AmadeusBaseURL != "" {
		return strings.TrimRight(c.AmadeusBaseURL, "/")
	}
	if c.AmadeusEnv == "production" {
		return "https://api.amadeus.com"
	}
	return "https://test.api.amadeus.com"
}

// DSN builds the Postgres connection string.
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

// AllowedOrigins returns the local dev origins plus FRONTEND_URL (comma separated).
func (c Config) AllowedOrigins() []string {
	origins := []string{"http://localhost:5173", "http://localhost:3000"}
	return append(origins, splitList(c.FrontendURL)...)
}

// Proxies returns TRUSTED_PROXIES as a list; nil trusts no proxy.
func (c Config) Proxies() []string {
	return splitList(c.TrustedProxies)
}

func splitList(s string) []string {
	var out []string
	for _, u := range strings.Split(s, ",") {
		u = strings.TrimSpace(u)
		if u != "" {
			out = append(out, u)
		}
	}
	return out
}

func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func (c Config) InventoryTimeout() time.Duration {
	return time.Duration(c.InventoryTimeoutSec) * time.Second
}

func (c Config) InventoryBackoff() time.Duration {
	return time.Duration(c.InventoryBackoffMs) * time.Millisecond
}

func (c Config) InventoryPause() time.Duration {
	return time.Duration(c.InventoryPauseMs) * time.Millisecond
}

func (c Config) HotelRetryDelay() time.Duration {
	return time.Duration(c.HotelRetryDelayMs) * time.Millisecond
}

func (c Config) LocationCacheTTL() time.Duration {
	return time.Duration(c.LocationCacheTTLHours) * time.Hour
}

func (c Config) OfferCacheTTL() time.Duration {
	return time.Duration(c.OfferCacheTTLMinutes) * time.Minute
}
