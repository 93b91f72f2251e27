// Package config provides configuration management for the application.
package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	Server  ServerConfig
	Cache   CacheConfig
	Weather WeatherConfig
	Drug    DrugConfig
	Sports  SportsConfig
	Pubmed  PubmedConfig
	Naver   NaverConfig
	Seoul   SeoulConfig
	History HistoryConfig
}

// HistoryConfig holds the chat history sink configuration. An empty path
// disables persistence; answers are then kept only in process memory.
type HistoryConfig struct {
	DBPath string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port           string
	MetricsEnabled bool
	// LogPretty switches the JSON log handler for a colorized console one.
	LogPretty bool
}

// CacheConfig holds cache layer configuration. RedisURL empty means the
// durable layer is disabled and answers live only in process memory.
type CacheConfig struct {
	RedisURL   string
	KeyPrefix  string
	PromoteTTL time.Duration
}

// WeatherConfig holds OpenWeatherMap configuration (appid query param).
type WeatherConfig struct {
	APIKey string
}

// DrugConfig holds the MFDS easy-drug-info service configuration
// (serviceKey query param).
type DrugConfig struct {
	ServiceKey string
	// FallbackEnabled routes zero-item registry answers to a web-search
	// summary of the same shape.
	FallbackEnabled bool
}

// SportsConfig holds football-data.org configuration (X-Auth-Token header).
type SportsConfig struct {
	APIToken string
}

// PubmedConfig holds NCBI E-utilities configuration. The api_key is
// optional; without it NCBI applies a lower rate limit.
type PubmedConfig struct {
	APIKey string
}

// NaverConfig holds the Naver Open API credential pair and its daily
// request ceiling.
type NaverConfig struct {
	ClientID     string
	ClientSecret string
	DailyCeiling int
}

// SeoulConfig holds the Seoul open-data portal key (embedded in the URL
// path, not a query param).
type SeoulConfig struct {
	APIKey string
}

// Load reads configuration from .env file and environment.
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig() // .env file is optional

	viper.SetDefault("PORT", "8080")
	viper.SetDefault("METRICS_ENABLED", true)
	viper.SetDefault("CACHE_KEY_PREFIX", "chatpilot:")
	viper.SetDefault("CACHE_PROMOTE_TTL", 60)
	viper.SetDefault("NAVER_DAILY_CEILING", 25000)
	viper.SetDefault("DRUG_FALLBACK_ENABLED", true)

	viper.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port:           viper.GetString("PORT"),
			MetricsEnabled: viper.GetBool("METRICS_ENABLED"),
			LogPretty:      viper.GetBool("LOG_PRETTY"),
		},
		Cache: CacheConfig{
			RedisURL:   viper.GetString("REDIS_URL"),
			KeyPrefix:  viper.GetString("CACHE_KEY_PREFIX"),
			PromoteTTL: time.Duration(viper.GetInt("CACHE_PROMOTE_TTL")) * time.Second,
		},
		Weather: WeatherConfig{
			APIKey: viper.GetString("OPENWEATHER_API_KEY"),
		},
		Drug: DrugConfig{
			ServiceKey:      viper.GetString("MFDS_SERVICE_KEY"),
			FallbackEnabled: viper.GetBool("DRUG_FALLBACK_ENABLED"),
		},
		Sports: SportsConfig{
			APIToken: viper.GetString("FOOTBALL_DATA_TOKEN"),
		},
		Pubmed: PubmedConfig{
			APIKey: viper.GetString("NCBI_API_KEY"),
		},
		Naver: NaverConfig{
			ClientID:     viper.GetString("NAVER_CLIENT_ID"),
			ClientSecret: viper.GetString("NAVER_CLIENT_SECRET"),
			DailyCeiling: viper.GetInt("NAVER_DAILY_CEILING"),
		},
		Seoul: SeoulConfig{
			APIKey: viper.GetString("SEOUL_OPENDATA_KEY"),
		},
		History: HistoryConfig{
			DBPath: viper.GetString("HISTORY_DB_PATH"),
		},
	}

	return cfg, nil
}

// QuotaCeilings returns the per-provider daily ceilings for the quota
// tracker. Only quota-bounded providers appear here.
func (c *Config) QuotaCeilings() map[string]int {
	return map[string]int{
		"naver": c.Naver.DailyCeiling,
	}
}
