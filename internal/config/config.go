package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Scraper  ScraperConfig
	Parser   ParserConfig
}

type ServerConfig struct {
	Port int
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	MaxConns int32
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Stream   string
}

type ScraperConfig struct {
	BaseURL           string
	Headless          bool
	RequestsPerMinute int
	MinDelay          time.Duration
	MaxDelay          time.Duration
	WaitTimeout       time.Duration
	MaxAttempts       int
	RetryDelay        time.Duration
	ResultsPerSearch  int
}

type ParserConfig struct {
	// Kind selects the constraint parser: "regex" or "llm".
	Kind            string
	AnthropicAPIKey string
	Model           string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvInt("PORT", 8080),
		},
		Database: DatabaseConfig{
			Enabled:  getEnvBool("HISTORY_ENABLED", false),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "shopping_agent"),
			MaxConns: int32(getEnvInt("DB_MAX_CONNS", 10)),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("EVENTS_ENABLED", false),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			Stream:   getEnv("REDIS_STREAM", "stream:shopping_turns"),
		},
		Scraper: ScraperConfig{
			BaseURL:           getEnv("SCRAPER_BASE_URL", "https://www.amazon.com"),
			Headless:          getEnvBool("SCRAPER_HEADLESS", true),
			RequestsPerMinute: getEnvInt("SCRAPER_REQUESTS_PER_MINUTE", 15),
			MinDelay:          getEnvDuration("SCRAPER_MIN_DELAY", 2*time.Second),
			MaxDelay:          getEnvDuration("SCRAPER_MAX_DELAY", 6*time.Second),
			WaitTimeout:       getEnvDuration("SCRAPER_WAIT_TIMEOUT", 10*time.Second),
			MaxAttempts:       getEnvInt("SCRAPER_MAX_ATTEMPTS", 3),
			RetryDelay:        getEnvDuration("SCRAPER_RETRY_DELAY", 5*time.Second),
			ResultsPerSearch:  getEnvInt("SCRAPER_RESULTS_PER_SEARCH", 10),
		},
		Parser: ParserConfig{
			Kind:            getEnv("PARSER_KIND", "regex"),
			AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
			Model:           getEnv("PARSER_MODEL", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Scraper.BaseURL == "" {
		return fmt.Errorf("scraper base URL is required")
	}
	if c.Scraper.MaxAttempts < 1 {
		return fmt.Errorf("at least 1 scrape attempt is required")
	}
	if c.Scraper.MinDelay > c.Scraper.MaxDelay {
		return fmt.Errorf("scraper min delay exceeds max delay")
	}
	if c.Parser.Kind != "regex" && c.Parser.Kind != "llm" {
		return fmt.Errorf("unknown parser kind: %q", c.Parser.Kind)
	}
	if c.Parser.Kind == "llm" && c.Parser.AnthropicAPIKey == "" {
		return fmt.Errorf("llm parser requires ANTHROPIC_API_KEY")
	}
	if c.Database.Enabled && c.Database.Name == "" {
		return fmt.Errorf("database name is required when history is enabled")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
