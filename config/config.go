package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/guided-traffic/meetup-client/auth"
)

// Config holds all configuration for the application
type Config struct {
	// Local API
	Port        string
	FrontendURL string

	// Meetup backend
	APIBaseURL  string
	ChatWSURL   string
	AccessToken string
	UserID      string

	// Database
	DBType string // "sqlite", "mysql" or "memory"
	DBPath string // SQLite database path

	// MySQL
	MySQLHost            string
	MySQLPort            int
	MySQLUser            string
	MySQLPassword        string
	MySQLDatabase        string
	MySQLTLSEnabled      bool
	MySQLTLSSkipVerify   bool
	MySQLTLSCACert       string // Path to CA certificate
	MySQLMaxOpenConns    int
	MySQLMaxIdleConns    int
	MySQLConnMaxLifetime time.Duration
	MySQLConnMaxIdleTime time.Duration

	// Badge cache
	RedisURL      string // empty keeps the cache in memory
	BadgeCacheTTL time.Duration

	// Chat connection
	SendQueueSize       int
	ConnectTimeout      time.Duration
	FetchTimeout        time.Duration
	ReconnectBaseDelay  time.Duration
	ReconnectMaxDelay   time.Duration
	ReconnectJitter     float64
	ReconnectMaxRetries int // 0 retries forever
	WSIdleTimeout       time.Duration

	// Local API rate limit
	RatePerMinute int
	RateBurst     int
}

// Load reads configuration from environment variables
func Load() *Config {
	// Load .env file if it exists (for local development)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := fromEnv()
	if err := cfg.validate(); err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	return cfg
}

func fromEnv() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:4200"),

		APIBaseURL:  strings.TrimRight(getEnv("API_BASE_URL", ""), "/"),
		ChatWSURL:   strings.TrimRight(getEnv("CHAT_WS_URL", ""), "/"),
		AccessToken: getEnv("ACCESS_TOKEN", ""),
		UserID:      getEnv("USER_ID", ""),

		DBType: strings.ToLower(getEnv("DB_TYPE", "sqlite")),
		DBPath: getEnv("DB_PATH", "data/meetup-client.db"),

		MySQLHost:            getEnv("MYSQL_HOST", "localhost"),
		MySQLPort:            getEnvAsInt("MYSQL_PORT", 3306),
		MySQLUser:            getEnv("MYSQL_USER", ""),
		MySQLPassword:        getEnv("MYSQL_PASSWORD", ""),
		MySQLDatabase:        getEnv("MYSQL_DATABASE", "meetup_client"),
		MySQLTLSEnabled:      getEnvAsBool("MYSQL_TLS_ENABLED", false),
		MySQLTLSSkipVerify:   getEnvAsBool("MYSQL_TLS_SKIP_VERIFY", false),
		MySQLTLSCACert:       getEnv("MYSQL_TLS_CA_CERT", ""),
		MySQLMaxOpenConns:    getEnvAsInt("MYSQL_MAX_OPEN_CONNS", 10),
		MySQLMaxIdleConns:    getEnvAsInt("MYSQL_MAX_IDLE_CONNS", 2),
		MySQLConnMaxLifetime: getEnvAsDuration("MYSQL_CONN_MAX_LIFETIME", 5*time.Minute),
		MySQLConnMaxIdleTime: getEnvAsDuration("MYSQL_CONN_MAX_IDLE_TIME", 1*time.Minute),

		RedisURL:      getEnv("REDIS_URL", ""),
		BadgeCacheTTL: getEnvAsDuration("BADGE_CACHE_TTL", 5*time.Minute),

		SendQueueSize:       getEnvAsInt("SEND_QUEUE_SIZE", 100),
		ConnectTimeout:      getEnvAsDuration("CONNECT_TIMEOUT", 10*time.Second),
		FetchTimeout:        getEnvAsDuration("FETCH_TIMEOUT", 10*time.Second),
		ReconnectBaseDelay:  getEnvAsDuration("RECONNECT_BASE_DELAY", 500*time.Millisecond),
		ReconnectMaxDelay:   getEnvAsDuration("RECONNECT_MAX_DELAY", 30*time.Second),
		ReconnectJitter:     getEnvAsFloat("RECONNECT_JITTER", 0.2),
		ReconnectMaxRetries: getEnvAsInt("RECONNECT_MAX_RETRIES", 10),
		WSIdleTimeout:       getEnvAsDuration("WS_IDLE_TIMEOUT", 60*time.Second),

		RatePerMinute: getEnvAsInt("LOCAL_API_RATE_PER_MINUTE", 600),
		RateBurst:     getEnvAsInt("LOCAL_API_BURST", 50),
	}
}

// validate checks that all required configuration is present. A missing
// user id is taken from the access token claims.
func (c *Config) validate() error {
	if c.APIBaseURL == "" {
		return errors.New("API_BASE_URL must be set")
	}
	if c.ChatWSURL == "" {
		return errors.New("CHAT_WS_URL must be set")
	}
	switch c.DBType {
	case "sqlite", "mysql", "memory":
	default:
		return errors.New("DB_TYPE must be one of sqlite, mysql, memory")
	}

	if c.AccessToken != "" {
		token, err := auth.ParseAccessToken(c.AccessToken)
		if err != nil {
			log.Printf("WARNING: ACCESS_TOKEN could not be decoded: %v", err)
		} else {
			if token.Expired(time.Now()) {
				log.Printf("WARNING: ACCESS_TOKEN expired at %s", token.ExpiresAt.Format(time.RFC3339))
			}
			if c.UserID == "" {
				c.UserID = token.UserID
			}
		}
	} else {
		log.Println("WARNING: ACCESS_TOKEN is not set - authenticated requests will be rejected")
	}

	if c.UserID == "" {
		return errors.New("USER_ID must be set or derivable from ACCESS_TOKEN")
	}
	return nil
}

// getEnv reads an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvAsInt reads an environment variable as integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvAsFloat reads an environment variable as float or returns a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvAsBool reads an environment variable as boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvAsDuration reads an environment variable as duration or returns a default value
// Supports formats like "5m", "1h", "30s"
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// AllowedOrigins returns the origins the UI may connect from
func (c *Config) AllowedOrigins() []string {
	parts := strings.Split(c.FrontendURL, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
