package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTP     HTTPConfig
	MySQL    MySQLConfig
	App      AppConfig
	JWT      JWTConfig
	Session  SessionConfig
	Tokens   TokenConfig
	Password PasswordConfig
	Provider ProviderConfig
	Email    EmailConfig
	Log      LogConfig
}

type HTTPConfig struct {
	Host string
	Port string
}

type MySQLConfig struct {
	DSN string
}

type AppConfig struct {
	// BaseURL is the externally reachable origin used to build callback and reset links.
	BaseURL string
}

type JWTConfig struct {
	Secret string
	TTL    time.Duration
}

type SessionConfig struct {
	TTL           time.Duration
	SweepInterval time.Duration
	CookieName    string
	CookieSecure  bool
}

type TokenConfig struct {
	ResetTTL time.Duration
}

type PasswordConfig struct {
	Policy PasswordPolicy
	// BcryptCost must stay at or above bcrypt.DefaultCost outside of tests.
	BcryptCost          int
	MaxConcurrentHashes int
}

type ProviderConfig struct {
	Name      string
	APIBase   string
	APIHost   string
	APIKey    string
	Providers []string
	LinkTTL   time.Duration
	Timeout   time.Duration
}

// Configured reports whether every value required to request a hosted link is present.
func (p ProviderConfig) Configured() bool {
	return p.APIBase != "" && p.APIHost != "" && p.APIKey != ""
}

type EmailConfig struct {
	SMTPHost string
	SMTPPort string
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

type PasswordPolicy struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireNumber    bool
	RequireSpecial   bool
}

func (p PasswordPolicy) Validate(password string) error {
	if len(password) < p.MinLength {
		return fmt.Errorf("password must be at least %d characters long", p.MinLength)
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasNumber = true
		case unicode.IsPunct(ch) || unicode.IsSymbol(ch):
			hasSpecial = true
		}
	}

	var missing []string
	if p.RequireUppercase && !hasUpper {
		missing = append(missing, "uppercase letter")
	}
	if p.RequireLowercase && !hasLower {
		missing = append(missing, "lowercase letter")
	}
	if p.RequireNumber && !hasNumber {
		missing = append(missing, "number")
	}
	if p.RequireSpecial && !hasSpecial {
		missing = append(missing, "special character")
	}

	if len(missing) > 0 {
		return fmt.Errorf("password must contain at least one: %s", strings.Join(missing, ", "))
	}

	return nil
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignores error if not found)
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable is required")
	}

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	return &Config{
		HTTP: HTTPConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8000"),
		},
		MySQL: MySQLConfig{
			DSN: mysqlDSN,
		},
		App: AppConfig{
			BaseURL: strings.TrimRight(getEnv("APP_BASE_URL", "http://127.0.0.1:8000"), "/"),
		},
		JWT: JWTConfig{
			Secret: jwtSecret,
			TTL:    getDurationEnv("JWT_TTL", 24*time.Hour),
		},
		Session: SessionConfig{
			TTL:           getDurationEnv("SESSION_TTL", 24*time.Hour),
			SweepInterval: getDurationEnv("SESSION_SWEEP_INTERVAL", time.Hour),
			CookieName:    getEnv("SESSION_COOKIE_NAME", "session_id"),
			CookieSecure:  getBoolEnv("SESSION_COOKIE_SECURE", false),
		},
		Tokens: TokenConfig{
			ResetTTL: getDurationEnv("RESET_TOKEN_TTL", 30*time.Minute),
		},
		Password: PasswordConfig{
			Policy:              loadPasswordPolicy(),
			BcryptCost:          getIntEnv("BCRYPT_COST", 12),
			MaxConcurrentHashes: getIntEnv("PASSWORD_MAX_CONCURRENT_HASHES", 8),
		},
		Provider: loadProviderConfig(),
		Email: EmailConfig{
			SMTPHost: os.Getenv("SMTP_HOST"),
			SMTPPort: getEnv("SMTP_PORT", "587"),
			Username: os.Getenv("SMTP_USERNAME"),
			Password: os.Getenv("SMTP_PASSWORD"),
			From:     getEnv("EMAIL_FROM", "no-reply@localhost"),
			Timeout:  getSecondsEnv("EMAIL_TIMEOUT", 15*time.Second),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
	}, nil
}

func (c *Config) DSN() string {
	return c.MySQL.DSN
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getDurationEnv reads a number of minutes.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getListEnv(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}

func loadPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:        getIntEnv("PASSWORD_MIN_LENGTH", 8),
		RequireUppercase: getBoolEnv("PASSWORD_REQUIRE_UPPERCASE", false),
		RequireLowercase: getBoolEnv("PASSWORD_REQUIRE_LOWERCASE", false),
		RequireNumber:    getBoolEnv("PASSWORD_REQUIRE_NUMBER", false),
		RequireSpecial:   getBoolEnv("PASSWORD_REQUIRE_SPECIAL", false),
	}
}

func loadProviderConfig() ProviderConfig {
	return ProviderConfig{
		Name:      getEnv("UNIPILE_PROVIDER_TAG", "LINKEDIN"),
		APIBase:   strings.TrimRight(os.Getenv("UNIPILE_API_BASE"), "/"),
		APIHost:   strings.TrimRight(os.Getenv("UNIPILE_API_HOST"), "/"),
		APIKey:    os.Getenv("UNIPILE_API_KEY"),
		Providers: getListEnv("UNIPILE_PROVIDERS", []string{"LINKEDIN"}),
		LinkTTL:   getDurationEnv("UNIPILE_LINK_TTL", 15*time.Minute),
		Timeout:   getSecondsEnv("UNIPILE_TIMEOUT", 30*time.Second),
	}
}
