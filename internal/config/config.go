package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"nutricoach/internal/pkg/jwt"
	"nutricoach/internal/pkg/password"

	"github.com/joho/godotenv"
)

const (
	defaultJWTSecret        = "default_secret"
	defaultJWTRefreshSecret = "default_refresh_secret"
)

// Config holds all configuration for the application
type Config struct {
	AppMode  string
	Port     string
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Cookie   CookieConfig
	Security SecurityConfig
	Cron     CronConfig
	Seed     SeedConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// RedisConfig holds the shared counter store configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// JWTConfig holds token signing configuration
type JWTConfig struct {
	Secret           string
	RefreshSecret    string
	Issuer           string
	AccessTokenMins  int
	RefreshTokenDays int
}

// CookieConfig holds auth cookie configuration
type CookieConfig struct {
	Secure   bool
	SameSite string
	Domain   string
}

// SecurityConfig holds password hashing and login lockout settings
type SecurityConfig struct {
	BcryptCost       int
	LoginMaxAttempts int
	LoginLockoutMins int
	AuthRatePerMin   int
}

// CronConfig holds scheduled job configuration
type CronConfig struct {
	LedgerPurgeSchedule string
}

// SeedConfig holds the bootstrap administrator
type SeedConfig struct {
	AdminEmail    string
	AdminPassword string
}

// Load reads configuration from .env file and environment variables
func Load() (*Config, error) {
	// Load .env file (ignore error if file doesn't exist in production)
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using environment variables")
	}

	config, err := FromEnv()
	if err != nil {
		return nil, err
	}

	log.Printf("✅ Configuration loaded successfully [MODE: %s]", config.AppMode)
	return config, nil
}

// FromEnv builds and validates configuration from the process environment
func FromEnv() (*Config, error) {
	// Get APP_MODE (default to "dev") - trim spaces for Windows compatibility
	appMode := strings.TrimSpace(getEnv("APP_MODE", "dev"))
	if appMode != "dev" && appMode != "prod" {
		return nil, fmt.Errorf("invalid APP_MODE: '%s' (must be 'dev' or 'prod')", appMode)
	}

	config := &Config{
		AppMode:  appMode,
		Port:     getEnv("PORT", "3000"),
		Database: loadDatabaseConfig(appMode),
		Redis:    loadRedisConfig(),
		JWT:      loadJWTConfig(appMode),
		Cookie:   loadCookieConfig(appMode),
		Security: loadSecurityConfig(),
		Cron: CronConfig{
			LedgerPurgeSchedule: getEnv("LEDGER_PURGE_SCHEDULE", "@hourly"),
		},
		Seed: SeedConfig{
			AdminEmail:    getEnv("SEED_ADMIN_EMAIL", ""),
			AdminPassword: getEnv("SEED_ADMIN_PASSWORD", ""),
		},
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Validate rejects settings that are unsafe for the current mode
func (c *Config) Validate() error {
	var errs []error

	if c.JWT.AccessTokenMins <= 0 {
		errs = append(errs, errors.New("ACCESS_TOKEN_MINUTES must be positive"))
	}
	if c.JWT.RefreshTokenDays <= 0 {
		errs = append(errs, errors.New("REFRESH_TOKEN_DAYS must be positive"))
	}
	switch strings.ToLower(c.Cookie.SameSite) {
	case "lax", "strict":
	case "none":
		if !c.Cookie.Secure {
			errs = append(errs, errors.New("COOKIE_SAMESITE=none requires secure cookies"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid COOKIE_SAMESITE: '%s'", c.Cookie.SameSite))
	}

	if c.IsProd() {
		if c.JWT.Secret == defaultJWTSecret || len(c.JWT.Secret) < 32 {
			errs = append(errs, errors.New("PROD_JWT_SECRET must be set to at least 32 characters"))
		}
		if c.JWT.RefreshSecret == defaultJWTRefreshSecret {
			errs = append(errs, errors.New("PROD_JWT_REFRESH_SECRET must not use the default value"))
		}
		if !c.Cookie.Secure {
			errs = append(errs, errors.New("PROD_COOKIE_SECURE must be true"))
		}
	}

	return errors.Join(errs...)
}

// loadDatabaseConfig loads database config based on mode
func loadDatabaseConfig(mode string) DatabaseConfig {
	prefix := modePrefix(mode)

	return DatabaseConfig{
		Host:     getEnv(prefix+"DB_HOST", "localhost"),
		Port:     getEnv(prefix+"DB_PORT", "3306"),
		User:     getEnv(prefix+"DB_USER", "root"),
		Password: getEnv(prefix+"DB_PASS", ""),
		DBName:   getEnv(prefix+"DB_NAME", "nutricoach"),
	}
}

// loadRedisConfig loads the Redis connection; empty address disables it
func loadRedisConfig() RedisConfig {
	db, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))

	return RedisConfig{
		Addr:     getEnv("REDIS_ADDR", ""),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       db,
	}
}

// loadJWTConfig loads JWT config based on mode
func loadJWTConfig(mode string) JWTConfig {
	prefix := modePrefix(mode)

	accessMins, _ := strconv.Atoi(getEnv("ACCESS_TOKEN_MINUTES", "15"))
	refreshDays, _ := strconv.Atoi(getEnv("REFRESH_TOKEN_DAYS", "30"))

	secret := getEnv(prefix+"JWT_SECRET", defaultJWTSecret)
	refreshSecret := getEnv(prefix+"JWT_REFRESH_SECRET", "")
	if refreshSecret == "" {
		refreshSecret = secret
	}

	return JWTConfig{
		Secret:           secret,
		RefreshSecret:    refreshSecret,
		Issuer:           getEnv("JWT_ISSUER", jwt.DefaultIssuer),
		AccessTokenMins:  accessMins,
		RefreshTokenDays: refreshDays,
	}
}

// loadCookieConfig loads cookie config based on mode
func loadCookieConfig(mode string) CookieConfig {
	prefix := modePrefix(mode)

	secure, _ := strconv.ParseBool(getEnv(prefix+"COOKIE_SECURE", strconv.FormatBool(mode == "prod")))

	return CookieConfig{
		Secure:   secure,
		SameSite: getEnv("COOKIE_SAMESITE", "lax"),
		Domain:   getEnv("COOKIE_DOMAIN", ""),
	}
}

// loadSecurityConfig loads hashing and lockout settings
func loadSecurityConfig() SecurityConfig {
	cost, _ := strconv.Atoi(getEnv("BCRYPT_COST", strconv.Itoa(password.DefaultCost)))
	maxAttempts, _ := strconv.Atoi(getEnv("LOGIN_MAX_ATTEMPTS", "5"))
	lockoutMins, _ := strconv.Atoi(getEnv("LOGIN_LOCKOUT_MINUTES", "15"))
	authRate, _ := strconv.Atoi(getEnv("AUTH_RATE_LIMIT", "10"))

	return SecurityConfig{
		BcryptCost:       cost,
		LoginMaxAttempts: maxAttempts,
		LoginLockoutMins: lockoutMins,
		AuthRatePerMin:   authRate,
	}
}

func modePrefix(mode string) string {
	if mode == "prod" {
		return "PROD_"
	}
	return "DEV_"
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// IsDev returns true if running in development mode
func (c *Config) IsDev() bool {
	return c.AppMode == "dev"
}

// IsProd returns true if running in production mode
func (c *Config) IsProd() bool {
	return c.AppMode == "prod"
}

// AccessTTL returns the access token lifetime
func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.JWT.AccessTokenMins) * time.Minute
}

// RefreshTTL returns the refresh token lifetime
func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(c.JWT.RefreshTokenDays) * 24 * time.Hour
}

// LoginLockout returns the failed-login counting window
func (c *Config) LoginLockout() time.Duration {
	return time.Duration(c.Security.LoginLockoutMins) * time.Minute
}

// TokenConfig returns the token manager configuration
func (c *Config) TokenConfig() jwt.Config {
	return jwt.Config{
		AccessSecret:  c.JWT.Secret,
		RefreshSecret: c.JWT.RefreshSecret,
		Issuer:        c.JWT.Issuer,
		AccessTTL:     c.AccessTTL(),
		RefreshTTL:    c.RefreshTTL(),
	}
}

// GetAllowedOrigins returns allowed origins for CORS
func (c *Config) GetAllowedOrigins() string {
	origins := getEnv("ALLOWED_ORIGINS", "")
	if origins == "" {
		if c.IsDev() {
			return "*"
		}
		// Default production origins
		return "https://app.nutricoach.io"
	}
	return origins
}
