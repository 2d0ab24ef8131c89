// Package config loads runtime settings from the environment (and a .env file
// when one is present) and opens the database they point at.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Config struct {
	Port              string `mapstructure:"PORT"`
	GinMode           string `mapstructure:"GIN_MODE"`
	DBDriver          string `mapstructure:"DB_DRIVER"`
	DBDSN             string `mapstructure:"DB_DSN"`
	JWTSecret         string `mapstructure:"JWT_SECRET"`
	JWTTTLHours       int    `mapstructure:"JWT_TTL_HOURS"`
	CORSAllowedOrigin string `mapstructure:"CORS_ALLOWED_ORIGIN"`
	RateLimitPerSec   int    `mapstructure:"RATE_LIMIT_PER_SECOND"`
	RateLimitBurst    int    `mapstructure:"RATE_LIMIT_BURST"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
}

var defaults = map[string]interface{}{
	"PORT":                  "8080",
	"GIN_MODE":              "debug",
	"DB_DRIVER":             "mysql",
	"DB_DSN":                "root:root@tcp(127.0.0.1:3306)/agrimarket?charset=utf8mb4&parseTime=True&loc=Local",
	"JWT_SECRET":            "",
	"JWT_TTL_HOURS":         24,
	"CORS_ALLOWED_ORIGIN":   "http://localhost:5173",
	"RATE_LIMIT_PER_SECOND": 50,
	"RATE_LIMIT_BURST":      100,
	"LOG_LEVEL":             "info",
}

// Load reads dir/.env if it exists and then the process environment, which
// wins over the file.
func Load(dir string) (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load(filepath.Join(dir, ".env"))

	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case "mysql", "sqlite":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (want mysql or sqlite)", c.DBDriver)
	}
	if c.DBDSN == "" {
		return errors.New("DB_DSN is required")
	}
	if c.GinMode == "release" && c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required in release mode")
	}
	if c.RateLimitPerSec <= 0 || c.RateLimitBurst <= 0 {
		return errors.New("rate limit settings must be positive")
	}
	return nil
}

func (c *Config) JWTTTL() time.Duration {
	return time.Duration(c.JWTTTLHours) * time.Hour
}

// InitDB opens the configured database.
func InitDB(cfg *Config) (*gorm.DB, error) {
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.DBDriver {
	case "sqlite":
		db, err = gorm.Open(sqlite.Open(cfg.DBDSN), gormCfg)
	default:
		db, err = gorm.Open(mysql.Open(cfg.DBDSN), gormCfg)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", cfg.DBDriver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if cfg.DBDriver == "sqlite" {
		// sqlite allows one writer; serialise through a single connection
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}
	return db, nil
}
