package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"signalboard/pkg/logger"
)

// Config holds all runtime settings, loaded from the environment.
type Config struct {
	Port         string
	Environment  string
	DBPath       string
	Symbols      []string
	Equity       float64
	RiskPct      float64
	Period       string
	Interval     string
	CycleSeconds int
	AutoTrade    bool

	VAPIDSubject    string
	VAPIDPublicKey  string
	VAPIDPrivateKey string

	AlpacaKey     string
	AlpacaSecret  string
	AlpacaBaseURL string
}

var AppConfig *Config
var DB *gorm.DB

// LoadConfig loads environment variables, reading .env first if present.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using environment variables")
	}

	cfg := &Config{
		Port:         getEnv("PORT", "8000"),
		Environment:  getEnv("ENVIRONMENT", "development"),
		DBPath:       getEnv("DB_PATH", "signalboard.db"),
		Symbols:      splitSymbols(getEnv("SYMBOLS", "AAPL,MSFT,BTC-USD,ETH-USD")),
		Equity:       getEnvFloat("ACCOUNT_EQUITY", 10000),
		RiskPct:      getEnvFloat("RISK_PER_TRADE_PCT", 1.0),
		Period:       getEnv("PERIOD", "6mo"),
		Interval:     getEnv("INTERVAL", "1d"),
		CycleSeconds: getEnvInt("CYCLE_SECONDS", 60),
		AutoTrade:    getEnvBool("AUTO_TRADE", false),

		VAPIDSubject:    getEnv("VAPID_SUBJECT", "mailto:admin@example.com"),
		VAPIDPublicKey:  getEnv("VAPID_PUBLIC_KEY", ""),
		VAPIDPrivateKey: getEnv("VAPID_PRIVATE_KEY", ""),

		AlpacaKey:     getEnv("ALPACA_API_KEY", ""),
		AlpacaSecret:  getEnv("ALPACA_API_SECRET", ""),
		AlpacaBaseURL: getEnv("ALPACA_BASE_URL", "https://paper-api.alpaca.markets"),
	}

	if len(cfg.Symbols) == 0 {
		return nil, fmt.Errorf("SYMBOLS must name at least one symbol")
	}

	AppConfig = cfg
	return cfg, nil
}

// InitDB opens the sqlite database and verifies the connection.
func InitDB() (*gorm.DB, error) {
	logLevel := gormlogger.Warn
	if AppConfig.Environment == "production" {
		logLevel = gormlogger.Error
	}

	db, err := gorm.Open(sqlite.Open(AppConfig.DBPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	logger.Info("Database connection verified", zap.String("path", AppConfig.DBPath))
	DB = db
	return db, nil
}

func splitSymbols(raw string) []string {
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, strings.ToUpper(s))
		}
	}
	return out
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		logger.Warn("Invalid numeric value, using default", zap.String("key", key), zap.String("value", value))
		return defaultValue
	}
	return f
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		logger.Warn("Invalid integer value, using default", zap.String("key", key), zap.String("value", value))
		return defaultValue
	}
	return n
}

func getEnvBool(key string, defaultValue bool) bool {
	value := strings.ToLower(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	return value == "1" || value == "true" || value == "yes"
}
