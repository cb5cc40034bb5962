package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Config struct {
	Port        string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string
	AutoMigrate bool

	// MigrateDown rolls the schema back and exits instead of serving.
	MigrateDown bool

	GinMode string

	// Store selects the persistence backend: "postgres" or "memory".
	// Memory mode serves demos and development without a database.
	Store string

	Risk  RiskConfig
	Rails []RailConfig

	// RailTimeout bounds a single settlement attempt; RailRetries is the
	// number of extra attempts permitted after a timeout (the policy is one).
	RailTimeout time.Duration
	RailRetries int
}

// RiskConfig holds the scoring thresholds. Scores are 0-100; a score below
// LowWatermark allows, below HighWatermark challenges, at or above blocks.
type RiskConfig struct {
	LowWatermark        int
	HighWatermark       int
	HighAmountThreshold decimal.Decimal
	MaxDailyAmount      decimal.Decimal
	QRBaselineWeight    int
	SupportedCurrencies []string

	// ChallengePreferConservative makes the rail selector order rails with
	// stronger settlement guarantees first for challenged transactions.
	ChallengePreferConservative bool
}

// RailConfig describes one settlement rail as deployed.
type RailConfig struct {
	ID           string
	Currencies   []string
	MaxAmount    decimal.Decimal
	FeeRate      decimal.Decimal
	SameDay      bool
	Conservative bool

	// Demo failure injection for the simulated adapters. Zero means the
	// rail always settles.
	RejectRate  float64
	TimeoutRate float64
}

func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnv("DB_PORT", "5432"),
		DBUser:      getEnv("DB_USER", "fastpay"),
		DBPassword:  getEnv("DB_PASSWORD", "fastpay_secret"),
		DBName:      getEnv("DB_NAME", "fastpay"),
		DBSSLMode:   getEnv("DB_SSLMODE", "disable"),
		AutoMigrate: getEnv("AUTO_MIGRATE", "false") == "true",
		MigrateDown: getEnv("MIGRATE_DOWN", "false") == "true",
		GinMode:     getEnv("GIN_MODE", "debug"),
		Store:       getEnv("STORE", "postgres"),

		Risk: RiskConfig{
			LowWatermark:                getEnvInt("RISK_LOW_WATERMARK", 30),
			HighWatermark:               getEnvInt("RISK_HIGH_WATERMARK", 70),
			HighAmountThreshold:         getEnvDecimal("RISK_HIGH_AMOUNT_THRESHOLD", "5000"),
			MaxDailyAmount:              getEnvDecimal("RISK_MAX_DAILY_AMOUNT", "50000"),
			QRBaselineWeight:            getEnvInt("RISK_QR_BASELINE_WEIGHT", 10),
			SupportedCurrencies:         getEnvList("SUPPORTED_CURRENCIES", "SZL,USD,EUR"),
			ChallengePreferConservative: getEnv("RISK_CHALLENGE_PREFER_CONSERVATIVE", "true") == "true",
		},

		Rails: []RailConfig{
			{
				ID:          "eswatini_switch",
				Currencies:  getEnvList("ESW_CURRENCIES", "SZL"),
				MaxAmount:   getEnvDecimal("ESW_MAX_AMOUNT", "10000"),
				FeeRate:     getEnvDecimal("ESW_FEE_RATE", "0.015"),
				SameDay:     true,
				RejectRate:  getEnvFloat("ESW_REJECT_RATE", 0),
				TimeoutRate: getEnvFloat("ESW_TIMEOUT_RATE", 0),
			},
			{
				ID:           "visa_direct",
				Currencies:   getEnvList("VISA_CURRENCIES", "SZL,USD,EUR"),
				MaxAmount:    getEnvDecimal("VISA_MAX_AMOUNT", "100000"),
				FeeRate:      getEnvDecimal("VISA_FEE_RATE", "0.025"),
				SameDay:      false,
				Conservative: true,
				RejectRate:   getEnvFloat("VISA_REJECT_RATE", 0),
				TimeoutRate:  getEnvFloat("VISA_TIMEOUT_RATE", 0),
			},
		},

		RailTimeout: getEnvDuration("RAIL_TIMEOUT", 5*time.Second),
		RailRetries: getEnvInt("RAIL_RETRIES", 1),
	}
}

func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDecimal(key, fallback string) decimal.Decimal {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := decimal.NewFromString(value); err == nil {
			return d
		}
	}
	return decimal.RequireFromString(fallback)
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key, fallback string) []string {
	raw := getEnv(key, fallback)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
