package config

import (
	"fmt"
	"strings"
	"time"
)

// TiplineConfig holds runtime configuration for the tipline service.
type TiplineConfig struct {
	Environment        string
	Addr               string
	DatabaseURL        string
	MigrationsDir      string
	JWTSecret          string
	WebhookSecret      string
	ChainRPCURL        string
	ChainID            int64
	ChainCallTimeout   time.Duration
	SessionTTL         time.Duration
	RateLimit          int
	RateWindow         time.Duration
	HistoryLimit       int
	RateLimitRedisAddr string
	RateLimitRedisPass string
	RateLimitRedisDB   int
}

// LoadTiplineConfig constructs a TiplineConfig from environment variables.
func LoadTiplineConfig() TiplineConfig {
	return TiplineConfig{
		Environment:        GetString("APP_ENV", "development"),
		Addr:               GetString("TIPLINE_ADDR", ":4100"),
		DatabaseURL:        GetString("DATABASE_URL", ""),
		MigrationsDir:      GetString("DB_MIGRATIONS_DIR", "db/migrations"),
		JWTSecret:          GetString("JWT_SECRET", ""),
		WebhookSecret:      GetString("WEBHOOK_SECRET", ""),
		ChainRPCURL:        GetString("CHAIN_RPC_URL", ""),
		ChainID:            GetInt64("CHAIN_ID", 84532),
		ChainCallTimeout:   time.Duration(GetInt("CHAIN_CALL_TIMEOUT_SECONDS", 15)) * time.Second,
		SessionTTL:         time.Duration(GetInt("SESSION_TTL_MINUTES", 10)) * time.Minute,
		RateLimit:          GetInt("RATE_LIMIT_COMMANDS", 5),
		RateWindow:         time.Duration(GetInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,
		HistoryLimit:       GetInt("HISTORY_LIMIT", 5),
		RateLimitRedisAddr: GetString("RATE_LIMIT_REDIS_ADDR", ""),
		RateLimitRedisPass: GetString("RATE_LIMIT_REDIS_PASSWORD", ""),
		RateLimitRedisDB:   GetInt("RATE_LIMIT_REDIS_DB", 0),
	}
}

// Validate collects every missing required parameter into a single error so
// a misconfigured deployment fails once with the full list.
func (c TiplineConfig) Validate() error {
	var missing []string
	if strings.TrimSpace(c.ChainRPCURL) == "" {
		missing = append(missing, "CHAIN_RPC_URL")
	}
	if strings.TrimSpace(c.WebhookSecret) == "" {
		missing = append(missing, "WEBHOOK_SECRET")
	}
	if strings.TrimSpace(c.JWTSecret) == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing environment variables: %s", strings.Join(missing, ", "))
	}
	if c.ChainID <= 0 {
		return fmt.Errorf("CHAIN_ID must be positive")
	}
	return nil
}
