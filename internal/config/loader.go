package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies TRUTHBOND_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known TRUTHBOND_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Operator ──
	setStr(&cfg.Operator.Address, "TRUTHBOND_OPERATOR_ADDRESS")
	setStr(&cfg.Operator.PrivateKey, "TRUTHBOND_OPERATOR_PRIVATE_KEY")
	setStr(&cfg.Operator.EncryptedKeyPath, "TRUTHBOND_OPERATOR_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Operator.KeyPassword, "TRUTHBOND_OPERATOR_KEY_PASSWORD")

	// ── Bank ──
	setStr(&cfg.Bank.Kind, "TRUTHBOND_BANK_KIND")
	setStr(&cfg.Bank.RPCURL, "TRUTHBOND_BANK_RPC_URL")
	setInt64(&cfg.Bank.ChainID, "TRUTHBOND_BANK_CHAIN_ID")
	setDuration(&cfg.Bank.ReceiptTimeout, "TRUTHBOND_BANK_RECEIPT_TIMEOUT")

	// ── Ledger ──
	setDuration(&cfg.Ledger.LockTTL, "TRUTHBOND_LEDGER_LOCK_TTL")
	setDuration(&cfg.Ledger.WatchInterval, "TRUTHBOND_LEDGER_WATCH_INTERVAL")
	setBool(&cfg.Ledger.AutoClaimTimeouts, "TRUTHBOND_LEDGER_AUTO_CLAIM_TIMEOUTS")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "TRUTHBOND_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "TRUTHBOND_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "TRUTHBOND_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "TRUTHBOND_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "TRUTHBOND_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "TRUTHBOND_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "TRUTHBOND_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "TRUTHBOND_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "TRUTHBOND_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "TRUTHBOND_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "TRUTHBOND_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TRUTHBOND_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TRUTHBOND_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "TRUTHBOND_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "TRUTHBOND_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "TRUTHBOND_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "TRUTHBOND_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "TRUTHBOND_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "TRUTHBOND_S3_REGION")
	setStr(&cfg.S3.Bucket, "TRUTHBOND_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "TRUTHBOND_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "TRUTHBOND_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "TRUTHBOND_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "TRUTHBOND_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "TRUTHBOND_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "TRUTHBOND_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "TRUTHBOND_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "TRUTHBOND_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "TRUTHBOND_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "TRUTHBOND_SERVER_RATE_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "TRUTHBOND_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "TRUTHBOND_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "TRUTHBOND_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "TRUTHBOND_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "TRUTHBOND_MODE")
	setStr(&cfg.LogLevel, "TRUTHBOND_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
