package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	evmbank "github.com/alanyoungcy/truthbond/internal/bank/evm"
	membank "github.com/alanyoungcy/truthbond/internal/bank/memory"
	s3blob "github.com/alanyoungcy/truthbond/internal/blob/s3"
	"github.com/alanyoungcy/truthbond/internal/cache/redis"
	"github.com/alanyoungcy/truthbond/internal/config"
	"github.com/alanyoungcy/truthbond/internal/crypto"
	"github.com/alanyoungcy/truthbond/internal/domain"
	"github.com/alanyoungcy/truthbond/internal/notify"
	memstore "github.com/alanyoungcy/truthbond/internal/store/memory"
	"github.com/alanyoungcy/truthbond/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	Bonds  domain.BondStore
	Judges domain.JudgeStore
	Events domain.EventStore

	// Bank
	Bank domain.Bank

	// Cache (nil in memory mode)
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Blob storage (nil unless the S3 archive is enabled)
	BlobWriter domain.BlobWriter

	// Notifications
	Notifier *notify.Notifier

	// Operator is the address the watcher acts as.
	Operator common.Address

	// Raw clients exposed for health checks.
	Postgres *postgres.Client
	Redis    *redis.Client
	S3       *s3blob.Client
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	if cfg.Operator.Address != "" {
		deps.Operator = common.HexToAddress(cfg.Operator.Address)
	}

	memory := strings.EqualFold(cfg.Mode, "memory")

	// --- Stores ---
	if memory {
		deps.Bonds = memstore.NewBondStore()
		deps.Judges = memstore.NewJudgeStore()
		deps.Events = memstore.NewEventStore()
	} else {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.Postgres = pgClient
		deps.Bonds = postgres.NewBondStore(pool)
		deps.Judges = postgres.NewJudgeStore(pool)
		deps.Events = postgres.NewEventStore(pool)
	}

	// --- Redis (not used in memory mode) ---
	if !memory {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.Redis = redisClient
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
	}

	// --- Bank ---
	if memory || strings.EqualFold(cfg.Bank.Kind, "memory") {
		deps.Bank = membank.New()
	} else {
		keyHex, err := crypto.LoadKey(crypto.KeyConfig{
			RawPrivateKey:    cfg.Operator.PrivateKey,
			EncryptedKeyPath: cfg.Operator.EncryptedKeyPath,
			KeyPassword:      cfg.Operator.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: operator key: %w", err)
		}
		bank, err := evmbank.New(ctx, evmbank.Config{
			RPCURL:         cfg.Bank.RPCURL,
			ChainID:        cfg.Bank.ChainID,
			OperatorKeyHex: keyHex,
			ReceiptTimeout: cfg.Bank.ReceiptTimeout.Duration,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: evm bank: %w", err)
		}
		closers = append(closers, bank.Close)
		deps.Bank = bank
	}

	// --- S3 settlement archive ---
	if cfg.S3.Enabled && !memory {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })
		deps.S3 = s3Client
		deps.BlobWriter = s3blob.NewWriter(s3Client)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
