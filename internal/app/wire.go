package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/alanyoungcy/portfolio-engine/internal/blob/s3"
	"github.com/alanyoungcy/portfolio-engine/internal/cache/redis"
	"github.com/alanyoungcy/portfolio-engine/internal/config"
	"github.com/alanyoungcy/portfolio-engine/internal/domain"
	"github.com/alanyoungcy/portfolio-engine/internal/notify"
	"github.com/alanyoungcy/portfolio-engine/internal/platform/chain"
	"github.com/alanyoungcy/portfolio-engine/internal/platform/prereq"
	"github.com/alanyoungcy/portfolio-engine/internal/platform/pricefeed"
	"github.com/alanyoungcy/portfolio-engine/internal/store/postgres"
)

// httpClientTimeout bounds requests against the price feed and prerequisites
// APIs.
const httpClientTimeout = 10 * time.Second

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	TradeStore   domain.TradeStore
	AccountStore domain.AccountStore
	ReportStore  domain.ReportStore
	AuditStore   domain.AuditStore

	// Caches
	PriceCache    domain.PriceCache
	SnapshotCache domain.SnapshotCache
	RateLimiter   domain.RateLimiter
	LockManager   domain.LockManager
	SignalBus     domain.SignalBus

	// Upstream sources
	PriceSource  domain.PriceSource
	WalletSource domain.WalletSource
	PrereqSource domain.PrereqSource

	// Blob storage
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	// Notifications
	Notifier *notify.Notifier
}

// needsS3 returns true for modes that require object storage.
func needsS3(mode string) bool {
	switch mode {
	case "archive", "full":
		return true
	default:
		return false
	}
}

// needsChain returns true for modes that read on-chain wallet balances.
func needsChain(mode string) bool {
	switch mode {
	case "server", "monitor", "full":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL (the ledger; every mode needs it) ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Supabase.DSN,
		Host:     cfg.Supabase.Host,
		Port:     cfg.Supabase.Port,
		Database: cfg.Supabase.Database,
		User:     cfg.Supabase.User,
		Password: cfg.Supabase.Password,
		SSLMode:  cfg.Supabase.SSLMode,
		MaxConns: cfg.Supabase.PoolMaxConns,
		MinConns: cfg.Supabase.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Supabase.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.TradeStore = postgres.NewTradeStore(pool)
	deps.AccountStore = postgres.NewAccountStore(pool)
	deps.ReportStore = postgres.NewReportStore(pool)
	deps.AuditStore = postgres.NewAuditStore(pool)

	// --- Redis ---
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

	deps.PriceCache = redis.NewPriceCache(redisClient)
	deps.SnapshotCache = redis.NewSnapshotCache(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- Upstream sources ---
	deps.PriceSource = pricefeed.NewClient(cfg.Pricefeed.BaseURL, cfg.Pricefeed.APIKey, httpClientTimeout)
	deps.PrereqSource = prereq.NewClient(cfg.Prereq.BaseURL, cfg.Prereq.APIKey, httpClientTimeout)

	if needsChain(cfg.Mode) {
		tokens := make([]chain.Token, 0, len(cfg.Chain.Tokens))
		for _, t := range cfg.Chain.Tokens {
			tokens = append(tokens, chain.Token{
				Symbol:   t.Symbol,
				Contract: t.Contract,
				Decimals: t.Decimals,
			})
		}
		chainClient, err := chain.NewClient(ctx, chain.Config{
			RPCURL: cfg.Chain.RPCURL,
			Tokens: tokens,
		}, deps.PriceCache, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: chain: %w", err)
		}
		closers = append(closers, chainClient.Close)
		deps.WalletSource = chainClient
	}

	// --- S3 blob storage (only for modes that archive) ---
	if needsS3(cfg.Mode) {
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

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		reader := s3blob.NewReader(s3Client)
		deps.BlobReader = reader

		deps.Archiver = s3blob.NewArchiver(
			deps.BlobWriter,
			deps.BlobReader,
			deps.TradeStore,
			deps.ReportStore,
			deps.AuditStore,
		)
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
