package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	s3blob "github.com/alanyoungcy/marketengine/internal/blob/s3"
	"github.com/alanyoungcy/marketengine/internal/cache/redis"
	"github.com/alanyoungcy/marketengine/internal/config"
	"github.com/alanyoungcy/marketengine/internal/crypto"
	"github.com/alanyoungcy/marketengine/internal/domain"
	"github.com/alanyoungcy/marketengine/internal/engine"
	"github.com/alanyoungcy/marketengine/internal/ledger"
	"github.com/alanyoungcy/marketengine/internal/notify"
	"github.com/alanyoungcy/marketengine/internal/payout"
	"github.com/alanyoungcy/marketengine/internal/registry"
	"github.com/alanyoungcy/marketengine/internal/service"
	"github.com/alanyoungcy/marketengine/internal/store/postgres"
)

// Dependencies bundles everything the application modes need. Wire
// constructs it; the returned cleanup function tears it down.
type Dependencies struct {
	// Core engines, always present.
	Markets    *ledger.Ledger
	Registry   *registry.Registry
	Payouts    *payout.Ledger
	Fees       *engine.FeeEngine
	Resolution *engine.ResolutionEngine

	// Durable stores, nil without Postgres.
	JournalStore    domain.JournalStore
	SettlementStore domain.SettlementStore
	TransferStore   domain.TransferStore

	// Redis-backed pieces, nil without Redis.
	MarketCache domain.MarketCache
	RateLimiter domain.RateLimiter
	SignalBus   domain.SignalBus

	// Object storage, nil without S3.
	BlobWriter *s3blob.Writer

	// Alerts. Watcher is nil when no sender or no signal bus is configured.
	Notifier *notify.Notifier
	Watcher  *notify.Watcher

	// Services over the core.
	MarketSvc     *service.MarketService
	SettlementSvc *service.SettlementService
	TreasurySvc   *service.TreasuryService
	RegistrySvc   *service.RegistryService
}

// shareTable converts the validated fee configuration into the engine's
// share table.
func shareTable(cfg config.FeesConfig) domain.ShareTable {
	pools := make([]domain.Pool, 0, len(cfg.Pools))
	for _, p := range cfg.Pools {
		pools = append(pools, domain.Pool{
			Name:      p.Name,
			Bps:       p.Bps,
			Recipient: common.HexToAddress(p.Recipient),
			TokenPool: p.TokenPool,
		})
	}
	return domain.ShareTable{
		TotalFeeBps: cfg.TotalFeeBps,
		Pools:       pools,
	}
}

// needsBackends reports whether the mode requires Postgres, Redis, and S3.
// Standby keeps only the in-memory core warm.
func needsBackends(mode string) bool {
	return mode == "serve"
}

// Wire constructs all concrete dependencies from the configuration and
// returns them with a cleanup function to call on shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}
	reserve := common.HexToAddress(cfg.Fees.ReserveAccount)

	// --- PostgreSQL journal and archive ---
	if needsBackends(cfg.Mode) {
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

		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}

		pool := pgClient.Pool()
		deps.JournalStore = postgres.NewJournalStore(pool)
		deps.SettlementStore = postgres.NewSettlementStore(pool)
		deps.TransferStore = postgres.NewTransferStore(pool)
	}

	// --- Redis signal bus, cache, rate limiter ---
	if needsBackends(cfg.Mode) {
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

		deps.MarketCache = redis.NewMarketCache(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
	}

	// --- S3 report storage ---
	if needsBackends(cfg.Mode) {
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
		deps.BlobWriter = s3blob.NewWriter(s3Client)
	}

	// --- Core engines ---
	deps.Registry = registry.New(cfg.Token.MaxSupply, cfg.Token.BatchLimit)

	var transfer domain.Transferer = service.NullTransferer{}
	if deps.TransferStore != nil {
		transfer = service.NewRecordingTransferer(deps.TransferStore)
	}
	deps.Payouts = payout.New(transfer)

	fees, err := engine.NewFeeEngine(shareTable(cfg.Fees), deps.Registry, deps.Payouts, reserve)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: fee engine: %w", err)
	}
	deps.Fees = fees

	deps.Markets = ledger.New(ledger.Config{
		MinStake:     cfg.Market.MinStake,
		CutoffWindow: cfg.Market.CutoffWindow(),
	})

	resolvers := crypto.NewResolverSet(cfg.Oracle.Resolvers)
	deps.Resolution = engine.NewResolutionEngine(deps.Markets, deps.Payouts, fees, resolvers, reserve)

	// Surface the local oracle identity so operators can check it against
	// the allow-list before the first resolution.
	if cfg.Oracle.PrivateKey != "" || cfg.Oracle.KeystorePath != "" {
		keyHex, err := crypto.LoadOracleKey(crypto.KeySource{
			RawPrivateKey: cfg.Oracle.PrivateKey,
			KeystorePath:  cfg.Oracle.KeystorePath,
			Password:      cfg.Oracle.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: oracle key: %w", err)
		}
		signer, err := crypto.NewOracleSigner(keyHex)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: oracle signer: %w", err)
		}
		logger.InfoContext(ctx, "wire: local oracle key loaded",
			slog.String("address", signer.Address().Hex()),
			slog.Bool("authorized", resolvers.IsAuthorizedResolver(signer.Address())),
		)
	}

	// --- Alerts ---
	var senders []notify.Sender
	if cfg.Notify.TelegramBotToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramBotToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhook != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhook))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	if len(senders) > 0 && deps.SignalBus != nil {
		deps.Watcher = notify.NewWatcher(deps.SignalBus, deps.Notifier, logger)
	}

	// --- Services ---
	emitter := service.NewEmitter(deps.SignalBus, deps.JournalStore, logger)
	deps.MarketSvc = service.NewMarketService(deps.Markets, deps.MarketCache, emitter, logger)
	deps.SettlementSvc = service.NewSettlementService(deps.Resolution, deps.MarketCache, deps.SettlementStore, emitter, logger)
	deps.TreasurySvc = service.NewTreasuryService(fees, deps.Payouts, deps.TransferStore, emitter, logger)
	deps.RegistrySvc = service.NewRegistryService(deps.Registry, emitter, logger)

	return deps, cleanup, nil
}
