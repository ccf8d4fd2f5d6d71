package bootstrap

import (
	"context"
	"fmt"
	"time"

	"importer_server/adapter/out/carddav"
	"importer_server/adapter/out/messaging"
	"importer_server/adapter/out/persistence"
	"importer_server/adapter/out/provider"
	"importer_server/config"
	"importer_server/core/port/out"
	"importer_server/core/service/contactimport"
	"importer_server/core/service/importjob"
	"importer_server/infra/database"
	"importer_server/infra/middleware"
	"importer_server/pkg/cache"
	"importer_server/pkg/crypto"
	"importer_server/pkg/logger"
	"importer_server/pkg/ratelimit"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

const eventStreamMaxLen = 10000

// Dependencies holds every component shared by the API and worker roles.
type Dependencies struct {
	Config *config.Config

	DB    *pgxpool.Pool
	SQLDB *sqlx.DB
	Redis *redis.Client
	AMQP  *messaging.AMQPClient

	Sealer    *crypto.Sealer
	Blacklist *middleware.TokenBlacklist
	Limiter   *ratelimit.SlidingWindowLimiter

	ProviderConfigs out.ProviderConfigRepository
	Accounts        out.AccountRepository
	Jobs            out.ImportJobRepository
	Producer        out.JobProducer
	Events          out.EventPublisher

	Providers *provider.Factory
	Stores    *carddav.Factory

	ImportRunner  *contactimport.Service
	ImportService *importjob.Service
}

func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}
	var cleanups []func()
	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	sealer, err := crypto.NewSealer(cfg.EncryptionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("ENCRYPTION_KEY: %w", err)
	}
	deps.Sealer = sealer

	// Database (pgxpool)
	db, err := database.NewPostgres(ctx, cfg.DatabaseURL)
	if err != nil {
		return fail(err)
	}
	deps.DB = db
	cleanups = append(cleanups, db.Close)

	if cfg.AutoMigrate {
		if err := database.ApplySchema(ctx, db); err != nil {
			return fail(err)
		}
		logger.Info("Database schema applied")
	}

	// Database (sqlx for row-mapped adapters)
	sqlDB, err := database.NewSQLX(ctx, cfg.DatabaseURL)
	if err != nil {
		return fail(err)
	}
	deps.SQLDB = sqlDB
	cleanups = append(cleanups, func() { sqlDB.Close() })

	// Redis carries the job stream, so both roles need it.
	redisClient, err := database.NewRedis(ctx, cfg.RedisURL)
	if err != nil {
		return fail(err)
	}
	deps.Redis = redisClient
	cleanups = append(cleanups, func() { redisClient.Close() })

	deps.Blacklist = middleware.NewTokenBlacklist(redisClient)
	deps.Limiter = ratelimit.NewSlidingWindowLimiter(redisClient, cfg.APIRateLimit, time.Minute)

	// Repositories
	deps.ProviderConfigs = persistence.NewCachedProviderConfigs(
		persistence.NewProviderConfigAdapter(db),
		cache.NewRedisCache(redisClient),
		cfg.ProviderConfigTTL,
	)
	deps.Accounts = persistence.NewAccountAdapter(sqlDB, sealer)
	deps.Jobs = persistence.NewImportJobAdapter(sqlDB)
	deps.Producer = messaging.NewRedisProducer(redisClient)

	// Event bus
	switch cfg.EventBus {
	case "amqp":
		amqpClient, err := messaging.NewAMQPClient(cfg.AMQPURL)
		if err != nil {
			return fail(err)
		}
		deps.AMQP = amqpClient
		cleanups = append(cleanups, func() {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close failed: %v", err)
			}
		})
		if err := messaging.SetupTopology(amqpClient, cfg.AMQPExchange); err != nil {
			return fail(err)
		}
		deps.Events = messaging.NewAMQPPublisher(amqpClient, cfg.AMQPExchange)
		logger.Info("Events published to AMQP exchange %s", cfg.AMQPExchange)
	default:
		deps.Events = messaging.NewStreamPublisher(redisClient, eventStreamMaxLen)
		logger.Info("Events published to Redis streams")
	}

	// Remote systems
	twitterWindow := time.Duration(cfg.TwitterRateWindowSec) * time.Second
	twitterLimiter := ratelimit.NewSlidingWindowLimiter(redisClient, cfg.TwitterRateLimit, twitterWindow)
	friendsLimiter := ratelimit.NewSlidingWindowLimiter(redisClient, cfg.TwitterFriendsRateLimit, twitterWindow)
	deps.Providers = provider.NewFactory(provider.FactoryConfig{
		TwitterAPIURL:   cfg.TwitterAPIURL,
		TwitterTokenURL: cfg.TwitterTokenURL,
		GooglePeopleURL: cfg.GooglePeopleURL,
		Limiter:         twitterLimiter,
		FriendsLimiter:  friendsLimiter,
	})

	stores, err := carddav.NewFactory(cfg.DAVURL)
	if err != nil {
		return fail(fmt.Errorf("DAV_URL: %w", err))
	}
	deps.Stores = stores

	// Services
	deps.ImportRunner = contactimport.NewService(
		deps.ProviderConfigs,
		deps.Accounts,
		deps.Providers,
		deps.Stores,
		deps.Events,
		deps.Jobs,
		contactimport.Options{
			MaxIdentifiers:   cfg.ImportMaxIDs,
			BatchSize:        cfg.ImportBatchSize,
			BatchConcurrency: cfg.ImportBatchConcurrency,
			WriteConcurrency: cfg.ImportWriteConcurrency,
		},
		logger.Component("contact_import"),
	)
	deps.ImportService = importjob.NewService(deps.Accounts, deps.Jobs, deps.Producer, sealer)

	logger.Info("Dependencies initialized (event bus: %s)", cfg.EventBus)
	return deps, cleanup, nil
}
