package bootstrap

import (
	"context"
	"os"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"

	"mirror_sync/adapter/out/messaging"
	"mirror_sync/adapter/out/mongodb"
	"mirror_sync/adapter/out/persistence"
	"mirror_sync/config"
	"mirror_sync/core/domain"
	"mirror_sync/core/port/out"
	"mirror_sync/core/service/mirror"
	"mirror_sync/infra/database"
	"mirror_sync/pkg/cache"
	"mirror_sync/pkg/logger"
)

// Dependencies wires the full object graph once for both the API and the
// worker process.
type Dependencies struct {
	Config  *config.Config
	DB      *sqlx.DB
	Redis   *redis.Client
	MongoDB *mongo.Client

	Cache         *cache.RedisCache
	Registry      *mirror.Registry
	TombstoneRepo out.TombstoneRepository
	Replica       out.ReplicaStore
	Producer      out.MessageProducer

	Executor  *mirror.Executor
	Scheduler *mirror.Scheduler
	Sweeper   *mirror.Sweeper
	Stats     *mirror.StatsService

	Log  *logger.Logger
	ZLog zerolog.Logger
}

func NewDependencies(cfg *config.Config) (*Dependencies, func(), error) {
	deps := &Dependencies{Config: cfg}
	var cleanups []func()

	cleanup := func() {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
	}

	deps.Log = logger.Default()
	deps.ZLog = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
		With().Timestamp().Logger()

	// Postgres
	db, err := database.NewPostgres(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	deps.DB = db
	cleanups = append(cleanups, func() { db.Close() })

	// Redis
	rdb, err := database.NewRedis(cfg.RedisURL)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	deps.Redis = rdb
	cleanups = append(cleanups, func() { rdb.Close() })
	deps.Cache = cache.NewRedisCache(rdb)

	// MongoDB replica
	mongoClient, err := mongodb.NewClient(cfg.MongoDBURL)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	deps.MongoDB = mongoClient
	cleanups = append(cleanups, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = mongoClient.Disconnect(ctx)
	})
	deps.Replica = mongodb.NewReplicaAdapter(mongoClient, cfg.MongoDBName, deps.ZLog)

	// Messaging
	deps.Producer = messaging.NewRedisProducer(rdb)

	// Registry: one adapter per mirrored table
	deps.Registry = mirror.NewRegistry()
	deps.Registry.Register(persistence.NewCommissionAdapter(db), func() domain.Syncable { return &domain.Commission{} })
	deps.Registry.Register(persistence.NewCouponAdapter(db), func() domain.Syncable { return &domain.Coupon{} })
	deps.Registry.Register(persistence.NewTaxSettingAdapter(db), func() domain.Syncable { return &domain.TaxSetting{} })
	deps.Registry.Register(persistence.NewPageAdapter(db), func() domain.Syncable { return &domain.Page{} })
	deps.Registry.Register(persistence.NewFAQAdapter(db), func() domain.Syncable { return &domain.FAQ{} })

	deps.TombstoneRepo = persistence.NewTombstoneAdapter(db)

	// Engine
	deps.Executor = mirror.NewExecutor(deps.Registry, deps.Replica, deps.TombstoneRepo, deps.Log)
	deps.Scheduler = mirror.NewScheduler(mirror.SchedulerConfig{
		AutoSyncEnabled:    cfg.AutoSyncEnabled,
		ImmediateThreshold: cfg.ImmediateSyncThreshold,
		ImmediateTimeout:   cfg.ImmediateSyncTimeout,
		CacheTTL:           cfg.BacklogCacheTTL,
	}, deps.Registry, deps.Executor, deps.Producer, deps.Cache, deps.Log)
	deps.Sweeper = mirror.NewSweeper(mirror.SweeperConfig{
		BatchSize:     cfg.SweepBatchSize,
		MaxIterations: cfg.SweepMaxIterations,
		Budget:        cfg.SweepBudget,
		ItemDelay:     cfg.SweepItemDelay,
	}, deps.Registry, deps.Executor, deps.Log)
	deps.Stats = mirror.NewStatsService(deps.Registry)

	logger.Info("dependencies initialized: %d entity types registered", len(deps.Registry.Types()))
	return deps, cleanup, nil
}
