// Package app is the composition root: manual DI, route mounting and
// lifecycle management.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/riverqueue/river"

	"waveline.io/courier/internal/api/handlers"
	"waveline.io/courier/internal/badge"
	"waveline.io/courier/internal/config"
	"waveline.io/courier/internal/digest"
	"waveline.io/courier/internal/dispatch"
	"waveline.io/courier/internal/domain"
	"waveline.io/courier/internal/enrich"
	"waveline.io/courier/internal/infrastructure"
	"waveline.io/courier/internal/jobs"
	"waveline.io/courier/internal/orchestrator"
	"waveline.io/courier/internal/pkg/worker"
	"waveline.io/courier/internal/repository"
	"waveline.io/courier/internal/settings"
	"waveline.io/courier/internal/strategy"
	"waveline.io/courier/internal/transport"
)

const leaderLockKey = "courier:cycle:lock"

// Application holds composed application dependencies.
type Application struct {
	Config *config.Config
	Router *gin.Engine
	DB     *infrastructure.DatabaseClients
	Redis  *redis.Client
	Pools  *worker.Pools
}

// Bootstrap initializes all dependencies using manual DI.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Application, error) {
	db, err := infrastructure.NewDatabaseClients(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
	}

	redisClient, err := infrastructure.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	pools, err := worker.NewPools(ctx, worker.PoolConfig{
		GeneralPoolSize:  cfg.Worker.GeneralPoolSize,
		DeliveryPoolSize: cfg.Worker.DeliveryPoolSize,
	})
	if err != nil {
		db.Close()
		_ = redisClient.Close()
		return nil, fmt.Errorf("init worker pools: %w", err)
	}

	fail := func(err error) (*Application, error) {
		pools.Shutdown()
		_ = redisClient.Close()
		db.Close()
		return nil, err
	}

	// Repositories on the shared pool.
	recordRepo := repository.NewNotificationRepository(db.Pool)
	settingsRepo := repository.NewSettingsRepository(db.Pool)
	deviceRepo := repository.NewDeviceRepository(db.Pool)
	catalogRepo := repository.NewCatalogRepository(db.Pool)
	emailLogRepo := repository.NewEmailLogRepository(db.Pool)
	badgeTracker := badge.NewTracker(db.Pool)

	// Transports.
	snsTransport, err := transport.NewSNSTransport(ctx, cfg.Transports.SNS)
	if err != nil {
		return fail(fmt.Errorf("init sns transport: %w", err))
	}
	sendgridTransport := transport.NewSendGridTransport(cfg.Transports.SendGrid)
	webpushTransport := transport.NewWebPushTransport(cfg.Transports.WebPush)

	// Dispatchers. The dead-token reporter is bound to the River client
	// after the client exists.
	deadTokens := jobs.NewDeadTokenReporter()
	pushDispatcher := dispatch.NewPushDispatcher(snsTransport, badgeTracker, deadTokens, pools, cfg.Pipeline.SendTimeout)
	browserDispatcher := dispatch.NewBrowserDispatcher(webpushTransport, deadTokens, cfg.Pipeline.SendTimeout)
	emailDispatcher := dispatch.NewEmailDispatcher(sendgridTransport, cfg.Pipeline.SendTimeout)

	// Rendering pipeline.
	registry, err := strategy.NewRegistry()
	if err != nil {
		return fail(fmt.Errorf("init strategy registry: %w", err))
	}
	entityResolver := enrich.NewResolver(catalogRepo, pools)
	settingsResolver := settings.NewResolver(settingsRepo, deviceRepo)

	orch := orchestrator.New(
		recordRepo,
		entityResolver,
		settingsResolver,
		registry,
		pushDispatcher,
		browserDispatcher,
		emailDispatcher,
		orchestrator.NewLease(redisClient, leaderLockKey, cfg.Pipeline.LockTTL),
		redisClient,
		pools,
		orchestrator.Config{
			BatchSize:   cfg.Pipeline.BatchSize,
			MaxAttempts: cfg.Pipeline.MaxAttempts,
		},
	)

	aggregator := digest.NewAggregator(
		recordRepo,
		settingsRepo,
		emailLogRepo,
		entityResolver,
		settingsResolver,
		registry,
		emailDispatcher,
		cfg.Digest.MaxPerEmail,
		cfg.Digest.MinUnreadAge,
	)

	workers := river.NewWorkers()
	river.AddWorker(workers, jobs.NewDeliveryCycleWorker(orch))
	river.AddWorker(workers, jobs.NewDigestDispatchWorker(aggregator))
	river.AddWorker(workers, jobs.NewDeviceCleanupWorker(deviceRepo, snsTransport))
	river.AddWorker(workers, jobs.NewRetentionCleanupWorker(recordRepo, emailLogRepo, cfg.Pipeline.RetentionPeriod))

	if err := db.InitRiverClient(workers, cfg.River); err != nil {
		return fail(fmt.Errorf("init river workers: %w", err))
	}
	deadTokens.Bind(db.RiverClient)
	registerPeriodicJobs(db.RiverClient, cfg)

	server := handlers.NewServer(badgeTracker, settingsRepo, deviceRepo, snsTransport, recordRepo)
	health := handlers.NewHealthHandler(db.Pool, redisPinger{redisClient})

	return &Application{
		Config: cfg,
		Router: newRouter(cfg, server, health),
		DB:     db,
		Redis:  redisClient,
		Pools:  pools,
	}, nil
}

// registerPeriodicJobs wires the delivery cycle, daily digest and retention
// cleanup schedules.
func registerPeriodicJobs(client *river.Client[pgx.Tx], cfg *config.Config) {
	client.PeriodicJobs().Add(
		river.NewPeriodicJob(
			river.PeriodicInterval(cfg.Pipeline.CycleInterval),
			func() (river.JobArgs, *river.InsertOpts) {
				return jobs.DeliveryCycleArgs{}, nil
			},
			&river.PeriodicJobOpts{RunOnStart: true},
		),
	)
	client.PeriodicJobs().Add(
		river.NewPeriodicJob(
			dailyAt{hour: cfg.Digest.DailyHourUTC},
			func() (river.JobArgs, *river.InsertOpts) {
				return jobs.DigestDispatchArgs{Frequency: domain.EmailDaily}, nil
			},
			nil,
		),
	)
	client.PeriodicJobs().Add(
		river.NewPeriodicJob(
			river.PeriodicInterval(24*time.Hour),
			func() (river.JobArgs, *river.InsertOpts) {
				return jobs.RetentionCleanupArgs{}, nil
			},
			&river.PeriodicJobOpts{RunOnStart: true},
		),
	)
}

// dailyAt schedules a job at a fixed UTC hour every day.
type dailyAt struct {
	hour int
}

func (s dailyAt) Next(t time.Time) time.Time {
	t = t.UTC()
	next := time.Date(t.Year(), t.Month(), t.Day(), s.hour, 0, 0, 0, time.UTC)
	if !next.After(t) {
		next = next.Add(24 * time.Hour)
	}
	return next
}

// redisPinger adapts the Redis client to the health handler's Pinger.
type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
