package bootstrap

import (
	"context"
	"log"
	"time"

	"rent360-scheduling-be/internal/config"
	"rent360-scheduling-be/internal/controller"
	"rent360-scheduling-be/internal/pkg/lock"
	"rent360-scheduling-be/internal/pkg/logger"
	"rent360-scheduling-be/internal/pkg/serverutils"
	"rent360-scheduling-be/internal/repository/contract"
	"rent360-scheduling-be/internal/repository/memory"
	"rent360-scheduling-be/internal/repository/unitofwork"
	"rent360-scheduling-be/internal/service"
	pktNats "rent360-scheduling-be/pkg/nats"
	"rent360-scheduling-be/pkg/schedule"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	RecurringServiceController controller.IRecurringServiceController
	InstanceController         controller.IInstanceController
	SweepController            controller.ISweepController

	AuthMiddleware fiber.Handler

	// Background Services (Exposed for main.go to run)
	SchedulingService service.ISchedulingService
	RelayService      service.IRelayService
	SweepService      service.ISweepService

	Logger logger.ILogger

	pubSub  *gochannel.GoChannel
	natsPub *pktNats.Publisher
	redis   *redis.Client
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	loc := cfg.Location()

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{OutputChannelBuffer: 256},
		watermillLogger,
	)

	// 3. Infrastructure
	var natsPub *pktNats.Publisher
	if cfg.App.NatsURL != "" {
		p, err := pktNats.NewPublisher(cfg.App.NatsURL)
		if err != nil {
			log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
		} else {
			natsPub = p
		}
	}

	rdb, locker := newLocker(cfg)

	// 4. Services
	notificationService := service.NewNotificationService(pubSub, cfg.Events.Topic, sysLogger, schedule.SystemClock)

	var sink service.EventSink
	if natsPub != nil {
		sink = natsPub
	}
	relayService := service.NewRelayService(pubSub, cfg.Events.Topic, sink, sysLogger)

	schedulingService := service.NewSchedulingService(
		uowFactory,
		locker,
		newAgreementCache(rdb, cfg.Scheduling.CacheTTL),
		notificationService,
		sysLogger,
		schedule.SystemClock,
		service.SchedulingOptions{
			Location:              loc,
			MissedGraceDays:       cfg.Scheduling.MissedGraceDays,
			ReminderLookaheadDays: cfg.Scheduling.ReminderLookahead,
			OperationTimeout:      cfg.Scheduling.OperationTimeout,
		},
	)

	sweepLogger := logger.NewIsolatedLogger("logs/sweep.log")
	sweepService := service.NewSweepService(schedulingService, cfg.Scheduling.SweepCronSpec, loc, sweepLogger)

	// 5. Controllers
	return &Container{
		RecurringServiceController: controller.NewRecurringServiceController(schedulingService),
		InstanceController:         controller.NewInstanceController(schedulingService),
		SweepController:            controller.NewSweepController(sweepService),

		AuthMiddleware: serverutils.JwtMiddleware(cfg.Auth.JwtSecret),

		SchedulingService: schedulingService,
		RelayService:      relayService,
		SweepService:      sweepService,

		Logger: sysLogger,

		pubSub:  pubSub,
		natsPub: natsPub,
		redis:   rdb,
	}
}

// newLocker prefers a redis lease lock so several replicas serialize on the
// same agreement; a single replica falls back to an in-process lock.
func newLocker(cfg *config.Config) (*redis.Client, lock.Locker) {
	if cfg.App.RedisURL == "" {
		log.Println("[INFO] REDIS_URL not set, using in-process agreement locks")
		return nil, lock.NewLocalLocker()
	}

	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v. Using in-process agreement locks", err)
		_ = rdb.Close()
		return nil, lock.NewLocalLocker()
	}

	return rdb, lock.NewRedisLocker(rdb, "scheduling:lock:agreement:", cfg.Scheduling.LockTTL, cfg.Scheduling.LockWait)
}

// newAgreementCache shares snapshots through redis whenever the redis locker is
// in use, since that is the multi-replica setup. A process-local cache would
// serve rows another replica already changed.
func newAgreementCache(rdb *redis.Client, ttl time.Duration) contract.AgreementCache {
	if rdb != nil {
		return memory.NewRedisAgreementCache(rdb, "scheduling:cache:agreement:", ttl)
	}
	return memory.NewAgreementCache(ttl)
}

func (c *Container) Close() {
	if c.pubSub != nil {
		_ = c.pubSub.Close()
	}
	if c.natsPub != nil {
		c.natsPub.Close()
	}
	if c.redis != nil {
		_ = c.redis.Close()
	}
	_ = c.Logger.Sync()
}
