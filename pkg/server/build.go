package server

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"

	"ledgerhooks/pkg/cache"
	"ledgerhooks/pkg/core"
	"ledgerhooks/pkg/queue"
	"ledgerhooks/pkg/storage"
	"ledgerhooks/pkg/storage/ledger"
	"ledgerhooks/pkg/storage/orders"
	"ledgerhooks/pkg/storage/webhookevents"
	"ledgerhooks/pkg/webhook"
	"ledgerhooks/pkg/worker"
)

// Services holds everything the serve and worker commands share: the
// database, the priority queue, the cache, the dispatcher, and the webhook
// registry wired to the queue.
type Services struct {
	Config     core.Config
	DB         *gorm.DB
	Queue      *queue.PriorityQueue
	Cache      *cache.Cache
	Dispatcher *worker.Dispatcher
	Audit      *webhookevents.Store
	Registry   *webhook.Registry

	redisClient *redis.Client
	logger      *log.Logger
}

// BuildServices opens storage, connects the queue and cache backends, and
// wires the dispatcher in as the queue's inline fallback.
func BuildServices(config core.Config, logger *log.Logger) (*Services, error) {
	if logger == nil {
		logger = log.Default()
	}

	db, err := storage.Open(storage.Config{
		Driver:      config.Storage.Driver,
		DSN:         config.Storage.DSN,
		AutoMigrate: config.Storage.AutoMigrate,
		Pool: storage.PoolConfig{
			MaxOpenConns:      config.Storage.Pool.MaxOpenConns,
			MaxIdleConns:      config.Storage.Pool.MaxIdleConns,
			ConnMaxLifetimeMS: config.Storage.Pool.ConnMaxLifetimeMS,
			ConnMaxIdleTimeMS: config.Storage.Pool.ConnMaxIdleTimeMS,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	orderStore := orders.New(db)
	ledgerStore := ledger.New(db)
	auditStore := webhookevents.New(db)
	if config.Storage.AutoMigrate {
		for name, migrate := range map[string]func() error{
			"orders":         orderStore.Migrate,
			"ledger":         ledgerStore.Migrate,
			"webhook_events": auditStore.Migrate,
		} {
			if err := migrate(); err != nil {
				return nil, fmt.Errorf("migrate %s: %w", name, err)
			}
		}
		logger.Printf("storage ready driver=%s auto_migrate=true", config.Storage.Driver)
	} else {
		logger.Printf("storage ready driver=%s", config.Storage.Driver)
	}

	var redisClient *redis.Client
	var backend queue.Backend
	switch strings.ToLower(config.Queue.Driver) {
	case "memory":
		backend = queue.NewMemoryBackend()
		logger.Printf("queue driver=memory name=%s", config.Queue.Name)
	default:
		redisClient = redis.NewClient(&redis.Options{
			Addr:     config.Queue.Redis.Addr,
			Password: config.Queue.Redis.Password,
			DB:       config.Queue.Redis.DB,
		})
		backend = queue.NewRedisBackend(redisClient)
		logger.Printf("queue driver=redis name=%s addr=%s", config.Queue.Name, config.Queue.Redis.Addr)
	}

	eventCache := cache.New(redisClient, core.NewLogger("cache"))
	dispatcher := worker.NewDispatcher(db, eventCache, config, core.NewLogger("dispatcher"))

	q := queue.New(config.Queue.Name, backend,
		queue.WithLogger(core.NewLogger("queue")),
		queue.WithDedupeTTL(time.Duration(config.Queue.DedupeTTLMS)*time.Millisecond),
		queue.WithFallback(dispatcher.Execute),
	)

	registry := webhook.NewRegistry()
	if err := webhook.RegisterDefaultHandlers(registry, q); err != nil {
		return nil, fmt.Errorf("register handlers: %w", err)
	}

	return &Services{
		Config:      config,
		DB:          db,
		Queue:       q,
		Cache:       eventCache,
		Dispatcher:  dispatcher,
		Audit:       auditStore,
		Registry:    registry,
		redisClient: redisClient,
		logger:      logger,
	}, nil
}

// Close releases backend connections.
func (s *Services) Close() {
	if s.redisClient != nil {
		if err := s.redisClient.Close(); err != nil {
			s.logger.Printf("redis close: %v", err)
		}
	}
	if s.DB != nil {
		if sqlDB, err := s.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				s.logger.Printf("storage close: %v", err)
			}
		}
	}
}
