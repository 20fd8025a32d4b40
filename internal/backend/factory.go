package backend

import (
	"context"
	"errors"
	"fmt"

	"budgetcontrol/internal/amqp"
	"budgetcontrol/internal/cache"
	"budgetcontrol/internal/ledger"
	"budgetcontrol/internal/ledger/memory"
	"budgetcontrol/internal/log"
	"budgetcontrol/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.Default()
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentBackend)}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		store   Store
		cleanup []CleanupFunc
	)
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, f.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		store = repo
		cleanup = append(cleanup, repo.Close)
		f.logger.InfoContext(ctx, "Initialized SQLite backend",
			"db_path", config.SQLiteDBPath,
			"schema_version", repo.SchemaVersion())
	case MemoryBackend:
		store = memory.New()
		f.logger.InfoContext(ctx, "Initialized memory backend")
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	var tags ledger.TagIndex = store
	if config.TagCacheSize > 0 {
		lru := cache.NewLRUCache[[]int64](config.TagCacheSize, config.TagCacheTTL)
		manager := cache.NewManager(f.logger)
		manager.Register(lru)
		manager.StartCleanup(config.TagCacheTTL)
		cached := ledger.NewCachedTagIndex(store, lru)
		tags = cached
		store = cachedStore{Store: store, tags: cached}
		cleanup = append(cleanup, func() error {
			manager.Stop()
			return nil
		})
	}

	transport := ledger.NotificationTransport(NewLogTransport(f.logger))
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(ctx, config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, alerts go to the log", log.FieldError, err)
		} else {
			transport = client
			cleanup = append(cleanup, client.Close)
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	return &BackendResult{
		Store:     store,
		Tags:      tags,
		Transport: transport,
		Cleanup: func() error {
			var errs []error
			for i := len(cleanup) - 1; i >= 0; i-- {
				errs = append(errs, cleanup[i]())
			}
			return errors.Join(errs...)
		},
	}, nil
}
