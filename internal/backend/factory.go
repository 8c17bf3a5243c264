package backend

import (
	"context"
	"errors"
	"fmt"

	"waterwise/internal/adapters"
	"waterwise/internal/amqp"
	"waterwise/internal/kv/redis"
	applog "waterwise/internal/log"
	gsheet "waterwise/internal/sheets/google"
	"waterwise/internal/sheets/memory"
	"waterwise/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &DefaultFactory{logger: logger.WithComponent(applog.ComponentBackend)}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case SheetsBackend:
		return f.createSheetsBackend(ctx, config)
	case RedisBackend:
		return f.createRedisBackend(ctx, config)
	case MemoryBackend:
		return f.createMemoryBackend(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

// outbox is the SQLite event store plus the optional AMQP publisher.
type outbox struct {
	repo   *storage.SQLiteRepository
	client *amqp.Client
}

func (ob outbox) close() error {
	var errs []error
	if ob.client != nil {
		errs = append(errs, ob.client.Close())
	}
	errs = append(errs, ob.repo.Close())
	return errors.Join(errs...)
}

func (f *DefaultFactory) openOutbox(ctx context.Context, config Config) (outbox, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, config.UserID, f.logger)
	if err != nil {
		return outbox{}, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	ob := outbox{repo: repo}
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without sync", applog.FieldError, err)
		} else {
			ob.client = client
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}
	return ob, nil
}

func (ob outbox) remote(logger *applog.Logger) *adapters.SQLiteAdapter {
	// Keep the interface nil when there is no client.
	var pub adapters.Publisher
	if ob.client != nil {
		pub = ob.client
	}
	return adapters.NewSQLiteAdapter(ob.repo, pub, logger)
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	ob, err := f.openOutbox(ctx, config)
	if err != nil {
		return nil, err
	}

	f.logger.InfoContext(ctx, "Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", ob.client != nil)

	return &BackendResult{
		Profile: ob.repo,
		Remote:  ob.remote(f.logger),
		Ping:    ob.repo.Ping,
		Cleanup: ob.close,
	}, nil
}

func (f *DefaultFactory) createSheetsBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath, config.UserID, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	cli, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		IntakeSheet:     config.GoogleSheetName,
		ProfileSheet:    config.GoogleProfileSheetName,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
	}, f.logger)
	if err != nil {
		repo.Close()
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}

	f.logger.InfoContext(ctx, "Initialized Google Sheets backend", "sheet", config.GoogleSheetName)

	return &BackendResult{
		Profile: repo,
		Remote:  cli,
		Ping:    repo.Ping,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createRedisBackend(ctx context.Context, config Config) (*BackendResult, error) {
	kv, err := redis.New(ctx, redis.Options{
		Addr:     config.RedisAddr,
		Password: config.RedisPassword,
		DB:       config.RedisDB,
	}, config.UserID, f.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Redis store: %w", err)
	}

	ob, err := f.openOutbox(ctx, config)
	if err != nil {
		kv.Close()
		return nil, err
	}

	f.logger.InfoContext(ctx, "Initialized Redis backend",
		"redis_addr", config.RedisAddr,
		"db_path", config.SQLiteDBPath,
		"amqp_enabled", ob.client != nil)

	return &BackendResult{
		Profile: kv,
		Remote:  ob.remote(f.logger),
		Ping: func(ctx context.Context) error {
			return errors.Join(kv.Ping(ctx), ob.repo.Ping(ctx))
		},
		Cleanup: func() error { return errors.Join(ob.close(), kv.Close()) },
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(ctx context.Context, config Config) (*BackendResult, error) {
	dataDir := config.DataDirectory
	if dataDir == "" {
		dataDir = "data"
	}
	store := memory.NewFromFiles(dataDir)

	f.logger.InfoContext(ctx, "Initialized memory backend", "data_directory", dataDir)

	return &BackendResult{
		Profile: store,
		Remote:  store,
		Ping:    func(context.Context) error { return nil },
		Cleanup: func() error { return nil },
	}, nil
}
