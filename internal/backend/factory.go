package backend

import (
	"context"
	"fmt"

	"fintrack/internal/adapters"
	"fintrack/internal/amqp"
	applog "fintrack/internal/log"
	"fintrack/internal/memory"
	"fintrack/internal/remote"
	"fintrack/internal/services"
	"fintrack/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.Discard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(applog.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SQLiteBackend:
		return f.createSQLiteBackend(ctx, config)
	case RemoteBackend:
		return f.createRemoteBackend(config)
	case MemoryBackend:
		return f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createSQLiteBackend(ctx context.Context, config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	// A nil *amqp.Client must not reach the service as a non-nil interface.
	var publisher services.Publisher
	if config.AMQPURL != "" {
		client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			publisher = client
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	service := services.NewTransactionService(repo, publisher)
	adapter := adapters.NewSQLiteAdapter(repo, service)

	f.logger.InfoContext(ctx, "Initialized SQLite backend",
		"db_path", config.SQLiteDBPath,
		"schema_version", repo.SchemaVersion(),
		"amqp_enabled", publisher != nil)

	return &BackendResult{
		Opener:  adapter,
		Cleanup: service.Close,
		Ready:   repo.Ping,
	}, nil
}

func (f *DefaultFactory) createRemoteBackend(config Config) (*BackendResult, error) {
	opts := []remote.Option{remote.WithLogger(f.logger.WithComponent(applog.ComponentRemote).Slog())}
	if config.RemoteTimeout > 0 {
		opts = append(opts, remote.WithTimeout(config.RemoteTimeout))
	}
	opener, err := remote.NewOpener(config.APIBase, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize remote backend: %w", err)
	}

	f.logger.Info("Initialized remote backend", "api_base", config.APIBase, "timeout", config.RemoteTimeout)

	return &BackendResult{Opener: opener}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	if config.SeedFile == "" {
		f.logger.Info("Initialized memory backend")
		return &BackendResult{Opener: memory.New()}, nil
	}

	store, err := memory.NewFromFile(config.SeedFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load seed file: %w", err)
	}

	f.logger.Info("Initialized memory backend", "seed_file", config.SeedFile)

	return &BackendResult{Opener: store}, nil
}
