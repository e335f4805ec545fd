package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"financeiro/internal/amqp"
	"financeiro/internal/api"
	"financeiro/internal/cache"
	"financeiro/internal/core"
	"financeiro/internal/log"
	"financeiro/internal/services"
	"financeiro/internal/session"
	"financeiro/internal/storage"
	"financeiro/internal/store"
)

// cacheCleanupInterval is how often expired aggregate entries are dropped.
const cacheCleanupInterval = time.Minute

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *log.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.NewDiscard()
	}
	return &DefaultFactory{
		logger: logger.WithComponent(log.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid backend config: %w", err)
	}

	client, err := api.NewClient(api.Options{
		BaseURL: config.APIBaseURL,
		Timeout: config.APITimeout,
		Logger:  f.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize API client: %w", err)
	}

	charts := cache.NewLRUCache[[]core.MonthlyChartPoint](config.AggregateCacheSize, config.AggregateCacheTTL)
	projections := cache.NewLRUCache[[]core.ProjectionPoint](config.AggregateCacheSize, config.AggregateCacheTTL)
	reports := cache.NewLRUCache[core.ReportSummary](config.AggregateCacheSize, config.AggregateCacheTTL)
	caches := cache.NewManager(f.logger)
	caches.Register("monthly_chart", charts)
	caches.Register("projections", projections)
	caches.Register("reports", reports)
	caches.StartCleanup(cacheCleanupInterval)

	st := store.New(store.Options{
		Reader:           client,
		Logger:           f.logger,
		ChartCache:       charts,
		ProjectionCache:  projections,
		ReportCache:      reports,
		ProjectionMonths: config.ProjectionMonths,
	})

	res := &BackendResult{
		Client: client,
		Store:  st,
		Gate:   session.NewHTTPGate(client, f.logger),
		Caches: caches,
	}

	opts := services.Options{
		Writer: client,
		Store:  st,
		Logger: f.logger,
		Origin: config.Origin,
	}

	// Initialize mutation journal (optional)
	if config.JournalDBPath != "" {
		journal, err := storage.NewJournal(config.JournalDBPath)
		if err != nil {
			caches.Stop()
			return nil, fmt.Errorf("failed to initialize mutation journal: %w", err)
		}
		res.Journal = journal
		opts.Recorder = journal
		f.logger.Info("Initialized mutation journal", "db_path", config.JournalDBPath)
	}

	// Initialize AMQP client (optional)
	if config.AMQPURL != "" {
		amqpClient, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		if err != nil {
			f.logger.Warn("Failed to initialize AMQP client, continuing without mutation events", log.FieldError, err)
		} else {
			res.AMQP = amqpClient
			opts.Publisher = amqpClient
			f.logger.Info("Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	res.Orchestrator = services.NewOrchestrator(opts)
	res.Cleanup = res.close

	f.logger.Info("Initialized backend",
		"api_base_url", config.APIBaseURL,
		"journal_enabled", res.Journal != nil,
		"amqp_enabled", res.AMQP != nil,
		log.FieldOrigin, res.Orchestrator.Origin())

	return res, nil
}

// close releases everything CreateBackend opened.
func (r *BackendResult) close() error {
	r.Caches.Stop()

	var errs []error
	if r.AMQP != nil {
		if err := r.AMQP.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close AMQP client: %w", err))
		}
	}
	if r.Journal != nil {
		if err := r.Journal.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close mutation journal: %w", err))
		}
	}
	return errors.Join(errs...)
}
