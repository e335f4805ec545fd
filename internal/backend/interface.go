package backend

import (
	"context"
	"time"

	"financeiro/internal/amqp"
	"financeiro/internal/api"
	"financeiro/internal/cache"
	"financeiro/internal/services"
	"financeiro/internal/session"
	"financeiro/internal/storage"
	"financeiro/internal/store"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult is the wired client core. Journal and AMQP are nil when
// disabled or unavailable.
type BackendResult struct {
	Client       *api.Client
	Store        *store.Store
	Orchestrator *services.Orchestrator
	Gate         *session.HTTPGate
	Journal      *storage.Journal
	AMQP         *amqp.Client
	Caches       *cache.Manager
	Cleanup      CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	// CreateBackend wires every component described by config
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	// Finance API
	APIBaseURL string
	APITimeout time.Duration

	// Aggregate cache
	ProjectionMonths   int
	AggregateCacheTTL  time.Duration
	AggregateCacheSize int

	// Optional mutation journal
	JournalDBPath string

	// Optional mutation events
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Origin tags published events; empty picks a random id
	Origin string
}
