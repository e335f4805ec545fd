package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"financeiro/internal/amqp"
	"financeiro/internal/log"
)

// Remote applies refreshes that did not originate from a local mutation.
// services.Orchestrator satisfies it.
type Remote interface {
	HandleRemoteMutation(ctx context.Context, event *amqp.MutationEvent) error
	RefreshAll(ctx context.Context) error
}

// Consumer delivers mutation events published by other processes.
type Consumer interface {
	ConsumeMutations(ctx context.Context, handler func(context.Context, *amqp.MutationEvent) error) error
}

// SignedIn reports the session flag; session.Gate satisfies it.
type SignedIn interface {
	Authenticated() bool
}

// RefreshWorker keeps the store current with writes made elsewhere: it
// applies mutation events from the broker and, optionally, reloads
// everything on a fixed interval. Nothing is reloaded while signed out.
type RefreshWorker struct {
	remote   Remote
	session  SignedIn
	interval time.Duration
	logger   *log.Logger
}

func NewRefreshWorker(remote Remote, session SignedIn, interval time.Duration, logger *log.Logger) *RefreshWorker {
	if logger == nil {
		logger = log.NewDiscard()
	}
	return &RefreshWorker{
		remote:   remote,
		session:  session,
		interval: interval,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// HandleMutationMessage processes a single mutation event from AMQP
func (w *RefreshWorker) HandleMutationMessage(ctx context.Context, event *amqp.MutationEvent) error {
	if !w.session.Authenticated() {
		w.logger.DebugContext(ctx, "Signed out, ignoring mutation event",
			log.FieldRequestID, event.RequestID,
			log.FieldOrigin, event.Origin)
		return nil
	}

	if err := w.remote.HandleRemoteMutation(ctx, event); err != nil {
		return fmt.Errorf("apply remote mutation %s: %w", event.RequestID, err)
	}
	return nil
}

// PeriodicRefresh reloads every store resource. It is a backup for events
// lost while the broker was unreachable.
func (w *RefreshWorker) PeriodicRefresh(ctx context.Context) error {
	if !w.session.Authenticated() {
		return nil
	}

	start := time.Now()
	err := w.remote.RefreshAll(ctx)
	w.logger.InfoContext(ctx, "Periodic refresh completed",
		log.FieldOperation, log.OpRefresh,
		log.FieldSuccess, err == nil,
		log.FieldDuration, time.Since(start).Milliseconds())
	if err != nil {
		return fmt.Errorf("periodic refresh: %w", err)
	}
	return nil
}

// Run starts consuming (when consumer is non-nil) and ticking (when the
// interval is positive), and blocks until ctx is cancelled or consumption
// fails.
func (w *RefreshWorker) Run(ctx context.Context, consumer Consumer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	consumeErr := make(chan error, 1)
	if consumer != nil {
		go func() {
			consumeErr <- consumer.ConsumeMutations(ctx, w.HandleMutationMessage)
		}()
	} else {
		w.logger.Info("Skipping mutation event consumption - no consumer available")
	}

	var tick <-chan time.Time
	if w.interval > 0 {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-consumeErr:
			if err == nil || errors.Is(err, context.Canceled) {
				return nil
			}
			w.logger.Error("Mutation event consumption failed", log.FieldError, err)
			return err
		case <-tick:
			if err := w.PeriodicRefresh(ctx); err != nil {
				w.logger.Error("Periodic refresh failed", log.FieldError, err)
			}
		}
	}
}
