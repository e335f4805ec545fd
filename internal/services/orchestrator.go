// Package services orchestrates writes against the finance API and keeps the
// store consistent afterwards.
package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"financeiro/internal/amqp"
	"financeiro/internal/core"
	"financeiro/internal/log"
	"financeiro/internal/storage"
)

// Writer is the write side of the finance API.
type Writer interface {
	CreateTransaction(ctx context.Context, body core.TransactionPayload) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id int64) error
	CreateAccount(ctx context.Context, body core.NewAccount) (core.Account, error)
	UpdateAccountBalance(ctx context.Context, upd core.BalanceUpdate) (core.Account, error)
	CreateCreditCard(ctx context.Context, body core.NewCard) (core.Card, error)
	UpdateCreditCardClosingDay(ctx context.Context, upd core.ClosingDayUpdate) (core.Card, error)
	DeleteCreditCard(ctx context.Context, id int64) error
	CreateCategory(ctx context.Context, body core.NewCategory) (core.Category, error)
	UpdateCategory(ctx context.Context, upd core.CategoryRename) (core.Category, error)
	DeleteCategory(ctx context.Context, id int64) error
}

// Store is the part of the resource store the orchestrator drives. Reloads
// are pinned to the epoch read before the write so a sign-out in between
// discards them.
type Store interface {
	Epoch() uint64
	ReloadAt(ctx context.Context, kind core.Resource, epoch uint64) error
	Populate(ctx context.Context) error
	InvalidateAggregates()
	Accounts() []core.Account
	CreditCards() []core.Card
	CategorySet() core.CategorySet
}

// Recorder persists mutation outcomes.
type Recorder interface {
	Record(ctx context.Context, rec storage.MutationRecord) (int64, error)
}

// Publisher announces applied mutations.
type Publisher interface {
	PublishMutation(ctx context.Context, event *amqp.MutationEvent) error
}

// ErrUnsupportedMutation is returned for a mutation with no refresh set.
var ErrUnsupportedMutation = errors.New("unsupported mutation")

// Mutation is one write request. Payload carries the write body for creates
// and updates; ID names the entity for deletes.
type Mutation struct {
	Kind      MutationKind
	Operation Operation
	Payload   any
	ID        int64
}

func (m Mutation) key() MutationKey {
	return MutationKey{Kind: m.Kind, Operation: m.Operation}
}

// Result describes an applied mutation. Stale lists refresh-set kinds whose
// reload failed; their snapshots still hold pre-mutation data.
type Result[T any] struct {
	Entity    T
	RequestID string
	Refreshed []core.Resource
	Stale     []core.Resource
}

// Options configures an Orchestrator. Recorder and Publisher are optional.
type Options struct {
	Writer    Writer
	Store     Store
	Recorder  Recorder
	Publisher Publisher
	Logger    *log.Logger
	// Origin tags published events so this process ignores its own.
	Origin string
}

// Orchestrator performs writes and keeps the store consistent with them.
type Orchestrator struct {
	writer    Writer
	store     Store
	recorder  Recorder
	publisher Publisher
	logger    *log.Logger
	origin    string

	inflight atomic.Int32
}

// NewOrchestrator returns an orchestrator over opts.Writer and opts.Store. An
// empty Origin gets a random one.
func NewOrchestrator(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewDiscard()
	}
	origin := opts.Origin
	if origin == "" {
		origin = uuid.NewString()
	}
	return &Orchestrator{
		writer:    opts.Writer,
		store:     opts.Store,
		recorder:  opts.Recorder,
		publisher: opts.Publisher,
		logger:    logger.WithComponent(log.ComponentOrchestrator),
		origin:    origin,
	}
}

// Submitting reports whether any mutation is in flight. The presentation
// uses it to disable submit controls; Perform itself does not serialize.
func (o *Orchestrator) Submitting() bool {
	return o.inflight.Load() > 0
}

// Origin is the id stamped on events this orchestrator publishes.
func (o *Orchestrator) Origin() string {
	return o.origin
}

// Perform writes m and, only if the write succeeds, reloads its refresh set.
// Reload failures do not roll anything back; they are reported in
// Result.Stale.
func (o *Orchestrator) Perform(ctx context.Context, m Mutation) (Result[any], error) {
	set, ok := RefreshSet(m.key())
	if !ok {
		return Result[any]{}, fmt.Errorf("%w: %s", ErrUnsupportedMutation, m.key())
	}

	o.inflight.Add(1)
	defer o.inflight.Add(-1)

	epoch := o.store.Epoch()
	requestID := uuid.NewString()
	ctx = log.WithRequestID(ctx, requestID)
	res := Result[any]{RequestID: requestID}
	start := time.Now()

	entity, entityID, err := o.write(ctx, m)
	if err != nil {
		o.logger.WarnContext(ctx, "Mutation failed",
			log.NewFields().
				WithMutation(string(m.Kind), string(m.Operation), m.ID).
				WithRequestID(requestID).
				WithError(err).
				ToSlice()...)
		o.journal(ctx, m, requestID, entityID, nil, err)
		return res, err
	}
	res.Entity = entity

	if slices.Contains(set, core.ResourceDashboard) {
		o.store.InvalidateAggregates()
	}
	res.Refreshed = set
	res.Stale = o.refresh(ctx, epoch, set)

	fields := log.NewFields().
		WithMutation(string(m.Kind), string(m.Operation), entityID).
		WithRequestID(requestID)
	fields[log.FieldRefreshed] = joinResources(set)
	fields[log.FieldDuration] = time.Since(start).Milliseconds()
	if len(res.Stale) > 0 {
		fields[log.FieldStale] = joinResources(res.Stale)
		o.logger.WarnContext(ctx, "Mutation applied with stale snapshots", fields.ToSlice()...)
	} else {
		o.logger.InfoContext(ctx, "Mutation applied", fields.ToSlice()...)
	}

	o.journal(ctx, m, requestID, entityID, res.Stale, nil)
	o.publish(ctx, m, requestID, entityID, set)

	return res, nil
}

// write dispatches m to the matching Writer call.
func (o *Orchestrator) write(ctx context.Context, m Mutation) (any, int64, error) {
	switch m.key() {
	case MutationKey{KindTransaction, OpCreate}:
		body, err := payload[core.TransactionPayload](m)
		if err != nil {
			return nil, 0, err
		}
		tx, err := o.writer.CreateTransaction(ctx, body)
		return tx, tx.ID, err

	case MutationKey{KindTransaction, OpDelete}:
		return nil, m.ID, o.writer.DeleteTransaction(ctx, m.ID)

	case MutationKey{KindAccount, OpCreate}:
		body, err := payload[core.NewAccount](m)
		if err != nil {
			return nil, 0, err
		}
		acc, err := o.writer.CreateAccount(ctx, body)
		return acc, acc.ID, err

	case MutationKey{KindAccount, OpUpdate}:
		body, err := payload[core.BalanceUpdate](m)
		if err != nil {
			return nil, 0, err
		}
		acc, err := o.writer.UpdateAccountBalance(ctx, body)
		return acc, body.AccountID, err

	case MutationKey{KindCreditCard, OpCreate}:
		body, err := payload[core.NewCard](m)
		if err != nil {
			return nil, 0, err
		}
		card, err := o.writer.CreateCreditCard(ctx, body)
		return card, card.ID, err

	case MutationKey{KindCreditCard, OpUpdate}:
		body, err := payload[core.ClosingDayUpdate](m)
		if err != nil {
			return nil, 0, err
		}
		card, err := o.writer.UpdateCreditCardClosingDay(ctx, body)
		return card, body.CardID, err

	case MutationKey{KindCreditCard, OpDelete}:
		return nil, m.ID, o.writer.DeleteCreditCard(ctx, m.ID)

	case MutationKey{KindCategory, OpCreate}:
		body, err := payload[core.NewCategory](m)
		if err != nil {
			return nil, 0, err
		}
		cat, err := o.writer.CreateCategory(ctx, body)
		return cat, cat.ID, err

	case MutationKey{KindCategory, OpUpdate}:
		body, err := payload[core.CategoryRename](m)
		if err != nil {
			return nil, 0, err
		}
		cat, err := o.writer.UpdateCategory(ctx, body)
		return cat, body.CategoryID, err

	case MutationKey{KindCategory, OpDelete}:
		return nil, m.ID, o.writer.DeleteCategory(ctx, m.ID)
	}
	return nil, 0, fmt.Errorf("%w: %s", ErrUnsupportedMutation, m.key())
}

func payload[T any](m Mutation) (T, error) {
	body, ok := m.Payload.(T)
	if !ok {
		var zero T
		return zero, core.NewValidationError(fmt.Sprintf("%s: payload must be %T, got %T", m.key(), zero, m.Payload))
	}
	return body, nil
}

// refresh reloads every kind concurrently and waits for all of them. It
// returns the kinds whose reload failed, in set order.
func (o *Orchestrator) refresh(ctx context.Context, epoch uint64, set []core.Resource) []core.Resource {
	failed := make([]bool, len(set))

	var g errgroup.Group
	for i, kind := range set {
		i, kind := i, kind // per-iteration copies (go 1.21 loop semantics)
		g.Go(func() error {
			if err := o.store.ReloadAt(ctx, kind, epoch); err != nil {
				failed[i] = true
			}
			return nil
		})
	}
	_ = g.Wait()

	var stale []core.Resource
	for i, kind := range set {
		if failed[i] {
			stale = append(stale, kind)
		}
	}
	return stale
}

func (o *Orchestrator) journal(ctx context.Context, m Mutation, requestID string, entityID int64, stale []core.Resource, failure error) {
	if o.recorder == nil {
		return
	}

	rec := storage.MutationRecord{
		RequestID: requestID,
		Kind:      string(m.Kind),
		Operation: string(m.Operation),
		EntityID:  entityID,
		Outcome:   storage.OutcomeApplied,
		Stale:     resourceNames(stale),
	}
	if failure != nil {
		rec.Outcome = storage.OutcomeFailed
		rec.ErrorKind = string(core.KindOf(failure))
		rec.Message = failure.Error()
	} else {
		set, _ := RefreshSet(m.key())
		rec.Refreshed = resourceNames(set)
	}

	if _, err := o.recorder.Record(ctx, rec); err != nil {
		o.logger.ErrorContext(ctx, "Failed to journal mutation",
			log.FieldRequestID, requestID,
			log.FieldError, err)
		// Don't fail the request - the mutation is already applied or already failed
	}
}

func (o *Orchestrator) publish(ctx context.Context, m Mutation, requestID string, entityID int64, set []core.Resource) {
	if o.publisher == nil {
		return
	}

	event := amqp.NewMutationEvent(requestID, o.origin, string(m.Kind), string(m.Operation), entityID, resourceNames(set))
	if err := o.publisher.PublishMutation(ctx, event); err != nil {
		o.logger.ErrorContext(ctx, "Failed to publish mutation event",
			log.FieldRequestID, requestID,
			log.FieldError, err)
		// Don't fail the request - the server already applied the write
	}
}

// HandleRemoteMutation reloads the resources named by an event published by
// another process. Events from this orchestrator are ignored.
func (o *Orchestrator) HandleRemoteMutation(ctx context.Context, event *amqp.MutationEvent) error {
	if event.Origin == o.origin {
		return nil
	}

	epoch := o.store.Epoch()
	ctx = log.WithRequestID(ctx, event.RequestID)
	var set []core.Resource
	for _, name := range event.Refreshed {
		kind := core.Resource(name)
		if !slices.Contains(core.Resources, kind) {
			o.logger.WarnContext(ctx, "Ignoring unknown resource in mutation event", log.FieldResource, name)
			continue
		}
		set = append(set, kind)
	}
	if slices.Contains(set, core.ResourceDashboard) {
		o.store.InvalidateAggregates()
	}

	stale := o.refresh(ctx, epoch, set)
	o.logger.InfoContext(ctx, "Applied remote mutation",
		log.FieldOrigin, event.Origin,
		log.FieldMutationKind, event.Kind,
		log.FieldOperation, event.Operation,
		log.FieldRefreshed, joinResources(set),
		log.FieldStale, joinResources(stale))
	return nil
}

// RefreshAll invalidates the aggregates and reloads everything the store
// loads on sign-in.
func (o *Orchestrator) RefreshAll(ctx context.Context) error {
	o.store.InvalidateAggregates()
	return o.store.Populate(ctx)
}

func resourceNames(kinds []core.Resource) []string {
	if len(kinds) == 0 {
		return nil
	}
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = k.String()
	}
	return names
}

func joinResources(kinds []core.Resource) string {
	return strings.Join(resourceNames(kinds), ",")
}
