// Package store holds the last-known snapshot of every server resource the
// client mirrors.
//
// Snapshots are only ever replaced wholesale by a successful reload. A failed
// reload keeps the previous snapshot. Each reload is tagged with a per-kind
// sequence number; a response older than the last applied one is dropped.
// Reset starts a new epoch. Reloads are pinned to the epoch their caller
// observed, so one started or merely scheduled before sign-out never lands.
package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"financeiro/internal/cache"
	"financeiro/internal/core"
	"financeiro/internal/log"
)

// Reader is the read side of the finance API.
type Reader interface {
	ListAccounts(ctx context.Context) ([]core.Account, error)
	ListCreditCards(ctx context.Context) ([]core.Card, error)
	ListCategories(ctx context.Context) (core.CategorySet, error)
	ListTransactions(ctx context.Context, filter core.TransactionFilter) (core.TransactionPage, error)
	GetDashboard(ctx context.Context, period core.DateRange) (core.DashboardSnapshot, error)
	GetMonthlyChart(ctx context.Context) ([]core.MonthlyChartPoint, error)
	GetProjections(ctx context.Context, months int) ([]core.ProjectionPoint, error)
	GetReportSummary(ctx context.Context, period core.DateRange, groupBy core.ReportGrouping) (core.ReportSummary, error)
}

// ErrUnknownResource is returned by Reload for kinds the store does not hold.
var ErrUnknownResource = errors.New("unknown resource")

// PopulateKinds are the resources loaded on sign-in, in start order.
var PopulateKinds = []core.Resource{
	core.ResourceAccounts,
	core.ResourceCreditCards,
	core.ResourceCategories,
	core.ResourceDashboard,
}

// Options configures a Store. Nil caches get small in-memory defaults.
type Options struct {
	Reader          Reader
	Logger          *log.Logger
	ChartCache      cache.Cache[[]core.MonthlyChartPoint]
	ProjectionCache cache.Cache[[]core.ProjectionPoint]
	ReportCache     cache.Cache[core.ReportSummary]
	// ProjectionMonths is used when Projections is called with months <= 0.
	ProjectionMonths int
}

// Store is the client-side mirror of the server resources. It is safe for
// concurrent use.
type Store struct {
	reader Reader
	logger *log.Logger

	mu           sync.RWMutex
	accounts     []core.Account
	creditCards  []core.Card
	categories   core.CategorySet
	transactions core.TransactionPage
	dashboard    core.DashboardSnapshot
	hasDashboard bool
	txFilter     core.TransactionFilter
	period       core.DateRange

	loading int
	epoch   uint64
	issued  map[core.Resource]uint64
	applied map[core.Resource]uint64

	// aggregates
	charts           cache.Cache[[]core.MonthlyChartPoint]
	projections      cache.Cache[[]core.ProjectionPoint]
	reports          cache.Cache[core.ReportSummary]
	projectionMonths int
	aggGen           uint64

	obsMu     sync.Mutex
	observers map[int]func(core.Resource)
	nextObs   int
}

// New returns an empty store reading through opts.Reader.
func New(opts Options) *Store {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewDiscard()
	}
	charts := opts.ChartCache
	if charts == nil {
		charts = cache.NewLRUCache[[]core.MonthlyChartPoint](4, 5*time.Minute)
	}
	projections := opts.ProjectionCache
	if projections == nil {
		projections = cache.NewLRUCache[[]core.ProjectionPoint](8, 5*time.Minute)
	}
	reports := opts.ReportCache
	if reports == nil {
		reports = cache.NewLRUCache[core.ReportSummary](8, 5*time.Minute)
	}
	months := opts.ProjectionMonths
	if months <= 0 {
		months = 6
	}

	s := &Store{
		reader:           opts.Reader,
		logger:           logger.WithComponent(log.ComponentStore),
		charts:           charts,
		projections:      projections,
		reports:          reports,
		projectionMonths: months,
		observers:        make(map[int]func(core.Resource)),
	}
	s.resetLocked()
	return s
}

// resetLocked sets every snapshot to its empty value. Caller holds mu or owns s.
func (s *Store) resetLocked() {
	s.accounts = []core.Account{}
	s.creditCards = []core.Card{}
	s.categories = core.CategorySet{Income: []core.Category{}, Expense: []core.Category{}}
	s.transactions = core.TransactionPage{Transactions: []core.Transaction{}}
	s.dashboard = core.DashboardSnapshot{}
	s.hasDashboard = false
	s.txFilter = core.TransactionFilter{}
	s.period = core.DateRange{}
	s.issued = make(map[core.Resource]uint64)
	s.applied = make(map[core.Resource]uint64)
}

// ticket identifies one reload for the stale-response check.
type ticket struct {
	kind  core.Resource
	seq   uint64
	epoch uint64
}

// Epoch identifies the current session. Capture it before the work that
// leads to a reload and pass it to the *At methods.
func (s *Store) Epoch() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.epoch
}

// issue hands out the next ticket for kind, or false if epoch has ended.
func (s *Store) issue(kind core.Resource, epoch uint64) (ticket, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if epoch != s.epoch {
		return ticket{}, false
	}
	s.issued[kind]++
	return ticket{kind: kind, seq: s.issued[kind], epoch: epoch}, true
}

// remember stores a reload parameter unless epoch has ended.
func (s *Store) remember(epoch uint64, set func()) {
	s.mu.Lock()
	if epoch == s.epoch {
		set()
	}
	s.mu.Unlock()
}

// apply runs set under the write lock if t is still current. It reports
// whether the snapshot was replaced.
func (s *Store) apply(t ticket, set func()) bool {
	s.mu.Lock()
	if t.epoch != s.epoch || t.seq <= s.applied[t.kind] {
		s.mu.Unlock()
		return false
	}
	s.applied[t.kind] = t.seq
	set()
	s.mu.Unlock()

	s.notify(t.kind)
	return true
}

// reload fetches with the given function and applies the result through set.
// A reload pinned to an ended epoch is skipped without a request.
func reload[T any](ctx context.Context, s *Store, epoch uint64, kind core.Resource, fetch func(context.Context) (T, error), set func(T)) error {
	t, ok := s.issue(kind, epoch)
	if !ok {
		s.logger.DebugContext(ctx, "Skipped reload for ended session", log.FieldResource, kind.String())
		return nil
	}
	start := time.Now()

	v, err := fetch(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Reload failed, keeping previous snapshot",
			log.NewFields().
				WithResource(kind.String()).
				WithOperation(log.OpReload).
				WithRequestID(log.RequestID(ctx)).
				WithError(err).
				ToSlice()...)
		return fmt.Errorf("reload %s: %w", kind, err)
	}

	if !s.apply(t, func() { set(v) }) {
		s.logger.DebugContext(ctx, "Discarded stale response",
			log.FieldResource, kind.String(),
			log.FieldSequence, t.seq)
		return nil
	}

	s.logger.DebugContext(ctx, "Snapshot replaced",
		log.FieldResource, kind.String(),
		log.FieldSequence, t.seq,
		log.FieldDuration, time.Since(start).Milliseconds())
	return nil
}

// ReloadAccounts replaces the account list.
func (s *Store) ReloadAccounts(ctx context.Context) error {
	return s.reloadAccounts(ctx, s.Epoch())
}

func (s *Store) reloadAccounts(ctx context.Context, epoch uint64) error {
	return reload(ctx, s, epoch, core.ResourceAccounts, s.reader.ListAccounts, func(v []core.Account) {
		s.accounts = v
	})
}

// ReloadCreditCards replaces the credit card list.
func (s *Store) ReloadCreditCards(ctx context.Context) error {
	return s.reloadCreditCards(ctx, s.Epoch())
}

func (s *Store) reloadCreditCards(ctx context.Context, epoch uint64) error {
	return reload(ctx, s, epoch, core.ResourceCreditCards, s.reader.ListCreditCards, func(v []core.Card) {
		s.creditCards = v
	})
}

// ReloadCategories replaces both category lists.
func (s *Store) ReloadCategories(ctx context.Context) error {
	return s.reloadCategories(ctx, s.Epoch())
}

func (s *Store) reloadCategories(ctx context.Context, epoch uint64) error {
	return reload(ctx, s, epoch, core.ResourceCategories, s.reader.ListCategories, func(v core.CategorySet) {
		s.categories = v
	})
}

// ReloadTransactions loads the filtered transaction list and remembers the
// filter for later refreshes.
func (s *Store) ReloadTransactions(ctx context.Context, filter core.TransactionFilter) error {
	return s.reloadTransactions(ctx, s.Epoch(), filter)
}

func (s *Store) reloadTransactions(ctx context.Context, epoch uint64, filter core.TransactionFilter) error {
	s.remember(epoch, func() { s.txFilter = filter })

	fetch := func(ctx context.Context) (core.TransactionPage, error) {
		return s.reader.ListTransactions(ctx, filter)
	}
	return reload(ctx, s, epoch, core.ResourceTransactions, fetch, func(v core.TransactionPage) {
		s.transactions = v
	})
}

// ReloadDashboard loads the dashboard for period and remembers it for later
// refreshes. A zero period lets the server pick the current month.
func (s *Store) ReloadDashboard(ctx context.Context, period core.DateRange) error {
	return s.reloadDashboard(ctx, s.Epoch(), period)
}

func (s *Store) reloadDashboard(ctx context.Context, epoch uint64, period core.DateRange) error {
	s.remember(epoch, func() { s.period = period })

	fetch := func(ctx context.Context) (core.DashboardSnapshot, error) {
		return s.reader.GetDashboard(ctx, period)
	}
	return reload(ctx, s, epoch, core.ResourceDashboard, fetch, func(v core.DashboardSnapshot) {
		s.dashboard = v
		s.hasDashboard = true
	})
}

// Reload reloads one resource kind, reusing the last transaction filter and
// dashboard period.
func (s *Store) Reload(ctx context.Context, kind core.Resource) error {
	return s.ReloadAt(ctx, kind, s.Epoch())
}

// ReloadAt is Reload pinned to epoch. Once Reset has ended that epoch it
// does nothing.
func (s *Store) ReloadAt(ctx context.Context, kind core.Resource, epoch uint64) error {
	switch kind {
	case core.ResourceAccounts:
		return s.reloadAccounts(ctx, epoch)
	case core.ResourceCreditCards:
		return s.reloadCreditCards(ctx, epoch)
	case core.ResourceCategories:
		return s.reloadCategories(ctx, epoch)
	case core.ResourceTransactions:
		s.mu.RLock()
		filter := s.txFilter
		s.mu.RUnlock()
		return s.reloadTransactions(ctx, epoch, filter)
	case core.ResourceDashboard:
		s.mu.RLock()
		period := s.period
		s.mu.RUnlock()
		return s.reloadDashboard(ctx, epoch, period)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownResource, kind)
	}
}

// Populate reloads accounts, credit cards, categories and the dashboard
// concurrently and waits for all of them to settle. One failure never blocks
// the others; the joined error lists every failed kind.
func (s *Store) Populate(ctx context.Context) error {
	return s.PopulateAt(ctx, s.Epoch())
}

// PopulateAt is Populate pinned to epoch. It returns immediately if the
// epoch has already ended.
func (s *Store) PopulateAt(ctx context.Context, epoch uint64) error {
	s.mu.Lock()
	if epoch != s.epoch {
		s.mu.Unlock()
		s.logger.DebugContext(ctx, "Skipped populate for ended session", log.FieldOperation, log.OpPopulate)
		return nil
	}
	s.loading++
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.loading--
		s.mu.Unlock()
	}()

	start := time.Now()
	errs := make([]error, len(PopulateKinds))

	var g errgroup.Group
	for i, kind := range PopulateKinds {
		i, kind := i, kind // per-iteration copies (go 1.21 loop semantics)
		g.Go(func() error {
			errs[i] = s.ReloadAt(ctx, kind, epoch)
			return nil
		})
	}
	_ = g.Wait()

	err := errors.Join(errs...)
	s.logger.InfoContext(ctx, "Store populated",
		log.FieldOperation, log.OpPopulate,
		log.FieldSuccess, err == nil,
		log.FieldDuration, time.Since(start).Milliseconds())
	return err
}

// OnSignIn is the session hook for a false->true transition. epoch is the
// value Epoch returned when the transition happened; a sign-out since then
// makes this a no-op. Read failures are logged and the previous (empty)
// snapshots are kept.
func (s *Store) OnSignIn(ctx context.Context, epoch uint64) {
	if err := s.PopulateAt(ctx, epoch); err != nil {
		s.logger.WarnContext(ctx, "Initial load incomplete", log.FieldError, err)
	}
}

// OnSignOut is the session hook for a true->false transition.
func (s *Store) OnSignOut() {
	s.Reset()
}

// Reset synchronously clears every snapshot and the aggregate caches. Any
// reload in flight when Reset runs is discarded on arrival.
func (s *Store) Reset() {
	s.mu.Lock()
	s.epoch++
	s.resetLocked()
	s.aggGen++
	s.mu.Unlock()

	s.purgeAggregates()

	s.logger.Info("Store reset", log.FieldOperation, log.OpReset)
	for _, kind := range core.Resources {
		s.notify(kind)
	}
}
