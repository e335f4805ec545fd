package store

import (
	"context"
	"slices"
	"strconv"
	"strings"

	"financeiro/internal/core"
	"financeiro/internal/log"
)

// Accessors return copies; callers may not mutate snapshots.

func (s *Store) Accounts() []core.Account {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.accounts)
}

func (s *Store) CreditCards() []core.Card {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.creditCards)
}

// Categories returns the categories offered for t.
func (s *Store) Categories(t core.TransactionType) []core.Category {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.categories.Of(t))
}

// CategorySet returns both category lists.
func (s *Store) CategorySet() core.CategorySet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.categories.Clone()
}

// Transactions returns the last loaded transaction page and the filter it
// was loaded with.
func (s *Store) Transactions() (core.TransactionPage, core.TransactionFilter) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	page := s.transactions
	page.Transactions = slices.Clone(s.transactions.Transactions)
	return page, s.txFilter
}

// Dashboard returns the last dashboard snapshot; ok is false until one loads.
func (s *Store) Dashboard() (snap core.DashboardSnapshot, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap = s.dashboard
	snap.CreditCards = slices.Clone(s.dashboard.CreditCards)
	snap.RecentTransactions = slices.Clone(s.dashboard.RecentTransactions)
	return snap, s.hasDashboard
}

// Loading reports whether a bulk populate is in progress.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading > 0
}

// Aggregates

// MonthlyChart returns the monthly income/expense chart, served from the
// aggregate cache when possible.
func (s *Store) MonthlyChart(ctx context.Context) ([]core.MonthlyChartPoint, error) {
	const key = "monthly-chart"
	if v, ok := s.charts.Get(key); ok {
		return slices.Clone(v), nil
	}

	gen := s.aggregateGeneration()
	points, err := s.reader.GetMonthlyChart(ctx)
	if err != nil {
		return nil, err
	}
	if s.aggregateGeneration() == gen {
		s.charts.Set(key, points)
	}
	return slices.Clone(points), nil
}

// Projections returns the multi-month projection. months <= 0 uses the
// configured default.
func (s *Store) Projections(ctx context.Context, months int) ([]core.ProjectionPoint, error) {
	if months <= 0 {
		months = s.projectionMonths
	}
	key := "projections:" + strconv.Itoa(months)
	if v, ok := s.projections.Get(key); ok {
		return slices.Clone(v), nil
	}

	gen := s.aggregateGeneration()
	points, err := s.reader.GetProjections(ctx, months)
	if err != nil {
		return nil, err
	}
	if s.aggregateGeneration() == gen {
		s.projections.Set(key, points)
	}
	return slices.Clone(points), nil
}

// ReportSummary returns the report for period grouped by groupBy, served
// from the aggregate cache when possible. Both bounds of period are
// required.
func (s *Store) ReportSummary(ctx context.Context, period core.DateRange, groupBy core.ReportGrouping) (core.ReportSummary, error) {
	if period.Start.IsZero() || period.End.IsZero() {
		return core.ReportSummary{}, core.NewValidationError("start_date e end_date são obrigatórios", "MISSING_PERIOD")
	}
	if period.End.Before(period.Start.Time) {
		return core.ReportSummary{}, core.NewValidationError("Data final anterior à data inicial", "INVALID_PERIOD")
	}
	if !groupBy.IsValid() {
		return core.ReportSummary{}, core.NewValidationError(`group_by deve ser "category" ou "month"`, "INVALID_GROUP_BY")
	}

	key := strings.Join([]string{"report", string(groupBy), period.Start.String(), period.End.String()}, ":")
	if v, ok := s.reports.Get(key); ok {
		return cloneReport(v), nil
	}

	gen := s.aggregateGeneration()
	report, err := s.reader.GetReportSummary(ctx, period, groupBy)
	if err != nil {
		return core.ReportSummary{}, err
	}
	if s.aggregateGeneration() == gen {
		s.reports.Set(key, report)
	}
	return cloneReport(report), nil
}

func cloneReport(r core.ReportSummary) core.ReportSummary {
	r.IncomeByCategory = slices.Clone(r.IncomeByCategory)
	r.ExpensesByCategory = slices.Clone(r.ExpensesByCategory)
	r.MonthlyTotals = slices.Clone(r.MonthlyTotals)
	return r
}

// InvalidateAggregates drops cached charts, projections and reports. A fetch
// that started before the call will not repopulate the cache.
func (s *Store) InvalidateAggregates() {
	s.mu.Lock()
	s.aggGen++
	s.mu.Unlock()

	s.purgeAggregates()
	s.logger.Debug("Aggregate cache purged")
}

func (s *Store) purgeAggregates() {
	s.charts.Purge()
	s.projections.Purge()
	s.reports.Purge()
}

func (s *Store) aggregateGeneration() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.aggGen
}

// Observers

// Subscribe registers fn to be called after a snapshot of the given kind is
// replaced or reset. It returns a function that removes the subscription.
func (s *Store) Subscribe(fn func(core.Resource)) (unsubscribe func()) {
	s.obsMu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.obsMu.Unlock()

	return func() {
		s.obsMu.Lock()
		delete(s.observers, id)
		s.obsMu.Unlock()
	}
}

func (s *Store) notify(kind core.Resource) {
	s.obsMu.Lock()
	fns := make([]func(core.Resource), 0, len(s.observers))
	for _, fn := range s.observers {
		fns = append(fns, fn)
	}
	s.obsMu.Unlock()

	for _, fn := range fns {
		fn(kind)
	}
	if len(fns) > 0 {
		s.logger.Debug("Observers notified", log.FieldResource, kind.String(), log.FieldCount, len(fns))
	}
}
