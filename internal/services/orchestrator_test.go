package services

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"financeiro/internal/amqp"
	"financeiro/internal/core"
	"financeiro/internal/intake"
	"financeiro/internal/storage"
	"financeiro/internal/store"
)

// countingReader serves fixed snapshots and counts reads per resource.
type countingReader struct {
	mu    sync.Mutex
	calls map[core.Resource]int
	fail  map[core.Resource]error
	// balance is returned for the single account; writes bump it
	balance core.Money
}

func newCountingReader() *countingReader {
	return &countingReader{
		calls:   make(map[core.Resource]int),
		fail:    make(map[core.Resource]error),
		balance: core.MustMoney("1000"),
	}
}

func (r *countingReader) hit(kind core.Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[kind]++
	return r.fail[kind]
}

func (r *countingReader) counts() map[core.Resource]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[core.Resource]int, len(r.calls))
	for k, v := range r.calls {
		out[k] = v
	}
	return out
}

func (r *countingReader) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = make(map[core.Resource]int)
}

func (r *countingReader) ListAccounts(ctx context.Context) ([]core.Account, error) {
	if err := r.hit(core.ResourceAccounts); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return []core.Account{{ID: 7, Name: "Conta Corrente", Balance: r.balance}}, nil
}

func (r *countingReader) ListCreditCards(ctx context.Context) ([]core.Card, error) {
	if err := r.hit(core.ResourceCreditCards); err != nil {
		return nil, err
	}
	return []core.Card{{ID: 2, Name: "Nubank", ClosingDay: 15}}, nil
}

func (r *countingReader) ListCategories(ctx context.Context) (core.CategorySet, error) {
	if err := r.hit(core.ResourceCategories); err != nil {
		return core.CategorySet{}, err
	}
	return core.SplitCategories([]core.Category{
		{ID: 1, Name: "Salário", Type: core.Income, IsDefault: true},
		{ID: 5, Name: "Alimentação", Type: core.Expense, IsDefault: true},
		{ID: 9, Name: "Pets", Type: core.Expense},
	}), nil
}

func (r *countingReader) ListTransactions(ctx context.Context, f core.TransactionFilter) (core.TransactionPage, error) {
	if err := r.hit(core.ResourceTransactions); err != nil {
		return core.TransactionPage{}, err
	}
	return core.TransactionPage{Transactions: []core.Transaction{}}, nil
}

func (r *countingReader) GetDashboard(ctx context.Context, p core.DateRange) (core.DashboardSnapshot, error) {
	if err := r.hit(core.ResourceDashboard); err != nil {
		return core.DashboardSnapshot{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return core.DashboardSnapshot{CurrentBalance: r.balance}, nil
}

func (r *countingReader) GetMonthlyChart(ctx context.Context) ([]core.MonthlyChartPoint, error) {
	return nil, nil
}

func (r *countingReader) GetProjections(ctx context.Context, months int) ([]core.ProjectionPoint, error) {
	return nil, nil
}

func (r *countingReader) GetReportSummary(ctx context.Context, p core.DateRange, g core.ReportGrouping) (core.ReportSummary, error) {
	return core.ReportSummary{}, nil
}

// fakeWriter records calls; err, when set, is returned by every write.
type fakeWriter struct {
	mu     sync.Mutex
	calls  []string
	err    error
	block  chan struct{}
	reader *countingReader
	last   any
}

func (w *fakeWriter) called(name string, body any) error {
	w.mu.Lock()
	w.calls = append(w.calls, name)
	w.last = body
	block, err := w.block, w.err
	w.mu.Unlock()
	if block != nil {
		<-block
	}
	return err
}

func (w *fakeWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.calls)
}

func (w *fakeWriter) CreateTransaction(ctx context.Context, body core.TransactionPayload) (core.Transaction, error) {
	if err := w.called("CreateTransaction", body); err != nil {
		return core.Transaction{}, err
	}
	if w.reader != nil {
		w.reader.mu.Lock()
		w.reader.balance = core.NewMoney(w.reader.balance.Sub(body.Amount.Decimal))
		w.reader.mu.Unlock()
	}
	return core.Transaction{ID: 42, Description: body.Description, Amount: body.Amount}, nil
}

func (w *fakeWriter) DeleteTransaction(ctx context.Context, id int64) error {
	return w.called("DeleteTransaction", id)
}

func (w *fakeWriter) CreateAccount(ctx context.Context, body core.NewAccount) (core.Account, error) {
	err := w.called("CreateAccount", body)
	return core.Account{ID: 8, Name: body.Name, Balance: body.Balance}, err
}

func (w *fakeWriter) UpdateAccountBalance(ctx context.Context, upd core.BalanceUpdate) (core.Account, error) {
	err := w.called("UpdateAccountBalance", upd)
	return core.Account{ID: upd.AccountID, Balance: upd.Balance}, err
}

func (w *fakeWriter) CreateCreditCard(ctx context.Context, body core.NewCard) (core.Card, error) {
	err := w.called("CreateCreditCard", body)
	return core.Card{ID: 3, Name: body.Name, ClosingDay: body.ClosingDay}, err
}

func (w *fakeWriter) UpdateCreditCardClosingDay(ctx context.Context, upd core.ClosingDayUpdate) (core.Card, error) {
	err := w.called("UpdateCreditCardClosingDay", upd)
	return core.Card{ID: upd.CardID, ClosingDay: upd.ClosingDay}, err
}

func (w *fakeWriter) DeleteCreditCard(ctx context.Context, id int64) error {
	return w.called("DeleteCreditCard", id)
}

func (w *fakeWriter) CreateCategory(ctx context.Context, body core.NewCategory) (core.Category, error) {
	err := w.called("CreateCategory", body)
	return core.Category{ID: 10, Name: body.Name, Type: body.Type}, err
}

func (w *fakeWriter) UpdateCategory(ctx context.Context, upd core.CategoryRename) (core.Category, error) {
	err := w.called("UpdateCategory", upd)
	return core.Category{ID: upd.CategoryID, Name: upd.Name, Type: core.Expense}, err
}

func (w *fakeWriter) DeleteCategory(ctx context.Context, id int64) error {
	return w.called("DeleteCategory", id)
}

type fakeRecorder struct {
	mu      sync.Mutex
	records []storage.MutationRecord
	err     error
}

func (r *fakeRecorder) Record(ctx context.Context, rec storage.MutationRecord) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, rec)
	return int64(len(r.records)), r.err
}

type fakePublisher struct {
	mu     sync.Mutex
	events []*amqp.MutationEvent
	err    error
}

func (p *fakePublisher) PublishMutation(ctx context.Context, event *amqp.MutationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

type fixture struct {
	reader    *countingReader
	writer    *fakeWriter
	store     *store.Store
	recorder  *fakeRecorder
	publisher *fakePublisher
	orch      *Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reader := newCountingReader()
	st := store.New(store.Options{Reader: reader})
	if err := st.Populate(context.Background()); err != nil {
		t.Fatalf("Populate() error = %v", err)
	}
	reader.reset()

	f := &fixture{
		reader:    reader,
		writer:    &fakeWriter{reader: reader},
		store:     st,
		recorder:  &fakeRecorder{},
		publisher: &fakePublisher{},
	}
	f.orch = NewOrchestrator(Options{
		Writer:    f.writer,
		Store:     st,
		Recorder:  f.recorder,
		Publisher: f.publisher,
		Origin:    "test-host",
	})
	return f
}

func snapshots(t *testing.T, s *store.Store) string {
	t.Helper()
	page, _ := s.Transactions()
	dash, _ := s.Dashboard()
	data, err := json.Marshal([]any{s.Accounts(), s.CreditCards(), s.CategorySet(), page, dash})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(data)
}

func marketDraft() intake.Draft {
	return intake.Draft{
		Type:         core.Expense,
		Description:  "Market",
		Amount:       "100.00",
		CategoryID:   5,
		PaymentType:  core.CreditCard,
		CreditCardID: 2,
		Installments: 3,
	}
}

func TestRefreshSets(t *testing.T) {
	want := map[MutationKey][]core.Resource{
		{KindTransaction, OpCreate}: {core.ResourceAccounts, core.ResourceCreditCards, core.ResourceDashboard},
		{KindTransaction, OpDelete}: {core.ResourceAccounts, core.ResourceCreditCards, core.ResourceDashboard},
		{KindAccount, OpUpdate}:     {core.ResourceAccounts, core.ResourceDashboard},
		{KindCreditCard, OpCreate}:  {core.ResourceCreditCards},
		{KindCreditCard, OpUpdate}:  {core.ResourceCreditCards, core.ResourceDashboard},
		{KindCategory, OpCreate}:    {core.ResourceCategories},
		{KindCategory, OpUpdate}:    {core.ResourceCategories},
		{KindCategory, OpDelete}:    {core.ResourceCategories},
	}
	for key, set := range want {
		got, ok := RefreshSet(key)
		if !ok || !reflect.DeepEqual(got, set) {
			t.Errorf("RefreshSet(%s) = %v, want %v", key, got, set)
		}
	}
	for key, set := range RefreshSets {
		for _, kind := range set {
			if kind == core.ResourceTransactions {
				t.Errorf("%s must not refresh the transaction list", key)
			}
		}
	}

	got, _ := RefreshSet(MutationKey{KindCategory, OpCreate})
	got[0] = core.ResourceDashboard
	if RefreshSets[MutationKey{KindCategory, OpCreate}][0] != core.ResourceCategories {
		t.Fatal("RefreshSet must return a copy")
	}
}

func TestCreateTransaction_ReloadsDependentsOnce(t *testing.T) {
	f := newFixture(t)

	res, err := f.orch.CreateTransaction(context.Background(), marketDraft())
	if err != nil {
		t.Fatalf("CreateTransaction() error = %v", err)
	}
	if res.Entity.ID != 42 || res.RequestID == "" || len(res.Stale) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}

	want := map[core.Resource]int{
		core.ResourceAccounts:    1,
		core.ResourceCreditCards: 1,
		core.ResourceDashboard:   1,
	}
	if got := f.reader.counts(); !reflect.DeepEqual(got, want) {
		t.Fatalf("reloads = %v, want %v", got, want)
	}
	if got := f.store.Accounts()[0].Balance.String(); got != "900.00" {
		t.Fatalf("account snapshot not refreshed, balance %s", got)
	}
	if dash, _ := f.store.Dashboard(); dash.CurrentBalance.String() != "900.00" {
		t.Fatalf("dashboard not refreshed, balance %s", dash.CurrentBalance)
	}
}

func TestCreateTransaction_FailedWriteLeavesStoreUntouched(t *testing.T) {
	f := newFixture(t)
	f.writer.err = core.NewServerRejected(400, "Categoria não encontrada")
	before := snapshots(t, f.store)

	_, err := f.orch.CreateTransaction(context.Background(), marketDraft())
	if !errors.Is(err, core.ErrServerRejected) {
		t.Fatalf("CreateTransaction() error = %v", err)
	}
	if got := f.reader.counts(); len(got) != 0 {
		t.Fatalf("no reload expected after failed write, got %v", got)
	}
	if after := snapshots(t, f.store); after != before {
		t.Fatalf("snapshots changed:\n%s\n%s", before, after)
	}
	if len(f.publisher.events) != 0 {
		t.Fatal("failed mutations must not be published")
	}
	if len(f.recorder.records) != 1 || f.recorder.records[0].Outcome != storage.OutcomeFailed ||
		f.recorder.records[0].ErrorKind != string(core.ServerRejected) {
		t.Fatalf("unexpected journal %+v", f.recorder.records)
	}
}

func TestCreateTransaction_ValidationNeverHitsNetwork(t *testing.T) {
	f := newFixture(t)
	d := marketDraft()
	d.CreditCardID = 0
	d.AccountID = 7

	_, err := f.orch.CreateTransaction(context.Background(), d)
	if intake.CodeOf(err) != intake.CodeMissingCard {
		t.Fatalf("expected MISSING_CARD, got %v", err)
	}
	if f.writer.count() != 0 || len(f.reader.counts()) != 0 {
		t.Fatal("validation failure reached the network")
	}
	if len(f.recorder.records) != 0 {
		t.Fatal("validation failures are not journaled")
	}
}

func TestPerform_PartialRefreshFailure(t *testing.T) {
	f := newFixture(t)
	f.reader.fail[core.ResourceDashboard] = core.NewTransportError("GET /api/dashboard", errors.New("timeout"))

	res, err := f.orch.UpdateAccountBalance(context.Background(), 7, core.MustMoney("250"))
	if err != nil {
		t.Fatalf("UpdateAccountBalance() error = %v", err)
	}
	if !reflect.DeepEqual(res.Stale, []core.Resource{core.ResourceDashboard}) {
		t.Fatalf("Stale = %v", res.Stale)
	}
	if res.Entity.Balance.String() != "250.00" {
		t.Fatalf("entity = %+v", res.Entity)
	}
	rec := f.recorder.records[0]
	if rec.Outcome != storage.OutcomeApplied || !reflect.DeepEqual(rec.Stale, []string{"dashboard"}) || rec.EntityID != 7 {
		t.Fatalf("unexpected journal record %+v", rec)
	}
}

func TestPerform_PublishesAndJournals(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = errors.New("broker down")
	f.recorder.err = errors.New("disk full")

	res, err := f.orch.UpdateCreditCardClosingDay(context.Background(), 2, 20)
	if err != nil {
		t.Fatalf("side-channel failures must not fail the mutation: %v", err)
	}

	if len(f.publisher.events) != 1 {
		t.Fatalf("expected one event, got %d", len(f.publisher.events))
	}
	ev := f.publisher.events[0]
	if ev.RequestID != res.RequestID || ev.Origin != "test-host" || ev.Kind != "credit_card" || ev.Operation != "update" {
		t.Fatalf("unexpected event %+v", ev)
	}
	if !reflect.DeepEqual(ev.Refreshed, []string{"credit_cards", "dashboard"}) {
		t.Fatalf("event refreshed = %v", ev.Refreshed)
	}
	if len(f.recorder.records) != 1 || f.recorder.records[0].RequestID != res.RequestID {
		t.Fatalf("unexpected journal %+v", f.recorder.records)
	}
}

func TestLocalValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		run  func() error
	}{
		{"closing day too high", func() error {
			_, err := f.orch.UpdateCreditCardClosingDay(ctx, 2, 32)
			return err
		}},
		{"closing day zero on create", func() error {
			_, err := f.orch.CreateCreditCard(ctx, core.NewCard{Name: "Inter", ClosingDay: 0})
			return err
		}},
		{"blank card name", func() error {
			_, err := f.orch.CreateCreditCard(ctx, core.NewCard{Name: " ", ClosingDay: 5})
			return err
		}},
		{"blank category name", func() error {
			_, err := f.orch.CreateCategory(ctx, core.NewCategory{Name: "", Type: core.Expense})
			return err
		}},
		{"bad category type", func() error {
			_, err := f.orch.CreateCategory(ctx, core.NewCategory{Name: "Pets", Type: "other"})
			return err
		}},
		{"default category delete", func() error {
			_, err := f.orch.DeleteCategory(ctx, 5)
			return err
		}},
		{"blank account name", func() error {
			_, err := f.orch.CreateAccount(ctx, core.NewAccount{Name: ""})
			return err
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, core.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
	if f.writer.count() != 0 {
		t.Fatalf("local validation reached the writer %d times", f.writer.count())
	}
}

func TestDeleteCategory_UserCategory(t *testing.T) {
	f := newFixture(t)

	if _, err := f.orch.DeleteCategory(context.Background(), 9); err != nil {
		t.Fatalf("DeleteCategory() error = %v", err)
	}
	if got := f.reader.counts(); !reflect.DeepEqual(got, map[core.Resource]int{core.ResourceCategories: 1}) {
		t.Fatalf("reloads = %v", got)
	}
}

func TestUpdateCategory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.orch.UpdateCategory(ctx, 9, "  Animais ")
	if err != nil {
		t.Fatalf("UpdateCategory() error = %v", err)
	}
	if res.Entity.Name != "Animais" {
		t.Fatalf("entity = %+v", res.Entity)
	}
	if upd, ok := f.writer.last.(core.CategoryRename); !ok || upd.CategoryID != 9 || upd.Name != "Animais" {
		t.Fatalf("writer got %#v", f.writer.last)
	}
	if got := f.reader.counts(); !reflect.DeepEqual(got, map[core.Resource]int{core.ResourceCategories: 1}) {
		t.Fatalf("reloads = %v", got)
	}

	tests := []struct {
		name string
		id   int64
		in   string
		code string
	}{
		{name: "blank name", id: 9, in: "   ", code: "MISSING_NAME"},
		{name: "default category", id: 5, in: "Comida", code: "DEFAULT_CATEGORY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orch.UpdateCategory(ctx, tt.id, tt.in)
			var apiErr *core.Error
			if !errors.As(err, &apiErr) || len(apiErr.Codes) == 0 || apiErr.Codes[0] != tt.code {
				t.Fatalf("UpdateCategory() error = %v, want %s", err, tt.code)
			}
		})
	}
	if f.writer.count() != 1 {
		t.Fatalf("rejected renames must not reach the writer, %d calls", f.writer.count())
	}
}

func TestPerform_SignOutDuringWriteSkipsRefresh(t *testing.T) {
	f := newFixture(t)
	f.writer.block = make(chan struct{})

	done := make(chan error)
	go func() {
		_, err := f.orch.UpdateAccountBalance(context.Background(), 7, core.MustMoney("50"))
		done <- err
	}()
	deadline := time.After(2 * time.Second)
	for f.writer.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("write never started")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	f.store.OnSignOut()
	close(f.writer.block)
	if err := <-done; err != nil {
		t.Fatalf("UpdateAccountBalance() error = %v", err)
	}

	if got := f.reader.counts(); len(got) != 0 {
		t.Fatalf("refresh ran for an ended session: %v", got)
	}
	if len(f.store.Accounts()) != 0 {
		t.Fatal("store repopulated after sign-out")
	}
	if _, ok := f.store.Dashboard(); ok {
		t.Fatal("dashboard repopulated after sign-out")
	}
}

func TestPerform_Unsupported(t *testing.T) {
	f := newFixture(t)

	_, err := f.orch.Perform(context.Background(), Mutation{Kind: KindAccount, Operation: OpDelete, ID: 7})
	if !errors.Is(err, ErrUnsupportedMutation) {
		t.Fatalf("expected ErrUnsupportedMutation, got %v", err)
	}

	_, err = f.orch.Perform(context.Background(), Mutation{Kind: KindCategory, Operation: OpCreate, Payload: "Pets"})
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("wrong payload type should be a validation error, got %v", err)
	}
	if f.writer.count() != 0 {
		t.Fatal("writer should not be called")
	}
}

func TestSubmitting(t *testing.T) {
	f := newFixture(t)
	f.writer.block = make(chan struct{})

	done := make(chan error)
	go func() {
		_, err := f.orch.DeleteTransaction(context.Background(), 42)
		done <- err
	}()

	deadline := time.After(2 * time.Second)
	for !f.orch.Submitting() {
		select {
		case <-deadline:
			t.Fatal("Submitting() never became true")
		default:
			time.Sleep(time.Millisecond)
		}
	}
	close(f.writer.block)
	if err := <-done; err != nil {
		t.Fatalf("DeleteTransaction() error = %v", err)
	}
	if f.orch.Submitting() {
		t.Fatal("Submitting() should be false after completion")
	}
}

func TestHandleRemoteMutation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	own := amqp.NewMutationEvent("r1", "test-host", "transaction", "create", 1, []string{"accounts"})
	if err := f.orch.HandleRemoteMutation(ctx, own); err != nil {
		t.Fatalf("HandleRemoteMutation() error = %v", err)
	}
	if len(f.reader.counts()) != 0 {
		t.Fatal("own events must be ignored")
	}

	remote := amqp.NewMutationEvent("r2", "other-host", "category", "create", 11, []string{"categories", "budgets"})
	if err := f.orch.HandleRemoteMutation(ctx, remote); err != nil {
		t.Fatalf("HandleRemoteMutation() error = %v", err)
	}
	if got := f.reader.counts(); !reflect.DeepEqual(got, map[core.Resource]int{core.ResourceCategories: 1}) {
		t.Fatalf("reloads = %v", got)
	}
}

func TestRefreshAll(t *testing.T) {
	f := newFixture(t)
	if err := f.orch.RefreshAll(context.Background()); err != nil {
		t.Fatalf("RefreshAll() error = %v", err)
	}
	for _, kind := range store.PopulateKinds {
		if f.reader.counts()[kind] != 1 {
			t.Fatalf("%s not reloaded once", kind)
		}
	}
}
