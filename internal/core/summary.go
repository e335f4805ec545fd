package core

// Server-owned aggregates. These are replaced wholesale, never patched or
// recomputed locally.

// DashboardSnapshot is the dashboard view for a date range.
type DashboardSnapshot struct {
	CurrentBalance     Money               `json:"current_balance"`
	CreditCards        []CardSummary       `json:"credit_cards"`
	MonthlySummary     MonthlySummary      `json:"monthly_summary"`
	RecentTransactions []RecentTransaction `json:"recent_transactions"`
}

// CardSummary is the per-card block of the dashboard.
type CardSummary struct {
	Name           string `json:"name"`
	CurrentBalance Money  `json:"current_balance"`
	NextClosing    Date   `json:"next_closing"`
}

// MonthlySummary holds income/expense totals for the dashboard period.
type MonthlySummary struct {
	TotalIncome   Money     `json:"total_income"`
	TotalExpenses Money     `json:"total_expenses"`
	NetBalance    Money     `json:"net_balance"`
	Period        DateRange `json:"period"`
}

type RecentTransaction struct {
	ID              int64           `json:"id"`
	Description     string          `json:"description"`
	Amount          Money           `json:"amount"`
	Type            TransactionType `json:"type"`
	Date            Date            `json:"date"`
	PaymentType     PaymentType     `json:"payment_type"`
	InstallmentInfo *string         `json:"installment_info"`
}

// ProjectionPoint is the projected position for one future month.
type ProjectionPoint struct {
	Month              int                    `json:"month"`
	Year               int                    `json:"year"`
	ProjectedBalance   Money                  `json:"projected_balance"`
	CreditCardExpenses Money                  `json:"credit_card_expenses"`
	Installments       []ProjectedInstallment `json:"installments"`
}

type ProjectedInstallment struct {
	Description string `json:"description"`
	Amount      Money  `json:"amount"`
	CreditCard  string `json:"credit_card"`
	DueDate     Date   `json:"due_date"`
}

// MonthlyChartPoint is one bar group of the monthly income/expense chart.
type MonthlyChartPoint struct {
	Month    string `json:"month"`
	Income   Money  `json:"receitas"`
	Expenses Money  `json:"despesas"`
	Forecast Money  `json:"projecao"`
}

// ReportGrouping selects how the report summary groups its totals.
type ReportGrouping string

const (
	GroupByCategory ReportGrouping = "category"
	GroupByMonth    ReportGrouping = "month"
)

func (g ReportGrouping) IsValid() bool {
	return g == GroupByCategory || g == GroupByMonth
}

// ReportSummary totals the transactions of a date range. Only the lists of
// the requested grouping are filled.
type ReportSummary struct {
	IncomeByCategory   []CategoryTotal `json:"income_by_category,omitempty"`
	ExpensesByCategory []CategoryTotal `json:"expenses_by_category,omitempty"`
	MonthlyTotals      []MonthTotal    `json:"monthly_totals,omitempty"`
}

type CategoryTotal struct {
	Category string `json:"category"`
	Total    Money  `json:"total"`
}

// MonthTotal is one YYYY-MM row of the month-grouped report.
type MonthTotal struct {
	Month    string `json:"month"`
	Income   Money  `json:"income"`
	Expenses Money  `json:"expenses"`
	Net      Money  `json:"net"`
}

// TransactionPage is a filtered page of the transaction list.
type TransactionPage struct {
	Transactions []Transaction `json:"transactions"`
	Total        int           `json:"total"`
	Page         int           `json:"page"`
	Pages        int           `json:"pages"`
}
