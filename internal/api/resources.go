package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"financeiro/internal/core"
)

// Accounts

func (c *Client) ListAccounts(ctx context.Context) ([]core.Account, error) {
	return get[[]core.Account](ctx, c, "/api/accounts", nil, "accounts")
}

func (c *Client) CreateAccount(ctx context.Context, body core.NewAccount) (core.Account, error) {
	return write[core.Account](ctx, c, http.MethodPost, "/api/accounts", body, "account")
}

func (c *Client) UpdateAccountBalance(ctx context.Context, upd core.BalanceUpdate) (core.Account, error) {
	return write[core.Account](ctx, c, http.MethodPut, fmt.Sprintf("/api/accounts/%d", upd.AccountID), upd, "account")
}

// Credit cards

func (c *Client) ListCreditCards(ctx context.Context) ([]core.Card, error) {
	return get[[]core.Card](ctx, c, "/api/credit-cards", nil, "credit_cards")
}

func (c *Client) CreateCreditCard(ctx context.Context, body core.NewCard) (core.Card, error) {
	return write[core.Card](ctx, c, http.MethodPost, "/api/credit-cards", body, "credit_card")
}

func (c *Client) UpdateCreditCardClosingDay(ctx context.Context, upd core.ClosingDayUpdate) (core.Card, error) {
	return write[core.Card](ctx, c, http.MethodPut, fmt.Sprintf("/api/credit-cards/%d", upd.CardID), upd, "credit_card")
}

func (c *Client) DeleteCreditCard(ctx context.Context, id int64) error {
	_, err := write[struct{}](ctx, c, http.MethodDelete, fmt.Sprintf("/api/credit-cards/%d", id), nil, "")
	return err
}

// Categories

// ListCategories accepts both the grouped shape
// ({income_categories, expense_categories}) and the flat {categories} list,
// which is split by type.
func (c *Client) ListCategories(ctx context.Context) (core.CategorySet, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/categories", nil, nil)
	if err != nil {
		return core.CategorySet{}, err
	}

	if _, grouped := resp.fields["income_categories"]; grouped {
		var set core.CategorySet
		if err := json.Unmarshal(resp.raw, &set); err != nil {
			return core.CategorySet{}, core.NewTransportError("GET /api/categories: decode response", err)
		}
		if set.Income == nil {
			set.Income = []core.Category{}
		}
		if set.Expense == nil {
			set.Expense = []core.Category{}
		}
		return set, nil
	}

	var flat []core.Category
	if err := resp.field("categories", &flat); err != nil {
		return core.CategorySet{}, core.NewTransportError("GET /api/categories: decode response", err)
	}
	return core.SplitCategories(flat), nil
}

func (c *Client) CreateCategory(ctx context.Context, body core.NewCategory) (core.Category, error) {
	return write[core.Category](ctx, c, http.MethodPost, "/api/categories", body, "category")
}

// UpdateCategory renames a user category. Default categories are rejected by
// the server.
func (c *Client) UpdateCategory(ctx context.Context, upd core.CategoryRename) (core.Category, error) {
	return write[core.Category](ctx, c, http.MethodPut, fmt.Sprintf("/api/categories/%d", upd.CategoryID), upd, "category")
}

func (c *Client) DeleteCategory(ctx context.Context, id int64) error {
	_, err := write[struct{}](ctx, c, http.MethodDelete, fmt.Sprintf("/api/categories/%d", id), nil, "")
	return err
}

// Transactions

func (c *Client) ListTransactions(ctx context.Context, filter core.TransactionFilter) (core.TransactionPage, error) {
	page, err := get[core.TransactionPage](ctx, c, "/api/transactions", filter.Query(), "")
	if err != nil {
		return core.TransactionPage{}, err
	}
	if page.Transactions == nil {
		page.Transactions = []core.Transaction{}
	}
	return page, nil
}

func (c *Client) CreateTransaction(ctx context.Context, body core.TransactionPayload) (core.Transaction, error) {
	return write[core.Transaction](ctx, c, http.MethodPost, "/api/transactions", body, "transaction")
}

func (c *Client) DeleteTransaction(ctx context.Context, id int64) error {
	_, err := write[struct{}](ctx, c, http.MethodDelete, fmt.Sprintf("/api/transactions/%d", id), nil, "")
	return err
}

// Aggregates

func (c *Client) GetDashboard(ctx context.Context, period core.DateRange) (core.DashboardSnapshot, error) {
	return get[core.DashboardSnapshot](ctx, c, "/api/dashboard", period.Query(), "")
}

func (c *Client) GetMonthlyChart(ctx context.Context) ([]core.MonthlyChartPoint, error) {
	return get[[]core.MonthlyChartPoint](ctx, c, "/api/dashboard/monthly-chart", nil, "chart_data")
}

func (c *Client) GetProjections(ctx context.Context, months int) ([]core.ProjectionPoint, error) {
	var query url.Values
	if months > 0 {
		query = url.Values{"months": []string{strconv.Itoa(months)}}
	}
	return get[[]core.ProjectionPoint](ctx, c, "/api/projections", query, "projections")
}

// GetReportSummary totals the transactions of period grouped by category or
// by month. The server requires both bounds of period.
func (c *Client) GetReportSummary(ctx context.Context, period core.DateRange, groupBy core.ReportGrouping) (core.ReportSummary, error) {
	query := period.Query()
	query.Set("group_by", string(groupBy))
	return get[core.ReportSummary](ctx, c, "/api/reports/summary", query, "")
}
