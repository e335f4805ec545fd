package core

import (
	"net/url"
	"strconv"
)

// Resource names one server collection mirrored by the store.
type Resource string

const (
	ResourceAccounts     Resource = "accounts"
	ResourceCreditCards  Resource = "credit_cards"
	ResourceCategories   Resource = "categories"
	ResourceTransactions Resource = "transactions"
	ResourceDashboard    Resource = "dashboard"
)

// Resources lists every mirrored collection in a stable order.
var Resources = []Resource{
	ResourceAccounts,
	ResourceCreditCards,
	ResourceCategories,
	ResourceTransactions,
	ResourceDashboard,
}

func (r Resource) String() string {
	return string(r)
}

// DateRange is an inclusive date window. Zero bounds are omitted.
type DateRange struct {
	Start Date `json:"start_date"`
	End   Date `json:"end_date"`
}

// Query renders the range as start_date/end_date parameters.
func (r DateRange) Query() url.Values {
	q := url.Values{}
	if !r.Start.IsZero() {
		q.Set("start_date", r.Start.String())
	}
	if !r.End.IsZero() {
		q.Set("end_date", r.End.String())
	}
	return q
}

// MonthRange returns the first and last day of the given month.
func MonthRange(year, month int) DateRange {
	start := NewDate(year, month, 1)
	end := Date{Time: start.AddDate(0, 1, -1)}
	return DateRange{Start: start, End: end}
}

// TransactionFilter narrows the transaction list.
type TransactionFilter struct {
	Range DateRange
	Type  TransactionType
	Page  int
	Limit int
}

// Query renders the filter, skipping empty values.
func (f TransactionFilter) Query() url.Values {
	q := f.Range.Query()
	if f.Type != "" {
		q.Set("type", string(f.Type))
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	return q
}

// CategorySet holds categories split by type.
type CategorySet struct {
	Income  []Category `json:"income_categories"`
	Expense []Category `json:"expense_categories"`
}

// SplitCategories groups a flat category list by its type tag.
func SplitCategories(all []Category) CategorySet {
	set := CategorySet{Income: []Category{}, Expense: []Category{}}
	for _, c := range all {
		switch c.Type {
		case Income:
			set.Income = append(set.Income, c)
		case Expense:
			set.Expense = append(set.Expense, c)
		}
	}
	return set
}

// Of returns the categories offered for a transaction type.
func (s CategorySet) Of(t TransactionType) []Category {
	switch t {
	case Income:
		return s.Income
	case Expense:
		return s.Expense
	default:
		return nil
	}
}

// Find looks a category up by id across both types.
func (s CategorySet) Find(id int64) (Category, bool) {
	for _, list := range [][]Category{s.Income, s.Expense} {
		for _, c := range list {
			if c.ID == id {
				return c, true
			}
		}
	}
	return Category{}, false
}

// Clone returns a deep copy of the set.
func (s CategorySet) Clone() CategorySet {
	return CategorySet{
		Income:  append([]Category{}, s.Income...),
		Expense: append([]Category{}, s.Expense...),
	}
}
