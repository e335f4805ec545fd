package core

import (
	"errors"
	"strings"
	"time"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	Debit      PaymentType = "debit"
	Pix        PaymentType = "pix"
	CreditCard PaymentType = "credit_card"
)

// DateLayout is the ISO date format used on the wire and in filters.
const DateLayout = "2006-01-02"

type (
	TransactionType string

	PaymentType string

	Date struct {
		time.Time
	}

	User struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
	}

	Account struct {
		ID      int64  `json:"id"`
		Name    string `json:"name"`
		Balance Money  `json:"balance"`
	}

	Card struct {
		ID             int64  `json:"id"`
		Name           string `json:"name"`
		ClosingDay     int    `json:"closing_day"`
		CurrentBalance Money  `json:"current_balance"`
		NextClosing    Date   `json:"next_closing"`
	}

	Category struct {
		ID        int64           `json:"id"`
		Name      string          `json:"name"`
		Type      TransactionType `json:"type"`
		IsDefault bool            `json:"is_default"`
	}

	Transaction struct {
		ID                  int64       `json:"id"`
		Description         string      `json:"description"`
		Amount              Money       `json:"amount"`
		TransactionDate     Date        `json:"transaction_date"`
		PaymentType         PaymentType `json:"payment_type"`
		Installments        int         `json:"installments"`
		InstallmentNumber   int         `json:"installment_number"`
		ParentTransactionID *int64      `json:"parent_transaction_id"`
		Category            *Category   `json:"category,omitempty"`
		Account             *Account    `json:"account,omitempty"`
		CreditCard          *Card       `json:"credit_card,omitempty"`
		DueDate             Date        `json:"due_date"`
	}
)

var (
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInvalidClosingDay  = errors.New("closing day must be between 1 and 31")
	ErrAmbiguousFunding   = errors.New("transaction has both an account and a credit card")
	ErrMissingFunding     = errors.New("transaction has no funding reference")
	ErrUnknownPaymentType = errors.New("unknown payment type")
)

// IsValid reports whether t is income or expense.
func (t TransactionType) IsValid() bool {
	return t == Income || t == Expense
}

// IsValid reports whether p is one of the supported payment methods.
func (p PaymentType) IsValid() bool {
	switch p {
	case Debit, Pix, CreditCard:
		return true
	default:
		return false
	}
}

// UsesAccount is true for payment methods funded by a bank account.
func (p PaymentType) UsesAccount() bool {
	return p == Debit || p == Pix
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current date in UTC.
func Today() Date {
	y, m, d := time.Now().Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a yyyy-MM-dd string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// String formats the date as yyyy-MM-dd, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	// Timestamps such as created_at carry a time part; only the date matters.
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Type is the transaction type, which the server derives from its category.
func (t Transaction) Type() TransactionType {
	if t.Category == nil {
		return ""
	}
	return t.Category.Type
}

// IsInstallment is true for the child rows of an installment plan.
func (t Transaction) IsInstallment() bool {
	return t.ParentTransactionID != nil
}

// ValidateFunding checks that exactly one funding reference matches the payment type.
func (t Transaction) ValidateFunding() error {
	if t.Account != nil && t.CreditCard != nil {
		return ErrAmbiguousFunding
	}
	switch {
	case t.PaymentType.UsesAccount():
		if t.Account == nil {
			return ErrMissingFunding
		}
	case t.PaymentType == CreditCard:
		if t.CreditCard == nil {
			return ErrMissingFunding
		}
	default:
		return ErrUnknownPaymentType
	}
	return nil
}

// ValidateClosingDay checks the 1-31 day-of-month range.
func ValidateClosingDay(day int) error {
	if day < 1 || day > 31 {
		return ErrInvalidClosingDay
	}
	return nil
}
