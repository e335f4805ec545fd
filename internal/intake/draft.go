// Package intake turns a transaction draft into a submit-ready payload.
//
// Validation is a pure function of the draft and the currently loaded
// references; it never touches the network.
package intake

import (
	"financeiro/internal/core"
)

// Draft is the in-progress transaction form. Zero ids mean "not selected";
// Amount and Date hold the raw user input.
type Draft struct {
	Type         core.TransactionType
	Description  string
	Amount       string
	Date         string
	CategoryID   int64
	PaymentType  core.PaymentType
	AccountID    int64
	CreditCardID int64
	Installments int
}

// References are the store snapshots a draft is validated against.
type References struct {
	Accounts    []core.Account
	CreditCards []core.Card
	Categories  core.CategorySet
}

// NewDraft returns a fresh expense draft paid by debit, preselecting the
// first account and card and dated today.
func NewDraft(refs References) Draft {
	d := Draft{
		Type:         core.Expense,
		Date:         core.Today().String(),
		PaymentType:  core.Debit,
		Installments: 1,
	}
	if len(refs.Accounts) > 0 {
		d.AccountID = refs.Accounts[0].ID
	}
	if len(refs.CreditCards) > 0 {
		d.CreditCardID = refs.CreditCards[0].ID
	}
	return d
}

// SetType switches between income and expense. The selected category belongs
// to the old type, so it is cleared; switching back does not restore it.
func (d *Draft) SetType(t core.TransactionType) {
	d.Type = t
	d.CategoryID = 0
}

// SetPaymentType changes the payment method. Leaving credit_card resets the
// installment count to 1.
func (d *Draft) SetPaymentType(p core.PaymentType) {
	d.PaymentType = p
	if p != core.CreditCard {
		d.Installments = 1
	}
}

// SetInstallments sets the installment count. Only meaningful for card
// payments; the range offered to users is not enforced here.
func (d *Draft) SetInstallments(n int) {
	d.Installments = n
}
