package intake

import (
	"errors"
	"fmt"
	"strings"

	"financeiro/internal/core"
)

// Code identifies a field-level validation failure.
type Code string

// Codes in the order they are checked.
const (
	CodeMissingDescription Code = "MISSING_DESCRIPTION"
	CodeInvalidAmount      Code = "INVALID_AMOUNT"
	CodeMissingCategory    Code = "MISSING_CATEGORY"
	CodeMissingCard        Code = "MISSING_CARD"
	CodeMissingAccount     Code = "MISSING_ACCOUNT"
	CodeInvalidPaymentType Code = "INVALID_PAYMENT_TYPE"
	CodeInvalidDate        Code = "INVALID_DATE"
)

// FieldError is one failed rule.
type FieldError struct {
	Field   string
	Code    Code
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateAll returns every failure in precedence order; nil means the draft
// is valid.
func ValidateAll(d Draft, refs References) []FieldError {
	var errs []FieldError

	if strings.TrimSpace(d.Description) == "" {
		errs = append(errs, FieldError{"description", CodeMissingDescription, "Descrição é obrigatória"})
	}

	if _, err := core.ParseMoney(d.Amount); err != nil {
		errs = append(errs, FieldError{"amount", CodeInvalidAmount, "Valor deve ser maior que zero"})
	}

	if !categoryOffered(d, refs) {
		errs = append(errs, FieldError{"category_id", CodeMissingCategory, "Categoria é obrigatória"})
	}

	switch {
	case d.PaymentType == core.CreditCard:
		if d.CreditCardID == 0 {
			errs = append(errs, FieldError{"credit_card_id", CodeMissingCard, "Cartão de crédito é obrigatório"})
		}
	case d.PaymentType.UsesAccount():
		if d.AccountID == 0 {
			errs = append(errs, FieldError{"account_id", CodeMissingAccount, "Conta é obrigatória para débito/PIX"})
		}
	default:
		errs = append(errs, FieldError{"payment_type", CodeInvalidPaymentType, "Forma de pagamento inválida"})
	}

	if strings.TrimSpace(d.Date) != "" {
		if _, err := core.ParseDate(d.Date); err != nil {
			errs = append(errs, FieldError{"transaction_date", CodeInvalidDate, "Data inválida"})
		}
	}

	return errs
}

// Validate normalizes d into a payload, or returns a validation error
// carrying only the first failure.
func Validate(d Draft, refs References) (core.TransactionPayload, error) {
	if errs := ValidateAll(d, refs); len(errs) > 0 {
		first := errs[0]
		verr := core.NewValidationError(first.Message, string(first.Code))
		verr.Err = first
		return core.TransactionPayload{}, verr
	}

	amount, _ := core.ParseMoney(d.Amount)
	date := core.Today()
	if strings.TrimSpace(d.Date) != "" {
		date, _ = core.ParseDate(d.Date)
	}

	p := core.TransactionPayload{
		Description:     strings.TrimSpace(d.Description),
		Amount:          amount,
		TransactionDate: date,
		CategoryID:      d.CategoryID,
		PaymentType:     d.PaymentType,
		Installments:    1,
	}
	if d.PaymentType == core.CreditCard {
		id := d.CreditCardID
		p.CreditCardID = &id
		if d.Installments > 1 {
			p.Installments = d.Installments
		}
	} else {
		id := d.AccountID
		p.AccountID = &id
	}
	return p, nil
}

// CodeOf returns the code of the first failure carried by err, or "".
func CodeOf(err error) Code {
	var fe FieldError
	if errors.As(err, &fe) {
		return fe.Code
	}
	var ce *core.Error
	if errors.As(err, &ce) && len(ce.Codes) > 0 {
		return Code(ce.Codes[0])
	}
	return ""
}

func categoryOffered(d Draft, refs References) bool {
	if d.CategoryID == 0 {
		return false
	}
	for _, c := range refs.Categories.Of(d.Type) {
		if c.ID == d.CategoryID {
			return true
		}
	}
	return false
}
