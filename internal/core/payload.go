package core

// Write bodies sent by the mutation layer.

// TransactionPayload is a validated, submit-ready transaction. Exactly one of
// AccountID and CreditCardID is set.
type TransactionPayload struct {
	Description     string      `json:"description"`
	Amount          Money       `json:"amount"`
	TransactionDate Date        `json:"transaction_date"`
	CategoryID      int64       `json:"category_id"`
	PaymentType     PaymentType `json:"payment_type"`
	Installments    int         `json:"installments"`
	AccountID       *int64      `json:"account_id,omitempty"`
	CreditCardID    *int64      `json:"credit_card_id,omitempty"`
}

// BalanceUpdate replaces an account balance.
type BalanceUpdate struct {
	AccountID int64 `json:"-"`
	Balance   Money `json:"balance"`
}

// NewCard is the body for creating a credit card.
type NewCard struct {
	Name           string `json:"name"`
	ClosingDay     int    `json:"closing_day"`
	CurrentBalance *Money `json:"current_balance,omitempty"`
}

// ClosingDayUpdate changes the closing day of a credit card.
type ClosingDayUpdate struct {
	CardID     int64 `json:"-"`
	ClosingDay int   `json:"closing_day"`
}

// NewCategory is the body for creating a category.
type NewCategory struct {
	Name string          `json:"name"`
	Type TransactionType `json:"type"`
}

// NewAccount is the body for creating a bank account.
type NewAccount struct {
	Name    string `json:"name"`
	Balance Money  `json:"balance"`
}

// Credentials is the login body.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// CategoryRename renames a user category. The server keeps its type.
type CategoryRename struct {
	CategoryID int64  `json:"-"`
	Name       string `json:"name"`
}
