package services

import (
	"context"
	"strings"

	"financeiro/internal/core"
	"financeiro/internal/intake"
)

func typed[T any](res Result[any], err error) (Result[T], error) {
	out := Result[T]{RequestID: res.RequestID, Refreshed: res.Refreshed, Stale: res.Stale}
	if v, ok := res.Entity.(T); ok {
		out.Entity = v
	}
	return out, err
}

// References snapshots the store for draft validation.
func (o *Orchestrator) References() intake.References {
	return intake.References{
		Accounts:    o.store.Accounts(),
		CreditCards: o.store.CreditCards(),
		Categories:  o.store.CategorySet(),
	}
}

// CreateTransaction validates draft against the current store and submits
// it. A validation failure never reaches the network.
func (o *Orchestrator) CreateTransaction(ctx context.Context, draft intake.Draft) (Result[core.Transaction], error) {
	body, err := intake.Validate(draft, o.References())
	if err != nil {
		o.logger.DebugContext(ctx, "Draft rejected", "code", intake.CodeOf(err))
		return Result[core.Transaction]{}, err
	}
	return typed[core.Transaction](o.Perform(ctx, Mutation{Kind: KindTransaction, Operation: OpCreate, Payload: body}))
}

func (o *Orchestrator) DeleteTransaction(ctx context.Context, id int64) (Result[struct{}], error) {
	return typed[struct{}](o.Perform(ctx, Mutation{Kind: KindTransaction, Operation: OpDelete, ID: id}))
}

func (o *Orchestrator) CreateAccount(ctx context.Context, body core.NewAccount) (Result[core.Account], error) {
	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" {
		return Result[core.Account]{}, core.NewValidationError("Nome da conta é obrigatório", "MISSING_NAME")
	}
	return typed[core.Account](o.Perform(ctx, Mutation{Kind: KindAccount, Operation: OpCreate, Payload: body}))
}

func (o *Orchestrator) UpdateAccountBalance(ctx context.Context, accountID int64, balance core.Money) (Result[core.Account], error) {
	upd := core.BalanceUpdate{AccountID: accountID, Balance: balance}
	return typed[core.Account](o.Perform(ctx, Mutation{Kind: KindAccount, Operation: OpUpdate, Payload: upd, ID: accountID}))
}

func (o *Orchestrator) CreateCreditCard(ctx context.Context, body core.NewCard) (Result[core.Card], error) {
	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" {
		return Result[core.Card]{}, core.NewValidationError("Nome do cartão é obrigatório", "MISSING_NAME")
	}
	if err := core.ValidateClosingDay(body.ClosingDay); err != nil {
		return Result[core.Card]{}, core.NewValidationError(err.Error(), "INVALID_CLOSING_DAY")
	}
	return typed[core.Card](o.Perform(ctx, Mutation{Kind: KindCreditCard, Operation: OpCreate, Payload: body}))
}

func (o *Orchestrator) UpdateCreditCardClosingDay(ctx context.Context, cardID int64, closingDay int) (Result[core.Card], error) {
	if err := core.ValidateClosingDay(closingDay); err != nil {
		return Result[core.Card]{}, core.NewValidationError(err.Error(), "INVALID_CLOSING_DAY")
	}
	upd := core.ClosingDayUpdate{CardID: cardID, ClosingDay: closingDay}
	return typed[core.Card](o.Perform(ctx, Mutation{Kind: KindCreditCard, Operation: OpUpdate, Payload: upd, ID: cardID}))
}

func (o *Orchestrator) DeleteCreditCard(ctx context.Context, id int64) (Result[struct{}], error) {
	return typed[struct{}](o.Perform(ctx, Mutation{Kind: KindCreditCard, Operation: OpDelete, ID: id}))
}

func (o *Orchestrator) CreateCategory(ctx context.Context, body core.NewCategory) (Result[core.Category], error) {
	body.Name = strings.TrimSpace(body.Name)
	if body.Name == "" {
		return Result[core.Category]{}, core.NewValidationError("Nome da categoria é obrigatório", "MISSING_NAME")
	}
	if !body.Type.IsValid() {
		return Result[core.Category]{}, core.NewValidationError(`Tipo deve ser "income" ou "expense"`, "INVALID_TYPE")
	}
	return typed[core.Category](o.Perform(ctx, Mutation{Kind: KindCategory, Operation: OpCreate, Payload: body}))
}

// UpdateCategory renames a user category. Default categories are rejected
// locally when the store knows them.
func (o *Orchestrator) UpdateCategory(ctx context.Context, categoryID int64, name string) (Result[core.Category], error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Result[core.Category]{}, core.NewValidationError("Nome da categoria é obrigatório", "MISSING_NAME")
	}
	if c, ok := o.store.CategorySet().Find(categoryID); ok && c.IsDefault {
		return Result[core.Category]{}, core.NewValidationError("Não é possível editar categorias padrão", "DEFAULT_CATEGORY")
	}
	upd := core.CategoryRename{CategoryID: categoryID, Name: name}
	return typed[core.Category](o.Perform(ctx, Mutation{Kind: KindCategory, Operation: OpUpdate, Payload: upd, ID: categoryID}))
}

// DeleteCategory removes a user category. Default categories are rejected
// locally when the store knows them.
func (o *Orchestrator) DeleteCategory(ctx context.Context, id int64) (Result[struct{}], error) {
	if c, ok := o.store.CategorySet().Find(id); ok && c.IsDefault {
		return Result[struct{}]{}, core.NewValidationError("Categorias padrão não podem ser excluídas", "DEFAULT_CATEGORY")
	}
	return typed[struct{}](o.Perform(ctx, Mutation{Kind: KindCategory, Operation: OpDelete, ID: id}))
}
