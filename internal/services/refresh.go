package services

import (
	"slices"

	"financeiro/internal/core"
)

// MutationKind names the entity a mutation writes.
type MutationKind string

const (
	KindTransaction MutationKind = "transaction"
	KindAccount     MutationKind = "account"
	KindCreditCard  MutationKind = "credit_card"
	KindCategory    MutationKind = "category"
)

// Operation is the write performed on the entity.
type Operation string

const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// MutationKey selects a row of the refresh table.
type MutationKey struct {
	Kind      MutationKind
	Operation Operation
}

func (k MutationKey) String() string {
	return string(k.Kind) + "." + string(k.Operation)
}

// RefreshSets maps every supported mutation to the resources that must be
// reloaded after it succeeds. A mutation missing here is unsupported.
// Card updates include the dashboard because it embeds each card's next
// closing date.
var RefreshSets = map[MutationKey][]core.Resource{
	{KindTransaction, OpCreate}: {core.ResourceAccounts, core.ResourceCreditCards, core.ResourceDashboard},
	{KindTransaction, OpDelete}: {core.ResourceAccounts, core.ResourceCreditCards, core.ResourceDashboard},
	{KindAccount, OpCreate}:     {core.ResourceAccounts, core.ResourceDashboard},
	{KindAccount, OpUpdate}:     {core.ResourceAccounts, core.ResourceDashboard},
	{KindCreditCard, OpCreate}:  {core.ResourceCreditCards},
	{KindCreditCard, OpUpdate}:  {core.ResourceCreditCards, core.ResourceDashboard},
	{KindCreditCard, OpDelete}:  {core.ResourceCreditCards, core.ResourceDashboard},
	{KindCategory, OpCreate}:    {core.ResourceCategories},
	{KindCategory, OpUpdate}:    {core.ResourceCategories},
	{KindCategory, OpDelete}:    {core.ResourceCategories},
}

// RefreshSet returns a copy of the refresh set for key.
func RefreshSet(key MutationKey) ([]core.Resource, bool) {
	set, ok := RefreshSets[key]
	return slices.Clone(set), ok
}
