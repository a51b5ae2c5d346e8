package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/pulsatel/prepaid_services/internal/purchase_service/domain"
)

// CustomerDirectory resolves a phone identity to an activity status.
// Implementations should return (false, nil) for absent records; lookup
// errors are reported so callers can apply their own fail-closed policy.
type CustomerDirectory interface {
	IsActive(ctx context.Context, phoneNumber string) (bool, error)
}

// PackageCatalog resolves a package code to a currently-offered package.
// Returns domain.ErrNotFound when the code does not resolve to an ACTIVE
// package, so "not found" stays distinguishable from lookup failures.
type PackageCatalog interface {
	GetByCode(ctx context.Context, code string) (*domain.Package, error)
}

// BalanceLedger holds one non-negative balance per phone number.
type BalanceLedger interface {
	GetBalance(ctx context.Context, phoneNumber string) (decimal.Decimal, error)

	// Debit decrements the balance only if the stored balance is currently
	// >= amount, as a single conditional mutation at the storage layer.
	// It returns false when the condition was not met. This is the system's
	// concurrency control point.
	Debit(ctx context.Context, phoneNumber string, amount decimal.Decimal) (bool, error)

	// Credit increments the balance at most once per idempotency key, so a
	// retry after an ambiguous failure (credit committed, acknowledgement
	// lost) can never apply the amount twice. A retry that finds the key
	// already applied reports success. Used only as compensation.
	Credit(ctx context.Context, phoneNumber string, amount decimal.Decimal, idempotencyKey string) (bool, error)
}

// ActivationRegistry appends activation records. The write is all-or-nothing:
// either the record exists with every field populated, or not at all.
type ActivationRegistry interface {
	Activate(ctx context.Context, record *domain.ActivationRecord) error
}

// ReconciliationRepository appends dead-letter entries for compensating
// credits that could not be applied.
type ReconciliationRepository interface {
	Create(ctx context.Context, entry *domain.ReconciliationEntry) error
}
