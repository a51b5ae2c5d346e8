package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/pulsatel/prepaid_services/internal/purchase_service/domain"
	"github.com/pulsatel/prepaid_services/internal/purchase_service/repository"
)

type pgBalanceLedger struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// NewPgBalanceLedger creates a BalanceLedger backed by the customer_balances table.
func NewPgBalanceLedger(db *pgxpool.Pool, logger *slog.Logger) repository.BalanceLedger {
	return &pgBalanceLedger{db: db, logger: logger.With("repository", "balance_ledger")}
}

func (r *pgBalanceLedger) GetBalance(ctx context.Context, phoneNumber string) (decimal.Decimal, error) {
	var balance decimal.Decimal
	query := `SELECT balance FROM customer_balances WHERE phone_number = $1`

	err := r.db.QueryRow(ctx, query, phoneNumber).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Balance read failed", "error", err, "phone_number", phoneNumber)
		return decimal.Zero, err
	}

	return balance, nil
}

// Debit is a single conditional UPDATE executed by the store. The WHERE
// clause holds the sufficient-funds invariant: the row is only touched when
// balance >= amount, so concurrent debits can never drive it negative.
func (r *pgBalanceLedger) Debit(ctx context.Context, phoneNumber string, amount decimal.Decimal) (bool, error) {
	query := `
		UPDATE customer_balances
		SET balance = balance - $2, updated_at = $3
		WHERE phone_number = $1 AND balance >= $2
	`

	tag, err := r.db.Exec(ctx, query, phoneNumber, amount, time.Now().UTC())
	if err != nil {
		r.logger.ErrorContext(ctx, "Balance debit failed", "error", err, "phone_number", phoneNumber, "amount", amount)
		return false, err
	}

	return tag.RowsAffected() == 1, nil
}

// Credit records the idempotency key and applies the increment in one
// transaction. When the key row already exists the increment was committed by
// an earlier attempt whose acknowledgement was lost, so the retry is a no-op
// reported as success; the ledger can never end above its pre-debit value.
func (r *pgBalanceLedger) Credit(ctx context.Context, phoneNumber string, amount decimal.Decimal, idempotencyKey string) (bool, error) {
	applied := false
	txErr := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO ledger_credits (idempotency_key, phone_number, amount, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (idempotency_key) DO NOTHING
		`, idempotencyKey, phoneNumber, amount, time.Now().UTC())
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			applied = true
			return nil
		}

		tag, err = tx.Exec(ctx, `
			UPDATE customer_balances
			SET balance = balance + $2, updated_at = $3
			WHERE phone_number = $1
		`, phoneNumber, amount, time.Now().UTC())
		if err != nil {
			return err
		}
		if tag.RowsAffected() != 1 {
			// Roll back so the key row is not kept for a balance that was
			// never credited.
			return domain.ErrNotFound
		}
		applied = true
		return nil
	})

	if txErr != nil {
		if errors.Is(txErr, domain.ErrNotFound) {
			return false, nil
		}
		r.logger.ErrorContext(ctx, "Balance credit failed", "error", txErr,
			"phone_number", phoneNumber, "amount", amount, "idempotency_key", idempotencyKey)
		return false, txErr
	}

	return applied, nil
}
