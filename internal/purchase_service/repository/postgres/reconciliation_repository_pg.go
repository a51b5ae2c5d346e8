package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pulsatel/prepaid_services/internal/purchase_service/domain"
	"github.com/pulsatel/prepaid_services/internal/purchase_service/repository"
)

type pgReconciliationRepository struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// NewPgReconciliationRepository creates a ReconciliationRepository backed by
// the balance_reconciliation_queue table.
func NewPgReconciliationRepository(db *pgxpool.Pool, logger *slog.Logger) repository.ReconciliationRepository {
	return &pgReconciliationRepository{db: db, logger: logger.With("repository", "reconciliation")}
}

func (r *pgReconciliationRepository) Create(ctx context.Context, entry *domain.ReconciliationEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO balance_reconciliation_queue (id, phone_number, package_code, activation_id, amount, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Exec(ctx, query,
		entry.ID, entry.PhoneNumber, entry.PackageCode, entry.ActivationID,
		entry.Amount, entry.Reason, entry.CreatedAt,
	)
	if err != nil {
		r.logger.ErrorContext(ctx, "Reconciliation entry insert failed", "error", err,
			"phone_number", entry.PhoneNumber, "amount", entry.Amount)
		return err
	}

	return nil
}
