package postgres

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pulsatel/prepaid_services/internal/purchase_service/domain"
	"github.com/pulsatel/prepaid_services/internal/purchase_service/repository"
)

type pgActivationRegistry struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// NewPgActivationRegistry creates an ActivationRegistry backed by the active_packages table.
func NewPgActivationRegistry(db *pgxpool.Pool, logger *slog.Logger) repository.ActivationRegistry {
	return &pgActivationRegistry{db: db, logger: logger.With("repository", "activation_registry")}
}

// Activate appends one fully-populated record. A single-row INSERT is
// all-or-nothing at the storage layer; no partial record can exist.
func (r *pgActivationRegistry) Activate(ctx context.Context, record *domain.ActivationRecord) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.ActivatedAt.IsZero() {
		record.ActivatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO active_packages (id, phone_number, package_code, quota_mb, validity_days, activated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Exec(ctx, query,
		record.ID, record.PhoneNumber, record.PackageCode,
		record.QuotaMB, record.ValidityDays, record.ActivatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" { // unique_violation
			return domain.ErrDuplicateEntry
		}
		r.logger.ErrorContext(ctx, "Activation record insert failed", "error", err,
			"phone_number", record.PhoneNumber, "package_code", record.PackageCode)
		return err
	}

	return nil
}
