package postgres

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pulsatel/prepaid_services/internal/purchase_service/domain"
	"github.com/pulsatel/prepaid_services/internal/purchase_service/repository"
)

type pgCustomerDirectory struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// NewPgCustomerDirectory creates a CustomerDirectory backed by the customers table.
func NewPgCustomerDirectory(db *pgxpool.Pool, logger *slog.Logger) repository.CustomerDirectory {
	return &pgCustomerDirectory{db: db, logger: logger.With("repository", "customer_directory")}
}

func (r *pgCustomerDirectory) IsActive(ctx context.Context, phoneNumber string) (bool, error) {
	var status domain.CustomerStatus
	query := `SELECT status FROM customers WHERE phone_number = $1`

	err := r.db.QueryRow(ctx, query, phoneNumber).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Unknown number is simply "not active", not a lookup failure.
			return false, nil
		}
		r.logger.ErrorContext(ctx, "Customer status lookup failed", "error", err, "phone_number", phoneNumber)
		return false, err
	}

	return status == domain.CustomerStatusActive, nil
}
