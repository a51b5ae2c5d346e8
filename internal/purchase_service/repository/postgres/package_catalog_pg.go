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

type pgPackageCatalog struct {
	db     *pgxpool.Pool
	logger *slog.Logger
}

// NewPgPackageCatalog creates a PackageCatalog backed by the packages table.
func NewPgPackageCatalog(db *pgxpool.Pool, logger *slog.Logger) repository.PackageCatalog {
	return &pgPackageCatalog{db: db, logger: logger.With("repository", "package_catalog")}
}

// GetByCode resolves only currently-offered packages. Retired codes and
// unknown codes both yield domain.ErrNotFound; infrastructure errors are
// returned as-is so they can be logged distinctly.
func (r *pgPackageCatalog) GetByCode(ctx context.Context, code string) (*domain.Package, error) {
	pkg := &domain.Package{}
	query := `
		SELECT code, name, price, quota_mb, validity_days, status
		FROM packages
		WHERE code = $1 AND status = 'ACTIVE'
	`

	err := r.db.QueryRow(ctx, query, code).Scan(
		&pkg.Code, &pkg.Name, &pkg.Price, &pkg.QuotaMB, &pkg.ValidityDays, &pkg.Status,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Package lookup failed", "error", err, "package_code", code)
		return nil, err
	}

	return pkg, nil
}
