package domain

import "github.com/shopspring/decimal"

// PackageStatus indicates whether a data package is currently offered.
type PackageStatus string

const (
	PackageStatusActive  PackageStatus = "ACTIVE"
	PackageStatusRetired PackageStatus = "RETIRED"
)

// Package is a purchasable prepaid data package. Owned by the package catalog;
// read-only to this service.
type Package struct {
	Code         string          `json:"code"`
	Name         string          `json:"name"`
	Price        decimal.Decimal `json:"price"`
	QuotaMB      int64           `json:"quota_mb"`
	ValidityDays int             `json:"validity_days"`
	Status       PackageStatus   `json:"status"`
}
