package domain

import "time"

// ActivationRecord is the durable proof that a package was granted to a
// customer. Records are append-only: never mutated or deleted by this service.
type ActivationRecord struct {
	ID           string    `json:"id"` // UUID
	PhoneNumber  string    `json:"phone_number"`
	PackageCode  string    `json:"package_code"`
	QuotaMB      int64     `json:"quota_mb"`
	ValidityDays int       `json:"validity_days"`
	ActivatedAt  time.Time `json:"activated_at"`
}
