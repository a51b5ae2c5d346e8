package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReconciliationEntry parks a debited amount whose compensating credit could
// not be applied. Entries are worked off manually or by a reconciliation job;
// this service only appends them.
type ReconciliationEntry struct {
	ID           string          `json:"id"` // UUID
	PhoneNumber  string          `json:"phone_number"`
	PackageCode  string          `json:"package_code"`
	ActivationID *string         `json:"activation_id,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Reason       string          `json:"reason"`
	CreatedAt    time.Time       `json:"created_at"`
}
