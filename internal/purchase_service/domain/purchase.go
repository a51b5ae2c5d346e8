package domain

import "github.com/shopspring/decimal"

// PurchaseStatus is the terminal outcome of a purchase request.
type PurchaseStatus string

const (
	PurchaseStatusSuccess PurchaseStatus = "success"
	PurchaseStatusFailed  PurchaseStatus = "failed"
)

// Caller-facing result messages. These are part of the API contract.
const (
	MsgInvalidPhoneNumber  = "Invalid phone number"
	MsgPackageNotAvailable = "Package not available"
	MsgInsufficientBalance = "Insufficient balance"
	MsgPaymentFailed       = "Payment processing failed"
	MsgActivationFailed    = "Package activation failed"
	MsgPackageActivated    = "Package activated successfully"
)

// PurchaseResult is the terminal outcome returned to the caller. It is
// constructed fresh per request and never persisted. RemainingBalance and
// PackageDetails are set only on success.
type PurchaseResult struct {
	Status           PurchaseStatus   `json:"status"`
	Message          string           `json:"message"`
	RemainingBalance *decimal.Decimal `json:"remaining_balance,omitempty"`
	PackageDetails   *Package         `json:"package_details,omitempty"`
}

// FailedPurchase builds a failure result with the given caller-facing message.
func FailedPurchase(message string) *PurchaseResult {
	return &PurchaseResult{
		Status:  PurchaseStatusFailed,
		Message: message,
	}
}
