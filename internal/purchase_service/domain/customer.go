package domain

// CustomerStatus is the lifecycle state of a subscriber in the customer directory.
type CustomerStatus string

const (
	CustomerStatusActive    CustomerStatus = "ACTIVE"
	CustomerStatusSuspended CustomerStatus = "SUSPENDED"
	CustomerStatusChurned   CustomerStatus = "CHURNED"
)

// Customer is a phone-identified subscriber. Owned by the customer directory;
// read-only to this service.
type Customer struct {
	PhoneNumber string         `json:"phone_number"`
	Status      CustomerStatus `json:"status"`
}
