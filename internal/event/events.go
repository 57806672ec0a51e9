package event

import "time"

const (
	RoutingKeyCustomerRegistered = "customer.registered"
	RoutingKeyIngestionRequested = "ingestion.requested"
)

type CustomerEventPayload struct {
	CustomerID    int64   `json:"customerId"`
	FirstName     string  `json:"firstName"`
	LastName      string  `json:"lastName"`
	Age           *int    `json:"age,omitempty"`
	PhoneNumber   string  `json:"phoneNumber"`
	MonthlySalary float64 `json:"monthlySalary"`
	ApprovedLimit float64 `json:"approvedLimit"`
}

type CustomerRegisteredEvent struct {
	Timestamp time.Time            `json:"timestamp"`
	Payload   CustomerEventPayload `json:"payload"`
}

// IngestionRequestedEvent is the fire-and-forget task message that asks the
// worker to run the bulk ingestion pipeline.
type IngestionRequestedEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	RequestedBy string    `json:"requestedBy,omitempty"`
}
