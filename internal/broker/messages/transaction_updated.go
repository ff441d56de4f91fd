package messages

import "time"

const (
	TopicTransactionUpdated  = "customs.transaction.updated"
	TopicSubmissionRequested = "customs.submission.requested"
)

// TransactionUpdated is emitted after a submission flow leaves a transaction in a new state.
type TransactionUpdated struct {
	TransactionID  string  `json:"transaction_id"`
	CompanyID      uint64  `json:"company_id"`
	VoyageID       uint64  `json:"voyage_id"`
	ShipmentID     *uint64 `json:"shipment_id,omitempty"`
	Country        string  `json:"country"`
	WebserviceType string  `json:"webservice_type"`
	Method         string  `json:"webservice_method"`
	Status         string  `json:"status"`
	RetryCount     int32   `json:"retry_count"`

	Tracks []string `json:"tracks,omitempty"`
	Errors []string `json:"errors,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`
}
