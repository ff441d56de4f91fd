package messages

import (
	"time"

	"github.com/BearBump/CustomsBox/internal/models"
)

// SubmissionRequested asks the worker to run a submission asynchronously.
// ResubmitTransactionID, when set, replays an existing transaction instead.
type SubmissionRequested struct {
	RequestID      string           `json:"request_id"`
	WebserviceType string           `json:"webservice_type"`
	UserID         uint64           `json:"user_id"`
	Shipment       *models.Shipment `json:"shipment,omitempty"`
	Tracks         []string         `json:"tracks,omitempty"`

	ResubmitTransactionID string `json:"resubmit_transaction_id,omitempty"`

	RequestedAt time.Time `json:"requested_at"`
}
