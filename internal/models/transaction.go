package models

import (
	"time"

	"github.com/pkg/errors"
)

var ErrInvalidTransition = errors.New("invalid status transition")

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionSending   TransactionStatus = "sending"
	TransactionSent      TransactionStatus = "sent"
	TransactionSuccess   TransactionStatus = "success"
	TransactionError     TransactionStatus = "error"
	TransactionCancelled TransactionStatus = "cancelled"
)

// error -> pending is the manual retry edge; everything else only moves forward.
var transactionTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionPending: {TransactionSending, TransactionError, TransactionCancelled},
	TransactionSending: {TransactionSent, TransactionError},
	TransactionSent:    {TransactionSuccess, TransactionError},
	TransactionError:   {TransactionPending, TransactionCancelled},
}

func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	for _, n := range transactionTransitions[s] {
		if n == next {
			return true
		}
	}
	return false
}

func (s TransactionStatus) Terminal() bool {
	return s == TransactionSuccess || s == TransactionCancelled
}

// CheckTransition returns ErrInvalidTransition wrapped with both states.
func CheckTransition(from, to TransactionStatus) error {
	if !from.CanTransitionTo(to) {
		return errors.Wrapf(ErrInvalidTransition, "%s -> %s", from, to)
	}
	return nil
}

type WebserviceTransaction struct {
	ID                 uint64            `json:"id"`
	CompanyID          uint64            `json:"company_id"`
	UserID             uint64            `json:"user_id"`
	VoyageID           uint64            `json:"voyage_id"`
	ShipmentID         *uint64           `json:"shipment_id,omitempty"`
	WebserviceType     WebserviceType    `json:"webservice_type"`
	WebserviceMethod   string            `json:"webservice_method"`
	Country            Country           `json:"country"`
	TransactionID      string            `json:"transaction_id"`
	Status             TransactionStatus `json:"status"`
	Environment        Environment       `json:"environment"`
	RequestXML         *string           `json:"request_xml,omitempty"`
	ResponseXML        *string           `json:"response_xml,omitempty"`
	ExternalReference  *string           `json:"external_reference,omitempty"`
	ConfirmationNumber *string           `json:"confirmation_number,omitempty"`
	ErrorMessage       *string           `json:"error_message,omitempty"`
	RetryCount         int32             `json:"retry_count"`
	MaxRetries         int32             `json:"max_retries"`
	TimeoutSeconds     int32             `json:"timeout_seconds"`
	AdditionalData     map[string]any    `json:"additional_data,omitempty"`
	SentAt             *time.Time        `json:"sent_at,omitempty"`
	ResponseAt         *time.Time        `json:"response_at,omitempty"`
	CompletedAt        *time.Time        `json:"completed_at,omitempty"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// Timeout falls back to 60s when the row carries no explicit value.
func (t *WebserviceTransaction) Timeout() time.Duration {
	if t.TimeoutSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(t.TimeoutSeconds) * time.Second
}

type TransactionCreateInput struct {
	CompanyID        uint64
	UserID           uint64
	VoyageID         uint64
	ShipmentID       *uint64
	WebserviceType   WebserviceType
	WebserviceMethod string
	TransactionID    string
	Environment      Environment
	MaxRetries       int32
	TimeoutSeconds   int32
	AdditionalData   map[string]any
}
