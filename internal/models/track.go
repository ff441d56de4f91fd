package models

import "time"

type TrackStatus string

const (
	TrackGenerated    TrackStatus = "generated"
	TrackUsedInMicDta TrackStatus = "used_in_micdta"
	TrackCompleted    TrackStatus = "completed"
	// TrackExpired is never stored; see EffectiveStatus.
	TrackExpired TrackStatus = "expired"
)

type TrackType string

const (
	TrackTypeEnvio           TrackType = "envio"
	TrackTypeContenedorVacio TrackType = "contenedor_vacio"
)

// DefaultTrackFreshness is how long AFIP accepts a TRACK after RegistrarTitEnvios.
const DefaultTrackFreshness = 24 * time.Hour

type WebserviceTrack struct {
	ID                      uint64      `json:"id"`
	WebserviceTransactionID uint64      `json:"webservice_transaction_id"`
	ShipmentID              *uint64     `json:"shipment_id,omitempty"`
	ContainerID             *uint64     `json:"container_id,omitempty"`
	BillOfLadingID          *uint64     `json:"bill_of_lading_id,omitempty"`
	TrackNumber             string      `json:"track_number"`
	TrackType               TrackType   `json:"track_type"`
	WebserviceMethod        string      `json:"webservice_method"`
	ReferenceNumber         string      `json:"reference_number"`
	Status                  TrackStatus `json:"status"`
	GeneratedAt             time.Time   `json:"generated_at"`
	UsedAt                  *time.Time  `json:"used_at,omitempty"`
	CompletedAt             *time.Time  `json:"completed_at,omitempty"`
	ProcessChain            []string    `json:"process_chain"`
	CreatedAt               time.Time   `json:"created_at"`
}

func (t *WebserviceTrack) Age(now time.Time) time.Duration {
	return now.Sub(t.GeneratedAt)
}

// Fresh reports whether a generated track can still be sent to MIC/DTA.
func (t *WebserviceTrack) Fresh(now time.Time, window time.Duration) bool {
	return t.Status == TrackGenerated && t.Age(now) < window
}

// EffectiveStatus projects stale generated tracks as expired without touching storage.
func (t *WebserviceTrack) EffectiveStatus(now time.Time, window time.Duration) TrackStatus {
	if t.Status == TrackGenerated && !t.Fresh(now, window) {
		return TrackExpired
	}
	return t.Status
}

type TrackCreateInput struct {
	ShipmentID      *uint64
	ContainerID     *uint64
	BillOfLadingID  *uint64
	TrackNumber     string
	TrackType       TrackType
	ReferenceNumber string
}
