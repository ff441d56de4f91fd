package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Shipment is the slice of a voyage shipment the customs webservices need.
// It is supplied by callers; this service does not own shipments.
type Shipment struct {
	ID              uint64          `json:"id" validate:"required"`
	VoyageID        uint64          `json:"voyage_id" validate:"required"`
	CompanyID       uint64          `json:"company_id" validate:"required"`
	CompanyCode     string          `json:"company_code" validate:"required,max=10"`
	CompanyTaxID    string          `json:"company_tax_id" validate:"required"`
	VoyageNumber    string          `json:"voyage_number" validate:"required"`
	VesselName      string          `json:"vessel_name"`
	OriginPort      string          `json:"origin_port" validate:"required"`
	DestinationPort string          `json:"destination_port" validate:"required"`
	DepartureDate   *time.Time      `json:"departure_date,omitempty"`
	GrossWeightKg   decimal.Decimal `json:"gross_weight_kg"`
	BillsOfLading   []BillOfLading  `json:"bills_of_lading" validate:"dive"`
}

type BillOfLading struct {
	ID             uint64          `json:"id" validate:"required"`
	Number         string          `json:"number" validate:"required"`
	ShipperTaxID   string          `json:"shipper_tax_id"`
	ConsigneeTaxID string          `json:"consignee_tax_id"`
	Description    string          `json:"description"`
	Packages       int             `json:"packages"`
	GrossWeightKg  decimal.Decimal `json:"gross_weight_kg"`
	Containers     []Container     `json:"containers" validate:"dive"`
}

type Container struct {
	ID     uint64 `json:"id" validate:"required"`
	Number string `json:"number" validate:"required"`
	Type   string `json:"type"`
	Empty  bool   `json:"empty"`
}

// EmptyContainers returns empty containers across all bills of lading, in document order.
func (s *Shipment) EmptyContainers() []Container {
	var out []Container
	for _, bl := range s.BillsOfLading {
		for _, c := range bl.Containers {
			if c.Empty {
				out = append(out, c)
			}
		}
	}
	return out
}

// TotalGrossWeight sums bill of lading weights when the shipment has none of its own.
func (s *Shipment) TotalGrossWeight() decimal.Decimal {
	if !s.GrossWeightKg.IsZero() {
		return s.GrossWeightKg
	}
	total := decimal.Zero
	for _, bl := range s.BillsOfLading {
		total = total.Add(bl.GrossWeightKg)
	}
	return total
}
