package customs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/pkg/errors"
)

type LatestSource interface {
	LatestByVoyage(ctx context.Context, voyageID uint64) ([]*models.WebserviceTransaction, error)
}

// StatusProjector answers "can this voyage be sent" per (country, webservice type).
// Types are independent: a sent anticipada never blocks a Paraguayan manifest.
type StatusProjector struct {
	src LatestSource
}

func NewStatusProjector(src LatestSource) *StatusProjector {
	return &StatusProjector{src: src}
}

type Decision struct {
	Allowed        bool                     `json:"allowed"`
	CurrentStatus  models.TransactionStatus `json:"current_status,omitempty"`
	WebserviceType models.WebserviceType    `json:"webservice_type,omitempty"`
	Reason         string                   `json:"reason"`
}

type WebserviceStatus struct {
	Country        models.Country           `json:"country"`
	WebserviceType models.WebserviceType    `json:"webservice_type"`
	Status         models.TransactionStatus `json:"status,omitempty"`
	TransactionID  string                   `json:"transaction_id,omitempty"`
	UpdatedAt      *time.Time               `json:"updated_at,omitempty"`
	CanSend        bool                     `json:"can_send"`
}

// sendable is true only for an absent, pending or errored latest transaction.
func sendable(latest *models.WebserviceTransaction) bool {
	if latest == nil {
		return true
	}
	return latest.Status == models.TransactionPending || latest.Status == models.TransactionError
}

func (p *StatusProjector) latest(ctx context.Context, voyageID uint64) (map[models.WebserviceType]*models.WebserviceTransaction, error) {
	rows, err := p.src.LatestByVoyage(ctx, voyageID)
	if err != nil {
		return nil, err
	}
	out := make(map[models.WebserviceType]*models.WebserviceTransaction, len(rows))
	for _, t := range rows {
		out[t.WebserviceType] = t
	}
	return out, nil
}

func decide(t models.WebserviceType, latest *models.WebserviceTransaction) Decision {
	d := Decision{WebserviceType: t, Allowed: sendable(latest)}
	switch {
	case latest == nil:
		d.Reason = fmt.Sprintf("no %s transaction yet", t)
	case d.Allowed:
		d.CurrentStatus = latest.Status
		d.Reason = fmt.Sprintf("latest %s transaction is %s", t, latest.Status)
	default:
		d.CurrentStatus = latest.Status
		d.Reason = fmt.Sprintf("%s already %s (%s)", t, latest.Status, latest.TransactionID)
	}
	return d
}

func (p *StatusProjector) CanSendWebservice(ctx context.Context, voyageID uint64, t models.WebserviceType) (Decision, error) {
	if !t.Valid() {
		return Decision{}, errors.Wrapf(models.ErrUnknownWebserviceType, "%q", t)
	}
	latest, err := p.latest(ctx, voyageID)
	if err != nil {
		return Decision{}, err
	}
	return decide(t, latest[t]), nil
}

// CanSendToCountry blocks as soon as one of the country's webservices blocks.
func (p *StatusProjector) CanSendToCountry(ctx context.Context, voyageID uint64, c models.Country) (Decision, error) {
	types := models.WebserviceTypesFor(c)
	if len(types) == 0 {
		return Decision{}, errors.Errorf("unsupported country %q", c)
	}
	latest, err := p.latest(ctx, voyageID)
	if err != nil {
		return Decision{}, err
	}

	out := Decision{Allowed: true}
	reasons := make([]string, 0, len(types))
	for _, t := range types {
		d := decide(t, latest[t])
		if !d.Allowed {
			return d, nil
		}
		if out.CurrentStatus == "" && d.CurrentStatus != "" {
			out.CurrentStatus = d.CurrentStatus
			out.WebserviceType = t
		}
		reasons = append(reasons, d.Reason)
	}
	out.Reason = strings.Join(reasons, "; ")
	return out, nil
}

func (p *StatusProjector) VoyageStatus(ctx context.Context, voyageID uint64) ([]WebserviceStatus, error) {
	latest, err := p.latest(ctx, voyageID)
	if err != nil {
		return nil, err
	}
	all := models.AllWebserviceTypes()
	out := make([]WebserviceStatus, 0, len(all))
	for _, t := range all {
		ws := WebserviceStatus{Country: t.Country(), WebserviceType: t, CanSend: sendable(latest[t])}
		if tx := latest[t]; tx != nil {
			ws.Status = tx.Status
			ws.TransactionID = tx.TransactionID
			updated := tx.UpdatedAt
			ws.UpdatedAt = &updated
		}
		out = append(out, ws)
	}
	return out, nil
}
