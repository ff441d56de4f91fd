package pgcustoms

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const trackColumns = `
  id, webservice_transaction_id, shipment_id, container_id, bill_of_lading_id,
  track_number, track_type, webservice_method, reference_number,
  status, generated_at, used_at, completed_at, process_chain, created_at`

func scanTrack(row scanner) (*models.WebserviceTrack, error) {
	var t models.WebserviceTrack
	var chain []byte
	if err := row.Scan(
		&t.ID, &t.WebserviceTransactionID, &t.ShipmentID, &t.ContainerID, &t.BillOfLadingID,
		&t.TrackNumber, &t.TrackType, &t.WebserviceMethod, &t.ReferenceNumber,
		&t.Status, &t.GeneratedAt, &t.UsedAt, &t.CompletedAt, &chain, &t.CreatedAt,
	); err != nil {
		return nil, err
	}
	if len(chain) > 0 {
		if err := json.Unmarshal(chain, &t.ProcessChain); err != nil {
			return nil, errors.Wrap(err, "decode process_chain")
		}
	}
	return &t, nil
}

func collectTracks(rows pgx.Rows) ([]*models.WebserviceTrack, error) {
	defer rows.Close()

	out := make([]*models.WebserviceTrack, 0)
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan track")
		}
		out = append(out, t)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// CreateTracks inserts generated tracks owned by transactionID. Each track's
// process chain starts with "generated".
func (s *Storage) CreateTracks(ctx context.Context, transactionID uint64, method string, generatedAt time.Time, items []models.TrackCreateInput) ([]*models.WebserviceTrack, error) {
	now := time.Now().UTC()
	out := make([]*models.WebserviceTrack, 0, len(items))
	for _, it := range items {
		row := s.q(ctx).QueryRow(ctx, `
INSERT INTO webservice_tracks (
  webservice_transaction_id, shipment_id, container_id, bill_of_lading_id,
  track_number, track_type, webservice_method, reference_number,
  status, generated_at, process_chain, created_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,jsonb_build_array($9::text),$11)
RETURNING`+trackColumns,
			transactionID, it.ShipmentID, it.ContainerID, it.BillOfLadingID,
			it.TrackNumber, it.TrackType, method, it.ReferenceNumber,
			models.TrackGenerated, generatedAt.UTC(), now,
		)
		t, err := scanTrack(row)
		if err != nil {
			return nil, errors.Wrap(err, "insert track")
		}
		out = append(out, t)
	}
	return out, nil
}

// FindGeneratedTracks loads the still-generated tracks among trackNumbers that
// were issued by method. Inside WithTx the rows stay locked until commit.
// Unknown or already consumed numbers are simply absent from the result.
func (s *Storage) FindGeneratedTracks(ctx context.Context, trackNumbers []string, method string) ([]*models.WebserviceTrack, error) {
	if len(trackNumbers) == 0 {
		return []*models.WebserviceTrack{}, nil
	}

	rows, err := s.q(ctx).Query(ctx, `
SELECT`+trackColumns+`
FROM webservice_tracks
WHERE track_number = ANY($1)
  AND status = $2
  AND webservice_method = $3
ORDER BY generated_at ASC, id ASC
FOR UPDATE
`, trackNumbers, models.TrackGenerated, method)
	if err != nil {
		return nil, errors.Wrap(err, "select generated tracks")
	}
	return collectTracks(rows)
}

// MarkTracksUsed flips generated tracks to used_in_micdta. The status filter makes it
// a compare-and-swap: if any id was consumed concurrently, ErrStaleState is returned
// and the caller is expected to roll back.
func (s *Storage) MarkTracksUsed(ctx context.Context, ids []uint64, usedAt time.Time) ([]*models.WebserviceTrack, error) {
	if len(ids) == 0 {
		return []*models.WebserviceTrack{}, nil
	}

	rows, err := s.q(ctx).Query(ctx, `
UPDATE webservice_tracks SET
  status = $2,
  used_at = $3,
  process_chain = process_chain || jsonb_build_array($2::text)
WHERE id = ANY($1)
  AND status = $4
RETURNING`+trackColumns,
		ids, models.TrackUsedInMicDta, usedAt.UTC(), models.TrackGenerated)
	if err != nil {
		return nil, errors.Wrap(err, "mark tracks used")
	}
	out, err := collectTracks(rows)
	if err != nil {
		return nil, err
	}
	if len(out) != len(ids) {
		return nil, errors.Wrapf(ErrStaleState, "marked %d of %d tracks", len(out), len(ids))
	}
	return out, nil
}

// CompleteTracks closes used tracks once the MIC/DTA has been accepted downstream.
// Tracks not in used_in_micdta are left alone.
func (s *Storage) CompleteTracks(ctx context.Context, trackNumbers []string, completedAt time.Time) ([]*models.WebserviceTrack, error) {
	if len(trackNumbers) == 0 {
		return []*models.WebserviceTrack{}, nil
	}

	rows, err := s.q(ctx).Query(ctx, `
UPDATE webservice_tracks SET
  status = $2,
  completed_at = $3,
  process_chain = process_chain || jsonb_build_array($2::text)
WHERE track_number = ANY($1)
  AND status = $4
RETURNING`+trackColumns,
		trackNumbers, models.TrackCompleted, completedAt.UTC(), models.TrackUsedInMicDta)
	if err != nil {
		return nil, errors.Wrap(err, "complete tracks")
	}
	return collectTracks(rows)
}

func (s *Storage) ListTracksByShipment(ctx context.Context, shipmentID uint64) ([]*models.WebserviceTrack, error) {
	rows, err := s.q(ctx).Query(ctx, `
SELECT`+trackColumns+`
FROM webservice_tracks
WHERE shipment_id = $1
ORDER BY generated_at DESC, id DESC
`, shipmentID)
	if err != nil {
		return nil, errors.Wrap(err, "select shipment tracks")
	}
	return collectTracks(rows)
}

func (s *Storage) ListTracksByTransaction(ctx context.Context, transactionID uint64) ([]*models.WebserviceTrack, error) {
	rows, err := s.q(ctx).Query(ctx, `
SELECT`+trackColumns+`
FROM webservice_tracks
WHERE webservice_transaction_id = $1
ORDER BY id ASC
`, transactionID)
	if err != nil {
		return nil, errors.Wrap(err, "select transaction tracks")
	}
	return collectTracks(rows)
}
