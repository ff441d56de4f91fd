package tracks

import (
	"context"
	"log/slog"
	"time"

	"github.com/BearBump/CustomsBox/internal/integrations/afipxml"
	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/BearBump/CustomsBox/internal/storage/pgcustoms"
	"github.com/pkg/errors"
)

// ErrAlreadyConsumed means a validated track was taken by a concurrent MIC/DTA.
var ErrAlreadyConsumed = errors.New("tracks already consumed")

type Repository interface {
	CreateTracks(ctx context.Context, transactionID uint64, method string, generatedAt time.Time, items []models.TrackCreateInput) ([]*models.WebserviceTrack, error)
	FindGeneratedTracks(ctx context.Context, trackNumbers []string, method string) ([]*models.WebserviceTrack, error)
	MarkTracksUsed(ctx context.Context, ids []uint64, usedAt time.Time) ([]*models.WebserviceTrack, error)
	CompleteTracks(ctx context.Context, trackNumbers []string, completedAt time.Time) ([]*models.WebserviceTrack, error)
	ListTracksByShipment(ctx context.Context, shipmentID uint64) ([]*models.WebserviceTrack, error)
}

type Service struct {
	repo      Repository
	freshness time.Duration
	now       func() time.Time
}

func New(repo Repository, freshness time.Duration) *Service {
	if freshness <= 0 {
		freshness = models.DefaultTrackFreshness
	}
	return &Service{repo: repo, freshness: freshness, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) Freshness() time.Duration { return s.freshness }

// CreateFromResponse stores the tracks returned by RegistrarTitEnvios. Envío tracks are
// matched to bills of lading and empty-container tracks to empty containers, both by position.
func (s *Service) CreateFromResponse(ctx context.Context, tx *models.WebserviceTransaction, shipment *models.Shipment, parsed []afipxml.ParsedTrack) ([]*models.WebserviceTrack, error) {
	if len(parsed) == 0 {
		return []*models.WebserviceTrack{}, nil
	}

	var shipmentID *uint64
	var bls []models.BillOfLading
	var empties []models.Container
	if shipment != nil {
		id := shipment.ID
		shipmentID = &id
		bls = shipment.BillsOfLading
		empties = shipment.EmptyContainers()
	}

	items := make([]models.TrackCreateInput, 0, len(parsed))
	envN, contN := 0, 0
	for _, p := range parsed {
		in := models.TrackCreateInput{
			ShipmentID:      shipmentID,
			TrackNumber:     p.Number,
			TrackType:       p.Type,
			ReferenceNumber: p.Reference,
		}
		switch p.Type {
		case models.TrackTypeContenedorVacio:
			if contN < len(empties) {
				id := empties[contN].ID
				in.ContainerID = &id
			}
			contN++
		default:
			if envN < len(bls) {
				id := bls[envN].ID
				in.BillOfLadingID = &id
			}
			envN++
		}
		items = append(items, in)
	}

	return s.repo.CreateTracks(ctx, tx.ID, tx.WebserviceMethod, s.now(), items)
}

// ValidateForMicDta returns the tracks still usable for a MIC/DTA. Numbers that are not
// generated by RegistrarTitEnvios are dropped silently; stale ones are logged and dropped.
func (s *Service) ValidateForMicDta(ctx context.Context, log *slog.Logger, trackNumbers []string) ([]*models.WebserviceTrack, error) {
	if log == nil {
		log = slog.Default()
	}

	numbers := dedup(trackNumbers)
	found, err := s.repo.FindGeneratedTracks(ctx, numbers, models.MethodRegistrarTitEnvios)
	if err != nil {
		return nil, err
	}

	now := s.now()
	valid := make([]*models.WebserviceTrack, 0, len(found))
	for _, t := range found {
		if !t.Fresh(now, s.freshness) {
			log.Warn("track expired, excluded from MIC/DTA",
				"track_number", t.TrackNumber,
				"hours_since_generation", t.Age(now).Hours(),
			)
			continue
		}
		valid = append(valid, t)
	}

	log.Info("tracks validated for MIC/DTA",
		"requested", len(numbers),
		"valid", len(valid),
		"invalid", len(numbers)-len(valid),
	)
	return valid, nil
}

// MarkUsed consumes tracks. Any track already consumed fails the whole call with
// ErrAlreadyConsumed; callers run it inside a transaction so nothing sticks.
func (s *Service) MarkUsed(ctx context.Context, tracks []*models.WebserviceTrack) ([]*models.WebserviceTrack, error) {
	ids := make([]uint64, 0, len(tracks))
	for _, t := range tracks {
		ids = append(ids, t.ID)
	}
	out, err := s.repo.MarkTracksUsed(ctx, ids, s.now())
	if errors.Is(err, pgcustoms.ErrStaleState) {
		return nil, errors.Wrap(ErrAlreadyConsumed, err.Error())
	}
	return out, err
}

func (s *Service) Complete(ctx context.Context, trackNumbers []string) ([]*models.WebserviceTrack, error) {
	if len(trackNumbers) == 0 {
		return nil, errors.New("tracks is empty")
	}
	return s.repo.CompleteTracks(ctx, dedup(trackNumbers), s.now())
}

type View struct {
	*models.WebserviceTrack
	EffectiveStatus      models.TrackStatus `json:"effective_status"`
	HoursSinceGeneration float64            `json:"hours_since_generation"`
}

func (s *Service) ListByShipment(ctx context.Context, shipmentID uint64) ([]View, error) {
	if shipmentID == 0 {
		return nil, errors.New("shipment_id is required")
	}
	ts, err := s.repo.ListTracksByShipment(ctx, shipmentID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	out := make([]View, 0, len(ts))
	for _, t := range ts {
		out = append(out, View{
			WebserviceTrack:      t,
			EffectiveStatus:      t.EffectiveStatus(now, s.freshness),
			HoursSinceGeneration: t.Age(now).Hours(),
		})
	}
	return out, nil
}

func dedup(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, n := range in {
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
