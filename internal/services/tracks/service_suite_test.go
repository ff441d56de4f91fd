package tracks

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/BearBump/CustomsBox/internal/integrations/afipxml"
	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/BearBump/CustomsBox/internal/storage/pgcustoms"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	tracksmocks "github.com/BearBump/CustomsBox/internal/services/tracks/mocks"
)

type ServiceSuite struct {
	suite.Suite

	repo *tracksmocks.MockRepository
	svc  *Service
	now  time.Time
}

func (s *ServiceSuite) SetupTest() {
	s.repo = &tracksmocks.MockRepository{}
	s.svc = New(s.repo, 0)
	s.now = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	s.svc.now = func() time.Time { return s.now }
}

func (s *ServiceSuite) TestCreateFromResponse_TracksEnvOnly() {
	tx := &models.WebserviceTransaction{ID: 10, WebserviceMethod: models.MethodRegistrarTitEnvios}
	shipment := &models.Shipment{ID: 55, BillsOfLading: []models.BillOfLading{{ID: 1}, {ID: 2}}}
	parsed := []afipxml.ParsedTrack{
		{Number: "T001", Reference: "ENV_1", Type: models.TrackTypeEnvio},
		{Number: "T002", Reference: "ENV_2", Type: models.TrackTypeEnvio},
	}

	s.repo.On("CreateTracks", mock.Anything, uint64(10), models.MethodRegistrarTitEnvios, s.now,
		mock.MatchedBy(func(items []models.TrackCreateInput) bool {
			return len(items) == 2 &&
				items[0].TrackType == models.TrackTypeEnvio && items[1].TrackType == models.TrackTypeEnvio &&
				*items[0].BillOfLadingID == 1 && *items[1].BillOfLadingID == 2 &&
				*items[0].ShipmentID == 55 && items[1].ContainerID == nil
		})).
		Return([]*models.WebserviceTrack{
			{ID: 1, TrackNumber: "T001", Status: models.TrackGenerated},
			{ID: 2, TrackNumber: "T002", Status: models.TrackGenerated},
		}, nil).Once()

	out, err := s.svc.CreateFromResponse(context.Background(), tx, shipment, parsed)
	s.Require().NoError(err)
	s.Require().Len(out, 2)
	s.repo.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestCreateFromResponse_EmptyContainersLinked() {
	tx := &models.WebserviceTransaction{ID: 10, WebserviceMethod: models.MethodRegistrarTitEnvios}
	shipment := &models.Shipment{ID: 55, BillsOfLading: []models.BillOfLading{
		{ID: 1, Containers: []models.Container{{ID: 7, Empty: true}, {ID: 8}}},
	}}
	parsed := []afipxml.ParsedTrack{
		{Number: "C001", Reference: "CONT_VACIO_1", Type: models.TrackTypeContenedorVacio},
	}

	s.repo.On("CreateTracks", mock.Anything, uint64(10), models.MethodRegistrarTitEnvios, s.now,
		mock.MatchedBy(func(items []models.TrackCreateInput) bool {
			return len(items) == 1 && *items[0].ContainerID == 7 && items[0].BillOfLadingID == nil
		})).
		Return([]*models.WebserviceTrack{{ID: 3}}, nil).Once()

	_, err := s.svc.CreateFromResponse(context.Background(), tx, shipment, parsed)
	s.Require().NoError(err)
	s.repo.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestValidateForMicDta_ExcludesStaleAndLogs() {
	fresh := &models.WebserviceTrack{ID: 1, TrackNumber: "T002", Status: models.TrackGenerated, GeneratedAt: s.now.Add(-2 * time.Hour)}
	stale := &models.WebserviceTrack{ID: 2, TrackNumber: "T001", Status: models.TrackGenerated, GeneratedAt: s.now.Add(-25 * time.Hour)}

	s.repo.On("FindGeneratedTracks", mock.Anything, []string{"T001", "T002", "T404"}, models.MethodRegistrarTitEnvios).
		Return([]*models.WebserviceTrack{stale, fresh}, nil).Once()

	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	valid, err := s.svc.ValidateForMicDta(context.Background(), log, []string{"T001", "T002", "T001", "T404"})
	s.Require().NoError(err)
	s.Require().Len(valid, 1)
	s.Require().Equal("T002", valid[0].TrackNumber)
	s.Require().Contains(buf.String(), "track_number=T001")
	s.Require().Contains(buf.String(), "hours_since_generation=25")
}

func (s *ServiceSuite) TestValidateForMicDta_AllStale() {
	s.repo.On("FindGeneratedTracks", mock.Anything, []string{"T001"}, models.MethodRegistrarTitEnvios).
		Return([]*models.WebserviceTrack{
			{ID: 1, TrackNumber: "T001", Status: models.TrackGenerated, GeneratedAt: s.now.Add(-25 * time.Hour)},
		}, nil).Once()

	valid, err := s.svc.ValidateForMicDta(context.Background(), nil, []string{"T001"})
	s.Require().NoError(err)
	s.Require().Empty(valid)
}

func (s *ServiceSuite) TestMarkUsed_StaleStateBecomesAlreadyConsumed() {
	s.repo.On("MarkTracksUsed", mock.Anything, []uint64{1, 2}, s.now).
		Return(nil, errors.Wrap(pgcustoms.ErrStaleState, "marked 1 of 2 tracks")).Once()

	_, err := s.svc.MarkUsed(context.Background(), []*models.WebserviceTrack{{ID: 1}, {ID: 2}})
	s.Require().ErrorIs(err, ErrAlreadyConsumed)
}

func (s *ServiceSuite) TestComplete() {
	_, err := s.svc.Complete(context.Background(), nil)
	s.Require().Error(err)

	s.repo.On("CompleteTracks", mock.Anything, []string{"T1"}, s.now).
		Return([]*models.WebserviceTrack{{ID: 1, Status: models.TrackCompleted}}, nil).Once()
	out, err := s.svc.Complete(context.Background(), []string{"T1", "T1", ""})
	s.Require().NoError(err)
	s.Require().Len(out, 1)
}

func (s *ServiceSuite) TestListByShipment_ProjectsExpiry() {
	s.repo.On("ListTracksByShipment", mock.Anything, uint64(55)).
		Return([]*models.WebserviceTrack{
			{ID: 1, Status: models.TrackGenerated, GeneratedAt: s.now.Add(-30 * time.Hour)},
			{ID: 2, Status: models.TrackGenerated, GeneratedAt: s.now.Add(-time.Hour)},
			{ID: 3, Status: models.TrackUsedInMicDta, GeneratedAt: s.now.Add(-48 * time.Hour)},
		}, nil).Once()

	out, err := s.svc.ListByShipment(context.Background(), 55)
	s.Require().NoError(err)
	s.Require().Equal(models.TrackExpired, out[0].EffectiveStatus)
	s.Require().Equal(models.TrackGenerated, out[1].EffectiveStatus)
	s.Require().Equal(models.TrackUsedInMicDta, out[2].EffectiveStatus)
	s.Require().InDelta(30.0, out[0].HoursSinceGeneration, 0.001)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}
