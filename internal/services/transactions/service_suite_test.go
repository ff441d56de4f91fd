package transactions

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/BearBump/CustomsBox/internal/storage/pgcustoms"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	txmocks "github.com/BearBump/CustomsBox/internal/services/transactions/mocks"
)

type ServiceSuite struct {
	suite.Suite

	repo *txmocks.MockRepository
	svc  *Service
	now  time.Time
}

func (s *ServiceSuite) SetupTest() {
	s.repo = &txmocks.MockRepository{}
	s.svc = New(s.repo, Config{})
	s.now = time.Date(2026, 5, 1, 12, 30, 45, 0, time.UTC)
	s.svc.now = func() time.Time { return s.now }
}

func (s *ServiceSuite) TestCreate_FillsDefaultsAndID() {
	s.repo.On("CreateTransaction", mock.Anything, mock.MatchedBy(func(in models.TransactionCreateInput) bool {
		return in.WebserviceType == models.WebserviceMicDta &&
			in.Environment == models.EnvironmentTesting &&
			in.MaxRetries == DefaultMaxRetries &&
			in.TimeoutSeconds == DefaultTimeoutSeconds &&
			regexp.MustCompile(`^MICACME20260501123045[0-9a-f]{6}$`).MatchString(in.TransactionID)
	})).Return(&models.WebserviceTransaction{ID: 1, Status: models.TransactionPending}, nil).Once()

	tx, err := s.svc.Create(context.Background(), CreateRequest{
		CompanyID: 7, CompanyCode: " acme ", VoyageID: 100,
		Type: models.WebserviceMicDta, Method: models.MethodRegistrarTitEnvios,
	})
	s.Require().NoError(err)
	s.Require().Equal(uint64(1), tx.ID)
	s.repo.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestCreate_Validation() {
	_, err := s.svc.Create(context.Background(), CreateRequest{CompanyID: 1, VoyageID: 1, Type: "bogus"})
	s.Require().ErrorIs(err, models.ErrUnknownWebserviceType)

	_, err = s.svc.Create(context.Background(), CreateRequest{VoyageID: 1, Type: models.WebserviceMane})
	s.Require().Error(err)

	_, err = s.svc.Create(context.Background(), CreateRequest{CompanyID: 1, Type: models.WebserviceMane})
	s.Require().Error(err)

	s.repo.AssertNotCalled(s.T(), "CreateTransaction", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestMarkSending_CASFromCurrentStatus() {
	tx := &models.WebserviceTransaction{ID: 5, TransactionID: "ANT1", Status: models.TransactionPending}
	s.repo.On("UpdateTransaction", mock.Anything, mock.MatchedBy(func(u pgcustoms.TransactionUpdate) bool {
		return u.ID == 5 && u.From == models.TransactionPending && u.To == models.TransactionSending &&
			*u.RequestXML == "<x/>" && u.SentAt.Equal(s.now)
	})).Return(&models.WebserviceTransaction{ID: 5, Status: models.TransactionSending}, nil).Once()

	out, err := s.svc.MarkSending(context.Background(), tx, "<x/>")
	s.Require().NoError(err)
	s.Require().Equal(models.TransactionSending, out.Status)
	s.repo.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestInvalidTransitionNeverHitsStorage() {
	tx := &models.WebserviceTransaction{ID: 5, TransactionID: "ANT1", Status: models.TransactionSuccess}

	_, err := s.svc.MarkSending(context.Background(), tx, "<x/>")
	s.Require().ErrorIs(err, models.ErrInvalidTransition)

	_, err = s.svc.CompleteFailure(context.Background(), tx, "late failure", "")
	s.Require().ErrorIs(err, models.ErrInvalidTransition)

	s.repo.AssertNotCalled(s.T(), "UpdateTransaction", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestCompleteFailure_KeepsResponse() {
	tx := &models.WebserviceTransaction{ID: 5, Status: models.TransactionSending}
	s.repo.On("UpdateTransaction", mock.Anything, mock.MatchedBy(func(u pgcustoms.TransactionUpdate) bool {
		return u.To == models.TransactionError && *u.ErrorMessage == "fault" &&
			*u.ResponseXML == "<fault/>" && u.ResponseAt != nil
	})).Return(&models.WebserviceTransaction{ID: 5, Status: models.TransactionError}, nil).Once()

	_, err := s.svc.CompleteFailure(context.Background(), tx, "fault", "<fault/>")
	s.Require().NoError(err)
	s.repo.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestRetry() {
	s.repo.On("GetTransactionByTransactionID", mock.Anything, "MIC1").
		Return(&models.WebserviceTransaction{ID: 9, TransactionID: "MIC1", Status: models.TransactionError, RetryCount: 1, MaxRetries: 3}, nil).
		Once()
	s.repo.On("UpdateTransaction", mock.Anything, pgcustoms.TransactionUpdate{
		ID: 9, From: models.TransactionError, To: models.TransactionPending, ClearError: true, IncrementRetry: true,
	}).Return(&models.WebserviceTransaction{ID: 9, Status: models.TransactionPending, RetryCount: 2}, nil).Once()

	tx, err := s.svc.Retry(context.Background(), "MIC1")
	s.Require().NoError(err)
	s.Require().EqualValues(2, tx.RetryCount)
	s.repo.AssertExpectations(s.T())
}

func (s *ServiceSuite) TestRetry_Refused() {
	s.repo.On("GetTransactionByTransactionID", mock.Anything, "OK1").
		Return(&models.WebserviceTransaction{TransactionID: "OK1", Status: models.TransactionSuccess}, nil).Once()
	s.repo.On("GetTransactionByTransactionID", mock.Anything, "MAX1").
		Return(&models.WebserviceTransaction{TransactionID: "MAX1", Status: models.TransactionError, RetryCount: 3, MaxRetries: 3}, nil).Once()
	s.repo.On("GetTransactionByTransactionID", mock.Anything, "NONE").
		Return(nil, pgcustoms.ErrNotFound).Once()

	_, err := s.svc.Retry(context.Background(), "OK1")
	s.Require().ErrorIs(err, ErrRetryNotAllowed)

	_, err = s.svc.Retry(context.Background(), "MAX1")
	s.Require().ErrorIs(err, ErrRetriesExhausted)

	_, err = s.svc.Retry(context.Background(), "NONE")
	s.Require().ErrorIs(err, pgcustoms.ErrNotFound)

	s.repo.AssertNotCalled(s.T(), "UpdateTransaction", mock.Anything, mock.Anything)
}

func (s *ServiceSuite) TestCancel_StaleStateSurfaces() {
	s.repo.On("GetTransactionByTransactionID", mock.Anything, "PYC1").
		Return(&models.WebserviceTransaction{ID: 3, TransactionID: "PYC1", Status: models.TransactionPending}, nil).Once()
	s.repo.On("UpdateTransaction", mock.Anything, mock.Anything).
		Return(nil, errors.Wrap(pgcustoms.ErrStaleState, "moved")).Once()

	_, err := s.svc.Cancel(context.Background(), "PYC1")
	s.Require().ErrorIs(err, pgcustoms.ErrStaleState)
}

func (s *ServiceSuite) TestListByVoyage_ClampsLimit() {
	s.repo.On("ListTransactionsByVoyage", mock.Anything, uint64(100), maxListLimit, 0).
		Return([]*models.WebserviceTransaction{}, nil).Once()
	s.repo.On("ListTransactionsByVoyage", mock.Anything, uint64(100), defaultListLimit, 0).
		Return([]*models.WebserviceTransaction{}, nil).Once()

	_, err := s.svc.ListByVoyage(context.Background(), 100, 10_000, -5)
	s.Require().NoError(err)
	_, err = s.svc.ListByVoyage(context.Background(), 100, 0, 0)
	s.Require().NoError(err)
	s.repo.AssertExpectations(s.T())
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func TestNewTransactionID(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.FixedZone("ART", -3*3600))
	cases := map[models.WebserviceType]string{
		models.WebserviceAnticipada:      "ANT",
		models.WebserviceMicDta:          "MIC",
		models.WebserviceDesconsolidados: "DES",
		models.WebserviceTransbordos:     "TRB",
		models.WebserviceMane:            "MAN",
		models.WebserviceParaguayCustoms: "PYC",
	}
	for typ, prefix := range cases {
		id := NewTransactionID(typ, "Rio Sur", at)
		if !regexp.MustCompile(`^` + prefix + `RIOSUR20260102060405[0-9a-f]{6}$`).MatchString(id) {
			t.Fatalf("%s: unexpected id %q", typ, id)
		}
	}

	if NewTransactionID(models.WebserviceMane, "X", at) == NewTransactionID(models.WebserviceMane, "X", at) {
		t.Fatal("ids must not collide within the same second")
	}
}
