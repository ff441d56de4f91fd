package transactions

import (
	"context"
	"encoding/hex"
	"strings"
	"time"

	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/BearBump/CustomsBox/internal/storage/pgcustoms"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

var (
	ErrRetryNotAllowed  = errors.New("retry allowed only from error status")
	ErrRetriesExhausted = errors.New("max retries reached")
)

const (
	DefaultMaxRetries     = 3
	DefaultTimeoutSeconds = 60

	defaultListLimit = 50
	maxListLimit     = 500
)

type Repository interface {
	CreateTransaction(ctx context.Context, in models.TransactionCreateInput) (*models.WebserviceTransaction, error)
	GetTransactionByTransactionID(ctx context.Context, transactionID string) (*models.WebserviceTransaction, error)
	UpdateTransaction(ctx context.Context, u pgcustoms.TransactionUpdate) (*models.WebserviceTransaction, error)
	ListTransactionsByVoyage(ctx context.Context, voyageID uint64, limit, offset int) ([]*models.WebserviceTransaction, error)
	LatestTransactionsByVoyage(ctx context.Context, voyageID uint64) ([]*models.WebserviceTransaction, error)
}

type Config struct {
	Environment    models.Environment
	MaxRetries     int32
	TimeoutSeconds int32
}

type Service struct {
	repo Repository
	cfg  Config
	now  func() time.Time
}

func New(repo Repository, cfg Config) *Service {
	if cfg.Environment == "" {
		cfg.Environment = models.EnvironmentTesting
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = DefaultTimeoutSeconds
	}
	return &Service{repo: repo, cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) Environment() models.Environment { return s.cfg.Environment }

// NewTransactionID renders {prefix}{company_code}{yyyymmddHHMMSS}{6 hex}.
func NewTransactionID(t models.WebserviceType, companyCode string, at time.Time) string {
	u := uuid.New()
	code := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(companyCode), " ", ""))
	return t.Prefix() + code + at.UTC().Format("20060102150405") + hex.EncodeToString(u[:3])
}

type CreateRequest struct {
	CompanyID      uint64
	CompanyCode    string
	UserID         uint64
	VoyageID       uint64
	ShipmentID     *uint64
	Type           models.WebserviceType
	Method         string
	AdditionalData map[string]any
}

func (s *Service) Create(ctx context.Context, req CreateRequest) (*models.WebserviceTransaction, error) {
	if !req.Type.Valid() {
		return nil, errors.Wrapf(models.ErrUnknownWebserviceType, "%q", req.Type)
	}
	if req.CompanyID == 0 {
		return nil, errors.New("company_id is required")
	}
	if req.VoyageID == 0 {
		return nil, errors.New("voyage_id is required")
	}

	return s.repo.CreateTransaction(ctx, models.TransactionCreateInput{
		CompanyID:        req.CompanyID,
		UserID:           req.UserID,
		VoyageID:         req.VoyageID,
		ShipmentID:       req.ShipmentID,
		WebserviceType:   req.Type,
		WebserviceMethod: req.Method,
		TransactionID:    NewTransactionID(req.Type, req.CompanyCode, s.now()),
		Environment:      s.cfg.Environment,
		MaxRetries:       s.cfg.MaxRetries,
		TimeoutSeconds:   s.cfg.TimeoutSeconds,
		AdditionalData:   req.AdditionalData,
	})
}

func (s *Service) transition(ctx context.Context, tx *models.WebserviceTransaction, u pgcustoms.TransactionUpdate) (*models.WebserviceTransaction, error) {
	if err := models.CheckTransition(tx.Status, u.To); err != nil {
		return nil, errors.Wrap(err, tx.TransactionID)
	}
	u.ID = tx.ID
	u.From = tx.Status
	return s.repo.UpdateTransaction(ctx, u)
}

func (s *Service) MarkSending(ctx context.Context, tx *models.WebserviceTransaction, requestXML string) (*models.WebserviceTransaction, error) {
	now := s.now()
	return s.transition(ctx, tx, pgcustoms.TransactionUpdate{
		To:         models.TransactionSending,
		RequestXML: &requestXML,
		SentAt:     &now,
	})
}

func (s *Service) MarkSent(ctx context.Context, tx *models.WebserviceTransaction, responseXML string) (*models.WebserviceTransaction, error) {
	now := s.now()
	return s.transition(ctx, tx, pgcustoms.TransactionUpdate{
		To:          models.TransactionSent,
		ResponseXML: &responseXML,
		ResponseAt:  &now,
	})
}

type Completion struct {
	ExternalReference  string
	ConfirmationNumber string
	AdditionalData     map[string]any
}

func (s *Service) CompleteSuccess(ctx context.Context, tx *models.WebserviceTransaction, c Completion) (*models.WebserviceTransaction, error) {
	now := s.now()
	return s.transition(ctx, tx, pgcustoms.TransactionUpdate{
		To:                 models.TransactionSuccess,
		ExternalReference:  nonEmpty(c.ExternalReference),
		ConfirmationNumber: nonEmpty(c.ConfirmationNumber),
		AdditionalData:     c.AdditionalData,
		CompletedAt:        &now,
	})
}

// CompleteFailure moves tx to error from any non-terminal state. responseXML may be empty.
func (s *Service) CompleteFailure(ctx context.Context, tx *models.WebserviceTransaction, message, responseXML string) (*models.WebserviceTransaction, error) {
	u := pgcustoms.TransactionUpdate{
		To:           models.TransactionError,
		ErrorMessage: &message,
		ResponseXML:  nonEmpty(responseXML),
	}
	if responseXML != "" {
		now := s.now()
		u.ResponseAt = &now
	}
	return s.transition(ctx, tx, u)
}

// Retry reopens a failed transaction as pending. The retry budget is max_retries.
func (s *Service) Retry(ctx context.Context, transactionID string) (*models.WebserviceTransaction, error) {
	tx, err := s.repo.GetTransactionByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if tx.Status != models.TransactionError {
		return nil, errors.Wrapf(ErrRetryNotAllowed, "%s is %s", transactionID, tx.Status)
	}
	if tx.RetryCount >= tx.MaxRetries {
		return nil, errors.Wrapf(ErrRetriesExhausted, "%s: %d/%d", transactionID, tx.RetryCount, tx.MaxRetries)
	}
	return s.transition(ctx, tx, pgcustoms.TransactionUpdate{
		To:             models.TransactionPending,
		ClearError:     true,
		IncrementRetry: true,
	})
}

func (s *Service) Cancel(ctx context.Context, transactionID string) (*models.WebserviceTransaction, error) {
	tx, err := s.repo.GetTransactionByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	return s.transition(ctx, tx, pgcustoms.TransactionUpdate{
		To:          models.TransactionCancelled,
		CompletedAt: &now,
	})
}

func (s *Service) Get(ctx context.Context, transactionID string) (*models.WebserviceTransaction, error) {
	if transactionID == "" {
		return nil, errors.New("transaction_id is required")
	}
	return s.repo.GetTransactionByTransactionID(ctx, transactionID)
}

func (s *Service) ListByVoyage(ctx context.Context, voyageID uint64, limit, offset int) ([]*models.WebserviceTransaction, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListTransactionsByVoyage(ctx, voyageID, limit, offset)
}

func (s *Service) LatestByVoyage(ctx context.Context, voyageID uint64) ([]*models.WebserviceTransaction, error) {
	return s.repo.LatestTransactionsByVoyage(ctx, voyageID)
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
