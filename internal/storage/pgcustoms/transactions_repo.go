package pgcustoms

import (
	"context"
	"encoding/json"
	"time"

	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const transactionColumns = `
  id, company_id, user_id, voyage_id, shipment_id,
  webservice_type, webservice_method, country, transaction_id,
  status, environment,
  request_xml, response_xml, external_reference, confirmation_number, error_message,
  retry_count, max_retries, timeout_seconds, additional_data,
  sent_at, response_at, completed_at,
  created_at, updated_at`

// TransactionUpdate moves a transaction from From to To. Nil pointer fields keep
// the stored value.
type TransactionUpdate struct {
	ID                 uint64
	From               models.TransactionStatus
	To                 models.TransactionStatus
	RequestXML         *string
	ResponseXML        *string
	ExternalReference  *string
	ConfirmationNumber *string
	ErrorMessage       *string
	ClearError         bool
	IncrementRetry     bool
	SentAt             *time.Time
	ResponseAt         *time.Time
	CompletedAt        *time.Time
	// AdditionalData is merged into the stored object key by key.
	AdditionalData map[string]any
}

func scanTransaction(row scanner) (*models.WebserviceTransaction, error) {
	var t models.WebserviceTransaction
	var additional []byte
	if err := row.Scan(
		&t.ID, &t.CompanyID, &t.UserID, &t.VoyageID, &t.ShipmentID,
		&t.WebserviceType, &t.WebserviceMethod, &t.Country, &t.TransactionID,
		&t.Status, &t.Environment,
		&t.RequestXML, &t.ResponseXML, &t.ExternalReference, &t.ConfirmationNumber, &t.ErrorMessage,
		&t.RetryCount, &t.MaxRetries, &t.TimeoutSeconds, &additional,
		&t.SentAt, &t.ResponseAt, &t.CompletedAt,
		&t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if len(additional) > 0 {
		if err := json.Unmarshal(additional, &t.AdditionalData); err != nil {
			return nil, errors.Wrap(err, "decode additional_data")
		}
	}
	return &t, nil
}

func encodeJSON(v map[string]any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	return b, errors.Wrap(err, "encode additional_data")
}

func (s *Storage) CreateTransaction(ctx context.Context, in models.TransactionCreateInput) (*models.WebserviceTransaction, error) {
	now := time.Now().UTC()

	additional, err := encodeJSON(in.AdditionalData)
	if err != nil {
		return nil, err
	}
	if additional == nil {
		additional = []byte("{}")
	}

	row := s.q(ctx).QueryRow(ctx, `
INSERT INTO webservice_transactions (
  company_id, user_id, voyage_id, shipment_id,
  webservice_type, webservice_method, country, transaction_id,
  status, environment, max_retries, timeout_seconds, additional_data,
  created_at, updated_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$14)
RETURNING`+transactionColumns,
		in.CompanyID, in.UserID, in.VoyageID, in.ShipmentID,
		in.WebserviceType, in.WebserviceMethod, in.WebserviceType.Country(), in.TransactionID,
		models.TransactionPending, in.Environment, in.MaxRetries, in.TimeoutSeconds, additional,
		now,
	)
	t, err := scanTransaction(row)
	if err != nil {
		return nil, errors.Wrap(err, "insert transaction")
	}
	return t, nil
}

func (s *Storage) GetTransaction(ctx context.Context, id uint64) (*models.WebserviceTransaction, error) {
	t, err := scanTransaction(s.q(ctx).QueryRow(ctx, `SELECT`+transactionColumns+` FROM webservice_transactions WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select transaction")
	}
	return t, nil
}

func (s *Storage) GetTransactionByTransactionID(ctx context.Context, transactionID string) (*models.WebserviceTransaction, error) {
	t, err := scanTransaction(s.q(ctx).QueryRow(ctx, `SELECT`+transactionColumns+` FROM webservice_transactions WHERE transaction_id = $1`, transactionID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "select transaction")
	}
	return t, nil
}

// UpdateTransaction applies u only while the row is still in u.From.
// It returns ErrStaleState when another writer moved the row first.
func (s *Storage) UpdateTransaction(ctx context.Context, u TransactionUpdate) (*models.WebserviceTransaction, error) {
	additional, err := encodeJSON(u.AdditionalData)
	if err != nil {
		return nil, err
	}

	row := s.q(ctx).QueryRow(ctx, `
UPDATE webservice_transactions SET
  status = $3,
  request_xml = COALESCE($4::text, request_xml),
  response_xml = COALESCE($5::text, response_xml),
  external_reference = COALESCE($6::text, external_reference),
  confirmation_number = COALESCE($7::text, confirmation_number),
  error_message = CASE WHEN $8::boolean THEN NULL ELSE COALESCE($9::text, error_message) END,
  retry_count = retry_count + CASE WHEN $10::boolean THEN 1 ELSE 0 END,
  sent_at = COALESCE($11::timestamptz, sent_at),
  response_at = COALESCE($12::timestamptz, response_at),
  completed_at = COALESCE($13::timestamptz, completed_at),
  additional_data = additional_data || COALESCE($14::jsonb, '{}'::jsonb),
  updated_at = $15
WHERE id = $1 AND status = $2
RETURNING`+transactionColumns,
		u.ID, u.From, u.To,
		u.RequestXML, u.ResponseXML, u.ExternalReference, u.ConfirmationNumber,
		u.ClearError, u.ErrorMessage, u.IncrementRetry,
		u.SentAt, u.ResponseAt, u.CompletedAt,
		additional, time.Now().UTC(),
	)
	t, err := scanTransaction(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(ErrStaleState, "transaction %d not in %s", u.ID, u.From)
	}
	if err != nil {
		return nil, errors.Wrap(err, "update transaction")
	}
	return t, nil
}

// LatestTransactionsByVoyage returns the newest transaction per (country, webservice_type).
func (s *Storage) LatestTransactionsByVoyage(ctx context.Context, voyageID uint64) ([]*models.WebserviceTransaction, error) {
	rows, err := s.q(ctx).Query(ctx, `
SELECT DISTINCT ON (country, webservice_type)`+transactionColumns+`
FROM webservice_transactions
WHERE voyage_id = $1
ORDER BY country, webservice_type, created_at DESC, id DESC
`, voyageID)
	if err != nil {
		return nil, errors.Wrap(err, "select latest transactions")
	}
	return collectTransactions(rows)
}

func (s *Storage) ListTransactionsByVoyage(ctx context.Context, voyageID uint64, limit, offset int) ([]*models.WebserviceTransaction, error) {
	rows, err := s.q(ctx).Query(ctx, `
SELECT`+transactionColumns+`
FROM webservice_transactions
WHERE voyage_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2 OFFSET $3
`, voyageID, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select voyage transactions")
	}
	return collectTransactions(rows)
}

func collectTransactions(rows pgx.Rows) ([]*models.WebserviceTransaction, error) {
	defer rows.Close()

	out := make([]*models.WebserviceTransaction, 0)
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan transaction")
		}
		out = append(out, t)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
