package pgcustoms

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS webservice_transactions (
  id BIGSERIAL PRIMARY KEY,
  company_id BIGINT NOT NULL,
  user_id BIGINT NOT NULL,
  voyage_id BIGINT NOT NULL,
  shipment_id BIGINT NULL,
  webservice_type TEXT NOT NULL,
  webservice_method TEXT NOT NULL DEFAULT '',
  country CHAR(2) NOT NULL,
  transaction_id TEXT NOT NULL,
  status TEXT NOT NULL,
  environment TEXT NOT NULL,
  request_xml TEXT NULL,
  response_xml TEXT NULL,
  external_reference TEXT NULL,
  confirmation_number TEXT NULL,
  error_message TEXT NULL,
  retry_count INT NOT NULL DEFAULT 0,
  max_retries INT NOT NULL DEFAULT 3,
  timeout_seconds INT NOT NULL DEFAULT 60,
  additional_data JSONB NOT NULL DEFAULT '{}'::jsonb,
  sent_at TIMESTAMPTZ NULL,
  response_at TIMESTAMPTZ NULL,
  completed_at TIMESTAMPTZ NULL,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL,
  UNIQUE (transaction_id),
  CHECK (status IN ('pending','sending','sent','success','error','cancelled'))
)`,
		`CREATE INDEX IF NOT EXISTS idx_wst_voyage_country_type ON webservice_transactions(voyage_id, country, webservice_type, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_wst_company ON webservice_transactions(company_id, created_at DESC)`,
		`
CREATE TABLE IF NOT EXISTS webservice_tracks (
  id BIGSERIAL PRIMARY KEY,
  webservice_transaction_id BIGINT NOT NULL REFERENCES webservice_transactions(id),
  shipment_id BIGINT NULL,
  container_id BIGINT NULL,
  bill_of_lading_id BIGINT NULL,
  track_number TEXT NOT NULL,
  track_type TEXT NOT NULL,
  webservice_method TEXT NOT NULL,
  reference_number TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  generated_at TIMESTAMPTZ NOT NULL,
  used_at TIMESTAMPTZ NULL,
  completed_at TIMESTAMPTZ NULL,
  process_chain JSONB NOT NULL DEFAULT '[]'::jsonb,
  created_at TIMESTAMPTZ NOT NULL,
  CHECK (status IN ('generated','used_in_micdta','completed')),
  CHECK (track_type IN ('envio','contenedor_vacio'))
)`,
		`CREATE INDEX IF NOT EXISTS idx_wstracks_number_status ON webservice_tracks(track_number, status)`,
		`CREATE INDEX IF NOT EXISTS idx_wstracks_shipment ON webservice_tracks(shipment_id, generated_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_wstracks_transaction ON webservice_tracks(webservice_transaction_id)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
