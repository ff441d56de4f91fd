// Package customs sequences customs webservice submissions: transaction creation,
// XML building, the SOAP call, response processing and TRACK bookkeeping.
// Failures never escape as errors; callers always get a Result.
package customs

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/BearBump/CustomsBox/internal/broker/messages"
	"github.com/BearBump/CustomsBox/internal/integrations/afipxml"
	"github.com/BearBump/CustomsBox/internal/integrations/soap"
	"github.com/BearBump/CustomsBox/internal/models"
	"github.com/BearBump/CustomsBox/internal/services/tracks"
	"github.com/BearBump/CustomsBox/internal/services/transactions"
	"github.com/pkg/errors"
)

var (
	ErrNoTracksReceived      = errors.New("No se recibieron TRACKs en la respuesta de AFIP")
	ErrNoValidTracks         = errors.New("No hay TRACKs válidos disponibles para MIC/DTA")
	ErrXMLBuild              = afipxml.ErrBuild
	ErrTracksAlreadyConsumed = tracks.ErrAlreadyConsumed
)

// Stable error codes carried in Result.ErrorCode.
const (
	CodeInvalidRequest        = "InvalidRequest"
	CodeUnknownWebservice     = "UnknownWebservice"
	CodeNoTracksReceived      = "NoTracksReceived"
	CodeNoValidTracks         = "NoValidTracks"
	CodeXMLBuild              = "XMLBuild"
	CodeTracksAlreadyConsumed = "TracksAlreadyConsumed"
	CodeRemote                = "RemoteError"
	CodeTransport             = "TransportError"
	CodeRetryNotAllowed       = "RetryNotAllowed"
	CodeRetriesExhausted      = "RetriesExhausted"
	CodeNotFound              = "NotFound"
	CodeInternal              = "InternalError"
)

type Result struct {
	Success              bool                     `json:"success"`
	TransactionID        string                   `json:"transaction_id,omitempty"`
	ChainedTransactionID string                   `json:"chained_transaction_id,omitempty"`
	Status               models.TransactionStatus `json:"status,omitempty"`
	Tracks               []string                 `json:"tracks,omitempty"`
	TracksUsed           []string                 `json:"tracks_used,omitempty"`
	ExternalReference    string                   `json:"external_reference,omitempty"`
	ConfirmationNumber   string                   `json:"confirmation_number,omitempty"`
	ErrorCode            string                   `json:"error_code,omitempty"`
	Errors               []string                 `json:"errors"`
}

func failed(code string, errs ...string) Result {
	return Result{Success: false, ErrorCode: code, Errors: errs}
}

type SubmitRequest struct {
	UserID   uint64
	Shipment *models.Shipment
	// Tracks is only read by MIC/DTA; empty means "run RegistrarTitEnvios first".
	Tracks []string
}

type Handler interface {
	Type() models.WebserviceType
	Submit(ctx context.Context, req SubmitRequest) Result
}

type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Publisher interface {
	PublishJSON(ctx context.Context, topic, key string, v any) error
}

type Config struct {
	SubmitterCUIT string
	// TransactionUpdatedTopic defaults to messages.TopicTransactionUpdated.
	TransactionUpdatedTopic string
}

type Orchestrator struct {
	txs    *transactions.Service
	tracks *tracks.Service
	client soap.Client
	tm     TxManager
	pub    Publisher
	cfg    Config
}

// NewOrchestrator wires the submission flow. pub may be nil.
func NewOrchestrator(txs *transactions.Service, tr *tracks.Service, client soap.Client, tm TxManager, pub Publisher, cfg Config) *Orchestrator {
	if cfg.TransactionUpdatedTopic == "" {
		cfg.TransactionUpdatedTopic = messages.TopicTransactionUpdated
	}
	return &Orchestrator{txs: txs, tracks: tr, client: client, tm: tm, pub: pub, cfg: cfg}
}

func txLogger(tx *models.WebserviceTransaction) *slog.Logger {
	return slog.With(
		"transaction_id", tx.TransactionID,
		"company_id", tx.CompanyID,
		"webservice_type", tx.WebserviceType,
	)
}

func validateRequest(req SubmitRequest) error {
	if req.Shipment == nil {
		return errors.New("shipment is required")
	}
	s := req.Shipment
	if s.CompanyID == 0 || s.VoyageID == 0 {
		return errors.New("shipment company_id and voyage_id are required")
	}
	return nil
}

// snapshot is the request context stored in additional_data; Resubmit rebuilds from it.
func snapshot(step string, req SubmitRequest, trackNumbers []string) map[string]any {
	containers := 0
	for _, bl := range req.Shipment.BillsOfLading {
		containers += len(bl.Containers)
	}
	data := map[string]any{
		"step":            step,
		"voyage_id":       req.Shipment.VoyageID,
		"shipment_id":     req.Shipment.ID,
		"bills_of_lading": len(req.Shipment.BillsOfLading),
		"containers":      containers,
		"shipment":        req.Shipment,
	}
	if len(trackNumbers) > 0 {
		data["tracks"] = trackNumbers
	}
	return data
}

// fromSnapshot decodes additional_data[key] into dst. The value may be a Go value
// or the generic form it takes after a JSON round trip.
func fromSnapshot(data map[string]any, key string, dst any) bool {
	v, ok := data[key]
	if !ok || v == nil {
		return false
	}
	b, err := json.Marshal(v)
	if err != nil {
		return false
	}
	return json.Unmarshal(b, dst) == nil
}

func (o *Orchestrator) createTransaction(ctx context.Context, t models.WebserviceType, method string, req SubmitRequest, data map[string]any) (*models.WebserviceTransaction, error) {
	id := req.Shipment.ID
	return o.txs.Create(ctx, transactions.CreateRequest{
		CompanyID:      req.Shipment.CompanyID,
		CompanyCode:    req.Shipment.CompanyCode,
		UserID:         req.UserID,
		VoyageID:       req.Shipment.VoyageID,
		ShipmentID:     &id,
		Type:           t,
		Method:         method,
		AdditionalData: data,
	})
}

func (o *Orchestrator) build(tx *models.WebserviceTransaction, shipment *models.Shipment, trackNumbers []string) (string, error) {
	return afipxml.Build(afipxml.Input{
		Method:        tx.WebserviceMethod,
		TransactionID: tx.TransactionID,
		SubmitterCUIT: o.cfg.SubmitterCUIT,
		Shipment:      shipment,
		Tracks:        trackNumbers,
	})
}

// fail records message on tx. tx is returned unchanged if storage refuses.
func (o *Orchestrator) fail(ctx context.Context, log *slog.Logger, tx *models.WebserviceTransaction, message, responseXML string) *models.WebserviceTransaction {
	out, err := o.txs.CompleteFailure(ctx, tx, message, responseXML)
	if err != nil {
		log.Error("mark transaction error failed", "err", err, "status", tx.Status)
		return tx
	}
	return out
}

// hook runs on a parsed, error-free response before success is recorded. A returned
// error wrapping ErrNoTracksReceived is a protocol failure and ends the transaction in
// error; any other error aborts the flow.
type hook func(ctx context.Context, tx *models.WebserviceTransaction, parsed *afipxml.Response) (map[string]any, error)

type outcome struct {
	tx     *models.WebserviceTransaction
	parsed *afipxml.Response
	code   string
	errs   []string
}

// dispatch walks a pending tx through sending -> sent -> success|error. A non-nil error
// means the flow stopped midway (transport, storage or hook failure) and out.tx holds
// the last state that was persisted.
func (o *Orchestrator) dispatch(ctx context.Context, log *slog.Logger, tx *models.WebserviceTransaction, body string, h hook) (outcome, error) {
	out := outcome{tx: tx}

	sending, err := o.txs.MarkSending(ctx, tx, body)
	if err != nil {
		return out, errors.Wrap(err, "mark sending")
	}
	out.tx = sending

	log.Info("sending soap request", "method", sending.WebserviceMethod, "environment", sending.Environment)
	res, err := o.client.Call(ctx, soap.Request{
		Country:       sending.Country,
		Environment:   sending.Environment,
		Method:        sending.WebserviceMethod,
		TransactionID: sending.TransactionID,
		Body:          body,
		Timeout:       sending.Timeout(),
		MaxRetries:    int(sending.MaxRetries),
	})
	if err != nil {
		out.code = CodeTransport
		return out, errors.Wrap(err, "soap call")
	}
	log.Info("soap response received",
		"success", res.Success,
		"attempts", res.Attempts,
		"response_time_ms", res.ResponseTime.Milliseconds(),
	)

	if !res.Success {
		out.code = CodeRemote
		out.errs = res.Errors
		if len(out.errs) == 0 {
			out.errs = []string{"soap call failed"}
		}
		out.tx = o.fail(ctx, log, sending, strings.Join(out.errs, "; "), res.ResponseXML)
		return out, nil
	}

	sent, err := o.txs.MarkSent(ctx, sending, res.ResponseXML)
	if err != nil {
		return out, errors.Wrap(err, "mark sent")
	}
	out.tx = sent

	parsed, err := afipxml.ParseResponse(sent.WebserviceMethod, res.ResponseBody)
	if err != nil {
		out.code = CodeRemote
		out.errs = []string{"invalid response: " + err.Error()}
		out.tx = o.fail(ctx, log, sent, out.errs[0], "")
		return out, nil
	}
	out.parsed = parsed
	if len(parsed.Errors) > 0 {
		out.code = CodeRemote
		out.errs = parsed.Errors
		out.tx = o.fail(ctx, log, sent, strings.Join(parsed.Errors, "; "), "")
		return out, nil
	}

	var data map[string]any
	if h != nil {
		data, err = h(ctx, sent, parsed)
		if errors.Is(err, ErrNoTracksReceived) {
			out.code = CodeNoTracksReceived
			out.errs = []string{ErrNoTracksReceived.Error()}
			out.tx = o.fail(ctx, log, sent, out.errs[0], "")
			return out, nil
		}
		if err != nil {
			return out, err
		}
	}

	done, err := o.txs.CompleteSuccess(ctx, sent, transactions.Completion{
		ExternalReference:  parsed.ExternalReference,
		ConfirmationNumber: parsed.ConfirmationNumber,
		AdditionalData:     data,
	})
	if err != nil {
		return out, errors.Wrap(err, "mark success")
	}
	out.tx = done
	log.Info("submission succeeded", "external_reference", parsed.ExternalReference)
	return out, nil
}

func (out outcome) result() Result {
	r := Result{
		Success:       out.tx.Status == models.TransactionSuccess,
		TransactionID: out.tx.TransactionID,
		Status:        out.tx.Status,
		ErrorCode:     out.code,
		Errors:        out.errs,
	}
	if out.tx.ExternalReference != nil {
		r.ExternalReference = *out.tx.ExternalReference
	}
	if out.tx.ConfirmationNumber != nil {
		r.ConfirmationNumber = *out.tx.ConfirmationNumber
	}
	if !r.Success && len(r.Errors) == 0 && out.tx.ErrorMessage != nil {
		r.Errors = []string{*out.tx.ErrorMessage}
	}
	if r.Errors == nil {
		r.Errors = []string{}
	}
	return r
}

// finish turns a dispatch error into a persisted error state, outside any DB transaction.
func (o *Orchestrator) finish(ctx context.Context, log *slog.Logger, out outcome, err error) outcome {
	if err == nil {
		return out
	}
	log.Error("submission failed", "err", err, "status", out.tx.Status)
	if out.code == "" {
		out.code = codeFor(err)
	}
	out.errs = []string{err.Error()}
	if !out.tx.Status.Terminal() && out.tx.Status != models.TransactionError {
		out.tx = o.fail(ctx, log, out.tx, err.Error(), "")
	}
	return out
}

func codeFor(err error) string {
	switch {
	case errors.Is(err, ErrNoValidTracks):
		return CodeNoValidTracks
	case errors.Is(err, ErrNoTracksReceived):
		return CodeNoTracksReceived
	case errors.Is(err, ErrTracksAlreadyConsumed):
		return CodeTracksAlreadyConsumed
	case errors.Is(err, ErrXMLBuild):
		return CodeXMLBuild
	default:
		return CodeInternal
	}
}

// publish is best effort: the transaction row is the source of truth.
func (o *Orchestrator) publish(ctx context.Context, log *slog.Logger, tx *models.WebserviceTransaction, r Result) {
	if o.pub == nil || tx == nil {
		return
	}
	msg := messages.TransactionUpdated{
		TransactionID:  tx.TransactionID,
		CompanyID:      tx.CompanyID,
		VoyageID:       tx.VoyageID,
		ShipmentID:     tx.ShipmentID,
		Country:        string(tx.Country),
		WebserviceType: string(tx.WebserviceType),
		Method:         tx.WebserviceMethod,
		Status:         string(tx.Status),
		RetryCount:     tx.RetryCount,
		Tracks:         append(append([]string{}, r.Tracks...), r.TracksUsed...),
		Errors:         r.Errors,
		OccurredAt:     time.Now().UTC(),
	}
	if err := o.pub.PublishJSON(ctx, o.cfg.TransactionUpdatedTopic, tx.TransactionID, msg); err != nil {
		log.Warn("publish transaction update failed", "err", err)
	}
}
